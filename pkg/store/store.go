// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store implements the persistent artifact store: an
// embedded SQL database opened in WAL mode, idempotent upsert,
// capped-retry writer contention handling, and LRU eviction.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rtk-project/rtk/pkg/artifact"
)

// retryDelays is the capped exponential backoff: three attempts at
// 100/200/400 ms.
var retryDelays = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}

// Store is the embedded SQL persistence layer. One Store wraps one
// *sql.DB connection pool; callers should reuse a Store across a
// single request rather than opening a fresh connection per call.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	initOnce sync.Once
	initErr  error
}

// Open opens (and creates if absent) the SQLite database at path in
// WAL journal mode with a busy timeout, matching the store's
// multi-process, multi-reader/writer concurrency model.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// WAL readers/writers share one process-local pool; a single
	// writer connection avoids SQLITE_BUSY storms within this process
	// while still allowing other processes to write concurrently.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DefaultPath returns the default user-cache location for project_id,
// honoring the RTK_DB_PATH environment override.
func DefaultPath(projectID string) string {
	if override := os.Getenv("RTK_DB_PATH"); override != "" {
		return override
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "rtk", "rtk.db")
}

// ensureSchema runs CREATE TABLE IF NOT EXISTS once per process. The
// sync.Once guard plus SQLite's own "IF NOT EXISTS" idempotence makes
// concurrent multi-process initialization safe.
func (s *Store) ensureSchema(ctx context.Context) error {
	s.initOnce.Do(func() {
		_, err := s.db.ExecContext(ctx, schema)
		if err != nil {
			s.initErr = fmt.Errorf("store: create schema: %w", err)
		}
	})
	return s.initErr
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// withRetry runs fn, retrying on SQLITE_BUSY-shaped errors with a
// capped exponential backoff. Exhausting the retry budget
// surfaces ErrTransient.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isBusyErr(lastErr) {
			return lastErr
		}
		if attempt == len(retryDelays) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelays[attempt]):
		}
	}
	return fmt.Errorf("%w: %v", ErrTransient, lastErr)
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "busy") || strings.Contains(msg, "locked")
}

// EnsureProject creates the project row if it doesn't exist and
// returns its stable project_id, derived from the canonicalized root
// path.
func (s *Store) EnsureProject(ctx context.Context, rootPath string) (string, error) {
	canon, err := filepath.Abs(rootPath)
	if err != nil {
		return "", fmt.Errorf("store: canonicalize root: %w", err)
	}
	projectID := ProjectID(canon)
	now := time.Now().Unix()

	err = withRetry(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, `
			INSERT INTO projects (project_id, root_path, created_at, last_accessed_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(project_id) DO UPDATE SET last_accessed_at = excluded.last_accessed_at
		`, projectID, canon, now, now)
		return execErr
	})
	if err != nil {
		return "", err
	}

	existingRoot, err := s.rootPathFor(ctx, projectID)
	if err != nil {
		return "", err
	}
	if existingRoot != canon {
		// Genuine xxhash collision between two distinct roots: fall
		// back to a deterministic uuid v5 salt keyed on the full path,
		// so the same root always resolves to the same salted id.
		salted := SaltProjectID(canon)
		err = withRetry(ctx, func() error {
			_, execErr := s.db.ExecContext(ctx, `
				INSERT INTO projects (project_id, root_path, created_at, last_accessed_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(project_id) DO UPDATE SET last_accessed_at = excluded.last_accessed_at
			`, salted, canon, now, now)
			return execErr
		})
		if err != nil {
			return "", err
		}
		s.logger.Warn("store.project_id.collision", "project_id", projectID, "salted_id", salted)
		return salted, nil
	}
	return projectID, nil
}

// rootPathFor returns the stored root_path for projectID, or "" if
// the project row doesn't exist (which EnsureProject's own insert
// just above guarantees it does, barring a concurrent eviction race).
func (s *Store) rootPathFor(ctx context.Context, projectID string) (string, error) {
	var root string
	err := s.db.QueryRowContext(ctx, `SELECT root_path FROM projects WHERE project_id = ?`, projectID).Scan(&root)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: lookup root_path: %w", err)
	}
	return root, nil
}

// Touch updates last_accessed_at for project_id, driving LRU eviction.
func (s *Store) Touch(ctx context.Context, projectID string) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE projects SET last_accessed_at = ? WHERE project_id = ?`,
			time.Now().Unix(), projectID)
		return err
	})
}

// LoadArtifact returns the stored artifact for projectID, or nil if
// absent, version-mismatched, or otherwise invalid. A version mismatch
// is logged but never returned as an error: callers treat it as a
// plain miss.
func (s *Store) LoadArtifact(ctx context.Context, projectID string) (*artifact.ProjectArtifact, error) {
	var (
		version int
		payload []byte
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT artifact_version, payload FROM artifacts WHERE project_id = ?`, projectID)
	if err := row.Scan(&version, &payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: load artifact: %w", err)
	}

	if version != artifact.Version {
		s.logger.Info("store.artifact.version_mismatch",
			"project_id", projectID, "stored_version", version, "current_version", artifact.Version)
		return nil, nil
	}

	var art artifact.ProjectArtifact
	if err := json.Unmarshal(payload, &art); err != nil {
		return nil, fmt.Errorf("%w: decode artifact: %v", ErrCorrupt, err)
	}
	return &art, nil
}

// StoreArtifact idempotently upserts art for projectID and atomically
// replaces that project's artifact_edges in the same transaction.
func (s *Store) StoreArtifact(ctx context.Context, projectID string, art *artifact.ProjectArtifact, edges []artifact.ImportEdge) error {
	payload, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("store: encode artifact: %w", err)
	}

	return withRetry(ctx, func() error {
		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return txErr
		}
		defer tx.Rollback() //nolint:errcheck // no-op after commit

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO artifacts (project_id, artifact_version, updated_at, payload)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(project_id) DO UPDATE SET
				artifact_version = excluded.artifact_version,
				updated_at       = excluded.updated_at,
				payload          = excluded.payload
		`, projectID, art.ArtifactVersion, art.UpdatedAt.Unix(), payload); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM artifact_edges WHERE project_id = ?`, projectID); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO artifact_edges (project_id, from_path, to_module, edge_kind) VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range edges {
			if _, err := stmt.ExecContext(ctx, projectID, e.FromPath, e.ToModule, e.EdgeKind); err != nil {
				return err
			}
		}

		return tx.Commit()
	})
}

// LoadEdges returns all artifact_edges rows for projectID.
func (s *Store) LoadEdges(ctx context.Context, projectID string) ([]artifact.ImportEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_path, to_module, edge_kind FROM artifact_edges WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: load edges: %w", err)
	}
	defer rows.Close()

	var edges []artifact.ImportEdge
	for rows.Next() {
		var e artifact.ImportEdge
		if err := rows.Scan(&e.FromPath, &e.ToModule, &e.EdgeKind); err != nil {
			return nil, fmt.Errorf("store: scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ReverseEdges returns the from_path of every edge whose to_module
// matches any of targets, for the cascade invalidation pass. Uses the
// (project_id, to_module) index rather than a prefix scan over
// from_id.
func (s *Store) ReverseEdges(ctx context.Context, projectID string, targets []string) ([]string, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(targets)), ",")
	args := make([]any, 0, len(targets)+1)
	args = append(args, projectID)
	for _, t := range targets {
		args = append(args, t)
	}

	query := fmt.Sprintf(
		`SELECT DISTINCT from_path FROM artifact_edges WHERE project_id = ? AND to_module IN (%s)`,
		placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: reverse edges: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("store: scan reverse edge: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// RecordEvent appends a best-effort audit row:
// failures here are logged but never fail the caller's request.
func (s *Store) RecordEvent(ctx context.Context, projectID string, kind artifact.CacheEventKind) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_events (project_id, event_kind, created_at) VALUES (?, ?, ?)`,
		projectID, string(kind), time.Now().Unix())
	if err != nil {
		s.logger.Warn("store.record_event.failed", "project_id", projectID, "kind", kind, "err", err)
	}
}

// Prune enforces LRU eviction: when the project count exceeds
// maxProjects, the oldest-accessed projects are removed, along with
// all their artifact/edge/event rows, transactionally.
func (s *Store) Prune(ctx context.Context, maxProjects int) (int, error) {
	if maxProjects <= 0 {
		return 0, nil
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&total); err != nil {
		return 0, fmt.Errorf("store: count projects: %w", err)
	}
	if total <= maxProjects {
		return 0, nil
	}
	excess := total - maxProjects

	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id FROM projects ORDER BY last_accessed_at ASC LIMIT ?`, excess)
	if err != nil {
		return 0, fmt.Errorf("store: select eviction candidates: %w", err)
	}
	var victims []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("store: scan eviction candidate: %w", err)
		}
		victims = append(victims, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	evicted := 0
	for _, id := range victims {
		err := withRetry(ctx, func() error {
			tx, txErr := s.db.BeginTx(ctx, nil)
			if txErr != nil {
				return txErr
			}
			defer tx.Rollback() //nolint:errcheck

			for _, stmt := range []string{
				`DELETE FROM cache_events WHERE project_id = ?`,
				`DELETE FROM events WHERE project_id = ?`,
				`DELETE FROM episodes WHERE project_id = ?`,
				`DELETE FROM artifact_edges WHERE project_id = ?`,
				`DELETE FROM artifacts WHERE project_id = ?`,
				`DELETE FROM projects WHERE project_id = ?`,
			} {
				if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
					return err
				}
			}
			return tx.Commit()
		})
		if err != nil {
			s.logger.Warn("store.prune.evict_failed", "project_id", id, "err", err)
			continue
		}
		evicted++
	}
	s.logger.Info("store.prune.complete", "evicted", evicted, "max_projects", maxProjects)
	return evicted, nil
}

// ProjectMeta returns (created_at, last_accessed_at, exists).
func (s *Store) ProjectMeta(ctx context.Context, projectID string) (createdAt, lastAccessedAt time.Time, exists bool, err error) {
	var c, l int64
	row := s.db.QueryRowContext(ctx,
		`SELECT created_at, last_accessed_at FROM projects WHERE project_id = ?`, projectID)
	if scanErr := row.Scan(&c, &l); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return time.Time{}, time.Time{}, false, nil
		}
		return time.Time{}, time.Time{}, false, scanErr
	}
	return time.Unix(c, 0), time.Unix(l, 0), true, nil
}

// Clear removes all rows for projectID (explicit `clear` command).
func (s *Store) Clear(ctx context.Context, projectID string) error {
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback() //nolint:errcheck

		for _, stmt := range []string{
			`DELETE FROM cache_events WHERE project_id = ?`,
			`DELETE FROM events WHERE project_id = ?`,
			`DELETE FROM episodes WHERE project_id = ?`,
			`DELETE FROM artifact_edges WHERE project_id = ?`,
			`DELETE FROM artifacts WHERE project_id = ?`,
			`DELETE FROM projects WHERE project_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, projectID); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// ProjectCount returns the number of tracked projects, for status/LRU
// reporting.
func (s *Store) ProjectCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n)
	return n, err
}
