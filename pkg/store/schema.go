// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

// schema creates the minimum table set: projects, artifacts,
// artifact_edges, cache_events, plus the optional operational tables
// events (timing) and episodes (future use — declared, never read or
// written).
//
// artifact_edges carries an explicit project_id column with a
// covering index on (project_id, to_module) so reverse-lookup cascade
// is an indexed query rather than a prefix pattern-match on from_id.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
	project_id       TEXT PRIMARY KEY,
	root_path        TEXT NOT NULL UNIQUE,
	created_at       INTEGER NOT NULL,
	last_accessed_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_projects_last_accessed ON projects(last_accessed_at);

CREATE TABLE IF NOT EXISTS artifacts (
	project_id       TEXT PRIMARY KEY,
	artifact_version INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL,
	payload          BLOB NOT NULL,
	FOREIGN KEY (project_id) REFERENCES projects(project_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS artifact_edges (
	project_id TEXT NOT NULL,
	from_path  TEXT NOT NULL,
	to_module  TEXT NOT NULL,
	edge_kind  TEXT NOT NULL,
	PRIMARY KEY (project_id, from_path, to_module, edge_kind),
	FOREIGN KEY (project_id) REFERENCES projects(project_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_artifact_edges_to_module ON artifact_edges(project_id, to_module);

CREATE TABLE IF NOT EXISTS cache_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	event_kind TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_events_project ON cache_events(project_id, created_at);

CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id  TEXT NOT NULL,
	phase       TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);

-- Reserved for future episode/session-history ranking signal. No code
-- path in this repository writes or reads this table — see
-- SPEC_FULL.md "Resolved Open Questions" #1.
CREATE TABLE IF NOT EXISTS episodes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	session_id TEXT,
	created_at INTEGER NOT NULL
);
`
