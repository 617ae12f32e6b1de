// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "errors"

// Sentinel error kinds for the Store's public contract.
var (
	// ErrTransient indicates retryable writer contention (busy lock)
	// that persisted past the retry budget.
	ErrTransient = errors.New("store: transient lock contention")

	// ErrSchemaMismatch indicates a stored artifact's version differs
	// from the process's ARTIFACT_VERSION; callers must treat it as a
	// cache miss, never as a hard failure.
	ErrSchemaMismatch = errors.New("store: schema version mismatch")

	// ErrCorrupt indicates the database file itself is unreadable and
	// requires reinitialization; this is fatal, not retryable.
	ErrCorrupt = errors.New("store: database corrupt")

	// ErrNotFound indicates the project has never been indexed.
	ErrNotFound = errors.New("store: project not found")
)
