// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// ProjectID derives the stable project_id for a canonicalized root
// path: a fixed-width hex digest so the same directory
// always maps to the same row across processes and machines, without
// leaking the filesystem path into log lines or cache keys.
func ProjectID(canonicalRootPath string) string {
	sum := xxhash.Sum64String(canonicalRootPath)
	return fmt.Sprintf("p_%016x", sum)
}

// projectIDNamespace is a fixed, arbitrary UUID used only to derive
// deterministic per-root salts; it carries no meaning on its own.
var projectIDNamespace = uuid.MustParse("c9c6a9c4-3b0a-4e7c-9a9e-df6f2c1ab6a0")

// SaltProjectID derives a deterministic, collision-free project_id
// for canonicalRootPath in the rare case where two distinct roots
// hash to the same ProjectID: a uuid v5 digest (keyed on the full
// path, not just the colliding 64-bit hash) replaces the xxhash
// digest so the same root always salts to the same id across
// processes, while a different root practically never reuses it.
func SaltProjectID(canonicalRootPath string) string {
	id := uuid.NewSHA1(projectIDNamespace, []byte(canonicalRootPath))
	return fmt.Sprintf("p_%s", id.String())
}
