// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/rtk-project/rtk/pkg/artifact"
	"github.com/rtk-project/rtk/pkg/gitutil"
)

func contentHash(content []byte) uint64 {
	return xxhash.Sum64(content)
}

// GitDeltaDigest computes a ChangeDigest directly from a git revision
// range, without touching the cached artifact: the result is always
// live, never cached.
func GitDeltaDigest(ctx context.Context, runner gitutil.Runner, repoRoot, baseRev string) (artifact.ChangeDigest, error) {
	delta, err := gitutil.Detect(ctx, runner, baseRev, "")
	if err != nil {
		return artifact.ChangeDigest{}, fmt.Errorf("indexer: git delta: %w", err)
	}

	var digest artifact.ChangeDigest
	for _, path := range delta.Added {
		digest.Added = append(digest.Added, hashedEntry(repoRoot, path, artifact.ChangeAdded))
	}
	for _, path := range delta.Modified {
		digest.Modified = append(digest.Modified, hashedEntry(repoRoot, path, artifact.ChangeModified))
	}
	for _, path := range delta.Removed {
		digest.Removed = append(digest.Removed, artifact.ChangeEntry{Path: path, Kind: artifact.ChangeRemoved})
	}
	for oldPath, newPath := range delta.Renamed {
		digest.Removed = append(digest.Removed, artifact.ChangeEntry{Path: oldPath, Kind: artifact.ChangeRemoved})
		digest.Added = append(digest.Added, hashedEntry(repoRoot, newPath, artifact.ChangeAdded))
	}
	return digest, nil
}

// hashedEntry reads the current bytes of path (relative to repoRoot)
// and hashes them for the digest entry. Read failures degrade to an
// entry with no hash rather than aborting the delta.
func hashedEntry(repoRoot, path string, kind artifact.FileChangeKind) artifact.ChangeEntry {
	content, err := os.ReadFile(filepath.Join(repoRoot, path)) //nolint:gosec // G304: path from git's own diff output
	if err != nil {
		return artifact.ChangeEntry{Path: path, Kind: kind}
	}
	return artifact.ChangeEntry{Path: path, Kind: kind, Hash: fmt.Sprintf("%016x", contentHash(content))}
}
