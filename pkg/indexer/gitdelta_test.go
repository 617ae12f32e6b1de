// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGitRunner struct {
	responses map[string]string
	repoRoot  string
}

func (f *fakeGitRunner) RepoRoot() string { return f.repoRoot }

func (f *fakeGitRunner) Run(_ context.Context, args ...string) (string, error) {
	key := fmt.Sprintf("%v", args)
	if out, ok := f.responses[key]; ok {
		return out, nil
	}
	return "", fmt.Errorf("fakeGitRunner: unexpected args %v", args)
}

func TestGitDeltaDigestHashesAddedAndModifiedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "new.go"), "package main\n")
	writeFile(t, filepath.Join(root, "main.go"), "package main\n\nfunc main() {}\n")

	runner := &fakeGitRunner{repoRoot: root, responses: map[string]string{
		`[rev-parse HEAD]`: "deadbeef\n",
		fmt.Sprintf(`[diff --name-status -M %s deadbeef]`, "4b825dc642cb6eb9a060e54bf8d69288fbee4904"): "A\tnew.go\nM\tmain.go\n",
	}}

	digest, err := GitDeltaDigest(context.Background(), runner, root, "")
	require.NoError(t, err)
	require.Len(t, digest.Added, 1)
	require.Equal(t, "new.go", digest.Added[0].Path)
	require.NotEmpty(t, digest.Added[0].Hash)
	require.Len(t, digest.Modified, 1)
}

func TestGitDeltaDigestHandlesRemovedAndRenamed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "renamed.go"), "package main\n")

	runner := &fakeGitRunner{repoRoot: root, responses: map[string]string{
		`[rev-parse HEAD]`: "deadbeef\n",
		`[rev-parse base123]`: "basesha\n",
		`[diff --name-status -M basesha deadbeef]`: "D\tgone.go\nR100\told_name.go\trenamed.go\n",
	}}

	digest, err := GitDeltaDigest(context.Background(), runner, root, "base123")
	require.NoError(t, err)

	var removedPaths []string
	for _, e := range digest.Removed {
		removedPaths = append(removedPaths, e.Path)
	}
	require.Contains(t, removedPaths, "gone.go")
	require.Contains(t, removedPaths, "old_name.go")

	var addedPaths []string
	for _, e := range digest.Added {
		addedPaths = append(addedPaths, e.Path)
	}
	require.Contains(t, addedPaths, "renamed.go")
}

func TestGitDeltaDigestDegradesGracefullyOnUnreadableFile(t *testing.T) {
	root := t.TempDir()
	// no file written for "missing.go"

	runner := &fakeGitRunner{repoRoot: root, responses: map[string]string{
		`[rev-parse HEAD]`: "deadbeef\n",
		fmt.Sprintf(`[diff --name-status -M %s deadbeef]`, "4b825dc642cb6eb9a060e54bf8d69288fbee4904"): "A\tmissing.go\n",
	}}

	digest, err := GitDeltaDigest(context.Background(), runner, root, "")
	require.NoError(t, err)
	require.Len(t, digest.Added, 1)
	require.Empty(t, digest.Added[0].Hash)
}

func TestContentHashIsDeterministic(t *testing.T) {
	a := contentHash([]byte("hello"))
	b := contentHash([]byte("hello"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, contentHash([]byte("world")))
}
