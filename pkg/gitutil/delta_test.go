// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package gitutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	responses map[string]string
	repoRoot  string
}

func (f *fakeRunner) RepoRoot() string { return f.repoRoot }

func (f *fakeRunner) Run(_ context.Context, args ...string) (string, error) {
	key := fmt.Sprintf("%v", args)
	if out, ok := f.responses[key]; ok {
		return out, nil
	}
	return "", fmt.Errorf("fakeRunner: unexpected args %v", args)
}

func TestDetectClassifiesAddedModifiedRemovedRenamed(t *testing.T) {
	r := &fakeRunner{responses: map[string]string{
		`[rev-parse HEAD]`:                  "headsha123\n",
		`[rev-parse base]`:                  "basesha456\n",
		`[diff --name-status -M basesha456 headsha123]`: "A\tnew.go\nM\tmain.go\nD\told.go\nR100\trenamed_from.go\trenamed_to.go\n",
	}}

	delta, err := Detect(context.Background(), r, "base", "")
	require.NoError(t, err)
	require.Equal(t, []string{"new.go"}, delta.Added)
	require.Equal(t, []string{"main.go"}, delta.Modified)
	require.Equal(t, []string{"old.go"}, delta.Removed)
	require.Equal(t, "renamed_to.go", delta.Renamed["renamed_from.go"])
}

func TestDetectWithNoBaseUsesEmptyTree(t *testing.T) {
	r := &fakeRunner{responses: map[string]string{
		`[rev-parse HEAD]`: "headsha123\n",
		fmt.Sprintf(`[diff --name-status -M %s headsha123]`, emptyTreeSHA): "A\tmain.go\n",
	}}

	delta, err := Detect(context.Background(), r, "", "")
	require.NoError(t, err)
	require.Equal(t, emptyTreeSHA, delta.BaseSHA)
	require.Equal(t, []string{"main.go"}, delta.Added)
}

func TestDeltaAllUnionsAndSorts(t *testing.T) {
	delta := &Delta{
		Added:    []string{"z.go"},
		Modified: []string{"a.go"},
		Renamed:  map[string]string{"old.go": "new.go"},
	}
	require.Equal(t, []string{"a.go", "new.go", "old.go", "z.go"}, delta.All())
}

func TestChurnCountsPerPathOccurrences(t *testing.T) {
	r := &fakeRunner{responses: map[string]string{
		`[log --all --name-only --pretty=format:]`: "main.go\nutil.go\n\nmain.go\n",
	}}
	counts, err := Churn(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, 2, counts["main.go"])
	require.Equal(t, 1, counts["util.go"])
}
