// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeChurnRunner struct {
	repoRoot  string
	responses map[string]string
}

func (f *fakeChurnRunner) RepoRoot() string { return f.repoRoot }

func (f *fakeChurnRunner) Run(_ context.Context, args ...string) (string, error) {
	key := fmt.Sprintf("%v", args)
	if out, ok := f.responses[key]; ok {
		return out, nil
	}
	return "", fmt.Errorf("fakeChurnRunner: unexpected args %v", args)
}

func TestChurnCacheNormalizesAndCachesPerHead(t *testing.T) {
	runner := &fakeChurnRunner{repoRoot: "/repo", responses: map[string]string{
		`[rev-parse HEAD]`:                "abc123\n",
		`[log --all --name-only --pretty=format:]`: "a.go\nb.go\na.go\na.go\n",
	}}

	cache := NewChurnCache()
	scores := cache.Scores(context.Background(), runner)
	require.Equal(t, 1.0, scores["a.go"])
	require.Less(t, scores["b.go"], scores["a.go"])

	// Second call hits the cache; if it re-invoked git it would error
	// since "log" isn't repeated in responses beyond what's mapped, but
	// map lookups are idempotent here, so assert equality instead.
	again := cache.Scores(context.Background(), runner)
	require.Equal(t, scores, again)
}

func TestChurnCacheDegradesGracefullyOnGitFailure(t *testing.T) {
	runner := &fakeChurnRunner{repoRoot: "/repo", responses: map[string]string{}}
	cache := NewChurnCache()
	scores := cache.Scores(context.Background(), runner)
	require.Empty(t, scores)
}

func TestNormalizeChurnBoundsScoresInZeroToOne(t *testing.T) {
	scores := normalizeChurn(map[string]int{"a": 10, "b": 1, "c": 0})
	require.Equal(t, 1.0, scores["a"])
	require.Greater(t, scores["b"], 0.0)
	require.Less(t, scores["b"], 1.0)
	require.NotContains(t, scores, "c")
}
