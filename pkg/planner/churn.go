// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"context"
	"math"
	"sync"

	"github.com/rtk-project/rtk/pkg/gitutil"
)

// ChurnCache is an in-process, mutex-guarded cache of log-normalized
// per-path churn scores, keyed by HEAD SHA so it stays correct across
// commits without needing external invalidation.
type ChurnCache struct {
	mu     sync.Mutex
	byHead map[string]map[string]float64
}

// NewChurnCache constructs an empty cache.
func NewChurnCache() *ChurnCache {
	return &ChurnCache{byHead: make(map[string]map[string]float64)}
}

// Scores returns the log-normalized churn map for the repository at
// runner's current HEAD, computing and caching it on first use for
// that HEAD. A poisoned/unreadable repo degrades to an empty map
// (fail-open) rather than propagating an error to the caller.
func (c *ChurnCache) Scores(ctx context.Context, runner gitutil.Runner) map[string]float64 {
	head, err := gitutil.HeadSHA(ctx, runner)
	if err != nil {
		return map[string]float64{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if scores, ok := c.byHead[head]; ok {
		return scores
	}

	counts, err := gitutil.Churn(ctx, runner)
	if err != nil {
		c.byHead[head] = map[string]float64{}
		return c.byHead[head]
	}

	scores := normalizeChurn(counts)
	c.byHead[head] = scores
	// Bound unbounded growth across long-lived daemon processes: keep
	// only the current HEAD's entry once a new one is computed.
	for k := range c.byHead {
		if k != head {
			delete(c.byHead, k)
		}
	}
	return scores
}

// normalizeChurn applies ln(count) / ln(max_count) so a file that
// changes many times is bounded in (0, 1].
func normalizeChurn(counts map[string]int) map[string]float64 {
	maxCount := 0
	for _, n := range counts {
		if n > maxCount {
			maxCount = n
		}
	}
	scores := make(map[string]float64, len(counts))
	if maxCount <= 1 {
		for path, n := range counts {
			if n > 0 {
				scores[path] = 1
			}
		}
		return scores
	}
	logMax := math.Log(float64(maxCount))
	for path, n := range counts {
		if n <= 0 {
			continue
		}
		scores[path] = math.Log(float64(n)) / logMax
	}
	return scores
}
