// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"math"
	"sort"
	"strings"

	"github.com/rtk-project/rtk/pkg/artifact"
)

// Tier is the candidate-graph provenance.
type Tier string

const (
	TierA Tier = "seed"          // lexical match against task tags
	TierB Tier = "neighbor"      // 1-hop from a Tier-A file
	TierC Tier = "fallback"      // recency + churn, avoids starvation
)

// Candidate is one file under consideration, accumulating signal
// across stages.
type Candidate struct {
	File       *artifact.FileArtifact
	Tier       Tier
	IsTest     bool
	IsDocOrCfg bool

	GraphScore    float64
	SemanticScore float64
	HasSemantic   bool
	MatchedTerms  []string
	Snippet       string

	Features FeatureVector
	Final    float64
	EstTokens int
	Reason    string // trace string: "admitted", "below threshold", "over budget", "noise-filtered"
}

// BuildCandidateGraph runs Stage 2: seeds (Tier A) by lexical overlap
// with task tags, neighbors (Tier B) by import/call adjacency to a
// seed, and a recency+churn fallback (Tier C) so A/B starvation never
// empties the candidate set. A noise filter runs before the cap.
func BuildCandidateGraph(files []artifact.FileArtifact, tags []string, churn map[string]float64, cap int, nowNanos int64) []*Candidate {
	byPath := make(map[string]*artifact.FileArtifact, len(files))
	for i := range files {
		byPath[files[i].Path] = &files[i]
	}

	seedSet := make(map[string]bool)
	candidates := make(map[string]*Candidate)

	for i := range files {
		fa := &files[i]
		if isNoise(fa) {
			continue
		}
		boost := lexicalOverlap(fa, tags)
		if boost > 0 {
			seedSet[fa.Path] = true
			candidates[fa.Path] = &Candidate{File: fa, Tier: TierA, GraphScore: boost, IsTest: isTestFile(fa.Path), IsDocOrCfg: isDocOrConfig(fa.Path)}
		}
	}

	// Tier B: 1-hop neighbors - files that import a seed's module stem,
	// or whose own module stem is imported by a seed.
	seedStems := make(map[string]bool, len(seedSet))
	for path := range seedSet {
		seedStems[moduleStem(path)] = true
	}
	for i := range files {
		fa := &files[i]
		if _, already := candidates[fa.Path]; already {
			continue
		}
		if isNoise(fa) {
			continue
		}
		neighborStrength := 0.0
		for _, imp := range fa.Imports {
			if seedStems[lastSeg(imp)] {
				neighborStrength += 0.3
			}
		}
		if seedStems[moduleStem(fa.Path)] {
			neighborStrength += 0.2
		}
		if neighborStrength > 0 {
			isTest := isTestFile(fa.Path)
			isDocCfg := isDocOrConfig(fa.Path)
			// Same noise filter as Tier A: a test/doc/config file is
			// only admitted on its own adjacency if the task tags also
			// overlap it; otherwise it's left for the Tier C fallback
			// pool rather than let mere import adjacency (a test
			// importing the package it exercises, extremely common)
			// smuggle it past the diversity cap.
			if (isTest || isDocCfg) && lexicalOverlap(fa, tags) == 0 {
				continue
			}
			if neighborStrength > 1 {
				neighborStrength = 1
			}
			candidates[fa.Path] = &Candidate{File: fa, Tier: TierB, GraphScore: neighborStrength, IsTest: isTest, IsDocOrCfg: isDocCfg}
		}
	}

	// Tier C: recency + churn fallback, always considered so A/B
	// starvation never empties the set.
	type recEntry struct {
		path  string
		score float64
	}
	var fallback []recEntry
	for i := range files {
		fa := &files[i]
		if _, already := candidates[fa.Path]; already {
			continue
		}
		if isNoise(fa) {
			continue
		}
		score := 0.5*recencyScore(fa, nowNanos) + 0.5*churn[fa.Path]
		fallback = append(fallback, recEntry{fa.Path, score})
	}
	sort.Slice(fallback, func(i, j int) bool { return fallback[i].score > fallback[j].score })

	remaining := cap - len(candidates)
	for i := 0; i < len(fallback) && i < remaining; i++ {
		fa := byPath[fallback[i].path]
		candidates[fa.Path] = &Candidate{File: fa, Tier: TierC, GraphScore: fallback[i].score, IsTest: isTestFile(fa.Path), IsDocOrCfg: isDocOrConfig(fa.Path)}
	}

	out := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File.Path < out[j].File.Path })

	if len(out) > cap {
		out = out[:cap]
	}
	return out
}

// isNoise excludes internal lock sidecars and tiny marker files: line
// count <= 5 with no imports and no symbols.
func isNoise(fa *artifact.FileArtifact) bool {
	if strings.HasSuffix(fa.Path, ".lock") || strings.Contains(fa.Path, ".rtk-lock") {
		return true
	}
	return fa.LineCount <= 5 && len(fa.Imports) == 0 && len(fa.PubSymbols) == 0
}

// lexicalOverlap boosts a candidate when its path, module stem, or an
// exported symbol name overlaps an extracted task tag.
func lexicalOverlap(fa *artifact.FileArtifact, tags []string) float64 {
	if len(tags) == 0 {
		return 0
	}
	lowerPath := strings.ToLower(fa.Path)
	stem := strings.ToLower(moduleStem(fa.Path))

	var hits int
	for _, tag := range tags {
		if strings.Contains(lowerPath, tag) || stem == tag {
			hits++
			continue
		}
		for _, sym := range fa.PubSymbols {
			if strings.EqualFold(sym.Name, tag) {
				hits++
				break
			}
		}
	}
	if hits == 0 {
		return 0
	}
	score := 0.4 + 0.2*float64(hits)
	if score > 1 {
		score = 1
	}
	return score
}

func isTestFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "_test.") || strings.Contains(lower, ".test.") || strings.Contains(lower, ".spec.") || strings.Contains(lower, "test_")
}

func isDocOrConfig(path string) bool {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".rst") || strings.HasSuffix(lower, ".txt") {
		return true
	}
	configExt := []string{".toml", ".yaml", ".yml", ".json", ".ini", ".cfg"}
	for _, ext := range configExt {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// recencyScore is monotone in most-recent mtime: an exponential decay
// with a 14-day half-life, floored at 0.05 so ancient files never
// reach zero.
func recencyScore(fa *artifact.FileArtifact, nowNanos int64) float64 {
	const nanosPerDay = 24.0 * 60 * 60 * 1e9
	const halfLifeDays = 14.0

	if fa.MtimeNanos <= 0 || nowNanos <= fa.MtimeNanos {
		return 1
	}
	ageDays := float64(nowNanos-fa.MtimeNanos) / nanosPerDay
	score := math.Exp(-ageDays * math.Ln2 / halfLifeDays)
	if score < 0.05 {
		return 0.05
	}
	return score
}

func moduleStem(path string) string {
	noExt := path
	if idx := strings.LastIndex(path, "."); idx >= 0 && !strings.Contains(path[idx:], "/") {
		noExt = path[:idx]
	}
	return lastSeg(noExt)
}

func lastSeg(s string) string {
	for _, sep := range []string{"::", ".", "/"} {
		if idx := strings.LastIndex(s, sep); idx >= 0 {
			s = s[idx+len(sep):]
		}
	}
	return s
}
