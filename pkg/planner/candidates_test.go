// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtk-project/rtk/pkg/artifact"
)

func sampleFiles() []artifact.FileArtifact {
	return []artifact.FileArtifact{
		{
			Path: "pkg/auth/login.go", Language: "go", LineCount: 80,
			PubSymbols: []artifact.SymbolRecord{{Kind: artifact.SymbolFunction, Name: "Login", Visibility: artifact.VisibilityPublic}},
		},
		{
			Path: "pkg/auth/session.go", Language: "go", LineCount: 40,
			Imports: []string{"login"},
		},
		{
			Path: "pkg/unrelated/widget.go", Language: "go", LineCount: 200,
			PubSymbols: []artifact.SymbolRecord{{Kind: artifact.SymbolFunction, Name: "New", Visibility: artifact.VisibilityPublic}},
			MtimeNanos: 5_000_000_000,
		},
		{Path: "README.md", LineCount: 2},
		{Path: "tiny_marker.go", LineCount: 1},
	}
}

func TestBuildCandidateGraphSeedsOnLexicalOverlap(t *testing.T) {
	cands := BuildCandidateGraph(sampleFiles(), []string{"login"}, nil, 10, 10_000_000_000)

	var seed *Candidate
	for _, c := range cands {
		if c.File.Path == "pkg/auth/login.go" {
			seed = c
		}
	}
	require.NotNil(t, seed)
	require.Equal(t, TierA, seed.Tier)
}

func TestBuildCandidateGraphIncludesImportNeighborAsTierB(t *testing.T) {
	cands := BuildCandidateGraph(sampleFiles(), []string{"login"}, nil, 10, 10_000_000_000)

	var neighbor *Candidate
	for _, c := range cands {
		if c.File.Path == "pkg/auth/session.go" {
			neighbor = c
		}
	}
	require.NotNil(t, neighbor)
	require.Equal(t, TierB, neighbor.Tier)
}

func TestBuildCandidateGraphExcludesNoiseFiles(t *testing.T) {
	cands := BuildCandidateGraph(sampleFiles(), []string{"login"}, nil, 10, 10_000_000_000)
	for _, c := range cands {
		require.NotEqual(t, "tiny_marker.go", c.File.Path)
	}
}

func TestBuildCandidateGraphFallsBackToTierCWhenNoTags(t *testing.T) {
	cands := BuildCandidateGraph(sampleFiles(), nil, map[string]float64{"pkg/unrelated/widget.go": 0.9}, 10, 10_000_000_000)
	require.NotEmpty(t, cands)
	for _, c := range cands {
		require.Equal(t, TierC, c.Tier)
	}
}

func TestBuildCandidateGraphRespectsCap(t *testing.T) {
	cands := BuildCandidateGraph(sampleFiles(), nil, nil, 2, 10_000_000_000)
	require.LessOrEqual(t, len(cands), 2)
}

func TestRecencyScoreDecaysWithAgeAndFloorsAtFivePercent(t *testing.T) {
	fa := &artifact.FileArtifact{MtimeNanos: 1_000_000_000}
	now := fa.MtimeNanos + int64(365*24*60*60*1e9) // one year later
	require.InDelta(t, 0.05, recencyScore(fa, now), 0.05)

	fresh := recencyScore(fa, fa.MtimeNanos)
	require.Equal(t, 1.0, fresh)
}

func TestIsNoiseExcludesTinyImportlessSymbollessFiles(t *testing.T) {
	require.True(t, isNoise(&artifact.FileArtifact{Path: "x.go", LineCount: 3}))
	require.False(t, isNoise(&artifact.FileArtifact{Path: "x.go", LineCount: 3, Imports: []string{"fmt"}}))
}
