// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtk-project/rtk/pkg/artifact"
)

func TestRunBuiltinSemanticScoresByTermOverlap(t *testing.T) {
	candidates := []*Candidate{
		{File: &artifact.FileArtifact{
			Path: "pkg/auth/login.go",
			PubSymbols: []artifact.SymbolRecord{
				{Kind: artifact.SymbolFunction, Name: "Login"},
			},
		}},
		{File: &artifact.FileArtifact{Path: "pkg/unrelated/widget.go"}},
	}

	hits := runBuiltinSemantic(candidates, []string{"login", "session"})
	require.Contains(t, hits, "pkg/auth/login.go")
	require.NotContains(t, hits, "pkg/unrelated/widget.go")
	require.Equal(t, 0.5, hits["pkg/auth/login.go"].Score)
}

func TestRunBuiltinSemanticReturnsEmptyWithoutTags(t *testing.T) {
	candidates := []*Candidate{{File: &artifact.FileArtifact{Path: "a.go"}}}
	hits := runBuiltinSemantic(candidates, nil)
	require.Empty(t, hits)
}

func TestParseRgJSONAggregatesMatchedTermsPerPath(t *testing.T) {
	output := []byte(
		`{"type":"match","data":{"path":{"text":"a.go"},"lines":{"text":"func login() {}"}}}` + "\n" +
			`{"type":"match","data":{"path":{"text":"a.go"},"lines":{"text":"session token here"}}}` + "\n" +
			`{"type":"begin","data":{"path":{"text":"a.go"}}}` + "\n",
	)

	hits := parseRgJSON(output, []string{"login", "session"})
	require.Len(t, hits["a.go"].MatchedTerms, 2)
	require.Equal(t, 1.0, hits["a.go"].Score)
}

func TestContainsTerm(t *testing.T) {
	require.True(t, containsTerm([]string{"a", "b"}, "b"))
	require.False(t, containsTerm([]string{"a", "b"}, "c"))
}

func TestEscapeRegexTermsQuotesMetacharacters(t *testing.T) {
	out := escapeRegexTerms([]string{"a.b", "c+d"})
	require.Equal(t, []string{`a\.b`, `c\+d`}, out)
}

func TestClamp01BoundsToUnitInterval(t *testing.T) {
	require.Equal(t, 0.0, clamp01(-1))
	require.Equal(t, 1.0, clamp01(2))
	require.Equal(t, 0.5, clamp01(0.5))
}
