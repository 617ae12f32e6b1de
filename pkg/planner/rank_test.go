// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtk-project/rtk/pkg/artifact"
)

func TestWeightVectorsSumToOne(t *testing.T) {
	for kind, w := range weightsByIntent {
		sum := w.structural + w.churn + w.recency + w.risk + w.testProximity + w.callGraph + w.tokenCost
		require.InDelta(t, 1.0, sum, 1e-9, "intent %s weights must sum to 1.0", kind)
	}
}

func TestComputeFeaturesPopulatesAllSignals(t *testing.T) {
	fa := &artifact.FileArtifact{
		Path:      "pkg/auth/token.go",
		LineCount: 100,
		Imports:   []string{"crypto"},
		PubSymbols: []artifact.SymbolRecord{
			{Kind: artifact.SymbolFunction, Name: "Sign"},
		},
		MtimeNanos: 1_000_000_000,
	}
	c := &Candidate{File: fa, Tier: TierB, GraphScore: 0.4}
	churn := map[string]float64{"pkg/auth/token.go": 0.6}

	ComputeFeatures(c, churn, fa.MtimeNanos, 1000)

	require.Greater(t, c.Features.StructuralRelevance, 0.0)
	require.Equal(t, 0.6, c.Features.ChurnScore)
	require.Equal(t, 1.0, c.Features.RecencyScore)
	require.Greater(t, c.Features.RiskScore, 0.0) // "token" is in the risk lexicon
	require.Equal(t, 0.4, c.Features.CallGraphScore)
	require.Greater(t, c.EstTokens, 0)
}

func TestGraphScoreFromFeaturesWeightsByIntent(t *testing.T) {
	f := FeatureVector{StructuralRelevance: 1.0}
	featureScore := GraphScoreFromFeatures(f, IntentFeature)
	bugfixScore := GraphScoreFromFeatures(f, IntentBugfix)
	require.Greater(t, featureScore, bugfixScore)
}

func TestFuseFallsBackToGraphScoreWithoutSemanticEvidence(t *testing.T) {
	require.Equal(t, 0.7, Fuse(0.7, SemanticHit{}, false))
}

func TestFuseBlendsGraphAndSemanticScores(t *testing.T) {
	got := Fuse(0.8, SemanticHit{Score: 0.2}, true)
	require.InDelta(t, 0.65*0.8+0.35*0.2, got, 1e-9)
}

func TestEstimateTokensUsesPerExtensionAlphaAndClamps(t *testing.T) {
	require.Equal(t, 700, EstimateTokens("main.go", 100))
	require.Equal(t, 850, EstimateTokens("main.c", 100))
	require.Equal(t, minEstimatedTokens, EstimateTokens("empty.go", 1))
	require.Equal(t, maxEstimatedTokens, EstimateTokens("huge.go", 100000))
}
