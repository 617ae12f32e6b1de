// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import "strings"

// FeatureVector is Stage 4's per-candidate feature set.
type FeatureVector struct {
	StructuralRelevance float64
	ChurnScore          float64
	RecencyScore        float64
	RiskScore           float64
	TestProximity       float64 // binary, but float for dot-product weighting
	CallGraphScore      float64
	TokenCost           float64 // normalized, 1.0 at ComputeFeatures' maxTokenCost
}

// weightVector is an IntentKind's feature weighting; must sum to 1.0
// within epsilon.
type weightVector struct {
	structural, churn, recency, risk, testProximity, callGraph, tokenCost float64
}

// weightsByIntent encodes each intent's emphasis:
// Bugfix -> recency+risk; Feature -> structure+test-proximity;
// Refactor -> churn+call-graph; Incident -> recency+risk (with a
// sharper risk tilt than Bugfix); General is balanced.
var weightsByIntent = map[IntentKind]weightVector{
	IntentBugfix: {
		structural: 0.15, churn: 0.10, recency: 0.25, risk: 0.25,
		testProximity: 0.10, callGraph: 0.10, tokenCost: 0.05,
	},
	IntentFeature: {
		structural: 0.30, churn: 0.10, recency: 0.10, risk: 0.05,
		testProximity: 0.25, callGraph: 0.10, tokenCost: 0.10,
	},
	IntentRefactor: {
		structural: 0.15, churn: 0.30, recency: 0.05, risk: 0.05,
		testProximity: 0.10, callGraph: 0.25, tokenCost: 0.10,
	},
	IntentIncident: {
		structural: 0.10, churn: 0.10, recency: 0.30, risk: 0.30,
		testProximity: 0.05, callGraph: 0.10, tokenCost: 0.05,
	},
	IntentGeneral: {
		structural: 0.20, churn: 0.15, recency: 0.15, risk: 0.15,
		testProximity: 0.10, callGraph: 0.15, tokenCost: 0.10,
	},
}

const fusionGraphWeight = 0.65
const fusionSemanticWeight = 0.35

// ComputeFeatures fills in c.Features from the candidate's file record
// and the signals already attached by earlier stages.
func ComputeFeatures(c *Candidate, churn map[string]float64, nowNanos int64, maxTokenCost float64) {
	fa := c.File
	importFanIn := float64(len(fa.Imports))
	symbolDensity := float64(len(fa.PubSymbols))
	structural := clamp01((symbolDensity + importFanIn) / 20.0)

	risk := 0.0
	lowerPath := strings.ToLower(fa.Path)
	for _, lex := range riskLexicon {
		if strings.Contains(lowerPath, lex) {
			risk += 0.34
		}
	}

	testProximity := 0.0
	if c.IsTest {
		testProximity = 1
	}

	callGraph := 0.0
	if c.Tier == TierB {
		callGraph = c.GraphScore
	}

	tokens := EstimateTokens(fa.Path, fa.LineCount)
	c.EstTokens = tokens
	tokenCostNorm := 0.0
	if maxTokenCost > 0 {
		tokenCostNorm = clamp01(float64(tokens) / maxTokenCost)
	}

	c.Features = FeatureVector{
		StructuralRelevance: structural,
		ChurnScore:          churn[fa.Path],
		RecencyScore:        recencyScore(fa, nowNanos),
		RiskScore:           clamp01(risk),
		TestProximity:       testProximity,
		CallGraphScore:      callGraph,
		TokenCost:           tokenCostNorm,
	}
}

// GraphScoreFromFeatures projects the feature vector to a single
// structural/graph score for Stage 3's fusion step, using the
// intent's weight vector (confidence never enters here, only the
// discrete intent kind).
func GraphScoreFromFeatures(f FeatureVector, intent IntentKind) float64 {
	w := weightsByIntent[intent]
	score := w.structural*f.StructuralRelevance +
		w.churn*f.ChurnScore +
		w.recency*f.RecencyScore +
		w.risk*f.RiskScore +
		w.testProximity*f.TestProximity +
		w.callGraph*f.CallGraphScore +
		w.tokenCost*(1-f.TokenCost) // cheaper files get a small positive tilt
	return clamp01(score)
}

// Fuse combines graph and semantic scores at a fixed 0.65/0.35 weight
// when semantic evidence exists, falling back to the graph score alone
// otherwise.
func Fuse(graphScore float64, hit SemanticHit, hasSemantic bool) float64 {
	if !hasSemantic {
		return graphScore
	}
	return fusionGraphWeight*graphScore + fusionSemanticWeight*hit.Score
}

// tokenAlphaByExt tunes estimate_tokens's line_count multiplier per
// extension; denser systems languages (C/C++/Rust) get a higher alpha
// than typically-verbose scripting languages.
var tokenAlphaByExt = map[string]float64{
	".go":   7.0,
	".rs":   8.0,
	".c":    8.5,
	".cc":   8.5,
	".cpp":  8.5,
	".h":    7.5,
	".hpp":  7.5,
	".java": 7.0,
	".py":   6.0,
	".rb":   6.0,
	".js":   6.5,
	".jsx":  6.5,
	".ts":   6.5,
	".tsx":  6.5,
}

const defaultTokenAlpha = 6.5
const minEstimatedTokens = 100
const maxEstimatedTokens = 20000

// EstimateTokens implements the deterministic token estimator: raw_cost
// = line_count * alpha(extension) when line_count is known, clamped
// into [minEstimatedTokens, maxEstimatedTokens].
func EstimateTokens(path string, lineCount int) int {
	alpha := defaultTokenAlpha
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		if a, ok := tokenAlphaByExt[strings.ToLower(path[idx:])]; ok {
			alpha = a
		}
	}

	raw := minEstimatedTokens
	if lineCount > 0 {
		raw = int(float64(lineCount) * alpha)
	}
	if raw < minEstimatedTokens {
		raw = minEstimatedTokens
	}
	if raw > maxEstimatedTokens {
		raw = maxEstimatedTokens
	}
	return raw
}
