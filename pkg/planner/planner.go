// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"context"
	"log/slog"
	"sort"

	"github.com/rtk-project/rtk/pkg/artifact"
	"github.com/rtk-project/rtk/pkg/gitutil"
)

// pipelineVersion identifies the active ranking pipeline in the
// output trace.
const (
	pipelineGraphFirstV1 = "graph_first_v1"
	pipelineLegacyV0     = "legacy_v0"
)

// Options configures one Plan call.
type Options struct {
	RootPath            string
	CandidateCap        int
	SemanticCap         int
	MinFinalScore       float64
	ExternalSemanticCmd string
	TaskTargetsTests    bool
	Runner              gitutil.Runner // nil disables the churn signal
	NowNanos            int64
}

// Result is Stage 5's full output plus the pipeline metadata.
type Result struct {
	Selected            []Selection     `json:"selected"`
	Dropped             []Selection     `json:"dropped"`
	Budget              BudgetReport    `json:"budget"`
	Intent              Intent          `json:"intent"`
	PipelineVersion     string          `json:"pipeline_version"`
	SemanticBackendUsed SemanticBackend `json:"semantic_backend_used"`
	GraphHits           int             `json:"graph_hits"`
	SemanticHits        int             `json:"semantic_hits"`
}

var sharedChurnCache = NewChurnCache()

// Plan runs the full Stage 1-5 pipeline against a project's artifact.
// On any sub-stage failure it falls back to the simpler legacy path
//: structural score + churn, assembled against
// the same budget, reported via PipelineVersion.
func Plan(ctx context.Context, art *artifact.ProjectArtifact, task string, tokenBudget int, intentOverride IntentKind, opts Options, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}

	intent := ClassifyIntent(task)
	if intentOverride != "" {
		intent.Kind = intentOverride
	}

	churn := map[string]float64{}
	if opts.Runner != nil {
		churn = sharedChurnCache.Scores(ctx, opts.Runner)
	}

	candidateCap := opts.CandidateCap
	if candidateCap <= 0 {
		candidateCap = 60
	}
	minScore := opts.MinFinalScore
	if minScore <= 0 {
		minScore = 0.12
	}

	candidates := func() (out []*Candidate, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = recoverToError(r)
			}
		}()
		out = BuildCandidateGraph(art.Files, intent.Tags, churn, candidateCap, opts.NowNanos)
		return out, nil
	}
	cands, err := candidates()
	if err != nil {
		logger.Warn("planner.candidates.failed", "err", err)
		return legacyPlan(art, churn, tokenBudget, intent, opts.NowNanos)
	}

	semCap := opts.SemanticCap
	if semCap <= 0 || semCap > len(cands) {
		semCap = len(cands)
	}
	semanticPool := cands[:semCap]
	semHits, backend := SemanticSearch(ctx, opts.RootPath, semanticPool, intent.Tags, opts.ExternalSemanticCmd, logger)

	maxTokenCost := 1.0
	for _, c := range cands {
		if t := float64(EstimateTokens(c.File.Path, c.File.LineCount)); t > maxTokenCost {
			maxTokenCost = t
		}
	}

	graphHits, semanticHitCount := 0, 0
	var surviving []*Candidate
	for _, c := range cands {
		ComputeFeatures(c, churn, opts.NowNanos, maxTokenCost)
		graphScore := GraphScoreFromFeatures(c.Features, intent.Kind)
		c.GraphScore = graphScore
		if graphScore > 0 {
			graphHits++
		}

		hit, hasSemantic := semHits[c.File.Path]
		if hasSemantic {
			c.SemanticScore = hit.Score
			c.HasSemantic = true
			c.MatchedTerms = hit.MatchedTerms
			c.Snippet = hit.Snippet
			semanticHitCount++
		}

		c.Final = Fuse(graphScore, hit, hasSemantic)
		if c.Final < minScore && !hasSemantic {
			c.Reason = "below threshold"
			continue
		}
		surviving = append(surviving, c)
	}

	selected, dropped, report := AssembleBudget(surviving, tokenBudget, opts.TaskTargetsTests)

	return Result{
		Selected:            selected,
		Dropped:             dropped,
		Budget:              report,
		Intent:              intent,
		PipelineVersion:     pipelineGraphFirstV1,
		SemanticBackendUsed: backend,
		GraphHits:           graphHits,
		SemanticHits:        semanticHitCount,
	}
}

// PlanLegacy runs only the structural-score-plus-churn fallback
// pipeline, bypassing the candidate-graph and semantic stages
// entirely. Exposed for callers that want the simpler, faster path on
// purpose (e.g. a --legacy CLI flag) rather than only as Plan's own
// failure fallback.
func PlanLegacy(ctx context.Context, art *artifact.ProjectArtifact, task string, tokenBudget int, intentOverride IntentKind, opts Options) Result {
	intent := ClassifyIntent(task)
	if intentOverride != "" {
		intent.Kind = intentOverride
	}
	churn := map[string]float64{}
	if opts.Runner != nil {
		churn = sharedChurnCache.Scores(ctx, opts.Runner)
	}
	return legacyPlan(art, churn, tokenBudget, intent, opts.NowNanos)
}

// legacyPlan is the fail-open fallback: rank every file by structural
// score + churn and assemble against the same budget, no semantic
// stage, no candidate graph.
func legacyPlan(art *artifact.ProjectArtifact, churn map[string]float64, tokenBudget int, intent Intent, nowNanos int64) Result {
	candidates := make([]*Candidate, 0, len(art.Files))
	for i := range art.Files {
		fa := &art.Files[i]
		if isNoise(fa) {
			continue
		}
		structural := clamp01((float64(len(fa.PubSymbols)) + float64(len(fa.Imports))) / 20.0)
		final := 0.7*structural + 0.3*churn[fa.Path]
		c := &Candidate{
			File:       fa,
			Tier:       TierC,
			IsTest:     isTestFile(fa.Path),
			IsDocOrCfg: isDocOrConfig(fa.Path),
			GraphScore: final,
			Final:      final,
			EstTokens:  EstimateTokens(fa.Path, fa.LineCount),
		}
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Final > candidates[j].Final })

	selected, dropped, report := AssembleBudget(candidates, tokenBudget, false)
	return Result{
		Selected:            selected,
		Dropped:             dropped,
		Budget:              report,
		Intent:              intent,
		PipelineVersion:     pipelineLegacyV0,
		SemanticBackendUsed: BackendNone,
	}
}

func recoverToError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &plannerPanicError{value: r}
}

type plannerPanicError struct{ value interface{} }

func (e *plannerPanicError) Error() string {
	return "planner: recovered panic"
}
