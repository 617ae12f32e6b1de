// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rtk-project/rtk/pkg/artifact"
	"github.com/rtk-project/rtk/pkg/freshness"
	"github.com/rtk-project/rtk/pkg/gitutil"
	"github.com/rtk-project/rtk/pkg/planner"
	"github.com/rtk-project/rtk/pkg/renderer"
	"github.com/rtk-project/rtk/pkg/scanner"
)

// Plan assembles a token-budgeted file selection for req.Task. It
// fails open on a stale or dirty cache: plan never blocks on strict
// mode, since a slightly-stale candidate set beats no context at all.
func (e *Engine) Plan(ctx context.Context, req PlanRequest) (Response, error) {
	root, err := canonicalRoot(req.ProjectRoot)
	if err != nil {
		return Response{}, err
	}
	projectID, err := e.Store.EnsureProject(ctx, root)
	if err != nil {
		return Response{}, fmt.Errorf("engine: ensure project: %w", err)
	}

	prior, err := e.Store.LoadArtifact(ctx, projectID)
	if err != nil {
		return Response{}, fmt.Errorf("engine: load artifact: %w", err)
	}

	art := prior
	eventKind := artifact.EventHit
	if scanResult, scanErr := scanner.Walk(ctx, root, scanner.Options{}, e.Logger); scanErr == nil {
		ttl := time.Duration(e.Cfg.Store.TTLSeconds) * time.Second
		class := freshness.Classify(prior, scanResult.Files, ttl, time.Now())
		if class.State != freshness.Fresh {
			if result, buildErr := e.buildIncremental(ctx, root, prior, projectID); buildErr == nil {
				art = result.Artifact
				eventKind, _ = freshness.Decide(class, false)
			} else {
				e.Logger.Warn("engine.plan.rebuild_failed", "project_id", projectID, "err", buildErr)
			}
		}
	} else {
		e.Logger.Warn("engine.plan.scan_failed", "project_id", projectID, "err", scanErr)
	}
	if art == nil {
		return Response{}, fmt.Errorf("engine: no cached artifact for %s; run explore or refresh first", root)
	}
	e.Store.RecordEvent(ctx, projectID, eventKind)

	budget := req.TokenBudget
	if budget <= 0 {
		budget = e.Cfg.Planner.TokenBudgetDefault
	}

	var runner gitutil.Runner
	if executor, err := gitutil.NewExecutor(ctx, root); err == nil {
		runner = executor
	}

	opts := planner.Options{
		RootPath:            root,
		CandidateCap:        e.Cfg.Planner.CandidateCap,
		SemanticCap:         e.Cfg.Planner.SemanticCap,
		MinFinalScore:       e.Cfg.Planner.MinFinalScore,
		ExternalSemanticCmd: e.Cfg.Planner.SemanticHost,
		TaskTargetsTests:    looksLikeTestTask(req.Task),
		Runner:              runner,
		NowNanos:            time.Now().UnixNano(),
	}

	var result planner.Result
	if req.Legacy {
		result = planner.PlanLegacy(ctx, art, req.Task, budget, req.Intent, opts)
	} else {
		result = planner.Plan(ctx, art, req.Task, budget, req.Intent, opts, e.Logger)
	}

	env := renderer.Envelope{
		Command:         "plan",
		ProjectRoot:     root,
		ArtifactVersion: artifact.Version,
		CacheStatus:     eventKind,
		Freshness:       freshness.Fresh,
		Stats: renderer.Stats{
			FileCount: len(art.Files),
		},
		BuiltAt: art.UpdatedAt,
	}

	return Response{Envelope: env, Plan: &result}, nil
}
