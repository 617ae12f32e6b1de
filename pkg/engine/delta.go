// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"fmt"

	"github.com/rtk-project/rtk/pkg/artifact"
	"github.com/rtk-project/rtk/pkg/freshness"
	"github.com/rtk-project/rtk/pkg/gitutil"
	"github.com/rtk-project/rtk/pkg/indexer"
	"github.com/rtk-project/rtk/pkg/renderer"
	"github.com/rtk-project/rtk/pkg/scanner"
)

// Delta returns a live (added, modified, removed) digest, never
// persisted: against the previously stored artifact when req.Since is
// empty, or against a named git revision when set (git-delta mode).
func (e *Engine) Delta(ctx context.Context, req DeltaRequest) (Response, error) {
	root, err := canonicalRoot(req.ProjectRoot)
	if err != nil {
		return Response{}, err
	}
	projectID, err := e.Store.EnsureProject(ctx, root)
	if err != nil {
		return Response{}, fmt.Errorf("engine: ensure project: %w", err)
	}

	var digest artifact.ChangeDigest
	if req.Since != "" {
		if !e.Cfg.Features.GitDelta {
			return Response{}, fmt.Errorf("engine: git-delta mode is disabled")
		}
		runner, err := gitutil.NewExecutor(ctx, root)
		if err != nil {
			return Response{}, fmt.Errorf("engine: delta since %q requires a git repository: %w", req.Since, err)
		}
		digest, err = indexer.GitDeltaDigest(ctx, runner, root, req.Since)
		if err != nil {
			return Response{}, err
		}
	} else {
		prior, err := e.Store.LoadArtifact(ctx, projectID)
		if err != nil {
			return Response{}, fmt.Errorf("engine: load artifact: %w", err)
		}
		scanResult, err := scanner.Walk(ctx, root, scanner.Options{}, e.Logger)
		if err != nil {
			return Response{}, fmt.Errorf("engine: scan: %w", err)
		}
		digest = diffDigest(prior, scanResult.Files)
	}

	e.Store.RecordEvent(ctx, projectID, artifact.EventDelta)

	env := renderer.Envelope{
		Command:         "delta",
		ProjectRoot:     root,
		ArtifactVersion: artifact.Version,
		CacheStatus:     artifact.EventDelta,
		Freshness:       freshness.Miss, // deltas are never cached; freshness doesn't apply
	}
	rendered := renderer.Context{ChangeDigest: &digest}
	return Response{Envelope: env, Context: &rendered}, nil
}
