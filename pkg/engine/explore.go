// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"fmt"
	"time"

	"path/filepath"

	"github.com/rtk-project/rtk/pkg/artifact"
	"github.com/rtk-project/rtk/pkg/extractor"
	"github.com/rtk-project/rtk/pkg/freshness"
	"github.com/rtk-project/rtk/pkg/indexer"
	"github.com/rtk-project/rtk/pkg/indexlog"
	"github.com/rtk-project/rtk/pkg/renderer"
	"github.com/rtk-project/rtk/pkg/scanner"
)

// Explore returns a rendered context slice for req.ProjectRoot,
// classifying the cached artifact's freshness and rebuilding it
// (STALE/DIRTY) before rendering. In strict mode, a STALE or DIRTY
// cache surfaces an error for this request without ever rebuilding
// or mutating the store.
func (e *Engine) Explore(ctx context.Context, req ExploreRequest) (Response, error) {
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

	scanResult, err := scanner.Walk(ctx, root, scanner.Options{}, e.Logger)
	if err != nil {
		return Response{}, fmt.Errorf("engine: scan: %w", err)
	}

	ttl := time.Duration(e.Cfg.Store.TTLSeconds) * time.Second
	class := freshness.Classify(prior, scanResult.Files, ttl, time.Now())

	strict := e.Cfg.Features.Strict
	if req.Strict != nil {
		strict = *req.Strict
	}
	eventKind, err := freshness.Decide(class, strict)
	if err != nil {
		return Response{}, err
	}

	art := prior
	var digest *artifact.ChangeDigest
	stats := renderer.Stats{
		FileCount:     len(scanResult.Files),
		TotalBytes:    sumBytes(scanResult.Files),
		ReusedEntries: len(scanResult.Files),
	}

	if class.State == freshness.Fresh {
		if touchErr := e.Store.Touch(ctx, projectID); touchErr != nil {
			e.Logger.Warn("engine.explore.touch_failed", "project_id", projectID, "err", touchErr)
		}
	} else {
		result, buildErr := e.buildIncremental(ctx, root, prior, projectID)
		if buildErr != nil {
			return Response{}, buildErr
		}
		art = result.Artifact
		digest = &result.Digest
		stats.ReusedEntries = result.Stats.FilesReused
		stats.RehashedEntries = result.Stats.FilesChanged
	}

	e.Store.RecordEvent(ctx, projectID, eventKind)

	if art == nil {
		art = &artifact.ProjectArtifact{ArtifactVersion: artifact.Version}
	}

	renderReq := renderer.Request{
		QueryType: req.QueryType,
		Detail:    req.Detail,
		Profile:   req.Profile,
		Mask:      featureMask(e.Cfg),
	}
	rendered := renderer.Render(art, digest, renderReq)

	env := renderer.Envelope{
		Command:         "explore",
		ProjectRoot:     root,
		ArtifactVersion: artifact.Version,
		CacheStatus:     eventKind,
		Freshness:       class.State,
		Stats:           stats,
		BuiltAt:         art.UpdatedAt,
	}

	return Response{Envelope: env.Slim(req.Profile), Context: &rendered}, nil
}

// buildIncremental runs one incremental index build and persists the
// result, wiring the reverse-edge cascade lookup to the store when
// cascade invalidation is enabled.
func (e *Engine) buildIncremental(ctx context.Context, root string, prior *artifact.ProjectArtifact, projectID string) (*indexer.Result, error) {
	opts := indexer.Options{
		Limits: extractor.Limits{
			MaxSymbolsPerFile: e.Cfg.Store.SymbolsPerFileCap,
			MaxImportsPerFile: e.Cfg.Store.ImportsPerFileCap,
			MaxSignatureWidth: extractor.DefaultLimits.MaxSignatureWidth,
		},
	}
	if e.Cfg.Features.Cascade {
		opts.ReverseLookup = func(ctx context.Context, targets []string) ([]string, error) {
			return e.Store.ReverseEdges(ctx, projectID, targets)
		}
	}

	result, err := e.Indexer.BuildIncremental(ctx, root, prior, opts)
	if err != nil {
		return nil, fmt.Errorf("engine: build: %w", err)
	}
	if err := e.Store.StoreArtifact(ctx, projectID, result.Artifact, result.Edges); err != nil {
		return nil, fmt.Errorf("engine: persist artifact: %w", err)
	}

	dotRTKDir := filepath.Join(root, ".rtk")
	indexlog.Append(dotRTKDir, fmt.Sprintf(
		"rebuild complete: %d changed, %d reused, %d files total",
		result.Stats.FilesChanged, result.Stats.FilesReused, len(result.Artifact.Files)))

	if evicted, pruneErr := e.Store.Prune(ctx, e.Cfg.Store.MaxProjects); pruneErr != nil {
		e.Logger.Warn("engine.build.prune_failed", "err", pruneErr)
	} else if evicted > 0 {
		indexlog.Append(dotRTKDir, fmt.Sprintf("evicted %d stale project(s) over max_projects", evicted))
	}

	return result, nil
}
