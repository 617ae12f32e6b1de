// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"fmt"

	"github.com/rtk-project/rtk/pkg/artifact"
)

// Refresh forces an unconditional rebuild of the cached artifact,
// regardless of its current freshness classification.
func (e *Engine) Refresh(ctx context.Context, req RefreshRequest) (Response, error) {
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

	result, err := e.buildIncremental(ctx, root, prior, projectID)
	if err != nil {
		return Response{}, err
	}
	e.Store.RecordEvent(ctx, projectID, artifact.EventRefreshed)

	env := renderEnvelope("refresh", root, artifact.EventRefreshed, result.Artifact, result.Stats)
	return Response{Envelope: env}, nil
}
