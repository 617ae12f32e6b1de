// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"github.com/rtk-project/rtk/pkg/planner"
	"github.com/rtk-project/rtk/pkg/renderer"
)

// ExploreRequest asks for a rendered context slice of a project,
// rebuilding the cached artifact first if it's STALE or DIRTY.
type ExploreRequest struct {
	ProjectRoot string
	QueryType   renderer.QueryType
	Detail      renderer.Detail
	Profile     renderer.Profile
	// Strict overrides the configured strict-mode flag for this
	// request only. Nil means "use the configured default".
	Strict *bool
}

// PlanRequest asks for a token-budgeted file selection for task.
type PlanRequest struct {
	ProjectRoot string
	Task        string
	TokenBudget int
	// Intent overrides automatic intent classification. Empty string
	// means "classify from Task".
	Intent planner.IntentKind
	// Legacy forces the structural-score-plus-churn fallback pipeline
	// instead of the full candidate-graph pipeline.
	Legacy bool
}

// DeltaRequest asks for the (added, modified, removed) triple since
// either the previously stored artifact (Since == "") or a named git
// revision (Since != "", requires Features.GitDelta and a git repo).
type DeltaRequest struct {
	ProjectRoot string
	Since       string
}

// RefreshRequest forces an unconditional rebuild regardless of the
// artifact's current freshness state.
type RefreshRequest struct {
	ProjectRoot string
}

// Response is the combined envelope-plus-payload returned by every
// entry point. Only the field relevant to the call is populated.
type Response struct {
	Envelope renderer.Envelope `json:"envelope"`
	Context  *renderer.Context `json:"context,omitempty"`
	Plan     *planner.Result   `json:"plan,omitempty"`
}
