// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyIntentDetectsBugfix(t *testing.T) {
	intent := ClassifyIntent("fix the crash when parsing a broken config file")
	require.Equal(t, IntentBugfix, intent.Kind)
}

func TestClassifyIntentDetectsFeature(t *testing.T) {
	intent := ClassifyIntent("implement a new feature to add webhook support")
	require.Equal(t, IntentFeature, intent.Kind)
}

func TestClassifyIntentDetectsIncidentOverBugfixOnTieBreak(t *testing.T) {
	intent := ClassifyIntent("production outage, critical incident, sev1")
	require.Equal(t, IntentIncident, intent.Kind)
	require.Equal(t, RiskHigh, intent.Risk)

	tie := ClassifyIntent("outage crash")
	require.Equal(t, IntentIncident, tie.Kind)
}

func TestClassifyIntentDefaultsToGeneralForEmptyTask(t *testing.T) {
	intent := ClassifyIntent("")
	require.Equal(t, IntentGeneral, intent.Kind)
	require.InDelta(t, 0.2, intent.Confidence, 1e-9)
}

func TestClassifyIntentConfidenceIsFlooredAndCapped(t *testing.T) {
	low := ClassifyIntent("the and of")
	require.GreaterOrEqual(t, low.Confidence, 0.2)

	high := ClassifyIntent("bug fix bug fix crash crash panic panic exception exception error error")
	require.LessOrEqual(t, high.Confidence, 0.95)
}

func TestClassifyIntentExtractsRiskLexiconTags(t *testing.T) {
	intent := ClassifyIntent("update the auth token handling and payment flow")
	require.Equal(t, RiskHigh, intent.Risk)
}

func TestClassifyIntentStripsStopWords(t *testing.T) {
	intent := ClassifyIntent("the quick fix for the bug")
	require.NotContains(t, intent.Tags, "the")
	require.NotContains(t, intent.Tags, "for")
}
