// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package freshness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rtk-project/rtk/pkg/artifact"
	"github.com/rtk-project/rtk/pkg/scanner"
)

func sampleArtifact(updatedAt time.Time) *artifact.ProjectArtifact {
	return &artifact.ProjectArtifact{
		ArtifactVersion: artifact.Version,
		UpdatedAt:       updatedAt,
		Files: []artifact.FileArtifact{
			{Path: "main.go", SizeBytes: 100, MtimeNanos: 1000},
			{Path: "util.go", SizeBytes: 50, MtimeNanos: 2000},
		},
	}
}

func TestClassifyFreshWhenNothingChangedAndWithinTTL(t *testing.T) {
	now := time.Unix(10_000, 0)
	art := sampleArtifact(now.Add(-time.Minute))
	current := []scanner.Entry{
		{Path: "main.go", SizeBytes: 100, MtimeNanos: 1000},
		{Path: "util.go", SizeBytes: 50, MtimeNanos: 2000},
	}

	c := Classify(art, current, 5*time.Minute, now)
	require.Equal(t, Fresh, c.State)
	require.Empty(t, c.DirtyPaths)
}

func TestClassifyStaleWhenAgeExceedsTTLButMetadataUnchanged(t *testing.T) {
	now := time.Unix(10_000, 0)
	art := sampleArtifact(now.Add(-time.Hour))
	current := []scanner.Entry{
		{Path: "main.go", SizeBytes: 100, MtimeNanos: 1000},
		{Path: "util.go", SizeBytes: 50, MtimeNanos: 2000},
	}

	c := Classify(art, current, 5*time.Minute, now)
	require.Equal(t, Stale, c.State)
}

func TestClassifyDirtyWhenFileMetadataDiffers(t *testing.T) {
	now := time.Unix(10_000, 0)
	art := sampleArtifact(now.Add(-time.Minute))
	current := []scanner.Entry{
		{Path: "main.go", SizeBytes: 999, MtimeNanos: 1000}, // size changed
		{Path: "util.go", SizeBytes: 50, MtimeNanos: 2000},
	}

	c := Classify(art, current, 5*time.Minute, now)
	require.Equal(t, Dirty, c.State)
	require.Contains(t, c.DirtyPaths, "main.go")
}

func TestClassifyDirtyTakesPrecedenceOverStale(t *testing.T) {
	now := time.Unix(10_000, 0)
	art := sampleArtifact(now.Add(-time.Hour)) // also past TTL
	current := []scanner.Entry{
		{Path: "main.go", SizeBytes: 999, MtimeNanos: 1000},
		{Path: "util.go", SizeBytes: 50, MtimeNanos: 2000},
	}

	c := Classify(art, current, 5*time.Minute, now)
	require.Equal(t, Dirty, c.State)
}

func TestClassifyDirtyOnAddedOrRemovedFile(t *testing.T) {
	now := time.Unix(10_000, 0)
	art := sampleArtifact(now.Add(-time.Minute))

	// util.go removed from the current scan, new.go added.
	current := []scanner.Entry{
		{Path: "main.go", SizeBytes: 100, MtimeNanos: 1000},
		{Path: "new.go", SizeBytes: 10, MtimeNanos: 3000},
	}

	c := Classify(art, current, 5*time.Minute, now)
	require.Equal(t, Dirty, c.State)
	require.Contains(t, c.DirtyPaths, "util.go")
	require.Contains(t, c.DirtyPaths, "new.go")
}

func TestClassifyMissOnNilArtifactOrVersionMismatch(t *testing.T) {
	now := time.Unix(10_000, 0)

	require.Equal(t, Miss, Classify(nil, nil, time.Minute, now).State)

	stale := sampleArtifact(now)
	stale.ArtifactVersion = artifact.Version + 1
	require.Equal(t, Miss, Classify(stale, nil, time.Minute, now).State)
}

func TestDecideDefaultPolicyRebuildsOnStaleOrDirty(t *testing.T) {
	kind, err := Decide(Classification{State: Stale}, false)
	require.NoError(t, err)
	require.Equal(t, artifact.EventStaleRebuild, kind)

	kind, err = Decide(Classification{State: Dirty}, false)
	require.NoError(t, err)
	require.Equal(t, artifact.EventDirtyRebuild, kind)
}

func TestDecideStrictModeFailsOnStaleOrDirty(t *testing.T) {
	_, err := Decide(Classification{State: Stale}, true)
	require.ErrorIs(t, err, ErrStale)

	_, err = Decide(Classification{State: Dirty}, true)
	require.ErrorIs(t, err, ErrDirty)
}

func TestDecideFreshAlwaysHitsRegardlessOfStrict(t *testing.T) {
	kind, err := Decide(Classification{State: Fresh}, true)
	require.NoError(t, err)
	require.Equal(t, artifact.EventHit, kind)
}
