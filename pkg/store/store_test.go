// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rtk-project/rtk/pkg/artifact"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rtk.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureProjectIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.EnsureProject(ctx, "/tmp/example-project")
	require.NoError(t, err)
	id2, err := s.EnsureProject(ctx, "/tmp/example-project")
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	n, err := s.ProjectCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestLoadArtifactMissReturnsNilNotError(t *testing.T) {
	s := openTestStore(t)
	art, err := s.LoadArtifact(context.Background(), "nonexistent")
	require.NoError(t, err)
	require.Nil(t, art)
}

func TestStoreAndLoadArtifactRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	projectID, err := s.EnsureProject(ctx, "/tmp/round-trip")
	require.NoError(t, err)

	art := &artifact.ProjectArtifact{
		ArtifactVersion: artifact.Version,
		UpdatedAt:       time.Now(),
		Files: []artifact.FileArtifact{
			{Path: "main.go", Language: "go", ContentHash: 42, LineCount: 10},
		},
	}
	edges := []artifact.ImportEdge{
		{FromPath: "main.go", ToModule: "fmt", EdgeKind: "import"},
	}

	require.NoError(t, s.StoreArtifact(ctx, projectID, art, edges))

	loaded, err := s.LoadArtifact(ctx, projectID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Files, 1)
	require.Equal(t, "main.go", loaded.Files[0].Path)

	loadedEdges, err := s.LoadEdges(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, loadedEdges, 1)
}

func TestStoreArtifactReplacesEdges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	projectID, err := s.EnsureProject(ctx, "/tmp/replace-edges")
	require.NoError(t, err)

	art := &artifact.ProjectArtifact{ArtifactVersion: artifact.Version, UpdatedAt: time.Now()}

	require.NoError(t, s.StoreArtifact(ctx, projectID, art, []artifact.ImportEdge{
		{FromPath: "a.go", ToModule: "x", EdgeKind: "import"},
	}))
	require.NoError(t, s.StoreArtifact(ctx, projectID, art, []artifact.ImportEdge{
		{FromPath: "b.go", ToModule: "y", EdgeKind: "import"},
	}))

	edges, err := s.LoadEdges(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	require.Equal(t, "b.go", edges[0].FromPath)
}

func TestLoadArtifactVersionMismatchIsMiss(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	projectID, err := s.EnsureProject(ctx, "/tmp/version-mismatch")
	require.NoError(t, err)

	art := &artifact.ProjectArtifact{ArtifactVersion: artifact.Version + 1, UpdatedAt: time.Now()}
	require.NoError(t, s.StoreArtifact(ctx, projectID, art, nil))

	loaded, err := s.LoadArtifact(ctx, projectID)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestReverseEdgesUsesToModuleIndex(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	projectID, err := s.EnsureProject(ctx, "/tmp/reverse-edges")
	require.NoError(t, err)

	art := &artifact.ProjectArtifact{ArtifactVersion: artifact.Version, UpdatedAt: time.Now()}
	edges := []artifact.ImportEdge{
		{FromPath: "a.go", ToModule: "pkg/widget", EdgeKind: "import"},
		{FromPath: "b.go", ToModule: "pkg/widget", EdgeKind: "import"},
		{FromPath: "c.go", ToModule: "pkg/other", EdgeKind: "import"},
	}
	require.NoError(t, s.StoreArtifact(ctx, projectID, art, edges))

	from, err := s.ReverseEdges(ctx, projectID, []string{"pkg/widget"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.go", "b.go"}, from)
}

func TestPruneEvictsLeastRecentlyAccessed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	oldest, err := s.EnsureProject(ctx, "/tmp/oldest")
	require.NoError(t, err)
	_, err = s.EnsureProject(ctx, "/tmp/middle")
	require.NoError(t, err)
	_, err = s.EnsureProject(ctx, "/tmp/newest")
	require.NoError(t, err)

	// Force an ordering independent of wall-clock granularity.
	_, err = s.db.ExecContext(ctx, `UPDATE projects SET last_accessed_at = 1 WHERE project_id = ?`, oldest)
	require.NoError(t, err)

	evicted, err := s.Prune(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1, evicted)

	n, err := s.ProjectCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, _, exists, err := s.ProjectMeta(ctx, oldest)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestClearRemovesAllRowsForProject(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	projectID, err := s.EnsureProject(ctx, "/tmp/clear-me")
	require.NoError(t, err)
	s.RecordEvent(ctx, projectID, artifact.EventHit)

	require.NoError(t, s.Clear(ctx, projectID))

	_, _, exists, err := s.ProjectMeta(ctx, projectID)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestProjectIDIsStablePerPath(t *testing.T) {
	require.Equal(t, ProjectID("/tmp/a"), ProjectID("/tmp/a"))
	require.NotEqual(t, ProjectID("/tmp/a"), ProjectID("/tmp/b"))
}
