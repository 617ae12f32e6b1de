// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package renderer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtk-project/rtk/pkg/artifact"
)

func sampleProjectArtifact() *artifact.ProjectArtifact {
	return &artifact.ProjectArtifact{
		ArtifactVersion: artifact.Version,
		EntryPointHints: []string{"cmd/rtk/main.go"},
		DepManifest: artifact.DepManifest{
			Runtime: []artifact.Dependency{{Name: "serde", VersionOrRange: "1"}},
		},
		Files: []artifact.FileArtifact{
			{
				Path: "cmd/rtk/main.go", Language: "go", LineCount: 10,
				Imports: []string{"widget"},
				PubSymbols: []artifact.SymbolRecord{
					{Kind: artifact.SymbolFunction, Name: "main", Visibility: artifact.VisibilityPrivate},
				},
			},
			{
				Path: "pkg/widget/widget.go", Language: "go", LineCount: 40,
				PubSymbols: []artifact.SymbolRecord{
					{Kind: artifact.SymbolFunction, Name: "New", Visibility: artifact.VisibilityPublic},
					{Kind: artifact.SymbolStruct, Name: "Widget", Visibility: artifact.VisibilityPublic},
				},
				TypeRelations: []artifact.TypeRelation{
					{Source: "Widget", Target: "Base", Kind: artifact.RelationContains},
					{Source: "Widget", Target: "Runnable", Kind: artifact.RelationImplements},
				},
			},
			{Path: "pkg/widget/widget_test.go", Language: "go", LineCount: 20},
			{Path: "pkg/widget/empty_test.go", Language: "go", LineCount: 0},
		},
	}
}

func TestRenderGeneralQueryIncludesAllLayers(t *testing.T) {
	art := sampleProjectArtifact()
	ctx := Render(art, nil, Request{QueryType: QueryGeneral})

	require.NotNil(t, ctx.ProjectMap)
	require.NotNil(t, ctx.ModuleIndex)
	require.NotNil(t, ctx.TypeGraph)
	require.NotNil(t, ctx.APISurface)
	require.NotNil(t, ctx.DepManifest)
	require.NotNil(t, ctx.TestMap)
}

func TestRenderBugfixQueryExcludesProjectMapAndTypeGraphAndDeps(t *testing.T) {
	art := sampleProjectArtifact()
	ctx := Render(art, nil, Request{QueryType: QueryBugfix})

	require.Nil(t, ctx.ProjectMap)
	require.Nil(t, ctx.TypeGraph)
	require.Nil(t, ctx.DepManifest)
	require.NotNil(t, ctx.APISurface)
	require.NotNil(t, ctx.TestMap)
}

func TestRenderFeatureMaskOverridesRouting(t *testing.T) {
	art := sampleProjectArtifact()
	ctx := Render(art, nil, Request{QueryType: QueryGeneral, Mask: FeatureMask{LayerTypeGraph: false}})
	require.Nil(t, ctx.TypeGraph)
}

func TestRenderCompactDetailFiltersContainsRelations(t *testing.T) {
	art := sampleProjectArtifact()
	ctx := Render(art, nil, Request{QueryType: QueryGeneral, Detail: DetailCompact})

	for _, rel := range ctx.TypeGraph {
		require.NotEqual(t, artifact.RelationContains, rel.Kind)
	}
}

func TestRenderVerboseDetailKeepsContainsRelations(t *testing.T) {
	art := sampleProjectArtifact()
	ctx := Render(art, nil, Request{QueryType: QueryGeneral, Detail: DetailVerbose})

	var sawContains bool
	for _, rel := range ctx.TypeGraph {
		if rel.Kind == artifact.RelationContains {
			sawContains = true
		}
	}
	require.True(t, sawContains)
}

func TestRenderTestMapExcludesEmptyMarkerFiles(t *testing.T) {
	art := sampleProjectArtifact()
	ctx := Render(art, nil, Request{QueryType: QueryGeneral})

	for _, tf := range ctx.TestMap {
		require.NotEqual(t, "pkg/widget/empty_test.go", tf.Path)
	}
	require.Len(t, ctx.TestMap, 1)
	require.Equal(t, TestUnit, ctx.TestMap[0].Kind)
}

func TestRenderChangeDigestStripsHashesUnderLLMProfile(t *testing.T) {
	art := sampleProjectArtifact()
	digest := &artifact.ChangeDigest{Added: []artifact.ChangeEntry{{Path: "a.go", Kind: artifact.ChangeAdded, Hash: "abc123"}}}

	ctx := Render(art, digest, Request{QueryType: QueryGeneral, Profile: ProfileLLM})
	require.Empty(t, ctx.ChangeDigest.Added[0].Hash)

	ctxFull := Render(art, digest, Request{QueryType: QueryGeneral, Profile: ProfileFull})
	require.Equal(t, "abc123", ctxFull.ChangeDigest.Added[0].Hash)
}

func TestRenderChangeDigestRespectsDeltaEntriesCap(t *testing.T) {
	art := sampleProjectArtifact()
	var added []artifact.ChangeEntry
	for i := 0; i < 20; i++ {
		added = append(added, artifact.ChangeEntry{Path: "f.go", Kind: artifact.ChangeAdded})
	}
	digest := &artifact.ChangeDigest{Added: added}

	ctx := Render(art, digest, Request{QueryType: QueryGeneral, Detail: DetailCompact})
	require.Len(t, ctx.ChangeDigest.Added, 8)
}

func TestHotPathsRanksByInboundImportCount(t *testing.T) {
	art := sampleProjectArtifact()
	paths := hotPaths(art, 10)
	require.Contains(t, paths, "pkg/widget/widget.go")
}

func TestBuildAPISurfaceOrdersBySymbolCountThenPath(t *testing.T) {
	art := sampleProjectArtifact()
	surface := buildAPISurface(art, 10, 10)
	require.Equal(t, "pkg/widget/widget.go", surface[0].Path) // 2 symbols > main.go's 1
}

func TestClassifyTestKindDetectsE2EAndIntegration(t *testing.T) {
	require.Equal(t, TestE2E, classifyTestKind("tests/e2e/login_test.go"))
	require.Equal(t, TestIntegration, classifyTestKind("tests/integration/db_test.go"))
	require.Equal(t, TestUnit, classifyTestKind("pkg/widget/widget_test.go"))
	require.Equal(t, TestUnknown, classifyTestKind("tests/fixtures/sample.go"))
}
