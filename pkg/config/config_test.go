// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, Default().Store.MaxProjects, cfg.Store.MaxProjects)
	require.True(t, cfg.Features.Cascade)
}

func TestLoadParsesTOMLAndRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.toml")

	cfg := Default()
	cfg.Store.MaxProjects = 7
	cfg.Planner.TokenBudgetDefault = 4242
	cfg.Features.LayerChangeDigest = false

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7, loaded.Store.MaxProjects)
	require.Equal(t, 4242, loaded.Planner.TokenBudgetDefault)
	require.False(t, loaded.Features.LayerChangeDigest)
}

func TestEnvOverridesWinOverFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.toml")
	require.NoError(t, Save(path, Default()))

	t.Setenv("RTK_MAX_PROJECTS", "3")
	t.Setenv("RTK_STRICT", "true")
	t.Setenv("RTK_DISABLE_LAYER", "L6, module_index")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Store.MaxProjects)
	require.True(t, cfg.Features.Strict)
	require.False(t, cfg.Features.LayerChangeDigest)
	require.False(t, cfg.Features.LayerModuleIndex)
	require.True(t, cfg.Features.LayerAPISurface)
}

func TestAtomicSaveDoesNotLeaveTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.toml")
	require.NoError(t, Save(path, Default()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "project.toml", entries[0].Name())
}
