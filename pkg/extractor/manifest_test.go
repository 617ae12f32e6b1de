// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseManifestGoMod(t *testing.T) {
	src := `module example.com/widget

go 1.24

require (
	github.com/stretchr/testify v1.11.0
	golang.org/x/sync v0.10.0 // indirect
)
`
	m := ParseManifest("go.mod", []byte(src), nil)
	require.Len(t, m.Runtime, 1)
	require.Equal(t, "github.com/stretchr/testify", m.Runtime[0].Name)
	require.Len(t, m.Build, 1)
	require.Equal(t, "golang.org/x/sync", m.Build[0].Name)
}

func TestParseManifestPackageJSON(t *testing.T) {
	src := `{"dependencies": {"react": "^18.0.0"}, "devDependencies": {"jest": "^29.0.0"}}`
	m := ParseManifest("package.json", []byte(src), nil)
	require.Len(t, m.Runtime, 1)
	require.Equal(t, "react", m.Runtime[0].Name)
	require.Len(t, m.Dev, 1)
	require.Equal(t, "jest", m.Dev[0].Name)
}

func TestParseManifestRequirementsTxt(t *testing.T) {
	src := "# comment\nrequests>=2.28.0\nflask\n"
	m := ParseManifest("requirements.txt", []byte(src), nil)
	require.Len(t, m.Runtime, 2)
}

func TestParseManifestFailsOpenOnGarbage(t *testing.T) {
	m := ParseManifest("package.json", []byte("{not valid json"), nil)
	require.Empty(t, m.Runtime)
	require.Empty(t, m.Dev)
}

func TestIsManifestFile(t *testing.T) {
	require.True(t, IsManifestFile("go.mod"))
	require.True(t, IsManifestFile("sub/dir/package.json"))
	require.False(t, IsManifestFile("main.go"))
}
