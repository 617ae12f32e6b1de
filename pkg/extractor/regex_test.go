// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtk-project/rtk/pkg/artifact"
)

func TestDetectLanguageByExtension(t *testing.T) {
	require.Equal(t, "go", DetectLanguage("pkg/store/store.go"))
	require.Equal(t, "python", DetectLanguage("app/main.py"))
	require.Equal(t, "typescript", DetectLanguage("src/index.tsx"))
	require.Equal(t, "", DetectLanguage("README.md"))
}

func TestDetectLanguageWithSiblingsDisambiguatesHeader(t *testing.T) {
	require.Equal(t, "cpp", DetectLanguageWithSiblings("widget.h", map[string]bool{"widget.cpp": true}))
	require.Equal(t, "c", DetectLanguageWithSiblings("widget.h", map[string]bool{}))
}

func TestRegexExtractorGoFunctionsAndStructs(t *testing.T) {
	src := `package widget

import (
	"fmt"
	"context"
)

type Widget struct {
	Name string
}

func New() *Widget {
	return &Widget{}
}

func (w *Widget) String() string {
	return w.Name
}
`
	out, err := NewRegexExtractor().Extract("go", []byte(src), DefaultLimits)
	require.NoError(t, err)

	var names []string
	for _, s := range out.Symbols {
		names = append(names, s.Name)
	}
	require.Contains(t, names, "New")
	require.Contains(t, names, "String")
	require.Contains(t, names, "Widget")
	require.Contains(t, out.Imports, "fmt")
	require.Contains(t, out.Imports, "context")
}

func TestRegexExtractorGoVisibility(t *testing.T) {
	out, err := NewRegexExtractor().Extract("go", []byte("package p\n\nfunc Public() {}\nfunc private() {}\n"), DefaultLimits)
	require.NoError(t, err)
	byName := map[string]artifact.Visibility{}
	for _, s := range out.Symbols {
		byName[s.Name] = s.Visibility
	}
	require.Equal(t, artifact.VisibilityPublic, byName["Public"])
	require.Equal(t, artifact.VisibilityPrivate, byName["private"])
}

func TestRegexExtractorPythonClassesAndImports(t *testing.T) {
	src := `import os
from collections import OrderedDict

class Handler(BaseHandler):
    def handle(self):
        pass

def top_level():
    pass
`
	out, err := NewRegexExtractor().Extract("python", []byte(src), DefaultLimits)
	require.NoError(t, err)

	var names []string
	for _, s := range out.Symbols {
		names = append(names, s.Name)
	}
	require.Contains(t, names, "Handler")
	require.Contains(t, names, "handle")
	require.Contains(t, names, "top_level")
	require.Contains(t, out.Imports, "os")
	require.Contains(t, out.Imports, "collections")

	var relations []string
	for _, r := range out.TypeRelations {
		relations = append(relations, r.Target)
	}
	require.Contains(t, relations, "BaseHandler")
}

func TestRegexExtractorRustStripsPrefixDenylist(t *testing.T) {
	src := "use crate::widget::Widget;\nuse std::fmt;\n\npub fn run() {}\n"
	out, err := NewRegexExtractor().Extract("rust", []byte(src), DefaultLimits)
	require.NoError(t, err)
	require.Contains(t, out.Imports, "widget::Widget")
	require.Contains(t, out.Imports, "fmt")
}

func TestRegexExtractorCapsSymbolCount(t *testing.T) {
	var src string
	for i := 0; i < 20; i++ {
		src += "func F" + string(rune('a'+i)) + "() {}\n"
	}
	out, err := NewRegexExtractor().Extract("go", []byte(src), Limits{MaxSymbolsPerFile: 5, MaxImportsPerFile: 5, MaxSignatureWidth: 40})
	require.NoError(t, err)
	require.Len(t, out.Symbols, 5)
}

func TestTruncateSignatureAddsEllipsis(t *testing.T) {
	got := truncateSignature("func veryLongFunctionNameThatExceedsWidth(a, b, c int) error", 20)
	require.LessOrEqual(t, len(got), 20)
	require.Contains(t, got, "…")
}

func TestNewRouterFallsBackToRegexOnBackendError(t *testing.T) {
	failing := failingExtractor{lang: "go"}
	router := NewRouter([]SymbolExtractor{failing}, NewRegexExtractor(), nil)

	out := router.Extract(FileInput{Path: "main.go", Content: []byte("package main\n\nfunc Run() {}\n")}, DefaultLimits)
	require.Equal(t, "go", out.Language)
	require.NotEmpty(t, out.Symbols)
}

type failingExtractor struct{ lang string }

func (f failingExtractor) Supports(language string) bool { return language == f.lang }
func (f failingExtractor) Extract(string, []byte, Limits) (FileOutput, error) {
	return FileOutput{}, errAlways
}

var errAlways = assertError("forced backend failure")

type assertError string

func (e assertError) Error() string { return string(e) }
