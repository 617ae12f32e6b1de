// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package extractor derives language, public symbols, import edges,
// and type relations from a single file's content.
package extractor

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/rtk-project/rtk/pkg/artifact"
)

// Limits bounds runaway extraction output.
type Limits struct {
	MaxSymbolsPerFile int
	MaxImportsPerFile int
	MaxSignatureWidth int
}

// DefaultLimits is generous enough for real files, small enough to
// bound a pathological one.
var DefaultLimits = Limits{
	MaxSymbolsPerFile: 500,
	MaxImportsPerFile: 200,
	MaxSignatureWidth: 160,
}

// FileInput is everything an extractor needs about one file.
type FileInput struct {
	Path    string // project-relative
	Content []byte
}

// FileOutput is the extracted shape the Indexer folds into a
// FileArtifact.
type FileOutput struct {
	Language      string
	Symbols       []artifact.SymbolRecord
	Imports       []string
	TypeRelations []artifact.TypeRelation
}

// SymbolExtractor is the pluggable capability trait behind the
// language router: a regex-grade default backend and an optional
// grammar-based backend must both satisfy it and must produce
// identical record shapes.
type SymbolExtractor interface {
	// Supports reports whether this backend can handle language.
	Supports(language string) bool
	// Extract returns the symbols, imports, and type relations found
	// in content. Errors are never fatal to the caller: a failing
	// backend should be skipped in favor of the next one in the
	// router's ladder.
	Extract(language string, content []byte, limits Limits) (FileOutput, error)
}

// Router selects a backend per language and falls back to the next
// entry in chain on any error, ending with the always-available
// regex backend.
type Router struct {
	chain  []SymbolExtractor
	regex  SymbolExtractor
	logger *slog.Logger
}

// NewRouter builds a router. preferred is tried first per language
// (typically the tree-sitter backend); regexBackend is the mandatory
// fallback.
func NewRouter(preferred []SymbolExtractor, regexBackend SymbolExtractor, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{chain: preferred, regex: regexBackend, logger: logger}
}

// Extract runs the file through the router: detects language, then
// tries each preferred backend that Supports() it before falling back
// to the regex backend.
func (r *Router) Extract(in FileInput, limits Limits) FileOutput {
	lang := DetectLanguage(in.Path)
	if lang == "" {
		return FileOutput{Language: ""}
	}

	for _, backend := range r.chain {
		if !backend.Supports(lang) {
			continue
		}
		out, err := backend.Extract(lang, in.Content, limits)
		if err != nil {
			r.logger.Warn("extractor.backend.fallback", "path", in.Path, "language", lang, "err", err)
			continue
		}
		out.Language = lang
		return out
	}

	out, err := r.regex.Extract(lang, in.Content, limits)
	if err != nil {
		r.logger.Warn("extractor.regex.failed", "path", in.Path, "language", lang, "err", err)
		return FileOutput{Language: lang}
	}
	out.Language = lang
	return out
}

// extByLanguage maps a recognized file extension to its canonical
// language name. Header extensions (e.g. ".h") are resolved in
// DetectLanguage instead.
var extByLanguage = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyi":   "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".cxx":   "cpp",
	".proto": "protobuf",
}

// DetectLanguage classifies a project-relative path by extension. A
// ".h" header is always reported as C here, since a single path
// carries no sibling information; DetectLanguageWithSiblings reports
// ".h" as C++ when a same-stem ".cpp"/".cc"/".cxx" sibling is known.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".h":
		return "c"
	case ".hpp", ".hh", ".hxx":
		return "cpp"
	}
	if lang, ok := extByLanguage[ext]; ok {
		return lang
	}
	return ""
}

// DetectLanguageWithSiblings refines DetectLanguage for ".h" files
// when the caller knows the sibling filenames in the same directory.
func DetectLanguageWithSiblings(path string, siblingStems map[string]bool) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".h" {
		stem := strings.TrimSuffix(filepath.Base(path), ext)
		for _, cppExt := range []string{".cpp", ".cc", ".cxx"} {
			if siblingStems[stem+cppExt] {
				return "cpp"
			}
		}
		return "c"
	}
	return DetectLanguage(path)
}

func truncateSignature(sig string, width int) string {
	if width <= 0 || len(sig) <= width {
		return sig
	}
	if width <= 1 {
		return sig[:width]
	}
	return sig[:width-1] + "…"
}

func capSymbols(syms []artifact.SymbolRecord, max int) []artifact.SymbolRecord {
	if max <= 0 || len(syms) <= max {
		return syms
	}
	return syms[:max]
}

func dedupeImports(imports []string, max int) []string {
	seen := make(map[string]bool, len(imports))
	out := make([]string, 0, len(imports))
	for _, imp := range imports {
		if imp == "" || seen[imp] {
			continue
		}
		seen[imp] = true
		out = append(out, imp)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}
