// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package renderer maps a (query-type, detail-level, feature-flag-mask)
// tuple to a selection of artifact layers L0-L6, applies per-detail
// caps, and slims the result for the llm output profile.
package renderer

import (
	"sort"
	"strings"

	"github.com/rtk-project/rtk/pkg/artifact"
)

// QueryType selects which layers are routed in by default.
type QueryType string

const (
	QueryGeneral  QueryType = "general"
	QueryBugfix   QueryType = "bugfix"
	QueryFeature  QueryType = "feature"
	QueryRefactor QueryType = "refactor"
	QueryIncident QueryType = "incident"
)

// Detail is the verbosity level, which governs per-layer caps.
type Detail string

const (
	DetailCompact Detail = "compact"
	DetailNormal  Detail = "normal"
	DetailVerbose Detail = "verbose"
)

// Profile is the output shaping applied after layer selection.
type Profile string

const (
	ProfileLLM  Profile = "llm"
	ProfileFull Profile = "full"
)

// Layer identifies one of the seven routable artifact slices.
type Layer string

const (
	LayerProjectMap   Layer = "L0"
	LayerModuleIndex  Layer = "L1"
	LayerTypeGraph    Layer = "L2"
	LayerAPISurface   Layer = "L3"
	LayerDepManifest  Layer = "L4"
	LayerTestMap      Layer = "L5"
	LayerChangeDigest Layer = "L6"
)

// queryRouting is the AND-masked layer-selection matrix.
var queryRouting = map[QueryType]map[Layer]bool{
	QueryGeneral: {
		LayerProjectMap: true, LayerModuleIndex: true, LayerTypeGraph: true,
		LayerAPISurface: true, LayerDepManifest: true, LayerTestMap: true, LayerChangeDigest: true,
	},
	QueryBugfix: {
		LayerModuleIndex: true, LayerAPISurface: true, LayerTestMap: true, LayerChangeDigest: true,
	},
	QueryFeature: {
		LayerProjectMap: true, LayerModuleIndex: true, LayerTypeGraph: true,
		LayerAPISurface: true, LayerDepManifest: true, LayerTestMap: true,
	},
	QueryRefactor: {
		LayerModuleIndex: true, LayerTypeGraph: true, LayerAPISurface: true, LayerTestMap: true,
	},
	QueryIncident: {
		LayerAPISurface: true, LayerDepManifest: true, LayerChangeDigest: true,
	},
}

// FeatureMask disables individual layers regardless of query-type
// routing; a false entry always wins (AND-masked).
type FeatureMask map[Layer]bool

// caps holds the per-detail-level numeric limits.
type caps struct {
	l3Files        int
	symbolsPerFile int
	l1Modules      int
	deltaEntries   int
}

var detailCaps = map[Detail]caps{
	DetailCompact: {l3Files: 5, symbolsPerFile: 8, l1Modules: 10, deltaEntries: 8},
	DetailNormal:  {l3Files: 10, symbolsPerFile: 16, l1Modules: 20, deltaEntries: 32},
	DetailVerbose: {l3Files: 30, symbolsPerFile: 32, l1Modules: 50, deltaEntries: 100},
}

// Request bundles the (query-type, detail, profile, mask) tuple that
// governs one render.
type Request struct {
	QueryType QueryType
	Detail    Detail
	Profile   Profile
	Mask      FeatureMask // nil = no overrides
}

// normalize fills in zero-value fields with their defaults.
func (r Request) normalize() Request {
	if r.QueryType == "" {
		r.QueryType = QueryGeneral
	}
	if r.Detail == "" {
		r.Detail = DetailNormal
	}
	if r.Profile == "" {
		r.Profile = ProfileLLM
	}
	return r
}

// Context is the rendered, capped, profile-shaped context slice
// returned to the caller.
type Context struct {
	ProjectMap   *ProjectMap             `json:"project_map,omitempty"`
	ModuleIndex  []ModuleEntry           `json:"module_index,omitempty"`
	TypeGraph    []artifact.TypeRelation `json:"type_graph,omitempty"`
	APISurface   []FileSymbols           `json:"api_surface,omitempty"`
	DepManifest  *artifact.DepManifest   `json:"dep_manifest,omitempty"`
	TestMap      []TestFile              `json:"test_map,omitempty"`
	ChangeDigest *artifact.ChangeDigest  `json:"change_digest,omitempty"`
}

// ProjectMap is L0.
type ProjectMap struct {
	EntryPointHints []string `json:"entry_point_hints"`
	HotPaths        []string `json:"hot_paths"`
}

// ModuleEntry is one L1 record.
type ModuleEntry struct {
	Path    string   `json:"path"`
	Module  string   `json:"module"`
	Language string  `json:"language"`
	Exports []string `json:"exports"`
}

// FileSymbols is one L3 record: a file's capped symbol list.
type FileSymbols struct {
	Path     string                 `json:"path"`
	Language string                 `json:"language"`
	Symbols  []artifact.SymbolRecord `json:"symbols"`
}

// TestKind classifies an L5 test file.
type TestKind string

const (
	TestUnit        TestKind = "unit"
	TestIntegration TestKind = "integration"
	TestE2E         TestKind = "e2e"
	TestUnknown     TestKind = "unknown"
)

// TestFile is one L5 record.
type TestFile struct {
	Path string   `json:"path"`
	Kind TestKind `json:"kind"`
}

// Render maps req against art (and, for L6, digest) into a capped,
// profile-shaped Context. digest may be nil when no change digest is
// available for this call (e.g. a first-ever index).
func Render(art *artifact.ProjectArtifact, digest *artifact.ChangeDigest, req Request) Context {
	req = req.normalize()
	routed := queryRouting[req.QueryType]
	c := detailCaps[req.Detail]
	var out Context

	if layerEnabled(routed, req.Mask, LayerProjectMap) {
		pm := buildProjectMap(art)
		out.ProjectMap = &pm
	}
	if layerEnabled(routed, req.Mask, LayerModuleIndex) {
		out.ModuleIndex = buildModuleIndex(art, c.l1Modules)
	}
	if layerEnabled(routed, req.Mask, LayerTypeGraph) {
		out.TypeGraph = buildTypeGraph(art, req.Detail)
	}
	if layerEnabled(routed, req.Mask, LayerAPISurface) {
		out.APISurface = buildAPISurface(art, c.l3Files, c.symbolsPerFile)
	}
	if layerEnabled(routed, req.Mask, LayerDepManifest) {
		dm := art.DepManifest
		out.DepManifest = &dm
	}
	if layerEnabled(routed, req.Mask, LayerTestMap) {
		out.TestMap = buildTestMap(art)
	}
	if layerEnabled(routed, req.Mask, LayerChangeDigest) && digest != nil {
		cd := capDigest(*digest, c.deltaEntries)
		if req.Profile == ProfileLLM {
			cd = stripHashes(cd)
		}
		out.ChangeDigest = &cd
	}

	return out
}

func layerEnabled(routed map[Layer]bool, mask FeatureMask, l Layer) bool {
	if !routed[l] {
		return false
	}
	if mask != nil {
		if enabled, overridden := mask[l]; overridden && !enabled {
			return false
		}
	}
	return true
}

// buildProjectMap builds L0: entry-point hints plus hot paths, files
// with the highest inbound import count, deduped by module stem.
func buildProjectMap(art *artifact.ProjectArtifact) ProjectMap {
	return ProjectMap{
		EntryPointHints: art.EntryPointHints,
		HotPaths:        hotPaths(art, 10),
	}
}

// hotPaths resolves each file's import strings against sibling file
// stems and ranks files by inbound reference count, deduping by
// module stem (the final path segment without extension) so that
// e.g. "pkg/widget/widget.go" only ever appears once.
func hotPaths(art *artifact.ProjectArtifact, limit int) []string {
	stemToPath := make(map[string]string, len(art.Files))
	for _, fa := range art.Files {
		stemToPath[moduleStem(fa.Path)] = fa.Path
	}

	counts := make(map[string]int, len(art.Files))
	for _, fa := range art.Files {
		for _, imp := range fa.Imports {
			stem := lastSegment(imp)
			if path, ok := stemToPath[stem]; ok && path != fa.Path {
				counts[path]++
			}
		}
	}

	type ranked struct {
		path  string
		stem  string
		count int
	}
	var ranks []ranked
	seenStem := make(map[string]bool)
	for path, n := range counts {
		stem := moduleStem(path)
		if seenStem[stem] {
			continue
		}
		seenStem[stem] = true
		ranks = append(ranks, ranked{path: path, stem: stem, count: n})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].count != ranks[j].count {
			return ranks[i].count > ranks[j].count
		}
		return ranks[i].path < ranks[j].path
	})
	if len(ranks) > limit {
		ranks = ranks[:limit]
	}

	paths := make([]string, len(ranks))
	for i, r := range ranks {
		paths[i] = r.path
	}
	return paths
}

func moduleStem(path string) string {
	trimmed := strings.TrimSuffix(path, extOf(path))
	return lastSegment(trimmed)
}

func lastSegment(s string) string {
	s = strings.TrimSuffix(s, extOf(s))
	for _, sep := range []string{"::", ".", "/"} {
		if idx := strings.LastIndex(s, sep); idx >= 0 {
			s = s[idx+len(sep):]
		}
	}
	return s
}

func extOf(path string) string {
	if idx := strings.LastIndex(path, "."); idx >= 0 && !strings.Contains(path[idx:], "/") {
		return path[idx:]
	}
	return ""
}

// buildModuleIndex builds L1, capped to the top limit modules by path order.
func buildModuleIndex(art *artifact.ProjectArtifact, limit int) []ModuleEntry {
	entries := make([]ModuleEntry, 0, len(art.Files))
	for _, fa := range art.Files {
		entries = append(entries, ModuleEntry{
			Path:     fa.Path,
			Module:   moduleStem(fa.Path),
			Language: fa.Language,
			Exports:  publicExportNames(fa.PubSymbols, 10),
		})
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func publicExportNames(symbols []artifact.SymbolRecord, limit int) []string {
	var names []string
	for _, s := range symbols {
		if s.Visibility != artifact.VisibilityPublic {
			continue
		}
		names = append(names, s.Name)
		if len(names) >= limit {
			break
		}
	}
	return names
}

// buildTypeGraph builds L2, filtering "contains" edges at compact
// detail.
func buildTypeGraph(art *artifact.ProjectArtifact, detail Detail) []artifact.TypeRelation {
	var relations []artifact.TypeRelation
	for _, fa := range art.Files {
		for _, rel := range fa.TypeRelations {
			if detail == DetailCompact && rel.Kind == artifact.RelationContains {
				continue
			}
			relations = append(relations, rel)
		}
	}
	return relations
}

// buildAPISurface builds L3, ordered by (primary-language-first,
// symbol-count-desc, path) and capped to maxFiles files with
// maxSymbols symbols each.
func buildAPISurface(art *artifact.ProjectArtifact, maxFiles, maxSymbols int) []FileSymbols {
	primary := primaryLanguage(art.Files)

	files := make([]artifact.FileArtifact, len(art.Files))
	copy(files, art.Files)
	sort.Slice(files, func(i, j int) bool {
		pi, pj := files[i].Language == primary, files[j].Language == primary
		if pi != pj {
			return pi
		}
		if len(files[i].PubSymbols) != len(files[j].PubSymbols) {
			return len(files[i].PubSymbols) > len(files[j].PubSymbols)
		}
		return files[i].Path < files[j].Path
	})
	if len(files) > maxFiles {
		files = files[:maxFiles]
	}

	out := make([]FileSymbols, 0, len(files))
	for _, fa := range files {
		symbols := fa.PubSymbols
		if len(symbols) > maxSymbols {
			symbols = symbols[:maxSymbols]
		}
		out = append(out, FileSymbols{Path: fa.Path, Language: fa.Language, Symbols: symbols})
	}
	return out
}

func primaryLanguage(files []artifact.FileArtifact) string {
	counts := make(map[string]int, len(files))
	for _, fa := range files {
		counts[fa.Language]++
	}
	best, bestCount := "", 0
	for lang, n := range counts {
		if n > bestCount || (n == bestCount && lang < best) {
			best, bestCount = lang, n
		}
	}
	return best
}

// buildTestMap builds L5, classifying test files by path heuristics
// and excluding empty marker files.
func buildTestMap(art *artifact.ProjectArtifact) []TestFile {
	var out []TestFile
	for _, fa := range art.Files {
		if !looksLikeTest(fa.Path) {
			continue
		}
		if fa.LineCount == 0 {
			continue // empty marker file
		}
		out = append(out, TestFile{Path: fa.Path, Kind: classifyTestKind(fa.Path)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func looksLikeTest(path string) bool {
	lower := strings.ToLower(path)
	markers := []string{"_test.", ".test.", ".spec.", "test_", "/tests/", "/test/"}
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func classifyTestKind(path string) TestKind {
	lower := strings.ToLower(path)
	switch {
	case strings.Contains(lower, "e2e"):
		return TestE2E
	case strings.Contains(lower, "integration"):
		return TestIntegration
	case strings.Contains(lower, "_test.") || strings.Contains(lower, ".test.") || strings.Contains(lower, ".spec.") || strings.Contains(lower, "test_"):
		return TestUnit
	default:
		return TestUnknown
	}
}

// capDigest keeps at most limit entries across a ChangeDigest's three
// lists combined, filling Added first, then Modified, then Removed,
// and preserving the added/modified/removed split.
func capDigest(d artifact.ChangeDigest, limit int) artifact.ChangeDigest {
	remaining := limit
	take := func(entries []artifact.ChangeEntry) []artifact.ChangeEntry {
		if remaining <= 0 {
			return nil
		}
		if len(entries) > remaining {
			entries = entries[:remaining]
		}
		remaining -= len(entries)
		return entries
	}
	return artifact.ChangeDigest{
		Added:    take(d.Added),
		Modified: take(d.Modified),
		Removed:  take(d.Removed),
	}
}

// stripHashes drops per-entry hash fields for the llm profile: hashes
// stay visible in the full profile but are noise for a model.
func stripHashes(d artifact.ChangeDigest) artifact.ChangeDigest {
	strip := func(entries []artifact.ChangeEntry) []artifact.ChangeEntry {
		out := make([]artifact.ChangeEntry, len(entries))
		for i, e := range entries {
			e.Hash = ""
			out[i] = e
		}
		return out
	}
	return artifact.ChangeDigest{
		Added:    strip(d.Added),
		Modified: strip(d.Modified),
		Removed:  strip(d.Removed),
	}
}
