// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// externalServiceTimeout bounds the external semantic backend and the
// rg fallback alike.
const externalServiceTimeout = 3 * time.Second

// SemanticBackend names which stage of the Stage-3 ladder produced a
// result.
type SemanticBackend string

const (
	BackendExternal SemanticBackend = "external"
	BackendRg       SemanticBackend = "rg"
	BackendBuiltin  SemanticBackend = "builtin"
	BackendNone     SemanticBackend = "none"
)

// SemanticHit is one candidate's Stage-3 result.
type SemanticHit struct {
	Score        float64
	MatchedTerms []string
	Snippet      string
}

// externalHitsDoc mirrors the external semantic tool's JSON contract
//: `{ hits: [ { path, score, snippets: [ { matched_terms, lines } ] } ] }`.
type externalHitsDoc struct {
	Hits []struct {
		Path     string  `json:"path"`
		Score    float64 `json:"score"`
		Snippets []struct {
			MatchedTerms []string `json:"matched_terms"`
			Lines        []struct {
				Line int    `json:"line"`
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"snippets"`
	} `json:"hits"`
}

// SemanticSearch runs Stage 3 over the candidate set (never the whole
// repo): try an external semantic command if configured and reachable,
// fall back to `rg` restricted to candidate paths, fall back to a
// builtin term-overlap scorer. Any stage failure falls through to the
// next rather than aborting the plan.
func SemanticSearch(ctx context.Context, rootPath string, candidates []*Candidate, tags []string, externalCmd string, logger *slog.Logger) (map[string]SemanticHit, SemanticBackend) {
	if logger == nil {
		logger = slog.Default()
	}

	if externalCmd != "" {
		hits, err := runExternalSemantic(ctx, externalCmd, rootPath, candidates, tags)
		if err == nil {
			return hits, BackendExternal
		}
		logger.Warn("planner.semantic.external_failed", "err", err)
	}

	rgHits, err := runRgSemantic(ctx, rootPath, candidates, tags)
	if err != nil {
		logger.Debug("planner.semantic.rg_failed", "err", err)
	} else if len(rgHits) > 0 {
		return rgHits, BackendRg
	}

	return runBuiltinSemantic(candidates, tags), BackendBuiltin
}

func candidatePaths(candidates []*Candidate) []string {
	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.File.Path
	}
	return paths
}

// runExternalSemantic shells out to an operator-configured semantic
// search tool, passing the candidate set and task tags, and parses its
// JSON contract.
func runExternalSemantic(ctx context.Context, cmdPath, rootPath string, candidates []*Candidate, tags []string) (map[string]SemanticHit, error) {
	ctx, cancel := context.WithTimeout(ctx, externalServiceTimeout)
	defer cancel()

	args := append([]string{"--root", rootPath, "--query", strings.Join(tags, " ")}, candidatePaths(candidates)...)
	cmd := exec.CommandContext(ctx, cmdPath, args...) //nolint:gosec // G204: operator-configured binary
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("planner: external semantic command: %w", err)
	}

	var doc externalHitsDoc
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return nil, fmt.Errorf("planner: parse external semantic output: %w", err)
	}

	hits := make(map[string]SemanticHit, len(doc.Hits))
	for _, h := range doc.Hits {
		snippet := ""
		var terms []string
		if len(h.Snippets) > 0 {
			terms = h.Snippets[0].MatchedTerms
			if len(h.Snippets[0].Lines) > 0 {
				snippet = h.Snippets[0].Lines[0].Text
			}
		}
		hits[h.Path] = SemanticHit{Score: clamp01(h.Score), MatchedTerms: terms, Snippet: snippet}
	}
	return hits, nil
}

// runRgSemantic shells out to ripgrep restricted to the candidate
// paths, one pattern per tag, and scores a path by how many distinct
// tags matched.
func runRgSemantic(ctx context.Context, rootPath string, candidates []*Candidate, tags []string) (map[string]SemanticHit, error) {
	if len(tags) == 0 || len(candidates) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, externalServiceTimeout)
	defer cancel()

	pattern := strings.Join(escapeRegexTerms(tags), "|")
	args := []string{"--json", "-i", pattern}
	args = append(args, candidatePaths(candidates)...)
	cmd := exec.CommandContext(ctx, "rg", args...) //nolint:gosec // G204: fixed binary name, args are candidate paths from our own scan
	cmd.Dir = rootPath
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	// rg exits 1 when there are zero matches; that's not a failure.
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return map[string]SemanticHit{}, nil
		}
		return nil, fmt.Errorf("planner: rg: %w", err)
	}

	return parseRgJSON(stdout.Bytes(), tags), nil
}

type rgMatchLine struct {
	Type string `json:"type"`
	Data struct {
		Path struct {
			Text string `json:"text"`
		} `json:"path"`
		Lines struct {
			Text string `json:"text"`
		} `json:"lines"`
	} `json:"data"`
}

func parseRgJSON(output []byte, tags []string) map[string]SemanticHit {
	hits := make(map[string]SemanticHit)
	for _, line := range bytes.Split(output, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var rec rgMatchLine
		if err := json.Unmarshal(line, &rec); err != nil || rec.Type != "match" {
			continue
		}
		path := rec.Data.Path.Text
		text := strings.ToLower(rec.Data.Lines.Text)

		h := hits[path]
		for _, tag := range tags {
			if strings.Contains(text, strings.ToLower(tag)) && !containsTerm(h.MatchedTerms, tag) {
				h.MatchedTerms = append(h.MatchedTerms, tag)
			}
		}
		if h.Snippet == "" {
			h.Snippet = strings.TrimSpace(rec.Data.Lines.Text)
		}
		h.Score = clamp01(float64(len(h.MatchedTerms)) / float64(len(tags)))
		hits[path] = h
	}
	return hits
}

func containsTerm(terms []string, term string) bool {
	for _, t := range terms {
		if t == term {
			return true
		}
	}
	return false
}

func escapeRegexTerms(tags []string) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = regexp.QuoteMeta(t)
	}
	return out
}

// runBuiltinSemantic is the final, always-available rung: a pure
// term-overlap scorer against each candidate's extracted symbol names
// and import list (never the whole file body, since bodies aren't
// cached).
func runBuiltinSemantic(candidates []*Candidate, tags []string) map[string]SemanticHit {
	hits := make(map[string]SemanticHit, len(candidates))
	if len(tags) == 0 {
		return hits
	}
	for _, c := range candidates {
		var matched []string
		haystack := strings.ToLower(c.File.Path)
		for _, sym := range c.File.PubSymbols {
			haystack += " " + strings.ToLower(sym.Name)
		}
		for _, imp := range c.File.Imports {
			haystack += " " + strings.ToLower(imp)
		}
		for _, tag := range tags {
			if strings.Contains(haystack, tag) {
				matched = append(matched, tag)
			}
		}
		if len(matched) > 0 {
			hits[c.File.Path] = SemanticHit{
				Score:        clamp01(float64(len(matched)) / float64(len(tags))),
				MatchedTerms: matched,
			}
		}
	}
	return hits
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
