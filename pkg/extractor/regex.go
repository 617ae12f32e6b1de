// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package extractor

import (
	"regexp"
	"strings"

	"github.com/rtk-project/rtk/pkg/artifact"
)

// RegexExtractor is the mandatory, always-available backend: per-
// language regex patterns for public declarations, import/use/require
// directives, and implements/extends type relations. Struct-field
// (contains) and alias relations are not extracted. It never returns
// an error: an unmatched language simply yields an empty FileOutput.
type RegexExtractor struct{}

// NewRegexExtractor constructs the default backend.
func NewRegexExtractor() *RegexExtractor { return &RegexExtractor{} }

// Supports reports true for every language RegexExtractor has a
// pattern set for, and false for any other language.
func (RegexExtractor) Supports(language string) bool {
	_, ok := languagePatterns[language]
	return ok
}

func (RegexExtractor) Extract(language string, content []byte, limits Limits) (FileOutput, error) {
	pat, ok := languagePatterns[language]
	if !ok {
		return FileOutput{}, nil
	}
	text := string(content)
	lines := strings.Split(text, "\n")

	var symbols []artifact.SymbolRecord
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		for _, rule := range pat.symbolRules {
			m := rule.re.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}
			name := ""
			if rule.nameGroup > 0 && rule.nameGroup < len(m) {
				name = m[rule.nameGroup]
			}
			if name == "" {
				continue
			}
			symbols = append(symbols, artifact.SymbolRecord{
				Kind:       rule.kind,
				Name:       name,
				Signature:  truncateSignature(trimmed, limits.MaxSignatureWidth),
				Visibility: rule.visibility(name),
				Line:       i + 1,
			})
			break
		}
	}
	symbols = capSymbols(symbols, limits.MaxSymbolsPerFile)

	var imports []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, re := range pat.importRules {
			m := re.FindStringSubmatch(trimmed)
			if m == nil || len(m) < 2 {
				continue
			}
			imports = append(imports, normalizeImport(m[1], pat.prefixDenylist))
		}
	}
	imports = dedupeImports(imports, limits.MaxImportsPerFile)

	relations := extractTypeRelations(lines, pat)

	return FileOutput{Symbols: symbols, Imports: imports, TypeRelations: relations}, nil
}

type symbolRule struct {
	re        *regexp.Regexp
	nameGroup int
	kind      artifact.SymbolKind
	// visibility derives a SymbolRecord's visibility from the matched
	// name; most languages use a capitalization or keyword convention.
	visibility func(name string) artifact.Visibility
}

type languagePattern struct {
	symbolRules    []symbolRule
	importRules    []*regexp.Regexp
	implementsRule *regexp.Regexp // Type `implements`/`:` Interface
	extendsRule    *regexp.Regexp
	containsRule   *regexp.Regexp // struct field referencing a user type
	prefixDenylist []string
}

func goVisibility(name string) artifact.Visibility {
	if name != "" && strings.ToUpper(name[:1]) == name[:1] {
		return artifact.VisibilityPublic
	}
	return artifact.VisibilityPrivate
}

func alwaysPublic(string) artifact.Visibility { return artifact.VisibilityPublic }

func pythonVisibility(name string) artifact.Visibility {
	if strings.HasPrefix(name, "_") {
		return artifact.VisibilityPrivate
	}
	return artifact.VisibilityPublic
}

var languagePatterns = map[string]languagePattern{
	"go": {
		symbolRules: []symbolRule{
			{re: regexp.MustCompile(`^func\s+\([^)]+\)\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`), nameGroup: 1, kind: artifact.SymbolMethod, visibility: goVisibility},
			{re: regexp.MustCompile(`^func\s+([A-Za-z_][A-Za-z0-9_]*)\s*[\[(]`), nameGroup: 1, kind: artifact.SymbolFunction, visibility: goVisibility},
			{re: regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+struct\b`), nameGroup: 1, kind: artifact.SymbolStruct, visibility: goVisibility},
			{re: regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+interface\b`), nameGroup: 1, kind: artifact.SymbolInterface, visibility: goVisibility},
			{re: regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+`), nameGroup: 1, kind: artifact.SymbolTypeAlias, visibility: goVisibility},
			{re: regexp.MustCompile(`^const\s+([A-Za-z_][A-Za-z0-9_]*)\s*`), nameGroup: 1, kind: artifact.SymbolConst, visibility: goVisibility},
		},
		importRules:    []*regexp.Regexp{regexp.MustCompile(`^\s*"([^"]+)"\s*$`)},
		implementsRule: regexp.MustCompile(`^type\s+\w+\s+struct\b.*//\s*implements\s+([A-Za-z_][A-Za-z0-9_.]*)`),
		containsRule:   regexp.MustCompile(`^\s*[A-Za-z_][A-Za-z0-9_]*\s+\*?([A-Z][A-Za-z0-9_]*)\s*$`),
		prefixDenylist: []string{},
	},
	"python": {
		symbolRules: []symbolRule{
			{re: regexp.MustCompile(`^class\s+([A-Za-z_][A-Za-z0-9_]*)\s*[:(]`), nameGroup: 1, kind: artifact.SymbolClass, visibility: pythonVisibility},
			{re: regexp.MustCompile(`^def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`), nameGroup: 1, kind: artifact.SymbolFunction, visibility: pythonVisibility},
			{re: regexp.MustCompile(`^\s+def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`), nameGroup: 1, kind: artifact.SymbolMethod, visibility: pythonVisibility},
		},
		importRules: []*regexp.Regexp{
			regexp.MustCompile(`^import\s+([A-Za-z0-9_.]+)`),
			regexp.MustCompile(`^from\s+([A-Za-z0-9_.]+)\s+import\b`),
		},
		extendsRule: regexp.MustCompile(`^class\s+\w+\s*\(([^)]+)\)\s*:`),
	},
	"javascript": {
		symbolRules: []symbolRule{
			{re: regexp.MustCompile(`^(?:export\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)\b`), nameGroup: 1, kind: artifact.SymbolClass, visibility: alwaysPublic},
			{re: regexp.MustCompile(`^(?:export\s+)?(?:async\s+)?function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`), nameGroup: 1, kind: artifact.SymbolFunction, visibility: alwaysPublic},
			{re: regexp.MustCompile(`^(?:export\s+)?const\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(?:async\s*)?\(`), nameGroup: 1, kind: artifact.SymbolFunction, visibility: alwaysPublic},
		},
		importRules: []*regexp.Regexp{
			regexp.MustCompile(`^import\s+.*from\s+['"]([^'"]+)['"]`),
			regexp.MustCompile(`require\(['"]([^'"]+)['"]\)`),
		},
		extendsRule: regexp.MustCompile(`class\s+\w+\s+extends\s+([A-Za-z_$][A-Za-z0-9_$.]*)`),
	},
	"typescript": {
		symbolRules: []symbolRule{
			{re: regexp.MustCompile(`^(?:export\s+)?interface\s+([A-Za-z_$][A-Za-z0-9_$]*)\b`), nameGroup: 1, kind: artifact.SymbolInterface, visibility: alwaysPublic},
			{re: regexp.MustCompile(`^(?:export\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)\b`), nameGroup: 1, kind: artifact.SymbolClass, visibility: alwaysPublic},
			{re: regexp.MustCompile(`^(?:export\s+)?type\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=`), nameGroup: 1, kind: artifact.SymbolTypeAlias, visibility: alwaysPublic},
			{re: regexp.MustCompile(`^(?:export\s+)?(?:async\s+)?function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*[<(]`), nameGroup: 1, kind: artifact.SymbolFunction, visibility: alwaysPublic},
			{re: regexp.MustCompile(`^enum\s+([A-Za-z_$][A-Za-z0-9_$]*)\b`), nameGroup: 1, kind: artifact.SymbolEnum, visibility: alwaysPublic},
		},
		importRules: []*regexp.Regexp{
			regexp.MustCompile(`^import\s+.*from\s+['"]([^'"]+)['"]`),
		},
		implementsRule: regexp.MustCompile(`class\s+\w+\s+implements\s+([A-Za-z_$][A-Za-z0-9_$., ]*)`),
		extendsRule:    regexp.MustCompile(`(?:class|interface)\s+(\w+)\s+extends\s+([A-Za-z_$][A-Za-z0-9_$., ]*)`),
	},
	"rust": {
		symbolRules: []symbolRule{
			{re: regexp.MustCompile(`^pub\s+fn\s+([A-Za-z_][A-Za-z0-9_]*)\s*[<(]`), nameGroup: 1, kind: artifact.SymbolFunction, visibility: alwaysPublic},
			{re: regexp.MustCompile(`^pub\s+struct\s+([A-Za-z_][A-Za-z0-9_]*)\b`), nameGroup: 1, kind: artifact.SymbolStruct, visibility: alwaysPublic},
			{re: regexp.MustCompile(`^pub\s+enum\s+([A-Za-z_][A-Za-z0-9_]*)\b`), nameGroup: 1, kind: artifact.SymbolEnum, visibility: alwaysPublic},
			{re: regexp.MustCompile(`^pub\s+trait\s+([A-Za-z_][A-Za-z0-9_]*)\b`), nameGroup: 1, kind: artifact.SymbolTrait, visibility: alwaysPublic},
		},
		importRules:    []*regexp.Regexp{regexp.MustCompile(`^use\s+([A-Za-z0-9_:]+)`)},
		implementsRule: regexp.MustCompile(`^impl\s+([A-Za-z_][A-Za-z0-9_]*)\s+for\s+([A-Za-z_][A-Za-z0-9_]*)`),
		prefixDenylist: []string{"super::", "crate::", "std::", "self::"},
	},
	"java": {
		symbolRules: []symbolRule{
			{re: regexp.MustCompile(`^(?:public|protected)\s+(?:abstract\s+|final\s+)?class\s+([A-Za-z_][A-Za-z0-9_]*)\b`), nameGroup: 1, kind: artifact.SymbolClass, visibility: alwaysPublic},
			{re: regexp.MustCompile(`^(?:public|protected)\s+interface\s+([A-Za-z_][A-Za-z0-9_]*)\b`), nameGroup: 1, kind: artifact.SymbolInterface, visibility: alwaysPublic},
			{re: regexp.MustCompile(`^(?:public|protected)\s+enum\s+([A-Za-z_][A-Za-z0-9_]*)\b`), nameGroup: 1, kind: artifact.SymbolEnum, visibility: alwaysPublic},
		},
		importRules:    []*regexp.Regexp{regexp.MustCompile(`^import\s+([A-Za-z0-9_.]+);`)},
		implementsRule: regexp.MustCompile(`class\s+\w+.*\bimplements\s+([A-Za-z0-9_, ]+)`),
		extendsRule:    regexp.MustCompile(`class\s+\w+\s+extends\s+([A-Za-z_][A-Za-z0-9_]*)`),
	},
	"c": {
		symbolRules: []symbolRule{
			{re: regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_ *]*?)\s+([A-Za-z_][A-Za-z0-9_]*)\s*\([^;]*\)\s*\{?\s*$`), nameGroup: 2, kind: artifact.SymbolFunction, visibility: alwaysPublic},
		},
		importRules: []*regexp.Regexp{regexp.MustCompile(`^#include\s+[<"]([^">]+)[">]`)},
	},
	"cpp": {
		symbolRules: []symbolRule{
			{re: regexp.MustCompile(`^class\s+([A-Za-z_][A-Za-z0-9_]*)\b`), nameGroup: 1, kind: artifact.SymbolClass, visibility: alwaysPublic},
		},
		importRules: []*regexp.Regexp{regexp.MustCompile(`^#include\s+[<"]([^">]+)[">]`)},
		extendsRule: regexp.MustCompile(`class\s+\w+\s*:\s*(?:public|private|protected)\s+([A-Za-z_][A-Za-z0-9_:]*)`),
	},
}

// normalizeImport strips trailing punctuation and any configured
// framework-specific prefix.
func normalizeImport(raw string, denylist []string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ";")
	s = strings.TrimSuffix(s, "{")
	s = strings.Trim(s, "\"'")
	for _, prefix := range denylist {
		s = strings.TrimPrefix(s, prefix)
	}
	return s
}

// extractTypeRelations applies the per-language implements/extends
// rule over the full line set, conservatively: a match is recorded
// even when the target type cannot be fully resolved.
func extractTypeRelations(lines []string, pat languagePattern) []artifact.TypeRelation {
	var relations []artifact.TypeRelation
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if pat.implementsRule != nil {
			if m := pat.implementsRule.FindStringSubmatch(trimmed); m != nil {
				for _, target := range splitTypeList(lastGroup(m)) {
					relations = append(relations, artifact.TypeRelation{
						Source: firstGroup(m), Target: target, Kind: artifact.RelationImplements,
					})
				}
			}
		}
		if pat.extendsRule != nil {
			if m := pat.extendsRule.FindStringSubmatch(trimmed); m != nil {
				for _, target := range splitTypeList(lastGroup(m)) {
					relations = append(relations, artifact.TypeRelation{
						Source: firstGroup(m), Target: target, Kind: artifact.RelationExtends,
					})
				}
			}
		}
	}
	return relations
}

func firstGroup(m []string) string {
	if len(m) > 1 {
		return m[1]
	}
	return ""
}

func lastGroup(m []string) string {
	if len(m) > 0 {
		return m[len(m)-1]
	}
	return ""
}

func splitTypeList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
