// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package extractor

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/rtk-project/rtk/pkg/artifact"
)

// ParseManifest dispatches to the parser for a recognized ecosystem
// manifest file, by basename. It fails open.3: any parse
// error degrades to an empty manifest rather than aborting the index.
func ParseManifest(path string, content []byte, logger *slog.Logger) artifact.DepManifest {
	if logger == nil {
		logger = slog.Default()
	}
	base := filepath.Base(path)

	var (
		m   artifact.DepManifest
		err error
	)
	switch base {
	case "go.mod":
		m, err = parseGoMod(content)
	case "package.json":
		m, err = parsePackageJSON(content)
	case "requirements.txt":
		m, err = parseRequirementsTxt(content), nil
	case "Cargo.toml":
		m, err = parseCargoToml(content)
	case "pyproject.toml":
		m, err = parsePyProjectToml(content)
	default:
		return artifact.DepManifest{}
	}
	if err != nil {
		logger.Warn("extractor.manifest.parse_failed", "path", path, "err", err)
		return artifact.DepManifest{}
	}
	return m
}

// IsManifestFile reports whether basename is a manifest ParseManifest
// knows how to read.
func IsManifestFile(path string) bool {
	switch filepath.Base(path) {
	case "go.mod", "package.json", "requirements.txt", "Cargo.toml", "pyproject.toml":
		return true
	}
	return false
}

var goModRequireRe = regexp.MustCompile(`^\s*([^\s]+)\s+(v[^\s]+)`)

func parseGoMod(content []byte) (artifact.DepManifest, error) {
	var m artifact.DepManifest
	scanner := bufio.NewScanner(bytes.NewReader(content))
	inRequireBlock := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "require (":
			inRequireBlock = true
			continue
		case line == ")":
			inRequireBlock = false
			continue
		case strings.HasPrefix(line, "require ") && !strings.Contains(line, "("):
			if dep, ok := parseGoModRequireLine(strings.TrimPrefix(line, "require ")); ok {
				m.Runtime = append(m.Runtime, dep)
			}
			continue
		}
		if inRequireBlock {
			if dep, ok := parseGoModRequireLine(line); ok {
				if strings.Contains(line, "// indirect") {
					m.Build = append(m.Build, dep)
				} else {
					m.Runtime = append(m.Runtime, dep)
				}
			}
		}
	}
	return m, scanner.Err()
}

func parseGoModRequireLine(line string) (artifact.Dependency, bool) {
	m := goModRequireRe.FindStringSubmatch(line)
	if m == nil {
		return artifact.Dependency{}, false
	}
	return artifact.Dependency{Name: m[1], VersionOrRange: m[2]}, true
}

func parsePackageJSON(content []byte) (artifact.DepManifest, error) {
	var doc struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(content, &doc); err != nil {
		return artifact.DepManifest{}, err
	}
	var m artifact.DepManifest
	for name, version := range doc.Dependencies {
		m.Runtime = append(m.Runtime, artifact.Dependency{Name: name, VersionOrRange: version})
	}
	for name, version := range doc.DevDependencies {
		m.Dev = append(m.Dev, artifact.Dependency{Name: name, VersionOrRange: version})
	}
	return m, nil
}

var requirementLineRe = regexp.MustCompile(`^([A-Za-z0-9_.\-\[\]]+)\s*([<>=!~].*)?$`)

func parseRequirementsTxt(content []byte) artifact.DepManifest {
	var m artifact.DepManifest
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if match := requirementLineRe.FindStringSubmatch(line); match != nil {
			m.Runtime = append(m.Runtime, artifact.Dependency{Name: match[1], VersionOrRange: strings.TrimSpace(match[2])})
		}
	}
	return m
}

func parseCargoToml(content []byte) (artifact.DepManifest, error) {
	var doc struct {
		Dependencies    map[string]any `toml:"dependencies"`
		DevDependencies map[string]any `toml:"dev-dependencies"`
		BuildDeps       map[string]any `toml:"build-dependencies"`
	}
	if err := toml.Unmarshal(content, &doc); err != nil {
		return artifact.DepManifest{}, err
	}
	var m artifact.DepManifest
	m.Runtime = tomlDepsToList(doc.Dependencies)
	m.Dev = tomlDepsToList(doc.DevDependencies)
	m.Build = tomlDepsToList(doc.BuildDeps)
	return m, nil
}

func parsePyProjectToml(content []byte) (artifact.DepManifest, error) {
	var doc struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
	}
	if err := toml.Unmarshal(content, &doc); err != nil {
		return artifact.DepManifest{}, err
	}
	var m artifact.DepManifest
	for _, spec := range doc.Project.Dependencies {
		if match := requirementLineRe.FindStringSubmatch(strings.TrimSpace(spec)); match != nil {
			m.Runtime = append(m.Runtime, artifact.Dependency{Name: match[1], VersionOrRange: strings.TrimSpace(match[2])})
		}
	}
	return m, nil
}

func tomlDepsToList(raw map[string]any) []artifact.Dependency {
	deps := make([]artifact.Dependency, 0, len(raw))
	for name, v := range raw {
		version := ""
		switch val := v.(type) {
		case string:
			version = val
		case map[string]any:
			if ver, ok := val["version"].(string); ok {
				version = ver
			}
		}
		deps = append(deps, artifact.Dependency{Name: name, VersionOrRange: version})
	}
	return deps
}
