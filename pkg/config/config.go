// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config holds the RTK configuration document: store tuning,
// renderer feature flags, and planner defaults. Configuration is loaded
// from a TOML file, then overridden by environment variables, per the
// precedence file < env < flag.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/rtk-project/rtk/pkg/atomicfile"
)

// Config is the root RTK configuration document.
type Config struct {
	Store    StoreConfig    `toml:"store"`
	Features FeaturesConfig `toml:"features"`
	Planner  PlannerConfig  `toml:"planner"`
}

// StoreConfig tunes the persistent artifact store (C1).
type StoreConfig struct {
	// TTLSeconds is the freshness TTL: artifacts older than this are STALE.
	TTLSeconds int64 `toml:"ttl_seconds"`
	// MaxProjects bounds LRU eviction.
	MaxProjects int `toml:"max_projects"`
	// SymbolsPerFileCap caps pub_symbols per FileArtifact.
	SymbolsPerFileCap int `toml:"symbols_per_file_cap"`
	// ImportsPerFileCap caps the imports set per FileArtifact.
	ImportsPerFileCap int `toml:"imports_per_file_cap"`
	// DBPath overrides the default user-cache DB location.
	DBPath string `toml:"db_path,omitempty"`
	// Durability selects "full" (fsync everything) or "fast" (skip the
	// final parent-directory fsync) for the atomic write Save makes of
	// the config file.
	Durability string `toml:"durability"`
}

// FeaturesConfig is the AND-mask of renderer layers and indexer behaviors.
// Every field except Strict defaults to enabled (true); Strict defaults
// to false. Clearing a layer or behavior can only remove
// capability, never add it back beyond what query-type routing allows.
type FeaturesConfig struct {
	LayerProjectMap  bool `toml:"layer_project_map"`
	LayerModuleIndex bool `toml:"layer_module_index"`
	LayerTypeGraph   bool `toml:"layer_type_graph"`
	LayerAPISurface  bool `toml:"layer_api_surface"`
	LayerDepManifest bool `toml:"layer_dep_manifest"`
	LayerTestMap     bool `toml:"layer_test_map"`
	LayerChangeDigest bool `toml:"layer_change_digest"`
	Cascade          bool `toml:"cascade"`
	GitDelta         bool `toml:"git_delta"`
	Strict           bool `toml:"strict"`
}

// PlannerConfig tunes the plan-context pipeline (C7).
type PlannerConfig struct {
	CandidateCap      int     `toml:"candidate_cap"`
	SemanticCap       int     `toml:"semantic_cap"`
	MinFinalScore     float64 `toml:"min_final_score"`
	TokenBudgetDefault int    `toml:"token_budget_default"`
	SemanticHost      string  `toml:"semantic_host,omitempty"`
	MLRerank          bool    `toml:"ml_rerank"`
}

// Default returns the zero-config install defaults.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			TTLSeconds:        300,
			MaxProjects:       50,
			SymbolsPerFileCap: 64,
			ImportsPerFileCap: 64,
			Durability:        "full",
		},
		Features: FeaturesConfig{
			LayerProjectMap:   true,
			LayerModuleIndex:  true,
			LayerTypeGraph:    true,
			LayerAPISurface:   true,
			LayerDepManifest:  true,
			LayerTestMap:      true,
			LayerChangeDigest: true,
			Cascade:           true,
			GitDelta:          true,
			Strict:            false,
		},
		Planner: PlannerConfig{
			CandidateCap:       60,
			SemanticCap:        30,
			MinFinalScore:      0.12,
			TokenBudgetDefault: 8000,
			MLRerank:           false,
		},
	}
}

// Load reads a TOML config document from path, falling back to defaults
// for anything unset, then applies environment variable overrides.
// A missing file is not an error: a zero-config install must work.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				applyEnvOverrides(cfg)
				return cfg, nil
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes cfg as TOML to path, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	mode := atomicfile.Full
	if cfg.Store.Durability == "fast" {
		mode = atomicfile.Fast
	}
	return atomicfile.Write(path, data, 0o640, mode)
}

// applyEnvOverrides layers environment variables over the loaded config.
// Env vars win over the file, which wins over Default().
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RTK_DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := os.Getenv("RTK_TTL_SECONDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Store.TTLSeconds = n
		}
	}
	if v := os.Getenv("RTK_MAX_PROJECTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.MaxProjects = n
		}
	}
	if v := os.Getenv("RTK_STRICT"); v != "" {
		cfg.Features.Strict = parseBool(v, cfg.Features.Strict)
	}
	if v := os.Getenv("RTK_DISABLE_CASCADE"); v != "" {
		cfg.Features.Cascade = !parseBool(v, false)
	}
	if v := os.Getenv("RTK_DISABLE_GIT_DELTA"); v != "" {
		cfg.Features.GitDelta = !parseBool(v, false)
	}
	for _, layer := range strings.Split(os.Getenv("RTK_DISABLE_LAYER"), ",") {
		disableLayer(cfg, strings.TrimSpace(layer))
	}
	if v := os.Getenv("RTK_PLAN_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Planner.TokenBudgetDefault = n
		}
	}
	if v := os.Getenv("RTK_CANDIDATE_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Planner.CandidateCap = n
		}
	}
	if v := os.Getenv("RTK_SEMANTIC_HOST"); v != "" {
		cfg.Planner.SemanticHost = v
	}
	if v := os.Getenv("RTK_ML_RERANK"); v != "" {
		cfg.Planner.MLRerank = parseBool(v, cfg.Planner.MLRerank)
	}
}

func disableLayer(cfg *Config, name string) {
	switch name {
	case "project_map", "L0":
		cfg.Features.LayerProjectMap = false
	case "module_index", "L1":
		cfg.Features.LayerModuleIndex = false
	case "type_graph", "L2":
		cfg.Features.LayerTypeGraph = false
	case "api_surface", "L3":
		cfg.Features.LayerAPISurface = false
	case "dep_manifest", "L4":
		cfg.Features.LayerDepManifest = false
	case "test_map", "L5":
		cfg.Features.LayerTestMap = false
	case "change_digest", "L6":
		cfg.Features.LayerChangeDigest = false
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
