// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rtk-project/rtk/internal/errors"
	"github.com/rtk-project/rtk/pkg/config"
	"github.com/rtk-project/rtk/pkg/engine"
)

const configRelPath = ".rtk/project.toml"

// findConfigFile walks upward from the current directory looking for
// .rtk/project.toml, the same way git walks upward for .git.
func findConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, configRelPath)
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// resolvedConfigPath applies the precedence: explicit --config flag >
// RTK_CONFIG_PATH env var > upward discovery from cwd.
func resolvedConfigPath(configPath string) (string, error) {
	if configPath != "" {
		return absPath(configPath)
	}
	if envPath := os.Getenv("RTK_CONFIG_PATH"); envPath != "" {
		return absPath(envPath)
	}
	return findConfigFile()
}

func absPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// loadConfig resolves and loads the effective configuration. A
// missing config file is not an error: rtk works zero-config.
func loadConfig(configPath string) *config.Config {
	resolved, err := resolvedConfigPath(configPath)
	if err != nil {
		return config.Default()
	}
	cfg, err := config.Load(resolved)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load configuration",
			fmt.Sprintf("%s could not be parsed: %v", resolved, err),
			"Check the file's TOML syntax, or delete it to fall back to defaults",
			err,
		), false)
	}
	return cfg
}

// newLogger builds the process logger: text handler at warn level by
// default, info under -v, debug under -vv, and a no-op sink under
// --quiet/--json so progress never interleaves with JSON output.
func newLogger(g GlobalFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case g.Quiet:
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 100}))
	case g.Verbose >= 2:
		level = slog.LevelDebug
	case g.Verbose >= 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newEngine loads configuration, opens the store, and assembles an
// Engine, exiting with a categorized error on failure.
func newEngine(configPath string, g GlobalFlags) (*engine.Engine, *config.Config) {
	cfg := loadConfig(configPath)
	logger := newLogger(g)

	eng, err := engine.New(cfg, logger)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot open the rtk cache database",
			err.Error(),
			"Check file permissions on the data directory, or set RTK_DB_PATH to an alternate location",
			err,
		), g.JSON)
	}
	return eng, cfg
}

// projectRootFlag resolves the --root flag (defaulting to the
// current directory) to an absolute path.
func projectRootFlag(root string) string {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return root
	}
	return abs
}
