// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/rtk-project/rtk/internal/ui"
)

func runConfigShow(args []string, configPath string, globals GlobalFlags) {
	cfg := loadConfig(configPath)

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(cfg)
		return
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		ui.Errf("cannot render configuration: %v", err)
		os.Exit(1)
	}
	ui.Header("Effective Configuration")
	fmt.Print(string(data))
}
