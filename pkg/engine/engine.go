// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine wires the Store, Scanner, Extractor, Indexer,
// Freshness Controller, Renderer, and Planner into the four request
// entry points (explore, delta, refresh, plan) shared by the CLI and
// the local HTTP daemon.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/rtk-project/rtk/pkg/config"
	"github.com/rtk-project/rtk/pkg/extractor"
	"github.com/rtk-project/rtk/pkg/indexer"
	"github.com/rtk-project/rtk/pkg/store"
)

// Engine holds the long-lived, process-wide state a daemon or a
// single CLI invocation shares across requests: one Store connection
// pool, one extractor Router, and one Indexer.
type Engine struct {
	Store   *store.Store
	Router  *extractor.Router
	Indexer *indexer.Indexer
	Cfg     *config.Config
	Logger  *slog.Logger
}

// New opens the store and assembles the fixed pipeline described by
// cfg. Only one Engine should be constructed per process: the Store
// it opens holds the single process-local writer connection.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.Default()
	}

	dbPath := cfg.Store.DBPath
	if dbPath == "" {
		dbPath = store.DefaultPath("")
	}
	st, err := store.Open(dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("engine: open store: %w", err)
	}

	router := extractor.NewRouter(
		[]extractor.SymbolExtractor{extractor.NewTreeSitterExtractor()},
		extractor.NewRegexExtractor(),
		logger,
	)

	return &Engine{
		Store:   st,
		Router:  router,
		Indexer: indexer.New(router, logger),
		Cfg:     cfg,
		Logger:  logger,
	}, nil
}

// Close releases the underlying store connection.
func (e *Engine) Close() error {
	return e.Store.Close()
}
