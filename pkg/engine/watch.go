// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rtk-project/rtk/pkg/indexlog"
)

// watchSkipDirs are never watched, regardless of .gitignore contents:
// high-churn, high-volume directories whose changes never affect the
// cached artifact.
var watchSkipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, ".rtk": true, "__pycache__": true, ".venv": true,
}

const watchDebounce = time.Second

// WatchEvent reports the outcome of one debounced rebuild triggered
// by filesystem activity.
type WatchEvent struct {
	Response Response
	Err      error
}

// Watch recursively watches root for filesystem changes and triggers
// a debounced Refresh on each quiet period, emitting one WatchEvent
// per rebuild on the returned channel. It runs until ctx is canceled,
// at which point the channel is closed.
func (e *Engine) Watch(ctx context.Context, root string) (<-chan WatchEvent, error) {
	root, err := canonicalRoot(root)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	addDirs(watcher, root, e.Logger)

	events := make(chan WatchEvent)
	go e.watchLoop(ctx, watcher, root, events)
	return events, nil
}

func addDirs(watcher *fsnotify.Watcher, root string, logger interface {
	Warn(string, ...any)
}) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if watchSkipDirs[base] || (strings.HasPrefix(base, ".") && base != ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil && !os.IsPermission(err) {
			logger.Warn("engine.watch.add_failed", "path", path, "err", err)
		}
		return nil
	})
}

func (e *Engine) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, root string, events chan<- WatchEvent) {
	defer watcher.Close()
	defer close(events)

	var mu sync.Mutex
	inProgress := false

	var debounceTimer *time.Timer
	var timerCh <-chan time.Time

	triggerRebuild := func() {
		mu.Lock()
		if inProgress {
			mu.Unlock()
			return
		}
		inProgress = true
		mu.Unlock()

		indexlog.Append(filepath.Join(root, ".rtk"), "reindex triggered (watch)")
		resp, err := e.Refresh(ctx, RefreshRequest{ProjectRoot: root})

		mu.Lock()
		inProgress = false
		mu.Unlock()

		select {
		case events <- WatchEvent{Response: resp, Err: err}:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			_ = ev
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(watchDebounce)
			timerCh = debounceTimer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			e.Logger.Warn("engine.watch.fsnotify_error", "err", err)
		case <-timerCh:
			timerCh = nil
			go triggerRebuild()
		}
	}
}
