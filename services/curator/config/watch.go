// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last event before
// reloading.
const DefaultDebounce = 250 * time.Millisecond

// ChangeHandler receives each successfully reloaded configuration.
type ChangeHandler func(cfg *Config)

// Watch reloads path whenever it changes and passes the new configuration
// to onChange.
//
// Description:
//
//	Watches the file's directory so editors that replace the file by
//	rename are still seen. Events are debounced. A reload that fails to
//	parse or validate is logged and skipped; the previous configuration
//	stays in effect. Watch blocks until ctx is done.
//
// Inputs:
//
//	ctx - Stops the watch when cancelled.
//	path - Configuration file to watch.
//	onChange - Called from the watch goroutine with each valid reload.
//	logger - Receives reload failures. Nil uses slog.Default().
//
// Outputs:
//
//	error - Non-nil if the watcher cannot be created. ctx cancellation
//	returns nil.
func Watch(ctx context.Context, path string, onChange ChangeHandler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(DefaultDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(DefaultDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			cfg, err := Load(abs)
			if err != nil {
				logger.Warn("config reload rejected",
					slog.String("path", abs),
					slog.String("error", err.Error()),
				)
				continue
			}
			logger.Info("config reloaded", slog.String("path", abs))
			onChange(cfg)
		}
	}
}
