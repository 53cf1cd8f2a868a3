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
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Curator/pkg/logging"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 32, cfg.Graph.MaxDepth)
	assert.Equal(t, 500, cfg.Graph.PushLimit)
	assert.Equal(t, 3, cfg.Cache.MaxAttempts)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curator.yaml")
	writeFile(t, path, `
database:
  driver: postgres
  dsn: host=db user=curator
graph:
  max_depth: 8
log:
  level: debug
  json: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 8, cfg.Graph.MaxDepth)
	assert.Equal(t, 500, cfg.Graph.PushLimit)
	assert.Equal(t, logging.LevelDebug, cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 8090, cfg.Server.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curator.yaml")
	writeFile(t, path, "server:\n  port: 9000\n")
	t.Setenv("CURATOR_HTTP_PORT", "9100")
	t.Setenv("CURATOR_LOG_LEVEL", "warn")
	t.Setenv("CURATOR_SNAPSHOT_ENABLED", "true")
	t.Setenv("CURATOR_SNAPSHOT_DIR", "/var/lib/curator")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, logging.LevelWarn, cfg.Log.Level)
	assert.True(t, cfg.Snapshot.Enabled)
	assert.Equal(t, "/var/lib/curator", cfg.Snapshot.Dir)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "graph: [")
	_, err = Load(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	writeFile(t, invalid, "graph:\n  max_depth: 1000\ndatabase:\n  driver: oracle\n")
	_, err = Load(invalid)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "MaxDepth")
	assert.Contains(t, err.Error(), "Driver")
}

func TestApplyEnv_ParseErrors(t *testing.T) {
	env := map[string]string{
		"CURATOR_PUSH_LIMIT":        "lots",
		"CURATOR_LOG_JSON":          "maybe",
		"CURATOR_LOG_LEVEL":         "shout",
		"CURATOR_PROPAGATION_DEPTH": "4",
	}
	cfg := Default()
	err := applyEnv(cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "CURATOR_PUSH_LIMIT")
	assert.Contains(t, err.Error(), "CURATOR_LOG_JSON")
	assert.Contains(t, err.Error(), "CURATOR_LOG_LEVEL")
	assert.Equal(t, 4, cfg.Graph.PropagationDepth)
}

func TestValidate_SnapshotDirRequiredWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Snapshot.Enabled = true
	cfg.Snapshot.Dir = ""
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curator.yaml")
	writeFile(t, path, "graph:\n  push_limit: 100\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var latest atomic.Int64
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) {
			latest.Store(int64(cfg.Graph.PushLimit))
		}, nil)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "graph:\n  push_limit: 0\n")
	time.Sleep(DefaultDebounce + 200*time.Millisecond)
	assert.Zero(t, latest.Load(), "invalid reload must not be delivered")

	writeFile(t, path, "graph:\n  push_limit: 250\n")
	assert.Eventually(t, func() bool { return latest.Load() == 250 },
		3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
