// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Curator/services/curator"
	"github.com/AleutianAI/Curator/services/curator/config"
)

const cliFixture = `
objects:
  - {ref: u, type: unit, name: NMNH}
  - {ref: s, type: subject, name: Skull, unit: u}
  - {ref: i, type: item, name: Skull Scan}
  - {ref: m2, type: model, name: Beta}
  - {ref: cd, type: capture_data, name: Photogrammetry}
  - {ref: m1, type: model, name: Alpha}
relations:
  - {master: u, derived: s}
  - {master: s, derived: i}
  - {master: i, derived: m2}
  - {master: i, derived: cd}
  - {master: i, derived: m1}
licenses:
  - {id: 1, name: CC0, restrict_level: 10}
  - {id: 2, name: Restricted, restrict_level: 50}
assignments:
  - {license: 2, object: s}
`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cliFixture), 0o600))
	return path
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, fixturePath, logLevelFlag, jsonOutput = "", "", "", false
	walkMode, walkDepth, clearAll = "descendants", 0, false
	licenseStart, licenseEnd = "", ""

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestWalk_Text(t *testing.T) {
	fixture := writeFixture(t)

	out, err := executeCommand(t, "walk", "3", "--fixture", fixture, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "root 3 (descendants): 4 objects")
	assert.Contains(t, out, "valid hierarchy: true")
	assert.Contains(t, out, "3(item) -> 6(model)")
}

func TestWalk_JSONAncestors(t *testing.T) {
	fixture := writeFixture(t)

	out, err := executeCommand(t, "walk", "6", "--mode", "ancestors", "--json", "--fixture", fixture)
	require.NoError(t, err)

	var got struct {
		RootID    int64 `json:"root_id"`
		Relations []any `json:"relations"`
		NoCycles  bool  `json:"no_cycles"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, int64(6), got.RootID)
	assert.Len(t, got.Relations, 3)
	assert.True(t, got.NoCycles)
}

func TestWalk_InvalidArgs(t *testing.T) {
	fixture := writeFixture(t)

	_, err := executeCommand(t, "walk", "abc", "--fixture", fixture)
	assert.Error(t, err)

	_, err = executeCommand(t, "walk", "3", "--mode", "sideways", "--fixture", fixture)
	assert.Error(t, err)

	out, err := executeCommand(t, "walk", "99", "--fixture", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "root 99 (descendants): 0 objects")

	_, err = executeCommand(t, "integrity", "99", "--fixture", fixture)
	assert.ErrorIs(t, err, curator.ErrObjectNotFound)
}

func TestChildren(t *testing.T) {
	fixture := writeFixture(t)

	out, err := executeCommand(t, "children", "3", "--json", "--fixture", fixture)
	require.NoError(t, err)

	var children []curator.Child
	require.NoError(t, json.Unmarshal([]byte(out), &children))
	require.Len(t, children, 3)
	names := []string{children[0].Name, children[1].Name, children[2].Name}
	assert.ElementsMatch(t, []string{"Alpha", "Beta", "Photogrammetry"}, names)
}

func TestIntegrity(t *testing.T) {
	fixture := writeFixture(t)

	out, err := executeCommand(t, "integrity", "2", "--fixture", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: valid hierarchy (0 invalid edges)")
	assert.Contains(t, out, "OK: no cycles")
}

func TestLicense_ResolveAndSet(t *testing.T) {
	fixture := writeFixture(t)

	out, err := executeCommand(t, "license", "resolve", "6", "--fixture", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "Object 6: Restricted")
	assert.Contains(t, out, "source: inherited from 2")

	out, err = executeCommand(t, "license", "set", "6", "1", "--fixture", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: object 6: assigned license 1")

	_, err = executeCommand(t, "license", "set", "6", "1",
		"--start", "2025-02-01T00:00:00Z", "--end", "2025-01-01T00:00:00Z", "--fixture", fixture)
	assert.Error(t, err)

	out, err = executeCommand(t, "license", "clear", "2", "--all", "--fixture", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "ended 1 assignments")
}

func TestRebuild_JSON(t *testing.T) {
	fixture := writeFixture(t)

	out, err := executeCommand(t, "rebuild", "--json", "--fixture", fixture)
	require.NoError(t, err)

	var br struct {
		EpochID     string `json:"epoch_id"`
		ObjectsSeen int    `json:"objects_seen"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &br))
	assert.NotEmpty(t, br.EpochID)
	assert.Equal(t, 6, br.ObjectsSeen)
}

func TestSeed_RejectsFixtureFlag(t *testing.T) {
	fixture := writeFixture(t)

	_, err := executeCommand(t, "seed", fixture, "--fixture", fixture)
	assert.Error(t, err)
}

func TestSeed_SQLite(t *testing.T) {
	fixture := writeFixture(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "curator.yaml")
	dsn := filepath.Join(dir, "curator.db")
	require.NoError(t, os.WriteFile(cfgPath,
		[]byte("database:\n  driver: sqlite\n  dsn: "+dsn+"\n"), 0o600))

	out, err := executeCommand(t, "seed", fixture, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 6 objects")

	out, err = executeCommand(t, "children", "3", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Photogrammetry")
}

func TestPrepareService_SnapshotRestore(t *testing.T) {
	fixture := writeFixture(t)
	_, err := executeCommand(t, "walk", "1", "--fixture", fixture)
	require.NoError(t, err)

	fixturePath = fixture
	cfg.Snapshot.Enabled = true
	cfg.Snapshot.Dir = t.TempDir()
	cfg.Cache.WarmOnStart = false
	ctx := context.Background()

	first, release, err := newService(ctx)
	require.NoError(t, err)
	require.NoError(t, prepareService(ctx, first, cfg))
	epoch := first.Database().EpochID()
	release()

	second, release, err := newService(ctx)
	require.NoError(t, err)
	defer release()
	require.NoError(t, prepareService(ctx, second, cfg))
	assert.Equal(t, epoch, second.Database().EpochID())
}

func TestParseWindowBound(t *testing.T) {
	got, err := parseWindowBound("start", "")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseWindowBound("start", "2025-06-01T00:00:00Z")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2025, got.Year())

	_, err = parseWindowBound("end", "June 1st")
	assert.Error(t, err)
}

func TestServiceConfigFromConfig(t *testing.T) {
	c := config.Default()
	c.Graph.MaxDepth = 7
	c.Server.RebuildPerMinute = 0

	sc := serviceConfig(c)
	assert.Equal(t, 7, sc.MaxDepth)
	assert.Equal(t, c.Cache.MaxAttempts, sc.CacheAttempts)
	assert.Zero(t, sc.RebuildPerMinute)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), expandHome("~/x"))
	assert.Equal(t, "/tmp/x", expandHome("/tmp/x"))
}
