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
	"errors"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/Curator/pkg/ux"
	"github.com/AleutianAI/Curator/services/curator/store/gormstore"
	"github.com/AleutianAI/Curator/services/curator/store/memstore"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Build the graph database once and save a snapshot",
	Args:  cobra.NoArgs,
	RunE:  runRebuild,
}

var seedCmd = &cobra.Command{
	Use:   "seed FIXTURE",
	Short: "Create the schema and load a YAML fixture into the database",
	Long: `Seed migrates the configured database and imports every record of
FIXTURE, keeping the ids the fixture assigns.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func runRebuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, release, err := newService(ctx)
	if err != nil {
		return err
	}
	defer release()

	br, err := svc.Rebuild(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, br)
	}
	p := ux.NewPrinter(out)
	p.Title("Graph database epoch %s", br.EpochID)
	p.Field("objects", br.ObjectsSeen)
	p.Field("expanded", br.ObjectsExpanded)
	p.Field("failed", br.ObjectsFailed)
	p.Field("invalid hierarchy", br.InvalidHierarchy)
	p.Field("cycles", br.Cycles)
	p.Field("propagation changes", br.PropagationChanges)
	p.Field("duration", br.Duration)
	for _, e := range br.Errors {
		p.Warning("%v", e)
	}
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	if fixturePath != "" {
		return errors.New("seed writes to the configured database; drop --fixture")
	}
	ctx := cmd.Context()

	mem, refs, err := memstore.LoadFixtureFile(args[0])
	if err != nil {
		return err
	}

	db, err := gormstore.Open(cfg.Database)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	st := gormstore.New(db)
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	dump := mem.Dump()
	if err := st.Import(ctx, dump); err != nil {
		return err
	}
	ux.NewPrinter(cmd.OutOrStdout()).Success("seeded %d objects (%d refs), %d relations, %d licenses",
		len(dump.SystemObjects), len(refs), len(dump.Xrefs), len(dump.Licenses))
	return nil
}
