// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command curator serves and inspects the museum object graph: traversals,
// the materialized graph database, and license resolution.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/Curator/pkg/logging"
	"github.com/AleutianAI/Curator/services/curator/config"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

var (
	configPath   string
	fixturePath  string
	logLevelFlag string
	jsonOutput   bool

	// cfg and appLogger are set by the root PersistentPreRunE.
	cfg       *config.Config
	appLogger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "curator",
	Short: "Object graph and license engine for 3D digitization records",
	Long: `Curator walks the object graph of a digitization repository, keeps a
materialized graph database of derived node state, and resolves the
effective license of every object.

Data comes from the configured database, or from a YAML fixture with
--fixture.

Examples:
  curator serve --config curator.yaml
  curator walk 42 --mode both --fixture testdata/skull.yaml
  curator license resolve 42 --json`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appLogger != nil {
			_ = appLogger.Close()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")
	pf.StringVar(&fixturePath, "fixture", "", "Use a YAML fixture instead of the configured database")
	pf.StringVar(&logLevelFlag, "log-level", "", "Override the log level (debug, info, warn, error)")
	pf.BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	rootCmd.AddCommand(serveCmd, walkCmd, childrenCmd, integrityCmd, rebuildCmd, seedCmd, licenseCmd, cacheCmd)
}

// loadConfig loads configuration and installs the process logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevelFlag != "" {
		lvl, err := logging.ParseLevel(logLevelFlag)
		if err != nil {
			return err
		}
		loaded.Log.Level = lvl
	}
	loaded.Log.Output = cmd.ErrOrStderr()

	appLogger = logging.New(loaded.Log)
	slog.SetDefault(appLogger.Slog())
	cfg = loaded
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
