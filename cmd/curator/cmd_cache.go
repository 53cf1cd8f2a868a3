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
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/Curator/pkg/ux"
)

var serverURL string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the caches of a running server",
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Flush and re-warm the identity and license caches",
	Args:  cobra.NoArgs,
	RunE:  runCacheFlush,
}

func init() {
	cacheFlushCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8090", "Base URL of the curator server")
	cacheCmd.AddCommand(cacheFlushCmd)
}

func runCacheFlush(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	url := strings.TrimRight(serverURL, "/") + "/v1/curator/cache/flush"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("flushing caches: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("flushing caches: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	ux.NewPrinter(cmd.OutOrStdout()).Success("caches flushed on %s", serverURL)
	return nil
}
