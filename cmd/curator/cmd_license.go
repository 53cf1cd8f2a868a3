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
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/Curator/pkg/ux"
	"github.com/AleutianAI/Curator/services/curator"
)

var (
	clearAll     bool
	licenseStart string
	licenseEnd   string
)

var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Resolve and assign object licenses",
}

var licenseResolveCmd = &cobra.Command{
	Use:   "resolve ID",
	Short: "Print the effective license of an object",
	Args:  cobra.ExactArgs(1),
	RunE:  runLicenseResolve,
}

var licenseClearCmd = &cobra.Command{
	Use:   "clear ID",
	Short: "End the active license assignments of an object",
	Args:  cobra.ExactArgs(1),
	RunE:  runLicenseClear,
}

var licenseSetCmd = &cobra.Command{
	Use:   "set ID LICENSE",
	Short: "Assign a license to an object",
	Long: `Set ends the current assignments of ID and assigns LICENSE. --start and
--end take RFC 3339 timestamps.`,
	Args: cobra.ExactArgs(2),
	RunE: runLicenseSet,
}

func init() {
	licenseClearCmd.Flags().BoolVar(&clearAll, "all", false, "End inactive assignments too")
	licenseSetCmd.Flags().StringVar(&licenseStart, "start", "", "Start of the assignment window (RFC 3339)")
	licenseSetCmd.Flags().StringVar(&licenseEnd, "end", "", "End of the assignment window (RFC 3339)")
	licenseCmd.AddCommand(licenseResolveCmd, licenseClearCmd, licenseSetCmd)
}

func runLicenseResolve(cmd *cobra.Command, args []string) error {
	id, err := parseObjectID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	svc, release, err := newService(ctx)
	if err != nil {
		return err
	}
	defer release()

	res, err := svc.ResolveLicense(ctx, id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, curator.LicenseResponse{ID: id, Licensed: res != nil, Resolution: res})
	}
	p := ux.NewPrinter(out)
	if res == nil || res.License == nil {
		p.Warning("object %d: no license", id)
		return nil
	}
	how := "assigned"
	if res.Inherited {
		how = fmt.Sprintf("inherited from %d", res.Source)
	}
	p.Title("Object %d: %s", id, res.License.Name)
	p.Field("restrict level", res.License.RestrictLevel)
	p.Field("source", how)
	return nil
}

func runLicenseClear(cmd *cobra.Command, args []string) error {
	id, err := parseObjectID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	svc, release, err := newService(ctx)
	if err != nil {
		return err
	}
	defer release()

	n, err := svc.ClearLicense(ctx, id, clearAll)
	if err != nil {
		return err
	}
	ux.NewPrinter(cmd.OutOrStdout()).Success("object %d: ended %d assignments", id, n)
	return nil
}

func runLicenseSet(cmd *cobra.Command, args []string) error {
	id, err := parseObjectID(args[0])
	if err != nil {
		return err
	}
	licenseID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || licenseID <= 0 {
		return fmt.Errorf("invalid license id %q", args[1])
	}
	start, err := parseWindowBound("start", licenseStart)
	if err != nil {
		return err
	}
	end, err := parseWindowBound("end", licenseEnd)
	if err != nil {
		return err
	}
	if start != nil && end != nil && !end.After(*start) {
		return fmt.Errorf("--end must be after --start")
	}

	ctx := cmd.Context()
	svc, release, err := newService(ctx)
	if err != nil {
		return err
	}
	defer release()

	a, err := svc.SetLicense(ctx, id, licenseID, start, end)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, curator.SetLicenseResponse{ID: id, Active: a != nil, Assignment: a})
	}
	p := ux.NewPrinter(out)
	if a == nil {
		p.Warning("object %d: window not active now, nothing assigned", id)
		return nil
	}
	p.Success("object %d: assigned license %d (assignment %d)", id, licenseID, a.ID)
	return nil
}

func parseWindowBound(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &t, nil
}
