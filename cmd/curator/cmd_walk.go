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
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/Curator/pkg/ux"
	"github.com/AleutianAI/Curator/services/curator/graph"
	"github.com/AleutianAI/Curator/services/curator/model"
)

var (
	walkMode  string
	walkDepth int
)

var walkCmd = &cobra.Command{
	Use:   "walk ID",
	Short: "Traverse the object graph from one object",
	Long: `Walk runs an ancestor, descendant, or two-way traversal from the object
with universal id ID and prints what it reached.`,
	Args: cobra.ExactArgs(1),
	RunE: runWalk,
}

var childrenCmd = &cobra.Command{
	Use:   "children ID",
	Short: "List the direct children of an object",
	Args:  cobra.ExactArgs(1),
	RunE:  runChildren,
}

var integrityCmd = &cobra.Command{
	Use:   "integrity ID",
	Short: "Check hierarchy and cycles around an object",
	Args:  cobra.ExactArgs(1),
	RunE:  runIntegrity,
}

func init() {
	walkCmd.Flags().StringVarP(&walkMode, "mode", "m", "descendants", "Traversal mode: ancestors, descendants, or both")
	walkCmd.Flags().IntVarP(&walkDepth, "depth", "d", 0, "Maximum depth (0 uses graph.max_depth)")
}

func runWalk(cmd *cobra.Command, args []string) error {
	id, err := parseObjectID(args[0])
	if err != nil {
		return err
	}
	mode, err := graph.ParseMode(walkMode)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, release, err := newService(ctx)
	if err != nil {
		return err
	}
	defer release()

	res, err := svc.Graph(ctx, id, mode, walkDepth)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, res)
	}
	printResult(out, res)
	return nil
}

func printResult(w io.Writer, res *graph.Result) {
	fmt.Fprintf(w, "root %d (%s): %d objects, %d relations\n",
		res.RootID, res.Mode, res.Count(), len(res.Relations))
	fmt.Fprintf(w, "valid hierarchy: %t  no cycles: %t  truncated: %t\n",
		res.ValidHierarchy, res.NoCycles, res.Truncated)

	counts := res.Counts()
	types := make([]model.ObjectType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, t := range types {
		fmt.Fprintf(tw, "  %s\t%d\n", t, counts[t])
	}
	_ = tw.Flush()

	for _, e := range res.Relations {
		fmt.Fprintf(w, "  %s -> %s\n", e.Parent, e.Child)
	}
}

func runChildren(cmd *cobra.Command, args []string) error {
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

	children, err := svc.ChildrenOf(ctx, id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, children)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tNAME")
	for _, c := range children {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.Type, c.Name)
	}
	return tw.Flush()
}

func runIntegrity(cmd *cobra.Command, args []string) error {
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

	report, err := svc.Integrity(ctx, id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, report)
	}
	p := ux.NewPrinter(out)
	p.Title("Object %d", report.RootID)
	p.Check(report.ValidHierarchy, "valid hierarchy (%d invalid edges)", report.InvalidEdges)
	p.Check(report.NoCycles, "no cycles")
	if report.LookupFailures > 0 {
		p.Warning("%d lookup failures", report.LookupFailures)
	}
	if report.Truncated {
		p.Warning("walk truncated after %d objects", report.PushCount)
	}
	return nil
}
