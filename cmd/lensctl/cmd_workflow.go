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
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/AleutianAI/WorkflowLens/services/lens"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	// Shared flags
	wfJSONOutput bool
	wfStart      string
	wfDepth      int

	// Trace-specific
	wfDirection string

	// Texts/metadata-specific
	wfMinLength int

	// Metadata-specific
	wfAnchor string
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

// traceCmd walks the workflow graph from a node.
var traceCmd = &cobra.Command{
	Use:   "trace FILE",
	Short: "Trace the workflow graph from a node",
	Long: `Trace the workflow graph from a start node, reporting each reachable
node's distance, class tag, and parent links.

Without --start, the best-ranked sampler-like node is used as the anchor.

Examples:
  lensctl trace workflow.json
  lensctl trace workflow.json --start 3
  lensctl trace workflow.json --direction forward --depth 2
  lensctl trace workflow.json --json`,
	Args: cobra.ExactArgs(1),
	Run:  runTrace,
}

// samplersCmd ranks sampler candidates.
var samplersCmd = &cobra.Command{
	Use:   "samplers FILE",
	Short: "Rank sampler candidates upstream of a node",
	Long: `Walk the workflow graph backward from the start node and rank every
sampler-like node by priority, distance, and node id.

Examples:
  lensctl samplers workflow.json
  lensctl samplers workflow.json --start 9 --depth 4`,
	Args: cobra.ExactArgs(1),
	Run:  runSamplers,
}

// textsCmd discovers text-bearing nodes.
var textsCmd = &cobra.Command{
	Use:   "texts FILE",
	Short: "Discover text-bearing nodes upstream of a node",
	Long: `Walk the workflow graph backward from the start node and collect every
node carrying a qualifying text field, with negative-branch detection.

Examples:
  lensctl texts workflow.json
  lensctl texts workflow.json --min-length 12
  lensctl texts workflow.json --start 3 --depth 2`,
	Args: cobra.ExactArgs(1),
	Run:  runTexts,
}

// metadataCmd assembles the full metadata document.
var metadataCmd = &cobra.Command{
	Use:   "metadata FILE",
	Short: "Assemble the full metadata document",
	Long: `Run the trace, sampler, and text passes from the resolved anchor and
merge them into one metadata document, including the extracted positive
and negative prompts.

Examples:
  lensctl metadata workflow.json
  lensctl metadata workflow.json --anchor 3
  lensctl metadata workflow.json | jq .document.prompt`,
	Args: cobra.ExactArgs(1),
	Run:  runMetadata,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().BoolVar(&wfJSONOutput, "json", false,
		"Output as JSON for scripting")

	traceCmd.Flags().StringVar(&wfStart, "start", "",
		"Start node id (default: best-ranked sampler)")
	traceCmd.Flags().StringVar(&wfDirection, "direction", "backward",
		"Traversal direction: backward, forward")
	traceCmd.Flags().IntVar(&wfDepth, "depth", 0,
		"Maximum traversal depth (0 = unbounded)")

	samplersCmd.Flags().StringVar(&wfStart, "start", "",
		"Start node id (default: best-ranked sampler)")
	samplersCmd.Flags().IntVar(&wfDepth, "depth", 0,
		"Maximum traversal depth (0 = unbounded)")

	textsCmd.Flags().StringVar(&wfStart, "start", "",
		"Start node id (default: best-ranked sampler)")
	textsCmd.Flags().IntVar(&wfDepth, "depth", 0,
		"Maximum traversal depth (0 = unbounded)")
	textsCmd.Flags().IntVar(&wfMinLength, "min-length", 0,
		"Minimum qualifying text length in bytes (0 = rules default)")

	metadataCmd.Flags().StringVar(&wfAnchor, "anchor", "",
		"Anchor node id (default: best-ranked sampler)")
	metadataCmd.Flags().IntVar(&wfDepth, "depth", 0,
		"Maximum traversal depth (0 = unbounded)")
	metadataCmd.Flags().IntVar(&wfMinLength, "min-length", 0,
		"Minimum qualifying text length in bytes (0 = rules default)")

	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(samplersCmd)
	rootCmd.AddCommand(textsCmd)
	rootCmd.AddCommand(metadataCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

// runTrace executes the trace command.
func runTrace(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := traceWorkflow(ctx, args[0], wfStart, wfDirection, wfDepth)
	if err != nil {
		outputError("Trace failed", err)
		os.Exit(exitError)
	}

	if jsonOutput() {
		outputJSON(resp)
	} else {
		outputTraceText(resp)
	}

	os.Exit(exitSuccess)
}

// runSamplers executes the samplers command.
func runSamplers(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := samplerWorkflow(ctx, args[0], wfStart, wfDepth)
	if err != nil {
		outputError("Sampler discovery failed", err)
		os.Exit(exitError)
	}

	if jsonOutput() {
		outputJSON(resp)
	} else {
		outputSamplersText(resp)
	}

	os.Exit(exitSuccess)
}

// runTexts executes the texts command.
func runTexts(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := textWorkflow(ctx, args[0], wfStart, wfDepth, wfMinLength)
	if err != nil {
		outputError("Text discovery failed", err)
		os.Exit(exitError)
	}

	if jsonOutput() {
		outputJSON(resp)
	} else {
		outputTextsText(resp)
	}

	os.Exit(exitSuccess)
}

// runMetadata executes the metadata command.
func runMetadata(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := metadataWorkflow(ctx, args[0], wfAnchor, wfDepth, wfMinLength)
	if err != nil {
		outputError("Metadata assembly failed", err)
		os.Exit(exitError)
	}

	if jsonOutput() {
		outputJSON(resp)
	} else {
		outputMetadataText(resp)
	}

	os.Exit(exitSuccess)
}

// =============================================================================
// ENGINE HELPERS
// =============================================================================

// loadWorkflow reads the workflow JSON file.
func loadWorkflow(path string) (json.RawMessage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return raw, nil
}

// newEngine builds an in-process lens service with defaults.
func newEngine() *lens.Service {
	return lens.NewService(lens.DefaultServiceConfig())
}

// depthOpt converts the --depth flag to an optional bound. 0 stays
// unbounded; negative values pass through so the engine rejects them.
func depthOpt(depth int) *int {
	if depth == 0 {
		return nil
	}
	return &depth
}

// lengthOpt converts the --min-length flag to an optional bound.
func lengthOpt(length int) *int {
	if length == 0 {
		return nil
	}
	return &length
}

// traceWorkflow loads the file and runs the trace pass.
func traceWorkflow(ctx context.Context, path, start, direction string, depth int) (*lens.TraceResponse, error) {
	raw, err := loadWorkflow(path)
	if err != nil {
		return nil, err
	}
	return newEngine().Trace(ctx, &lens.TraceRequest{
		Workflow:  raw,
		Start:     start,
		Direction: direction,
		MaxDepth:  depthOpt(depth),
	})
}

// samplerWorkflow loads the file and runs the sampler pass.
func samplerWorkflow(ctx context.Context, path, start string, depth int) (*lens.SamplersResponse, error) {
	raw, err := loadWorkflow(path)
	if err != nil {
		return nil, err
	}
	return newEngine().Samplers(ctx, &lens.SamplersRequest{
		Workflow: raw,
		Start:    start,
		MaxDepth: depthOpt(depth),
	})
}

// textWorkflow loads the file and runs the text pass.
func textWorkflow(ctx context.Context, path, start string, depth, minLength int) (*lens.TextsResponse, error) {
	raw, err := loadWorkflow(path)
	if err != nil {
		return nil, err
	}
	return newEngine().Texts(ctx, &lens.TextsRequest{
		Workflow:  raw,
		Start:     start,
		MaxDepth:  depthOpt(depth),
		MinLength: lengthOpt(minLength),
	})
}

// metadataWorkflow loads the file and assembles the full document.
func metadataWorkflow(ctx context.Context, path, anchor string, depth, minLength int) (*lens.MetadataResponse, error) {
	raw, err := loadWorkflow(path)
	if err != nil {
		return nil, err
	}
	return newEngine().Metadata(ctx, &lens.MetadataRequest{
		Workflow:  raw,
		Anchor:    anchor,
		MaxDepth:  depthOpt(depth),
		MinLength: lengthOpt(minLength),
	})
}
