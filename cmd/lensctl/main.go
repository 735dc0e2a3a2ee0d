// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command lensctl inspects generative-workflow graphs from the terminal.
//
// It runs the WorkflowLens analysis engine in-process against a workflow
// JSON file, with no server required.
//
// Usage:
//
//	lensctl trace workflow.json
//	lensctl samplers workflow.json --depth 4
//	lensctl texts workflow.json --min-length 12
//	lensctl metadata workflow.json --json
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for scripting.
const (
	exitSuccess = 0
	exitError   = 1
)

// rootCmd is the lensctl root command.
var rootCmd = &cobra.Command{
	Use:   "lensctl",
	Short: "Inspect generative-workflow graphs",
	Long: `lensctl analyzes a generative-workflow JSON file: it normalizes the
node graph, traces it from an anchor node, ranks sampler candidates, and
discovers the prompt text feeding into the anchor.

Output is a human summary on a terminal and JSON when piped (or with --json).

Examples:
  lensctl trace workflow.json
  lensctl trace workflow.json --start 3 --direction forward --depth 2
  lensctl samplers workflow.json
  lensctl texts workflow.json --min-length 12
  lensctl metadata workflow.json | jq .document.prompt`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
}
