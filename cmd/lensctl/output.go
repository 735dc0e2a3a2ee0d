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
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/AleutianAI/WorkflowLens/services/lens"
	"github.com/mattn/go-isatty"
)

// jsonOutput reports whether results should be emitted as JSON: either
// the user asked for it, or stdout is not a terminal (piped/scripted use).
func jsonOutput() bool {
	if wfJSONOutput {
		return true
	}
	return !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// outputJSON writes v to stdout as indented JSON.
func outputJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
	}
}

// outputError writes an error to stderr, as JSON when scripting.
func outputError(msg string, err error) {
	if jsonOutput() {
		out, _ := json.Marshal(map[string]string{"error": msg, "details": err.Error()})
		fmt.Fprintln(os.Stderr, string(out))
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
}

// outputTraceText prints a trace result as a human-readable listing.
func outputTraceText(resp *lens.TraceResponse) {
	if resp.Start == "" {
		fmt.Println("No start node resolved (no sampler-like node in the workflow).")
		return
	}

	fmt.Printf("Trace from %s (%s), %d of %d nodes reached:\n\n",
		resp.Start, resp.Direction, len(resp.Trace), resp.Graph.Nodes)

	ids := make([]string, 0, len(resp.Trace))
	for id := range resp.Trace {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := resp.Trace[ids[i]], resp.Trace[ids[j]]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return ids[i] < ids[j]
	})

	for _, id := range ids {
		entry := resp.Trace[id]
		line := fmt.Sprintf("  [d=%d] %s", entry.Distance, id)
		if entry.ClassType != "" {
			line += "  " + entry.ClassType
		}
		if len(entry.Parents) > 0 {
			line += fmt.Sprintf("  (parents: %s)", strings.Join(entry.Parents, ", "))
		}
		fmt.Println(line)
	}
}

// outputSamplersText prints ranked sampler candidates.
func outputSamplersText(resp *lens.SamplersResponse) {
	if len(resp.Samplers) == 0 {
		fmt.Println("No sampler candidates found.")
		return
	}

	fmt.Printf("Sampler candidates from %s:\n\n", resp.Start)
	for i, c := range resp.Samplers {
		fmt.Printf("  %d. %s  %s  (priority %d, distance %d)\n",
			i+1, c.NodeID, c.ClassType, c.Priority, c.Distance)
	}
	fmt.Printf("\nFound %d candidates\n", len(resp.Samplers))
}

// outputTextsText prints discovered text-bearing nodes.
func outputTextsText(resp *lens.TextsResponse) {
	if len(resp.Texts) == 0 {
		fmt.Println("No text-bearing nodes found.")
		return
	}

	fmt.Printf("Text-bearing nodes from %s:\n\n", resp.Start)
	for _, ref := range resp.Texts {
		branch := "positive"
		if ref.IsNegative {
			branch = "negative"
		}
		fmt.Printf("  %s  %s  (distance %d, %s)\n",
			ref.NodeID, ref.ClassType, ref.Distance, branch)

		fields := make([]string, 0, len(ref.Texts))
		for name := range ref.Texts {
			fields = append(fields, name)
		}
		sort.Strings(fields)
		for _, name := range fields {
			fmt.Printf("    %s [%s]: %s\n", name, ref.Sources[name], ref.Texts[name])
		}
	}
	fmt.Printf("\nFound %d text-bearing nodes\n", len(resp.Texts))
}

// outputMetadataText prints the assembled document summary.
func outputMetadataText(resp *lens.MetadataResponse) {
	doc := resp.Document

	fmt.Printf("Workflow %s\n\n", doc.Digest)
	if doc.Anchor == "" {
		fmt.Println("  No anchor resolved (no sampler-like node in the workflow).")
		return
	}

	fmt.Printf("  Anchor:          %s (%s)\n", doc.Anchor, doc.AnchorClass)
	fmt.Printf("  Graph:           %d nodes, %d edges\n", doc.Graph.Nodes, doc.Graph.Edges)
	fmt.Printf("  Traced:          %d nodes\n", len(doc.Trace))
	fmt.Printf("  Samplers:        %d\n", len(doc.Samplers))
	fmt.Printf("  Text nodes:      %d\n", len(doc.Texts))
	if doc.Prompt != "" {
		fmt.Printf("  Prompt:          %s\n", doc.Prompt)
	}
	if doc.NegativePrompt != "" {
		fmt.Printf("  Negative prompt: %s\n", doc.NegativePrompt)
	}
	if resp.Stored {
		fmt.Println("\n  Document persisted.")
	}
}
