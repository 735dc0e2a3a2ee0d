// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package discovery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/WorkflowLens/services/lens/graph"
)

// promptGraph anchors a sampler fed by a positive and a negative text
// encoder plus a loader whose only string is a short filename-ish token.
func promptGraph(t *testing.T) *graph.Graph {
	t.Helper()

	return graph.NormalizeDocument(map[string]any{
		"sampler": map[string]any{"class_type": "KSampler", "inputs": map[string]any{
			"positive": []any{"pos", 0},
			"negative": []any{"neg", 0},
			"model":    []any{"loader", 0},
			"steps":    20,
		}},
		"pos": map[string]any{"class_type": "CLIPTextEncode", "inputs": map[string]any{
			"text": "a cat sitting on a mat",
			"clip": []any{"loader", 1},
		}},
		"neg": map[string]any{"class_type": "CLIPTextEncode", "inputs": map[string]any{
			"negative_text": "blurry, low quality, watermark",
			"clip":          []any{"loader", 1},
		}},
		"loader": map[string]any{"class_type": "CheckpointLoaderSimple", "inputs": map[string]any{
			"ckpt_name": "v1.ckpt",
		}},
	})
}

// TestDiscoverTextNodes_InputFields verifies qualifying input fields are
// harvested with the input source tag.
func TestDiscoverTextNodes_InputFields(t *testing.T) {
	g := promptGraph(t)

	refs, err := DiscoverTextNodes(g, "sampler", WithMinTextLength(8))
	require.NoError(t, err)
	require.Len(t, refs, 2, "loader's 7-byte ckpt_name must not qualify")

	// Ordered by distance then node id; both encoders sit at distance 1.
	assert.Equal(t, "neg", refs[0].NodeID)
	assert.Equal(t, "pos", refs[1].NodeID)

	assert.Equal(t, map[string]string{"text": "a cat sitting on a mat"}, refs[1].Texts)
	assert.Equal(t, map[string]string{"text": SourceInput}, refs[1].Sources)
	assert.Equal(t, 1, refs[1].Distance)
}

// TestDiscoverTextNodes_NegativeHeuristic verifies the default detector
// flags field names containing "negative" and nothing else.
func TestDiscoverTextNodes_NegativeHeuristic(t *testing.T) {
	t.Cleanup(ResetRules)
	ResetRules()

	g := promptGraph(t)

	refs, err := DiscoverTextNodes(g, "sampler", WithMinTextLength(8))
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.True(t, refs[0].IsNegative, "negative_text field should flag the node")
	assert.False(t, refs[1].IsNegative)
}

// TestDiscoverTextNodes_Widgets verifies widget strings are harvested
// under synthetic positional names.
func TestDiscoverTextNodes_Widgets(t *testing.T) {
	g := graph.NormalizeDocument(map[string]any{
		"nodes": []any{
			map[string]any{
				"id":             float64(2),
				"type":           "CLIPTextEncode",
				"widgets_values": []any{"an oil painting of a lighthouse", float64(7), "txt"},
			},
			map[string]any{"id": float64(3), "type": "KSampler"},
		},
		"links": []any{
			[]any{float64(1), float64(2), float64(0), float64(3), float64(0), "CONDITIONING"},
		},
	})

	refs, err := DiscoverTextNodes(g, "3", WithMinTextLength(8))
	require.NoError(t, err)
	require.Len(t, refs, 1)

	assert.Equal(t, "2", refs[0].NodeID)
	assert.Equal(t, map[string]string{"widget_0": "an oil painting of a lighthouse"}, refs[0].Texts)
	assert.Equal(t, map[string]string{"widget_0": SourceWidget}, refs[0].Sources)
}

// TestDiscoverTextNodes_ShortWidgetOmitted verifies a node whose only
// string is below the threshold produces no ref at all.
func TestDiscoverTextNodes_ShortWidgetOmitted(t *testing.T) {
	g := graph.NormalizeDocument(map[string]any{
		"nodes": []any{
			map[string]any{"id": float64(1), "type": "SchedulerSelect", "widgets_values": []any{"ddim"}},
			map[string]any{"id": float64(2), "type": "KSampler"},
		},
		"links": []any{
			[]any{float64(1), float64(1), float64(0), float64(2), float64(0), "SCHEDULER"},
		},
	})

	refs, err := DiscoverTextNodes(g, "2", WithMinTextLength(8))
	require.NoError(t, err)

	assert.NotNil(t, refs)
	assert.Empty(t, refs, "3-byte widget value must not produce a ref")
}

// TestDiscoverTextNodes_MinLengthBoundary verifies the exact threshold:
// length min-1 is excluded, length min is included.
func TestDiscoverTextNodes_MinLengthBoundary(t *testing.T) {
	g := graph.NormalizeDocument(map[string]any{
		"enc": map[string]any{"class_type": "CLIPTextEncode", "inputs": map[string]any{
			"exact": "abcdefgh",
			"short": "abcdefg",
		}},
		"out": map[string]any{"class_type": "VAEDecode", "inputs": map[string]any{"samples": []any{"enc", 0}}},
	})

	refs, err := DiscoverTextNodes(g, "out", WithMinTextLength(8))
	require.NoError(t, err)
	require.Len(t, refs, 1)

	assert.Equal(t, map[string]string{"exact": "abcdefgh"}, refs[0].Texts)
}

// TestDiscoverTextNodes_MergesFieldsPerNode verifies one node with several
// qualifying fields yields a single merged ref, inputs before widgets.
func TestDiscoverTextNodes_MergesFieldsPerNode(t *testing.T) {
	g := graph.NormalizeDocument(map[string]any{
		"nodes": map[string]any{
			"enc": map[string]any{
				"class_type":     "CLIPTextEncode",
				"inputs":         map[string]any{"text_g": "global prompt text", "text_l": "local prompt text"},
				"widgets_values": []any{"widget prompt text"},
			},
			"out": map[string]any{"class_type": "VAEDecode"},
		},
		"links": []any{
			[]any{float64(1), "enc", float64(0), "out", float64(0), "CONDITIONING"},
		},
	})

	refs, err := DiscoverTextNodes(g, "out", WithMinTextLength(8))
	require.NoError(t, err)
	require.Len(t, refs, 1, "all qualifying fields merge into one ref")

	assert.Equal(t, map[string]string{
		"text_g":   "global prompt text",
		"text_l":   "local prompt text",
		"widget_0": "widget prompt text",
	}, refs[0].Texts)
	assert.Equal(t, map[string]string{
		"text_g":   SourceInput,
		"text_l":   SourceInput,
		"widget_0": SourceWidget,
	}, refs[0].Sources)
}

// TestDiscoverTextNodes_FirstSeenWins verifies the dedup policy when an
// input field name collides with a synthetic widget name.
func TestDiscoverTextNodes_FirstSeenWins(t *testing.T) {
	g := graph.NormalizeDocument(map[string]any{
		"nodes": map[string]any{
			"enc": map[string]any{
				"class_type":     "CLIPTextEncode",
				"inputs":         map[string]any{"widget_0": "input value wins here"},
				"widgets_values": []any{"widget value loses here"},
			},
			"out": map[string]any{"class_type": "VAEDecode"},
		},
		"links": []any{
			[]any{float64(1), "enc", float64(0), "out", float64(0), "CONDITIONING"},
		},
	})

	refs, err := DiscoverTextNodes(g, "out", WithMinTextLength(8))
	require.NoError(t, err)
	require.Len(t, refs, 1)

	assert.Equal(t, "input value wins here", refs[0].Texts["widget_0"])
	assert.Equal(t, SourceInput, refs[0].Sources["widget_0"])
}

// TestDiscoverTextNodes_DepthBound verifies distant text sources are never
// visited past the bound.
func TestDiscoverTextNodes_DepthBound(t *testing.T) {
	g := graph.NormalizeDocument(map[string]any{
		"far":  map[string]any{"class_type": "CLIPTextEncode", "inputs": map[string]any{"text": "a distant qualifying prompt"}},
		"mid":  map[string]any{"class_type": "LatentUpscale", "inputs": map[string]any{"samples": []any{"far", 0}}},
		"near": map[string]any{"class_type": "KSampler", "inputs": map[string]any{"latent_image": []any{"mid", 0}}},
	})

	refs, err := DiscoverTextNodes(g, "near", WithMaxDepth(1), WithMinTextLength(8))
	require.NoError(t, err)

	assert.Empty(t, refs, "text node at distance 2 is beyond the bound")
}

// TestDiscoverTextNodes_CustomDetector verifies detector injection.
func TestDiscoverTextNodes_CustomDetector(t *testing.T) {
	g := promptGraph(t)

	always := DetectorFunc(func(string, []string) bool { return true })
	refs, err := DiscoverTextNodes(g, "sampler", WithMinTextLength(8), WithDetector(always))
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.True(t, refs[0].IsNegative)
	assert.True(t, refs[1].IsNegative)
}

// TestDiscoverTextNodes_DefaultMinLength verifies the rules registry
// supplies the threshold when the caller omits it.
func TestDiscoverTextNodes_DefaultMinLength(t *testing.T) {
	t.Cleanup(ResetRules)
	ResetRules()

	g := graph.NormalizeDocument(map[string]any{
		"enc": map[string]any{"class_type": "CLIPTextEncode", "inputs": map[string]any{
			"text":  "exactly eight bytes and more",
			"model": "v1.ckpt",
		}},
		"out": map[string]any{"class_type": "VAEDecode", "inputs": map[string]any{"samples": []any{"enc", 0}}},
	})

	refs, err := DiscoverTextNodes(g, "out")
	require.NoError(t, err)
	require.Len(t, refs, 1)

	_, hasModel := refs[0].Texts["model"]
	assert.False(t, hasModel, "7-byte value is below the embedded default of 8")
	assert.Contains(t, refs[0].Texts, "text")
}

// TestDiscoverTextNodes_ZeroMinLength verifies zero disables the guard.
func TestDiscoverTextNodes_ZeroMinLength(t *testing.T) {
	g := graph.NormalizeDocument(map[string]any{
		"enc": map[string]any{"class_type": "CLIPTextEncode", "inputs": map[string]any{"text": "hi"}},
		"out": map[string]any{"class_type": "VAEDecode", "inputs": map[string]any{"samples": []any{"enc", 0}}},
	})

	refs, err := DiscoverTextNodes(g, "out", WithMinTextLength(0))
	require.NoError(t, err)
	require.Len(t, refs, 1)

	assert.Equal(t, "hi", refs[0].Texts["text"])
}

// TestDiscoverTextNodes_NegativeMinLength verifies the fail-fast bound.
func TestDiscoverTextNodes_NegativeMinLength(t *testing.T) {
	g := promptGraph(t)

	_, err := DiscoverTextNodes(g, "sampler", WithMinTextLength(-1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNegativeLength))
}

// TestDiscoverTextNodes_Observer verifies one event per contributing node
// carrying the qualifying field names.
func TestDiscoverTextNodes_Observer(t *testing.T) {
	g := promptGraph(t)

	var events []Event
	_, err := DiscoverTextNodes(g, "sampler",
		WithMinTextLength(8),
		WithObserver(func(e Event) { events = append(events, e) }))
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, EventText, events[0].Kind)
	for _, e := range events {
		assert.NotEmpty(t, e.Fields)
	}
}

// TestDiscoverTextNodes_Deterministic verifies identical ordering across
// repeated runs.
func TestDiscoverTextNodes_Deterministic(t *testing.T) {
	g := promptGraph(t)

	first, err := DiscoverTextNodes(g, "sampler", WithMinTextLength(8))
	require.NoError(t, err)
	second, err := DiscoverTextNodes(g, "sampler", WithMinTextLength(8))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
