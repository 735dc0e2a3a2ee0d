// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assemble

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/WorkflowLens/services/lens/discovery"
	"github.com/AleutianAI/WorkflowLens/services/lens/graph"
)

// sdWorkflowJSON is a minimal text-to-image workflow in the keyed layout:
// one sampler fed by a model loader, a positive and a negative text
// encoder, and a latent source. The loader's filename and the sampler's
// scheduler strings sit below the default text threshold.
const sdWorkflowJSON = `{
  "3": {"class_type": "KSampler", "inputs": {
    "seed": 8566257, "steps": 20, "cfg": 8.0,
    "sampler_name": "euler", "scheduler": "normal",
    "model": ["4", 0], "positive": ["6", 0], "negative": ["7", 0],
    "latent_image": ["5", 0]}},
  "4": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "v1.ckpt"}},
  "5": {"class_type": "EmptyLatentImage", "inputs": {"width": 512, "height": 512, "batch_size": 1}},
  "6": {"class_type": "CLIPTextEncode", "inputs": {"text": "a cat sitting on a sunlit mat", "clip": ["4", 1]}},
  "7": {"class_type": "CLIPTextEncode", "inputs": {"negative_text": "blurry, low quality, watermark", "clip": ["4", 1]}}
}`

// freshRules pins the rules registry to its embedded defaults for one
// test and restores it afterwards.
func freshRules(t *testing.T) {
	t.Helper()
	discovery.ResetRules()
	t.Cleanup(discovery.ResetRules)
}

func TestAssemble_Document(t *testing.T) {
	freshRules(t)

	doc, err := Assemble(context.Background(), []byte(sdWorkflowJSON))
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, Digest([]byte(sdWorkflowJSON)), doc.Digest)
	assert.Equal(t, "3", doc.Anchor)
	assert.Equal(t, "KSampler", doc.AnchorClass)
	assert.Equal(t, graph.Stats{Nodes: 5, Edges: 6}, doc.Graph)
	assert.Positive(t, doc.AssembledAtMilli)

	require.Len(t, doc.Trace, 5)
	assert.Equal(t, 0, doc.Trace["3"].Distance)
	assert.Equal(t, []string{"3"}, doc.Trace["4"].Parents)
	assert.Equal(t, "CLIPTextEncode", doc.Trace["6"].ClassType)

	require.Len(t, doc.Samplers, 1)
	assert.Equal(t, discovery.SamplerCandidate{
		NodeID:    "3",
		Distance:  0,
		ClassType: "KSampler",
		Priority:  100,
	}, doc.Samplers[0])

	require.Len(t, doc.Texts, 2)
	assert.Equal(t, "6", doc.Texts[0].NodeID)
	assert.False(t, doc.Texts[0].IsNegative)
	assert.Equal(t, "7", doc.Texts[1].NodeID)
	assert.True(t, doc.Texts[1].IsNegative)

	assert.Equal(t, "a cat sitting on a sunlit mat", doc.Prompt)
	assert.Equal(t, "blurry, low quality, watermark", doc.NegativePrompt)
}

func TestAssemble_AnchorOverride(t *testing.T) {
	freshRules(t)

	doc, err := Assemble(context.Background(), []byte(sdWorkflowJSON), WithAnchor("6"))
	require.NoError(t, err)

	assert.Equal(t, "6", doc.Anchor)
	assert.Equal(t, "CLIPTextEncode", doc.AnchorClass)

	// Only the encoder and the loader sit behind node 6.
	require.Len(t, doc.Trace, 2)
	assert.Equal(t, 1, doc.Trace["4"].Distance)

	assert.Empty(t, doc.Samplers)
	require.Len(t, doc.Texts, 1)
	assert.Equal(t, "a cat sitting on a sunlit mat", doc.Prompt)
	assert.Empty(t, doc.NegativePrompt)
}

func TestAssemble_NoAnchorYieldsMinimalDocument(t *testing.T) {
	freshRules(t)

	raw := []byte(`{"a": {"class_type": "LoadImage", "inputs": {"image": "photo_0001.png"}}}`)
	doc, err := Assemble(context.Background(), raw)
	require.NoError(t, err)

	assert.Empty(t, doc.Anchor)
	assert.Empty(t, doc.AnchorClass)
	assert.Equal(t, Digest(raw), doc.Digest)
	assert.Equal(t, graph.Stats{Nodes: 1, Edges: 0}, doc.Graph)

	assert.NotNil(t, doc.Trace)
	assert.Empty(t, doc.Trace)
	assert.NotNil(t, doc.Samplers)
	assert.Empty(t, doc.Samplers)
	assert.NotNil(t, doc.Texts)
	assert.Empty(t, doc.Texts)
	assert.Empty(t, doc.Prompt)
	assert.Empty(t, doc.NegativePrompt)
}

func TestAssemble_DepthBound(t *testing.T) {
	freshRules(t)

	doc, err := Assemble(context.Background(), []byte(sdWorkflowJSON), WithMaxDepth(0))
	require.NoError(t, err)

	require.Len(t, doc.Trace, 1)
	require.Len(t, doc.Samplers, 1)
	assert.Empty(t, doc.Texts)
	assert.Empty(t, doc.Prompt)
	assert.Empty(t, doc.NegativePrompt)
}

func TestAssemble_InvalidJSON(t *testing.T) {
	doc, err := Assemble(context.Background(), []byte("{nope"))
	require.Error(t, err)
	assert.Nil(t, doc)
}

func TestAssemble_ValidationErrors(t *testing.T) {
	freshRules(t)

	_, err := Assemble(context.Background(), []byte(sdWorkflowJSON), WithMaxDepth(-1))
	require.ErrorIs(t, err, graph.ErrNegativeDepth)

	_, err = Assemble(context.Background(), []byte(sdWorkflowJSON), WithMinTextLength(-1))
	require.ErrorIs(t, err, discovery.ErrNegativeLength)
}

func TestAssemble_ObserverSeesBothPasses(t *testing.T) {
	freshRules(t)

	var events []discovery.Event
	_, err := Assemble(context.Background(), []byte(sdWorkflowJSON),
		WithObserver(func(ev discovery.Event) { events = append(events, ev) }))
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, discovery.EventSampler, events[0].Kind)
	assert.Equal(t, "3", events[0].NodeID)
	assert.Equal(t, discovery.EventText, events[1].Kind)
	assert.Equal(t, discovery.EventText, events[2].Kind)
}

func TestAssembleGraph_StampsCallerDigest(t *testing.T) {
	freshRules(t)

	g := graph.NormalizeDocument(map[string]any{
		"s": map[string]any{"class_type": "KSampler", "inputs": map[string]any{}},
	})
	doc, err := AssembleGraph(context.Background(), g, "feedbeef", WithAnchor("s"))
	require.NoError(t, err)
	assert.Equal(t, "feedbeef", doc.Digest)
	assert.Equal(t, "s", doc.Anchor)
}

func TestResolveAnchor(t *testing.T) {
	freshRules(t)

	t.Run("highest priority wins", func(t *testing.T) {
		g := graph.NormalizeDocument(map[string]any{
			"a": map[string]any{"class_type": "SamplerCustom", "inputs": map[string]any{}},
			"z": map[string]any{"class_type": "KSampler", "inputs": map[string]any{}},
		})
		assert.Equal(t, "z", ResolveAnchor(g))
	})

	t.Run("node id breaks priority ties", func(t *testing.T) {
		g := graph.NormalizeDocument(map[string]any{
			"b": map[string]any{"class_type": "SamplerCustom", "inputs": map[string]any{}},
			"a": map[string]any{"class_type": "SamplerCustom", "inputs": map[string]any{}},
		})
		assert.Equal(t, "a", ResolveAnchor(g))
	})

	t.Run("nothing classifies", func(t *testing.T) {
		g := graph.NormalizeDocument(map[string]any{
			"a": map[string]any{"class_type": "LoadImage", "inputs": map[string]any{}},
		})
		assert.Empty(t, ResolveAnchor(g))
	})

	t.Run("injected classifier", func(t *testing.T) {
		g := graph.NormalizeDocument(map[string]any{
			"a": map[string]any{"class_type": "LoadImage", "inputs": map[string]any{}},
		})
		anchor := ResolveAnchorWith(g, discovery.ClassifierFunc(func(string) (int, bool) {
			return 1, true
		}))
		assert.Equal(t, "a", anchor)
	})
}

func TestPrompts(t *testing.T) {
	t.Run("splits sides and keeps first ref per side", func(t *testing.T) {
		refs := []discovery.TextNodeRef{
			{NodeID: "p1", Texts: map[string]string{"text": "first positive"}},
			{NodeID: "n1", IsNegative: true, Texts: map[string]string{"text": "first negative"}},
			{NodeID: "p2", Texts: map[string]string{"text": "a much longer second positive"}},
		}
		positive, negative := Prompts(refs)
		assert.Equal(t, "first positive", positive)
		assert.Equal(t, "first negative", negative)
	})

	t.Run("longest field wins within a ref", func(t *testing.T) {
		refs := []discovery.TextNodeRef{
			{NodeID: "p", Texts: map[string]string{
				"text_l": "short one",
				"text_g": "the noticeably longer value",
			}},
		}
		positive, negative := Prompts(refs)
		assert.Equal(t, "the noticeably longer value", positive)
		assert.Empty(t, negative)
	})

	t.Run("field name breaks length ties", func(t *testing.T) {
		refs := []discovery.TextNodeRef{
			{NodeID: "p", Texts: map[string]string{
				"beta":  "11111111",
				"alpha": "22222222",
			}},
		}
		positive, _ := Prompts(refs)
		assert.Equal(t, "22222222", positive)
	})

	t.Run("empty input", func(t *testing.T) {
		positive, negative := Prompts(nil)
		assert.Empty(t, positive)
		assert.Empty(t, negative)
	})
}

func TestDigest(t *testing.T) {
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Digest([]byte("hello")))
	assert.Equal(t, Digest([]byte("same")), Digest([]byte("same")))
	assert.NotEqual(t, Digest([]byte("same")), Digest([]byte("different")))
	assert.Len(t, Digest(nil), 64)
}
