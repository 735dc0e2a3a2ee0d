// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

// freshRules resets the singleton, loads, and registers cleanup so tests
// stay order-independent.
func freshRules(t *testing.T) *Rules {
	t.Helper()

	ResetRules()
	t.Cleanup(ResetRules)

	rules, err := GetRules(context.Background())
	if err != nil {
		t.Fatalf("GetRules() error = %v", err)
	}
	return rules
}

func TestGetRules_Embedded(t *testing.T) {
	rules := freshRules(t)

	if rules.Source() != "embedded" {
		t.Errorf("Source() = %q, want embedded", rules.Source())
	}
	if rules.MinTextLength() != 8 {
		t.Errorf("MinTextLength() = %d, want 8", rules.MinTextLength())
	}
	if rules.LoadedAtMilli() == 0 {
		t.Error("LoadedAtMilli() = 0, want a timestamp")
	}
}

func TestRules_Classify(t *testing.T) {
	rules := freshRules(t)

	cases := []struct {
		class    string
		priority int
		ok       bool
	}{
		{"KSampler", 100, true},
		{"KSamplerAdvanced", 95, true},
		{"SamplerCustom", 90, true},
		{"TurboKSamplerFast", 55, true},   // substring: ksampler
		{"MySamplerVariant", 50, true},    // substring: sampler
		{"ProgressiveSampling", 40, true}, // substring: sampling
		{"VAEDecode", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		priority, ok := rules.Classify(tc.class)
		if priority != tc.priority || ok != tc.ok {
			t.Errorf("Classify(%q) = (%d, %v), want (%d, %v)", tc.class, priority, ok, tc.priority, tc.ok)
		}
	}
}

func TestRules_Negative(t *testing.T) {
	rules := freshRules(t)

	cases := []struct {
		class  string
		fields []string
		want   bool
	}{
		{"NegativePromptEncode", nil, true},
		{"CLIPTextEncode", []string{"negative_text"}, true},
		{"CLIPTextEncode", []string{"NEGATIVE"}, true},
		{"CLIPTextEncode", []string{"text"}, false},
		{"", nil, false},
	}
	for _, tc := range cases {
		if got := rules.Negative(tc.class, tc.fields); got != tc.want {
			t.Errorf("Negative(%q, %v) = %v, want %v", tc.class, tc.fields, got, tc.want)
		}
	}
}

func TestGetRules_ExternalOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	override := []byte(`
samplers:
  exact:
    - class: CustomDiffusionStep
      priority: 77
text:
  min_length: 4
`)
	if err := os.WriteFile(path, override, 0o600); err != nil {
		t.Fatalf("writing override: %v", err)
	}
	t.Setenv(RulesPathEnv, path)

	rules := freshRules(t)

	if rules.Source() != "external" {
		t.Fatalf("Source() = %q, want external", rules.Source())
	}
	if rules.MinTextLength() != 4 {
		t.Errorf("MinTextLength() = %d, want 4", rules.MinTextLength())
	}
	if priority, ok := rules.Classify("CustomDiffusionStep"); !ok || priority != 77 {
		t.Errorf("Classify(CustomDiffusionStep) = (%d, %v), want (77, true)", priority, ok)
	}
	if _, ok := rules.Classify("KSampler"); ok {
		t.Error("Classify(KSampler) matched; override should replace embedded rules entirely")
	}
}

func TestGetRules_MalformedExternalFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("samplers: [broken"), 0o600); err != nil {
		t.Fatalf("writing override: %v", err)
	}
	t.Setenv(RulesPathEnv, path)

	rules := freshRules(t)

	if rules.Source() != "embedded" {
		t.Errorf("Source() = %q, want embedded fallback", rules.Source())
	}
	if priority, ok := rules.Classify("KSampler"); !ok || priority != 100 {
		t.Errorf("Classify(KSampler) = (%d, %v), want embedded (100, true)", priority, ok)
	}
}

func TestGetRules_OversizedExternalFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	huge := bytes.Repeat([]byte("# padding line for the size gate\n"), (MaxRulesFileSize/32)+2)
	if err := os.WriteFile(path, huge, 0o600); err != nil {
		t.Fatalf("writing override: %v", err)
	}
	t.Setenv(RulesPathEnv, path)

	rules := freshRules(t)

	if rules.Source() != "embedded" {
		t.Errorf("Source() = %q, want embedded fallback", rules.Source())
	}
}

func TestParseRulesYAML_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "samplers: [broken"},
		{"empty class", "samplers:\n  exact:\n    - class: \"\"\n      priority: 10"},
		{"zero priority", "samplers:\n  exact:\n    - class: KSampler\n      priority: 0"},
		{"negative term priority", "samplers:\n  terms:\n    - term: sampler\n      priority: -1"},
		{"negative min length", "text:\n  min_length: -2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseRulesYAML([]byte(tc.yaml)); err == nil {
				t.Error("parseRulesYAML() error = nil, want validation error")
			}
		})
	}
}

func TestParseRulesYAML_EmptyDocumentIsValid(t *testing.T) {
	rules, err := parseRulesYAML([]byte(""))
	if err != nil {
		t.Fatalf("parseRulesYAML() error = %v", err)
	}
	if _, ok := rules.Classify("KSampler"); ok {
		t.Error("empty rules classified a sampler")
	}
	if rules.MinTextLength() != 0 {
		t.Errorf("MinTextLength() = %d, want 0", rules.MinTextLength())
	}
}
