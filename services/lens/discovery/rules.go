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
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gopkg.in/yaml.v3"
)

// File size and entry limits for external rule files.
const (
	// MaxRulesFileSize is the maximum allowed rules file size (1MB).
	MaxRulesFileSize = 1024 * 1024

	// MaxSamplerRules is the maximum exact sampler rules allowed.
	MaxSamplerRules = 200

	// MaxTermRules is the maximum substring term rules allowed.
	MaxTermRules = 50

	// defaultMinTextLength is the built-in floor used when the registry
	// cannot load at all.
	defaultMinTextLength = 8
)

// RulesPathEnv names the environment variable that points at an external
// rules file.
const RulesPathEnv = "LENS_RULES_PATH"

//go:embed rules.yaml
var defaultRulesYAML []byte

var rulesTracer = otel.Tracer("lens.discovery.rules")

// RulesYAML is the root structure for YAML deserialization.
type RulesYAML struct {
	Samplers SamplerRulesYAML  `yaml:"samplers"`
	Negative NegativeRulesYAML `yaml:"negative"`
	Text     TextRulesYAML     `yaml:"text"`
}

// SamplerRulesYAML holds sampler classification rules.
type SamplerRulesYAML struct {
	Exact []ExactRuleYAML `yaml:"exact"`
	Terms []TermRuleYAML  `yaml:"terms"`
}

// ExactRuleYAML ranks one known sampler class by exact name.
type ExactRuleYAML struct {
	Class    string `yaml:"class"`
	Priority int    `yaml:"priority"`
}

// TermRuleYAML ranks unknown sampler variants by substring.
type TermRuleYAML struct {
	Term     string `yaml:"term"`
	Priority int    `yaml:"priority"`
}

// NegativeRulesYAML holds the negative-conditioning heuristics.
type NegativeRulesYAML struct {
	Classes []string `yaml:"classes"`
	Fields  []string `yaml:"fields"`
}

// TextRulesYAML holds text discovery thresholds.
type TextRulesYAML struct {
	MinLength int `yaml:"min_length"`
}

// termRule is a compiled substring rule; terms are stored lowercase.
type termRule struct {
	term     string
	priority int
}

// Rules is the compiled discovery rules registry. It implements both
// SamplerClassifier and NegativeDetector, and supplies the default minimum
// text length.
//
// Thread Safety: Safe for concurrent use after loading; all fields are
// read-only once GetRules returns.
type Rules struct {
	// exact maps sampler class name to priority.
	exact map[string]int

	// terms are substring rules in file order; first match wins.
	terms []termRule

	// negClasses are lowercase substrings matched against class tags.
	negClasses []string

	// negFields are lowercase substrings matched against field names.
	negFields []string

	// minText is the default qualifying threshold for text fields.
	minText int

	// loadedAt is when the rules were loaded (Unix milliseconds UTC).
	loadedAt int64

	// source records where the rules came from: "embedded" or "external".
	source string
}

// Classify implements SamplerClassifier: exact class matches rank by their
// configured priority, then substring terms apply in file order.
func (r *Rules) Classify(classType string) (int, bool) {
	if classType == "" {
		return 0, false
	}
	if p, ok := r.exact[classType]; ok {
		return p, true
	}
	lower := strings.ToLower(classType)
	for _, t := range r.terms {
		if strings.Contains(lower, t.term) {
			return t.priority, true
		}
	}
	return 0, false
}

// Negative implements NegativeDetector: a node is negative when its class
// tag contains a negative class substring or any contributing field name
// contains a negative field substring. Case-insensitive.
func (r *Rules) Negative(classType string, fields []string) bool {
	lower := strings.ToLower(classType)
	for _, sub := range r.negClasses {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	for _, field := range fields {
		fieldLower := strings.ToLower(field)
		for _, sub := range r.negFields {
			if strings.Contains(fieldLower, sub) {
				return true
			}
		}
	}
	return false
}

// MinTextLength returns the default qualifying threshold for text fields.
func (r *Rules) MinTextLength() int {
	return r.minText
}

// Source reports where the rules were loaded from: "embedded" or
// "external".
func (r *Rules) Source() string {
	return r.source
}

// LoadedAtMilli returns the load time in Unix milliseconds UTC.
func (r *Rules) LoadedAtMilli() int64 {
	return r.loadedAt
}

// Singleton registry state.
var (
	rulesMu      sync.RWMutex
	rulesOnce    sync.Once
	cachedRules  *Rules
	rulesLoadErr error
)

// GetRules returns the cached discovery rules registry.
//
// Description:
//
//	Loads the rules on first call and caches them for subsequent calls.
//	An external file (LENS_RULES_PATH or a conventional location) is
//	preferred; when it is absent or rejected the embedded default applies.
//	Only an unparseable embedded copy makes this fail.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//
// Outputs:
//
//	*Rules - The loaded registry. Never nil on success.
//	error - Non-nil if loading failed.
//
// Thread Safety: Safe for concurrent use.
func GetRules(ctx context.Context) (*Rules, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetRules: ctx must not be nil")
	}

	rulesMu.RLock()
	if cachedRules != nil || rulesLoadErr != nil {
		rules, err := cachedRules, rulesLoadErr
		rulesMu.RUnlock()
		return rules, err
	}
	rulesMu.RUnlock()

	rulesMu.Lock()
	defer rulesMu.Unlock()

	if cachedRules != nil || rulesLoadErr != nil {
		return cachedRules, rulesLoadErr
	}

	rulesOnce.Do(func() {
		cachedRules, rulesLoadErr = loadRules(ctx)
	})

	return cachedRules, rulesLoadErr
}

// ResetRules clears the cached registry so the next GetRules call reloads.
//
// WARNING: Intended for testing only; resetting while other goroutines
// hold the registry leaves them on the old copy.
func ResetRules() {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	rulesOnce = sync.Once{}
	cachedRules = nil
	rulesLoadErr = nil
}

// defaultRules resolves the registry for passes that were not given an
// explicit policy, degrading to built-in minimums when loading fails.
func defaultRules() *Rules {
	rules, err := GetRules(context.Background())
	if err != nil {
		slog.Error("discovery rules unavailable, using built-in minimums",
			slog.String("error", err.Error()))
		return &Rules{minText: defaultMinTextLength, source: "builtin"}
	}
	return rules
}

// loadRules loads the registry, preferring an external file and falling
// back to the embedded default.
func loadRules(ctx context.Context) (*Rules, error) {
	ctx, span := rulesTracer.Start(ctx, "rules.Load")
	defer span.End()

	startTime := time.Now()
	defer func() {
		rulesLoadDuration.Observe(time.Since(startTime).Seconds())
	}()

	externalPath := externalRulesPath()
	var yamlData []byte
	source := "embedded"

	if externalPath != "" {
		data, err := readExternalRules(ctx, externalPath)
		if err == nil {
			yamlData = data
			source = "external"
			slog.Info("loaded discovery rules from external file",
				slog.String("path", externalPath))
		} else {
			slog.Warn("external discovery rules not available, using embedded default",
				slog.String("path", externalPath),
				slog.String("error", err.Error()))
		}
	}

	if yamlData == nil {
		yamlData = defaultRulesYAML
		slog.Debug("using embedded discovery rules")
	}

	span.SetAttributes(
		attribute.String("source", source),
		attribute.Int("yaml_size", len(yamlData)),
	)

	rules, err := parseRulesYAML(yamlData)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		rulesLoadErrors.Inc()
		// A rejected external file must not take the engine down.
		if source == "external" {
			slog.Warn("external discovery rules rejected, using embedded default",
				slog.String("path", externalPath),
				slog.String("error", err.Error()))
			rules, err = parseRulesYAML(defaultRulesYAML)
			source = "embedded"
		}
		if err != nil {
			return nil, fmt.Errorf("parsing discovery rules: %w", err)
		}
	}

	rules.source = source
	span.SetAttributes(
		attribute.Int("exact_rules", len(rules.exact)),
		attribute.Int("term_rules", len(rules.terms)),
	)

	slog.Info("discovery rules loaded",
		slog.Int("exact_rules", len(rules.exact)),
		slog.Int("term_rules", len(rules.terms)),
		slog.Int("min_text_length", rules.minText),
		slog.String("source", source))

	return rules, nil
}

// externalRulesPath returns the configured external rules path, or "" when
// none applies.
func externalRulesPath() string {
	if path := os.Getenv(RulesPathEnv); path != "" {
		return path
	}

	// Only the config subdirectory is probed; probing the working
	// directory itself would pick up this package's embedded source file
	// during tests.
	if _, err := os.Stat("./config/rules.yaml"); err == nil {
		absPath, _ := filepath.Abs("./config/rules.yaml")
		return absPath
	}

	return ""
}

// readExternalRules reads an external rules file with path and size checks.
func readExternalRules(ctx context.Context, path string) ([]byte, error) {
	_, span := rulesTracer.Start(ctx, "rules.ReadExternal")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if strings.Contains(absPath, "..") {
		return nil, fmt.Errorf("readExternalRules: path traversal not allowed: %s", absPath)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.Size() > MaxRulesFileSize {
		return nil, fmt.Errorf("rules file too large: %d bytes (max %d)", info.Size(), MaxRulesFileSize)
	}
	span.SetAttributes(attribute.Int64("file_size", info.Size()))

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// parseRulesYAML parses and validates rules data into a compiled registry.
func parseRulesYAML(data []byte) (*Rules, error) {
	var raw RulesYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling YAML: %w", err)
	}

	if len(raw.Samplers.Exact) > MaxSamplerRules {
		return nil, fmt.Errorf("too many exact sampler rules: %d (max %d)", len(raw.Samplers.Exact), MaxSamplerRules)
	}
	if len(raw.Samplers.Terms) > MaxTermRules {
		return nil, fmt.Errorf("too many term rules: %d (max %d)", len(raw.Samplers.Terms), MaxTermRules)
	}
	if raw.Text.MinLength < 0 {
		return nil, fmt.Errorf("text.min_length must not be negative: %d", raw.Text.MinLength)
	}

	rules := &Rules{
		exact:    make(map[string]int, len(raw.Samplers.Exact)),
		terms:    make([]termRule, 0, len(raw.Samplers.Terms)),
		minText:  raw.Text.MinLength,
		loadedAt: time.Now().UnixMilli(),
	}

	for i, rule := range raw.Samplers.Exact {
		if rule.Class == "" {
			return nil, fmt.Errorf("exact rule at index %d has empty class", i)
		}
		if rule.Priority <= 0 {
			return nil, fmt.Errorf("exact rule %s has non-positive priority %d", rule.Class, rule.Priority)
		}
		rules.exact[rule.Class] = rule.Priority
	}

	for i, rule := range raw.Samplers.Terms {
		if rule.Term == "" {
			return nil, fmt.Errorf("term rule at index %d has empty term", i)
		}
		if rule.Priority <= 0 {
			return nil, fmt.Errorf("term rule %s has non-positive priority %d", rule.Term, rule.Priority)
		}
		rules.terms = append(rules.terms, termRule{
			term:     strings.ToLower(rule.Term),
			priority: rule.Priority,
		})
	}

	for _, class := range raw.Negative.Classes {
		if class != "" {
			rules.negClasses = append(rules.negClasses, strings.ToLower(class))
		}
	}
	for _, field := range raw.Negative.Fields {
		if field != "" {
			rules.negFields = append(rules.negFields, strings.ToLower(field))
		}
	}

	return rules, nil
}
