// Package iconfig loads the YAML-driven configuration spec.md section
// 5 names: per-entity grouped-execution budgets and the debug-trace
// toggle. Grounded on the teacher's own YAML-driven config loading
// shape, generalized from "one schema diff config" to "one query
// pipeline runtime config".
package iconfig

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GroupedExecutionConfig is the per-entity budget spec.md section 4.9
// enforces (`max_groups`/`max_group_bytes`); Default applies when
// an entity has no explicit override.
type GroupedExecutionConfig struct {
	Default   GroupBudget            `yaml:"default"`
	PerEntity map[string]GroupBudget `yaml:"per_entity"`
}

// GroupBudget is one entity's (or the default) grouped-execution limit
// pair.
type GroupBudget struct {
	MaxGroups     uint64 `yaml:"max_groups"`
	MaxGroupBytes uint64 `yaml:"max_group_bytes"`
}

// BudgetFor resolves the effective budget for an entity, falling back
// to Default when no per-entity override exists.
func (c GroupedExecutionConfig) BudgetFor(entityPath string) GroupBudget {
	if b, ok := c.PerEntity[entityPath]; ok {
		return b
	}
	return c.Default
}

// TraceConfig controls the debug-trace renderer (spec.md section 14).
type TraceConfig struct {
	Enabled          bool `yaml:"enabled"`
	RowsScanned      bool `yaml:"rows_scanned"`
	PushdownDecision bool `yaml:"pushdown_decision"`
	OptimizationTag  bool `yaml:"optimization_tag"`
}

// Config is the top-level runtime configuration document.
type Config struct {
	GroupedExecution GroupedExecutionConfig `yaml:"grouped_execution"`
	Trace            TraceConfig            `yaml:"trace"`
}

// Default returns a conservative built-in configuration used when no
// config file is supplied.
func Default() Config {
	return Config{
		GroupedExecution: GroupedExecutionConfig{
			Default: GroupBudget{MaxGroups: 10_000, MaxGroupBytes: 16 << 20},
		},
		Trace: TraceConfig{Enabled: false},
	}
}

// Load reads and parses a YAML config file at path, decoding exactly as
// the teacher's own config loader does: unknown keys are a hard error
// rather than silently ignored, catching a typo'd field name instead of
// letting it fall back to its zero value.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("iconfig: reading config file: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("iconfig: parsing config file: %w", err)
	}
	return cfg, nil
}
