// Package config loads the YAML run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/specforge/specforge/pkg/ir"
)

// Config represents the complete configuration for one generation run.
type Config struct {
	// Spec is the path to the interface description to generate from.
	Spec string `yaml:"spec"`
	// Kind selects the frontend: openapi, go or typescript. Empty means
	// infer from the spec file's extension.
	Kind string `yaml:"kind"`
	// Output is where the test-case bundle is written; empty means stdout.
	Output string `yaml:"output"`
	// Concurrency caps parallel operation generation; 0 means unbounded.
	Concurrency int `yaml:"concurrency"`
	// SecurityHints and TypeCheckHints override the rule engines' keyword
	// lists; empty keeps the defaults.
	SecurityHints  []string `yaml:"securityHints"`
	TypeCheckHints []string `yaml:"typeCheckHints"`
	// BasePayloads pins body fields per operation ID; values are merged
	// over the synthesized golden payload after schema sanitization.
	BasePayloads map[string]map[string]any `yaml:"basePayloads"`

	Enhancer EnhancerConfig `yaml:"enhancer"`
}

// EnhancerConfig configures the optional enhancement gateway.
type EnhancerConfig struct {
	Enabled bool `yaml:"enabled"`
	// Model is the provider:model pair, e.g. "openai:gpt-4o".
	Model string `yaml:"model"`
	// Threshold is the circuit breaker's consecutive-failure trip point.
	Threshold int `yaml:"threshold"`
	// MaxRetries bounds attempts per payload.
	MaxRetries int `yaml:"maxRetries"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(cfg.Spec) {
		abs, _ := filepath.Abs(cfg.Spec)
		cfg.Spec = abs
	}
	if cfg.Output != "" && !filepath.IsAbs(cfg.Output) {
		abs, _ := filepath.Abs(cfg.Output)
		cfg.Output = abs
	}
	return &cfg, nil
}

// Validate checks the fields an explicit caller may have filled in by
// hand.
func (c *Config) Validate() error {
	if c.Spec == "" {
		return errors.New("config.spec is required")
	}
	if c.Kind != "" {
		if _, err := ParseKind(c.Kind); err != nil {
			return err
		}
	}
	if c.Enhancer.Enabled && c.Enhancer.Model == "" {
		return errors.New("enhancer.model is required when enhancer.enabled is set")
	}
	return nil
}

// SourceKind resolves the configured kind, inferring it from the spec
// file's extension when unset.
func (c *Config) SourceKind() (ir.SourceKind, error) {
	if c.Kind != "" {
		return ParseKind(c.Kind)
	}
	return InferKind(c.Spec)
}

// ParseKind maps a configuration string to a source kind.
func ParseKind(s string) (ir.SourceKind, error) {
	switch strings.ToLower(s) {
	case "openapi", "oas":
		return ir.SourceOpenAPI, nil
	case "go", "golang":
		return ir.SourceGo, nil
	case "typescript", "ts":
		return ir.SourceTypeScript, nil
	}
	return "", fmt.Errorf("unknown source kind %q (want openapi, go or typescript)", s)
}

// InferKind guesses the source kind from a file extension.
func InferKind(path string) (ir.SourceKind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return ir.SourceOpenAPI, nil
	case ".go":
		return ir.SourceGo, nil
	case ".ts":
		return ir.SourceTypeScript, nil
	}
	return "", fmt.Errorf("cannot infer source kind from %q; set kind explicitly", filepath.Base(path))
}
