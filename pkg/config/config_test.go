package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/ir"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "specforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
spec: ./api/openapi.yaml
kind: openapi
output: ./out/cases.json
concurrency: 4
securityHints: [sanitize, "user input"]
basePayloads:
  createOrder:
    title: Premium headphones
enhancer:
  enabled: true
  model: openai:gpt-4o
  threshold: 5
  maxRetries: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.Spec))
	assert.True(t, filepath.IsAbs(cfg.Output))
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, []string{"sanitize", "user input"}, cfg.SecurityHints)
	assert.Equal(t, "Premium headphones", cfg.BasePayloads["createOrder"]["title"])
	assert.True(t, cfg.Enhancer.Enabled)
	assert.Equal(t, "openai:gpt-4o", cfg.Enhancer.Model)

	kind, err := cfg.SourceKind()
	require.NoError(t, err)
	assert.Equal(t, ir.SourceOpenAPI, kind)
}

func TestLoadRejectsMissingSpec(t *testing.T) {
	_, err := Load(writeConfig(t, "output: ./cases.json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spec is required")
}

func TestLoadRejectsEnhancerWithoutModel(t *testing.T) {
	_, err := Load(writeConfig(t, "spec: api.yaml\nenhancer:\n  enabled: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enhancer.model")
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want ir.SourceKind
		ok   bool
	}{
		{"openapi", ir.SourceOpenAPI, true},
		{"OAS", ir.SourceOpenAPI, true},
		{"go", ir.SourceGo, true},
		{"golang", ir.SourceGo, true},
		{"ts", ir.SourceTypeScript, true},
		{"graphql", "", false},
	}
	for _, tt := range tests {
		kind, err := ParseKind(tt.in)
		if tt.ok {
			require.NoError(t, err, tt.in)
			assert.Equal(t, tt.want, kind)
		} else {
			assert.Error(t, err, tt.in)
		}
	}
}

func TestInferKind(t *testing.T) {
	tests := []struct {
		path string
		want ir.SourceKind
		ok   bool
	}{
		{"api/openapi.yaml", ir.SourceOpenAPI, true},
		{"spec.json", ir.SourceOpenAPI, true},
		{"handlers.go", ir.SourceGo, true},
		{"client.ts", ir.SourceTypeScript, true},
		{"README.md", "", false},
	}
	for _, tt := range tests {
		kind, err := InferKind(tt.path)
		if tt.ok {
			require.NoError(t, err, tt.path)
			assert.Equal(t, tt.want, kind)
		} else {
			assert.Error(t, err, tt.path)
		}
	}
}
