// Package specforge generates deterministic test-case bundles from
// interface descriptions: OpenAPI documents, Go function signatures or
// TypeScript function signatures.
//
// Quick start:
//
//	import "github.com/specforge/specforge"
//
//	bundle, err := specforge.Generate(ctx, "./openapi.yaml")
//
// For full control over intents, enhancement and concurrency, use the
// pipeline package directly.
package specforge

import (
	"context"
	"os"
	"path/filepath"

	"github.com/specforge/specforge/pkg/config"
	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/pipeline"
)

// Generate runs the whole pipeline on a spec file, inferring the source
// kind from its extension.
func Generate(ctx context.Context, specPath string) (*pipeline.Bundle, error) {
	kind, err := config.InferKind(specPath)
	if err != nil {
		return nil, err
	}
	return GenerateKind(ctx, specPath, kind)
}

// GenerateKind runs the whole pipeline on a spec file of a known kind.
func GenerateKind(ctx context.Context, specPath string, kind ir.SourceKind) (*pipeline.Bundle, error) {
	raw, err := os.ReadFile(specPath)
	if err != nil {
		return nil, err
	}
	return pipeline.Run(ctx, raw, kind, pipeline.Options{
		Name: filepath.Base(specPath),
	})
}

// GenerateBytes runs the whole pipeline on in-memory input.
func GenerateBytes(ctx context.Context, raw []byte, kind ir.SourceKind, name string) (*pipeline.Bundle, error) {
	return pipeline.Run(ctx, raw, kind, pipeline.Options{Name: name})
}
