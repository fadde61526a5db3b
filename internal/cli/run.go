package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/specforge/specforge/pkg/config"
	"github.com/specforge/specforge/pkg/enhance"
	"github.com/specforge/specforge/pkg/intent"
	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/normalize"
	"github.com/specforge/specforge/pkg/pipeline"
)

// FallbackParams replace a config file when all the essentials arrive as
// flags.
type FallbackParams struct {
	Spec   string
	Kind   string
	Output string
}

// RunGenerateParams carries everything the generate command collects.
type RunGenerateParams struct {
	ConfigPath string
	Fallback   FallbackParams
}

// RunGenerate loads configuration, runs the pipeline and writes the
// resulting bundle.
func RunGenerate(ctx context.Context, p RunGenerateParams) error {
	cfg, err := resolveConfig(p)
	if err != nil {
		return err
	}
	kind, err := cfg.SourceKind()
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(cfg.Spec)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Name:         filepath.Base(cfg.Spec),
		Concurrency:  cfg.Concurrency,
		BasePayloads: cfg.BasePayloads,
		Logger:       slog.Default(),
	}
	opts.Intent = intent.DefaultConfig()
	if len(cfg.SecurityHints) > 0 {
		opts.Intent.SecurityHints = cfg.SecurityHints
	}
	if len(cfg.TypeCheckHints) > 0 {
		opts.Intent.TypeCheckHints = cfg.TypeCheckHints
	}
	if cfg.Enhancer.Enabled {
		provider, err := enhance.NewProvider(cfg.Enhancer.Model)
		if err != nil {
			return err
		}
		opts.Enhancer = enhance.NewGateway(enhance.Options{
			Provider:   provider,
			Threshold:  cfg.Enhancer.Threshold,
			MaxRetries: cfg.Enhancer.MaxRetries,
			Logger:     slog.Default(),
		})
	}

	bundle, err := pipeline.Run(ctx, raw, kind, opts)
	if err != nil {
		return err
	}
	return writeBundle(bundle, cfg.Output)
}

func resolveConfig(p RunGenerateParams) (*config.Config, error) {
	if p.ConfigPath != "" {
		return config.Load(p.ConfigPath)
	}
	if p.Fallback.Spec == "" {
		return nil, errors.New("either --config or --input must be provided")
	}
	cfg := &config.Config{
		Spec:   absPath(p.Fallback.Spec),
		Kind:   p.Fallback.Kind,
		Output: p.Fallback.Output,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RunValidate normalizes the input and reports what survived; it is the
// dry-run half of generate.
func RunValidate(input, kindStr string) error {
	kind, err := resolveKind(input, kindStr)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	res, err := normalize.Normalize(raw, kind, filepath.Base(input))
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d operation(s), %d type(s), %d fragment(s) skipped\n",
		filepath.Base(input), len(res.Doc.Operations), len(res.Doc.Types), len(res.Skipped))
	for _, skip := range res.Skipped {
		fmt.Printf("  skipped %s: %s\n", skip.Fragment, skip.Reason)
	}
	return nil
}

func resolveKind(input, kindStr string) (ir.SourceKind, error) {
	if kindStr != "" {
		return config.ParseKind(kindStr)
	}
	return config.InferKind(input)
}
