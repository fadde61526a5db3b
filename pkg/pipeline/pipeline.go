// Package pipeline runs the whole generation sequence for one input:
// normalize, derive intents, synthesize payloads, plan fixtures, enhance.
// Each run owns all of its state; nothing is shared between concurrent
// runs, and the output ordering is deterministic regardless of how many
// operations generate in parallel.
package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/specforge/specforge/pkg/enhance"
	"github.com/specforge/specforge/pkg/fixture"
	"github.com/specforge/specforge/pkg/intent"
	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/normalize"
	"github.com/specforge/specforge/pkg/payload"
)

// Options tunes one run.
type Options struct {
	// Name labels the input in provenance and errors, typically the file
	// name.
	Name string
	// Intent overrides the rule-engine configuration; zero value means
	// defaults.
	Intent intent.Config
	// Enhancer is optional; nil skips enhancement entirely.
	Enhancer *enhance.Gateway
	// Concurrency caps parallel operation generation; non-positive means
	// one goroutine per operation.
	Concurrency int
	// BasePayloads overrides golden body fields per operation ID before
	// mutation; values are sanitized against the body schema.
	BasePayloads map[string]map[string]any
	Logger       *slog.Logger
}

// Bundle is the complete result of one run: every test case in
// deterministic order plus the fixture plans the cases depend on.
type Bundle struct {
	Document *ir.Document
	Cases    []payload.TestCase
	// Plans holds the fixture plan per operation that needs setup.
	Plans map[string]*fixture.Plan
	// Skipped lists input fragments normalization had to drop.
	Skipped []*normalize.Error
	// Fallbacks records, per operation, why enhancement fell back. An
	// absent entry means the operation's payloads were enhanced (or no
	// enhancer was configured).
	Fallbacks map[string]enhance.FallbackReason
}

// Run executes the pipeline on raw input of the given kind. The returned
// error is fatal: either normalization rejected the input outright or an
// internal generation invariant broke. Enhancement failures are never
// part of it.
func Run(ctx context.Context, raw []byte, kind ir.SourceKind, opts Options) (*Bundle, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res, err := normalize.Normalize(raw, kind, opts.Name)
	if err != nil {
		return nil, err
	}
	doc := res.Doc
	for _, skip := range res.Skipped {
		logger.Warn("fragment skipped", "source", skip.Source, "fragment", skip.Fragment, "reason", skip.Reason)
	}

	intents, err := intent.Generate(doc, opts.Intent)
	if err != nil {
		return nil, err
	}
	perOp := groupByOperation(doc, intents)

	bundle := &Bundle{
		Document:  doc,
		Plans:     make(map[string]*fixture.Plan),
		Skipped:   res.Skipped,
		Fallbacks: make(map[string]enhance.FallbackReason),
	}

	// operations are independent units of work; each one generates its
	// golden payload and all of its mutations inside a single goroutine,
	// so golden synthesis always completes before the first mutation
	type opResult struct {
		cases    []payload.TestCase
		golden   any
		fallback enhance.FallbackReason
	}
	results := make([]opResult, len(doc.Operations))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	for i := range doc.Operations {
		i := i
		op := &doc.Operations[i]
		opIntents := perOp[op.ID]
		g.Go(func() error {
			cases, err := payload.GenerateWithOptions(doc, opIntents, payload.Options{Base: opts.BasePayloads})
			if err != nil {
				return err
			}
			r := opResult{cases: cases}
			for j := range cases {
				if cases[j].Kind == intent.HappyPath && cases[j].HasBody {
					r.golden = cases[j].Body
					break
				}
			}
			r.fallback = enhanceCases(gctx, opts.Enhancer, op, cases)
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	golden := make(map[string]any, len(doc.Operations))
	for i := range doc.Operations {
		r := results[i]
		bundle.Cases = append(bundle.Cases, r.cases...)
		if r.golden != nil {
			golden[doc.Operations[i].ID] = r.golden
		}
		if r.fallback != enhance.FallbackNone && r.fallback != enhance.FallbackDisabled {
			bundle.Fallbacks[doc.Operations[i].ID] = r.fallback
		}
	}

	planner, err := fixture.NewPlanner(doc, golden)
	if err != nil {
		return nil, err
	}
	for i := range doc.Operations {
		op := &doc.Operations[i]
		if !fixture.NeedsSetup(op) {
			continue
		}
		plan, err := planner.Plan(op)
		if err != nil {
			return nil, err
		}
		if plan.Required() {
			bundle.Plans[op.ID] = plan
		}
	}
	bundle.Cases = fixture.Bind(bundle.Plans, bundle.Cases)

	logger.Info("generation complete",
		"operations", len(doc.Operations),
		"cases", len(bundle.Cases),
		"plans", len(bundle.Plans),
		"skipped", len(bundle.Skipped))
	return bundle, nil
}

// enhanceCases rewrites the happy payloads of one operation through the
// gateway. Mutated payloads stay deterministic: enhancing them could
// erase the single field the case exists to break.
func enhanceCases(ctx context.Context, gw *enhance.Gateway, op *ir.Operation, cases []payload.TestCase) enhance.FallbackReason {
	if gw == nil {
		return enhance.FallbackDisabled
	}
	ectx := enhance.Context{
		OperationID: op.ID,
		Method:      op.Method,
		Path:        op.Path,
		Description: op.Summary,
	}
	last := enhance.FallbackNone
	for i := range cases {
		tc := &cases[i]
		if !tc.HasBody || (tc.Kind != intent.HappyPath && tc.Kind != intent.HappyPathVariant) {
			continue
		}
		enhanced, reason := gw.Enhance(ctx, tc.Body, ectx)
		tc.Body = enhanced
		if reason != enhance.FallbackNone {
			last = reason
		}
	}
	return last
}

// groupByOperation splits the intent list per operation, keeping the
// generator's emission order within each.
func groupByOperation(doc *ir.Document, intents []intent.Intent) map[string][]intent.Intent {
	perOp := make(map[string][]intent.Intent, len(doc.Operations))
	for _, it := range intents {
		perOp[it.OperationID] = append(perOp[it.OperationID], it)
	}
	return perOp
}
