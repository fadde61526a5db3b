// Package intent derives test objectives from an IR document. Each source
// kind has its own rule engine; they share the body-schema walker and the
// (kind, target) dedup contract: within one operation no two intents may
// share both.
package intent

import (
	"fmt"
	"strings"

	"github.com/specforge/specforge/pkg/ir"
)

// Intent is one test objective against one operation. Target is the
// canonical dedup key: "body", "body.title", "body.items[]",
// "path.order_id", "query.limit", "header.X-Tenant". Path holds the body
// field steps ("items[]" marks descending into array items); Param and
// Location identify parameter intents instead.
type Intent struct {
	OperationID string
	Kind        Kind
	Target      string
	Location    ir.Location
	Param       string
	Path        []string
	Variant     int
	Expected    int
	Description string
}

// Config tunes the rule engines. The hint keyword lists are deliberately
// configuration, not code: which words mark a field as security-relevant
// or an implementation as type-checked varies per codebase.
type Config struct {
	SecurityHints  []string
	TypeCheckHints []string
	// MaxDepth bounds the body walk on recursive types.
	MaxDepth int
}

// DefaultConfig returns the stock hint lists.
func DefaultConfig() Config {
	return Config{
		SecurityHints: []string{
			"user input", "sanitize", "validate", "xss", "sql",
			"injection", "vulnerable",
		},
		TypeCheckHints: []string{
			"validate", "validation", "type-checked", "typeerror",
			"must be", "rejects",
		},
		MaxDepth: 6,
	}
}

// Generate runs the rule engine for the document's source kind over every
// operation and returns the deduplicated intent list in deterministic
// order.
func Generate(doc *ir.Document, cfg Config) ([]Intent, error) {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultConfig().MaxDepth
	}
	reg, err := doc.TypeRegistry()
	if err != nil {
		return nil, err
	}

	var engine engine
	switch doc.Source.Kind {
	case ir.SourceOpenAPI:
		engine = &openapiEngine{cfg: cfg, reg: reg}
	case ir.SourceGo:
		engine = &signatureEngine{cfg: cfg, reg: reg, gated: true}
	case ir.SourceTypeScript:
		engine = &signatureEngine{cfg: cfg, reg: reg, gated: false, flatError: 400}
	default:
		return nil, fmt.Errorf("intent: no rule engine for source kind %q", doc.Source.Kind)
	}

	var all []Intent
	for i := range doc.Operations {
		op := &doc.Operations[i]
		intents, err := engine.operation(op)
		if err != nil {
			return nil, fmt.Errorf("intent: operation %s: %w", op.ID, err)
		}
		all = append(all, dedup(intents)...)
	}
	return all, nil
}

type engine interface {
	operation(op *ir.Operation) ([]Intent, error)
}

// dedup drops intents repeating an earlier (kind, target) pair, keeping
// first occurrence order.
func dedup(intents []Intent) []Intent {
	type key struct {
		kind   Kind
		target string
	}
	seen := make(map[key]bool, len(intents))
	out := intents[:0]
	for _, it := range intents {
		k := key{it.Kind, it.Target}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, it)
	}
	return out
}

// hintMatch reports whether any hint appears in text, case-insensitive.
func hintMatch(text string, hints []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, h := range hints {
		if strings.Contains(lower, strings.ToLower(h)) {
			return true
		}
	}
	return false
}
