package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/specforge/specforge/pkg/schema"
)

// Fingerprint hashes raw input bytes into the provenance form. Identical
// input bytes always produce identical fingerprints, which is what makes
// document identity round-trip stable.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Build assembles a document from normalizer output. It enforces the
// structural invariants the rest of the pipeline relies on: unique
// operation IDs, deterministic ordering of operations, types and outputs,
// and constraint attributes matching their node kinds.
func Build(src Provenance, ops []Operation, types []schema.TypeDefinition) (*Document, error) {
	if src.Hash == "" {
		return nil, fmt.Errorf("ir: provenance hash is empty")
	}
	if src.Kind == "" {
		return nil, fmt.Errorf("ir: provenance source kind is empty")
	}

	seen := make(map[string]bool, len(ops))
	for i := range ops {
		op := &ops[i]
		if op.ID == "" {
			return nil, fmt.Errorf("ir: operation %s %s has no id", op.Method, op.Path)
		}
		if seen[op.ID] {
			return nil, fmt.Errorf("ir: duplicate operation id %q", op.ID)
		}
		seen[op.ID] = true
		sort.SliceStable(op.Outputs, func(a, b int) bool {
			return op.Outputs[a].Status < op.Outputs[b].Status
		})
		for _, p := range op.Parameters {
			p.Schema.StripMismatched()
		}
		if op.Body != nil {
			op.Body.Schema.StripMismatched()
		}
		for _, out := range op.Outputs {
			out.Schema.StripMismatched()
		}
	}
	sort.SliceStable(ops, func(a, b int) bool { return ops[a].ID < ops[b].ID })

	for _, td := range types {
		td.Schema.StripMismatched()
	}
	sort.SliceStable(types, func(a, b int) bool { return types[a].Name < types[b].Name })

	doc := &Document{
		Version:    Version,
		Source:     src,
		Operations: ops,
		Types:      types,
	}
	if _, err := doc.TypeRegistry(); err != nil {
		return nil, err
	}
	return doc, nil
}
