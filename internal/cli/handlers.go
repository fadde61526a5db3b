package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/specforge/specforge/pkg/fixture"
	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/payload"
	"github.com/specforge/specforge/pkg/pipeline"
)

// bundleOutput is the serialized shape handed to renderers.
type bundleOutput struct {
	Source    ir.Provenance            `json:"source"`
	Cases     []payload.TestCase       `json:"cases"`
	Plans     map[string]*fixture.Plan `json:"plans,omitempty"`
	Skipped   []string                 `json:"skipped,omitempty"`
	Fallbacks map[string]string        `json:"enhancementFallbacks,omitempty"`
}

func writeBundle(bundle *pipeline.Bundle, output string) error {
	out := bundleOutput{
		Source: bundle.Document.Source,
		Cases:  bundle.Cases,
		Plans:  bundle.Plans,
	}
	for _, skip := range bundle.Skipped {
		out.Skipped = append(out.Skipped, skip.Error())
	}
	if len(bundle.Fallbacks) > 0 {
		out.Fallbacks = make(map[string]string, len(bundle.Fallbacks))
		for op, reason := range bundle.Fallbacks {
			out.Fallbacks[op] = string(reason)
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %d case(s) to %s\n", len(out.Cases), output)
	return nil
}

// absPath resolves a possibly relative path; errors fall back to the
// input unchanged.
func absPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
