// Package normalize turns raw interface descriptions into validated IR
// documents. Each source kind has its own frontend; all of them produce
// the same canonical schema nodes so downstream stages never branch on
// where a document came from.
package normalize

import (
	"fmt"

	"github.com/specforge/specforge/pkg/ir"
)

// Error reports a single fragment (operation, function, type) that could
// not be normalized. It never aborts sibling fragments; the frontend
// records it and moves on.
type Error struct {
	Source   ir.SourceKind
	Fragment string
	Reason   string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize %s: fragment %q: %s: %v", e.Source, e.Fragment, e.Reason, e.Err)
	}
	return fmt.Sprintf("normalize %s: fragment %q: %s", e.Source, e.Fragment, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is a normalized document plus the fragments that had to be
// skipped along the way.
type Result struct {
	Doc     *ir.Document
	Skipped []*Error
}

// Normalize dispatches raw input to the frontend for kind, builds the IR
// document and validates it against the meta-schema. The returned error is
// fatal for the whole input (unreadable source, no usable fragments,
// invalid document); per-fragment failures land in Result.Skipped.
func Normalize(raw []byte, kind ir.SourceKind, name string) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch kind {
	case ir.SourceOpenAPI:
		res, err = normalizeOpenAPI(raw, name)
	case ir.SourceGo:
		res, err = normalizeGo(raw, name)
	case ir.SourceTypeScript:
		res, err = normalizeTypeScript(raw, name)
	default:
		return nil, fmt.Errorf("normalize: unsupported source kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	if len(res.Doc.Operations) == 0 {
		return nil, fmt.Errorf("normalize %s: no operations could be normalized (%d fragment(s) skipped)", kind, len(res.Skipped))
	}
	if err := ir.Validate(res.Doc); err != nil {
		return nil, err
	}
	return res, nil
}
