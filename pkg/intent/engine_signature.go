package intent

import (
	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/schema"
)

// signatureEngine covers function-signature sources. A signature claims
// far less than an HTTP contract, so the engine leans on validation
// evidence: type-confusion and injection intents are only worth emitting
// when the docs suggest the implementation actually checks its inputs.
//
// Expected outcomes are symbolic statuses: success, 400 for structural
// breakage (the call cannot be made as declared), 422 for a value that
// fits the shape but violates a constraint. TypeScript sources flatten
// both error classes to flatError, since the runtime enforces nothing on
// its own.
type signatureEngine struct {
	cfg       Config
	reg       *schema.Registry
	gated     bool
	flatError int
}

func (e *signatureEngine) operation(op *ir.Operation) ([]Intent, error) {
	success := op.SuccessStatus()
	structural, constraint := 400, 422
	if e.flatError != 0 {
		structural, constraint = e.flatError, e.flatError
	}

	typeRules, securityRules := true, true
	if e.gated {
		typeRules = op.Evidence.TypeChecked || hintMatch(op.Evidence.Doc, e.cfg.TypeCheckHints)
		securityRules = hintMatch(op.Evidence.Doc, e.cfg.SecurityHints)
	}

	out := []Intent{{
		OperationID: op.ID, Kind: HappyPath, Target: "operation",
		Variant: -1, Expected: success, Description: "valid invocation",
	}}

	if op.Body != nil {
		w := &bodyWalker{
			reg: e.reg, cfg: e.cfg, opID: op.ID,
			success: success, structural: structural, constraint: constraint, security: constraint,
			typeRules: typeRules, securityRules: securityRules, robustness: true,
			doc: op.Evidence.Doc,
		}
		body, err := w.walk(op.Body.Schema, nil, op.Body.Required, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, body...)
	}

	return out, nil
}
