package intent

import (
	"fmt"

	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/schema"
)

// openapiEngine derives intents from HTTP semantics. Outcome statuses
// follow location precedence: a bad path parameter is a 404 or 400 no
// matter what the operation declares for body errors, a bad header is a
// 400, and everything else gets the operation's declared error status.
type openapiEngine struct {
	cfg Config
	reg *schema.Registry
}

func (e *openapiEngine) operation(op *ir.Operation) ([]Intent, error) {
	success := op.SuccessStatus()
	errStatus := op.ErrorStatus()

	paramIntent := func(kind Kind, p ir.Parameter, expected int, desc string) Intent {
		return Intent{
			OperationID: op.ID,
			Kind:        kind,
			Target:      string(p.Location) + "." + p.Name,
			Location:    p.Location,
			Param:       p.Name,
			Variant:     -1,
			Expected:    expected,
			Description: desc,
		}
	}

	out := []Intent{{
		OperationID: op.ID, Kind: HappyPath, Target: "operation",
		Variant: -1, Expected: success, Description: "well-formed request",
	}}

	happy, err := e.happyVariants(op, success)
	if err != nil {
		return nil, err
	}
	out = append(out, happy...)

	for _, p := range op.Params(ir.LocationPath) {
		ps, err := e.reg.Resolve(p.Schema)
		if err != nil {
			return nil, err
		}
		out = append(out, paramIntent(ResourceNotFound, p, 404, "identifier that addresses nothing"))
		// Without a declared format any syntactically plausible value must
		// be accepted, so only a format earns a bad-request case.
		if ps.Format != "" {
			out = append(out, paramIntent(FormatInvalidPathParam, p, 400, "identifier of the wrong shape"))
		}
		switch ps.Kind {
		case schema.KindString:
			if ps.Pattern != "" {
				out = append(out, paramIntent(PatternMismatch, p, 400, "identifier violating the pattern"))
			}
			if ps.MinLength != nil && *ps.MinLength > 0 {
				out = append(out, paramIntent(BoundaryMinLengthMinusOne, p, 400, "identifier one character too short"))
			}
			if ps.MaxLength != nil {
				out = append(out, paramIntent(BoundaryMaxLengthPlusOne, p, 400, "identifier one character too long"))
			}
			if pathParamInjectable(ps) {
				out = append(out, paramIntent(SQLInjection, p, 400, "SQL metacharacter identifier"))
				out = append(out, paramIntent(PathTraversal, p, 400, "directory traversal identifier"))
			}
		case schema.KindInteger, schema.KindNumber:
			if ps.Minimum != nil {
				out = append(out, paramIntent(BoundaryMinMinusOne, p, 400, "identifier one step below the minimum"))
			}
			if ps.Maximum != nil {
				out = append(out, paramIntent(BoundaryMaxPlusOne, p, 400, "identifier one step above the maximum"))
			}
		case schema.KindEnum:
			out = append(out, paramIntent(EnumMismatch, p, 400, "identifier outside the enum"))
		}
	}

	for _, p := range op.Params(ir.LocationHeader) {
		ps, err := e.reg.Resolve(p.Schema)
		if err != nil {
			return nil, err
		}
		if p.Required {
			out = append(out, paramIntent(HeaderMissing, p, 400, "required header omitted"))
		}
		switch ps.Kind {
		case schema.KindEnum:
			out = append(out, paramIntent(HeaderEnumMismatch, p, 400, "header outside the enum"))
		case schema.KindString:
			out = append(out, paramIntent(HeaderInjection, p, 400, "CRLF sequence in the header"))
		}
	}

	for _, p := range op.Params(ir.LocationQuery) {
		ps, err := e.reg.Resolve(p.Schema)
		if err != nil {
			return nil, err
		}
		if p.Required {
			out = append(out, paramIntent(RequiredFieldMissing, p, errStatus, "required query parameter omitted"))
		}
		// Everything arrives as a string on the query line, so type
		// confusion is only observable for parsed kinds.
		switch ps.Kind {
		case schema.KindInteger, schema.KindNumber, schema.KindBoolean, schema.KindEnum:
			out = append(out, paramIntent(TypeViolation, p, errStatus, "unparseable query value"))
		}
	}

	if op.Body != nil {
		if op.Body.Required {
			out = append(out, Intent{
				OperationID: op.ID, Kind: RequiredFieldMissing, Target: "body",
				Variant: -1, Expected: errStatus, Description: "request body omitted",
			})
		}
		w := &bodyWalker{
			reg: e.reg, cfg: e.cfg, opID: op.ID,
			success: success, structural: errStatus, constraint: errStatus, security: errStatus,
			typeRules: true, securityRules: true, robustness: false,
			doc: op.Summary + " " + op.Description,
		}
		body, err := w.walk(op.Body.Schema, nil, op.Body.Required, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, body...)
	}

	return out, nil
}

// happyVariants emits one success intent per union alternative when the
// body root, or one of its first-level properties, is polymorphic.
func (e *openapiEngine) happyVariants(op *ir.Operation, success int) ([]Intent, error) {
	if op.Body == nil {
		return nil, nil
	}
	root, err := e.reg.Resolve(op.Body.Schema)
	if err != nil {
		return nil, err
	}
	var out []Intent
	switch root.Kind {
	case schema.KindUnion:
		for i := range root.Variants {
			out = append(out, Intent{
				OperationID: op.ID, Kind: HappyPathVariant,
				Target:  fmt.Sprintf("operation[variant=%d]", i),
				Variant: i, Expected: success,
				Description: fmt.Sprintf("union variant %d of the body", i),
			})
		}
	case schema.KindObject:
		for _, f := range root.Properties {
			fr, err := e.reg.Resolve(f.Schema)
			if err != nil || fr == nil || fr.Kind != schema.KindUnion {
				continue
			}
			for i := range fr.Variants {
				out = append(out, Intent{
					OperationID: op.ID, Kind: HappyPathVariant,
					Target:  fmt.Sprintf("body.%s[variant=%d]", f.Name, i),
					Path:    []string{f.Name},
					Variant: i, Expected: success,
					Description: fmt.Sprintf("union variant %d of %s", i, f.Name),
				})
			}
		}
	}
	return out, nil
}

// pathParamInjectable mirrors the body filter without the doc-hint gate:
// a path identifier is always attacker-reachable, only structured formats
// exclude it.
func pathParamInjectable(ps *schema.Node) bool {
	switch ps.Format {
	case "uuid", "date", "date-time", "ipv4", "ipv6":
		return false
	}
	return ps.Pattern == ""
}
