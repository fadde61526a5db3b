// Package payload turns intents into concrete test cases. Each operation
// first gets one golden, schema-valid payload; every intent then derives
// its case from that golden value by mutating the single field the intent
// addresses. Synthesis is deterministic end to end.
package payload

import (
	"fmt"
	"strings"

	"github.com/specforge/specforge/pkg/intent"
	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/schema"
)

// TestCase is one renderable test: a fully specified request plus the
// outcome it must produce. Body is only meaningful when HasBody is set;
// an omitted body and a null body are different requests.
type TestCase struct {
	Name           string          `json:"name"`
	OperationID    string          `json:"operationId"`
	Method         string          `json:"method"`
	Path           string          `json:"path"`
	Intent         intent.Intent   `json:"-"`
	Kind           intent.Kind     `json:"kind"`
	Category       intent.Category `json:"category"`
	ExpectedStatus int             `json:"expectedStatus"`
	PathParams     map[string]any  `json:"pathParams,omitempty"`
	QueryParams    map[string]any  `json:"queryParams,omitempty"`
	Headers        map[string]any  `json:"headers,omitempty"`
	Body           any             `json:"body,omitempty"`
	HasBody        bool            `json:"hasBody"`
	Response       any             `json:"response,omitempty"`
}

// GenerationError reports an internal invariant violated while deriving a
// case. It should never fire on a validated document; when it does it is
// a defect, not an input problem.
type GenerationError struct {
	OperationID string
	Target      string
	Err         error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("payload: operation %s, target %s: %v", e.OperationID, e.Target, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

const defaultMaxDepth = 6

// Options tunes generation. The zero value is valid.
type Options struct {
	// Base holds caller-supplied partial bodies per operation ID. Each is
	// sanitized against the body schema and merged over the golden payload
	// before any mutation derives from it.
	Base map[string]map[string]any
}

// Generate derives one test case per intent, in intent order. Golden
// synthesis for an operation always completes before any of its
// mutations run.
func Generate(doc *ir.Document, intents []intent.Intent) ([]TestCase, error) {
	return GenerateWithOptions(doc, intents, Options{})
}

// GenerateWithOptions is Generate with base-payload overrides.
func GenerateWithOptions(doc *ir.Document, intents []intent.Intent, opts Options) ([]TestCase, error) {
	reg, err := doc.TypeRegistry()
	if err != nil {
		return nil, err
	}
	synth := &synthesizer{reg: reg, maxDepth: defaultMaxDepth}

	states := make(map[string]*opState)
	cases := make([]TestCase, 0, len(intents))
	for _, it := range intents {
		st, err := stateFor(states, doc, synth, it.OperationID, opts.Base[it.OperationID])
		if err != nil {
			return nil, &GenerationError{OperationID: it.OperationID, Target: it.Target, Err: err}
		}
		tc, err := st.testCase(it)
		if err != nil {
			return nil, &GenerationError{OperationID: it.OperationID, Target: it.Target, Err: err}
		}
		cases = append(cases, tc)
	}
	return cases, nil
}

// opState holds one operation's golden artifacts: body, parameter values
// and the mutator bound to them.
type opState struct {
	op    *ir.Operation
	synth *synthesizer
	mut   *mutator

	pathParams  map[string]any
	queryParams map[string]any
	headers     map[string]any
}

func stateFor(states map[string]*opState, doc *ir.Document, synth *synthesizer, opID string, base map[string]any) (*opState, error) {
	if st, ok := states[opID]; ok {
		return st, nil
	}
	op := doc.Operation(opID)
	if op == nil {
		return nil, fmt.Errorf("unknown operation")
	}

	st := &opState{
		op: op, synth: synth,
		pathParams:  map[string]any{},
		queryParams: map[string]any{},
		headers:     map[string]any{},
	}
	for _, p := range op.Parameters {
		// optional query and header parameters stay off the golden
		// request; a mutation that targets one adds it explicitly
		if p.Location != ir.LocationPath && !p.Required {
			continue
		}
		v, err := synth.value(p.Schema, 0)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		switch p.Location {
		case ir.LocationPath:
			st.pathParams[p.Name] = v
		case ir.LocationQuery:
			st.queryParams[p.Name] = v
		case ir.LocationHeader:
			st.headers[p.Name] = v
		}
	}
	if op.Body != nil {
		golden, err := synth.value(op.Body.Schema, 0)
		if err != nil {
			return nil, fmt.Errorf("golden payload: %w", err)
		}
		if base != nil {
			golden, err = synth.applyBase(op.Body.Schema, golden, base)
			if err != nil {
				return nil, fmt.Errorf("base payload: %w", err)
			}
		}
		st.mut = &mutator{synth: synth, golden: golden, root: op.Body.Schema}
	}

	states[opID] = st
	return st, nil
}

func (st *opState) testCase(it intent.Intent) (TestCase, error) {
	tc := TestCase{
		Name:           caseName(it),
		OperationID:    st.op.ID,
		Method:         st.op.Method,
		Path:           st.op.Path,
		Intent:         it,
		Kind:           it.Kind,
		Category:       intent.CategoryOf(it.Kind),
		ExpectedStatus: it.Expected,
	}

	var err error
	if tc.PathParams, err = copyMap(st.pathParams); err != nil {
		return tc, err
	}
	if tc.QueryParams, err = copyMap(st.queryParams); err != nil {
		return tc, err
	}
	if tc.Headers, err = copyMap(st.headers); err != nil {
		return tc, err
	}

	if it.Param != "" {
		if err := st.mutateParam(&tc, it); err != nil {
			return tc, err
		}
		if st.mut != nil {
			body, err := deepCopy(st.mut.golden)
			if err != nil {
				return tc, err
			}
			tc.Body, tc.HasBody = body, true
		}
	} else if st.mut != nil {
		body, err := st.mut.body(it)
		if err != nil {
			return tc, err
		}
		if _, omit := body.(omitted); !omit {
			tc.Body, tc.HasBody = body, true
		}
	}

	tc.Response, err = st.response(it.Expected)
	return tc, err
}

func (st *opState) mutateParam(tc *TestCase, it intent.Intent) error {
	var param *ir.Parameter
	for i := range st.op.Parameters {
		p := &st.op.Parameters[i]
		if p.Name == it.Param && p.Location == it.Location {
			param = p
			break
		}
	}
	if param == nil {
		return fmt.Errorf("unknown parameter %q in %s", it.Param, it.Location)
	}
	node, err := st.synth.reg.Resolve(param.Schema)
	if err != nil {
		return err
	}

	value, remove, err := st.paramValue(it, node)
	if err != nil {
		return err
	}

	var target map[string]any
	switch it.Location {
	case ir.LocationPath:
		target = tc.PathParams
	case ir.LocationQuery:
		target = tc.QueryParams
	case ir.LocationHeader:
		target = tc.Headers
	default:
		return fmt.Errorf("parameter intent at location %q", it.Location)
	}
	if remove {
		delete(target, it.Param)
	} else {
		target[it.Param] = value
	}
	return nil
}

func (st *opState) paramValue(it intent.Intent, node *schema.Node) (value any, remove bool, err error) {
	switch it.Kind {
	case intent.ResourceNotFound:
		return notFoundValue(node), false, nil
	case intent.FormatInvalidPathParam:
		return invalidFormatValue(node.Format), false, nil
	case intent.HeaderMissing, intent.RequiredFieldMissing:
		return nil, true, nil
	case intent.HeaderEnumMismatch:
		return invalidHeaderEnum, false, nil
	case intent.HeaderInjection:
		return headerInjectionValue, false, nil
	case intent.TypeViolation:
		// everything on the wire is a string; unparseable is the most a
		// probe can be
		return invalidTypeValue, false, nil
	}
	// boundary, pattern, enum and injection kinds share the body rules
	m := &mutator{synth: st.synth}
	return m.mutation(it, node, nil)
}

// notFoundValue is syntactically valid for the parameter's type but
// addresses no resource.
func notFoundValue(node *schema.Node) any {
	if node.Format == "uuid" {
		return notFoundUUID
	}
	if node.Kind == schema.KindInteger {
		return notFoundInteger
	}
	return notFoundResourceName
}

// response synthesizes the body the mocked server answers with: the
// declared output for the exact status, or the first success output when
// the status itself is undeclared but successful.
func (st *opState) response(status int) (any, error) {
	out := st.op.Output(status)
	if out == nil && status >= 200 && status < 400 {
		for i := range st.op.Outputs {
			o := &st.op.Outputs[i]
			if o.Status >= 200 && o.Status < 400 {
				out = o
				break
			}
		}
	}
	if out == nil || out.Schema == nil {
		return nil, nil
	}
	return st.synth.value(out.Schema, 0)
}

func copyMap(m map[string]any) (map[string]any, error) {
	c, err := deepCopy(m)
	if err != nil {
		return nil, err
	}
	out, ok := c.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parameter map copy yielded %T", c)
	}
	return out, nil
}

// caseName renders a stable, framework-safe identifier:
// createOrder__boundary_min_length_minus_one__body_title.
func caseName(it intent.Intent) string {
	name := it.OperationID + "__" + strings.ToLower(string(it.Kind))
	if it.Target != "" && it.Target != "operation" {
		name += "__" + sanitizeName(it.Target)
	}
	return name
}

func sanitizeName(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
