package fixture

import (
	"fmt"
	"strings"

	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/schema"
)

// Planner decides how each prerequisite resource gets created. The body
// of a creation step is, in priority order, the golden payload already
// generated for the create operation, a minimal payload synthesized from
// its required fields, or an empty object.
type Planner struct {
	doc      *ir.Document
	reg      *schema.Registry
	analyzer *Analyzer
	// golden maps operation IDs to the golden payloads the payload stage
	// produced; nil entries fall back to minimal synthesis.
	golden map[string]any
}

func NewPlanner(doc *ir.Document, golden map[string]any) (*Planner, error) {
	reg, err := doc.TypeRegistry()
	if err != nil {
		return nil, err
	}
	return &Planner{
		doc:      doc,
		reg:      reg,
		analyzer: NewAnalyzer(doc),
		golden:   golden,
	}, nil
}

// Plan compiles the prerequisite schedule for one operation. Operations
// without path-parameter dependencies get an empty plan.
func (p *Planner) Plan(op *ir.Operation) (*Plan, error) {
	plan := &Plan{OperationID: op.ID, Bindings: map[string]string{}}

	for _, dep := range p.analyzer.Dependencies(op) {
		step, err := p.setupStep(dep)
		if err != nil {
			return nil, fmt.Errorf("fixture: operation %s, param %s: %w", op.ID, dep.Param, err)
		}
		plan.Setup = append(plan.Setup, step)
		plan.Bindings[dep.Param] = step.Variable + "." + step.Identifier
	}

	// teardown runs in exactly the reverse order of setup
	for i := len(plan.Setup) - 1; i >= 0; i-- {
		if td, ok := p.teardownStep(plan.Setup[i]); ok {
			plan.Teardown = append(plan.Teardown, td)
		}
	}
	return plan, nil
}

func (p *Planner) setupStep(dep Dependency) (Step, error) {
	step := Step{
		Resource:   dep.Resource,
		Variable:   "created_" + dep.Resource,
		Identifier: "id",
	}

	if dep.CreateOp == "" {
		// no creator in the document: the runner must provision the
		// resource out of band, an empty POST onto the inferred
		// collection is the best instruction we can leave
		step.Method = "POST"
		step.Path = "/" + pluralize(dep.Resource)
		step.Body = map[string]any{}
		step.Source = SourceEmpty
		return step, nil
	}

	create := p.doc.Operation(dep.CreateOp)
	if create == nil {
		return step, fmt.Errorf("create operation %s not in document", dep.CreateOp)
	}
	step.OperationID = create.ID
	step.Method = create.Method
	step.Path = create.Path
	step.Identifier = p.identifierField(create, dep.Resource)

	if golden, ok := p.golden[create.ID]; ok && golden != nil {
		step.Body = golden
		step.Source = SourceGolden
		return step, nil
	}
	if create.Body != nil {
		body, err := p.minimalPayload(create.Body.Schema, 0)
		if err == nil {
			if obj, ok := body.(map[string]any); ok {
				step.Body = obj
				step.Source = SourceMinimal
				return step, nil
			}
		}
	}
	step.Body = map[string]any{}
	step.Source = SourceEmpty
	return step, nil
}

// teardownStep finds the DELETE operation that undoes a creation, when
// the document declares one.
func (p *Planner) teardownStep(setup Step) (Step, bool) {
	for i := range p.doc.Operations {
		cand := &p.doc.Operations[i]
		if cand.Method != "DELETE" {
			continue
		}
		params := cand.Params(ir.LocationPath)
		if len(params) == 0 {
			continue
		}
		last := params[len(params)-1]
		if resourceName(last.Name, cand.Path) != setup.Resource {
			continue
		}
		return Step{
			OperationID: cand.ID,
			Method:      cand.Method,
			Path:        cand.Path,
			Resource:    setup.Resource,
			Variable:    setup.Variable,
			Identifier:  setup.Identifier,
		}, true
	}
	return Step{}, false
}

// identifierField picks the response field carrying the created
// resource's identifier.
func (p *Planner) identifierField(create *ir.Operation, resource string) string {
	out := create.Output(create.SuccessStatus())
	if out == nil || out.Schema == nil {
		return "id"
	}
	node, err := p.reg.Resolve(out.Schema)
	if err != nil || node.Kind != schema.KindObject {
		return "id"
	}
	if node.Property("id") != nil {
		return "id"
	}
	if node.Property(resource+"_id") != nil {
		return resource + "_id"
	}
	for _, f := range node.Properties {
		if strings.HasSuffix(f.Name, "_id") || strings.HasSuffix(f.Name, "Id") {
			return f.Name
		}
	}
	return "id"
}

// minimalPayload synthesizes just the required fields of a schema, using
// field-name heuristics for plausible values.
func (p *Planner) minimalPayload(node *schema.Node, depth int) (any, error) {
	if node == nil || depth > 6 {
		return map[string]any{}, nil
	}
	node, err := p.reg.Resolve(node)
	if err != nil {
		return nil, err
	}

	switch node.Kind {
	case schema.KindObject:
		obj := map[string]any{}
		for _, f := range node.Properties {
			if !f.Required && !node.IsRequired(f.Name) {
				continue
			}
			fs, err := p.reg.Resolve(f.Schema)
			if err != nil {
				return nil, err
			}
			obj[f.Name], err = p.minimalField(f.Name, fs, depth)
			if err != nil {
				return nil, err
			}
		}
		return obj, nil
	case schema.KindUnion:
		if len(node.Variants) > 0 {
			return p.minimalPayload(node.Variants[0], depth+1)
		}
	}
	return p.minimalField("", node, depth)
}

func (p *Planner) minimalField(name string, node *schema.Node, depth int) (any, error) {
	lower := strings.ToLower(name)

	if node.Kind == schema.KindEnum && len(node.EnumValues) > 0 {
		return node.EnumValues[0], nil
	}

	switch node.Kind {
	case schema.KindString:
		switch {
		case strings.Contains(lower, "email"):
			return "test@example.com", nil
		case lower == "status":
			return "active", nil
		case strings.Contains(lower, "description"):
			return "Test description", nil
		case strings.Contains(lower, "name") || strings.Contains(lower, "title"):
			return "Test Resource", nil
		}
		v := "test"
		if node.MinLength != nil && len(v) < *node.MinLength {
			v += strings.Repeat("x", *node.MinLength-len(v))
		}
		return v, nil

	case schema.KindInteger:
		if strings.HasSuffix(lower, "id") {
			return 10000, nil
		}
		return midpointInt(node), nil

	case schema.KindNumber:
		if strings.Contains(lower, "amount") || strings.Contains(lower, "price") {
			return 100.00, nil
		}
		if node.Minimum != nil {
			return *node.Minimum, nil
		}
		return 1.0, nil

	case schema.KindBoolean:
		return true, nil

	case schema.KindArray:
		items, err := p.reg.Resolve(node.Items)
		if err != nil || items == nil {
			return []any{}, nil
		}
		iv, err := p.minimalField("", items, depth+1)
		if err != nil {
			return nil, err
		}
		n := 1
		if node.MinItems != nil && *node.MinItems > n {
			n = *node.MinItems
		}
		out := make([]any, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, iv)
		}
		return out, nil

	case schema.KindObject, schema.KindUnion:
		return p.minimalPayload(node, depth+1)
	}
	return nil, nil
}

func midpointInt(node *schema.Node) int {
	switch {
	case node.Minimum != nil && node.Maximum != nil:
		return int((*node.Minimum + *node.Maximum) / 2)
	case node.Minimum != nil:
		return int(*node.Minimum)
	default:
		return 1
	}
}

// pluralize is the naive inverse of utils.Singularize, good enough for a
// fallback path nobody could resolve better.
func pluralize(s string) string {
	if strings.HasSuffix(s, "y") {
		return s[:len(s)-1] + "ies"
	}
	if strings.HasSuffix(s, "s") {
		return s + "es"
	}
	return s + "s"
}
