package intent

import (
	"strings"

	"github.com/specforge/specforge/pkg/schema"
)

// bodyWalker emits intents for one operation's body schema. The engines
// differ only in the statuses they expect and in which rule families are
// admissible, so both drive this walker with their own settings.
type bodyWalker struct {
	reg *schema.Registry
	cfg Config

	opID    string
	success int
	// structural violations break the shape of the payload; constraint
	// violations keep the shape but break an attribute.
	structural int
	constraint int
	security   int

	// typeRules admits type-confusion and null intents; securityRules
	// admits injection intents. Signature engines gate these on evidence.
	typeRules     bool
	securityRules bool
	// robustness admits the zero/negative/empty probes signature sources
	// get, where "interesting but valid" inputs are cheap to try.
	robustness bool
	// doc is the operation's documentation, consulted by the security
	// applicability filter for required fields.
	doc string
}

func (w *bodyWalker) intent(kind Kind, path []string, expected int, desc string) Intent {
	return Intent{
		OperationID: w.opID,
		Kind:        kind,
		Target:      bodyTarget(path),
		Path:        append([]string(nil), path...),
		Variant:     -1,
		Expected:    expected,
		Description: desc,
	}
}

// walk descends a body schema and returns every intent its constraints
// justify. Refs resolve through the type arena; depth bounds recursion on
// self-referential types.
func (w *bodyWalker) walk(node *schema.Node, path []string, required bool, depth int) ([]Intent, error) {
	if node == nil || depth > w.cfg.MaxDepth {
		return nil, nil
	}
	node, err := w.reg.Resolve(node)
	if err != nil {
		return nil, err
	}

	var out []Intent
	switch node.Kind {
	case schema.KindObject:
		out = append(out, w.objectRules(node, path, depth)...)
	case schema.KindArray:
		arr, err := w.arrayRules(node, path, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, arr...)
	case schema.KindString:
		out = append(out, w.stringRules(node, path, required)...)
	case schema.KindInteger, schema.KindNumber:
		out = append(out, w.numericRules(node, path)...)
	case schema.KindEnum:
		out = append(out, w.intent(EnumMismatch, path, w.constraint, "value outside the declared enum"))
	case schema.KindUnion:
		out = append(out, w.intent(UnionNoMatch, path, w.structural, "value matching no union variant"))
		if node.Discriminator != nil {
			out = append(out, w.intent(DiscriminatorViolation, path, w.structural, "unknown discriminator value"))
		}
		// constraints inside the union follow the first variant, the one
		// the golden payload instantiates
		if len(node.Variants) > 0 {
			sub, err := w.walk(node.Variants[0], path, required, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	}
	return out, nil
}

func (w *bodyWalker) objectRules(node *schema.Node, path []string, depth int) []Intent {
	var out []Intent

	for _, f := range node.Properties {
		fpath := append(append([]string(nil), path...), f.Name)
		resolved, err := w.reg.Resolve(f.Schema)
		if err != nil || resolved == nil {
			continue
		}
		if f.Required || node.IsRequired(f.Name) {
			out = append(out, w.intent(RequiredFieldMissing, fpath, w.structural, "required field omitted"))
			if !resolved.Nullable && w.typeRules {
				out = append(out, w.intent(NullNotAllowed, fpath, w.structural, "null in a non-nullable field"))
			}
		}
		if w.typeRules && isScalarKind(resolved.Kind) {
			out = append(out, w.intent(TypeViolation, fpath, w.structural, "value of a conflicting type"))
		}
		sub, err := w.walk(f.Schema, fpath, f.Required || node.IsRequired(f.Name), depth+1)
		if err != nil {
			continue
		}
		out = append(out, sub...)
	}

	if node.AdditionalForbidden {
		out = append(out, w.intent(AdditionalPropertyNotAllowed, path, w.structural, "undeclared property added"))
	}
	if node.AdditionalProperties != nil && w.typeRules {
		if resolved, err := w.reg.Resolve(node.AdditionalProperties); err == nil && isScalarKind(resolved.Kind) {
			out = append(out, w.intent(ObjectValueTypeViolation, path, w.structural, "map value of a conflicting type"))
		}
	}
	if node.MinProperties != nil && *node.MinProperties > 0 {
		out = append(out, w.intent(BoundaryMinPropertiesMinusOne, path, w.constraint, "one property fewer than minProperties"))
	}
	if node.MaxProperties != nil {
		out = append(out, w.intent(BoundaryMaxPropertiesPlusOne, path, w.constraint, "one property more than maxProperties"))
	}
	for trigger := range node.DependentRequired {
		fpath := append(append([]string(nil), path...), trigger)
		out = append(out, w.intent(DependencyViolation, fpath, w.structural, "field present without its dependents"))
	}
	return out
}

func (w *bodyWalker) arrayRules(node *schema.Node, path []string, depth int) ([]Intent, error) {
	var out []Intent

	items, err := w.reg.Resolve(node.Items)
	if err != nil {
		return nil, err
	}
	if items != nil && isScalarKind(items.Kind) && w.typeRules {
		out = append(out, w.intent(ArrayItemTypeViolation, path, w.structural, "one item of a conflicting type"))
	}
	if node.MinItems != nil && *node.MinItems > 0 {
		out = append(out, w.intent(BoundaryMinItemsMinusOne, path, w.constraint, "one item fewer than minItems"))
	}
	if node.MaxItems != nil {
		out = append(out, w.intent(BoundaryMaxItemsPlusOne, path, w.constraint, "one item more than maxItems"))
	}
	if node.UniqueItems {
		out = append(out, w.intent(ArrayNotUnique, path, w.constraint, "duplicate items in a unique array"))
	}
	if w.robustness {
		expected := w.success
		if node.MinItems != nil && *node.MinItems > 0 {
			expected = w.constraint
		}
		out = append(out, w.intent(EmptyCollection, path, expected, "empty array input"))
	}

	if items != nil && (items.Kind == schema.KindObject || items.Kind == schema.KindArray) {
		ipath := append(append([]string(nil), path...), "[]")
		sub, err := w.walk(node.Items, ipath, false, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func (w *bodyWalker) stringRules(node *schema.Node, path []string, required bool) []Intent {
	var out []Intent

	if node.MinLength != nil && *node.MinLength > 0 {
		out = append(out, w.intent(BoundaryMinLengthMinusOne, path, w.constraint, "one character below minLength"))
	}
	if node.MaxLength != nil {
		out = append(out, w.intent(BoundaryMaxLengthPlusOne, path, w.constraint, "one character above maxLength"))
	}
	if node.Pattern != "" {
		out = append(out, w.intent(PatternMismatch, path, w.constraint, "string violating the declared pattern"))
	}
	if node.Format != "" {
		out = append(out, w.intent(FormatInvalid, path, w.constraint, "string violating format "+node.Format))
	}

	// Empty and whitespace probes only make sense where emptiness is
	// actually rejectable: a declared minimum length or a pattern.
	switch {
	case required && node.MinLength != nil && *node.MinLength >= 1:
		out = append(out, w.intent(EmptyString, path, w.constraint, "empty string in a length-constrained field"))
	case node.Pattern != "":
		out = append(out, w.intent(EmptyString, path, w.constraint, "empty string against the pattern"))
	}
	if required && node.Format == "" && node.Pattern == "" && node.MinLength != nil && *node.MinLength >= 1 {
		out = append(out, w.intent(WhitespaceOnly, path, w.constraint, "whitespace-only string"))
	}

	if w.securityRules && w.securityApplicable(node, required) {
		out = append(out, w.intent(SQLInjection, path, w.security, "SQL metacharacter probe"))
		out = append(out, w.intent(XSSInjection, path, w.security, "script tag probe"))
		if node.MaxLength == nil || *node.MaxLength >= 20 {
			out = append(out, w.intent(CommandInjection, path, w.security, "shell metacharacter probe"))
		}
	}
	return out
}

func (w *bodyWalker) numericRules(node *schema.Node, path []string) []Intent {
	var out []Intent

	if node.Minimum != nil {
		out = append(out, w.intent(BoundaryMinMinusOne, path, w.constraint, "one step below the minimum"))
	}
	if node.Maximum != nil {
		out = append(out, w.intent(BoundaryMaxPlusOne, path, w.constraint, "one step above the maximum"))
	}
	if node.MultipleOf != nil {
		out = append(out, w.intent(NotMultipleOf, path, w.constraint, "value off the multipleOf grid"))
	}

	if w.robustness {
		zeroExpected := w.success
		if node.Minimum != nil && (*node.Minimum > 0 || (*node.Minimum == 0 && node.ExclusiveMinimum)) {
			zeroExpected = w.constraint
		}
		out = append(out, w.intent(ZeroValue, path, zeroExpected, "zero input"))

		negExpected := w.success
		if node.Minimum != nil && *node.Minimum >= 0 {
			negExpected = w.constraint
		}
		out = append(out, w.intent(NegativeValue, path, negExpected, "negative input"))
	}
	return out
}

// securityApplicable implements the injection-probe filter: structured or
// tightly constrained strings cannot carry a probe, and required fields
// only qualify when the docs hint that the value is handled as free-form
// input.
func (w *bodyWalker) securityApplicable(node *schema.Node, required bool) bool {
	switch node.Format {
	case "uuid", "date", "date-time", "ipv4", "ipv6":
		return false
	}
	if node.Pattern != "" {
		return false
	}
	if node.MaxLength != nil && *node.MaxLength < 10 {
		return false
	}
	if required {
		hintText := w.doc + " " + node.Annotations.Description
		return hintMatch(hintText, w.cfg.SecurityHints)
	}
	return true
}

func isScalarKind(k schema.Kind) bool {
	switch k {
	case schema.KindString, schema.KindInteger, schema.KindNumber, schema.KindBoolean, schema.KindEnum:
		return true
	}
	return false
}

// bodyTarget renders a body path as the canonical dedup target. Array
// descents fold into the preceding step: ["tags", "[]"] -> "body.tags[]".
func bodyTarget(path []string) string {
	if len(path) == 0 {
		return "body"
	}
	var b strings.Builder
	b.WriteString("body")
	for _, step := range path {
		if step == "[]" {
			b.WriteString("[]")
			continue
		}
		b.WriteByte('.')
		b.WriteString(step)
	}
	return b.String()
}
