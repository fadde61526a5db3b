package payload

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/copystructure"

	"github.com/specforge/specforge/pkg/intent"
	"github.com/specforge/specforge/pkg/schema"
)

// mutator derives one concrete payload from the golden payload and one
// intent. Every mutation touches exactly one addressed field; the rest of
// the payload stays byte-identical to the golden value.
type mutator struct {
	synth  *synthesizer
	golden any
	root   *schema.Node
}

// omitted marks a body that must not be sent at all, as opposed to an
// explicit null body.
type omitted struct{}

func (m *mutator) body(it intent.Intent) (any, error) {
	if it.Kind == intent.HappyPath {
		return deepCopy(m.golden)
	}
	if it.Kind == intent.HappyPathVariant && len(it.Path) == 0 {
		root, err := m.synth.reg.Resolve(m.root)
		if err != nil {
			return nil, err
		}
		return m.synth.variantValue(root, it.Variant, 0)
	}
	if it.Kind == intent.RequiredFieldMissing && len(it.Path) == 0 {
		return omitted{}, nil
	}

	node, parent, err := m.nodeAt(it.Path)
	if err != nil {
		return nil, err
	}
	value, remove, err := m.mutation(it, node, parent)
	if err != nil {
		return nil, err
	}

	out, err := deepCopy(m.golden)
	if err != nil {
		return nil, err
	}
	if len(it.Path) == 0 {
		return value, nil
	}
	if remove {
		if err := deleteAt(out, it.Path); err != nil {
			return nil, err
		}
		return out, nil
	}
	if err := setAt(out, it.Path, value); err != nil {
		return nil, err
	}

	// dependency probes keep the trigger and strip what it requires
	if it.Kind == intent.DependencyViolation && parent != nil {
		base := it.Path[:len(it.Path)-1]
		for _, dep := range parent.DependentRequired[it.Path[len(it.Path)-1]] {
			p := append(append([]string(nil), base...), dep)
			if err := deleteAt(out, p); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// mutation picks the replacement value for the addressed node. remove
// reports that the field is deleted instead of replaced.
func (m *mutator) mutation(it intent.Intent, node, parent *schema.Node) (value any, remove bool, err error) {
	switch it.Kind {
	case intent.RequiredFieldMissing:
		return nil, true, nil
	case intent.NullNotAllowed:
		return nil, false, nil
	case intent.TypeViolation:
		return conflictingValue(node), false, nil

	case intent.ArrayItemTypeViolation:
		items, err := m.synth.reg.Resolve(node.Items)
		if err != nil {
			return nil, false, err
		}
		arr, err := m.synth.arrayValue(node, 0)
		if err != nil {
			return nil, false, err
		}
		arr[0] = conflictingValue(items)
		return arr, false, nil

	case intent.UnionNoMatch:
		return unmatchableValue(m.synth.reg, node), false, nil
	case intent.DiscriminatorViolation:
		v, err := m.synth.variantValue(node, 0, 0)
		if err != nil {
			return nil, false, err
		}
		if obj, ok := v.(map[string]any); ok && node.Discriminator != nil {
			obj[node.Discriminator.PropertyName] = unknownVariantTag
		}
		return v, false, nil

	case intent.AdditionalPropertyNotAllowed:
		obj, err := m.withExtraProperties(node, 1)
		if err != nil {
			return nil, false, err
		}
		return obj, false, nil
	case intent.ObjectValueTypeViolation:
		obj, err := m.synth.objectValue(node, 0)
		if err != nil {
			return nil, false, err
		}
		ap, err := m.synth.reg.Resolve(node.AdditionalProperties)
		if err != nil {
			return nil, false, err
		}
		obj["invalid_entry"] = conflictingValue(ap)
		return obj, false, nil
	case intent.DependencyViolation:
		v, err := m.synth.value(node, 0)
		return v, false, err

	case intent.EnumMismatch:
		return invalidEnumValue, false, nil
	case intent.PatternMismatch:
		return invalidPatternText, false, nil
	case intent.FormatInvalid:
		return invalidFormatValue(node.Format), false, nil
	case intent.NotMultipleOf:
		aligned, ok := toFloat(m.synth.numberValue(node))
		if !ok {
			return nil, false, fmt.Errorf("multipleOf on a non-numeric node")
		}
		return offGrid(node, aligned), false, nil

	case intent.BoundaryMinMinusOne:
		return belowMinimum(node), false, nil
	case intent.BoundaryMaxPlusOne:
		return aboveMaximum(node), false, nil
	case intent.BoundaryMinLengthMinusOne:
		return strings.Repeat("x", *node.MinLength-1), false, nil
	case intent.BoundaryMaxLengthPlusOne:
		return strings.Repeat("x", *node.MaxLength+1), false, nil
	case intent.BoundaryMinItemsMinusOne:
		return m.arrayOfLen(node, *node.MinItems-1, m.goldenItem(it.Path))
	case intent.BoundaryMaxItemsPlusOne:
		return m.arrayOfLen(node, *node.MaxItems+1, m.goldenItem(it.Path))
	case intent.BoundaryMinPropertiesMinusOne:
		obj, err := m.synth.objectValue(node, 0)
		if err != nil {
			return nil, false, err
		}
		shrinkObject(obj, node, *node.MinProperties-1)
		return obj, false, nil
	case intent.BoundaryMaxPropertiesPlusOne:
		obj, err := m.withExtraProperties(node, 0)
		if err != nil {
			return nil, false, err
		}
		return obj, false, nil
	case intent.ArrayNotUnique:
		item, err := m.synth.value(node.Items, 0)
		if err != nil {
			return nil, false, err
		}
		n := 2
		if node.MinItems != nil && *node.MinItems > n {
			n = *node.MinItems
		}
		arr := make([]any, n)
		for i := range arr {
			arr[i] = item
		}
		return arr, false, nil

	case intent.EmptyString:
		return "", false, nil
	case intent.WhitespaceOnly:
		return "   ", false, nil
	case intent.ZeroValue:
		return numericValue(node, 0), false, nil
	case intent.NegativeValue:
		return numericValue(node, -1), false, nil
	case intent.EmptyCollection:
		return []any{}, false, nil

	case intent.SQLInjection:
		return sqlInjectionValue, false, nil
	case intent.XSSInjection:
		return xssInjectionValue, false, nil
	case intent.CommandInjection:
		return commandInjectionValue, false, nil
	case intent.PathTraversal:
		return pathTraversalValue, false, nil

	case intent.HappyPathVariant:
		v, err := m.synth.variantValue(node, it.Variant, 0)
		return v, false, err
	}
	return nil, false, fmt.Errorf("no body mutation for kind %s", it.Kind)
}

// arrayOfLen builds a count-boundary array. Its elements copy the golden
// array's first item so the case differs from the golden payload in count
// only; without one (parameter mutations) items are synthesized.
func (m *mutator) arrayOfLen(node *schema.Node, n int, template any) (any, bool, error) {
	if n < 0 {
		n = 0
	}
	arr := make([]any, 0, n)
	for i := 0; i < n; i++ {
		var item any
		var err error
		if template != nil {
			item, err = deepCopy(template)
		} else {
			item, err = m.synth.value(node.Items, 0)
		}
		if err != nil {
			return nil, false, err
		}
		if node.UniqueItems && i > 0 {
			item = distinguish(item, i)
		}
		arr = append(arr, item)
	}
	return arr, false, nil
}

// goldenItem returns the first element of the golden array the path
// addresses, or nil when the mutator carries no golden value.
func (m *mutator) goldenItem(path []string) any {
	cur := m.golden
	for _, stepName := range path {
		switch c := cur.(type) {
		case map[string]any:
			cur = c[stepName]
		case []any:
			if stepName != "[]" || len(c) == 0 {
				return nil
			}
			cur = c[0]
		default:
			return nil
		}
	}
	arr, ok := cur.([]any)
	if !ok || len(arr) == 0 {
		return nil
	}
	return arr[0]
}

// withExtraProperties synthesizes the object and pads it with undeclared
// keys: past maxProperties when one is declared, or by extra otherwise.
func (m *mutator) withExtraProperties(node *schema.Node, extra int) (map[string]any, error) {
	obj, err := m.synth.objectValue(node, 0)
	if err != nil {
		return nil, err
	}
	want := len(obj) + extra
	if node.MaxProperties != nil && *node.MaxProperties+1 > want {
		want = *node.MaxProperties + 1
	}
	for i := 0; len(obj) < want; i++ {
		key := fmt.Sprintf("unexpected_property_%d", i)
		if _, exists := obj[key]; !exists {
			obj[key] = "unexpected_value"
		}
	}
	return obj, nil
}

// shrinkObject removes properties, optional ones first, until the object
// has want keys. Removal order is deterministic.
func shrinkObject(obj map[string]any, node *schema.Node, want int) {
	if want < 0 {
		want = 0
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := node.IsRequired(keys[i]), node.IsRequired(keys[j])
		if ri != rj {
			return !ri
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if len(obj) <= want {
			return
		}
		delete(obj, k)
	}
}

// unmatchableValue picks a scalar no union variant accepts.
func unmatchableValue(reg *schema.Registry, node *schema.Node) any {
	acceptsString, acceptsNumber := false, false
	for _, v := range node.Variants {
		r, err := reg.Resolve(v)
		if err != nil || r == nil {
			continue
		}
		switch r.Kind {
		case schema.KindString:
			acceptsString = true
		case schema.KindInteger, schema.KindNumber:
			acceptsNumber = true
		}
	}
	switch {
	case !acceptsString:
		return invalidTypeValue
	case !acceptsNumber:
		return 12345
	default:
		return map[string]any{"__invalid__": invalidTypeValue}
	}
}

// nodeAt resolves the schema node the path addresses and its parent
// object node, following refs and descending array items on "[]".
func (m *mutator) nodeAt(path []string) (node, parent *schema.Node, err error) {
	node, err = m.synth.reg.Resolve(m.root)
	if err != nil {
		return nil, nil, err
	}
	for _, stepName := range path {
		if node.Kind == schema.KindUnion && len(node.Variants) > 0 {
			node, err = m.synth.reg.Resolve(node.Variants[0])
			if err != nil {
				return nil, nil, err
			}
		}
		if stepName == "[]" {
			if node.Kind != schema.KindArray {
				return nil, nil, fmt.Errorf("path step [] on non-array node")
			}
			parent = nil
			node, err = m.synth.reg.Resolve(node.Items)
			if err != nil {
				return nil, nil, err
			}
			continue
		}
		if node.Kind != schema.KindObject {
			return nil, nil, fmt.Errorf("path step %q on non-object node", stepName)
		}
		f := node.Property(stepName)
		if f == nil {
			return nil, nil, fmt.Errorf("schema has no property %q", stepName)
		}
		parent = node
		node, err = m.synth.reg.Resolve(f.Schema)
		if err != nil {
			return nil, nil, err
		}
	}
	return node, parent, nil
}

// setAt replaces the value the path addresses inside a golden copy. A
// trailing "[]" step replaces the array's first element.
func setAt(root any, path []string, value any) error {
	if path[len(path)-1] == "[]" {
		arr, err := arrayAt(root, path[:len(path)-1])
		if err != nil {
			return err
		}
		if len(arr) == 0 {
			return fmt.Errorf("cannot mutate an element of an empty array")
		}
		arr[0] = value
		return nil
	}
	parent, last, err := descend(root, path)
	if err != nil {
		return err
	}
	parent[last] = value
	return nil
}

// deleteAt removes the field the path addresses. A trailing "[]" step
// drops the array's first element.
func deleteAt(root any, path []string) error {
	if path[len(path)-1] == "[]" {
		if len(path) < 2 {
			return fmt.Errorf("cannot remove an element of the body root")
		}
		parent, last, err := descend(root, path[:len(path)-1])
		if err != nil {
			return err
		}
		arr, ok := parent[last].([]any)
		if !ok {
			return fmt.Errorf("field %q is %T, want array", last, parent[last])
		}
		if len(arr) > 0 {
			parent[last] = arr[1:]
		}
		return nil
	}
	parent, last, err := descend(root, path)
	if err != nil {
		return err
	}
	delete(parent, last)
	return nil
}

// arrayAt walks to the []any the path addresses. Unlike descend it keeps
// the array itself instead of lifting its first element.
func arrayAt(root any, path []string) ([]any, error) {
	cur := root
	for i := 0; i < len(path); i++ {
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[path[i]]
			if !ok {
				return nil, fmt.Errorf("payload has no field %q", strings.Join(path[:i+1], "."))
			}
			cur = next
		case []any:
			if path[i] != "[]" {
				return nil, fmt.Errorf("expected [] step at %q", path[i])
			}
			if len(c) == 0 {
				return nil, fmt.Errorf("cannot descend into empty array at %q", strings.Join(path[:i], "."))
			}
			cur = c[0]
		default:
			return nil, fmt.Errorf("cannot descend into %T at %q", cur, path[i])
		}
	}
	arr, ok := cur.([]any)
	if !ok {
		return nil, fmt.Errorf("path addresses %T, want array", cur)
	}
	return arr, nil
}

// descend walks to the object holding the path's final step. "[]" steps
// descend into the first array element, the one synthesis always emits.
func descend(root any, path []string) (map[string]any, string, error) {
	if len(path) == 0 {
		return nil, "", fmt.Errorf("empty mutation path")
	}
	cur := root
	for i := 0; i < len(path)-1; i++ {
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[path[i]]
			if !ok {
				return nil, "", fmt.Errorf("payload has no field %q", strings.Join(path[:i+1], "."))
			}
			cur = next
		case []any:
			if path[i] != "[]" {
				return nil, "", fmt.Errorf("expected [] step at %q", path[i])
			}
			if len(c) == 0 {
				return nil, "", fmt.Errorf("cannot descend into empty array at %q", strings.Join(path[:i], "."))
			}
			cur = c[0]
		default:
			return nil, "", fmt.Errorf("cannot descend into %T at %q", cur, path[i])
		}
	}
	if arr, ok := cur.([]any); ok {
		if len(arr) == 0 {
			return nil, "", fmt.Errorf("cannot descend into empty array")
		}
		cur = arr[0]
	}
	obj, ok := cur.(map[string]any)
	if !ok {
		return nil, "", fmt.Errorf("mutation path ends in %T, want object", cur)
	}
	return obj, path[len(path)-1], nil
}

func deepCopy(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return copystructure.Copy(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
