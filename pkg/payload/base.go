package payload

import (
	"math"

	"github.com/specforge/specforge/pkg/schema"
)

// applyBase merges a caller-supplied base payload into a golden value.
// The base is sanitized against the schema on the way in: unknown
// properties are dropped, type-mismatched values lose to the golden
// value, nested objects merge field by field. Neither input is mutated.
func (s *synthesizer) applyBase(node *schema.Node, golden, base any) (any, error) {
	if base == nil {
		return deepCopy(golden)
	}
	node, err := s.reg.Resolve(node)
	if err != nil {
		return nil, err
	}

	switch node.Kind {
	case schema.KindObject:
		obj, ok := base.(map[string]any)
		if !ok {
			return deepCopy(golden)
		}
		out, ok := cloneObject(golden)
		if !ok {
			out = map[string]any{}
		}
		for name, bv := range obj {
			field := node.Property(name)
			if field == nil {
				if node.AdditionalProperties != nil {
					merged, err := s.applyBase(node.AdditionalProperties, nil, bv)
					if err != nil {
						return nil, err
					}
					if merged != nil {
						out[name] = merged
					}
					continue
				}
				// undeclared property on a closed or typed object: drop it
				if node.AdditionalForbidden || len(node.Properties) > 0 {
					continue
				}
				// free-form objects take overrides verbatim
				copied, err := deepCopy(bv)
				if err != nil {
					return nil, err
				}
				out[name] = copied
				continue
			}
			merged, err := s.applyBase(field.Schema, out[name], bv)
			if err != nil {
				return nil, err
			}
			out[name] = merged
		}
		return out, nil

	case schema.KindArray:
		items, ok := base.([]any)
		if !ok {
			return deepCopy(golden)
		}
		// the golden first element seeds holes the base leaves untyped
		var seed any
		if g, ok := golden.([]any); ok && len(g) > 0 {
			seed = g[0]
		}
		out := make([]any, 0, len(items))
		for _, bv := range items {
			merged, err := s.applyBase(node.Items, seed, bv)
			if err != nil {
				return nil, err
			}
			out = append(out, merged)
		}
		return out, nil

	case schema.KindUnion:
		if len(node.Variants) > 0 {
			return s.applyBase(node.Variants[0], golden, base)
		}
		return deepCopy(golden)

	default:
		if scalarCompatible(node, base) {
			return deepCopy(base)
		}
		return deepCopy(golden)
	}
}

func cloneObject(v any) (map[string]any, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	copied, err := deepCopy(obj)
	if err != nil {
		return nil, false
	}
	out, ok := copied.(map[string]any)
	return out, ok
}

// scalarCompatible reports whether a base value can stand in for the
// node's JSON type. Enum overrides must be declared values.
func scalarCompatible(node *schema.Node, v any) bool {
	switch node.Kind {
	case schema.KindString:
		_, ok := v.(string)
		return ok
	case schema.KindBoolean:
		_, ok := v.(bool)
		return ok
	case schema.KindInteger:
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f)
	case schema.KindNumber:
		_, ok := toFloat(v)
		return ok
	case schema.KindEnum:
		for _, ev := range node.EnumValues {
			if ev == v {
				return true
			}
		}
		return false
	case schema.KindNull:
		return v == nil
	}
	return false
}
