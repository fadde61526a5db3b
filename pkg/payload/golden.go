package payload

import (
	"fmt"
	"math"
	"strings"

	"github.com/specforge/specforge/pkg/schema"
)

// synthesizer builds the golden payload: the one schema-valid value every
// mutation starts from. Synthesis is deterministic; the same schema always
// yields the same value.
type synthesizer struct {
	reg      *schema.Registry
	maxDepth int
}

// value synthesizes a valid instance of node. Unions instantiate their
// first variant; variantValue picks another one explicitly.
func (s *synthesizer) value(node *schema.Node, depth int) (any, error) {
	if node == nil {
		return nil, nil
	}
	node, err := s.reg.Resolve(node)
	if err != nil {
		return nil, err
	}
	if depth > s.maxDepth {
		return s.truncated(node), nil
	}

	if ex := node.Annotations.Example; ex != nil {
		return ex, nil
	}
	if def := node.Annotations.Default; def != nil {
		return def, nil
	}

	switch node.Kind {
	case schema.KindString:
		return s.stringValue(node), nil
	case schema.KindInteger, schema.KindNumber:
		return s.numberValue(node), nil
	case schema.KindBoolean:
		return true, nil
	case schema.KindNull:
		return nil, nil
	case schema.KindEnum:
		if len(node.EnumValues) == 0 {
			return nil, fmt.Errorf("enum with no values")
		}
		return node.EnumValues[0], nil
	case schema.KindObject:
		return s.objectValue(node, depth)
	case schema.KindArray:
		return s.arrayValue(node, depth)
	case schema.KindUnion:
		return s.variantValue(node, 0, depth)
	}
	return nil, nil
}

// variantValue instantiates the union's i-th variant and, when the union
// is discriminated, stamps the variant's mapped tag on it.
func (s *synthesizer) variantValue(node *schema.Node, i, depth int) (any, error) {
	if i < 0 || i >= len(node.Variants) {
		return nil, fmt.Errorf("union has no variant %d", i)
	}
	v, err := s.value(node.Variants[i], depth+1)
	if err != nil {
		return nil, err
	}
	if node.Discriminator != nil {
		if obj, ok := v.(map[string]any); ok {
			if _, set := obj[node.Discriminator.PropertyName]; !set {
				obj[node.Discriminator.PropertyName] = s.discriminatorTag(node, i)
			}
		}
	}
	return v, nil
}

func (s *synthesizer) discriminatorTag(node *schema.Node, i int) string {
	variant, err := s.reg.Resolve(node.Variants[i])
	if err == nil && variant != nil {
		// a variant that pins the discriminator by enum knows its own tag
		for _, f := range variant.Properties {
			if f.Name != node.Discriminator.PropertyName {
				continue
			}
			fs, err := s.reg.Resolve(f.Schema)
			if err == nil && fs.Kind == schema.KindEnum && len(fs.EnumValues) > 0 {
				if tag, ok := fs.EnumValues[0].(string); ok {
					return tag
				}
			}
		}
	}
	ref := node.Variants[i].Ref
	for tag, target := range node.Discriminator.Mapping {
		if target == ref {
			return tag
		}
	}
	return fmt.Sprintf("variant_%d", i)
}

func (s *synthesizer) stringValue(node *schema.Node) string {
	v := goldenString
	switch node.Format {
	case "uuid":
		v = goldenUUID
	case "date-time":
		v = goldenDateTime
	case "date":
		v = goldenDate
	case "email":
		v = goldenEmail
	case "uri", "url":
		v = goldenURI
	}

	// declared lengths win over the format literal when the schema
	// contradicts itself
	if node.MaxLength != nil && len(v) > *node.MaxLength {
		v = v[:*node.MaxLength]
	}
	if node.MinLength != nil && len(v) < *node.MinLength {
		v += strings.Repeat("x", *node.MinLength-len(v))
	}
	return v
}

func (s *synthesizer) numberValue(node *schema.Node) any {
	v := 1.0
	if node.Minimum != nil {
		v = *node.Minimum
		if node.ExclusiveMinimum {
			v += step(node)
		}
	}
	if node.MultipleOf != nil {
		m := *node.MultipleOf
		v = math.Ceil(v/m) * m
	}
	if node.Maximum != nil && v > *node.Maximum {
		v = *node.Maximum
		if node.ExclusiveMaximum {
			v -= step(node)
		}
	}
	return numericValue(node, v)
}

func (s *synthesizer) objectValue(node *schema.Node, depth int) (map[string]any, error) {
	obj := make(map[string]any, len(node.Properties))
	for _, f := range node.Properties {
		fv, err := s.value(f.Schema, depth+1)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", f.Name, err)
		}
		obj[f.Name] = fv
	}
	// dependentRequired triggers are already present (every property is),
	// so their dependents are too; nothing extra to satisfy.
	if node.MinProperties != nil {
		for i := 0; len(obj) < *node.MinProperties; i++ {
			if node.AdditionalForbidden {
				break
			}
			obj[fmt.Sprintf("padding_property_%d", i)] = goldenString
		}
	}
	return obj, nil
}

func (s *synthesizer) arrayValue(node *schema.Node, depth int) ([]any, error) {
	count := 1
	if node.MinItems != nil && *node.MinItems > count {
		count = *node.MinItems
	}
	if node.MaxItems != nil && *node.MaxItems < count {
		count = *node.MaxItems
	}

	items := make([]any, 0, count)
	for i := 0; i < count; i++ {
		item, err := s.value(node.Items, depth+1)
		if err != nil {
			return nil, err
		}
		if node.UniqueItems && i > 0 {
			item = distinguish(item, i)
		}
		items = append(items, item)
	}
	return items, nil
}

// distinguish perturbs a synthesized item so repeated elements satisfy
// uniqueItems.
func distinguish(item any, i int) any {
	switch v := item.(type) {
	case string:
		return fmt.Sprintf("%s_%d", v, i)
	case int:
		return v + i
	case float64:
		return v + float64(i)
	}
	return item
}

// truncated caps recursion on self-referential types with the emptiest
// valid value.
func (s *synthesizer) truncated(node *schema.Node) any {
	switch node.Kind {
	case schema.KindObject:
		return map[string]any{}
	case schema.KindArray:
		return []any{}
	}
	return nil
}
