package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/schema"
	"github.com/specforge/specforge/pkg/utils"
)

// normalizeOpenAPI loads an OpenAPI 3.x document and converts every path
// operation into IR. Server-fault responses (5xx) are dropped: they
// describe the server, not the contract under test.
func normalizeOpenAPI(raw []byte, name string) (*Result, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize openapi: %w", err)
	}

	if name == "" && doc.Info != nil {
		name = doc.Info.Title
	}
	if name == "" {
		name = "openapi"
	}

	res := &Result{}
	conv := &openapiConverter{doc: doc, merging: map[*openapi3.Schema]bool{}}

	var types []schema.TypeDefinition
	if doc.Components != nil {
		names := make([]string, 0, len(doc.Components.Schemas))
		for n := range doc.Components.Schemas {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			node, err := conv.convert(doc.Components.Schemas[n])
			if err != nil {
				res.Skipped = append(res.Skipped, &Error{Source: ir.SourceOpenAPI, Fragment: n, Reason: "unconvertible component schema", Err: err})
				continue
			}
			types = append(types, schema.TypeDefinition{Name: n, Schema: node})
		}
	}

	var ops []ir.Operation
	if doc.Paths != nil {
		pathKeys := make([]string, 0, doc.Paths.Len())
		for p := range doc.Paths.Map() {
			pathKeys = append(pathKeys, p)
		}
		sort.Strings(pathKeys)
		for _, p := range pathKeys {
			item := doc.Paths.Value(p)
			methods := make([]string, 0, len(item.Operations()))
			for m := range item.Operations() {
				methods = append(methods, m)
			}
			sort.Strings(methods)
			for _, m := range methods {
				op, err := conv.operation(p, m, item, item.Operations()[m])
				if err != nil {
					res.Skipped = append(res.Skipped, &Error{Source: ir.SourceOpenAPI, Fragment: m + " " + p, Reason: "unconvertible operation", Err: err})
					continue
				}
				ops = append(ops, *op)
			}
		}
	}

	src := ir.Provenance{Kind: ir.SourceOpenAPI, Name: name, Hash: ir.Fingerprint(raw)}
	irDoc, err := ir.Build(src, ops, types)
	if err != nil {
		return nil, err
	}
	res.Doc = irDoc
	return res, nil
}

type openapiConverter struct {
	doc *openapi3.T
	// merging guards allOf expansion against self-referential chains;
	// plain refs are left unexpanded so recursive types are fine.
	merging map[*openapi3.Schema]bool
}

func (c *openapiConverter) operation(path, method string, item *openapi3.PathItem, src *openapi3.Operation) (*ir.Operation, error) {
	op := &ir.Operation{
		ID:          src.OperationID,
		Method:      method,
		Path:        path,
		Summary:     src.Summary,
		Description: src.Description,
		Deprecated:  src.Deprecated,
	}
	if op.ID == "" {
		op.ID = deriveOperationID(method, path)
	}

	all := append(append(openapi3.Parameters{}, item.Parameters...), src.Parameters...)
	for _, pr := range all {
		if pr == nil || pr.Value == nil {
			continue
		}
		p := pr.Value
		var loc ir.Location
		switch p.In {
		case openapi3.ParameterInPath:
			loc = ir.LocationPath
		case openapi3.ParameterInQuery:
			loc = ir.LocationQuery
		case openapi3.ParameterInHeader:
			loc = ir.LocationHeader
		default:
			// cookie parameters carry no test surface here
			continue
		}
		node, err := c.convert(p.Schema)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		op.Parameters = append(op.Parameters, ir.Parameter{
			Name:        p.Name,
			Location:    loc,
			Required:    p.Required || loc == ir.LocationPath,
			Schema:      node,
			Description: p.Description,
		})
	}

	if src.RequestBody != nil && src.RequestBody.Value != nil {
		ct, media := pickJSONContent(src.RequestBody.Value.Content)
		if media != nil {
			node, err := c.convert(media.Schema)
			if err != nil {
				return nil, fmt.Errorf("request body: %w", err)
			}
			op.Body = &ir.Body{
				ContentType: ct,
				Required:    src.RequestBody.Value.Required,
				Schema:      node,
			}
		}
	}

	if src.Responses != nil {
		codes := make([]string, 0, src.Responses.Len())
		for code := range src.Responses.Map() {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			status, err := strconv.Atoi(code)
			if err != nil || status >= 500 {
				continue
			}
			rr := src.Responses.Value(code)
			if rr == nil || rr.Value == nil {
				continue
			}
			out := ir.Output{Status: status}
			if rr.Value.Description != nil {
				out.Description = *rr.Value.Description
			}
			if _, media := pickJSONContent(rr.Value.Content); media != nil {
				node, err := c.convert(media.Schema)
				if err != nil {
					return nil, fmt.Errorf("response %d: %w", status, err)
				}
				out.Schema = node
			}
			op.Outputs = append(op.Outputs, out)
		}
	}

	return op, nil
}

// convert maps an OpenAPI schema to a canonical node, preserving every
// constraint attribute verbatim. References stay symbolic: the node points
// at the component name and resolution happens against the type arena.
func (c *openapiConverter) convert(sr *openapi3.SchemaRef) (*schema.Node, error) {
	if sr == nil {
		return &schema.Node{Kind: schema.KindUnknown}, nil
	}
	if sr.Ref != "" {
		if name := refName(sr.Ref); name != "" {
			return &schema.Node{Kind: schema.KindRef, Ref: name}, nil
		}
		return nil, fmt.Errorf("unsupported reference %q", sr.Ref)
	}
	if sr.Value == nil {
		return &schema.Node{Kind: schema.KindUnknown}, nil
	}
	s := sr.Value

	if len(s.AllOf) > 0 {
		return c.mergeAllOf(s)
	}
	if len(s.OneOf) > 0 {
		return c.union(s, s.OneOf, true)
	}
	if len(s.AnyOf) > 0 {
		return c.union(s, s.AnyOf, false)
	}

	if len(s.Enum) > 0 {
		return &schema.Node{
			Kind:        schema.KindEnum,
			EnumValues:  s.Enum,
			EnumBase:    enumBaseKind(s),
			Nullable:    s.Nullable,
			Annotations: annotations(s),
		}, nil
	}

	node := &schema.Node{
		Kind:        schema.KindUnknown,
		Nullable:    s.Nullable,
		Format:      s.Format,
		Annotations: annotations(s),
	}
	if s.Type == nil {
		return node, nil
	}
	switch {
	case s.Type.Is(openapi3.TypeString):
		node.Kind = schema.KindString
		if s.MinLength > 0 {
			node.MinLength = intPtr(int(s.MinLength))
		}
		if s.MaxLength != nil {
			node.MaxLength = intPtr(int(*s.MaxLength))
		}
		node.Pattern = s.Pattern

	case s.Type.Is(openapi3.TypeInteger), s.Type.Is(openapi3.TypeNumber):
		node.Kind = schema.KindNumber
		if s.Type.Is(openapi3.TypeInteger) {
			node.Kind = schema.KindInteger
		}
		node.Minimum = s.Min
		node.Maximum = s.Max
		node.ExclusiveMinimum = s.ExclusiveMin
		node.ExclusiveMaximum = s.ExclusiveMax
		node.MultipleOf = s.MultipleOf

	case s.Type.Is(openapi3.TypeBoolean):
		node.Kind = schema.KindBoolean

	case s.Type.Is(openapi3.TypeNull):
		node.Kind = schema.KindNull

	case s.Type.Is(openapi3.TypeArray):
		node.Kind = schema.KindArray
		items, err := c.convert(s.Items)
		if err != nil {
			return nil, err
		}
		node.Items = items
		if s.MinItems > 0 {
			node.MinItems = intPtr(int(s.MinItems))
		}
		if s.MaxItems != nil {
			node.MaxItems = intPtr(int(*s.MaxItems))
		}
		node.UniqueItems = s.UniqueItems

	case s.Type.Is(openapi3.TypeObject):
		node.Kind = schema.KindObject
		obj, err := c.object(s)
		if err != nil {
			return nil, err
		}
		node.Properties = obj.Properties
		node.Required = obj.Required
		node.AdditionalProperties = obj.AdditionalProperties
		node.AdditionalForbidden = obj.AdditionalForbidden
		node.MinProperties = obj.MinProperties
		node.MaxProperties = obj.MaxProperties
	}

	if s.Discriminator != nil {
		node.Discriminator = &schema.Discriminator{PropertyName: s.Discriminator.PropertyName, Mapping: s.Discriminator.Mapping}
	}
	return node, nil
}

func (c *openapiConverter) object(s *openapi3.Schema) (*schema.Node, error) {
	node := &schema.Node{Kind: schema.KindObject}

	names := make([]string, 0, len(s.Properties))
	for n := range s.Properties {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fieldNode, err := c.convert(s.Properties[n])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", n, err)
		}
		node.Properties = append(node.Properties, schema.Field{
			Name:     n,
			Schema:   fieldNode,
			Required: contains(s.Required, n),
		})
	}
	node.Required = append([]string(nil), s.Required...)

	if s.AdditionalProperties.Has != nil && !*s.AdditionalProperties.Has {
		node.AdditionalForbidden = true
	}
	if s.AdditionalProperties.Schema != nil {
		ap, err := c.convert(s.AdditionalProperties.Schema)
		if err != nil {
			return nil, err
		}
		node.AdditionalProperties = ap
	}
	if s.MinProps > 0 {
		node.MinProperties = intPtr(int(s.MinProps))
	}
	if s.MaxProps != nil {
		node.MaxProperties = intPtr(int(*s.MaxProps))
	}
	return node, nil
}

// union collapses "one real variant plus null" into a nullable node, the
// common OpenAPI 3.0 idiom, and keeps everything else as a union node.
func (c *openapiConverter) union(s *openapi3.Schema, subs openapi3.SchemaRefs, exclusive bool) (*schema.Node, error) {
	var concrete openapi3.SchemaRefs
	sawNull := false
	for _, sub := range subs {
		if sub != nil && sub.Ref == "" && sub.Value != nil && sub.Value.Type != nil && sub.Value.Type.Is(openapi3.TypeNull) {
			sawNull = true
			continue
		}
		concrete = append(concrete, sub)
	}
	if sawNull && len(concrete) == 1 {
		node, err := c.convert(concrete[0])
		if err != nil {
			return nil, err
		}
		node.Nullable = true
		return node, nil
	}

	node := &schema.Node{
		Kind:        schema.KindUnion,
		Exclusive:   exclusive,
		Nullable:    s.Nullable || sawNull,
		Annotations: annotations(s),
	}
	for _, sub := range concrete {
		v, err := c.convert(sub)
		if err != nil {
			return nil, err
		}
		node.Variants = append(node.Variants, v)
	}
	if s.Discriminator != nil {
		node.Discriminator = &schema.Discriminator{PropertyName: s.Discriminator.PropertyName, Mapping: s.Discriminator.Mapping}
	}
	return node, nil
}

// mergeAllOf flattens an allOf composition into a single node: properties
// concatenate, required lists union, scalar constraints take the last
// writer. Referenced subschemas are expanded in place, which is the one
// spot where an inline cycle could loop, hence the merging guard.
func (c *openapiConverter) mergeAllOf(s *openapi3.Schema) (*schema.Node, error) {
	if c.merging[s] {
		return nil, fmt.Errorf("cyclic allOf composition")
	}
	c.merging[s] = true
	defer delete(c.merging, s)

	merged := &schema.Node{Kind: schema.KindObject, Nullable: s.Nullable, Annotations: annotations(s)}
	for _, sub := range s.AllOf {
		resolved := sub
		if sub.Ref != "" {
			name := refName(sub.Ref)
			if c.doc.Components == nil || c.doc.Components.Schemas[name] == nil {
				return nil, fmt.Errorf("allOf references unknown schema %q", sub.Ref)
			}
			resolved = c.doc.Components.Schemas[name]
		}
		part, err := c.convert(&openapi3.SchemaRef{Value: resolved.Value})
		if err != nil {
			return nil, err
		}
		mergeInto(merged, part)
	}
	if s.Discriminator != nil {
		merged.Discriminator = &schema.Discriminator{PropertyName: s.Discriminator.PropertyName, Mapping: s.Discriminator.Mapping}
	}
	return merged, nil
}

// mergeInto applies src on top of dst, last writer wins for scalars.
func mergeInto(dst, src *schema.Node) {
	if src.Kind != schema.KindObject && src.Kind != schema.KindUnknown {
		dst.Kind = src.Kind
	}
	for _, f := range src.Properties {
		if existing := dst.Property(f.Name); existing != nil {
			existing.Schema = f.Schema
			existing.Required = existing.Required || f.Required
			continue
		}
		dst.Properties = append(dst.Properties, f)
	}
	for _, r := range src.Required {
		if !contains(dst.Required, r) {
			dst.Required = append(dst.Required, r)
		}
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if src.Pattern != "" {
		dst.Pattern = src.Pattern
	}
	if src.MinLength != nil {
		dst.MinLength = src.MinLength
	}
	if src.MaxLength != nil {
		dst.MaxLength = src.MaxLength
	}
	if src.Minimum != nil {
		dst.Minimum = src.Minimum
		dst.ExclusiveMinimum = src.ExclusiveMinimum
	}
	if src.Maximum != nil {
		dst.Maximum = src.Maximum
		dst.ExclusiveMaximum = src.ExclusiveMaximum
	}
	if src.MultipleOf != nil {
		dst.MultipleOf = src.MultipleOf
	}
	if src.Items != nil {
		dst.Items = src.Items
	}
	if src.MinItems != nil {
		dst.MinItems = src.MinItems
	}
	if src.MaxItems != nil {
		dst.MaxItems = src.MaxItems
	}
	if src.UniqueItems {
		dst.UniqueItems = true
	}
	if len(src.EnumValues) > 0 {
		dst.EnumValues = src.EnumValues
		dst.EnumBase = src.EnumBase
	}
	if src.AdditionalForbidden {
		dst.AdditionalForbidden = true
	}
	if src.AdditionalProperties != nil {
		dst.AdditionalProperties = src.AdditionalProperties
	}
	if src.MinProperties != nil {
		dst.MinProperties = src.MinProperties
	}
	if src.MaxProperties != nil {
		dst.MaxProperties = src.MaxProperties
	}
	if src.Nullable {
		dst.Nullable = true
	}
}

func annotations(s *openapi3.Schema) schema.Annotations {
	return schema.Annotations{
		Title:       s.Title,
		Description: s.Description,
		Deprecated:  s.Deprecated,
		ReadOnly:    s.ReadOnly,
		WriteOnly:   s.WriteOnly,
		Default:     s.Default,
		Example:     s.Example,
	}
}

func enumBaseKind(s *openapi3.Schema) schema.Kind {
	if s.Type != nil {
		switch {
		case s.Type.Is(openapi3.TypeString):
			return schema.KindString
		case s.Type.Is(openapi3.TypeInteger):
			return schema.KindInteger
		case s.Type.Is(openapi3.TypeNumber):
			return schema.KindNumber
		case s.Type.Is(openapi3.TypeBoolean):
			return schema.KindBoolean
		}
	}
	if len(s.Enum) > 0 {
		switch s.Enum[0].(type) {
		case string:
			return schema.KindString
		case int, int32, int64:
			return schema.KindInteger
		case float32, float64:
			return schema.KindNumber
		case bool:
			return schema.KindBoolean
		}
	}
	return schema.KindUnknown
}

// pickJSONContent prefers application/json, falling back to the first
// content type in sorted order.
func pickJSONContent(content openapi3.Content) (string, *openapi3.MediaType) {
	if content == nil {
		return "", nil
	}
	if mt, ok := content["application/json"]; ok {
		return "application/json", mt
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasSuffix(k, "+json") || strings.HasPrefix(k, "application/json") {
			return k, content[k]
		}
	}
	if len(keys) > 0 {
		return keys[0], content[keys[0]]
	}
	return "", nil
}

func refName(ref string) string {
	if strings.HasPrefix(ref, "#/components/schemas/") {
		return strings.TrimPrefix(ref, "#/components/schemas/")
	}
	parts := strings.Split(ref, "/")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return ""
}

// deriveOperationID builds a stable camelCase id for operations that do
// not declare one, e.g. GET /orders/{order_id} -> getOrdersOrderId.
func deriveOperationID(method, path string) string {
	return utils.ToCamelCase(strings.ToLower(method) + " " + strings.NewReplacer("{", " ", "}", " ", "/", " ").Replace(path))
}

func intPtr(v int) *int { return &v }

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
