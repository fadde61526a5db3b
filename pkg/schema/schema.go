// Package schema defines the canonical schema model shared by every source
// frontend. All normalizers produce these nodes, and every downstream stage
// (intent rules, payload mutation, fixture planning) consumes them, so a rule
// written once applies to OpenAPI documents and function signatures alike.
package schema

// Kind identifies the shape of a schema node.
type Kind string

const (
	KindUnknown Kind = "unknown"
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindEnum    Kind = "enum"
	KindUnion   Kind = "union"
	KindRef     Kind = "ref"
)

// Node models one schema shape in a source-agnostic way. Constraint fields
// are only meaningful for the kinds they belong to; normalizers call
// StripMismatched after conversion so downstream stages never see a
// maxLength on an integer or a multipleOf on a string.
type Node struct {
	Kind     Kind   `json:"kind"`
	Nullable bool   `json:"nullable,omitempty"`
	Format   string `json:"format,omitempty"`

	// String
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`

	// Numeric
	Minimum          *float64 `json:"minimum,omitempty"`
	Maximum          *float64 `json:"maximum,omitempty"`
	ExclusiveMinimum bool     `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum bool     `json:"exclusiveMaximum,omitempty"`
	MultipleOf       *float64 `json:"multipleOf,omitempty"`

	// Object
	Properties           []Field             `json:"properties,omitempty"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties *Node               `json:"additionalProperties,omitempty"`
	AdditionalForbidden  bool                `json:"additionalForbidden,omitempty"`
	MinProperties        *int                `json:"minProperties,omitempty"`
	MaxProperties        *int                `json:"maxProperties,omitempty"`
	DependentRequired    map[string][]string `json:"dependentRequired,omitempty"`

	// Array
	Items       *Node `json:"items,omitempty"`
	MinItems    *int  `json:"minItems,omitempty"`
	MaxItems    *int  `json:"maxItems,omitempty"`
	UniqueItems bool  `json:"uniqueItems,omitempty"`

	// Enum
	EnumValues []any `json:"enum,omitempty"`
	EnumBase   Kind  `json:"enumBase,omitempty"`

	// Union
	Variants      []*Node        `json:"variants,omitempty"`
	Exclusive     bool           `json:"exclusive,omitempty"` // oneOf semantics; false means anyOf
	Discriminator *Discriminator `json:"discriminator,omitempty"`

	// Ref (name of a TypeDefinition)
	Ref string `json:"ref,omitempty"`

	Annotations Annotations `json:"annotations,omitzero"`
}

// Field is a named property of an object node.
type Field struct {
	Name     string `json:"name"`
	Schema   *Node  `json:"schema"`
	Required bool   `json:"required,omitempty"`
}

// Discriminator carries polymorphism routing for tagged unions.
type Discriminator struct {
	PropertyName string            `json:"propertyName"`
	Mapping      map[string]string `json:"mapping,omitempty"`
}

// Annotations captures non-structural metadata preserved from the source.
type Annotations struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Deprecated  bool   `json:"deprecated,omitempty"`
	ReadOnly    bool   `json:"readOnly,omitempty"`
	WriteOnly   bool   `json:"writeOnly,omitempty"`
	Default     any    `json:"default,omitempty"`
	Example     any    `json:"example,omitempty"`
}

// TypeDefinition is a named schema in the document's type arena.
type TypeDefinition struct {
	Name   string `json:"name"`
	Schema *Node  `json:"schema"`
}

// IsNumeric reports whether the node holds an integer or number value.
func (n *Node) IsNumeric() bool {
	return n.Kind == KindInteger || n.Kind == KindNumber
}

// Property returns the field with the given name, or nil.
func (n *Node) Property(name string) *Field {
	for i := range n.Properties {
		if n.Properties[i].Name == name {
			return &n.Properties[i]
		}
	}
	return nil
}

// IsRequired reports whether name appears in the node's required list.
func (n *Node) IsRequired(name string) bool {
	for _, r := range n.Required {
		if r == name {
			return true
		}
	}
	return false
}

// StripMismatched removes constraint attributes that do not apply to the
// node's declared kind, recursing into properties, items and variants.
// A frontend may hand us a schema where a copy-pasted maxLength landed on
// an integer; keeping it would make boundary rules fire nonsense intents.
func (n *Node) StripMismatched() {
	if n == nil {
		return
	}
	if n.Kind != KindString {
		n.MinLength = nil
		n.MaxLength = nil
		n.Pattern = ""
	}
	if !n.IsNumeric() {
		n.Minimum = nil
		n.Maximum = nil
		n.ExclusiveMinimum = false
		n.ExclusiveMaximum = false
		n.MultipleOf = nil
	}
	if n.Kind != KindObject {
		n.Properties = nil
		n.Required = nil
		n.AdditionalProperties = nil
		n.AdditionalForbidden = false
		n.MinProperties = nil
		n.MaxProperties = nil
		n.DependentRequired = nil
	}
	if n.Kind != KindArray {
		n.Items = nil
		n.MinItems = nil
		n.MaxItems = nil
		n.UniqueItems = false
	}
	if n.Kind != KindEnum {
		n.EnumValues = nil
		n.EnumBase = ""
	}
	if n.Kind != KindUnion {
		n.Variants = nil
		n.Exclusive = false
	}
	if n.Kind != KindRef {
		n.Ref = ""
	}
	for i := range n.Properties {
		n.Properties[i].Schema.StripMismatched()
	}
	n.Items.StripMismatched()
	n.AdditionalProperties.StripMismatched()
	for _, v := range n.Variants {
		v.StripMismatched()
	}
}
