// Package ir holds the intermediate representation every frontend targets.
// A Document is the single currency between normalization and generation:
// once built and validated, downstream stages may assume it is well-formed.
package ir

import (
	"github.com/specforge/specforge/pkg/schema"
)

// Version is stamped on every document this build produces.
const Version = "1.0"

// SourceKind identifies which frontend produced a document.
type SourceKind string

const (
	SourceOpenAPI    SourceKind = "openapi"
	SourceGo         SourceKind = "go"
	SourceTypeScript SourceKind = "typescript"
)

// Location is where a parameter travels.
type Location string

const (
	LocationPath   Location = "path"
	LocationQuery  Location = "query"
	LocationHeader Location = "header"
)

// Provenance ties a document back to the exact input bytes it came from.
// Hash is "sha256:<hex>" over the raw input; the same input always yields
// the same provenance.
type Provenance struct {
	Kind SourceKind `json:"type"`
	Name string     `json:"name"`
	Hash string     `json:"hash"`
}

// Parameter is a path, query or header input of an operation.
type Parameter struct {
	Name        string       `json:"name"`
	Location    Location     `json:"location"`
	Required    bool         `json:"required,omitempty"`
	Schema      *schema.Node `json:"schema"`
	Description string       `json:"description,omitempty"`
}

// Body is the structured request payload of an operation.
type Body struct {
	ContentType string       `json:"contentType,omitempty"`
	Required    bool         `json:"required,omitempty"`
	Schema      *schema.Node `json:"schema"`
}

// Output is one declared outcome of an operation. Server-fault statuses
// (5xx) never appear here; they describe the server, not the contract.
type Output struct {
	Status      int          `json:"status"`
	Description string       `json:"description,omitempty"`
	Schema      *schema.Node `json:"schema,omitempty"`
}

// Evidence records what a signature source tells us about runtime
// validation. Rule engines use it to gate intents that only make sense
// when the implementation actually checks its inputs.
type Evidence struct {
	Doc         string `json:"doc,omitempty"`
	TypeChecked bool   `json:"typeChecked,omitempty"`
}

// Operation is a single callable unit: an endpoint+method pair for HTTP
// sources, an exported function for signature sources.
type Operation struct {
	ID          string      `json:"id"`
	Method      string      `json:"method"`
	Path        string      `json:"path"`
	Summary     string      `json:"summary,omitempty"`
	Description string      `json:"description,omitempty"`
	Deprecated  bool        `json:"deprecated,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	Body        *Body       `json:"body,omitempty"`
	Outputs     []Output    `json:"outputs"`
	Evidence    Evidence    `json:"evidence,omitzero"`
}

// Document is a complete normalized interface description.
type Document struct {
	Version    string                  `json:"version"`
	Source     Provenance              `json:"source"`
	Operations []Operation             `json:"operations"`
	Types      []schema.TypeDefinition `json:"types"`
}

// Params returns the operation's parameters at the given location, in
// declaration order.
func (o *Operation) Params(loc Location) []Parameter {
	var out []Parameter
	for _, p := range o.Parameters {
		if p.Location == loc {
			out = append(out, p)
		}
	}
	return out
}

// SuccessStatus returns the first declared 2xx or 3xx status, or 200 when
// the source declares none.
func (o *Operation) SuccessStatus() int {
	for _, out := range o.Outputs {
		if out.Status >= 200 && out.Status < 400 {
			return out.Status
		}
	}
	return 200
}

// ErrorStatus returns the first declared 4xx status, or 422 when the
// source declares none.
func (o *Operation) ErrorStatus() int {
	for _, out := range o.Outputs {
		if out.Status >= 400 && out.Status < 500 {
			return out.Status
		}
	}
	return 422
}

// HasDeclaredStatus reports whether the operation declares the exact status.
func (o *Operation) HasDeclaredStatus(status int) bool {
	for _, out := range o.Outputs {
		if out.Status == status {
			return true
		}
	}
	return false
}

// Output returns the declared output for status, or nil.
func (o *Operation) Output(status int) *Output {
	for i := range o.Outputs {
		if o.Outputs[i].Status == status {
			return &o.Outputs[i]
		}
	}
	return nil
}

// TypeRegistry builds the named-type arena for the document.
func (d *Document) TypeRegistry() (*schema.Registry, error) {
	return schema.NewRegistry(d.Types)
}

// Operation returns the operation with the given ID, or nil.
func (d *Document) Operation(id string) *Operation {
	for i := range d.Operations {
		if d.Operations[i].ID == id {
			return &d.Operations[i]
		}
	}
	return nil
}
