package fixture

import (
	"strings"

	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/utils"
)

// Analyzer infers which operations need resources created before they can
// run, and which operation creates each of those resources.
type Analyzer struct {
	doc *ir.Document
}

func NewAnalyzer(doc *ir.Document) *Analyzer {
	return &Analyzer{doc: doc}
}

// NeedsSetup reports whether the operation addresses existing resources:
// a read, update or delete that takes at least one path parameter.
func NeedsSetup(op *ir.Operation) bool {
	switch op.Method {
	case "GET", "DELETE", "PUT", "PATCH":
		return len(op.Params(ir.LocationPath)) > 0
	}
	return false
}

// Dependencies resolves every path parameter of the operation to the
// resource it addresses and, where possible, to that resource's creation
// operation.
func (a *Analyzer) Dependencies(op *ir.Operation) []Dependency {
	if !NeedsSetup(op) {
		return nil
	}
	var deps []Dependency
	for _, p := range op.Params(ir.LocationPath) {
		resource := resourceName(p.Name, op.Path)
		deps = append(deps, Dependency{
			Param:    p.Name,
			Resource: resource,
			CreateOp: a.createOpFor(op, p.Name, resource),
		})
	}
	return deps
}

// resourceName strips the conventional identifier suffix. A bare "id"
// falls back to the path segment the parameter follows.
func resourceName(param, path string) string {
	if r := strings.TrimSuffix(param, "_id"); r != param && r != "" {
		return r
	}
	if r := strings.TrimSuffix(param, "Id"); r != param && r != "" {
		return utils.ToSnakeCase(r)
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "{"+param+"}" && i > 0 {
			return utils.Singularize(segments[i-1])
		}
	}
	return param
}

// createOpFor locates the operation that creates the resource: first a
// POST onto a collection whose name singularizes to the resource, then a
// POST onto the enclosing collection of the dependent operation's own
// path.
func (a *Analyzer) createOpFor(op *ir.Operation, param, resource string) string {
	for i := range a.doc.Operations {
		cand := &a.doc.Operations[i]
		if cand.Method != "POST" {
			continue
		}
		if utils.Singularize(collectionSegment(cand.Path)) == resource {
			return cand.ID
		}
	}

	prefix := strings.TrimSuffix(op.Path, "/{"+param+"}")
	if prefix != op.Path {
		for i := range a.doc.Operations {
			cand := &a.doc.Operations[i]
			if cand.Method == "POST" && cand.Path == prefix {
				return cand.ID
			}
		}
	}
	return ""
}

// collectionSegment is the last non-parameter segment of a path:
// /stores/{store_id}/orders -> "orders".
func collectionSegment(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if !strings.HasPrefix(segments[i], "{") {
			return segments[i]
		}
	}
	return ""
}
