package schema

import (
	"fmt"
	"sort"
)

// Registry is the named-type arena for one document. Lookups are by exact
// name; resolution follows ref chains without looping on recursive types.
type Registry struct {
	defs map[string]*TypeDefinition
}

// NewRegistry builds a registry from the given definitions. A duplicate
// name is an error: two sources of truth for one type would make
// resolution order-dependent.
func NewRegistry(defs []TypeDefinition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*TypeDefinition, len(defs))}
	for i := range defs {
		d := defs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("schema: type definition with empty name")
		}
		if _, ok := r.defs[d.Name]; ok {
			return nil, fmt.Errorf("schema: duplicate type definition %q", d.Name)
		}
		r.defs[d.Name] = &d
	}
	return r, nil
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (*TypeDefinition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns all definition names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of definitions.
func (r *Registry) Len() int { return len(r.defs) }

// Resolve follows ref nodes until a concrete node is reached. Recursive
// structures are fine (a ref inside a property is not followed here); only
// a ref-to-ref cycle at the top level is an error, since it names no shape
// at all.
func (r *Registry) Resolve(n *Node) (*Node, error) {
	seen := make(map[string]bool)
	for n != nil && n.Kind == KindRef {
		if seen[n.Ref] {
			return nil, fmt.Errorf("schema: circular type reference through %q", n.Ref)
		}
		seen[n.Ref] = true
		def, ok := r.defs[n.Ref]
		if !ok {
			return nil, fmt.Errorf("schema: unresolved type reference %q", n.Ref)
		}
		n = def.Schema
	}
	return n, nil
}
