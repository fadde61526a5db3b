package normalize

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"

	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/schema"
	"github.com/specforge/specforge/pkg/utils"
)

// normalizeGo treats a single Go source file as an interface description:
// every exported top-level function becomes an operation whose body schema
// is the object of its parameters, and struct/const declarations feed the
// type arena. Signature sources claim nothing about transport, so each
// operation gets a synthetic POST path and a single success output.
func normalizeGo(raw []byte, name string) (*Result, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, name, raw, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("normalize go: %w", err)
	}
	if name == "" {
		name = file.Name.Name
	}

	res := &Result{}
	conv := &goConverter{}

	// First pass: named types, so function signatures can reference them.
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts := spec.(*ast.TypeSpec)
			node, err := conv.typeExpr(ts.Type)
			if err != nil {
				res.Skipped = append(res.Skipped, &Error{Source: ir.SourceGo, Fragment: ts.Name.Name, Reason: "unsupported type declaration", Err: err})
				continue
			}
			conv.types = append(conv.types, schema.TypeDefinition{Name: ts.Name.Name, Schema: node})
		}
	}
	conv.collectEnums(file)

	var ops []ir.Operation
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv != nil || !fd.Name.IsExported() {
			continue
		}
		op, err := conv.operation(fd)
		if err != nil {
			res.Skipped = append(res.Skipped, &Error{Source: ir.SourceGo, Fragment: fd.Name.Name, Reason: "unsupported signature", Err: err})
			continue
		}
		ops = append(ops, *op)
	}

	src := ir.Provenance{Kind: ir.SourceGo, Name: name, Hash: ir.Fingerprint(raw)}
	doc, err := ir.Build(src, ops, conv.types)
	if err != nil {
		return nil, err
	}
	res.Doc = doc
	return res, nil
}

type goConverter struct {
	types []schema.TypeDefinition
}

// collectEnums upgrades a named scalar type to an enum when the file
// declares typed constants for it, the standard Go enum idiom.
func (c *goConverter) collectEnums(file *ast.File) {
	values := map[string][]any{}
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.CONST {
			continue
		}
		for _, spec := range gd.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok || vs.Type == nil {
				continue
			}
			ident, ok := vs.Type.(*ast.Ident)
			if !ok {
				continue
			}
			for _, v := range vs.Values {
				lit, ok := v.(*ast.BasicLit)
				if !ok {
					continue
				}
				switch lit.Kind {
				case token.STRING:
					if s, err := strconv.Unquote(lit.Value); err == nil {
						values[ident.Name] = append(values[ident.Name], s)
					}
				case token.INT:
					if n, err := strconv.Atoi(lit.Value); err == nil {
						values[ident.Name] = append(values[ident.Name], n)
					}
				case token.FLOAT:
					if f, err := strconv.ParseFloat(lit.Value, 64); err == nil {
						values[ident.Name] = append(values[ident.Name], f)
					}
				}
			}
		}
	}
	for i := range c.types {
		td := &c.types[i]
		vals, ok := values[td.Name]
		if !ok || len(vals) == 0 {
			continue
		}
		base := td.Schema.Kind
		if base != schema.KindString && base != schema.KindInteger && base != schema.KindNumber {
			continue
		}
		td.Schema = &schema.Node{Kind: schema.KindEnum, EnumValues: vals, EnumBase: base}
	}
}

func (c *goConverter) operation(fd *ast.FuncDecl) (*ir.Operation, error) {
	body := &schema.Node{Kind: schema.KindObject, AdditionalForbidden: true}

	for _, field := range fd.Type.Params.List {
		if _, variadic := field.Type.(*ast.Ellipsis); variadic {
			return nil, fmt.Errorf("variadic parameters are not describable")
		}
		if isContextParam(field.Type) {
			continue
		}
		node, required, err := c.paramType(field.Type)
		if err != nil {
			return nil, err
		}
		for _, nameIdent := range field.Names {
			pname := nameIdent.Name
			body.Properties = append(body.Properties, schema.Field{Name: pname, Schema: node, Required: required})
			if required {
				body.Required = append(body.Required, pname)
			}
		}
		if len(field.Names) == 0 {
			return nil, fmt.Errorf("unnamed parameter")
		}
	}

	doc := ""
	if fd.Doc != nil {
		doc = strings.TrimSpace(fd.Doc.Text())
	}

	op := &ir.Operation{
		ID:       utils.ToCamelCase(fd.Name.Name),
		Method:   "POST",
		Path:     "/" + utils.ToSnakeCase(fd.Name.Name),
		Evidence: ir.Evidence{Doc: doc},
	}
	if body.Properties != nil {
		op.Body = &ir.Body{ContentType: "application/json", Required: true, Schema: body}
	}

	out := ir.Output{Status: 200}
	if fd.Type.Results != nil {
		for _, r := range fd.Type.Results.List {
			if isErrorType(r.Type) {
				continue
			}
			node, _, err := c.paramType(r.Type)
			if err != nil {
				return nil, fmt.Errorf("return value: %w", err)
			}
			out.Schema = node
			break
		}
	}
	op.Outputs = []ir.Output{out}
	return op, nil
}

// paramType converts a parameter or result type. Pointers mean the value
// is optional and may be null.
func (c *goConverter) paramType(expr ast.Expr) (*schema.Node, bool, error) {
	if star, ok := expr.(*ast.StarExpr); ok {
		node, err := c.typeExpr(star.X)
		if err != nil {
			return nil, false, err
		}
		node.Nullable = true
		return node, false, nil
	}
	node, err := c.typeExpr(expr)
	if err != nil {
		return nil, false, err
	}
	return node, true, nil
}

func (c *goConverter) typeExpr(expr ast.Expr) (*schema.Node, error) {
	switch t := expr.(type) {
	case *ast.Ident:
		return c.identType(t)
	case *ast.StarExpr:
		node, err := c.typeExpr(t.X)
		if err != nil {
			return nil, err
		}
		node.Nullable = true
		return node, nil
	case *ast.ArrayType:
		items, err := c.typeExpr(t.Elt)
		if err != nil {
			return nil, err
		}
		return &schema.Node{Kind: schema.KindArray, Items: items}, nil
	case *ast.MapType:
		if key, ok := t.Key.(*ast.Ident); !ok || key.Name != "string" {
			return nil, fmt.Errorf("map keys must be strings")
		}
		val, err := c.typeExpr(t.Value)
		if err != nil {
			return nil, err
		}
		return &schema.Node{Kind: schema.KindObject, AdditionalProperties: val}, nil
	case *ast.StructType:
		return c.structType(t)
	case *ast.SelectorExpr:
		return c.selectorType(t)
	case *ast.InterfaceType:
		if len(t.Methods.List) == 0 {
			return &schema.Node{Kind: schema.KindUnknown}, nil
		}
		return nil, fmt.Errorf("non-empty interface types are not describable")
	default:
		return nil, fmt.Errorf("unsupported type expression %T", expr)
	}
}

func (c *goConverter) identType(t *ast.Ident) (*schema.Node, error) {
	switch t.Name {
	case "string":
		return &schema.Node{Kind: schema.KindString}, nil
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return &schema.Node{Kind: schema.KindInteger}, nil
	case "float32", "float64":
		return &schema.Node{Kind: schema.KindNumber}, nil
	case "bool":
		return &schema.Node{Kind: schema.KindBoolean}, nil
	case "byte", "rune":
		return &schema.Node{Kind: schema.KindInteger}, nil
	case "any":
		return &schema.Node{Kind: schema.KindUnknown}, nil
	case "error":
		return nil, fmt.Errorf("error is not a value type")
	default:
		// Named type: the declaration pass registers it; dangling names
		// surface later as unresolved refs.
		return &schema.Node{Kind: schema.KindRef, Ref: t.Name}, nil
	}
}

func (c *goConverter) structType(t *ast.StructType) (*schema.Node, error) {
	node := &schema.Node{Kind: schema.KindObject, AdditionalForbidden: true}
	for _, field := range t.Fields.List {
		fieldNode, required, err := c.paramType(field.Type)
		if err != nil {
			return nil, err
		}
		if len(field.Names) == 0 {
			return nil, fmt.Errorf("embedded struct fields are not describable")
		}
		for _, ident := range field.Names {
			if !ident.IsExported() {
				continue
			}
			wireName, omitempty := jsonFieldName(field, ident.Name)
			if wireName == "" {
				continue
			}
			req := required && !omitempty
			node.Properties = append(node.Properties, schema.Field{Name: wireName, Schema: fieldNode, Required: req})
			if req {
				node.Required = append(node.Required, wireName)
			}
		}
	}
	sort.SliceStable(node.Properties, func(a, b int) bool { return node.Properties[a].Name < node.Properties[b].Name })
	sort.Strings(node.Required)
	return node, nil
}

func (c *goConverter) selectorType(t *ast.SelectorExpr) (*schema.Node, error) {
	pkg, ok := t.X.(*ast.Ident)
	if !ok {
		return nil, fmt.Errorf("unsupported qualified type")
	}
	switch pkg.Name + "." + t.Sel.Name {
	case "time.Time":
		return &schema.Node{Kind: schema.KindString, Format: "date-time"}, nil
	case "time.Duration":
		return &schema.Node{Kind: schema.KindInteger}, nil
	case "uuid.UUID":
		return &schema.Node{Kind: schema.KindString, Format: "uuid"}, nil
	case "json.RawMessage":
		return &schema.Node{Kind: schema.KindUnknown}, nil
	default:
		return nil, fmt.Errorf("unsupported qualified type %s.%s", pkg.Name, t.Sel.Name)
	}
}

// jsonFieldName resolves the wire name of a struct field from its json
// tag, defaulting to the Go field name.
func jsonFieldName(field *ast.Field, goName string) (string, bool) {
	if field.Tag == nil {
		return goName, false
	}
	raw, err := strconv.Unquote(field.Tag.Value)
	if err != nil {
		return goName, false
	}
	tag, ok := lookupTag(raw, "json")
	if !ok {
		return goName, false
	}
	parts := strings.Split(tag, ",")
	name := parts[0]
	omitempty := false
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitempty = true
		}
	}
	if name == "-" && len(parts) == 1 {
		return "", false
	}
	if name == "" {
		name = goName
	}
	return name, omitempty
}

func lookupTag(tag, key string) (string, bool) {
	for tag != "" {
		i := 0
		for i < len(tag) && tag[i] == ' ' {
			i++
		}
		tag = tag[i:]
		i = strings.Index(tag, ":")
		if i < 0 {
			break
		}
		name := tag[:i]
		rest := tag[i+1:]
		if len(rest) == 0 || rest[0] != '"' {
			break
		}
		j := 1
		for j < len(rest) && rest[j] != '"' {
			if rest[j] == '\\' {
				j++
			}
			j++
		}
		if j >= len(rest) {
			break
		}
		value := rest[1:j]
		tag = rest[j+1:]
		if name == key {
			return value, true
		}
	}
	return "", false
}

func isContextParam(expr ast.Expr) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == "context" && sel.Sel.Name == "Context"
}

func isErrorType(expr ast.Expr) bool {
	ident, ok := expr.(*ast.Ident)
	return ok && ident.Name == "error"
}
