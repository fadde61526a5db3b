package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/schema"
	"github.com/specforge/specforge/pkg/utils"
)

// normalizeTypeScript scans a TypeScript source file for declaration-level
// signatures: function declarations, arrow consts, interfaces, type
// aliases and enums. It is a signature scanner, not a TypeScript compiler;
// anything below declaration granularity (function bodies, generics with
// constraints, mapped types) is out of scope, and parameters without a
// type annotation make the function undescribable.
func normalizeTypeScript(raw []byte, name string) (*Result, error) {
	src := stripTSComments(string(raw))
	if name == "" {
		name = "typescript"
	}

	res := &Result{}
	conv := &tsConverter{}

	var types []schema.TypeDefinition
	for _, m := range tsInterfaceRe.FindAllStringSubmatchIndex(src, -1) {
		ifaceName := src[m[2]:m[3]]
		body, ok := balancedBlock(src, m[1]-1, '{', '}')
		if !ok {
			res.Skipped = append(res.Skipped, &Error{Source: ir.SourceTypeScript, Fragment: ifaceName, Reason: "unterminated interface body"})
			continue
		}
		node, err := conv.objectBody(body)
		if err != nil {
			res.Skipped = append(res.Skipped, &Error{Source: ir.SourceTypeScript, Fragment: ifaceName, Reason: "unsupported interface", Err: err})
			continue
		}
		types = append(types, schema.TypeDefinition{Name: ifaceName, Schema: node})
	}
	for _, m := range tsTypeAliasRe.FindAllStringSubmatch(src, -1) {
		aliasName, expr := m[1], strings.TrimSpace(m[2])
		node, err := conv.typeExpr(expr)
		if err != nil {
			res.Skipped = append(res.Skipped, &Error{Source: ir.SourceTypeScript, Fragment: aliasName, Reason: "unsupported type alias", Err: err})
			continue
		}
		types = append(types, schema.TypeDefinition{Name: aliasName, Schema: node})
	}
	for _, m := range tsEnumRe.FindAllStringSubmatch(src, -1) {
		enumName := m[1]
		node, err := conv.enumBody(m[2])
		if err != nil {
			res.Skipped = append(res.Skipped, &Error{Source: ir.SourceTypeScript, Fragment: enumName, Reason: "unsupported enum", Err: err})
			continue
		}
		types = append(types, schema.TypeDefinition{Name: enumName, Schema: node})
	}

	var ops []ir.Operation
	for _, sig := range scanTSFunctions(src) {
		op, err := conv.operation(sig)
		if err != nil {
			res.Skipped = append(res.Skipped, &Error{Source: ir.SourceTypeScript, Fragment: sig.name, Reason: "unsupported signature", Err: err})
			continue
		}
		ops = append(ops, *op)
	}

	srcInfo := ir.Provenance{Kind: ir.SourceTypeScript, Name: name, Hash: ir.Fingerprint(raw)}
	doc, err := ir.Build(srcInfo, ops, types)
	if err != nil {
		return nil, err
	}
	res.Doc = doc
	return res, nil
}

var (
	tsInterfaceRe = regexp.MustCompile(`(?m)^\s*(?:export\s+)?interface\s+(\w+)[^{]*\{`)
	tsTypeAliasRe = regexp.MustCompile(`(?m)^\s*(?:export\s+)?type\s+(\w+)\s*=\s*([^;\n]+)`)
	tsEnumRe      = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:const\s+)?enum\s+(\w+)\s*\{([^}]*)\}`)
	tsFuncRe      = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`)
	tsArrowRe     = regexp.MustCompile(`(?m)^\s*(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s+)?\(`)
	tsIdentRe     = regexp.MustCompile(`^\w+$`)
)

type tsSignature struct {
	name    string
	params  string
	returns string
}

// scanTSFunctions finds declaration-level functions and arrow consts,
// capturing the raw parameter list and return annotation for each.
func scanTSFunctions(src string) []tsSignature {
	var sigs []tsSignature
	collect := func(re *regexp.Regexp, arrow bool) {
		for _, m := range re.FindAllStringSubmatchIndex(src, -1) {
			name := src[m[2]:m[3]]
			params, ok := balancedBlock(src, m[1]-1, '(', ')')
			if !ok {
				continue
			}
			rest := src[m[1]+len(params)+1:]
			ret := ""
			if after, found := strings.CutPrefix(strings.TrimLeft(rest, " \t"), ":"); found {
				stop := "{"
				if arrow {
					stop = "=>"
				}
				if idx := strings.Index(after, stop); idx >= 0 {
					ret = strings.TrimSpace(after[:idx])
				} else if idx := strings.IndexAny(after, ";\n"); idx >= 0 {
					ret = strings.TrimSpace(after[:idx])
				}
			}
			sigs = append(sigs, tsSignature{name: name, params: params, returns: ret})
		}
	}
	collect(tsFuncRe, false)
	collect(tsArrowRe, true)
	return sigs
}

type tsConverter struct{}

func (c *tsConverter) operation(sig tsSignature) (*ir.Operation, error) {
	body := &schema.Node{Kind: schema.KindObject, AdditionalForbidden: true}
	for _, p := range splitTopLevel(sig.params, ',') {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "...") {
			return nil, fmt.Errorf("rest parameters are not describable")
		}
		// drop default value
		if idx := topLevelIndex(p, '='); idx >= 0 {
			p = strings.TrimSpace(p[:idx])
		}
		idx := topLevelIndex(p, ':')
		if idx < 0 {
			return nil, fmt.Errorf("parameter %q has no type annotation", p)
		}
		pname := strings.TrimSpace(p[:idx])
		optional := strings.HasSuffix(pname, "?")
		pname = strings.TrimSuffix(pname, "?")
		node, err := c.typeExpr(strings.TrimSpace(p[idx+1:]))
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", pname, err)
		}
		required := !optional && !node.Nullable
		body.Properties = append(body.Properties, schema.Field{Name: pname, Schema: node, Required: required})
		if required {
			body.Required = append(body.Required, pname)
		}
	}

	op := &ir.Operation{
		ID:     utils.ToCamelCase(sig.name),
		Method: "POST",
		Path:   "/" + utils.ToSnakeCase(sig.name),
	}
	if body.Properties != nil {
		op.Body = &ir.Body{ContentType: "application/json", Required: true, Schema: body}
	}

	out := ir.Output{Status: 200}
	ret := strings.TrimSpace(sig.returns)
	if inner, ok := unwrapGeneric(ret, "Promise"); ok {
		ret = inner
	}
	if ret != "" && ret != "void" && ret != "never" {
		node, err := c.typeExpr(ret)
		if err != nil {
			return nil, fmt.Errorf("return type: %w", err)
		}
		out.Schema = node
	}
	op.Outputs = []ir.Output{out}
	return op, nil
}

// typeExpr parses a TypeScript type expression into a canonical node.
func (c *tsConverter) typeExpr(expr string) (*schema.Node, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty type expression")
	}
	// parenthesized group
	if strings.HasPrefix(expr, "(") {
		if inner, ok := balancedBlock(expr, 0, '(', ')'); ok && len(inner)+2 == len(expr) {
			return c.typeExpr(inner)
		}
	}

	if parts := splitTopLevel(expr, '|'); len(parts) > 1 {
		return c.unionExpr(parts)
	}

	if inner, found := strings.CutSuffix(expr, "[]"); found {
		items, err := c.typeExpr(inner)
		if err != nil {
			return nil, err
		}
		return &schema.Node{Kind: schema.KindArray, Items: items}, nil
	}
	if inner, ok := unwrapGeneric(expr, "Array"); ok {
		items, err := c.typeExpr(inner)
		if err != nil {
			return nil, err
		}
		return &schema.Node{Kind: schema.KindArray, Items: items}, nil
	}
	if inner, ok := unwrapGeneric(expr, "Record"); ok {
		args := splitTopLevel(inner, ',')
		if len(args) != 2 || strings.TrimSpace(args[0]) != "string" {
			return nil, fmt.Errorf("unsupported Record type %q", expr)
		}
		val, err := c.typeExpr(args[1])
		if err != nil {
			return nil, err
		}
		return &schema.Node{Kind: schema.KindObject, AdditionalProperties: val}, nil
	}

	// tuple: fixed length array over the union of member types
	if strings.HasPrefix(expr, "[") && strings.HasSuffix(expr, "]") {
		return c.tupleExpr(expr[1 : len(expr)-1])
	}
	if strings.HasPrefix(expr, "{") && strings.HasSuffix(expr, "}") {
		return c.objectBody(expr[1 : len(expr)-1])
	}

	// literals
	if strings.HasPrefix(expr, `"`) || strings.HasPrefix(expr, "'") {
		val := strings.Trim(expr, `"'`)
		return &schema.Node{Kind: schema.KindEnum, EnumValues: []any{val}, EnumBase: schema.KindString}, nil
	}
	if n, err := strconv.ParseFloat(expr, 64); err == nil {
		base := schema.KindNumber
		if n == float64(int64(n)) {
			base = schema.KindInteger
		}
		return &schema.Node{Kind: schema.KindEnum, EnumValues: []any{n}, EnumBase: base}, nil
	}

	switch expr {
	case "string":
		return &schema.Node{Kind: schema.KindString}, nil
	case "number":
		return &schema.Node{Kind: schema.KindNumber}, nil
	case "bigint":
		return &schema.Node{Kind: schema.KindInteger}, nil
	case "boolean":
		return &schema.Node{Kind: schema.KindBoolean}, nil
	case "true":
		return &schema.Node{Kind: schema.KindEnum, EnumValues: []any{true}, EnumBase: schema.KindBoolean}, nil
	case "false":
		return &schema.Node{Kind: schema.KindEnum, EnumValues: []any{false}, EnumBase: schema.KindBoolean}, nil
	case "null", "undefined":
		return &schema.Node{Kind: schema.KindNull}, nil
	case "any", "unknown", "object":
		return &schema.Node{Kind: schema.KindUnknown}, nil
	case "Date":
		return &schema.Node{Kind: schema.KindString, Format: "date-time"}, nil
	}

	if tsIdentRe.MatchString(expr) {
		return &schema.Node{Kind: schema.KindRef, Ref: expr}, nil
	}
	return nil, fmt.Errorf("unsupported type expression %q", expr)
}

// unionExpr folds a top-level union. Null-ish variants collapse into
// nullability, all-literal unions of one base kind fold into an enum.
func (c *tsConverter) unionExpr(parts []string) (*schema.Node, error) {
	var variants []*schema.Node
	nullable := false
	for _, p := range parts {
		node, err := c.typeExpr(p)
		if err != nil {
			return nil, err
		}
		if node.Kind == schema.KindNull {
			nullable = true
			continue
		}
		variants = append(variants, node)
	}
	if len(variants) == 0 {
		return &schema.Node{Kind: schema.KindNull, Nullable: true}, nil
	}
	if len(variants) == 1 {
		variants[0].Nullable = variants[0].Nullable || nullable
		return variants[0], nil
	}

	allEnum := true
	base := variants[0].EnumBase
	var values []any
	for _, v := range variants {
		if v.Kind != schema.KindEnum || v.EnumBase != base {
			allEnum = false
			break
		}
		values = append(values, v.EnumValues...)
	}
	if allEnum {
		return &schema.Node{Kind: schema.KindEnum, EnumValues: values, EnumBase: base, Nullable: nullable}, nil
	}
	return &schema.Node{Kind: schema.KindUnion, Variants: variants, Exclusive: true, Nullable: nullable}, nil
}

func (c *tsConverter) tupleExpr(inner string) (*schema.Node, error) {
	members := splitTopLevel(inner, ',')
	var variants []*schema.Node
	for _, m := range members {
		node, err := c.typeExpr(m)
		if err != nil {
			return nil, err
		}
		variants = append(variants, node)
	}
	n := len(members)
	node := &schema.Node{Kind: schema.KindArray, MinItems: &n}
	max := n
	node.MaxItems = &max
	if len(variants) == 1 {
		node.Items = variants[0]
	} else {
		node.Items = &schema.Node{Kind: schema.KindUnion, Variants: variants, Exclusive: false}
	}
	return node, nil
}

// objectBody parses the member list of an interface or object literal.
func (c *tsConverter) objectBody(body string) (*schema.Node, error) {
	node := &schema.Node{Kind: schema.KindObject, AdditionalForbidden: true}
	for _, member := range splitTopLevelAny(body, ";,\n") {
		member = strings.TrimSpace(member)
		if member == "" {
			continue
		}
		idx := topLevelIndex(member, ':')
		if idx < 0 {
			return nil, fmt.Errorf("member %q has no type annotation", member)
		}
		fname := strings.TrimSpace(member[:idx])
		if strings.ContainsAny(fname, "([<") {
			return nil, fmt.Errorf("method members are not describable")
		}
		optional := strings.HasSuffix(fname, "?")
		fname = strings.Trim(strings.TrimSuffix(fname, "?"), `"'`)
		fieldNode, err := c.typeExpr(strings.TrimSpace(member[idx+1:]))
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", fname, err)
		}
		required := !optional
		node.Properties = append(node.Properties, schema.Field{Name: fname, Schema: fieldNode, Required: required})
		if required {
			node.Required = append(node.Required, fname)
		}
	}
	return node, nil
}

// enumBody parses TypeScript enum members; bare members take ascending
// integer values from zero, the language default.
func (c *tsConverter) enumBody(body string) (*schema.Node, error) {
	node := &schema.Node{Kind: schema.KindEnum, EnumBase: schema.KindInteger}
	next := 0
	for _, member := range splitTopLevel(body, ',') {
		member = strings.TrimSpace(member)
		if member == "" {
			continue
		}
		_, value, hasValue := strings.Cut(member, "=")
		if !hasValue {
			node.EnumValues = append(node.EnumValues, next)
			next++
			continue
		}
		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, `"`) || strings.HasPrefix(value, "'") {
			node.EnumBase = schema.KindString
			node.EnumValues = append(node.EnumValues, strings.Trim(value, `"'`))
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("unsupported enum member %q", member)
		}
		node.EnumValues = append(node.EnumValues, n)
		next = n + 1
	}
	if len(node.EnumValues) == 0 {
		return nil, fmt.Errorf("empty enum")
	}
	return node, nil
}

// balancedBlock returns the content between the opener at src[start] and
// its matching closer.
func balancedBlock(src string, start int, open, close byte) (string, bool) {
	if start < 0 || start >= len(src) || src[start] != open {
		return "", false
	}
	depth := 0
	for i := start; i < len(src); i++ {
		switch src[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return src[start+1 : i], true
			}
		}
	}
	return "", false
}

// splitTopLevel splits on sep outside of brackets, braces, parens,
// angle brackets and string literals.
func splitTopLevel(s string, sep byte) []string {
	return splitTopLevelAny(s, string(sep))
}

func splitTopLevelAny(s, seps string) []string {
	var parts []string
	depth := 0
	last := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'', '`':
			quote = ch
		case '{', '[', '(', '<':
			depth++
		case '}', ']', ')', '>':
			depth--
		default:
			if depth == 0 && strings.IndexByte(seps, ch) >= 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// topLevelIndex finds the first sep outside nesting, or -1.
func topLevelIndex(s string, sep byte) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'', '`':
			quote = ch
		case '{', '[', '(', '<':
			depth++
		case '}', ']', ')', '>':
			depth--
		default:
			if depth == 0 && ch == sep {
				return i
			}
		}
	}
	return -1
}

func unwrapGeneric(expr, name string) (string, bool) {
	if rest, found := strings.CutPrefix(expr, name+"<"); found && strings.HasSuffix(rest, ">") {
		return strings.TrimSpace(rest[:len(rest)-1]), true
	}
	return "", false
}

var tsLineComment = regexp.MustCompile(`//[^\n]*`)
var tsBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)

func stripTSComments(src string) string {
	src = tsBlockComment.ReplaceAllString(src, "")
	return tsLineComment.ReplaceAllString(src, "")
}
