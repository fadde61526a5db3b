package intent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/schema"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func findIntent(intents []Intent, kind Kind, target string) *Intent {
	for i := range intents {
		if intents[i].Kind == kind && intents[i].Target == target {
			return &intents[i]
		}
	}
	return nil
}

func openapiDoc(ops ...ir.Operation) *ir.Document {
	return &ir.Document{
		Version: ir.Version,
		Source: ir.Provenance{
			Kind: ir.SourceOpenAPI,
			Name: "orders.yaml",
			Hash: "sha256:" + fmt.Sprintf("%064d", 0),
		},
		Operations: ops,
	}
}

func createOrderOp() ir.Operation {
	return ir.Operation{
		ID:     "createOrder",
		Method: "POST",
		Path:   "/orders",
		Body: &ir.Body{
			ContentType: "application/json",
			Required:    true,
			Schema: &schema.Node{
				Kind: schema.KindObject,
				Properties: []schema.Field{
					{Name: "title", Required: true, Schema: &schema.Node{
						Kind:      schema.KindString,
						MinLength: intPtr(5),
						MaxLength: intPtr(100),
					}},
					{Name: "price", Required: true, Schema: &schema.Node{
						Kind:       schema.KindNumber,
						Minimum:    floatPtr(0.01),
						Maximum:    floatPtr(10000.00),
						MultipleOf: floatPtr(0.01),
					}},
				},
				Required: []string{"title", "price"},
			},
		},
		Outputs: []ir.Output{{Status: 201}, {Status: 400}},
	}
}

func TestGenerateTitleBoundaryScenario(t *testing.T) {
	doc := openapiDoc(createOrderOp())

	intents, err := Generate(doc, DefaultConfig())
	require.NoError(t, err)

	happy := findIntent(intents, HappyPath, "operation")
	require.NotNil(t, happy)
	assert.Equal(t, 201, happy.Expected)

	short := findIntent(intents, BoundaryMinLengthMinusOne, "body.title")
	require.NotNil(t, short)
	assert.Equal(t, 400, short.Expected)
	assert.Equal(t, []string{"title"}, short.Path)

	long := findIntent(intents, BoundaryMaxLengthPlusOne, "body.title")
	require.NotNil(t, long)
	assert.Equal(t, 400, long.Expected)

	// Numeric boundaries attach to the sibling field without disturbing
	// the string rules.
	assert.NotNil(t, findIntent(intents, BoundaryMaxPlusOne, "body.price"))
	assert.NotNil(t, findIntent(intents, NotMultipleOf, "body.price"))
	assert.NotNil(t, findIntent(intents, RequiredFieldMissing, "body"))
}

func TestGeneratePathParamWithoutFormat(t *testing.T) {
	op := ir.Operation{
		ID:     "getUser",
		Method: "GET",
		Path:   "/users/{user_id}",
		Parameters: []ir.Parameter{{
			Name:     "user_id",
			Location: ir.LocationPath,
			Required: true,
			Schema:   &schema.Node{Kind: schema.KindInteger},
		}},
		Outputs: []ir.Output{{Status: 200}, {Status: 404}},
	}
	doc := openapiDoc(op)

	intents, err := Generate(doc, DefaultConfig())
	require.NoError(t, err)

	nf := findIntent(intents, ResourceNotFound, "path.user_id")
	require.NotNil(t, nf)
	assert.Equal(t, 404, nf.Expected)

	// An integer with no declared format accepts every syntactically
	// plausible value, so there is nothing to send a bad-request probe at.
	assert.Nil(t, findIntent(intents, FormatInvalidPathParam, "path.user_id"))
}

func TestGeneratePathParamWithFormat(t *testing.T) {
	op := ir.Operation{
		ID:     "getOrder",
		Method: "GET",
		Path:   "/orders/{order_id}",
		Parameters: []ir.Parameter{{
			Name:     "order_id",
			Location: ir.LocationPath,
			Required: true,
			Schema:   &schema.Node{Kind: schema.KindString, Format: "uuid"},
		}},
		Outputs: []ir.Output{{Status: 200}},
	}
	doc := openapiDoc(op)

	intents, err := Generate(doc, DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, findIntent(intents, ResourceNotFound, "path.order_id"))

	fi := findIntent(intents, FormatInvalidPathParam, "path.order_id")
	require.NotNil(t, fi)
	assert.Equal(t, 400, fi.Expected)

	// uuid is a structured format: no injection probes fit in it.
	assert.Nil(t, findIntent(intents, SQLInjection, "path.order_id"))
	assert.Nil(t, findIntent(intents, PathTraversal, "path.order_id"))
}

func TestGenerateStatusPrecedence(t *testing.T) {
	// The operation declares 422 for body errors; parameter intents must
	// not inherit it.
	op := ir.Operation{
		ID:     "updateAccount",
		Method: "PUT",
		Path:   "/accounts/{account_id}",
		Parameters: []ir.Parameter{
			{Name: "account_id", Location: ir.LocationPath, Required: true,
				Schema: &schema.Node{Kind: schema.KindString, Format: "uuid"}},
			{Name: "X-Tenant", Location: ir.LocationHeader, Required: true,
				Schema: &schema.Node{Kind: schema.KindString}},
			{Name: "dry_run", Location: ir.LocationQuery, Required: true,
				Schema: &schema.Node{Kind: schema.KindBoolean}},
		},
		Body: &ir.Body{Required: true, Schema: &schema.Node{
			Kind: schema.KindObject,
			Properties: []schema.Field{
				{Name: "name", Required: true, Schema: &schema.Node{
					Kind: schema.KindString, MinLength: intPtr(1),
				}},
			},
			Required: []string{"name"},
		}},
		Outputs: []ir.Output{{Status: 200}, {Status: 422}},
	}
	doc := openapiDoc(op)

	intents, err := Generate(doc, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 404, findIntent(intents, ResourceNotFound, "path.account_id").Expected)
	assert.Equal(t, 400, findIntent(intents, FormatInvalidPathParam, "path.account_id").Expected)
	assert.Equal(t, 400, findIntent(intents, HeaderMissing, "header.X-Tenant").Expected)
	assert.Equal(t, 400, findIntent(intents, HeaderInjection, "header.X-Tenant").Expected)

	// Query and body intents do take the declared error status.
	assert.Equal(t, 422, findIntent(intents, RequiredFieldMissing, "query.dry_run").Expected)
	assert.Equal(t, 422, findIntent(intents, TypeViolation, "query.dry_run").Expected)
	assert.Equal(t, 422, findIntent(intents, RequiredFieldMissing, "body.name").Expected)
	assert.Equal(t, 422, findIntent(intents, EmptyString, "body.name").Expected)
}

func TestGenerateDedup(t *testing.T) {
	doc := openapiDoc(createOrderOp())

	intents, err := Generate(doc, DefaultConfig())
	require.NoError(t, err)

	type key struct {
		op     string
		kind   Kind
		target string
	}
	seen := make(map[key]bool)
	for _, it := range intents {
		k := key{it.OperationID, it.Kind, it.Target}
		assert.Falsef(t, seen[k], "duplicate intent %s %s on %s", it.Kind, it.Target, it.OperationID)
		seen[k] = true
	}
}

func TestGenerateHappyVariants(t *testing.T) {
	op := ir.Operation{
		ID:     "createPayment",
		Method: "POST",
		Path:   "/payments",
		Body: &ir.Body{Required: true, Schema: &schema.Node{
			Kind:      schema.KindUnion,
			Exclusive: true,
			Variants: []*schema.Node{
				{Kind: schema.KindObject, Properties: []schema.Field{
					{Name: "card_number", Required: true, Schema: &schema.Node{Kind: schema.KindString}},
				}},
				{Kind: schema.KindObject, Properties: []schema.Field{
					{Name: "iban", Required: true, Schema: &schema.Node{Kind: schema.KindString}},
				}},
			},
			Discriminator: &schema.Discriminator{PropertyName: "method"},
		}},
		Outputs: []ir.Output{{Status: 201}, {Status: 400}},
	}
	doc := openapiDoc(op)

	intents, err := Generate(doc, DefaultConfig())
	require.NoError(t, err)

	v0 := findIntent(intents, HappyPathVariant, "operation[variant=0]")
	require.NotNil(t, v0)
	assert.Equal(t, 0, v0.Variant)
	assert.Equal(t, 201, v0.Expected)

	v1 := findIntent(intents, HappyPathVariant, "operation[variant=1]")
	require.NotNil(t, v1)
	assert.Equal(t, 1, v1.Variant)

	assert.NotNil(t, findIntent(intents, UnionNoMatch, "body"))
	assert.NotNil(t, findIntent(intents, DiscriminatorViolation, "body"))

	// The walker follows the first variant for field-level rules.
	assert.NotNil(t, findIntent(intents, RequiredFieldMissing, "body.card_number"))
	assert.Nil(t, findIntent(intents, RequiredFieldMissing, "body.iban"))
}

func signatureDoc(kind ir.SourceKind, op ir.Operation) *ir.Document {
	return &ir.Document{
		Version: ir.Version,
		Source: ir.Provenance{
			Kind: kind,
			Name: "billing.src",
			Hash: "sha256:" + fmt.Sprintf("%064d", 1),
		},
		Operations: []ir.Operation{op},
	}
}

func signatureOp(doc string) ir.Operation {
	return ir.Operation{
		ID:     "createAccount",
		Method: "POST",
		Path:   "/create_account",
		Body: &ir.Body{Required: true, Schema: &schema.Node{
			Kind: schema.KindObject,
			Properties: []schema.Field{
				{Name: "name", Required: true, Schema: &schema.Node{
					Kind: schema.KindString, MinLength: intPtr(3),
				}},
				{Name: "comment", Schema: &schema.Node{Kind: schema.KindString}},
				{Name: "balance", Required: true, Schema: &schema.Node{
					Kind: schema.KindInteger, Minimum: floatPtr(0),
				}},
			},
			Required: []string{"name", "balance"},
		}},
		Outputs:  []ir.Output{{Status: 200}},
		Evidence: ir.Evidence{Doc: doc},
	}
}

func TestGenerateGoEvidenceGating(t *testing.T) {
	t.Run("no evidence", func(t *testing.T) {
		doc := signatureDoc(ir.SourceGo, signatureOp("CreateAccount opens an account."))

		intents, err := Generate(doc, DefaultConfig())
		require.NoError(t, err)

		// Constraint and robustness rules stay on; type confusion and
		// injection need evidence that the implementation checks inputs.
		assert.NotNil(t, findIntent(intents, BoundaryMinLengthMinusOne, "body.name"))
		assert.NotNil(t, findIntent(intents, ZeroValue, "body.balance"))
		assert.NotNil(t, findIntent(intents, NegativeValue, "body.balance"))
		assert.Nil(t, findIntent(intents, TypeViolation, "body.name"))
		assert.Nil(t, findIntent(intents, NullNotAllowed, "body.name"))
		assert.Nil(t, findIntent(intents, SQLInjection, "body.comment"))
	})

	t.Run("type-check evidence", func(t *testing.T) {
		doc := signatureDoc(ir.SourceGo, signatureOp("CreateAccount validates its arguments and rejects bad ones."))

		intents, err := Generate(doc, DefaultConfig())
		require.NoError(t, err)

		tv := findIntent(intents, TypeViolation, "body.name")
		require.NotNil(t, tv)
		assert.Equal(t, 400, tv.Expected)
		assert.NotNil(t, findIntent(intents, NullNotAllowed, "body.name"))
	})

	t.Run("security evidence", func(t *testing.T) {
		doc := signatureDoc(ir.SourceGo, signatureOp("CreateAccount stores unsanitized user input."))

		intents, err := Generate(doc, DefaultConfig())
		require.NoError(t, err)

		sqli := findIntent(intents, SQLInjection, "body.comment")
		require.NotNil(t, sqli)
		assert.Equal(t, 422, sqli.Expected)
		assert.NotNil(t, findIntent(intents, XSSInjection, "body.comment"))
	})
}

func TestGenerateTypeScriptFlatError(t *testing.T) {
	doc := signatureDoc(ir.SourceTypeScript, signatureOp("createAccount opens an account."))

	intents, err := Generate(doc, DefaultConfig())
	require.NoError(t, err)

	// The runtime enforces nothing itself, so structural and constraint
	// violations collapse into one error class.
	missing := findIntent(intents, RequiredFieldMissing, "body.name")
	require.NotNil(t, missing)
	assert.Equal(t, 400, missing.Expected)

	short := findIntent(intents, BoundaryMinLengthMinusOne, "body.name")
	require.NotNil(t, short)
	assert.Equal(t, 400, short.Expected)

	// Ungated: type confusion applies without evidence.
	assert.NotNil(t, findIntent(intents, TypeViolation, "body.balance"))
}

func TestGenerateStringRobustnessGates(t *testing.T) {
	doc := signatureDoc(ir.SourceGo, signatureOp(""))

	intents, err := Generate(doc, DefaultConfig())
	require.NoError(t, err)

	// name has minLength >= 1, so emptiness is rejectable.
	empty := findIntent(intents, EmptyString, "body.name")
	require.NotNil(t, empty)
	assert.Equal(t, 422, empty.Expected)
	assert.NotNil(t, findIntent(intents, WhitespaceOnly, "body.name"))

	// comment has no constraint that an empty string could violate.
	assert.Nil(t, findIntent(intents, EmptyString, "body.comment"))
	assert.Nil(t, findIntent(intents, WhitespaceOnly, "body.comment"))
}

func TestGenerateNestedArrayTargets(t *testing.T) {
	op := ir.Operation{
		ID:     "createOrder",
		Method: "POST",
		Path:   "/orders",
		Body: &ir.Body{Required: true, Schema: &schema.Node{
			Kind: schema.KindObject,
			Properties: []schema.Field{
				{Name: "tags", Schema: &schema.Node{
					Kind:        schema.KindArray,
					Items:       &schema.Node{Kind: schema.KindString},
					MinItems:    intPtr(1),
					UniqueItems: true,
				}},
				{Name: "lines", Schema: &schema.Node{
					Kind: schema.KindArray,
					Items: &schema.Node{
						Kind: schema.KindObject,
						Properties: []schema.Field{
							{Name: "sku", Required: true, Schema: &schema.Node{Kind: schema.KindString}},
						},
						Required: []string{"sku"},
					},
				}},
			},
		}},
		Outputs: []ir.Output{{Status: 201}, {Status: 400}},
	}
	doc := openapiDoc(op)

	intents, err := Generate(doc, DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, findIntent(intents, ArrayItemTypeViolation, "body.tags"))
	assert.NotNil(t, findIntent(intents, BoundaryMinItemsMinusOne, "body.tags"))
	assert.NotNil(t, findIntent(intents, ArrayNotUnique, "body.tags"))

	inner := findIntent(intents, RequiredFieldMissing, "body.lines[].sku")
	require.NotNil(t, inner)
	assert.Equal(t, []string{"lines", "[]", "sku"}, inner.Path)
}

func TestGenerateRefResolution(t *testing.T) {
	doc := openapiDoc(ir.Operation{
		ID:     "createInvoice",
		Method: "POST",
		Path:   "/invoices",
		Body: &ir.Body{Required: true, Schema: &schema.Node{
			Kind: schema.KindRef, Ref: "Invoice",
		}},
		Outputs: []ir.Output{{Status: 201}, {Status: 400}},
	})
	doc.Types = []schema.TypeDefinition{{
		Name: "Invoice",
		Schema: &schema.Node{
			Kind: schema.KindObject,
			Properties: []schema.Field{
				{Name: "currency", Required: true, Schema: &schema.Node{
					Kind:       schema.KindEnum,
					EnumValues: []any{"EUR", "USD"},
					EnumBase:   schema.KindString,
				}},
			},
			Required: []string{"currency"},
		},
	}}

	intents, err := Generate(doc, DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, findIntent(intents, RequiredFieldMissing, "body.currency"))
	assert.NotNil(t, findIntent(intents, EnumMismatch, "body.currency"))
}

func TestGenerateUnknownSourceKind(t *testing.T) {
	doc := &ir.Document{
		Version: ir.Version,
		Source:  ir.Provenance{Kind: "graphql"},
	}
	_, err := Generate(doc, DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rule engine")
}
