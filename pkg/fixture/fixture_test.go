package fixture

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/intent"
	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/payload"
	"github.com/specforge/specforge/pkg/schema"
)

func intPtr(v int) *int { return &v }

func storeDoc() *ir.Document {
	orderSchema := &schema.Node{
		Kind: schema.KindObject,
		Properties: []schema.Field{
			{Name: "title", Required: true, Schema: &schema.Node{
				Kind: schema.KindString, MinLength: intPtr(5),
			}},
			{Name: "customer_email", Required: true, Schema: &schema.Node{
				Kind: schema.KindString, Format: "email",
			}},
			{Name: "note", Schema: &schema.Node{Kind: schema.KindString}},
		},
		Required: []string{"title", "customer_email"},
	}
	createdSchema := &schema.Node{
		Kind: schema.KindObject,
		Properties: []schema.Field{
			{Name: "id", Required: true, Schema: &schema.Node{
				Kind: schema.KindString, Format: "uuid",
			}},
		},
		Required: []string{"id"},
	}

	return &ir.Document{
		Version: ir.Version,
		Source: ir.Provenance{
			Kind: ir.SourceOpenAPI,
			Name: "store.yaml",
			Hash: "sha256:" + fmt.Sprintf("%064d", 0),
		},
		Operations: []ir.Operation{
			{
				ID: "createOrder", Method: "POST", Path: "/orders",
				Body:    &ir.Body{Required: true, Schema: orderSchema},
				Outputs: []ir.Output{{Status: 201, Schema: createdSchema}, {Status: 400}},
			},
			{
				ID: "getOrder", Method: "GET", Path: "/orders/{order_id}",
				Parameters: []ir.Parameter{{
					Name: "order_id", Location: ir.LocationPath, Required: true,
					Schema: &schema.Node{Kind: schema.KindString, Format: "uuid"},
				}},
				Outputs: []ir.Output{{Status: 200}, {Status: 404}},
			},
			{
				ID: "deleteOrder", Method: "DELETE", Path: "/orders/{order_id}",
				Parameters: []ir.Parameter{{
					Name: "order_id", Location: ir.LocationPath, Required: true,
					Schema: &schema.Node{Kind: schema.KindString, Format: "uuid"},
				}},
				Outputs: []ir.Output{{Status: 204}, {Status: 404}},
			},
			{
				ID: "listOrders", Method: "GET", Path: "/orders",
				Outputs: []ir.Output{{Status: 200}},
			},
		},
	}
}

func TestNeedsSetup(t *testing.T) {
	doc := storeDoc()
	assert.True(t, NeedsSetup(doc.Operation("getOrder")))
	assert.True(t, NeedsSetup(doc.Operation("deleteOrder")))
	assert.False(t, NeedsSetup(doc.Operation("createOrder")), "creation has no prerequisites")
	assert.False(t, NeedsSetup(doc.Operation("listOrders")), "no path parameters, nothing to create")
}

func TestDependencies(t *testing.T) {
	doc := storeDoc()
	deps := NewAnalyzer(doc).Dependencies(doc.Operation("getOrder"))
	require.Len(t, deps, 1)
	assert.Equal(t, "order_id", deps[0].Param)
	assert.Equal(t, "order", deps[0].Resource)
	assert.Equal(t, "createOrder", deps[0].CreateOp)
}

func TestDependencyViaEnclosingCollection(t *testing.T) {
	// the parameter name carries no resource, so it is inferred from the
	// enclosing path segment
	doc := storeDoc()
	doc.Operations = append(doc.Operations, ir.Operation{
		ID: "getReceipt", Method: "GET", Path: "/receipts/{ref}",
		Parameters: []ir.Parameter{{
			Name: "ref", Location: ir.LocationPath, Required: true,
			Schema: &schema.Node{Kind: schema.KindString},
		}},
		Outputs: []ir.Output{{Status: 200}},
	}, ir.Operation{
		ID: "createReceipt", Method: "POST", Path: "/receipts",
		Outputs: []ir.Output{{Status: 201}},
	})

	deps := NewAnalyzer(doc).Dependencies(doc.Operation("getReceipt"))
	require.Len(t, deps, 1)
	assert.Equal(t, "receipt", deps[0].Resource)
	assert.Equal(t, "createReceipt", deps[0].CreateOp)
}

func TestResourceName(t *testing.T) {
	tests := []struct {
		param, path, want string
	}{
		{"order_id", "/orders/{order_id}", "order"},
		{"userId", "/users/{userId}", "user"},
		{"id", "/invoices/{id}", "invoice"},
		{"ref", "/receipts/{ref}", "receipt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resourceName(tt.param, tt.path), "%s in %s", tt.param, tt.path)
	}
}

func TestPlanPrefersGoldenPayload(t *testing.T) {
	doc := storeDoc()
	golden := map[string]any{
		"createOrder": map[string]any{
			"title":          "sample_string",
			"customer_email": "user@example.com",
			"note":           "sample_string",
		},
	}
	planner, err := NewPlanner(doc, golden)
	require.NoError(t, err)

	plan, err := planner.Plan(doc.Operation("getOrder"))
	require.NoError(t, err)
	require.True(t, plan.Required())
	require.Len(t, plan.Setup, 1)

	step := plan.Setup[0]
	assert.Equal(t, SourceGolden, step.Source)
	assert.Equal(t, golden["createOrder"], step.Body)
	assert.Equal(t, "created_order", step.Variable)
	assert.Equal(t, "id", step.Identifier)
	assert.Equal(t, "created_order.id", plan.Bindings["order_id"])
}

func TestPlanMinimalPayloadHeuristics(t *testing.T) {
	planner, err := NewPlanner(storeDoc(), nil)
	require.NoError(t, err)

	plan, err := planner.Plan(storeDoc().Operation("getOrder"))
	require.NoError(t, err)
	require.Len(t, plan.Setup, 1)

	step := plan.Setup[0]
	assert.Equal(t, SourceMinimal, step.Source)
	body, ok := step.Body.(map[string]any)
	require.True(t, ok)

	// required fields only, with name-pattern values
	assert.Equal(t, "test@example.com", body["customer_email"])
	assert.Equal(t, "Test Resource", body["title"])
	assert.NotContains(t, body, "note")
}

func TestPlanTeardownReversesSetup(t *testing.T) {
	planner, err := NewPlanner(storeDoc(), nil)
	require.NoError(t, err)

	plan, err := planner.Plan(storeDoc().Operation("getOrder"))
	require.NoError(t, err)
	require.Len(t, plan.Teardown, 1)
	assert.Equal(t, "deleteOrder", plan.Teardown[0].OperationID)
	assert.Equal(t, "created_order", plan.Teardown[0].Variable)
}

func TestPlanWithoutCreator(t *testing.T) {
	doc := storeDoc()
	doc.Operations = doc.Operations[1:2] // only getOrder survives

	planner, err := NewPlanner(doc, nil)
	require.NoError(t, err)
	plan, err := planner.Plan(doc.Operation("getOrder"))
	require.NoError(t, err)
	require.Len(t, plan.Setup, 1)

	step := plan.Setup[0]
	assert.Equal(t, SourceEmpty, step.Source)
	assert.Equal(t, "POST", step.Method)
	assert.Equal(t, "/orders", step.Path)
	assert.Equal(t, map[string]any{}, step.Body)
}

func TestBindReplacesOnlyUntargetedParams(t *testing.T) {
	plan := &Plan{
		OperationID: "getOrder",
		Setup:       []Step{{Resource: "order", Variable: "created_order", Identifier: "id"}},
		Bindings:    map[string]string{"order_id": "created_order.id"},
	}
	plans := map[string]*Plan{"getOrder": plan}

	cases := []payload.TestCase{
		{
			OperationID: "getOrder",
			Intent:      intent.Intent{Kind: intent.HappyPath, Target: "operation"},
			PathParams:  map[string]any{"order_id": "550e8400-e29b-41d4-a716-446655440000"},
		},
		{
			OperationID: "getOrder",
			Intent: intent.Intent{
				Kind: intent.ResourceNotFound, Target: "path.order_id",
				Location: ir.LocationPath, Param: "order_id",
			},
			PathParams: map[string]any{"order_id": "00000000-0000-0000-0000-000000000000"},
		},
	}

	bound := Bind(plans, cases)
	assert.Equal(t, Placeholder, bound[0].PathParams["order_id"],
		"happy case runs against the created resource")
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", bound[1].PathParams["order_id"],
		"a not-found probe must keep its unassigned identifier")
}

func TestSetupErrorIsDistinct(t *testing.T) {
	err := &SetupError{
		Step: Step{Method: "POST", Path: "/orders", Resource: "order"},
		Err:  assert.AnError,
	}
	assert.Contains(t, err.Error(), "setup failed")
	assert.ErrorIs(t, err, assert.AnError)
}
