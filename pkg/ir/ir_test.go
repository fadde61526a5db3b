package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/schema"
)

func sampleProvenance() Provenance {
	return Provenance{Kind: SourceOpenAPI, Name: "orders-api", Hash: Fingerprint([]byte("raw input"))}
}

func sampleOps() []Operation {
	return []Operation{
		{
			ID: "updateOrder", Method: "PUT", Path: "/orders/{order_id}",
			Parameters: []Parameter{
				{Name: "order_id", Location: LocationPath, Required: true, Schema: &schema.Node{Kind: schema.KindInteger}},
			},
			Body:    &Body{ContentType: "application/json", Required: true, Schema: &schema.Node{Kind: schema.KindRef, Ref: "Order"}},
			Outputs: []Output{{Status: 404}, {Status: 200}, {Status: 400}},
		},
		{
			ID: "createOrder", Method: "POST", Path: "/orders",
			Body:    &Body{ContentType: "application/json", Required: true, Schema: &schema.Node{Kind: schema.KindRef, Ref: "Order"}},
			Outputs: []Output{{Status: 201}, {Status: 422}},
		},
	}
}

func sampleTypes() []schema.TypeDefinition {
	return []schema.TypeDefinition{
		{Name: "Order", Schema: &schema.Node{Kind: schema.KindObject, Properties: []schema.Field{
			{Name: "title", Schema: &schema.Node{Kind: schema.KindString}, Required: true},
		}, Required: []string{"title"}}},
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint([]byte("hello"))
	b := Fingerprint([]byte("hello"))
	c := Fingerprint([]byte("hello "))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, a)
}

func TestBuildSortsDeterministically(t *testing.T) {
	doc, err := Build(sampleProvenance(), sampleOps(), sampleTypes())
	require.NoError(t, err)

	assert.Equal(t, Version, doc.Version)
	require.Len(t, doc.Operations, 2)
	assert.Equal(t, "createOrder", doc.Operations[0].ID)
	assert.Equal(t, "updateOrder", doc.Operations[1].ID)

	statuses := []int{}
	for _, out := range doc.Operations[1].Outputs {
		statuses = append(statuses, out.Status)
	}
	assert.Equal(t, []int{200, 400, 404}, statuses)
}

func TestBuildRejectsDuplicateIDs(t *testing.T) {
	ops := sampleOps()
	ops[1].ID = ops[0].ID
	_, err := Build(sampleProvenance(), ops, sampleTypes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate operation id")
}

func TestBuildIdempotentProvenance(t *testing.T) {
	raw := []byte(`{"openapi": "3.1.0"}`)
	first, err := Build(Provenance{Kind: SourceOpenAPI, Name: "api", Hash: Fingerprint(raw)}, sampleOps(), sampleTypes())
	require.NoError(t, err)
	second, err := Build(Provenance{Kind: SourceOpenAPI, Name: "api", Hash: Fingerprint(raw)}, sampleOps(), sampleTypes())
	require.NoError(t, err)
	assert.Equal(t, first.Source, second.Source)
	assert.Equal(t, first, second)
}

func TestStatusSelection(t *testing.T) {
	tests := []struct {
		name        string
		outputs     []Output
		wantSuccess int
		wantError   int
	}{
		{"declared both", []Output{{Status: 201}, {Status: 400}}, 201, 400},
		{"nothing declared", nil, 200, 422},
		{"only errors declared", []Output{{Status: 409}}, 200, 409},
		{"redirect counts as success", []Output{{Status: 302}}, 302, 422},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := Operation{Outputs: tt.outputs}
			assert.Equal(t, tt.wantSuccess, op.SuccessStatus())
			assert.Equal(t, tt.wantError, op.ErrorStatus())
		})
	}
}

func TestValidateAcceptsBuiltDocument(t *testing.T) {
	doc, err := Build(sampleProvenance(), sampleOps(), sampleTypes())
	require.NoError(t, err)
	require.NoError(t, Validate(doc))
}

func TestValidateRejectsBadHash(t *testing.T) {
	doc, err := Build(sampleProvenance(), sampleOps(), sampleTypes())
	require.NoError(t, err)
	doc.Source.Hash = "md5:abc"

	err = Validate(doc)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Path, "source")
}

func TestValidateRejectsUnresolvedRef(t *testing.T) {
	doc, err := Build(sampleProvenance(), sampleOps(), nil)
	require.NoError(t, err)

	err = Validate(doc)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "Order")
}

func TestValidateRejectsBadStatus(t *testing.T) {
	doc, err := Build(sampleProvenance(), sampleOps(), sampleTypes())
	require.NoError(t, err)
	doc.Operations[0].Outputs[0].Status = 503

	err = Validate(doc)
	require.Error(t, err)
}
