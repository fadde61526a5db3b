package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/enhance"
	"github.com/specforge/specforge/pkg/fixture"
	"github.com/specforge/specforge/pkg/intent"
	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/payload"
)

const storeSpec = `
openapi: 3.0.3
info:
  title: Store API
  version: 1.0.0
paths:
  /orders:
    post:
      operationId: createOrder
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Order'
      responses:
        '201':
          description: created
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/OrderCreated'
        '400':
          description: bad request
  /orders/{order_id}:
    get:
      operationId: getOrder
      parameters:
        - name: order_id
          in: path
          required: true
          schema:
            type: integer
      responses:
        '200':
          description: ok
        '404':
          description: missing
    delete:
      operationId: deleteOrder
      parameters:
        - name: order_id
          in: path
          required: true
          schema:
            type: integer
      responses:
        '204':
          description: gone
        '404':
          description: missing
components:
  schemas:
    Order:
      type: object
      required: [title, price]
      properties:
        title:
          type: string
          minLength: 5
        price:
          type: number
          minimum: 0.01
    OrderCreated:
      type: object
      required: [id]
      properties:
        id:
          type: integer
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runStore(t *testing.T, opts Options) *Bundle {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	if opts.Name == "" {
		opts.Name = "store.yaml"
	}
	bundle, err := Run(context.Background(), []byte(storeSpec), ir.SourceOpenAPI, opts)
	require.NoError(t, err)
	return bundle
}

func findCase(cases []payload.TestCase, opID string, kind intent.Kind) *payload.TestCase {
	for i := range cases {
		if cases[i].OperationID == opID && cases[i].Kind == kind {
			return &cases[i]
		}
	}
	return nil
}

func TestRunProducesCasesForEveryOperation(t *testing.T) {
	bundle := runStore(t, Options{})

	require.NotEmpty(t, bundle.Cases)
	for _, opID := range []string{"createOrder", "getOrder", "deleteOrder"} {
		assert.NotNilf(t, findCase(bundle.Cases, opID, intent.HappyPath), "no happy case for %s", opID)
	}

	happy := findCase(bundle.Cases, "createOrder", intent.HappyPath)
	require.True(t, happy.HasBody)
	body := happy.Body.(map[string]any)
	assert.Equal(t, "sample_string", body["title"])

	short := findCase(bundle.Cases, "createOrder", intent.BoundaryMinLengthMinusOne)
	require.NotNil(t, short)
	assert.Equal(t, "xxxx", short.Body.(map[string]any)["title"])
	assert.Equal(t, 400, short.ExpectedStatus)
}

func TestRunIsDeterministic(t *testing.T) {
	first := runStore(t, Options{})
	second := runStore(t, Options{Concurrency: 1})

	assert.Equal(t, first.Document.Source.Hash, second.Document.Source.Hash,
		"byte-identical input yields the same provenance hash")
	require.Equal(t, len(first.Cases), len(second.Cases))
	for i := range first.Cases {
		assert.Equal(t, first.Cases[i].Name, second.Cases[i].Name, "case order diverged at %d", i)
		assert.Equal(t, first.Cases[i].Body, second.Cases[i].Body)
	}
}

func TestRunBindsFixtures(t *testing.T) {
	bundle := runStore(t, Options{})

	plan := bundle.Plans["getOrder"]
	require.True(t, plan.Required())
	require.Len(t, plan.Setup, 1)
	assert.Equal(t, "createOrder", plan.Setup[0].OperationID)
	assert.Equal(t, fixture.SourceGolden, plan.Setup[0].Source)
	assert.Equal(t, "created_order.id", plan.Bindings["order_id"])

	happy := findCase(bundle.Cases, "getOrder", intent.HappyPath)
	assert.Equal(t, fixture.Placeholder, happy.PathParams["order_id"])

	notFound := findCase(bundle.Cases, "getOrder", intent.ResourceNotFound)
	require.NotNil(t, notFound)
	assert.Equal(t, 999999, notFound.PathParams["order_id"],
		"the not-found probe keeps its unassigned identifier")
	assert.Equal(t, 404, notFound.ExpectedStatus)
}

type failingProvider struct{ calls int }

func (p *failingProvider) Complete(context.Context, *enhance.Request) (*enhance.Response, error) {
	p.calls++
	return nil, errors.New("gateway unreachable")
}

func TestRunSurvivesEnhancementOutage(t *testing.T) {
	gw := enhance.NewGateway(enhance.Options{
		Provider:   &failingProvider{},
		Threshold:  2,
		MaxRetries: 1,
		Logger:     quietLogger(),
	})
	bundle := runStore(t, Options{Enhancer: gw, Concurrency: 1})

	assert.NotEmpty(t, bundle.Fallbacks, "fallbacks are observable, not swallowed")
	happy := findCase(bundle.Cases, "createOrder", intent.HappyPath)
	require.True(t, happy.HasBody)
	assert.Equal(t, "sample_string", happy.Body.(map[string]any)["title"],
		"the deterministic payload survives the outage")
}

func TestRunRejectsUnusableInput(t *testing.T) {
	_, err := Run(context.Background(), []byte("not: [valid"), ir.SourceOpenAPI, Options{Logger: quietLogger()})
	assert.Error(t, err)

	_, err = Run(context.Background(), []byte(storeSpec), "graphql", Options{Logger: quietLogger()})
	assert.Error(t, err)
}
