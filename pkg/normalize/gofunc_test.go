package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specforge/specforge/pkg/ir"
	"github.com/specforge/specforge/pkg/schema"
)

const accountsSource = `package accounts

import (
	"context"
	"time"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

type Account struct {
	ID        string    ` + "`json:\"id\"`" + `
	Email     string    ` + "`json:\"email\"`" + `
	Nickname  *string   ` + "`json:\"nickname,omitempty\"`" + `
	CreatedAt time.Time ` + "`json:\"created_at\"`" + `
	Status    Status    ` + "`json:\"status\"`" + `
}

// CreateAccount validates user input before persisting a new account.
func CreateAccount(ctx context.Context, email string, age int, nickname *string) (Account, error) {
	return Account{}, nil
}

// Deactivate flips an account to suspended.
func Deactivate(ctx context.Context, id string) error {
	return nil
}

func unexportedHelper(x int) int { return x }

// Sum takes a variadic argument, which has no stable wire shape.
func Sum(xs ...int) int { return 0 }
`

func normalizeAccounts(t *testing.T) *Result {
	t.Helper()
	res, err := Normalize([]byte(accountsSource), ir.SourceGo, "accounts.go")
	require.NoError(t, err)
	return res
}

func TestGoFunctions(t *testing.T) {
	res := normalizeAccounts(t)

	require.Len(t, res.Doc.Operations, 2)
	create := res.Doc.Operation("createAccount")
	require.NotNil(t, create)
	assert.Equal(t, "POST", create.Method)
	assert.Equal(t, "/create_account", create.Path)
	assert.Contains(t, create.Evidence.Doc, "validates user input")

	body := create.Body.Schema
	require.Equal(t, schema.KindObject, body.Kind)
	assert.True(t, body.AdditionalForbidden)
	require.Len(t, body.Properties, 3) // context param dropped

	email := body.Property("email")
	require.NotNil(t, email)
	assert.Equal(t, schema.KindString, email.Schema.Kind)
	assert.True(t, email.Required)

	age := body.Property("age")
	require.NotNil(t, age)
	assert.Equal(t, schema.KindInteger, age.Schema.Kind)

	nickname := body.Property("nickname")
	require.NotNil(t, nickname)
	assert.False(t, nickname.Required)
	assert.True(t, nickname.Schema.Nullable)

	require.Len(t, create.Outputs, 1)
	assert.Equal(t, 200, create.Outputs[0].Status)
	assert.Equal(t, "Account", create.Outputs[0].Schema.Ref)
}

func TestGoVariadicSkipped(t *testing.T) {
	res := normalizeAccounts(t)

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "Sum", res.Skipped[0].Fragment)
	assert.Contains(t, res.Skipped[0].Error(), "variadic")
	// the failing fragment never blocks its siblings
	assert.NotNil(t, res.Doc.Operation("deactivate"))
}

func TestGoTypeArena(t *testing.T) {
	res := normalizeAccounts(t)

	reg, err := res.Doc.TypeRegistry()
	require.NoError(t, err)
	assert.Equal(t, []string{"Account", "Status"}, reg.Names())

	status, ok := reg.Lookup("Status")
	require.True(t, ok)
	assert.Equal(t, schema.KindEnum, status.Schema.Kind)
	assert.Equal(t, schema.KindString, status.Schema.EnumBase)
	assert.Equal(t, []any{"active", "suspended"}, status.Schema.EnumValues)

	account, ok := reg.Lookup("Account")
	require.True(t, ok)
	require.Equal(t, schema.KindObject, account.Schema.Kind)
	created := account.Schema.Property("created_at")
	require.NotNil(t, created)
	assert.Equal(t, "date-time", created.Schema.Format)
	nickname := account.Schema.Property("nickname")
	require.NotNil(t, nickname)
	assert.False(t, nickname.Required)
}

func TestGoMapAndSliceTypes(t *testing.T) {
	src := `package x

func Tally(counts map[string]int, labels []string) map[string]int { return nil }
`
	res, err := Normalize([]byte(src), ir.SourceGo, "x.go")
	require.NoError(t, err)

	body := res.Doc.Operation("tally").Body.Schema
	counts := body.Property("counts")
	require.NotNil(t, counts)
	assert.Equal(t, schema.KindObject, counts.Schema.Kind)
	assert.Equal(t, schema.KindInteger, counts.Schema.AdditionalProperties.Kind)
	labels := body.Property("labels")
	require.NotNil(t, labels)
	assert.Equal(t, schema.KindArray, labels.Schema.Kind)
}

func TestGoRejectsUnparseableSource(t *testing.T) {
	_, err := Normalize([]byte("not go at all"), ir.SourceGo, "bad.go")
	require.Error(t, err)
}
