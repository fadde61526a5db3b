package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "embed"

	jsValidator "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema.json
var metaSchemaJSON string

var (
	metaOnce       sync.Once
	metaValidator  *jsValidator.Schema
	defaultPrinter = message.NewPrinter(language.English)
)

// ValidationError reports a document that violates the IR meta-schema.
// It is fatal for the run that produced it: downstream stages assume a
// validated document and must never see a malformed one.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("ir: invalid document: %s", e.Message)
	}
	return fmt.Sprintf("ir: invalid document at %s: %s", e.Path, e.Message)
}

func metaSchema() *jsValidator.Schema {
	metaOnce.Do(func() {
		raw, err := jsValidator.UnmarshalJSON(strings.NewReader(metaSchemaJSON))
		if err != nil {
			panic(err)
		}
		c := jsValidator.NewCompiler()
		if err := c.AddResource("schema.json", raw); err != nil {
			panic(err)
		}
		metaValidator = c.MustCompile("schema.json")
	})
	return metaValidator
}

// Validate checks a document against the embedded meta-schema. The check
// fails closed: any shape the meta-schema does not explicitly allow is an
// error.
func Validate(d *Document) error {
	if d == nil {
		return &ValidationError{Message: "document is nil"}
	}

	buf, err := json.Marshal(d)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	decoded, err := jsValidator.UnmarshalJSON(bytes.NewReader(buf))
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}

	if err := metaSchema().Validate(decoded); err != nil {
		var ve *jsValidator.ValidationError
		if errors.As(err, &ve) {
			cause := rootCause(ve)
			return &ValidationError{
				Path:    "/" + strings.Join(cause.InstanceLocation, "/"),
				Message: cause.ErrorKind.LocalizedString(defaultPrinter),
			}
		}
		return &ValidationError{Message: err.Error()}
	}

	// The meta-schema cannot see the type arena as a namespace; referential
	// integrity is checked here.
	reg, err := d.TypeRegistry()
	if err != nil {
		return &ValidationError{Path: "/types", Message: err.Error()}
	}
	for i := range d.Operations {
		op := &d.Operations[i]
		for _, p := range op.Parameters {
			if _, err := reg.Resolve(p.Schema); err != nil {
				return &ValidationError{Path: "/operations/" + op.ID + "/parameters/" + p.Name, Message: err.Error()}
			}
		}
		if op.Body != nil {
			if _, err := reg.Resolve(op.Body.Schema); err != nil {
				return &ValidationError{Path: "/operations/" + op.ID + "/body", Message: err.Error()}
			}
		}
	}
	return nil
}

// rootCause walks to the deepest single-branch failure, which is the one
// worth reporting.
func rootCause(ve *jsValidator.ValidationError) *jsValidator.ValidationError {
	for len(ve.Causes) == 1 {
		ve = ve.Causes[0]
	}
	if len(ve.Causes) > 1 {
		return ve.Causes[0]
	}
	return ve
}
