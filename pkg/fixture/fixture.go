// Package fixture plans the resource prerequisites of generated test
// cases. Reading, updating or deleting a resource only makes sense after
// something created it; the analyzer finds those dependencies, the
// planner decides how each prerequisite gets created, and the compiler
// orders the steps and binds created identifiers into the cases.
package fixture

import (
	"fmt"
)

// Placeholder marks a path-parameter value the test runner must replace
// with an identifier extracted from a setup step's response.
const Placeholder = "USE_CREATED_RESOURCE"

// Dependency is one path parameter that addresses a resource some other
// operation has to create first.
type Dependency struct {
	Param    string `json:"param"`
	Resource string `json:"resource"`
	// CreateOp is the operation that creates the resource, empty when the
	// analyzer found none.
	CreateOp string `json:"createOp,omitempty"`
}

// PayloadSource records how a setup step's body was chosen.
type PayloadSource string

const (
	SourceGolden  PayloadSource = "golden"
	SourceMinimal PayloadSource = "minimal"
	SourceEmpty   PayloadSource = "empty"
)

// Step is one setup or teardown action.
type Step struct {
	OperationID string        `json:"operationId,omitempty"`
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Resource    string        `json:"resource"`
	Variable    string        `json:"variable"`
	Identifier  string        `json:"identifier"`
	Body        any           `json:"body,omitempty"`
	Source      PayloadSource `json:"source,omitempty"`
}

// Plan is the compiled prerequisite schedule for one operation: setup
// steps in execution order, teardown in exactly the reverse order, and
// the placeholder bindings its test cases rely on.
type Plan struct {
	OperationID string `json:"operationId"`
	Setup       []Step `json:"setup,omitempty"`
	Teardown    []Step `json:"teardown,omitempty"`
	// Bindings maps each path parameter to the variable.field expression
	// that replaces its Placeholder at run time.
	Bindings map[string]string `json:"bindings,omitempty"`
}

// Required reports whether the plan carries any setup work.
func (p *Plan) Required() bool {
	return p != nil && len(p.Setup) > 0
}

// SetupError distinguishes a failed prerequisite from a failed assertion:
// a runner that cannot complete a setup step must report the depending
// case with this error, not as a test failure.
type SetupError struct {
	Step Step
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed: %s %s (%s): %v", e.Step.Method, e.Step.Path, e.Step.Resource, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }
