package fixture

import (
	"github.com/specforge/specforge/pkg/payload"
)

// Bind wires compiled plans into generated test cases: every bound path
// parameter gets the Placeholder value, to be substituted at run time
// with the created resource's identifier per the plan's Bindings.
//
// A case whose intent targets the parameter itself keeps its mutated
// value; binding it would erase the very thing the case probes.
func Bind(plans map[string]*Plan, cases []payload.TestCase) []payload.TestCase {
	for i := range cases {
		tc := &cases[i]
		plan := plans[tc.OperationID]
		if !plan.Required() {
			continue
		}
		for param := range plan.Bindings {
			if tc.Intent.Param == param {
				continue
			}
			if _, declared := tc.PathParams[param]; declared {
				tc.PathParams[param] = Placeholder
			}
		}
	}
	return cases
}
