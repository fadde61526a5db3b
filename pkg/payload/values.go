package payload

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/specforge/specforge/pkg/schema"
)

// Marker values the mutators plant. They are deliberately recognizable:
// when one leaks into a rendered test the defect is obvious at a glance.
const (
	invalidTypeValue   = "__INVALID_TYPE__"
	invalidEnumValue   = "INVALID_ENUM_VALUE"
	invalidPatternText = "!!!invalid!!!"
	invalidHeaderEnum  = "INVALID_HEADER_ENUM"
	unknownVariantTag  = "__UNKNOWN_VARIANT__"

	headerInjectionValue = "ValidValue\r\nSet-Cookie: evil=true"

	sqlInjectionValue     = "' OR '1'='1"
	xssInjectionValue     = "<script>alert(1)</script>"
	pathTraversalValue    = "../../etc/passwd"
	commandInjectionValue = "; cat /etc/passwd"

	notFoundResourceName = "nonexistent_resource"
	notFoundInteger      = 999999

	goldenUUID     = "550e8400-e29b-41d4-a716-446655440000"
	goldenDateTime = "2024-01-15T10:30:00Z"
	goldenDate     = "2024-01-15"
	goldenEmail    = "user@example.com"
	goldenURI      = "https://example.com/resource"
	goldenString   = "sample_string"
)

// notFoundUUID is syntactically valid and, being the nil UUID, never
// assigned by any generator.
var notFoundUUID = uuid.Nil.String()

// step is the unit of boundary arithmetic: the declared multipleOf when
// present, otherwise 1 for integers and 0.01 for fractional numbers.
func step(n *schema.Node) float64 {
	if n.MultipleOf != nil {
		return *n.MultipleOf
	}
	if n.Kind == schema.KindInteger {
		return 1
	}
	return 0.01
}

// belowMinimum returns the largest value one step outside the lower bound.
// An exclusive minimum is itself already invalid.
func belowMinimum(n *schema.Node) any {
	v := *n.Minimum
	if !n.ExclusiveMinimum {
		v -= step(n)
	}
	return numericValue(n, v)
}

// aboveMaximum returns the smallest value one step outside the upper bound.
func aboveMaximum(n *schema.Node) any {
	v := *n.Maximum
	if !n.ExclusiveMaximum {
		v += step(n)
	}
	return numericValue(n, v)
}

// offGrid shifts a grid-aligned value by half a step so it can satisfy
// every other constraint while failing multipleOf.
func offGrid(n *schema.Node, aligned float64) float64 {
	return aligned + *n.MultipleOf/2
}

// numericValue renders a float as the node's JSON numeric type.
func numericValue(n *schema.Node, v float64) any {
	if n.Kind == schema.KindInteger {
		return int(math.Round(v))
	}
	return v
}

// conflictingValue returns a value that cannot satisfy the node's type.
// String-shaped nodes get a number, everything else gets the string marker.
func conflictingValue(n *schema.Node) any {
	if n != nil && (n.Kind == schema.KindString || (n.Kind == schema.KindEnum && n.EnumBase == schema.KindString)) {
		return 12345
	}
	return invalidTypeValue
}

// invalidFormatValue is a string that no recognized format accepts.
func invalidFormatValue(format string) string {
	return "invalid-" + strings.ReplaceAll(format, " ", "-")
}
