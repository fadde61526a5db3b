package enhance

import (
	"fmt"
	"strings"
)

const systemPrompt = `You improve test payloads for API test suites.
You receive one JSON payload whose values were synthesized mechanically.
Replace the values with realistic, domain-appropriate ones.
Hard rules:
- Keep every key exactly as it is. Add nothing, remove nothing.
- Keep every value's JSON type. A string stays a string, a number a number.
- Keep every array at its current length.
- Values must still satisfy any obvious constraint the current value
  satisfies (formats like emails, UUIDs and timestamps keep their format).
Respond with the JSON payload only. No prose, no markdown fence.`

func userPrompt(payload string, ectx Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Operation: %s %s (%s)\n", ectx.Method, ectx.Path, ectx.OperationID)
	if ectx.Description != "" {
		fmt.Fprintf(&b, "Purpose: %s\n", ectx.Description)
	}
	b.WriteString("Payload:\n")
	b.WriteString(payload)
	return b.String()
}
