package enhance

import (
	"fmt"
	"sort"
)

// checkStructure verifies the enhanced value is a drop-in replacement for
// the original: identical key sets at every nesting level, identical
// array lengths and compatible scalar types. The model may change values,
// never shape.
func checkStructure(original, enhanced any, path string) error {
	switch orig := original.(type) {
	case map[string]any:
		enh, ok := enhanced.(map[string]any)
		if !ok {
			return mismatch(path, "object", enhanced)
		}
		if len(orig) != len(enh) {
			return fmt.Errorf("%s: key set changed: %v != %v", at(path), keys(orig), keys(enh))
		}
		for k, ov := range orig {
			ev, present := enh[k]
			if !present {
				return fmt.Errorf("%s: key %q dropped", at(path), k)
			}
			if err := checkStructure(ov, ev, join(path, k)); err != nil {
				return err
			}
		}
		return nil

	case []any:
		enh, ok := enhanced.([]any)
		if !ok {
			return mismatch(path, "array", enhanced)
		}
		if len(orig) != len(enh) {
			return fmt.Errorf("%s: array length changed: %d != %d", at(path), len(orig), len(enh))
		}
		for i := range orig {
			if err := checkStructure(orig[i], enh[i], fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil

	case string:
		if _, ok := enhanced.(string); !ok {
			return mismatch(path, "string", enhanced)
		}
		return nil

	case bool:
		if _, ok := enhanced.(bool); !ok {
			return mismatch(path, "boolean", enhanced)
		}
		return nil

	case nil:
		// the original value carries no type information; anything fits
		return nil

	default:
		if !isNumber(original) {
			return fmt.Errorf("%s: unexpected original type %T", at(path), original)
		}
		if !isNumber(enhanced) {
			return mismatch(path, "number", enhanced)
		}
		return nil
	}
}

// isNumber accepts every numeric rendition a payload can arrive in: the
// synthesizer emits int and float64, JSON decoding emits float64.
func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

func mismatch(path, want string, got any) error {
	return fmt.Errorf("%s: type changed: want %s, got %T", at(path), want, got)
}

func at(path string) string {
	if path == "" {
		return "payload"
	}
	return path
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
