package retrieval

import (
	"encoding/json"
	"fmt"
)

// MatchesFilters reports whether metadata satisfies every filter. A scalar
// expected value must equal the chunk value (or be contained in a list value);
// a list expected value must intersect it. Missing keys never match.
func MatchesFilters(metadata map[string]any, filters map[string]any) bool {
	for key, expected := range filters {
		actual, ok := metadata[key]
		if !ok || actual == nil {
			return false
		}
		if !matchesValue(actual, expected) {
			return false
		}
	}
	return true
}

func matchesValue(actual, expected any) bool {
	actualList, actualIsList := asList(actual)
	expectedList, expectedIsList := asList(expected)

	switch {
	case expectedIsList:
		if !actualIsList {
			actualList = []any{actual}
		}
		return intersects(actualList, expectedList)
	case actualIsList:
		return contains(actualList, expected)
	default:
		return equalValues(actual, expected)
	}
}

func intersects(a, b []any) bool {
	for _, item := range b {
		if contains(a, item) {
			return true
		}
	}
	return false
}

func contains(list []any, value any) bool {
	for _, item := range list {
		if equalValues(item, value) {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = item
		}
		return out, true
	case []int:
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = item
		}
		return out, true
	case []int64:
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = item
		}
		return out, true
	case []float64:
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}
