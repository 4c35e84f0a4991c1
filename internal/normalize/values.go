package normalize

import (
	"encoding/json"
	"strconv"

	"dota-pipeline/internal/domain"
)

// Untyped documents come from encoding/json with UseNumber, but fixtures and
// re-encoded payloads may carry plain Go numbers, so every accessor accepts both.

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int64(f), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case nil:
		return false, false
	}
	if i, ok := asInt(v); ok {
		return i != 0, true
	}
	return false, false
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case domain.RawDocument:
		return m, true
	}
	return nil, false
}

func asList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case []map[string]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out
	case []domain.RawDocument:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out
	}
	return nil
}

func intOrZero(m map[string]any, key string) int64 {
	i, _ := asInt(m[key])
	return i
}

func optInt(m map[string]any, key string) *int64 {
	if i, ok := asInt(m[key]); ok {
		return &i
	}
	return nil
}

func optBool(m map[string]any, key string) *bool {
	if b, ok := asBool(m[key]); ok {
		return &b
	}
	return nil
}

func str(m map[string]any, key string) string {
	switch s := m[key].(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	}
	return ""
}
