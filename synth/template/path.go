package template

import (
	"strconv"
	"strings"
)

// resolvePath walks a dotted path with optional [index] array access through
// nested maps and slices. Returns nil, false when any segment is missing or
// of the wrong shape.
func resolvePath(data map[string]any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}

	var current any = data
	for _, segment := range strings.Split(path, ".") {
		name, index, hasIndex, ok := splitIndex(segment)
		if !ok {
			return nil, false
		}

		if name != "" {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			current, ok = m[name]
			if !ok {
				return nil, false
			}
		}

		if hasIndex {
			arr, ok := current.([]any)
			if !ok {
				return nil, false
			}
			if index < 0 || index >= len(arr) {
				return nil, false
			}
			current = arr[index]
		}
	}
	return current, true
}

// splitIndex splits "name[3]" into its name and index parts.
func splitIndex(segment string) (name string, index int, hasIndex bool, ok bool) {
	open := strings.IndexByte(segment, '[')
	if open < 0 {
		return segment, 0, false, true
	}
	if !strings.HasSuffix(segment, "]") {
		return "", 0, false, false
	}
	idx, err := strconv.Atoi(segment[open+1 : len(segment)-1])
	if err != nil {
		return "", 0, false, false
	}
	return segment[:open], idx, true, true
}

// truthy reports whether a resolved value counts as true in a bare-path
// conditional: non-null, non-empty string/array/map, non-zero number,
// boolean itself.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return true
	}
}

// asNumber coerces a value to float64 for numeric comparisons.
func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
