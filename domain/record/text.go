package record

import (
	"fmt"
	"strconv"
	"strings"
)

// Text renders a scalar value the way it is shown in a single-line field.
// Null renders as the empty string.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case *Map:
		parts := make([]string, 0, t.Len())
		t.Range(func(k string, v any) bool {
			parts = append(parts, k+": "+Text(v))
			return true
		})
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = Text(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(t)
	}
}
