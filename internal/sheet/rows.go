package sheet

import (
	"strconv"
	"strings"
)

// Row is one record returned by the store, keyed by column header.
type Row map[string]any

// String returns the cell as text. Numbers drop trailing zeros and booleans use the
// spreadsheet spelling ("TRUE"/"FALSE").
func (r Row) String(key string) string {
	switch value := r[key].(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case bool:
		if value {
			return "TRUE"
		}
		return "FALSE"
	default:
		return ""
	}
}

// Trimmed returns the cell as trimmed text.
func (r Row) Trimmed(key string) string {
	return strings.TrimSpace(r.String(key))
}
