package catalog

import "fmt"

// ValidationError describes a malformed store row. The row is dropped unless Kept is set;
// the run continues.
type ValidationError struct {
	Tab    string `json:"tab"`
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
	Kept   bool   `json:"kept,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s row %d: %s %q: %s", e.Tab, e.Row, e.Field, e.Value, e.Reason)
}
