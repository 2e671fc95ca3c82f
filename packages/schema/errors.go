package schema

import (
	"strings"
)

// Violation is one schema rule broken by a document.
type Violation struct {
	// Pointer locates the offending value, e.g. "#/0/name/common".
	Pointer string
	Field   string
	Type    string
	Message string
}

// ValidationError aggregates every violation found in one document.
type ValidationError struct {
	Schema     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("Schema validation failed:\n")
	for _, v := range e.Violations {
		sb.WriteString(" - ")
		sb.WriteString(v.Pointer)
		sb.WriteString(": ")
		sb.WriteString(v.Message)
		sb.WriteByte('\n')
	}
	for _, v := range e.Violations {
		sb.WriteString(" at ")
		sb.WriteString(v.Pointer)
		sb.WriteString(" : ")
		sb.WriteString(v.Message)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Pointers returns the location of every violation in order.
func (e *ValidationError) Pointers() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.Pointer
	}
	return out
}
