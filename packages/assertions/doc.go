// Package assertions evaluates expectations against an HTTP response.
//
// Supported subjects:
//   - status and duration
//   - header <Name>
//   - body, or body.<path> using gjson path syntax (bracket indices allowed)
//
// Operators cover equality, numeric comparison, string matching, existence,
// length, type checks, JSON Schema validation and element-wise checks with
// each (every element) and some (at least one element).
package assertions
