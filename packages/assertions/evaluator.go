package assertions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/apicheck/packages/http"
	"github.com/abdul-hamid-achik/apicheck/packages/schema"
	"github.com/tidwall/gjson"
)

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string

	// Violations is set when a schema assertion fails on a well-formed document.
	Violations []schema.Violation
}

type Evaluator struct {
	response *http.Response
	bodyJSON gjson.Result
}

func NewEvaluator(resp *http.Response) *Evaluator {
	e := &Evaluator{
		response: resp,
	}
	if resp.IsJSON() || gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
	}
	return e
}

func (e *Evaluator) Evaluate(assertion *Assertion) *Result {
	result := &Result{
		Subject:  assertion.Subject,
		Operator: assertion.Operator.String(),
		Expected: describeExpected(assertion.Expected),
	}

	actual, err := e.getActualValue(assertion.Subject)
	if err != nil {
		result.Passed = false
		result.Message = err.Error()
		return result
	}
	result.Actual = actual

	if assertion.Operator == OpSchema {
		result.Passed, result.Message, result.Violations = e.validateSchema(actual, assertion.Expected)
		return result
	}

	passed, msg := e.compare(actual, assertion.Operator, assertion.Expected)
	result.Passed = passed
	result.Message = msg

	// For length operator, show the computed length as the actual value
	if assertion.Operator == OpLength {
		result.Actual = computeLength(actual)
	}

	return result
}

func (e *Evaluator) getActualValue(subject string) (any, error) {
	switch {
	case subject == "status":
		return e.response.StatusCode, nil
	case subject == "duration":
		return e.response.DurationMs(), nil
	case strings.HasPrefix(subject, "header"):
		headerName := strings.TrimSpace(strings.TrimPrefix(subject, "header"))
		if headerName == "" {
			return e.response.Headers, nil
		}
		return e.response.Header(headerName), nil
	case strings.HasPrefix(subject, "body"):
		return e.getBodyValue(subject)
	default:
		return nil, fmt.Errorf("unknown subject: %s", subject)
	}
}

// convertBracketNotation converts array bracket notation to gjson dot notation
// e.g., "[0].id" -> "0.id", "items[0].tags[1]" -> "items.0.tags.1"
func convertBracketNotation(path string) string {
	result := bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(result, ".")
}

func (e *Evaluator) getBodyValue(subject string) (any, error) {
	path := strings.TrimPrefix(subject, "body")
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.response.BodyString(), nil
		}
		return nil, fmt.Errorf("response body is not JSON")
	}

	if path == "" {
		return e.bodyJSON.Value(), nil
	}
	path = convertBracketNotation(strings.TrimPrefix(path, "."))

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, nil
	}
	return result.Value(), nil
}

func (e *Evaluator) compare(actual any, op Operator, expected any) (bool, string) {
	switch op {
	case OpEquals:
		return e.equals(actual, expected)
	case OpNotEquals:
		passed, _ := e.equals(actual, expected)
		if passed {
			return false, fmt.Sprintf("expected not to equal %v", expected)
		}
		return true, ""
	case OpGreaterThan:
		return e.compareNumeric(actual, expected, ">")
	case OpGreaterOrEqual:
		return e.compareNumeric(actual, expected, ">=")
	case OpLessThan:
		return e.compareNumeric(actual, expected, "<")
	case OpLessOrEqual:
		return e.compareNumeric(actual, expected, "<=")
	case OpContains:
		return e.contains(actual, expected)
	case OpNotContains:
		passed, _ := e.contains(actual, expected)
		if passed {
			return false, fmt.Sprintf("expected not to contain %v", expected)
		}
		return true, ""
	case OpStartsWith:
		return e.startsWith(actual, expected)
	case OpEndsWith:
		return e.endsWith(actual, expected)
	case OpMatches:
		return e.matches(actual, expected)
	case OpExists:
		return e.exists(actual)
	case OpNotExists:
		passed, _ := e.exists(actual)
		if passed {
			return false, "expected not to exist"
		}
		return true, ""
	case OpLength:
		return e.length(actual, expected)
	case OpIncludes:
		return e.includes(actual, expected)
	case OpType:
		return e.typeCheck(actual, expected)
	case OpSchema:
		passed, msg, _ := e.validateSchema(actual, expected)
		return passed, msg
	case OpEach:
		return e.each(actual, expected)
	case OpSome:
		return e.some(actual, expected)
	default:
		return false, fmt.Sprintf("unknown operator: %v", op)
	}
}

func (e *Evaluator) equals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	if fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func (e *Evaluator) compareNumeric(actual, expected any, op string) (bool, string) {
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)

	if !aOk || !eOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case ">":
		passed = actualNum > expectedNum
	case ">=":
		passed = actualNum >= expectedNum
	case "<":
		passed = actualNum < expectedNum
	case "<=":
		passed = actualNum <= expectedNum
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

func (e *Evaluator) contains(actual, expected any) (bool, string) {
	if actual != nil && strings.Contains(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to contain '%v'", actual, expected)
}

func (e *Evaluator) startsWith(actual, expected any) (bool, string) {
	if actual != nil && strings.HasPrefix(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to start with '%v'", actual, expected)
}

func (e *Evaluator) endsWith(actual, expected any) (bool, string) {
	if actual != nil && strings.HasSuffix(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to end with '%v'", actual, expected)
}

func (e *Evaluator) matches(actual, expected any) (bool, string) {
	pattern := strings.TrimSuffix(strings.TrimPrefix(fmt.Sprintf("%v", expected), "/"), "/")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern: %v", err)
	}

	if re.MatchString(fmt.Sprintf("%v", actual)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to match /%v/", actual, pattern)
}

func (e *Evaluator) exists(actual any) (bool, string) {
	if actual == nil {
		return false, "expected to exist"
	}
	return true, ""
}

// computeLength returns the length of a value, or -1 if length cannot be computed
func computeLength(actual any) int {
	switch v := actual.(type) {
	case string:
		return len(v)
	case []any:
		return len(v)
	case map[string]any:
		return len(v)
	default:
		return -1
	}
}

func (e *Evaluator) length(actual, expected any) (bool, string) {
	expectedLen, ok := toInt(expected)
	if !ok {
		return false, fmt.Sprintf("expected length must be a number, got %v", expected)
	}

	actualLen := computeLength(actual)
	if actualLen == -1 {
		return false, fmt.Sprintf("cannot get length of %T", actual)
	}

	if actualLen == expectedLen {
		return true, ""
	}
	return false, fmt.Sprintf("expected length %d, got %d", expectedLen, actualLen)
}

func (e *Evaluator) includes(actual, expected any) (bool, string) {
	arr, ok := actual.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array, got %T", actual)
	}

	for _, item := range arr {
		if passed, _ := e.equals(item, expected); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected array to include %v", expected)
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return reflect.TypeOf(v).String()
	}
}

func (e *Evaluator) typeCheck(actual, expected any) (bool, string) {
	expectedType := fmt.Sprintf("%v", expected)
	actualType := jsonType(actual)
	if actualType == expectedType {
		return true, ""
	}
	return false, fmt.Sprintf("expected type %s, got %s", expectedType, actualType)
}

// validateSchema validates actual against a bundled schema name or a schema
// file path.
func (e *Evaluator) validateSchema(actual, expected any) (bool, string, []schema.Violation) {
	ref := fmt.Sprintf("%v", expected)

	s, err := schema.Load(ref)
	if errors.Is(err, schema.ErrUnknownSchema) {
		if _, statErr := os.Stat(ref); statErr == nil {
			s, err = schema.LoadFile(ref)
		}
	}
	if err != nil {
		return false, err.Error(), nil
	}

	doc, err := json.Marshal(actual)
	if err != nil {
		return false, fmt.Sprintf("failed to marshal actual value: %v", err), nil
	}

	err = s.Validate(doc)
	var verr *schema.ValidationError
	switch {
	case err == nil:
		return true, "", nil
	case errors.As(err, &verr):
		return false, err.Error(), verr.Violations
	default:
		return false, err.Error(), nil
	}
}

// elements returns the items of an array, or the values of an object in key order.
func elements(actual any) ([]any, bool) {
	switch v := actual.(type) {
	case []any:
		return v, true
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]any, len(keys))
		for i, k := range keys {
			items[i] = v[k]
		}
		return items, true
	}
	return nil, false
}

func matchers(expected any) []Matcher {
	switch m := expected.(type) {
	case Matcher:
		return []Matcher{m}
	case *Matcher:
		return []Matcher{*m}
	case []Matcher:
		return m
	}
	return []Matcher{{Operator: OpEquals, Value: expected}}
}

func (e *Evaluator) each(actual, expected any) (bool, string) {
	arr, ok := actual.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array for 'each' operator, got %T", actual)
	}

	ms := matchers(expected)
	for i, item := range arr {
		for _, m := range ms {
			if passed, msg := e.compare(item, m.Operator, m.Value); !passed {
				return false, fmt.Sprintf("item[%d]: %s", i, msg)
			}
		}
	}
	return true, ""
}

// some passes when at least one element satisfies at least one matcher.
func (e *Evaluator) some(actual, expected any) (bool, string) {
	items, ok := elements(actual)
	if !ok {
		return false, fmt.Sprintf("expected array or object for 'some' operator, got %T", actual)
	}

	ms := matchers(expected)
	for _, item := range items {
		if item == nil {
			continue
		}
		for _, m := range ms {
			if passed, _ := e.compare(item, m.Operator, m.Value); passed {
				return true, ""
			}
		}
	}
	return false, fmt.Sprintf("expected some of %v to satisfy %s", items, describeExpected(expected))
}

// describeExpected renders matcher lists readably for reports.
func describeExpected(expected any) any {
	ms, ok := expected.([]Matcher)
	if !ok {
		if m, isMatcher := expected.(Matcher); isMatcher {
			ms = []Matcher{m}
		} else {
			return expected
		}
	}
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = fmt.Sprintf("%s %v", m.Operator, m.Value)
	}
	return strings.Join(parts, " | ")
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, true
		}
	}
	return 0, false
}

func EvaluateAll(resp *http.Response, assertions []*Assertion) []*Result {
	evaluator := NewEvaluator(resp)
	results := make([]*Result, len(assertions))
	for i, a := range assertions {
		results[i] = evaluator.Evaluate(a)
	}
	return results
}
