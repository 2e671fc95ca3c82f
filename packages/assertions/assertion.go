package assertions

// Assertion is one expectation about a response.
type Assertion struct {
	Subject  string
	Operator Operator
	Expected any
}

// Matcher pairs an operator with an expected value. It is the expected value
// of the each and some operators.
type Matcher struct {
	Operator Operator
	Value    any
}

type Operator int

const (
	OpEquals Operator = iota
	OpNotEquals
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpContains
	OpNotContains
	OpStartsWith
	OpEndsWith
	OpMatches
	OpExists
	OpNotExists
	OpLength
	OpIncludes
	OpType
	OpSchema
	OpEach
	OpSome
)

func (op Operator) String() string {
	switch op {
	case OpEquals:
		return "=="
	case OpNotEquals:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessOrEqual:
		return "<="
	case OpContains:
		return "contains"
	case OpNotContains:
		return "!contains"
	case OpStartsWith:
		return "startsWith"
	case OpEndsWith:
		return "endsWith"
	case OpMatches:
		return "matches"
	case OpExists:
		return "exists"
	case OpNotExists:
		return "!exists"
	case OpLength:
		return "length"
	case OpIncludes:
		return "includes"
	case OpType:
		return "type"
	case OpSchema:
		return "schema"
	case OpEach:
		return "each"
	case OpSome:
		return "some"
	default:
		return "unknown"
	}
}

// MarshalText renders the operator by name in JSON reports.
func (op Operator) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// Expect is shorthand for building an Assertion.
func Expect(subject string, op Operator, expected any) *Assertion {
	return &Assertion{Subject: subject, Operator: op, Expected: expected}
}
