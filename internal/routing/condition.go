package routing

import "strings"

// Operator is a route's comparison.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
)

var operatorAliases = map[string]Operator{
	"equals":      OpEquals,
	"equal":       OpEquals,
	"eq":          OpEquals,
	"is":          OpEquals,
	"==":          OpEquals,
	"contains":    OpContains,
	"includes":    OpContains,
	"starts_with": OpStartsWith,
	"startswith":  OpStartsWith,
	"begins_with": OpStartsWith,
	"ends_with":   OpEndsWith,
	"endswith":    OpEndsWith,
}

// ParseOperator maps a stored operator, including the camelCase and spaced
// spellings the dashboard has used, to its canonical form.
func ParseOperator(s string) (Operator, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	op, ok := operatorAliases[key]
	return op, ok
}

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	_, ok := ParseOperator(string(op))
	return ok
}

// Evaluate applies op to a resolved field value and a route's comparison
// value. Both sides are trimmed and compared case-insensitively. Unknown
// operators never match.
func Evaluate(fieldValue string, op Operator, compare string) bool {
	canonical, ok := ParseOperator(string(op))
	if !ok {
		return false
	}

	v := strings.ToLower(strings.TrimSpace(fieldValue))
	c := strings.ToLower(strings.TrimSpace(compare))

	switch canonical {
	case OpEquals:
		return v == c
	case OpContains:
		return strings.Contains(v, c)
	case OpStartsWith:
		return strings.HasPrefix(v, c)
	case OpEndsWith:
		return strings.HasSuffix(v, c)
	default:
		return false
	}
}
