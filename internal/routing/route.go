package routing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRoute marks a route missing its field, operator or value.
var ErrMalformedRoute = errors.New("malformed route")

// Route is one conditional rule: when Field compares true against Value,
// Recipients (comma separated) are notified.
type Route struct {
	Field      string   `json:"field" yaml:"field"`
	Operator   Operator `json:"operator" yaml:"operator"`
	Value      string   `json:"value" yaml:"value"`
	Recipients string   `json:"recipients" yaml:"recipients"`
}

// Validate reports why a route cannot be evaluated.
func (r Route) Validate() error {
	switch {
	case strings.TrimSpace(r.Field) == "":
		return fmt.Errorf("%w: field is required", ErrMalformedRoute)
	case strings.TrimSpace(string(r.Operator)) == "":
		return fmt.Errorf("%w: operator is required", ErrMalformedRoute)
	case !r.Operator.Valid():
		return fmt.Errorf("%w: unknown operator %q", ErrMalformedRoute, r.Operator)
	case strings.TrimSpace(r.Value) == "":
		return fmt.Errorf("%w: value is required", ErrMalformedRoute)
	}
	return nil
}

// ParseRoutes decodes a stored route list. Empty input and null mean no
// routes. A JSON string holding the list (double-encoded storage) is
// unwrapped first.
func ParseRoutes(raw []byte) ([]Route, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode routes: %w", err)
		}
		return ParseRoutes([]byte(inner))
	}

	var routes []Route
	if err := json.Unmarshal(raw, &routes); err != nil {
		return nil, fmt.Errorf("decode routes: %w", err)
	}
	return routes, nil
}

// ParseRecipients splits a recipient list on commas or semicolons, trims
// each address and drops blanks and case-insensitive duplicates. First-seen
// order and spelling are kept.
func ParseRecipients(s string) []string {
	var set recipientSet
	set.add(s)
	return set.list
}

type recipientSet struct {
	list []string
	seen map[string]struct{}
}

func (s *recipientSet) add(raw string) {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	for _, p := range parts {
		addr := strings.TrimSpace(p)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if s.seen == nil {
			s.seen = make(map[string]struct{})
		}
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.list = append(s.list, addr)
	}
}

func (s *recipientSet) empty() bool {
	return len(s.list) == 0
}
