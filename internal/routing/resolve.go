package routing

import "strings"

// Resolver locates a route's field in a submission.
type Resolver struct {
	substring bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSubstringFallback enables a last-resort match on raw key containment in
// either direction. It only applies when exactly one key qualifies, so
// "Name" will not silently pick "Company Name" when "First Name" also exists.
func WithSubstringFallback() ResolverOption {
	return func(r *Resolver) {
		r.substring = true
	}
}

// NewResolver creates a resolver. Without options it matches exact keys and
// normalized keys only.
func NewResolver(opts ...ResolverOption) Resolver {
	var r Resolver
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Resolution is the outcome of looking up one field.
type Resolution struct {
	Key   string
	Value string
	Found bool
}

// Resolve finds target in fields: exact key first, then the first key whose
// normalized form equals the normalized target, then (if enabled) an
// unambiguous substring match. Missing fields resolve to an empty value.
func (r Resolver) Resolve(fields Fields, target string) Resolution {
	if v, ok := fields.Get(target); ok {
		return Resolution{Key: target, Value: v.String(), Found: true}
	}

	if want := Normalize(target); want != "" {
		for _, field := range fields {
			if Normalize(field.Name) == want {
				return Resolution{Key: field.Name, Value: field.Value.String(), Found: true}
			}
		}
	}

	if r.substring {
		if field, ok := uniqueContaining(fields, target); ok {
			return Resolution{Key: field.Name, Value: field.Value.String(), Found: true}
		}
	}

	return Resolution{}
}

func uniqueContaining(fields Fields, target string) (Field, bool) {
	want := strings.ToLower(strings.TrimSpace(target))
	if want == "" {
		return Field{}, false
	}

	var (
		match Field
		count int
	)
	for _, field := range fields {
		key := strings.ToLower(strings.TrimSpace(field.Name))
		if key == "" {
			continue
		}
		if strings.Contains(key, want) || strings.Contains(want, key) {
			match = field
			count++
		}
	}
	return match, count == 1
}

// Resolve looks up target with the default resolver.
func Resolve(fields Fields, target string) (string, bool) {
	res := NewResolver().Resolve(fields, target)
	return res.Value, res.Found
}
