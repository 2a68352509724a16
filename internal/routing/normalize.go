// Package routing decides which addresses receive a form notification.
//
// A submission's fields are matched against configured routes. Every route
// whose condition holds contributes its recipients; when none do, the
// configured fallback list is used instead.
package routing

import "strings"

// Normalize canonicalizes a field name for fuzzy comparison: it trims,
// lowercases and drops everything that is not an ASCII letter or digit, so
// "HBI Account Rep", "hbi-account-rep" and "HBI_Account_Rep " are equal.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}
