// Package scope implements set semantics over space-delimited OAuth scope
// strings. Order is irrelevant and duplicates collapse; every operation
// returns a canonical (sorted, single-spaced) form.
package scope

import (
	"sort"
	"strings"
)

// Split breaks a space-delimited scope string into its individual scope
// tokens, dropping empty entries.
func Split(s string) []string {
	if s == "" {
		return nil
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Canonical returns the scope string with duplicates collapsed and tokens
// sorted, joined by single spaces.
func Canonical(s string) string {
	return join(set(Split(s)))
}

// Intersect returns the intersection of the allowed and requested scope
// strings in canonical form. An empty requested scope yields an empty result;
// whether empty is acceptable is the caller's decision.
func Intersect(allowed, requested string) string {
	allowedSet := set(Split(allowed))
	var granted []string
	for token := range set(Split(requested)) {
		if _, ok := allowedSet[token]; ok {
			granted = append(granted, token)
		}
	}
	sort.Strings(granted)
	return strings.Join(granted, " ")
}

// IsSubset reports whether every scope token in a is present in b.
// The empty scope is a subset of everything.
func IsSubset(a, b string) bool {
	bSet := set(Split(b))
	for _, token := range Split(a) {
		if _, ok := bSet[token]; !ok {
			return false
		}
	}
	return true
}

func set(tokens []string) map[string]struct{} {
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func join(m map[string]struct{}) string {
	tokens := make([]string, 0, len(m))
	for t := range m {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
