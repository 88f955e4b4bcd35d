package token

import (
	"sort"
	"strings"
)

// ScopeSet is a set of opaque scope strings
type ScopeSet map[string]struct{}

// NewScopeSet builds a set from individual scopes
func NewScopeSet(scopes ...string) ScopeSet {
	s := make(ScopeSet, len(scopes))
	for _, scope := range scopes {
		if scope != "" {
			s[scope] = struct{}{}
		}
	}
	return s
}

// ParseScopes splits a space-delimited scope string per RFC 6749 section 3.3
func ParseScopes(scope string) ScopeSet {
	return NewScopeSet(strings.Fields(scope)...)
}

// Contains reports whether scope is in the set
func (s ScopeSet) Contains(scope string) bool {
	_, ok := s[scope]
	return ok
}

// SubsetOf reports whether every scope in s is also in other
func (s ScopeSet) SubsetOf(other ScopeSet) bool {
	for scope := range s {
		if !other.Contains(scope) {
			return false
		}
	}
	return true
}

// StrictSubsetOf reports whether s is a subset of other and smaller than it.
// Disjoint or overlapping sets are not strict subsets.
func (s ScopeSet) StrictSubsetOf(other ScopeSet) bool {
	return len(s) < len(other) && s.SubsetOf(other)
}

// Slice returns the scopes in sorted order
func (s ScopeSet) Slice() []string {
	out := make([]string, 0, len(s))
	for scope := range s {
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

// String joins the scopes with spaces, sorted
func (s ScopeSet) String() string {
	return strings.Join(s.Slice(), " ")
}
