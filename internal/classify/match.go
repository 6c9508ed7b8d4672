package classify

import "strings"

// Matcher decides whether a cleaned column name belongs to a rule.
type Matcher func(column string) bool

// Contains matches names containing any of subs.
func Contains(subs ...string) Matcher {
	return func(column string) bool {
		for _, s := range subs {
			if strings.Contains(column, s) {
				return true
			}
		}
		return false
	}
}

// ContainsFold is Contains over lowercased names. subs must be lowercase.
func ContainsFold(subs ...string) Matcher {
	inner := Contains(subs...)
	return func(column string) bool {
		return inner(strings.ToLower(column))
	}
}

// And matches when both matchers do.
func (m Matcher) And(other Matcher) Matcher {
	return func(column string) bool {
		return m(column) && other(column)
	}
}

// Or matches when either matcher does.
func (m Matcher) Or(other Matcher) Matcher {
	return func(column string) bool {
		return m(column) || other(column)
	}
}

// Except rejects names containing any of subs.
func (m Matcher) Except(subs ...string) Matcher {
	deny := Contains(subs...)
	return func(column string) bool {
		return m(column) && !deny(column)
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
