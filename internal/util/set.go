// Package util holds small data-structure and parsing helpers shared across
// the engine: a generic set, a counting semaphore, and concurrency-limit
// parsing.
package util

// StringSet is a set of strings, used for the scheduler's pending-tool and
// host tracking and Discovery Index de-duplication.
type StringSet map[string]struct{}

// NewStringSet builds a StringSet from a slice of strings.
func NewStringSet(items []string) StringSet {
	s := make(StringSet, len(items))
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts v into the set.
func (s StringSet) Add(v string) {
	s[v] = struct{}{}
}

// Delete removes v from the set.
func (s StringSet) Delete(v string) {
	delete(s, v)
}

// Includes reports whether v is a member of the set.
func (s StringSet) Includes(v string) bool {
	_, ok := s[v]
	return ok
}

// Len is the number of items in the set.
func (s StringSet) Len() int {
	return len(s)
}

// List returns the set's elements in no particular order.
func (s StringSet) List() []string {
	if s == nil {
		return nil
	}
	r := make([]string, 0, len(s))
	for v := range s {
		r = append(r, v)
	}
	return r
}

// Copy returns a shallow copy of the set.
func (s StringSet) Copy() StringSet {
	c := make(StringSet, len(s))
	for v := range s {
		c[v] = struct{}{}
	}
	return c
}
