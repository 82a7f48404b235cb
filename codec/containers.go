package codec

import "reflect"

// KeyedMap is a keyed-map container: a mapping that survives the round trip
// as a map container rather than a plain record. Keys are strings; callers
// with non-string keys coerce them before insertion (the encoding does the
// same for plain maps with non-string keys).
type KeyedMap map[string]any

// UniqueSet is a unique-set container: an ordered collection of distinct
// members. Insertion order is preserved across the encode/decode round trip.
// Member equality uses deep equality, so mappings and sequences may be
// members, though scalar members are the common case.
//
// UniqueSet is not safe for concurrent mutation; it is a value inside a
// store's state tree and inherits the owning store's synchronization.
type UniqueSet struct {
	members []any
}

// NewUniqueSet creates a set from the given members, dropping duplicates
// while preserving first-insertion order.
func NewUniqueSet(members ...any) *UniqueSet {
	s := &UniqueSet{}
	for _, m := range members {
		s.Add(m)
	}
	return s
}

// Add appends a member if not already present. Reports whether it was added.
func (s *UniqueSet) Add(member any) bool {
	if s.Has(member) {
		return false
	}
	s.members = append(s.members, member)
	return true
}

// Has reports whether the set contains the member
func (s *UniqueSet) Has(member any) bool {
	for _, m := range s.members {
		if reflect.DeepEqual(m, member) {
			return true
		}
	}
	return false
}

// Members returns the set's members in insertion order.
// The slice is a copy.
func (s *UniqueSet) Members() []any {
	result := make([]any, len(s.members))
	copy(result, s.members)
	return result
}

// Len returns the number of members
func (s *UniqueSet) Len() int {
	return len(s.members)
}
