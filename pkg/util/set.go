package util

// Set tracks membership for comparable values. The zero-value literal
// Set[K]{} is ready to use
type Set[K comparable] map[K]struct{}

// Add puts key into the set
func (s Set[K]) Add(key K) {
	s[key] = struct{}{}
}

// Contains reports whether key is a member of the set
func (s Set[K]) Contains(key K) bool {
	_, ok := s[key]
	return ok
}

// IsEmpty reports whether the set has no members
func (s Set[K]) IsEmpty() bool {
	return len(s) == 0
}
