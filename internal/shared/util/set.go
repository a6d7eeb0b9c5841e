package util

// OrderedSet is an insertion-ordered set. Add is a no-op for members already present.
type OrderedSet[T comparable] struct {
	order []T
	index map[T]struct{}
}

// Add inserts v and reports whether it was new.
func (s *OrderedSet[T]) Add(v T) bool {
	if s.index == nil {
		s.index = make(map[T]struct{})
	}
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = struct{}{}
	s.order = append(s.order, v)
	return true
}

func (s *OrderedSet[T]) Has(v T) bool {
	_, ok := s.index[v]
	return ok
}

func (s *OrderedSet[T]) Len() int {
	return len(s.order)
}

// Items returns the members in insertion order. The slice must not be modified.
func (s *OrderedSet[T]) Items() []T {
	return s.order
}
