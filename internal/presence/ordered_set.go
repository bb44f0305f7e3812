package presence

import "slices"

// orderedSet remembers insertion order. Removal is O(n), which is fine for
// member lists and listings of a single hub.
type orderedSet[K comparable] struct {
	keys  []K
	index map[K]struct{}
}

func newOrderedSet[K comparable]() *orderedSet[K] {
	return &orderedSet[K]{index: make(map[K]struct{})}
}

func (s *orderedSet[K]) add(k K) bool {
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = struct{}{}
	s.keys = append(s.keys, k)
	return true
}

func (s *orderedSet[K]) remove(k K) bool {
	if _, ok := s.index[k]; !ok {
		return false
	}
	delete(s.index, k)
	if i := slices.Index(s.keys, k); i >= 0 {
		s.keys = slices.Delete(s.keys, i, i+1)
	}
	return true
}

func (s *orderedSet[K]) has(k K) bool {
	_, ok := s.index[k]
	return ok
}

func (s *orderedSet[K]) len() int { return len(s.keys) }

// items returns a copy in insertion order.
func (s *orderedSet[K]) items() []K { return slices.Clone(s.keys) }
