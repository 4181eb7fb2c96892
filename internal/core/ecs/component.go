package ecs

// Removable lets the Registry drop an entity from a store without knowing
// the component type.
type Removable interface {
	Remove(id EntityID)
}

// PtrComponentStore maps entities to pointer components. Callers mutate the
// component in place through the returned pointer. Not safe for concurrent
// use; the owning system serializes access.
type PtrComponentStore[T any] struct {
	data map[EntityID]*T
}

func NewPtrComponentStore[T any]() *PtrComponentStore[T] {
	return &PtrComponentStore[T]{
		data: make(map[EntityID]*T, 64),
	}
}

func (s *PtrComponentStore[T]) Set(id EntityID, c *T) { s.data[id] = c }
func (s *PtrComponentStore[T]) Remove(id EntityID)    { delete(s.data, id) }
func (s *PtrComponentStore[T]) Len() int              { return len(s.data) }

func (s *PtrComponentStore[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *PtrComponentStore[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}
