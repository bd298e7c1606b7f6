package models

// Collection is an ordered, mutable container of records or models.
// It is used both for in-memory model sets and for raw server responses.
type Collection[T Getter] struct {
	items []T
}

// NewCollection returns a collection holding items in the given order.
func NewCollection[T Getter](items ...T) *Collection[T] {
	c := &Collection[T]{items: make([]T, 0, len(items))}
	c.items = append(c.items, items...)
	return c
}

// Len returns the number of elements.
func (c *Collection[T]) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Items returns a copy of the elements in order.
func (c *Collection[T]) Items() []T {
	if c == nil {
		return nil
	}
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Get returns the element at index.
func (c *Collection[T]) Get(index int) (T, bool) {
	var zero T
	if c == nil || index < 0 || index >= len(c.items) {
		return zero, false
	}
	return c.items[index], true
}

// First returns the first element.
func (c *Collection[T]) First() (T, bool) {
	return c.Get(0)
}

// Append adds items to the end of the collection. c must not be nil.
func (c *Collection[T]) Append(items ...T) {
	c.items = append(c.items, items...)
}

// Merge appends every element of other after the existing ones.
// Existing elements are never reordered and duplicates are kept. A nil c
// yields a new collection.
func (c *Collection[T]) Merge(other *Collection[T]) *Collection[T] {
	if c == nil {
		c = NewCollection[T]()
	}
	if other != nil {
		c.items = append(c.items, other.items...)
	}
	return c
}

// Filter returns a new collection with the elements for which keep returns
// true, preserving order.
func (c *Collection[T]) Filter(keep func(T) bool) *Collection[T] {
	out := &Collection[T]{}
	if c == nil {
		return out
	}
	for _, item := range c.items {
		if keep(item) {
			out.items = append(out.items, item)
		}
	}
	return out
}

// Find returns the elements whose key holds value (see SameValue),
// preserving order.
func (c *Collection[T]) Find(key string, value any) *Collection[T] {
	return c.Filter(func(item T) bool {
		v, ok := item.Get(key)
		return ok && SameValue(v, value)
	})
}
