package ingest

import "sync/atomic"

// Cell holds the latest published value of type T. Publishers build a new
// value and Store a pointer to it; readers Load the pointer. A reader
// therefore sees either the most recent fully written value or the one
// before it, never a mix of the two. Stored values must not be mutated.
type Cell[T any] struct {
	p       atomic.Pointer[T]
	version atomic.Uint64
}

// Store publishes v. The caller gives up ownership of *v.
func (c *Cell[T]) Store(v *T) {
	c.p.Store(v)
	c.version.Add(1)
}

// Load returns the latest published value, or nil before the first Store.
func (c *Cell[T]) Load() *T {
	return c.p.Load()
}

// Version counts Store calls.
func (c *Cell[T]) Version() uint64 {
	return c.version.Load()
}
