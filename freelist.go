package blazesched

import "sync"

// FreeList recycles frames for producers that build tasks at a high
// rate. The scheduler itself never allocates tasks; this is a
// convenience for the code that does.
type FreeList[T any] struct {
	items *sync.Pool
}

// NewFreeList creates a FreeList[T] with a function that creates new
// frames.
func NewFreeList[T any](newFunc func() T) *FreeList[T] {
	return &FreeList[T]{
		items: &sync.Pool{
			New: func() any {
				return newFunc()
			},
		},
	}
}

// Get returns a frame from the list, creating a new one if necessary.
func (f *FreeList[T]) Get() T {
	return f.items.Get().(T)
}

// Put returns a frame to the list.
func (f *FreeList[T]) Put(x T) {
	f.items.Put(x)
}
