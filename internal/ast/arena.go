package ast

import (
	"fmt"

	"fortio.org/safecast"
)

// Arena stores values addressed by 1-based handles of type ID; the zero
// handle is never allocated and means "none".
type Arena[ID ~uint32, T any] struct {
	data []T
}

// NewArena creates an arena with room for capHint values.
func NewArena[ID ~uint32, T any](capHint uint) *Arena[ID, T] {
	return &Arena[ID, T]{data: make([]T, 0, capHint)}
}

// Allocate appends value and returns its handle.
func (a *Arena[ID, T]) Allocate(value T) ID {
	a.data = append(a.data, value)
	n, err := safecast.Conv[uint32](len(a.data))
	if err != nil {
		panic(fmt.Errorf("arena overflow: %w", err))
	}
	return ID(n)
}

// Get returns the value for id, or nil for the zero or an unknown handle.
func (a *Arena[ID, T]) Get(id ID) *T {
	if id == 0 || int(id) > len(a.data) {
		return nil
	}
	return &a.data[id-1]
}

func (a *Arena[ID, T]) Len() int {
	return len(a.data)
}
