package vending

import "context"

// Store owns the shared machine and runs each callback as one serialized
// operation. Callbacks must not retain m after returning.
type Store interface {
	View(ctx context.Context, fn func(m *Machine) error) error
	Update(ctx context.Context, fn func(m *Machine) error) error
}
