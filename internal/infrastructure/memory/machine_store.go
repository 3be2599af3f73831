package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-vending/internal/domain/vending"
)

// MachineStore owns the process-wide vending machine and serializes access
// to it. Each callback runs as one critical section, so check-then-act
// sequences inside the engine cannot interleave.
type MachineStore struct {
	mu      sync.RWMutex
	machine *domain.Machine
}

// NewMachineStore returns a store holding m, or a freshly seeded machine if m is nil.
func NewMachineStore(m *domain.Machine) *MachineStore {
	if m == nil {
		m = domain.NewMachine()
	}
	return &MachineStore{machine: m}
}

// View runs fn under the read lock. fn must not mutate the machine.
func (s *MachineStore) View(ctx context.Context, fn func(m *domain.Machine) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(s.machine)
}

// Update runs fn under the write lock.
func (s *MachineStore) Update(ctx context.Context, fn func(m *domain.Machine) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(s.machine)
}
