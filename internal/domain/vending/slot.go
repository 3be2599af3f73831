package vending

import (
	"fmt"
	"strings"
)

// Slot identifies a physical compartment of the machine.
type Slot string

const (
	SlotA1 Slot = "A1"
	SlotA2 Slot = "A2"
	SlotA3 Slot = "A3"
	SlotB1 Slot = "B1"
	SlotB2 Slot = "B2"
	SlotB3 Slot = "B3"
	SlotC1 Slot = "C1"
	SlotC2 Slot = "C2"
	SlotC3 Slot = "C3"
	SlotD1 Slot = "D1"
	SlotD2 Slot = "D2"
	SlotD3 Slot = "D3"
)

var slots = []Slot{
	SlotA1, SlotA2, SlotA3,
	SlotB1, SlotB2, SlotB3,
	SlotC1, SlotC2, SlotC3,
	SlotD1, SlotD2, SlotD3,
}

var slotIndex = func() map[Slot]int {
	m := make(map[Slot]int, len(slots))
	for i, s := range slots {
		m[s] = i
	}
	return m
}()

// Slots returns the slot universe in panel order.
func Slots() []Slot {
	return append([]Slot(nil), slots...)
}

func (s Slot) Valid() bool {
	_, ok := slotIndex[s]
	return ok
}

func (s Slot) String() string { return string(s) }

// ParseSlot accepts only exact members of the slot set.
func ParseSlot(raw string) (Slot, error) {
	s := Slot(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %s. Must be one of %s.", ErrInvalidSlot, raw, SlotList())
	}
	return s, nil
}

// SlotList renders the slot universe as "A1, A2, ...".
func SlotList() string {
	names := make([]string, len(slots))
	for i, s := range slots {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func slotLess(a, b Slot) bool {
	return slotIndex[a] < slotIndex[b]
}
