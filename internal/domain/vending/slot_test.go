package vending

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSlot(t *testing.T) {
	s, err := ParseSlot("C2")
	require.NoError(t, err)
	assert.Equal(t, SlotC2, s)

	for _, raw := range []string{"", "Z9", "a1", " A1", "E1"} {
		_, err := ParseSlot(raw)
		assert.ErrorIs(t, err, ErrInvalidSlot, raw)
	}
}

func TestSlotsAreCopied(t *testing.T) {
	all := Slots()
	require.Len(t, all, 12)
	all[0] = "XX"
	assert.Equal(t, SlotA1, Slots()[0])
}

func TestSlotList(t *testing.T) {
	assert.Equal(t, "A1, A2, A3, B1, B2, B3, C1, C2, C3, D1, D2, D3", SlotList())
}
