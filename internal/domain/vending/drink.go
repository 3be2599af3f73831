package vending

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPrice    = errors.New("vending: drink price must be positive")
	ErrInvalidQuantity = errors.New("vending: drink quantity cannot be negative")
	ErrInvalidSlot     = errors.New("vending: invalid slot")
	ErrNegativeAmount  = errors.New("vending: amount cannot be negative")
	ErrAmountTooLarge  = errors.New("vending: amount would overflow the balance")
)

// Drink is the stock record held at one slot. Name, price and slot are fixed
// at construction; only the quantity moves.
type Drink struct {
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
	Slot     Slot   `json:"slot"`
}

func NewDrink(name string, price, quantity int, slot Slot) (*Drink, error) {
	if price <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPrice, price)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	if !slot.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlot, string(slot))
	}
	return &Drink{
		Name:     name,
		Price:    price,
		Quantity: quantity,
		Slot:     slot,
	}, nil
}

// DecreaseQuantity removes amount units. It reports false and leaves the
// quantity untouched when there is not enough stock.
func (d *Drink) DecreaseQuantity(amount int) bool {
	if d.Quantity < amount {
		return false
	}
	d.Quantity -= amount
	return true
}

// IncreaseQuantity adds amount units. The stocking ceiling is enforced by Machine.
func (d *Drink) IncreaseQuantity(amount int) {
	d.Quantity += amount
}

func (d *Drink) clone() Drink {
	return *d
}
