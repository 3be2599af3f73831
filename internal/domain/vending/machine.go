package vending

import (
	"fmt"
	"math"
	"sort"
)

const (
	// RefillThreshold is the stock level at or below which a slot may be refilled.
	RefillThreshold = 3
	// MaxStock is the level a refill tops a slot up to.
	MaxStock = 10

	InitialCoins = 100
	InitialCash  = 200
)

type seedDrink struct {
	name  string
	price int
	slot  Slot
}

var seedCatalog = []seedDrink{
	{name: "Coke", price: 10, slot: SlotA1},
	{name: "Pepsi", price: 25, slot: SlotA2},
	{name: "Dew", price: 30, slot: SlotB1},
	{name: "Sprite", price: 20, slot: SlotB2},
	{name: "Fanta", price: 15, slot: SlotC1},
	{name: "Dr. Pepper", price: 35, slot: SlotC2},
	{name: "Mountain Dew", price: 30, slot: SlotD1},
	{name: "Root Beer", price: 25, slot: SlotD2},
}

// Machine is the ledger of drinks and money pools. It does no locking of its
// own; callers sharing one Machine must serialize whole operations (see Store).
type Machine struct {
	drinks map[Slot]*Drink
	coins  int
	cash   int
}

// NewMachine returns a machine in the seed state.
func NewMachine() *Machine {
	m := &Machine{}
	m.Reset()
	return m
}

// Reset discards the current state and rebuilds the seed catalog and balances.
func (m *Machine) Reset() {
	m.drinks = make(map[Slot]*Drink, len(seedCatalog))
	m.coins = 0
	m.cash = 0

	for _, s := range seedCatalog {
		d, err := NewDrink(s.name, s.price, MaxStock, s.slot)
		if err != nil {
			panic(fmt.Sprintf("vending: bad seed entry %q: %v", s.name, err))
		}
		m.drinks[d.Slot] = d
	}

	// The seed amounts are non-negative constants.
	_ = m.AddCoins(InitialCoins)
	_ = m.AddCash(InitialCash)
}

func (m *Machine) AddCoins(amount int) error {
	if err := checkDeposit("coins", m.coins, amount); err != nil {
		return err
	}
	m.coins += amount
	return nil
}

func (m *Machine) AddCash(amount int) error {
	if err := checkDeposit("cash", m.cash, amount); err != nil {
		return err
	}
	m.cash += amount
	return nil
}

// AddFunds loads both pools, or neither when either amount is rejected.
func (m *Machine) AddFunds(coins, cash int) error {
	if err := checkDeposit("coins", m.coins, coins); err != nil {
		return err
	}
	if err := checkDeposit("cash", m.cash, cash); err != nil {
		return err
	}
	m.coins += coins
	m.cash += cash
	return nil
}

func checkDeposit(pool string, balance, amount int) error {
	if amount < 0 {
		return fmt.Errorf("%w: %s %d", ErrNegativeAmount, pool, amount)
	}
	if !fits(balance, amount) {
		return fmt.Errorf("%w: %s %d", ErrAmountTooLarge, pool, amount)
	}
	return nil
}

// fits reports whether balance+amount stays within int for amount >= 0.
func fits(balance, amount int) bool {
	return balance < 0 || amount <= math.MaxInt-balance
}

// Inventory returns a copy of every drink record, ordered by slot, and both
// balances. Mutating the result never reaches the machine.
func (m *Machine) Inventory() Inventory {
	drinks := make([]Drink, 0, len(m.drinks))
	for _, d := range m.drinks {
		drinks = append(drinks, d.clone())
	}
	sort.Slice(drinks, func(i, j int) bool {
		return slotLess(drinks[i].Slot, drinks[j].Slot)
	})
	return Inventory{
		Drinks: drinks,
		Coins:  m.coins,
		Cash:   m.cash,
	}
}

// BuyDrink sells one unit from slot. Every rejection happens before any
// state change and refunds the whole payment.
//
// Solvency is checked against coins+cash while change is paid from coins
// only, so a successful sale can leave the coin pool negative.
func (m *Machine) BuyDrink(slot Slot, payment Payment) PurchaseResult {
	drink, ok := m.drinks[slot]
	if !ok {
		return rejectPurchase(StatusDrinkNotFound, msgDrinkNotFound, payment)
	}
	if drink.Quantity == 0 {
		return rejectPurchase(StatusOutOfStock,
			fmt.Sprintf("%s is out of stock.", drink.Name), payment)
	}
	if payment.Total < drink.Price {
		return rejectPurchase(StatusInsufficientPayment,
			fmt.Sprintf("Payment is not enough. Price: %d PHP. Paid: %d PHP.", drink.Price, payment.Total), payment)
	}

	if payment.Coins < 0 || payment.Cash < 0 || !fits(m.coins, payment.Coins) || !fits(m.cash, payment.Cash) {
		return rejectPurchase(StatusPaymentTooLarge, msgPaymentTooLarge, payment)
	}

	change := payment.Total - drink.Price
	// Compared without summing the pools, which could overflow.
	if change > m.cash && m.coins < change-m.cash {
		return rejectPurchase(StatusInsufficientChange,
			"Vending machine does not have enough change. Please use exact amount or smaller denominations.", payment)
	}

	sold := drink.clone()
	drink.DecreaseQuantity(1)
	m.coins += payment.Coins
	m.cash += payment.Cash
	m.coins -= change

	return PurchaseResult{
		Status:         StatusOK,
		Success:        true,
		Message:        fmt.Sprintf("You purchased %s from slot %s. Your change is %d PHP.", drink.Name, slot, change),
		Change:         change,
		PurchasedDrink: &sold,
	}
}

// RefillDrink tops slot up to MaxStock when its stock is at or below
// RefillThreshold.
func (m *Machine) RefillDrink(slot Slot) RefillResult {
	drink, ok := m.drinks[slot]
	if !ok {
		return rejectRefill(StatusDrinkNotFound, msgDrinkNotFound)
	}
	if drink.Quantity > RefillThreshold {
		return rejectRefill(StatusAboveRefillThreshold,
			fmt.Sprintf("%s current stock (%d) is above refill threshold (%d).", drink.Name, drink.Quantity, RefillThreshold))
	}

	drink.IncreaseQuantity(MaxStock - drink.Quantity)
	qty := drink.Quantity
	return RefillResult{
		Status:      StatusOK,
		Success:     true,
		Message:     fmt.Sprintf("%s (Slot: %s) refilled. New quantity: %d.", drink.Name, slot, qty),
		NewQuantity: &qty,
	}
}

// Restore replaces the machine state with inv. Every drink is validated as in
// NewDrink and slots must be unique; on error the machine is left untouched.
// Balances are taken as given, including a negative coin pool.
func (m *Machine) Restore(inv Inventory) error {
	drinks := make(map[Slot]*Drink, len(inv.Drinks))
	for _, d := range inv.Drinks {
		nd, err := NewDrink(d.Name, d.Price, d.Quantity, d.Slot)
		if err != nil {
			return fmt.Errorf("vending: restore %s: %w", d.Slot, err)
		}
		if _, dup := drinks[nd.Slot]; dup {
			return fmt.Errorf("vending: restore: %w: duplicate slot %s", ErrInvalidSlot, nd.Slot)
		}
		drinks[nd.Slot] = nd
	}
	if inv.Cash < 0 {
		return fmt.Errorf("vending: restore: %w: cash %d", ErrNegativeAmount, inv.Cash)
	}

	m.drinks = drinks
	m.coins = inv.Coins
	m.cash = inv.Cash
	return nil
}

// Drink returns a copy of the record at slot.
func (m *Machine) Drink(slot Slot) (Drink, bool) {
	d, ok := m.drinks[slot]
	if !ok {
		return Drink{}, false
	}
	return d.clone(), true
}

// Balances returns the coin and cash pools.
func (m *Machine) Balances() (coins, cash int) {
	return m.coins, m.cash
}
