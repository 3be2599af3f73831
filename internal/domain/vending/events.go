package vending

import "time"

// DrinkPurchasedEvent is emitted after a successful sale.
type DrinkPurchasedEvent struct {
	Slot             Slot
	Name             string
	Price            int
	Change           int
	CoinsTendered    int
	CashTendered     int
	RemainingStock   int
	CoinBalanceAfter int
	CashBalanceAfter int
	OccurredAt       time.Time
}

func (DrinkPurchasedEvent) EventName() string { return "vending.drink_purchased" }

func NewDrinkPurchasedEvent(drink Drink, payment Payment, change, remaining, coins, cash int) DrinkPurchasedEvent {
	return DrinkPurchasedEvent{
		Slot:             drink.Slot,
		Name:             drink.Name,
		Price:            drink.Price,
		Change:           change,
		CoinsTendered:    payment.Coins,
		CashTendered:     payment.Cash,
		RemainingStock:   remaining,
		CoinBalanceAfter: coins,
		CashBalanceAfter: cash,
		OccurredAt:       time.Now().UTC(),
	}
}

// PurchaseRejectedEvent is emitted when a purchase is refused and refunded.
type PurchaseRejectedEvent struct {
	Slot       Slot
	Reason     Status
	Refunded   int
	OccurredAt time.Time
}

func (PurchaseRejectedEvent) EventName() string { return "vending.purchase_rejected" }

func NewPurchaseRejectedEvent(slot Slot, reason Status, refunded int) PurchaseRejectedEvent {
	return PurchaseRejectedEvent{
		Slot:       slot,
		Reason:     reason,
		Refunded:   refunded,
		OccurredAt: time.Now().UTC(),
	}
}

// DrinkRefilledEvent is emitted after a slot has been topped up.
type DrinkRefilledEvent struct {
	Slot        Slot
	Added       int
	NewQuantity int
	OccurredAt  time.Time
}

func (DrinkRefilledEvent) EventName() string { return "vending.drink_refilled" }

func NewDrinkRefilledEvent(slot Slot, added, newQuantity int) DrinkRefilledEvent {
	return DrinkRefilledEvent{
		Slot:        slot,
		Added:       added,
		NewQuantity: newQuantity,
		OccurredAt:  time.Now().UTC(),
	}
}

// RefillRejectedEvent is emitted when a refill request is refused.
type RefillRejectedEvent struct {
	Slot       Slot
	Reason     Status
	OccurredAt time.Time
}

func (RefillRejectedEvent) EventName() string { return "vending.refill_rejected" }

func NewRefillRejectedEvent(slot Slot, reason Status) RefillRejectedEvent {
	return RefillRejectedEvent{
		Slot:       slot,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

// FundsAddedEvent is emitted when an operator loads coins or cash.
type FundsAddedEvent struct {
	Coins      int
	Cash       int
	OccurredAt time.Time
}

func (FundsAddedEvent) EventName() string { return "vending.funds_added" }

func NewFundsAddedEvent(coins, cash int) FundsAddedEvent {
	return FundsAddedEvent{
		Coins:      coins,
		Cash:       cash,
		OccurredAt: time.Now().UTC(),
	}
}

// MachineResetEvent is emitted after the machine has been re-seeded.
type MachineResetEvent struct {
	OccurredAt time.Time
}

func (MachineResetEvent) EventName() string { return "vending.machine_reset" }

func NewMachineResetEvent() MachineResetEvent {
	return MachineResetEvent{OccurredAt: time.Now().UTC()}
}
