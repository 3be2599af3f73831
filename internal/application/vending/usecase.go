package vending

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-vending/internal/application"
	domoutbox "github.com/Zhima-Mochi/minishop-vending/internal/domain/outbox"
	domvending "github.com/Zhima-Mochi/minishop-vending/internal/domain/vending"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability"
	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseInventory = "vending.inventory"
	useCaseBuy       = "vending.buy"
	useCaseRefill    = "vending.refill"
	useCaseAddFunds  = "vending.add_funds"
	useCaseReset     = "vending.reset"

	statusStoreFailed = "STORE_FAILED"
)

var (
	_ application.UseCase[struct{}, domvending.Inventory]            = (*GetInventoryUseCase)(nil)
	_ application.UseCase[BuyDrinkInput, domvending.PurchaseResult]  = (*BuyDrinkUseCase)(nil)
	_ application.UseCase[RefillDrinkInput, domvending.RefillResult] = (*RefillDrinkUseCase)(nil)
	_ application.UseCase[AddFundsInput, domvending.Inventory]       = (*AddFundsUseCase)(nil)
	_ application.UseCase[struct{}, domvending.Inventory]            = (*ResetMachineUseCase)(nil)
)

type GetInventoryUseCase struct {
	store domvending.Store
	ins   instruments
}

func NewGetInventoryUseCase(store domvending.Store, tel observability.Observability) *GetInventoryUseCase {
	return &GetInventoryUseCase{store: store, ins: newInstruments(nil, tel)}
}

// Execute returns a detached snapshot of drinks and balances.
func (uc *GetInventoryUseCase) Execute(ctx context.Context, _ struct{}) (_ domvending.Inventory, err error) {
	ctx, x := uc.ins.begin(ctx, useCaseInventory, "GetInventory")
	defer func() { x.finish(err) }()

	var inv domvending.Inventory
	err = uc.store.View(ctx, func(m *domvending.Machine) error {
		inv = m.Inventory()
		return nil
	})
	if err != nil {
		x.fail(statusStoreFailed)
		return domvending.Inventory{}, fmt.Errorf("vending: inventory: %w", err)
	}

	x.with(
		observability.F("drinks", len(inv.Drinks)),
		observability.F("coins", inv.Coins),
		observability.F("cash", inv.Cash),
	)
	return inv, nil
}

type BuyDrinkInput struct {
	Slot    domvending.Slot
	Payment domvending.Payment
}

type BuyDrinkUseCase struct {
	store domvending.Store
	ins   instruments
}

func NewBuyDrinkUseCase(store domvending.Store, publisher domoutbox.Publisher, tel observability.Observability) *BuyDrinkUseCase {
	return &BuyDrinkUseCase{store: store, ins: newInstruments(publisher, tel)}
}

// Execute attempts one sale. Business rejections come back as an
// unsuccessful PurchaseResult with a nil error; err is reserved for failures
// of the store itself.
func (uc *BuyDrinkUseCase) Execute(ctx context.Context, cmd BuyDrinkInput) (_ domvending.PurchaseResult, err error) {
	ctx, x := uc.ins.begin(ctx, useCaseBuy, "BuyDrink",
		attribute.String("vending.slot", string(cmd.Slot)),
		attribute.Int("payment.total", cmd.Payment.Total),
		attribute.Int("payment.coins", cmd.Payment.Coins),
		attribute.Int("payment.cash", cmd.Payment.Cash),
	)
	x.with(
		observability.F("slot", string(cmd.Slot)),
		observability.F("payment_total", cmd.Payment.Total),
	)
	defer func() { x.finish(err) }()

	var res domvending.PurchaseResult
	var event domoutbox.Event
	err = uc.store.Update(ctx, func(m *domvending.Machine) error {
		res = m.BuyDrink(cmd.Slot, cmd.Payment)
		if !res.Success {
			event = domvending.NewPurchaseRejectedEvent(cmd.Slot, res.Status, res.Change)
			return nil
		}
		remaining, _ := m.Drink(cmd.Slot)
		coins, cash := m.Balances()
		event = domvending.NewDrinkPurchasedEvent(*res.PurchasedDrink, cmd.Payment, res.Change, remaining.Quantity, coins, cash)
		return nil
	})
	if err != nil {
		x.fail(statusStoreFailed)
		return domvending.PurchaseResult{}, fmt.Errorf("vending: buy: %w", err)
	}

	x.with(observability.F("change", res.Change))
	if x.span != nil {
		x.span.SetAttributes(
			attribute.Bool("vending.success", res.Success),
			attribute.Int("vending.change", res.Change),
		)
	}
	if !res.Success {
		x.reject(string(res.Status))
	}

	x.publish(event)
	return res, nil
}

type RefillDrinkInput struct {
	Slot domvending.Slot
}

type RefillDrinkUseCase struct {
	store domvending.Store
	ins   instruments
}

func NewRefillDrinkUseCase(store domvending.Store, publisher domoutbox.Publisher, tel observability.Observability) *RefillDrinkUseCase {
	return &RefillDrinkUseCase{store: store, ins: newInstruments(publisher, tel)}
}

// Execute tops up one slot. Rejections come back in the RefillResult.
func (uc *RefillDrinkUseCase) Execute(ctx context.Context, cmd RefillDrinkInput) (_ domvending.RefillResult, err error) {
	ctx, x := uc.ins.begin(ctx, useCaseRefill, "RefillDrink",
		attribute.String("vending.slot", string(cmd.Slot)),
	)
	x.with(observability.F("slot", string(cmd.Slot)))
	defer func() { x.finish(err) }()

	var res domvending.RefillResult
	var event domoutbox.Event
	err = uc.store.Update(ctx, func(m *domvending.Machine) error {
		before, _ := m.Drink(cmd.Slot)
		res = m.RefillDrink(cmd.Slot)
		if !res.Success {
			event = domvending.NewRefillRejectedEvent(cmd.Slot, res.Status)
			return nil
		}
		event = domvending.NewDrinkRefilledEvent(cmd.Slot, *res.NewQuantity-before.Quantity, *res.NewQuantity)
		return nil
	})
	if err != nil {
		x.fail(statusStoreFailed)
		return domvending.RefillResult{}, fmt.Errorf("vending: refill: %w", err)
	}

	if res.Success {
		x.with(observability.F("new_quantity", *res.NewQuantity))
	} else {
		x.reject(string(res.Status))
	}

	x.publish(event)
	return res, nil
}

type AddFundsInput struct {
	Coins int
	Cash  int
}

type AddFundsUseCase struct {
	store domvending.Store
	ins   instruments
}

func NewAddFundsUseCase(store domvending.Store, publisher domoutbox.Publisher, tel observability.Observability) *AddFundsUseCase {
	return &AddFundsUseCase{store: store, ins: newInstruments(publisher, tel)}
}

// Execute loads both pools as one operation: a negative amount in either
// leaves both untouched and returns domvending.ErrNegativeAmount, and an
// amount that would overflow a pool returns domvending.ErrAmountTooLarge.
func (uc *AddFundsUseCase) Execute(ctx context.Context, cmd AddFundsInput) (_ domvending.Inventory, err error) {
	ctx, x := uc.ins.begin(ctx, useCaseAddFunds, "AddFunds",
		attribute.Int("funds.coins", cmd.Coins),
		attribute.Int("funds.cash", cmd.Cash),
	)
	x.with(
		observability.F("coins", cmd.Coins),
		observability.F("cash", cmd.Cash),
	)
	defer func() { x.finish(err) }()

	if cmd.Coins < 0 || cmd.Cash < 0 {
		x.fail("NEGATIVE_AMOUNT")
		return domvending.Inventory{}, fmt.Errorf("vending: add funds: %w", domvending.ErrNegativeAmount)
	}

	var inv domvending.Inventory
	err = uc.store.Update(ctx, func(m *domvending.Machine) error {
		if err := m.AddFunds(cmd.Coins, cmd.Cash); err != nil {
			return err
		}
		inv = m.Inventory()
		return nil
	})
	switch {
	case errors.Is(err, domvending.ErrAmountTooLarge):
		x.fail("AMOUNT_TOO_LARGE")
		return domvending.Inventory{}, fmt.Errorf("vending: add funds: %w", err)
	case err != nil:
		x.fail(statusStoreFailed)
		return domvending.Inventory{}, fmt.Errorf("vending: add funds: %w", err)
	}

	x.publish(domvending.NewFundsAddedEvent(cmd.Coins, cmd.Cash))
	return inv, nil
}

type ResetMachineUseCase struct {
	store domvending.Store
	ins   instruments
}

func NewResetMachineUseCase(store domvending.Store, publisher domoutbox.Publisher, tel observability.Observability) *ResetMachineUseCase {
	return &ResetMachineUseCase{store: store, ins: newInstruments(publisher, tel)}
}

// Execute re-seeds the machine and returns the fresh inventory.
func (uc *ResetMachineUseCase) Execute(ctx context.Context, _ struct{}) (_ domvending.Inventory, err error) {
	ctx, x := uc.ins.begin(ctx, useCaseReset, "ResetMachine")
	defer func() { x.finish(err) }()

	var inv domvending.Inventory
	err = uc.store.Update(ctx, func(m *domvending.Machine) error {
		m.Reset()
		inv = m.Inventory()
		return nil
	})
	if err != nil {
		x.fail(statusStoreFailed)
		return domvending.Inventory{}, fmt.Errorf("vending: reset: %w", err)
	}

	x.publish(domvending.NewMachineResetEvent())
	return inv, nil
}
