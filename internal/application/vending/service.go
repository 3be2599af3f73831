package vending

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/minishop-vending/internal/domain/outbox"
	domvending "github.com/Zhima-Mochi/minishop-vending/internal/domain/vending"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability"
)

// Service groups the vending use cases behind one handle for transports.
type Service struct {
	inventory *GetInventoryUseCase
	buy       *BuyDrinkUseCase
	refill    *RefillDrinkUseCase
	addFunds  *AddFundsUseCase
	reset     *ResetMachineUseCase
}

func NewService(store domvending.Store, publisher domoutbox.Publisher, tel observability.Observability) *Service {
	return &Service{
		inventory: NewGetInventoryUseCase(store, tel),
		buy:       NewBuyDrinkUseCase(store, publisher, tel),
		refill:    NewRefillDrinkUseCase(store, publisher, tel),
		addFunds:  NewAddFundsUseCase(store, publisher, tel),
		reset:     NewResetMachineUseCase(store, publisher, tel),
	}
}

func (s *Service) Inventory(ctx context.Context) (domvending.Inventory, error) {
	return s.inventory.Execute(ctx, struct{}{})
}

func (s *Service) Buy(ctx context.Context, in BuyDrinkInput) (domvending.PurchaseResult, error) {
	return s.buy.Execute(ctx, in)
}

func (s *Service) Refill(ctx context.Context, in RefillDrinkInput) (domvending.RefillResult, error) {
	return s.refill.Execute(ctx, in)
}

func (s *Service) AddFunds(ctx context.Context, in AddFundsInput) (domvending.Inventory, error) {
	return s.addFunds.Execute(ctx, in)
}

func (s *Service) Reset(ctx context.Context) (domvending.Inventory, error) {
	return s.reset.Execute(ctx, struct{}{})
}
