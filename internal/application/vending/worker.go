package vending

import (
	"context"
	"fmt"

	domoutbox "github.com/Zhima-Mochi/minishop-vending/internal/domain/outbox"
	domvending "github.com/Zhima-Mochi/minishop-vending/internal/domain/vending"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability/logctx"
)

const workerService = "sales_worker"

// SalesWorker turns vending events into sales metrics and stock warnings.
type SalesWorker struct {
	log        observability.Logger
	sold       observability.Counter
	revenue    observability.Counter
	change     observability.Counter
	refills    observability.Counter
	rejections observability.Counter
	funds      observability.Counter
}

func NewSalesWorker(tel observability.Observability) *SalesWorker {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &SalesWorker{
		log:        tel.Logger().With(observability.F("service", workerService)),
		sold:       m.Counter(observability.MDrinksSold),
		revenue:    m.Counter(observability.MRevenue),
		change:     m.Counter(observability.MChangeDispensed),
		refills:    m.Counter(observability.MRefills),
		rejections: m.Counter(observability.MRejections),
		funds:      m.Counter(observability.MFundsLoaded),
	}
}

// Handlers maps the event names the worker consumes to their handlers.
func (w *SalesWorker) Handlers() map[string]domoutbox.Handler {
	return map[string]domoutbox.Handler{
		domvending.DrinkPurchasedEvent{}.EventName():   w.handlePurchased,
		domvending.PurchaseRejectedEvent{}.EventName(): w.handlePurchaseRejected,
		domvending.DrinkRefilledEvent{}.EventName():    w.handleRefilled,
		domvending.RefillRejectedEvent{}.EventName():   w.handleRefillRejected,
		domvending.FundsAddedEvent{}.EventName():       w.handleFundsAdded,
		domvending.MachineResetEvent{}.EventName():     w.handleReset,
	}
}

// Start subscribes every handler on sub.
func (w *SalesWorker) Start(sub domoutbox.Subscriber) {
	if sub == nil {
		return
	}
	for name, h := range w.Handlers() {
		sub.Subscribe(name, h)
	}
}

func (w *SalesWorker) handlePurchased(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domvending.DrinkPurchasedEvent)
	if !ok {
		return fmt.Errorf("sales worker: unexpected event %T", e)
	}
	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("slot", string(evt.Slot)),
		observability.F("drink", evt.Name),
	)

	slot := observability.L("slot", string(evt.Slot))
	w.sold.Add(1, slot)
	w.revenue.Add(float64(evt.Price), slot)
	if evt.Change > 0 {
		w.change.Add(float64(evt.Change))
	}

	logger.Info("drink_sold",
		observability.F("price", evt.Price),
		observability.F("change", evt.Change),
		observability.F("remaining", evt.RemainingStock),
	)
	if evt.RemainingStock <= domvending.RefillThreshold {
		logger.Warn("low_stock",
			observability.F("remaining", evt.RemainingStock),
			observability.F("refill_threshold", domvending.RefillThreshold),
		)
	}
	if evt.CoinBalanceAfter < 0 {
		logger.Warn("coin_pool_negative",
			observability.F("coins", evt.CoinBalanceAfter),
			observability.F("cash", evt.CashBalanceAfter),
		)
	}
	return nil
}

func (w *SalesWorker) handlePurchaseRejected(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domvending.PurchaseRejectedEvent)
	if !ok {
		return fmt.Errorf("sales worker: unexpected event %T", e)
	}
	w.rejections.Add(1,
		observability.L("operation", "buy"),
		observability.L("reason", string(evt.Reason)),
	)
	logctx.FromOr(ctx, w.log).Debug("purchase_rejected",
		observability.F("slot", string(evt.Slot)),
		observability.F("reason", string(evt.Reason)),
		observability.F("refunded", evt.Refunded),
	)
	return nil
}

func (w *SalesWorker) handleRefilled(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domvending.DrinkRefilledEvent)
	if !ok {
		return fmt.Errorf("sales worker: unexpected event %T", e)
	}
	w.refills.Add(float64(evt.Added), observability.L("slot", string(evt.Slot)))
	logctx.FromOr(ctx, w.log).Info("slot_refilled",
		observability.F("slot", string(evt.Slot)),
		observability.F("added", evt.Added),
		observability.F("new_quantity", evt.NewQuantity),
	)
	return nil
}

func (w *SalesWorker) handleRefillRejected(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domvending.RefillRejectedEvent)
	if !ok {
		return fmt.Errorf("sales worker: unexpected event %T", e)
	}
	w.rejections.Add(1,
		observability.L("operation", "refill"),
		observability.L("reason", string(evt.Reason)),
	)
	return nil
}

func (w *SalesWorker) handleFundsAdded(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domvending.FundsAddedEvent)
	if !ok {
		return fmt.Errorf("sales worker: unexpected event %T", e)
	}
	if evt.Coins > 0 {
		w.funds.Add(float64(evt.Coins), observability.L("pool", "coins"))
	}
	if evt.Cash > 0 {
		w.funds.Add(float64(evt.Cash), observability.L("pool", "cash"))
	}
	logctx.FromOr(ctx, w.log).Info("funds_loaded",
		observability.F("coins", evt.Coins),
		observability.F("cash", evt.Cash),
	)
	return nil
}

func (w *SalesWorker) handleReset(ctx context.Context, _ domoutbox.Event) error {
	logctx.FromOr(ctx, w.log).Info("machine_reset")
	return nil
}
