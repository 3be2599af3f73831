package vending

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	domoutbox "github.com/Zhima-Mochi/minishop-vending/internal/domain/outbox"
	domvending "github.com/Zhima-Mochi/minishop-vending/internal/domain/vending"
	"github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/memory"
	obsinfra "github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-vending/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) last() domoutbox.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

type failingStore struct{ err error }

func (s failingStore) View(context.Context, func(*domvending.Machine) error) error   { return s.err }
func (s failingStore) Update(context.Context, func(*domvending.Machine) error) error { return s.err }

type harness struct {
	t     *testing.T
	store *memory.MachineStore
	pub   *recordingPublisher
	reg   *prometheus.Registry
	spans *tracetest.SpanRecorder
	logs  *observer.ObservedLogs
	tel   observability.Observability
	svc   *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	reg := prometheus.NewRegistry()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	core, logs := observer.New(zap.DebugLevel)

	tel := obsinfra.NewWithRegistry(
		oteltrace.FromProvider(tp, "vending-test"),
		zaplogger.New(zap.New(core)),
		prometrics.New(reg, "", ""),
	)

	h := &harness{
		t:     t,
		store: memory.NewMachineStore(nil),
		pub:   &recordingPublisher{},
		reg:   reg,
		spans: spans,
		logs:  logs,
		tel:   tel,
	}
	h.svc = NewService(h.store, h.pub, tel)
	return h
}

func (h *harness) requests(useCase, outcome string) float64 {
	return counterValue(h.t, h.reg, observability.MUsecaseRequests, "use_case", useCase, "outcome", outcome)
}

func (h *harness) counter(key observability.MetricKey, labelPairs ...string) float64 {
	return counterValue(h.t, h.reg, key, labelPairs...)
}

// counterValue reads one counter series from reg. labelPairs alternate
// name and value and must name every label of the series.
func counterValue(t *testing.T, reg prometheus.Gatherer, key observability.MetricKey, labelPairs ...string) float64 {
	t.Helper()
	want := make(map[string]string, len(labelPairs)/2)
	for i := 0; i+1 < len(labelPairs); i += 2 {
		want[labelPairs[i]] = labelPairs[i+1]
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != string(key) {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m.GetLabel(), want) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) != len(want) {
		return false
	}
	for _, lp := range got {
		if v, ok := want[lp.GetName()]; !ok || v != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestGetInventory(t *testing.T) {
	h := newHarness(t)

	inv, err := h.svc.Inventory(context.Background())
	require.NoError(t, err)
	assert.Len(t, inv.Drinks, 8)
	assert.Equal(t, domvending.InitialCoins, inv.Coins)
	assert.Equal(t, domvending.InitialCash, inv.Cash)

	assert.Equal(t, 1.0, h.requests(useCaseInventory, outcomeSuccess))
	assert.Nil(t, h.pub.last())

	spans := h.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "UC.GetInventory", spans[0].Name())
}

func TestBuyDrinkSuccess(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Buy(context.Background(), BuyDrinkInput{
		Slot:    domvending.SlotA1,
		Payment: domvending.Payment{Total: 20, Coins: 20},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 10, res.Change)
	assert.Equal(t, "You purchased Coke from slot A1. Your change is 10 PHP.", res.Message)
	require.NotNil(t, res.PurchasedDrink)
	assert.Equal(t, 10, res.PurchasedDrink.Quantity)

	evt, ok := h.pub.last().(domvending.DrinkPurchasedEvent)
	require.True(t, ok)
	assert.Equal(t, domvending.SlotA1, evt.Slot)
	assert.Equal(t, 9, evt.RemainingStock)
	assert.Equal(t, 110, evt.CoinBalanceAfter)
	assert.Equal(t, 200, evt.CashBalanceAfter)
	assert.Equal(t, 20, evt.CoinsTendered)

	assert.Equal(t, 1.0, h.requests(useCaseBuy, outcomeSuccess))

	done := h.logs.FilterMessage("use_case_done").All()
	require.Len(t, done, 1)
	fields := done[0].ContextMap()
	assert.Equal(t, useCaseBuy, fields["use_case"])
	assert.Equal(t, outcomeSuccess, fields["outcome"])
	assert.NotEmpty(t, fields["trace_id"])
}

func TestBuyDrinkRejections(t *testing.T) {
	tests := []struct {
		name    string
		slot    domvending.Slot
		payment domvending.Payment
		status  domvending.Status
		message string
	}{
		{
			name:    "empty slot",
			slot:    domvending.SlotA3,
			payment: domvending.Payment{Total: 50, Coins: 50},
			status:  domvending.StatusDrinkNotFound,
			message: "Drink not found.",
		},
		{
			name:    "underpaid",
			slot:    domvending.SlotC2,
			payment: domvending.Payment{Total: 20, Coins: 20},
			status:  domvending.StatusInsufficientPayment,
			message: "Payment is not enough. Price: 35 PHP. Paid: 20 PHP.",
		},
		{
			name:    "no change",
			slot:    domvending.SlotA1,
			payment: domvending.Payment{Total: 1000, Cash: 1000},
			status:  domvending.StatusInsufficientChange,
			message: "Vending machine does not have enough change. Please use exact amount or smaller denominations.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			res, err := h.svc.Buy(context.Background(), BuyDrinkInput{Slot: tt.slot, Payment: tt.payment})
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, tt.payment.Total, res.Change)

			evt, ok := h.pub.last().(domvending.PurchaseRejectedEvent)
			require.True(t, ok)
			assert.Equal(t, tt.status, evt.Reason)
			assert.Equal(t, tt.payment.Total, evt.Refunded)

			assert.Equal(t, 1.0, h.requests(useCaseBuy, outcomeRejected))

			inv, err := h.svc.Inventory(context.Background())
			require.NoError(t, err)
			assert.Equal(t, domvending.InitialCoins, inv.Coins)
			assert.Equal(t, domvending.InitialCash, inv.Cash)
		})
	}
}

func TestBuyDrinkOutOfStock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < domvending.MaxStock; i++ {
		res, err := h.svc.Buy(ctx, BuyDrinkInput{Slot: domvending.SlotB2, Payment: domvending.Payment{Total: 20, Coins: 20}})
		require.NoError(t, err)
		require.True(t, res.Success)
	}

	res, err := h.svc.Buy(ctx, BuyDrinkInput{Slot: domvending.SlotB2, Payment: domvending.Payment{Total: 20, Coins: 20}})
	require.NoError(t, err)
	assert.Equal(t, domvending.StatusOutOfStock, res.Status)
	assert.Equal(t, "Sprite is out of stock.", res.Message)
}

func TestBuyDrinkPublishFailureKeepsResult(t *testing.T) {
	h := newHarness(t)
	h.pub.err = domoutbox.ErrClosed

	res, err := h.svc.Buy(context.Background(), BuyDrinkInput{
		Slot:    domvending.SlotA2,
		Payment: domvending.Payment{Total: 25, Coins: 25},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)

	warn := h.logs.FilterMessage("event_publish_failed").All()
	require.Len(t, warn, 1)
	assert.Equal(t, "vending.drink_purchased", warn[0].ContextMap()["event"])
}

func TestBuyDrinkStoreFailure(t *testing.T) {
	boom := errors.New("store down")
	reg := prometheus.NewRegistry()
	tel := obsinfra.NewWithRegistry(nil, nil, prometrics.New(reg, "", ""))
	uc := NewBuyDrinkUseCase(failingStore{err: boom}, nil, tel)

	_, err := uc.Execute(context.Background(), BuyDrinkInput{Slot: domvending.SlotA1})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, counterValue(t, reg, observability.MUsecaseRequests, "use_case", useCaseBuy, "outcome", outcomeError))
}

func TestRefillDrink(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.Refill(ctx, RefillDrinkInput{Slot: domvending.SlotA1})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Coke current stock (10) is above refill threshold (3).", res.Message)
	_, ok := h.pub.last().(domvending.RefillRejectedEvent)
	assert.True(t, ok)

	for i := 0; i < 8; i++ {
		_, err := h.svc.Buy(ctx, BuyDrinkInput{Slot: domvending.SlotA1, Payment: domvending.Payment{Total: 10, Coins: 10}})
		require.NoError(t, err)
	}

	res, err = h.svc.Refill(ctx, RefillDrinkInput{Slot: domvending.SlotA1})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Coke (Slot: A1) refilled. New quantity: 10.", res.Message)
	require.NotNil(t, res.NewQuantity)
	assert.Equal(t, 10, *res.NewQuantity)

	evt, ok := h.pub.last().(domvending.DrinkRefilledEvent)
	require.True(t, ok)
	assert.Equal(t, 8, evt.Added)
	assert.Equal(t, 10, evt.NewQuantity)

	assert.Equal(t, 1.0, h.requests(useCaseRefill, outcomeRejected))
	assert.Equal(t, 1.0, h.requests(useCaseRefill, outcomeSuccess))
}

func TestRefillUnknownSlot(t *testing.T) {
	h := newHarness(t)

	res, err := h.svc.Refill(context.Background(), RefillDrinkInput{Slot: domvending.SlotD3})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domvending.StatusDrinkNotFound, res.Status)
	assert.Nil(t, res.NewQuantity)
}

func TestAddFunds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	inv, err := h.svc.AddFunds(ctx, AddFundsInput{Coins: 37, Cash: 20})
	require.NoError(t, err)
	assert.Equal(t, 137, inv.Coins)
	assert.Equal(t, 220, inv.Cash)

	evt, ok := h.pub.last().(domvending.FundsAddedEvent)
	require.True(t, ok)
	assert.Equal(t, 37, evt.Coins)

	_, err = h.svc.AddFunds(ctx, AddFundsInput{Coins: 5, Cash: -1})
	assert.ErrorIs(t, err, domvending.ErrNegativeAmount)

	inv, err = h.svc.Inventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 137, inv.Coins)
	assert.Equal(t, 220, inv.Cash)
	assert.Equal(t, 1.0, h.requests(useCaseAddFunds, outcomeError))
}

func TestAddFundsRejectsOverflow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AddFunds(ctx, AddFundsInput{Coins: 1, Cash: math.MaxInt})
	assert.ErrorIs(t, err, domvending.ErrAmountTooLarge)

	inv, err := h.svc.Inventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, domvending.InitialCoins, inv.Coins)
	assert.Equal(t, domvending.InitialCash, inv.Cash)
	assert.Equal(t, 1.0, h.requests(useCaseAddFunds, outcomeError))
	assert.Nil(t, h.pub.last())
}

func TestResetMachine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Buy(ctx, BuyDrinkInput{Slot: domvending.SlotC1, Payment: domvending.Payment{Total: 15, Cash: 15}})
	require.NoError(t, err)
	_, err = h.svc.AddFunds(ctx, AddFundsInput{Coins: 1})
	require.NoError(t, err)

	inv, err := h.svc.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, domvending.InitialCoins, inv.Coins)
	assert.Equal(t, domvending.InitialCash, inv.Cash)
	fanta, ok := inv.Drink(domvending.SlotC1)
	require.True(t, ok)
	assert.Equal(t, domvending.MaxStock, fanta.Quantity)

	_, ok = h.pub.last().(domvending.MachineResetEvent)
	assert.True(t, ok)
}

func TestUseCasesTolerateNilTelemetry(t *testing.T) {
	svc := NewService(memory.NewMachineStore(nil), nil, nil)

	res, err := svc.Buy(context.Background(), BuyDrinkInput{
		Slot:    domvending.SlotD2,
		Payment: domvending.Payment{Total: 25, Coins: 25},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
}
