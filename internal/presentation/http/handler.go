package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	appvending "github.com/Zhima-Mochi/minishop-vending/internal/application/vending"
	domvending "github.com/Zhima-Mochi/minishop-vending/internal/domain/vending"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"

	rootMessage    = "Vending Machine Backend is running!"
	msgNotFound    = "Not found."
	msgBadPayment  = "Valid payment amount (positive number) is required."
	msgPaymentSum  = "Payment amount must equal coins + cash."
	msgBadFunds    = "Coins and cash must be zero or positive numbers."
	msgFundsLimit  = "Coins and cash would exceed what the machine can hold."
	msgInternalErr = "Internal server error."
	msgTenderLimit = "Payment amount cannot exceed 1000000 PHP."
)

// maxTender caps every amount a buyer can hand over in one purchase.
const maxTender = 1_000_000

// VendingService is what the HTTP layer needs from the application.
type VendingService interface {
	Inventory(ctx context.Context) (domvending.Inventory, error)
	Buy(ctx context.Context, in appvending.BuyDrinkInput) (domvending.PurchaseResult, error)
	Refill(ctx context.Context, in appvending.RefillDrinkInput) (domvending.RefillResult, error)
	AddFunds(ctx context.Context, in appvending.AddFundsInput) (domvending.Inventory, error)
	Reset(ctx context.Context) (domvending.Inventory, error)
}

type Handler struct {
	service VendingService
	log     observability.Logger
	tel     observability.Observability
	limiter Limiter
	origin  string
}

type Option func(*Handler)

// WithLimiter enables per-client rate limiting on every route.
func WithLimiter(l Limiter) Option {
	return func(h *Handler) { h.limiter = l }
}

// WithAllowOrigin sets Access-Control-Allow-Origin. Default "*".
func WithAllowOrigin(origin string) Option {
	return func(h *Handler) { h.origin = origin }
}

func NewHandler(svc VendingService, tel observability.Observability, opts ...Option) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	h := &Handler{
		service: svc,
		log:     tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:     tel,
		origin:  "*",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	h.muxHandle(mux, http.MethodGet, "/", h.handleRoot)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)
	h.muxHandle(mux, http.MethodGet, "/api/inventory", h.handleInventory)
	h.muxHandle(mux, http.MethodPost, "/api/buy", h.handleBuy)
	h.muxHandle(mux, http.MethodPost, "/api/refill", h.handleRefill)
	h.muxHandle(mux, http.MethodPost, "/api/funds", h.handleAddFunds)
	h.muxHandle(mux, http.MethodPost, "/api/reset", h.handleReset)

	return WithCORS(h.origin)(mux)
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	// Trace → Rate limit → Request logger + metrics → Access log → Handler
	wrapped := h.withTrace(
		WithRateLimit(h.limiter, ClientKey, h.tel)(
			ObservabilityMiddleware(
				h.log,
				func(r *http.Request) string { return r.Header.Get(headerRequestID) },
				h.tel,
			)(
				h.withAccessLog(handler),
			),
		),
	)

	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		// "/" is the mux catch-all, so unknown paths land here too.
		if route == "/" && r.URL.Path != "/" {
			writeFailure(w, http.StatusNotFound, msgNotFound)
			return
		}
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeFailure(w, http.StatusMethodNotAllowed, "Method not allowed.")
			return
		}
		wrapped.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), route)))
	})
}

// Slot stays raw so a missing or non-string slot is reported with the same
// message as an unknown one.
type buyRequest struct {
	Slot          json.RawMessage `json:"slot"`
	PaymentAmount *int            `json:"paymentAmount"`
	Coins         *int            `json:"coins"`
	Cash          *int            `json:"cash"`
}

func (h *Handler) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := decodeJSON(r, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			parseSlot(w, "")
		case errors.As(err, &typeErr) && typeErr.Field != "":
			writeFailure(w, http.StatusBadRequest, msgBadPayment)
		default:
			writeFailure(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	slot, ok := parseSlot(w, slotText(req.Slot))
	if !ok {
		return
	}
	payment, msg := buildPayment(req)
	if msg != "" {
		writeFailure(w, http.StatusBadRequest, msg)
		return
	}

	res, err := h.service.Buy(r.Context(), appvending.BuyDrinkInput{Slot: slot, Payment: payment})
	if err != nil {
		h.writeInternal(w, r, err)
		return
	}
	writeJSON(w, resultStatus(res.Success), res)
}

// buildPayment splits the tender. Without coins or cash the whole
// paymentAmount counts as coins; otherwise the split is authoritative and a
// paymentAmount, when given, must agree with it.
func buildPayment(req buyRequest) (domvending.Payment, string) {
	if req.Coins == nil && req.Cash == nil {
		if req.PaymentAmount == nil || *req.PaymentAmount <= 0 {
			return domvending.Payment{}, msgBadPayment
		}
		total := *req.PaymentAmount
		if total > maxTender {
			return domvending.Payment{}, msgTenderLimit
		}
		return domvending.Payment{Total: total, Coins: total}, ""
	}

	var coins, cash int
	if req.Coins != nil {
		coins = *req.Coins
	}
	if req.Cash != nil {
		cash = *req.Cash
	}
	if coins < 0 || cash < 0 {
		return domvending.Payment{}, msgBadPayment
	}
	if coins > maxTender || cash > maxTender || coins+cash > maxTender {
		return domvending.Payment{}, msgTenderLimit
	}
	if coins+cash == 0 {
		return domvending.Payment{}, msgBadPayment
	}
	total := coins + cash
	if req.PaymentAmount != nil && *req.PaymentAmount != total {
		return domvending.Payment{}, msgPaymentSum
	}
	return domvending.Payment{Total: total, Coins: coins, Cash: cash}, ""
}

type refillRequest struct {
	Slot json.RawMessage `json:"slot"`
}

func (h *Handler) handleRefill(w http.ResponseWriter, r *http.Request) {
	var req refillRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, io.EOF) {
			parseSlot(w, "")
			return
		}
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	slot, ok := parseSlot(w, slotText(req.Slot))
	if !ok {
		return
	}

	res, err := h.service.Refill(r.Context(), appvending.RefillDrinkInput{Slot: slot})
	if err != nil {
		h.writeInternal(w, r, err)
		return
	}
	writeJSON(w, resultStatus(res.Success), res)
}

type fundsRequest struct {
	Coins int `json:"coins"`
	Cash  int `json:"cash"`
}

func (h *Handler) handleAddFunds(w http.ResponseWriter, r *http.Request) {
	var req fundsRequest
	if err := decodeJSON(r, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			writeFailure(w, http.StatusBadRequest, msgBadFunds)
			return
		}
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	inv, err := h.service.AddFunds(r.Context(), appvending.AddFundsInput{Coins: req.Coins, Cash: req.Cash})
	switch {
	case errors.Is(err, domvending.ErrNegativeAmount):
		writeFailure(w, http.StatusBadRequest, msgBadFunds)
	case errors.Is(err, domvending.ErrAmountTooLarge):
		writeFailure(w, http.StatusBadRequest, msgFundsLimit)
	case err != nil:
		h.writeInternal(w, r, err)
	default:
		writeJSON(w, http.StatusOK, inv)
	}
}

func (h *Handler) handleInventory(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Inventory(r.Context())
	if err != nil {
		h.writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Reset(r.Context())
	if err != nil {
		h.writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rootMessage))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request, continuing any W3C
// trace context the caller sent.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	tracer := h.tel.Tracer()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		route := routeFromContext(parentCtx)

		ctx, span := tracer.Start(parentCtx, r.Method+" "+route,
			attribute.String("http.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", r.URL.Path),
			attribute.String("http.user_agent", r.UserAgent()),
		)
		defer span.End()

		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", lrw.status))
		if lrw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(lrw.status))
		}
	})
}

func (h *Handler) writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	logctx.FromOr(r.Context(), h.log).Error("http_handler_failed",
		observability.F("route", routeFromContext(r.Context())),
		observability.F("error", err),
	)
	writeFailure(w, http.StatusInternalServerError, msgInternalErr)
}

func parseSlot(w http.ResponseWriter, raw string) (domvending.Slot, bool) {
	slot, err := domvending.ParseSlot(raw)
	if err != nil {
		writeFailure(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid slot: %s. Must be one of %s.", raw, domvending.SlotList()))
		return "", false
	}
	return slot, true
}

// slotText renders a raw slot value for parseSlot: JSON strings are
// unquoted, anything else is echoed as sent.
func slotText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}

func resultStatus(success bool) int {
	if success {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

type failureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, failureResponse{Success: false, Message: message})
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
