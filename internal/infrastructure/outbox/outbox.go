package outbox

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-vending/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability"
	"github.com/Zhima-Mochi/minishop-vending/internal/observability/logctx"
)

const (
	componentOutbox       = "outbox"
	defaultQueueSize      = 1024
	defaultConcurrency    = 8
	defaultHandlerTimeout = 30 * time.Second
)

// Bus is an in-memory, non-durable event bus. Events are dispatched in
// publish order by a single loop; handlers of one event run concurrently up
// to the concurrency cap.
type Bus struct {
	subsMu         sync.RWMutex
	subs           map[string][]domoutbox.Handler
	mu             sync.RWMutex // guards queue close against in-flight Publish
	queue          chan domoutbox.Event
	closed         bool
	started        bool
	startOnce      sync.Once
	stopOnce       sync.Once
	done           chan struct{}
	concurrency    int
	handlerTimeout time.Duration
	log            observability.Logger
}

type Option func(*Bus)

// WithQueueSize sets the publish buffer.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan domoutbox.Event, n)
		}
	}
}

// WithConcurrency caps how many handlers of one event run at once.
func WithConcurrency(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithHandlerTimeout bounds each handler invocation.
func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.handlerTimeout = d
		}
	}
}

func NewBus(logger observability.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = observability.NopLogger()
	}
	b := &Bus{
		subs:           make(map[string][]domoutbox.Handler),
		queue:          make(chan domoutbox.Event, defaultQueueSize),
		done:           make(chan struct{}),
		concurrency:    defaultConcurrency,
		handlerTimeout: defaultHandlerTimeout,
		log:            logger.With(observability.F("component", componentOutbox)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

// Start launches the dispatch loop. Handlers inherit ctx values but not its
// cancellation; use Stop to end the loop.
func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		b.mu.Lock()
		b.started = true
		b.mu.Unlock()

		go b.dispatchLoop(context.WithoutCancel(ctx))
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop refuses further events and waits until queued events have been
// dispatched or ctx is done.
func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.queue)
		started := b.started
		b.mu.Unlock()

		logger := logctx.FromOr(ctx, b.log)
		if started {
			select {
			case <-b.done:
			case <-ctx.Done():
				logger.Warn("event_bus_stop_timeout", observability.F("pending", len(b.queue)))
				return
			}
		}
		logger.Info("event_bus_stopped")
	})
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return domoutbox.ErrClosed
	}

	logger := logctx.FromOr(ctx, b.log).With(observability.F("event", e.EventName()))
	select {
	case b.queue <- e:
		logger.Debug("event_enqueued")
		return nil
	case <-ctx.Done():
		logger.Warn("event_enqueue_aborted",
			observability.F("error", ctx.Err()),
		)
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.done)
	for e := range b.queue {
		b.fanout(ctx, e)
	}
}

func (b *Bus) fanout(ctx context.Context, e domoutbox.Event) {
	name := e.EventName()
	logger := b.log.With(observability.F("event", name))

	b.subsMu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.subsMu.RUnlock()

	if len(handlers) == 0 {
		logger.Debug("event_dropped_no_subscriber")
		return
	}

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event_handler_panic",
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
			defer cancel()
			hctx = logctx.With(hctx, logger)
			if err := h(hctx, e); err != nil {
				logger.Warn("event_handler_error",
					observability.F("error", err),
				)
			}
		}()
	}

	wg.Wait()

	logger.Debug("event_fanned_out",
		observability.F("handlers", len(handlers)),
	)
}
