package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-bookstore/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability"
	"github.com/Zhima-Mochi/minishop-bookstore/internal/observability/logctx"
)

const componentOutbox = "outbox"

// ErrClosed is returned by Publish once the bus has been stopped.
var ErrClosed = errors.New("outbox: bus closed")

// Middleware decorates every handler at subscription time.
type Middleware func(eventName string, h domoutbox.Handler) domoutbox.Handler

type Option func(*Bus)

func WithQueueSize(n int) Option { return func(b *Bus) { b.queueSize = n } }

func WithConcurrency(n int) Option { return func(b *Bus) { b.concurrency = n } }

func WithHandlerTimeout(d time.Duration) Option { return func(b *Bus) { b.handlerTimeout = d } }

func WithMiddleware(mw ...Middleware) Option {
	return func(b *Bus) { b.middleware = append(b.middleware, mw...) }
}

// Bus is an in-process fan-out bus. Events are not durable: whatever is
// still queued when the process dies is lost.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]domoutbox.Handler
	closed bool

	queue          chan domoutbox.Event
	done           chan struct{}
	startOnce      sync.Once
	stopOnce       sync.Once
	queueSize      int
	concurrency    int
	handlerTimeout time.Duration
	middleware     []Middleware

	log        observability.Logger
	delivered  observability.Counter   // external_requests_total{peer,endpoint,outcome}
	handlerDur observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewBus(tel observability.Observability, opts ...Option) *Bus {
	if tel == nil {
		tel = observability.Nop()
	}
	b := &Bus{
		subs:           make(map[string][]domoutbox.Handler),
		done:           make(chan struct{}),
		queueSize:      1024,
		concurrency:    8,
		handlerTimeout: 30 * time.Second,
		log:            tel.Logger().With(observability.F("component", componentOutbox)),
		delivered:      tel.Metrics().Counter(observability.MExternalRequests),
		handlerDur:     tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.queue = make(chan domoutbox.Event, b.queueSize)
	return b
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	for i := len(b.middleware) - 1; i >= 0; i-- {
		h = b.middleware[i](eventName, h)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

// Start launches the dispatch loop. Handlers run detached from ctx
// cancellation; Stop ends the loop.
func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		go b.dispatchLoop(context.WithoutCancel(ctx))
		logctx.FromOr(ctx, b.log).Info("event_bus_started",
			observability.F("queue_size", b.queueSize),
			observability.F("concurrency", b.concurrency),
		)
	})
}

// Stop refuses new events and waits until the queued ones have been handled
// or ctx is done.
func (b *Bus) Stop(ctx context.Context) error {
	var err error
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		close(b.queue)
		b.mu.Unlock()

		started := true
		b.startOnce.Do(func() { started = false; close(b.done) })
		if started {
			select {
			case <-b.done:
			case <-ctx.Done():
				err = ctx.Err()
			}
		}
		logger := logctx.FromOr(ctx, b.log)
		if err != nil {
			logger.Warn("event_bus_stop_timeout", observability.F("pending", len(b.queue)))
			return
		}
		logger.Info("event_bus_stopped")
	})
	return err
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	logger := logctx.FromOr(ctx, b.log).With(observability.F("event", e.EventName()))
	select {
	case b.queue <- e:
		logger.Debug("event_enqueued")
		return nil
	case <-ctx.Done():
		logger.Warn("event_enqueue_aborted", observability.F("error", ctx.Err()))
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

	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	logger := b.log.With(observability.F("event", name))
	if len(handlers) == 0 {
		logger.Debug("event_dropped_no_subscriber")
		return
	}

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup
	for _, h := range handlers {
		h := h
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			start := time.Now()
			outcome := "success"
			defer func() {
				if r := recover(); r != nil {
					outcome = "panic"
					logger.Error("event_handler_panic",
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				b.delivered.Add(1,
					observability.L("peer", componentOutbox),
					observability.L("endpoint", name+".handle"),
					observability.L("outcome", outcome),
				)
				b.handlerDur.Observe(time.Since(start).Seconds(),
					observability.L("peer", componentOutbox),
					observability.L("endpoint", name+".handle"),
				)
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(logctx.With(ctx, logger), b.handlerTimeout)
			defer cancel()
			if err := h(hctx, e); err != nil {
				outcome = "error"
				logger.Warn("event_handler_error", observability.F("error", err))
			}
		}()
	}
	wg.Wait()

	logger.Debug("event_fanned_out", observability.F("handlers", len(handlers)))
}
