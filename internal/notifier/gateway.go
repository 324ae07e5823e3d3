// Package notifier relays alert text to an external messaging service without ever
// blocking or failing the caller.
package notifier

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"spreadwatch/internal/metrics"
)

// Sender delivers one message. Implementations may block; the gateway bounds them with a timeout.
type Sender interface {
	SendMessage(ctx context.Context, text string) error
}

const (
	defaultQueueSize = 64
	defaultWorkers   = 2
	defaultTimeout   = 10 * time.Second
)

// Gateway is a bounded work queue in front of a Sender.
//
// Send never blocks and never reports failure: when the queue is full the message is
// dropped and logged. With several workers, messages may be delivered out of order.
// A Gateway built with a nil Sender is disabled and discards everything silently.
type Gateway struct {
	sender  Sender
	queue   chan string
	workers int
	timeout time.Duration
	log     *zap.Logger

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	started sync.Once
}

type Option func(g *Gateway)

func WithQueueSize(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.queue = make(chan string, n)
		}
	}
}

func WithWorkers(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.workers = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func NewGateway(sender Sender, log *zap.Logger, opts ...Option) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{
		sender:  sender,
		queue:   make(chan string, defaultQueueSize),
		workers: defaultWorkers,
		timeout: defaultTimeout,
		log:     log.With(zap.String("component", "notifier")),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enabled reports whether messages will actually be delivered.
func (g *Gateway) Enabled() bool {
	return g.sender != nil
}

// Start launches the delivery workers. Calling it more than once has no effect.
func (g *Gateway) Start() {
	if !g.Enabled() {
		g.log.Info("notifier disabled, no credentials configured")
		return
	}
	g.started.Do(func() {
		for i := 0; i < g.workers; i++ {
			g.wg.Add(1)
			go g.worker()
		}
	})
}

// Send enqueues text for delivery.
func (g *Gateway) Send(text string) {
	if !g.Enabled() {
		return
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return
	}

	select {
	case g.queue <- text:
	default:
		metrics.NotificationsTotal.WithLabelValues(metrics.NotifyDropped).Inc()
		g.log.Warn("notification queue full, message dropped", zap.Int("queue_size", cap(g.queue)))
	}
}

// Close stops accepting messages and waits for queued ones to be attempted or ctx to expire.
func (g *Gateway) Close(ctx context.Context) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	close(g.queue)
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		g.log.Warn("notifier shutdown timed out", zap.Int("pending", len(g.queue)))
	}
}

func (g *Gateway) worker() {
	defer g.wg.Done()
	for text := range g.queue {
		g.deliver(text)
	}
}

func (g *Gateway) deliver(text string) {
	defer func() {
		if r := recover(); r != nil {
			metrics.NotificationsTotal.WithLabelValues(metrics.NotifyFailed).Inc()
			g.log.Error("notification sender panicked", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	if err := g.sender.SendMessage(ctx, text); err != nil {
		metrics.NotificationsTotal.WithLabelValues(metrics.NotifyFailed).Inc()
		g.log.Error("failed to deliver notification", zap.Error(err))
		return
	}
	metrics.NotificationsTotal.WithLabelValues(metrics.NotifySent).Inc()
}
