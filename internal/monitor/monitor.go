// Package monitor runs one polling task per instrument and supervises their lifecycle.
package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"spreadwatch/internal/memorystore"
	"spreadwatch/internal/metrics"
	"spreadwatch/internal/source"
	"spreadwatch/internal/spread"
)

const (
	DefaultPollInterval = 3 * time.Second
	recordTimeout       = 5 * time.Second
)

// Config holds the settings shared by every instrument monitor.
type Config struct {
	Threshold    float64       // alert threshold, percent
	PollInterval time.Duration // pause between cycles
}

// Monitor polls both sources for one instrument until its context is cancelled.
type Monitor struct {
	instrument string
	epoch      uint64

	sourceA source.Source
	sourceB source.Source
	store   *memorystore.StateStore

	notifier Notifier
	recorder AlertRecorder
	gate     *alertGate
	interval time.Duration

	log *zap.Logger
	now func() time.Time
}

type Option func(m *Monitor)

func WithNotifier(n Notifier) Option {
	return func(m *Monitor) {
		if n != nil {
			m.notifier = n
		}
	}
}

func WithRecorder(r AlertRecorder) Option {
	return func(m *Monitor) {
		m.recorder = r
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(m *Monitor) {
		if log != nil {
			m.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates the monitor for instrument. epoch must come from store.Init for the same instrument.
func New(instrument string, epoch uint64, a, b source.Source, store *memorystore.StateStore, cfg Config, opts ...Option) *Monitor {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	m := &Monitor{
		instrument: instrument,
		epoch:      epoch,
		sourceA:    a,
		sourceB:    b,
		store:      store,
		notifier:   nopNotifier{},
		gate:       newAlertGate(cfg.Threshold),
		interval:   interval,
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(zap.String("instrument", instrument))
	return m
}

// Run loops fetch, evaluate, publish, alert, sleep. Failures inside a cycle are logged and
// the loop carries on; only ctx cancellation ends it, checked before every cycle.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("monitor started", zap.Duration("interval", m.interval), zap.Float64("threshold", m.gate.threshold))
	defer m.log.Info("monitor stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if ctx.Err() != nil {
			return
		}

		m.safePoll(ctx)

		timer.Reset(m.interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

func (m *Monitor) safePoll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PollsTotal.WithLabelValues(m.instrument, metrics.PollPanic).Inc()
			m.log.Error("poll cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	m.poll(ctx)
}

type quote struct {
	price float64
	ok    bool
}

// poll runs a single cycle and returns its outcome label ("" when cancelled mid-fetch).
func (m *Monitor) poll(ctx context.Context) string {
	a, b, ok := m.fetchBoth(ctx)
	if !ok || ctx.Err() != nil {
		return ""
	}

	if !a.ok || !b.ok {
		metrics.PollsTotal.WithLabelValues(m.instrument, metrics.PollPartial).Inc()
		m.log.Debug("price missing, cycle skipped",
			zap.Bool(m.sourceA.Name(), a.ok), zap.Bool(m.sourceB.Name(), b.ok))
		return metrics.PollPartial
	}

	s, err := spread.Evaluate(a.price, b.price)
	if err != nil {
		metrics.PollsTotal.WithLabelValues(m.instrument, metrics.PollSkipped).Inc()
		m.log.Warn("spread not computed", zap.Error(err))
		return metrics.PollSkipped
	}

	now := m.now()
	state := memorystore.InstrumentState{PriceA: a.price, PriceB: b.price, SpreadPercent: s}
	if !m.store.Publish(m.instrument, m.epoch, state, memorystore.SpreadSample{Timestamp: now, SpreadPercent: s}) {
		// stopped while fetching
		return ""
	}
	metrics.PollsTotal.WithLabelValues(m.instrument, metrics.PollOK).Inc()

	if m.gate.Check(s) {
		m.fire(Alert{
			Instrument:    m.instrument,
			SourceA:       m.sourceA.Name(),
			SourceB:       m.sourceB.Name(),
			PriceA:        a.price,
			PriceB:        b.price,
			SpreadPercent: s,
			Threshold:     m.gate.threshold,
			Direction:     spread.Classify(s),
			Timestamp:     now,
		})
	}
	return metrics.PollOK
}

// fetchBoth queries both sources concurrently. If ctx ends first the pending calls are
// abandoned and ok is false.
func (m *Monitor) fetchBoth(ctx context.Context) (a, b quote, ok bool) {
	chA := make(chan quote, 1)
	chB := make(chan quote, 1)
	go m.fetch(ctx, m.sourceA, chA)
	go m.fetch(ctx, m.sourceB, chB)

	for i := 0; i < 2; i++ {
		select {
		case a = <-chA:
		case b = <-chB:
		case <-ctx.Done():
			return a, b, false
		}
	}
	return a, b, true
}

func (m *Monitor) fetch(ctx context.Context, src source.Source, out chan<- quote) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("source panicked", zap.String("source", src.Name()), zap.Any("panic", r))
			out <- quote{}
		}
	}()
	p, ok := src.Fetch(ctx, m.instrument)
	out <- quote{price: p, ok: ok}
}

func (m *Monitor) fire(alert Alert) {
	metrics.AlertsTotal.WithLabelValues(m.instrument).Inc()
	m.log.Info("spread alert",
		zap.Float64("spread", alert.SpreadPercent),
		zap.Float64("price_a", alert.PriceA),
		zap.Float64("price_b", alert.PriceB),
		zap.String("direction", string(alert.Direction)))

	m.notifier.Send(FormatAlert(alert))

	if m.recorder == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := m.recorder.RecordAlert(ctx, alert); err != nil {
			m.log.Error("failed to record alert", zap.Error(err))
		}
	}()
}
