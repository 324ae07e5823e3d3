package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"spreadwatch/internal/memorystore"
	"spreadwatch/internal/metrics"
	"spreadwatch/internal/source"
)

type handle struct {
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
}

// Registry owns the set of running monitors, at most one per instrument.
//
// Start and Stop are serialized, and each adds or removes the instrument's key in the
// state store in the same step, so List and the store's key set stay identical.
type Registry struct {
	ctx     context.Context
	store   *memorystore.StateStore
	sourceA source.Source
	sourceB source.Source
	cfg     Config
	opts    []Option
	log     *zap.Logger

	mu      sync.Mutex
	handles map[string]*handle
	closed  bool
	wg      sync.WaitGroup
}

// NewRegistry creates a registry whose monitors live no longer than ctx. opts are applied
// to every monitor it starts.
func NewRegistry(ctx context.Context, store *memorystore.StateStore, a, b source.Source, cfg Config, log *zap.Logger, opts ...Option) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		ctx:     ctx,
		store:   store,
		sourceA: a,
		sourceB: b,
		cfg:     cfg,
		opts:    append([]Option{WithLogger(log)}, opts...),
		log:     log.With(zap.String("component", "registry")),
		handles: make(map[string]*handle),
	}
}

// Start launches a monitor for instrument with fresh state. It returns false when one is
// already running, the instrument is empty, or the registry is closed.
func (r *Registry) Start(instrument string) bool {
	if instrument == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if _, exists := r.handles[instrument]; exists {
		r.log.Debug("monitor already running", zap.String("instrument", instrument))
		return false
	}

	epoch := r.store.Init(instrument)
	ctx, cancel := context.WithCancel(r.ctx)
	h := &handle{cancel: cancel, done: make(chan struct{}), startedAt: time.Now()}
	r.handles[instrument] = h

	m := New(instrument, epoch, r.sourceA, r.sourceB, r.store, r.cfg, r.opts...)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(h.done)
		m.Run(ctx)
	}()

	metrics.ActiveMonitors.Set(float64(len(r.handles)))
	r.log.Info("monitor added", zap.String("instrument", instrument))
	return true
}

// Stop cancels the instrument's monitor and drops its state and history. It does not wait
// for an in-flight cycle; anything that cycle tries to publish is discarded.
func (r *Registry) Stop(instrument string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[instrument]
	if !ok {
		return false
	}
	h.cancel()
	delete(r.handles, instrument)
	r.store.Remove(instrument)

	metrics.ActiveMonitors.Set(float64(len(r.handles)))
	r.log.Info("monitor removed", zap.String("instrument", instrument), zap.Duration("uptime", time.Since(h.startedAt)))
	return true
}

// List returns the instruments with a running monitor, sorted.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := lo.Keys(r.handles)
	sort.Strings(out)
	return out
}

// Active reports whether instrument is being monitored.
func (r *Registry) Active(instrument string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[instrument]
	return ok
}

// Close stops every monitor and waits for their loops to return or ctx to expire.
// Start is refused afterwards.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	for inst, h := range r.handles {
		h.cancel()
		delete(r.handles, inst)
		r.store.Remove(inst)
	}
	metrics.ActiveMonitors.Set(0)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
