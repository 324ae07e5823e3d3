// Package source adapts venue market data clients to a single "price or absent" contract.
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"spreadwatch/internal/metrics"
)

// Source fetches a reference price for an instrument from one venue.
// Fetch never returns an error: any failure is logged and reported as ok == false.
type Source interface {
	Name() string
	Fetch(ctx context.Context, instrument string) (price float64, ok bool)
}

// PriceFunc is the venue-specific part of an adapter.
type PriceFunc func(ctx context.Context, instrument string) (float64, error)

const DefaultTimeout = 5 * time.Second

// Adapter wraps a PriceFunc with a per-call timeout and failure containment.
type Adapter struct {
	name    string
	fetch   PriceFunc
	timeout time.Duration
	log     *zap.Logger
}

var _ Source = (*Adapter)(nil)

func NewAdapter(name string, fetch PriceFunc, timeout time.Duration, log *zap.Logger) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		name:    name,
		fetch:   fetch,
		timeout: timeout,
		log:     log.With(zap.String("source", name)),
	}
}

func (a *Adapter) Name() string {
	return a.name
}

// Fetch calls the venue once. It does not retry; the monitor's poll loop owns the cadence.
func (a *Adapter) Fetch(ctx context.Context, instrument string) (price float64, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("price fetch panicked", zap.String("instrument", instrument), zap.Any("panic", r), zap.Stack("stack"))
			metrics.SourceFailuresTotal.WithLabelValues(a.name).Inc()
			price, ok = 0, false
		}
	}()

	p, err := a.fetch(ctx, instrument)
	if err != nil {
		a.log.Warn("failed to fetch price", zap.String("instrument", instrument), zap.Error(err))
		metrics.SourceFailuresTotal.WithLabelValues(a.name).Inc()
		return 0, false
	}
	if p <= 0 {
		a.log.Warn("venue returned non-positive price", zap.String("instrument", instrument), zap.Float64("price", p))
		metrics.SourceFailuresTotal.WithLabelValues(a.name).Inc()
		return 0, false
	}
	return p, true
}

// Provider names accepted in configuration.
const (
	ProviderMEXC    = "mexc"
	ProviderQuanto  = "quanto"
	ProviderBybit   = "bybit"
	ProviderBinance = "binance"
)

// Settings carries the provider-agnostic knobs of a source slot.
type Settings struct {
	Provider  string
	BaseURL   string
	Timeout   time.Duration
	Category  string
	APIKey    string
	APISecret string
}

// New builds the Source for s.Provider.
func New(s Settings, log *zap.Logger) (Source, error) {
	var fetch PriceFunc
	switch strings.ToLower(s.Provider) {
	case ProviderMEXC:
		fetch = mexcPrice(s)
	case ProviderQuanto:
		fetch = quantoPrice(s)
	case ProviderBybit:
		fetch = bybitPrice(s)
	case ProviderBinance:
		fetch = binancePrice(s)
	default:
		return nil, fmt.Errorf("unknown price source provider %q", s.Provider)
	}
	return NewAdapter(strings.ToLower(s.Provider), fetch, s.Timeout, log), nil
}
