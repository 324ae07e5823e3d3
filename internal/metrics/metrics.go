// Package metrics exposes Prometheus collectors for the spread monitor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"spreadwatch/internal/memorystore"
)

var (
	PollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "spreadwatch_polls_total", Help: "Poll cycles by outcome"},
		[]string{"instrument", "result"},
	)
	SourceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "spreadwatch_source_failures_total", Help: "Price fetches that returned no price"},
		[]string{"source"},
	)
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "spreadwatch_alerts_total", Help: "Spread alerts fired"},
		[]string{"instrument"},
	)
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "spreadwatch_notifications_total", Help: "Notifier outcomes"},
		[]string{"result"},
	)
	SpreadPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "spreadwatch_spread_percent", Help: "Latest spread (B - A) / A * 100"},
		[]string{"instrument"},
	)
	ActiveMonitors = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "spreadwatch_active_monitors", Help: "Instruments currently monitored"},
	)
)

// Poll outcomes.
const (
	PollOK      = "ok"
	PollPartial = "partial" // at least one source absent
	PollSkipped = "skipped" // zero reference price
	PollPanic   = "panic"
)

// Notification outcomes.
const (
	NotifySent    = "sent"
	NotifyFailed  = "failed"
	NotifyDropped = "dropped"
)

func init() {
	prometheus.MustRegister(PollsTotal, SourceFailuresTotal, AlertsTotal, NotificationsTotal, SpreadPercent, ActiveMonitors)
}

// SpreadObserver keeps SpreadPercent in sync with the state store and drops every
// instrument-labelled series once the instrument is removed.
type SpreadObserver struct{}

var _ memorystore.Observer = SpreadObserver{}

func (SpreadObserver) OnPublish(instrument string, state memorystore.InstrumentState, _ memorystore.SpreadSample) {
	SpreadPercent.WithLabelValues(instrument).Set(state.SpreadPercent)
}

func (SpreadObserver) OnRemove(instrument string) {
	SpreadPercent.DeleteLabelValues(instrument)
	AlertsTotal.DeleteLabelValues(instrument)
	PollsTotal.DeletePartialMatch(prometheus.Labels{"instrument": instrument})
}
