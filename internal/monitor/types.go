package monitor

import (
	"context"
	"time"

	"spreadwatch/internal/spread"
)

// Notifier accepts alert text. Send must return immediately; delivery is the notifier's problem.
type Notifier interface {
	Send(text string)
}

// AlertRecorder persists fired alerts for auditing.
type AlertRecorder interface {
	RecordAlert(ctx context.Context, alert Alert) error
}

// Alert describes one fired spread alert.
type Alert struct {
	Instrument    string           `json:"instrument"`
	SourceA       string           `json:"source_a"`
	SourceB       string           `json:"source_b"`
	PriceA        float64          `json:"price_a"`
	PriceB        float64          `json:"price_b"`
	SpreadPercent float64          `json:"spread_percent"`
	Threshold     float64          `json:"threshold"`
	Direction     spread.Direction `json:"direction"`
	Timestamp     time.Time        `json:"timestamp"`
}

type nopNotifier struct{}

func (nopNotifier) Send(string) {}
