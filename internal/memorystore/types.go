package memorystore

import "time"

// HistoryCapacity is the number of spread samples kept per instrument.
const HistoryCapacity = 50

// InstrumentState holds the latest known values for an instrument.
// Fields stay zero until the first successful poll.
type InstrumentState struct {
	PriceA        float64 `json:"price_a"`        // Reference price from source A
	PriceB        float64 `json:"price_b"`        // Price from source B
	SpreadPercent float64 `json:"spread_percent"` // (B - A) / A * 100
}

// SpreadSample is a single point of an instrument's spread history.
type SpreadSample struct {
	Timestamp     time.Time `json:"timestamp"`
	SpreadPercent float64   `json:"spread_percent"`
}

// Snapshot is a point-in-time copy of the whole store.
// Each instrument is consistent on its own; no cross-instrument consistency is implied.
type Snapshot struct {
	Data    map[string]InstrumentState `json:"data"`
	History map[string][]SpreadSample  `json:"history"`
}

// Observer is notified after every successful publish and removal.
// Callbacks run on the writer's goroutine while that instrument is locked and must not block.
type Observer interface {
	OnPublish(instrument string, state InstrumentState, sample SpreadSample)
	OnRemove(instrument string)
}
