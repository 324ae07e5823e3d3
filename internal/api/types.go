package api

import (
	"context"

	"spreadwatch/internal/memorystore"
	"spreadwatch/pkg/storage/journal"
)

// Registry is the subset of monitor.Registry the API drives.
type Registry interface {
	Start(instrument string) bool
	Stop(instrument string) bool
	List() []string
}

// InstrumentSaver persists the monitored instrument list after it changes.
type InstrumentSaver interface {
	SaveInstruments(instruments []string) error
}

// AlertLister reads journaled alerts, newest first.
type AlertLister interface {
	ListAlerts(ctx context.Context, instrument string, limit int) ([]journal.AlertRecord, error)
}

// HealthCheck reports an unhealthy dependency with a non-nil error.
type HealthCheck func(ctx context.Context) error

// SourceNames labels the two price columns.
type SourceNames struct {
	A string `json:"a"`
	B string `json:"b"`
}

type Response struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Instrument string `json:"instrument,omitempty"`
}

type instrumentRequest struct {
	Pair string `json:"pair" form:"pair"`
}

// DataResponse is served by /data and pushed over /ws.
type DataResponse struct {
	Sources SourceNames                            `json:"sources"`
	Data    map[string]memorystore.InstrumentState `json:"data"`
	History map[string][]memorystore.SpreadSample  `json:"history"`
}

func newDataResponse(sources SourceNames, snap memorystore.Snapshot) DataResponse {
	return DataResponse{Sources: sources, Data: snap.Data, History: snap.History}
}
