package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"spreadwatch/internal/memorystore"
)

func TestSpreadObserver(t *testing.T) {
	obs := SpreadObserver{}
	obs.OnPublish("BTC/USDT", memorystore.InstrumentState{SpreadPercent: 1.25}, memorystore.SpreadSample{})

	if got := testutil.ToFloat64(SpreadPercent.WithLabelValues("BTC/USDT")); got != 1.25 {
		t.Fatalf("expected 1.25, got %v", got)
	}

	obs.OnRemove("BTC/USDT")
	if n := testutil.CollectAndCount(SpreadPercent); n != 0 {
		t.Fatalf("expected gauge series to be deleted, got %d", n)
	}
}

func TestOnRemoveDeletesInstrumentSeries(t *testing.T) {
	polls := testutil.CollectAndCount(PollsTotal)
	alerts := testutil.CollectAndCount(AlertsTotal)

	PollsTotal.WithLabelValues("SOL/USDT", PollOK).Inc()
	PollsTotal.WithLabelValues("SOL/USDT", PollPartial).Inc()
	AlertsTotal.WithLabelValues("SOL/USDT").Inc()
	if n := testutil.CollectAndCount(PollsTotal); n != polls+2 {
		t.Fatalf("expected %d poll series, got %d", polls+2, n)
	}

	SpreadObserver{}.OnRemove("SOL/USDT")
	if n := testutil.CollectAndCount(PollsTotal); n != polls {
		t.Fatalf("expected poll series to be deleted, got %d", n)
	}
	if n := testutil.CollectAndCount(AlertsTotal); n != alerts {
		t.Fatalf("expected alert series to be deleted, got %d", n)
	}
}

func TestCollectorsRegistered(t *testing.T) {
	AlertsTotal.WithLabelValues("ETH/USDT").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "spreadwatch_alerts_total" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("spreadwatch_alerts_total metric not found")
	}
}
