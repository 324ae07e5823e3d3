package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spreadwatch/internal/memorystore"
	"spreadwatch/internal/metrics"
	"spreadwatch/internal/spread"
)

type fakeSource struct {
	name  string
	calls atomic.Int64
	fn    func(ctx context.Context, instrument string) (float64, bool)
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, instrument string) (float64, bool) {
	f.calls.Add(1)
	return f.fn(ctx, instrument)
}

func fixed(name string, price float64) *fakeSource {
	return &fakeSource{name: name, fn: func(context.Context, string) (float64, bool) { return price, true }}
}

// sequence returns prices one per call, repeating the last one.
func sequence(name string, prices ...float64) *fakeSource {
	var mu sync.Mutex
	i := 0
	return &fakeSource{name: name, fn: func(context.Context, string) (float64, bool) {
		mu.Lock()
		defer mu.Unlock()
		p := prices[i]
		if i < len(prices)-1 {
			i++
		}
		return p, true
	}}
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordingNotifier) Send(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

type chanRecorder chan Alert

func (c chanRecorder) RecordAlert(_ context.Context, a Alert) error {
	c <- a
	return nil
}

func newTestMonitor(t *testing.T, a, b *fakeSource, threshold float64, opts ...Option) (*Monitor, *memorystore.StateStore) {
	t.Helper()
	store := memorystore.NewStateStore()
	epoch := store.Init("BTC")
	m := New("BTC", epoch, a, b, store, Config{Threshold: threshold, PollInterval: time.Millisecond}, opts...)
	return m, store
}

// go test -v --run TestAlertGate
func TestAlertGate(t *testing.T) {
	g := newAlertGate(1.0)

	var fired []float64
	for _, s := range []float64{0.5, 1.2, 0.8, 1.5, 1.3} {
		if g.Check(s) {
			fired = append(fired, s)
		}
	}
	assert.Equal(t, []float64{1.2, 1.5}, fired)
	assert.Equal(t, 1.5, g.LastEmitted())
}

func TestAlertGateUsesMagnitude(t *testing.T) {
	g := newAlertGate(1.0)

	assert.True(t, g.Check(-1.2))
	assert.False(t, g.Check(1.1), "smaller magnitude in the other direction")
	assert.True(t, g.Check(-1.3))
	assert.False(t, g.Check(1.3), "equal magnitude does not fire")
	assert.True(t, g.Check(2.0))
}

func TestAlertGateNeverResets(t *testing.T) {
	g := newAlertGate(1.0)

	require.True(t, g.Check(3.0))
	for _, s := range []float64{0, 0.1, -0.2, 0} {
		assert.False(t, g.Check(s))
	}
	assert.False(t, g.Check(2.5), "must beat the previous peak")
}

func TestFormatAlert(t *testing.T) {
	a := Alert{
		Instrument:    "BTC",
		SourceA:       "mexc",
		SourceB:       "quanto",
		PriceA:        100,
		PriceB:        101.5,
		SpreadPercent: 1.5,
		Direction:     spread.BPremium,
	}
	text := FormatAlert(a)
	assert.Contains(t, text, "🟢 BTC Arbitrage Alert")
	assert.Contains(t, text, "Spread: 1.50%")
	assert.Contains(t, text, "MEXC: 100.00000")
	assert.Contains(t, text, "QUANTO: 101.50000")
	assert.Contains(t, text, "Buy on MEXC / Sell on QUANTO")

	a.Direction = spread.APremium
	a.SpreadPercent = -1.5
	text = FormatAlert(a)
	assert.Contains(t, text, "🔴")
	assert.Contains(t, text, "Spread: -1.50%")
	assert.Contains(t, text, "Sell on MEXC / Buy on QUANTO")
}

// go test -v --run TestPollPublishesAndAlerts
func TestPollPublishesAndAlerts(t *testing.T) {
	notifier := &recordingNotifier{}
	recorder := make(chanRecorder, 4)
	a := fixed("mexc", 100)
	b := sequence("quanto", 100.5, 101.2, 100.8, 101.5, 101.3)
	m, store := newTestMonitor(t, a, b, 1.0, WithNotifier(notifier), WithRecorder(recorder))

	for i := 0; i < 5; i++ {
		assert.Equal(t, metrics.PollOK, m.poll(context.Background()))
	}

	state, ok := store.State("BTC")
	require.True(t, ok)
	assert.Equal(t, 100.0, state.PriceA)
	assert.Equal(t, 101.3, state.PriceB)
	assert.InDelta(t, 1.3, state.SpreadPercent, 1e-9)
	assert.Len(t, store.History("BTC"), 5)

	sent := notifier.sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0], "Spread: 1.20%")
	assert.Contains(t, sent[1], "Spread: 1.50%")

	for _, want := range []float64{1.2, 1.5} {
		select {
		case got := <-recorder:
			assert.InDelta(t, want, got.SpreadPercent, 1e-9)
			assert.Equal(t, "BTC", got.Instrument)
			assert.Equal(t, spread.BPremium, got.Direction)
		case <-time.After(time.Second):
			t.Fatal("alert was not recorded")
		}
	}
}

func TestPollSkipsWhenSourceAbsent(t *testing.T) {
	var bDown atomic.Bool
	a := fixed("mexc", 100)
	b := &fakeSource{name: "quanto", fn: func(context.Context, string) (float64, bool) {
		if bDown.Load() {
			return 0, false
		}
		return 101, true
	}}
	m, store := newTestMonitor(t, a, b, 5)

	require.Equal(t, metrics.PollOK, m.poll(context.Background()))
	before, _ := store.State("BTC")

	bDown.Store(true)
	assert.Equal(t, metrics.PollPartial, m.poll(context.Background()))
	after, _ := store.State("BTC")
	assert.Equal(t, before, after)
	assert.Len(t, store.History("BTC"), 1)

	bDown.Store(false)
	assert.Equal(t, metrics.PollOK, m.poll(context.Background()))
	assert.Len(t, store.History("BTC"), 2)
}

func TestPollSkipsZeroReference(t *testing.T) {
	m, store := newTestMonitor(t, fixed("mexc", 0), fixed("quanto", 100), 1)

	assert.Equal(t, metrics.PollSkipped, m.poll(context.Background()))
	assert.Empty(t, store.History("BTC"))
}

func TestPollContainsSourcePanic(t *testing.T) {
	a := fixed("mexc", 100)
	b := &fakeSource{name: "quanto", fn: func(context.Context, string) (float64, bool) { panic("boom") }}
	m, _ := newTestMonitor(t, a, b, 1)

	assert.NotPanics(t, func() {
		assert.Equal(t, metrics.PollPartial, m.poll(context.Background()))
	})
}

func TestPollAfterRemoveLeavesNoResidue(t *testing.T) {
	notifier := &recordingNotifier{}
	m, store := newTestMonitor(t, fixed("mexc", 100), fixed("quanto", 110), 1, WithNotifier(notifier))

	store.Remove("BTC")
	assert.Equal(t, "", m.poll(context.Background()))

	_, ok := store.State("BTC")
	assert.False(t, ok)
	assert.Empty(t, notifier.sent())

	// a newer Init does not accept the old epoch either
	store.Init("BTC")
	m.poll(context.Background())
	assert.Empty(t, store.History("BTC"))
}

// go test -v --run TestRunStopsOnCancel
func TestRunStopsOnCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	// ignores ctx so only the monitor's own select can abandon it
	stuck := &fakeSource{name: "quanto", fn: func(context.Context, string) (float64, bool) {
		<-release
		return 0, false
	}}
	m, _ := newTestMonitor(t, fixed("mexc", 100), stuck, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return stuck.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunKeepsPollingThroughFailures(t *testing.T) {
	a := &fakeSource{name: "mexc", fn: func(context.Context, string) (float64, bool) { return 0, false }}
	m, _ := newTestMonitor(t, a, fixed("quanto", 100), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return a.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
