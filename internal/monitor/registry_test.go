package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"spreadwatch/internal/memorystore"
)

func newTestRegistry(t *testing.T, a, b *fakeSource, interval time.Duration) (*Registry, *memorystore.StateStore) {
	t.Helper()
	store := memorystore.NewStateStore()
	r := NewRegistry(context.Background(), store, a, b, Config{Threshold: 1, PollInterval: interval}, zaptest.NewLogger(t))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = r.Close(ctx)
	})
	return r, store
}

// go test -v --run TestRegistryStartIsIdempotent
func TestRegistryStartIsIdempotent(t *testing.T) {
	a := fixed("mexc", 100)
	r, store := newTestRegistry(t, a, fixed("quanto", 100), time.Hour)

	assert.True(t, r.Start("BTC"))
	assert.False(t, r.Start("BTC"))

	require.Eventually(t, func() bool { return a.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), a.calls.Load(), "a second monitor task was spawned")

	assert.Equal(t, []string{"BTC"}, r.List())
	assert.Equal(t, []string{"BTC"}, store.Instruments())
}

func TestRegistryRejectsEmptyInstrument(t *testing.T) {
	r, store := newTestRegistry(t, fixed("mexc", 100), fixed("quanto", 100), time.Hour)

	assert.False(t, r.Start(""))
	assert.Empty(t, r.List())
	assert.Zero(t, store.Len())
}

func TestRegistryStopRemovesState(t *testing.T) {
	r, store := newTestRegistry(t, fixed("mexc", 100), fixed("quanto", 101), 10*time.Millisecond)

	require.True(t, r.Start("ETH"))
	require.Eventually(t, func() bool { return len(store.History("ETH")) >= 2 }, time.Second, 5*time.Millisecond)

	assert.True(t, r.Stop("ETH"))
	assert.False(t, r.Stop("ETH"))
	assert.False(t, r.Active("ETH"))

	_, ok := store.State("ETH")
	assert.False(t, ok)
	assert.Nil(t, store.History("ETH"))

	// nothing from the cancelled monitor shows up later
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, store.Len())
}

// go test -v --run TestRegistryRestartIsFresh
func TestRegistryRestartIsFresh(t *testing.T) {
	var down atomic.Bool
	b := &fakeSource{name: "quanto", fn: func(context.Context, string) (float64, bool) {
		if down.Load() {
			return 0, false
		}
		return 103, true
	}}
	r, store := newTestRegistry(t, fixed("mexc", 100), b, 5*time.Millisecond)

	require.True(t, r.Start("SOL"))
	require.Eventually(t, func() bool { return len(store.History("SOL")) >= 3 }, time.Second, 5*time.Millisecond)
	require.True(t, r.Stop("SOL"))

	down.Store(true)
	require.True(t, r.Start("SOL"))
	time.Sleep(30 * time.Millisecond)

	state, ok := store.State("SOL")
	require.True(t, ok)
	assert.Equal(t, memorystore.InstrumentState{}, state)
	assert.Empty(t, store.History("SOL"))
}

func TestRegistryKeySetMatchesStore(t *testing.T) {
	r, store := newTestRegistry(t, fixed("mexc", 100), fixed("quanto", 100), time.Hour)

	for _, inst := range []string{"SOL", "BTC", "ETH"} {
		require.True(t, r.Start(inst))
	}
	require.True(t, r.Stop("ETH"))
	require.False(t, r.Stop("DOGE"))

	assert.Equal(t, []string{"BTC", "SOL"}, r.List())
	assert.Equal(t, r.List(), store.Instruments())
}

func TestRegistryClose(t *testing.T) {
	a := fixed("mexc", 100)
	r, store := newTestRegistry(t, a, fixed("quanto", 100), time.Millisecond)

	require.True(t, r.Start("BTC"))
	require.True(t, r.Start("ETH"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Close(ctx))

	assert.Empty(t, r.List())
	assert.Zero(t, store.Len())
	assert.False(t, r.Start("BTC"))

	calls := a.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, a.calls.Load(), "monitors kept polling after Close")
}
