package watcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"spreadwatch/config"
)

type telegramInbox struct {
	mu   sync.Mutex
	msgs []string
}

func (b *telegramInbox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	b.mu.Lock()
	b.msgs = append(b.msgs, r.PostForm.Get("text"))
	b.mu.Unlock()
	_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
}

func (b *telegramInbox) contains(substr string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func fakeVenues() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/contract/ticker", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"code":0,"data":{"symbol":"BTC_USDT","lastPrice":100}}`))
	})
	// mid 102 => +2%
	mux.HandleFunc("/v3/depth", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"bids":[[101.5,1]],"asks":[[102.5,1]]}}`))
	})
	return httptest.NewServer(mux)
}

func testConfig(t *testing.T, venueURL, telegramURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Monitor.Instruments = []string{"BTC/USDT"}
	cfg.Monitor.SpreadThreshold = 1.0
	cfg.Monitor.PollInterval = 20 * time.Millisecond
	cfg.Sources.A = config.SourceConfig{Provider: "mexc", BaseURL: venueURL, Timeout: time.Second}
	cfg.Sources.B = config.SourceConfig{Provider: "quanto", BaseURL: venueURL, Timeout: time.Second}
	cfg.Notifier.Telegram = config.TelegramConfig{Token: "T", ChatID: "1", BaseURL: telegramURL}
	cfg.Notifier.Timeout = time.Second
	cfg.Notifier.StartupMessage = "started"
	cfg.Journal.Driver = "sqlite"
	cfg.Journal.SQLitePath = filepath.Join(t.TempDir(), "alerts.db")
	cfg.Journal.Retention = 24 * time.Hour
	return cfg
}

// go test -v --run TestWatcherEndToEnd
func TestWatcherEndToEnd(t *testing.T) {
	venues := fakeVenues()
	defer venues.Close()
	inbox := &telegramInbox{}
	tg := httptest.NewServer(inbox)
	defer tg.Close()

	w, err := New(testConfig(t, venues.URL, tg.URL), "", zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		st, ok := w.Store().State("BTC/USDT")
		return ok && st.SpreadPercent > 1.9
	}, 3*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool { return inbox.contains("started") }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return inbox.contains("BTC/USDT Arbitrage Alert") }, 3*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		alerts, err := w.journal.ListAlerts(context.Background(), "BTC/USDT", 10)
		return err == nil && len(alerts) == 1
	}, 3*time.Second, 10*time.Millisecond, "a steady spread alerts exactly once")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not shut down")
	}
	assert.Zero(t, w.Store().Len())
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1", "")
	cfg.Sources.B.Provider = "kraken"

	_, err := New(cfg, "", zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "source b")
}

func TestNewRejectsUnknownJournal(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1", "")
	cfg.Journal.Driver = "oracle"

	_, err := New(cfg, "", zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "alert journal")
}
