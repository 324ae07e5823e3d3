package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestLoadWritesExampleWhenMissing
func TestLoadWritesExampleWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")

	_, err := Load(path)
	require.ErrorIs(t, err, ErrConfigCreated)

	_, err = os.Stat(path)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"GIGGLE/USDT"}, cfg.Monitor.Instruments)
	assert.Equal(t, 1.0, cfg.Monitor.SpreadThreshold)
	assert.Equal(t, 3*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, "mexc", cfg.Sources.A.Provider)
	assert.Equal(t, "quanto", cfg.Sources.B.Provider)
	assert.Equal(t, "sqlite", cfg.Journal.Driver)
	assert.Equal(t, 720*time.Hour, cfg.Journal.Retention)
	assert.Equal(t, "spreadwatch:", cfg.Redis.Prefix)
}

// go test -v --run TestLoadEnvOverrides
func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
monitor:
  instruments: ["btc/usdt", " eth/usdt", "BTC/USDT", ""]
  spread_threshold: 0.5
notifier:
  telegram:
    token: from-file
`), 0644))

	t.Setenv("TELEGRAM_TOKEN", "from-env")
	t.Setenv("CHAT_ID", "42")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, cfg.Monitor.Instruments)
	assert.Equal(t, 0.5, cfg.Monitor.SpreadThreshold)
	assert.Equal(t, "from-env", cfg.Notifier.Telegram.Token)
	assert.Equal(t, "42", cfg.Notifier.Telegram.ChatID)
}

// go test -v --run TestSaveInstruments
func TestSaveInstruments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(exampleConfig), 0644))

	w := NewInstrumentWriter(path)
	require.NoError(t, w.SaveInstruments([]string{"GIGGLE/USDT", "btc/usdt"}))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"GIGGLE/USDT", "BTC/USDT"}, cfg.Monitor.Instruments)
	assert.Equal(t, "quanto", cfg.Sources.B.Provider)
}

// go test -v --run TestResolveSecrets
func TestResolveSecrets(t *testing.T) {
	params := map[string]string{
		"tg":   "secret-token",
		"host": "db.internal",
	}
	get := func(_ context.Context, name string) string { return params[name] }

	cfg := &Config{
		Log: LogConfig{Environment: "prod"},
		SSM: SSMConfig{TelegramTokenParam: "tg", PostgresHostParam: "host", PostgresUserParam: "missing"},
	}
	cfg.Postgres.User = "kept"
	cfg.ResolveSecrets(get)

	assert.Equal(t, "secret-token", cfg.Notifier.Telegram.Token)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "kept", cfg.Postgres.User)

	dev := &Config{Log: LogConfig{Environment: "dev"}, SSM: SSMConfig{TelegramTokenParam: "tg"}}
	dev.ResolveSecrets(get)
	assert.Empty(t, dev.Notifier.Telegram.Token)
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{Host: "localhost", Port: 5432, User: "u", Password: "p", DBName: "alerts", SSLMode: "disable", TimeZone: "UTC"}
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=alerts sslmode=disable TimeZone=UTC", cfg.DSN())
	assert.Contains(t, cfg.ServerDSN(), "dbname=postgres")
}
