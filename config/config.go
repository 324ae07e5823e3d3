package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// ErrConfigCreated is returned by Load when no config file existed and an example was written.
var ErrConfigCreated = errors.New("config file created, fill in your values and restart")

type Config struct {
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Log      LogConfig      `mapstructure:"log"`
	SSM      SSMConfig      `mapstructure:"ssm"`
}

type MonitorConfig struct {
	Instruments     []string      `mapstructure:"instruments"`
	SpreadThreshold float64       `mapstructure:"spread_threshold"` // percent
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

type SourcesConfig struct {
	A SourceConfig `mapstructure:"a"`
	B SourceConfig `mapstructure:"b"`
}

// SourceConfig selects and tunes one market data venue.
type SourceConfig struct {
	Provider  string        `mapstructure:"provider"` // "mexc", "quanto", "bybit", "binance"
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Category  string        `mapstructure:"category"` // bybit only: "linear", "spot"
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
}

type NotifierConfig struct {
	Telegram       TelegramConfig `mapstructure:"telegram"`
	QueueSize      int            `mapstructure:"queue_size"`
	Workers        int            `mapstructure:"workers"`
	Timeout        time.Duration  `mapstructure:"timeout"`
	StartupMessage string         `mapstructure:"startup_message"`
}

type TelegramConfig struct {
	Token   string `mapstructure:"token"`
	ChatID  string `mapstructure:"chat_id"`
	BaseURL string `mapstructure:"base_url"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// JournalConfig selects where fired alerts are recorded. An empty driver disables the journal.
type JournalConfig struct {
	Driver     string        `mapstructure:"driver"` // "", "postgres", "sqlite"
	SQLitePath string        `mapstructure:"sqlite_path"`
	CreateDB   bool          `mapstructure:"create_db"`
	Retention  time.Duration `mapstructure:"retention"` // alerts older than this are pruned daily, 0 keeps everything
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
	MaxSizeMB   int    `mapstructure:"max_size_mb"` // rotate the log file past this size
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// SSMConfig names the Parameter Store entries read in prod.
type SSMConfig struct {
	TelegramTokenParam    string `mapstructure:"telegram_token_param"`
	PostgresHostParam     string `mapstructure:"postgres_host_param"`
	PostgresUserParam     string `mapstructure:"postgres_user_param"`
	PostgresPasswordParam string `mapstructure:"postgres_password_param"`
}

const exampleConfig = `monitor:
  instruments: ["GIGGLE/USDT"]
  spread_threshold: 1.0
  poll_interval: 3s
sources:
  a:
    provider: mexc
    timeout: 5s
  b:
    provider: quanto
    timeout: 5s
notifier:
  telegram:
    token: ""
    chat_id: ""
http:
  enabled: true
  addr: ":8080"
redis:
  enabled: false
  addr: "127.0.0.1:6379"
journal:
  driver: sqlite
  sqlite_path: data/alerts.db
  retention: 720h
log:
  level: info
  format: console
  environment: dev
`

func setDefaults(v *viper.Viper) {
	v.SetDefault("monitor.spread_threshold", 1.0)
	v.SetDefault("monitor.poll_interval", 3*time.Second)

	v.SetDefault("sources.a.provider", "mexc")
	v.SetDefault("sources.a.timeout", 5*time.Second)
	v.SetDefault("sources.b.provider", "quanto")
	v.SetDefault("sources.b.timeout", 5*time.Second)

	v.SetDefault("notifier.queue_size", 64)
	v.SetDefault("notifier.workers", 2)
	v.SetDefault("notifier.timeout", 10*time.Second)
	v.SetDefault("notifier.startup_message", "🤖 Spread monitor started")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.ttl", time.Minute)
	v.SetDefault("redis.prefix", "spreadwatch:")

	v.SetDefault("journal.sqlite_path", "data/alerts.db")
	v.SetDefault("journal.retention", 30*24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.environment", "dev")
	v.SetDefault("log.output_file", filepath.Join("logs", time.Now().Format("2006-01-02")+".log"))
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 7)
}

// Load loads application configuration from the YAML file at path and overrides it with
// environment variables. When the file does not exist an example is written in its place
// and ErrConfigCreated is returned.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeExample(path); err != nil {
			return nil, err
		}
		return nil, ErrConfigCreated
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	// Support environment variables with dot notation (e.g., MONITOR_SPREAD_THRESHOLD)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("notifier.telegram.token", "TELEGRAM_TOKEN")
	_ = v.BindEnv("notifier.telegram.chat_id", "CHAT_ID")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Monitor.Instruments = NormalizeInstruments(cfg.Monitor.Instruments)

	if cfg.Monitor.PollInterval <= 0 {
		return nil, fmt.Errorf("monitor.poll_interval must be positive, got %s", cfg.Monitor.PollInterval)
	}

	return &cfg, nil
}

func writeExample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write example config: %w", err)
	}
	return nil
}

// NormalizeInstrument upper-cases and trims an instrument identifier ("btc/usdt " -> "BTC/USDT").
func NormalizeInstrument(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeInstruments normalizes every entry, dropping blanks and duplicates while keeping order.
func NormalizeInstruments(in []string) []string {
	out := lo.Map(in, func(s string, _ int) string { return NormalizeInstrument(s) })
	out = lo.Compact(out)
	return lo.Uniq(out)
}

// InstrumentWriter persists the monitored instrument list back into the config file.
type InstrumentWriter struct {
	mu   sync.Mutex
	path string
}

func NewInstrumentWriter(path string) *InstrumentWriter {
	return &InstrumentWriter{path: path}
}

// SaveInstruments rewrites monitor.instruments, leaving every other key untouched.
func (w *InstrumentWriter) SaveInstruments(instruments []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := viper.New()
	v.SetConfigFile(w.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	v.Set("monitor.instruments", NormalizeInstruments(instruments))
	if err := v.WriteConfigAs(w.path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
