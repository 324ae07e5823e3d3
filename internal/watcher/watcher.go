// Package watcher wires sources, monitors, the state store and every consumer of it into
// one running service.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"spreadwatch/config"
	"spreadwatch/internal/api"
	"spreadwatch/internal/memorystore"
	"spreadwatch/internal/metrics"
	"spreadwatch/internal/mirror"
	"spreadwatch/internal/monitor"
	"spreadwatch/internal/notifier"
	"spreadwatch/internal/source"
	"spreadwatch/pkg/storage/journal"
	"spreadwatch/pkg/telegram"
)

const (
	statusInterval  = time.Minute
	closeTimeout    = 10 * time.Second
	connectTimeout  = 5 * time.Second
	pruneTimeout    = 30 * time.Second
	defaultHTTPAddr = ":8080"
)

type Watcher struct {
	cfg        *config.Config
	configPath string
	log        *zap.Logger

	sourceA source.Source
	sourceB source.Source
	store   *memorystore.StateStore

	gateway *notifier.Gateway
	journal *journal.Client     // nil when disabled
	mirror  *mirror.RedisMirror // nil when disabled
	hub     *api.Hub            // nil when HTTP is disabled
}

// New builds every component described by cfg. configPath is where instrument changes made
// through the API are saved; empty disables persistence.
func New(cfg *config.Config, configPath string, log *zap.Logger) (*Watcher, error) {
	w := &Watcher{
		cfg:        cfg,
		configPath: configPath,
		log:        log,
		store:      memorystore.NewStateStore(),
	}

	var err error
	if w.sourceA, err = source.New(sourceSettings(cfg.Sources.A), log); err != nil {
		return nil, fmt.Errorf("source a: %w", err)
	}
	if w.sourceB, err = source.New(sourceSettings(cfg.Sources.B), log); err != nil {
		return nil, fmt.Errorf("source b: %w", err)
	}

	tg := cfg.Notifier.Telegram
	w.gateway = notifier.NewGateway(
		notifier.TelegramSender(telegram.NewClient(tg.BaseURL, tg.Token, tg.ChatID, cfg.Notifier.Timeout)),
		log,
		notifier.WithQueueSize(cfg.Notifier.QueueSize),
		notifier.WithWorkers(cfg.Notifier.Workers),
		notifier.WithTimeout(cfg.Notifier.Timeout),
	)

	if w.journal, err = journal.Open(cfg); err != nil {
		return nil, fmt.Errorf("failed to open alert journal: %w", err)
	}

	w.store.Subscribe(metrics.SpreadObserver{})

	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		rdb, err := mirror.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			w.closeJournal()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		w.mirror = mirror.NewRedisMirror(rdb, cfg.Redis.Prefix, cfg.Redis.TTL, log)
		w.store.Subscribe(w.mirror)
	}

	if cfg.HTTP.Enabled {
		w.hub = api.NewHub(w.store, w.sourceNames(), log)
		w.store.Subscribe(w.hub)
	}

	return w, nil
}

func sourceSettings(c config.SourceConfig) source.Settings {
	return source.Settings{
		Provider:  c.Provider,
		BaseURL:   c.BaseURL,
		Timeout:   c.Timeout,
		Category:  c.Category,
		APIKey:    c.APIKey,
		APISecret: c.APISecret,
	}
}

func (w *Watcher) sourceNames() api.SourceNames {
	return api.SourceNames{A: w.sourceA.Name(), B: w.sourceB.Name()}
}

// Store exposes the published state.
func (w *Watcher) Store() *memorystore.StateStore {
	return w.store
}

// Run starts monitoring the configured instruments and blocks until ctx is cancelled or the
// HTTP server fails. Everything is shut down before it returns.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.gateway.Start()
	if msg := w.cfg.Notifier.StartupMessage; msg != "" {
		w.gateway.Send(msg)
	}

	opts := []monitor.Option{monitor.WithNotifier(w.gateway)}
	if w.journal != nil {
		opts = append(opts, monitor.WithRecorder(w.journal))
	}
	registry := monitor.NewRegistry(ctx, w.store, w.sourceA, w.sourceB, monitor.Config{
		Threshold:    w.cfg.Monitor.SpreadThreshold,
		PollInterval: w.cfg.Monitor.PollInterval,
	}, w.log, opts...)

	for _, inst := range w.cfg.Monitor.Instruments {
		registry.Start(inst)
	}
	w.log.Info("spread watcher started",
		zap.String("source_a", w.sourceA.Name()),
		zap.String("source_b", w.sourceB.Name()),
		zap.Strings("instruments", registry.List()),
		zap.Float64("threshold", w.cfg.Monitor.SpreadThreshold),
		zap.Bool("notifier", w.gateway.Enabled()))

	serverErr := make(chan error, 1)
	if w.hub != nil {
		go w.hub.Run(ctx)
		server := w.newServer(registry)
		go func() {
			serverErr <- server.Run(ctx)
		}()
	} else {
		close(serverErr)
	}

	if w.journal != nil && w.cfg.Journal.Retention > 0 {
		(&MidnightScheduler{Job: w.pruneAlerts}).Start(ctx)
	}

	go w.logStatus(ctx, registry)

	var (
		runErr     error
		serverDone bool
	)
	select {
	case <-ctx.Done():
	case err, ok := <-serverErr:
		serverDone = true
		if ok && err != nil {
			runErr = fmt.Errorf("http server: %w", err)
			cancel()
		}
		<-ctx.Done()
	}

	w.shutdown(registry)

	if !serverDone {
		if err := <-serverErr; err != nil {
			w.log.Warn("http server shutdown", zap.Error(err))
		}
	}
	return runErr
}

func (w *Watcher) newServer(registry *monitor.Registry) *api.Server {
	addr := w.cfg.HTTP.Addr
	if addr == "" {
		addr = defaultHTTPAddr
	}

	var opts []api.Option
	if w.configPath != "" {
		opts = append(opts, api.WithSaver(config.NewInstrumentWriter(w.configPath)))
	}
	if w.journal != nil {
		opts = append(opts,
			api.WithAlerts(w.journal),
			api.WithHealthCheck("journal", func(ctx context.Context) error {
				if !w.journal.IsHealthy(ctx) {
					return errors.New("journal database unreachable")
				}
				return nil
			}))
	}
	if w.mirror != nil {
		opts = append(opts, api.WithHealthCheck("redis", w.mirror.Health))
	}

	return api.NewServer(addr, registry, w.store, w.sourceNames(), w.hub, w.log, opts...)
}

// shutdown stops producers before consumers: monitors first, then the notifier queue,
// then the sinks that observe the store.
func (w *Watcher) shutdown(registry *monitor.Registry) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := registry.Close(ctx); err != nil {
		w.log.Warn("monitors did not stop in time", zap.Error(err))
	}
	w.gateway.Close(ctx)
	if w.mirror != nil {
		if err := w.mirror.Close(ctx); err != nil {
			w.log.Warn("failed to close redis mirror", zap.Error(err))
		}
	}
	w.closeJournal()
	w.log.Info("spread watcher stopped")
}

func (w *Watcher) closeJournal() {
	if w.journal == nil {
		return
	}
	if err := w.journal.Close(); err != nil {
		w.log.Warn("failed to close alert journal", zap.Error(err))
	}
}

func (w *Watcher) pruneAlerts(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, pruneTimeout)
	defer cancel()

	cutoff := time.Now().Add(-w.cfg.Journal.Retention)
	n, err := w.journal.DeleteAlertsBefore(ctx, cutoff)
	if err != nil {
		w.log.Warn("failed to prune alert journal", zap.Error(err))
		return
	}
	w.log.Info("pruned alert journal", zap.Int64("deleted", n), zap.Time("before", cutoff))
}

// logStatus periodically prints what is being monitored.
func (w *Watcher) logStatus(ctx context.Context, registry *monitor.Registry) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			instruments := registry.List()
			w.log.Info("current monitors", zap.Int("count", len(instruments)), zap.Strings("instruments", instruments))
		}
	}
}
