// Package api serves the dashboard, the instrument command API and live snapshots.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"spreadwatch/internal/memorystore"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	registry Registry
	store    *memorystore.StateStore
	sources  SourceNames
	hub      *Hub
	saver    InstrumentSaver
	alerts   AlertLister
	checks   map[string]HealthCheck
	log      *zap.Logger

	// held across list-then-save so an older list never lands after a newer one
	persistMu sync.Mutex

	router *gin.Engine
	srv    *http.Server
}

type Option func(s *Server)

// WithSaver persists the instrument list after every add or remove.
func WithSaver(saver InstrumentSaver) Option {
	return func(s *Server) {
		s.saver = saver
	}
}

// WithAlerts enables /api/v1/alerts.
func WithAlerts(alerts AlertLister) Option {
	return func(s *Server) {
		s.alerts = alerts
	}
}

// WithHealthCheck adds a named dependency to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// NewServer builds the router. hub may be nil, in which case /ws is not served.
func NewServer(addr string, registry Registry, store *memorystore.StateStore, sources SourceNames, hub *Hub, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		registry: registry,
		store:    store,
		sources:  sources,
		hub:      hub,
		checks:   make(map[string]HealthCheck),
		log:      log.With(zap.String("component", "api")),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.routes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log))
	router.SetHTMLTemplate(dashboardTemplate)

	router.GET("/", s.index)
	router.GET("/data", s.data)
	router.GET("/healthz", s.healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if s.hub != nil {
		router.GET("/ws", s.hub.ServeWS)
	}

	// form endpoints used by the dashboard
	router.POST("/add", s.legacyAdd)
	router.GET("/remove", s.legacyRemove)

	api := router.Group("/api/v1")
	instruments := api.Group("/instruments")
	instruments.GET("", s.listInstruments)
	instruments.POST("", s.addInstrument)
	instruments.DELETE("", s.removeInstrument)
	api.GET("/alerts", s.listAlerts)

	return router
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
