package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"spreadwatch/config"
)

const maxAlertLimit = 1000

var (
	errEmptyPair      = errors.New("pair is required")
	errAlreadyActive  = errors.New("instrument is already monitored")
	errNotMonitored   = errors.New("instrument is not monitored")
	errJournalMissing = errors.New("alert journal is disabled")
)

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "dashboard", newDashboardPage(s.sources, s.store.Snapshot()))
}

func (s *Server) data(c *gin.Context) {
	c.JSON(http.StatusOK, newDataResponse(s.sources, s.store.Snapshot()))
}

func (s *Server) listInstruments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"instruments": s.registry.List()})
}

func (s *Server) addInstrument(c *gin.Context) {
	var req instrumentRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Message: "invalid request: " + err.Error()})
		return
	}

	inst, err := s.add(req.Pair)
	switch {
	case errors.Is(err, errEmptyPair):
		c.JSON(http.StatusBadRequest, Response{Message: err.Error()})
	case errors.Is(err, errAlreadyActive):
		c.JSON(http.StatusConflict, Response{Message: err.Error(), Instrument: inst})
	default:
		c.JSON(http.StatusCreated, Response{Success: true, Instrument: inst})
	}
}

func (s *Server) removeInstrument(c *gin.Context) {
	inst, err := s.remove(c.Query("pair"))
	switch {
	case errors.Is(err, errEmptyPair):
		c.JSON(http.StatusBadRequest, Response{Message: err.Error()})
	case errors.Is(err, errNotMonitored):
		c.JSON(http.StatusNotFound, Response{Message: err.Error(), Instrument: inst})
	default:
		c.JSON(http.StatusOK, Response{Success: true, Instrument: inst})
	}
}

// legacyAdd handles the dashboard form and always returns to the dashboard.
func (s *Server) legacyAdd(c *gin.Context) {
	_, _ = s.add(c.PostForm("pair"))
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) legacyRemove(c *gin.Context) {
	_, _ = s.remove(c.Query("pair"))
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) add(pair string) (string, error) {
	inst := config.NormalizeInstrument(pair)
	if inst == "" {
		return "", errEmptyPair
	}
	if !s.registry.Start(inst) {
		return inst, errAlreadyActive
	}
	s.persist()
	return inst, nil
}

func (s *Server) remove(pair string) (string, error) {
	inst := config.NormalizeInstrument(pair)
	if inst == "" {
		return "", errEmptyPair
	}
	if !s.registry.Stop(inst) {
		return inst, errNotMonitored
	}
	s.persist()
	return inst, nil
}

// persist failures are logged only; the running set has already changed.
func (s *Server) persist() {
	if s.saver == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if err := s.saver.SaveInstruments(s.registry.List()); err != nil {
		s.log.Error("failed to persist instruments", zap.Error(err))
	}
}

func (s *Server) listAlerts(c *gin.Context) {
	if s.alerts == nil {
		c.JSON(http.StatusNotFound, Response{Message: errJournalMissing.Error()})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, Response{Message: "limit must be a non-negative integer"})
			return
		}
		limit = min(n, maxAlertLimit)
	}

	records, err := s.alerts.ListAlerts(c.Request.Context(), config.NormalizeInstrument(c.Query("pair")), limit)
	if err != nil {
		s.log.Error("failed to list alerts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Message: "failed to list alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": records})
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failing := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failing[name] = err.Error()
		}
	}

	body := gin.H{"monitors": len(s.registry.List())}
	if len(failing) > 0 {
		body["status"] = "degraded"
		body["failing"] = failing
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ok"
	c.JSON(http.StatusOK, body)
}
