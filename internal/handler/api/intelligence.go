package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	"RiskPulse/internal/repository"
	"RiskPulse/internal/usecase"
	xhttp "RiskPulse/pkg/http"
	xlogger "RiskPulse/pkg/logger"
)

// IntelligenceHandler serves the latest payload, payload history and health.
type IntelligenceHandler struct {
	logger    *xlogger.Logger
	orch      *usecase.Orchestrator
	snapshots domrepo.SnapshotCache
	history   domrepo.HistoryStore
}

// NewIntelligenceHandler wires the read side. snapshots and history are
// optional.
func NewIntelligenceHandler(logger *xlogger.Logger, orch *usecase.Orchestrator, snapshots domrepo.SnapshotCache, history domrepo.HistoryStore) *IntelligenceHandler {
	return &IntelligenceHandler{logger: logger, orch: orch, snapshots: snapshots, history: history}
}

func (h *IntelligenceHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/intelligence")
	g.GET("", h.Latest)
	g.GET("/history", h.History)
	e.GET("/healthz", h.Health)
}

// Latest returns the orchestrator's current payload, falling back to the
// snapshot cache while the orchestrator has none (after a restart or Stop).
func (h *IntelligenceHandler) Latest(c echo.Context) error {
	if p := h.orch.Payload(); p != nil {
		return xhttp.SuccessResponse(c, p)
	}
	if h.snapshots != nil {
		p, err := h.snapshots.LatestSnapshot(c.Request().Context())
		switch {
		case err == nil:
			c.Response().Header().Set("X-Intelligence-Source", "snapshot")
			return xhttp.SuccessResponse(c, p)
		case !errors.Is(err, repository.ErrNoSnapshot):
			h.logger.Warn("snapshot read failed", xlogger.Error(err))
		}
	}
	return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no intelligence payload available yet"))
}

// History lists persisted payloads, newest first. Query: limit (1-500,
// default 50) and since (RFC3339 or unix seconds).
func (h *IntelligenceHandler) History(c echo.Context) error {
	if h.history == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("history store is not configured"))
	}
	limit := xhttp.QueryInt(c, "limit", 50, 1, 500)
	since := xhttp.QueryTime(c, "since", time.Time{})

	rows, err := h.history.RecentPayloads(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("history query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("history query failed").WithError(err))
	}
	if !since.IsZero() {
		kept := rows[:0]
		for _, p := range rows {
			if !p.Timestamp.Before(since) {
				kept = append(kept, p)
			}
		}
		rows = kept
	}
	if rows == nil {
		rows = []*models.IntelligencePayload{}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// HealthReport is the body of GET /healthz.
type HealthReport struct {
	State   usecase.OrchestratorState `json:"state"`
	Health  models.Health             `json:"health,omitempty"`
	History string                    `json:"history,omitempty"`
}

// Health answers 503 when the orchestrator is in ERROR or the history store
// is unreachable.
func (h *IntelligenceHandler) Health(c echo.Context) error {
	report := HealthReport{State: h.orch.State()}
	if p := h.orch.Payload(); p != nil {
		report.Health = p.Performance.Health
	}
	status := http.StatusOK
	if report.State == usecase.StateError {
		status = http.StatusServiceUnavailable
	}
	if h.history != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.history.Health(ctx); err != nil {
			report.History = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			report.History = "ok"
		}
	}
	return xhttp.DataResponse(c, status, report)
}
