package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"RiskPulse/internal/usecase"
	xhttp "RiskPulse/pkg/http"
	xlogger "RiskPulse/pkg/logger"
)

// OrchestratorHandler exposes the scheduler lifecycle and its runtime
// configuration.
type OrchestratorHandler struct {
	logger *xlogger.Logger
	orch   *usecase.Orchestrator
}

func NewOrchestratorHandler(logger *xlogger.Logger, orch *usecase.Orchestrator) *OrchestratorHandler {
	return &OrchestratorHandler{logger: logger, orch: orch}
}

func (h *OrchestratorHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/orchestrator")
	g.GET("", h.Status)
	g.POST("/start", h.Start)
	g.POST("/pause", h.Pause)
	g.POST("/resume", h.Resume)
	g.POST("/stop", h.Stop)
	g.PUT("/config", h.UpdateConfig)
}

func (h *OrchestratorHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.orch.Status())
}

func (h *OrchestratorHandler) Start(c echo.Context) error {
	return h.transition(c, "start", func() error { return h.orch.Start(c.Request().Context()) })
}

func (h *OrchestratorHandler) Resume(c echo.Context) error {
	return h.transition(c, "resume", func() error { return h.orch.Resume(c.Request().Context()) })
}

func (h *OrchestratorHandler) Pause(c echo.Context) error {
	return h.transition(c, "pause", h.orch.Pause)
}

func (h *OrchestratorHandler) Stop(c echo.Context) error {
	return h.transition(c, "stop", h.orch.Stop)
}

func (h *OrchestratorHandler) transition(c echo.Context, op string, fn func() error) error {
	if err := fn(); err != nil {
		h.logger.Warn("orchestrator transition rejected", xlogger.String("op", op), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, transitionError(err))
	}
	return xhttp.SuccessResponse(c, h.orch.Status())
}

// transitionError maps lifecycle errors to HTTP statuses. Anything else
// is a failed first cycle, which left the orchestrator in ERROR.
func transitionError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, usecase.ErrInvalidTransition):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrOrchestratorDisposed):
		return xhttp.UnavailableError(err.Error()).WithError(err)
	default:
		return xhttp.BadGatewayError("ERR_CYCLE_FAILED", err.Error()).WithError(err)
	}
}

// UpdateConfig applies a partial runtime configuration update. Fields are
// applied in order and the first invalid one aborts the rest.
func (h *OrchestratorHandler) UpdateConfig(c echo.Context) error {
	req := &OrchestratorConfigRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if req.PerformanceThresholdMs != nil {
		if err := h.orch.SetPerformanceThreshold(time.Duration(*req.PerformanceThresholdMs) * time.Millisecond); err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
	}
	if req.HighRiskThreshold != nil {
		if err := h.orch.SetHighRiskThreshold(*req.HighRiskThreshold); err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
	}
	if req.PollIntervalMs != nil {
		if err := h.orch.SetPollInterval(time.Duration(*req.PollIntervalMs) * time.Millisecond); err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
	}

	st := h.orch.Status()
	h.logger.Info("orchestrator config updated",
		xlogger.Int64("poll_interval_ms", st.PollIntervalMs),
		xlogger.Int64("performance_threshold_ms", st.PerformanceThresholdMs),
		xlogger.Float64("high_risk_threshold", st.HighRiskThreshold),
	)
	return xhttp.SuccessResponse(c, st)
}
