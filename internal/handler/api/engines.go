package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"RiskPulse/internal/domain/models"
	svcmetrics "RiskPulse/internal/service/metrics"
	"RiskPulse/internal/service/ratelimit"
	"RiskPulse/internal/services/fusion"
	"RiskPulse/internal/services/reactor"
	"RiskPulse/internal/usecase"
	xhttp "RiskPulse/pkg/http"
	xlogger "RiskPulse/pkg/logger"
)

// EngineHandler fronts the stateless engines and signal ingestion.
type EngineHandler struct {
	logger    *xlogger.Logger
	collector *usecase.SignalCollector
	builder   *fusion.Builder
	reactor   *reactor.Engine
	decisions *usecase.DecisionService
	limiter   *ratelimit.Limiter
}

func NewEngineHandler(
	logger *xlogger.Logger,
	collector *usecase.SignalCollector,
	builder *fusion.Builder,
	engine *reactor.Engine,
	decisions *usecase.DecisionService,
	limiter *ratelimit.Limiter,
) *EngineHandler {
	svcmetrics.Register()
	return &EngineHandler{
		logger:    logger,
		collector: collector,
		builder:   builder,
		reactor:   engine,
		decisions: decisions,
		limiter:   limiter,
	}
}

func (h *EngineHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/clusters", h.WorkingSetClusters)
	g.POST("/clusters", h.ClusterBatch, h.limit("clusters"))
	g.POST("/signals", h.IngestSignals, h.limit("signals"))
	g.POST("/fusion", h.Fuse, h.limit("fusion"))
	g.POST("/reactor/evaluate", h.Evaluate, h.limit("reactor"))
	g.POST("/decision", h.Decide, h.limit("decision"))
}

func (h *EngineHandler) limit(scope string) echo.MiddlewareFunc {
	if h.limiter == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return h.limiter.Middleware(scope)
}

func observe(endpoint string, start time.Time) {
	svcmetrics.AnalyticsLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// IngestSignals pushes records through the ingest pipeline into the working
// set. Records that fail validation or are throttled are counted as rejected.
func (h *EngineHandler) IngestSignals(c echo.Context) error {
	defer observe("signals", time.Now())
	req := &IngestSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	n, err := h.collector.Ingest(c.Request().Context(), req.Signals)
	resp := IngestResponse{Accepted: n, Rejected: len(req.Signals) - n}
	if err != nil {
		svcmetrics.AnalyticsErrors.WithLabelValues("signals").Inc()
		resp.Error = err.Error()
		h.logger.Warn("signal ingest partially failed", xlogger.Int("accepted", n), xlogger.Error(err))
	}
	return xhttp.AcceptedResponse(c, resp)
}

func (h *EngineHandler) WorkingSetClusters(c echo.Context) error {
	defer observe("clusters_working_set", time.Now())
	clusters := h.collector.ClusterWorkingSet()
	return xhttp.ListResponse(c, clusters, int64(len(clusters)))
}

func (h *EngineHandler) ClusterBatch(c echo.Context) error {
	defer observe("clusters", time.Now())
	req := &ClusterRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	clusters := h.collector.ClusterBatch(req.Signals)
	return xhttp.ListResponse(c, clusters, int64(len(clusters)))
}

func (h *EngineHandler) Fuse(c echo.Context) error {
	defer observe("fusion", time.Now())
	req := &FusionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	results, err := models.DecodeEngineResults(req.Results)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	}
	m := h.builder.Build(results)
	svcmetrics.EngineEvaluations.WithLabelValues("fusion", string(m.ConsensusAction)).Inc()
	return xhttp.SuccessResponse(c, FusionResponse{Matrix: m, Quality: fusion.Quality(m)})
}

func (h *EngineHandler) Evaluate(c echo.Context) error {
	defer observe("reactor", time.Now())
	req := &ReactorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	d := h.reactor.Evaluate(req.Checks, *req.Confidence)
	outcome := "hold"
	if d.ShouldExecute {
		outcome = "execute"
	} else if d.ShouldCancel {
		outcome = "cancel"
	}
	svcmetrics.EngineEvaluations.WithLabelValues("reactor", outcome).Inc()
	return xhttp.SuccessResponse(c, d)
}

func (h *EngineHandler) Decide(c echo.Context) error {
	defer observe("decision", time.Now())
	req := &DecisionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	results, err := models.DecodeEngineResults(req.Results)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	}
	out, err := h.decisions.Decide(c.Request().Context(), usecase.DecisionInput{Results: results, Checks: req.Checks})
	if err != nil {
		svcmetrics.AnalyticsErrors.WithLabelValues("decision").Inc()
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	}
	return xhttp.SuccessResponse(c, out)
}
