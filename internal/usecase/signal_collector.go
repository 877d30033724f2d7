package usecase

import (
	"context"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	mid "RiskPulse/internal/middleware"
	svcmetrics "RiskPulse/internal/service/metrics"
	"RiskPulse/internal/services/cluster"
)

// SignalCollector owns the ingest path (pipeline into working set) and
// clusters either the working set or an ad-hoc batch on demand.
type SignalCollector struct {
	pipe    *mid.SignalPipeline
	ws      *WorkingSet
	engine  *cluster.Engine
	metrics domrepo.Metrics
}

func NewSignalCollector(pipe *mid.SignalPipeline, ws *WorkingSet, engine *cluster.Engine, metrics domrepo.Metrics) *SignalCollector {
	return &SignalCollector{pipe: pipe, ws: ws, engine: engine, metrics: metrics}
}

// Start launches the pipeline's retry loop.
func (c *SignalCollector) Start(ctx context.Context) {
	c.pipe.Start(ctx)
}

// Ingest pushes records through the pipeline into the working set.
func (c *SignalCollector) Ingest(ctx context.Context, records []models.SignalRecord) (int, error) {
	return c.pipe.ProcessBatch(ctx, records)
}

// ProcessBatch lets the collector act as the Kafka handler's ingester.
func (c *SignalCollector) ProcessBatch(ctx context.Context, records []models.SignalRecord) (int, error) {
	return c.Ingest(ctx, records)
}

// ClusterWorkingSet clusters the records currently held.
func (c *SignalCollector) ClusterWorkingSet() []models.Cluster {
	return c.run(c.ws.Snapshot())
}

// ClusterBatch clusters the given records without touching the working set.
func (c *SignalCollector) ClusterBatch(records []models.SignalRecord) []models.Cluster {
	return c.run(records)
}

// LastClusters returns the most recent clustering result.
func (c *SignalCollector) LastClusters() []models.Cluster {
	return c.engine.Last()
}

func (c *SignalCollector) WorkingSet() *WorkingSet { return c.ws }

func (c *SignalCollector) run(records []models.SignalRecord) []models.Cluster {
	start := time.Now()
	out := c.engine.Cluster(records)
	outcome := "empty"
	if len(out) > 0 {
		outcome = "clustered"
	}
	svcmetrics.EngineEvaluations.WithLabelValues("cluster", outcome).Inc()
	if c.metrics != nil {
		c.metrics.RecordLatency("cluster", time.Since(start).Seconds())
	}
	return out
}

// Shutdown stops the pipeline's retry loop.
func (c *SignalCollector) Shutdown() {
	c.pipe.Stop()
}
