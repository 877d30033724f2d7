package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	svcmetrics "RiskPulse/internal/service/metrics"
	"RiskPulse/pkg/config"
	xhttp "RiskPulse/pkg/http"
)

// HTTPServiceBase provides a shared foundation for the analytics HTTP clients.
// It centralizes client construction, retries and endpoint metrics.
type HTTPServiceBase struct {
	baseURL  string
	client   *xhttp.Client
	attempts int
}

// NewHTTPServiceBase builds an HTTP client with timeout and base URL from config.
func NewHTTPServiceBase(cfg config.AnalyticsConfig) *HTTPServiceBase {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	attempts := cfg.Retries
	if attempts <= 0 {
		attempts = 1
	}
	return &HTTPServiceBase{
		baseURL:  strings.TrimRight(cfg.ServiceURL, "/"),
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithUserAgent("riskpulse-analytics")),
		attempts: attempts,
	}
}

// GetJSON fetches `path` under baseURL and decodes JSON into dest.
func (b *HTTPServiceBase) GetJSON(ctx context.Context, path string, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("analytics http client not initialized")
	}
	start := time.Now()
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    b.baseURL + path,
	}, dest)
	svcmetrics.AnalyticsLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		svcmetrics.AnalyticsErrors.WithLabelValues(path).Inc()
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

// GetJSONWithRetry retries transient failures with a linear backoff until
// the attempts are spent or ctx is done. Client errors are returned at once.
func (b *HTTPServiceBase) GetJSONWithRetry(ctx context.Context, path string, dest interface{}) error {
	var err error
	for i := 1; i <= b.attempts; i++ {
		err = b.GetJSON(ctx, path, dest)
		if err == nil {
			return nil
		}
		if i == b.attempts || !xhttp.Retryable(err) {
			break
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return fmt.Errorf("get %s: %w", path, ctx.Err())
		}
	}
	return err
}
