package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"RiskPulse/internal/domain/models"
	"RiskPulse/pkg/config"
	xhttp "RiskPulse/pkg/http"
)

func newServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok || r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func httpConfig(url string) config.AnalyticsConfig {
	return config.AnalyticsConfig{Mode: "http", ServiceURL: url + "/", Timeout: time.Second, Retries: 2}
}

func TestHTTPProviders(t *testing.T) {
	srv := newServer(t, map[string]string{
		correlationPath: `{"pairs":[{"source":"cpu","target":"latency","coefficient":0.9},{"source":"latency","target":"errors","coefficient":-0.5}],"strongLinks":2,"cascadesDetected":1}`,
		rootCausePath:   `{"nodeCount":7}`,
		forecastPath:    `{"window30s":{"state":"STABLE","confidence":0.9},"window2min":{"state":"RISING","confidence":0.7},"window5min":{"confidence":0.5},"window10min":{"state":"RISING","confidence":0.4},"riskShift":1.2}`,
	})

	p, err := NewProviders(httpConfig(srv.URL))
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	ctx := context.Background()

	g, err := p.Correlation.GetGraph(ctx)
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	wantGraph := models.CorrelationGraph{
		Pairs: []models.CorrelationPair{
			{Source: "cpu", Target: "latency", Coefficient: 0.9},
			{Source: "latency", Target: "errors", Coefficient: -0.5},
		},
		StrongLinks:      2,
		CascadesDetected: 1,
	}
	if diff := cmp.Diff(wantGraph, g); diff != "" {
		t.Fatalf("graph (-want +got):\n%s", diff)
	}

	s, err := p.RootCause.GetSummary(ctx)
	if err != nil || s.NodeCount != 7 {
		t.Fatalf("GetSummary = %+v, %v", s, err)
	}

	f, err := p.Forecast.Forecast(ctx)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if f.RiskShift != 1.2 || f.Window2Min.State != "RISING" || f.Window5Min.State != "UNKNOWN" {
		t.Fatalf("unexpected forecast %+v", f)
	}
}

func TestHTTPProviderRetriesThenFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPRootCauseProvider(httpConfig(srv.URL)).GetSummary(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), rootCausePath) {
		t.Fatalf("error %q does not name the endpoint", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}

func TestHTTPProviderDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewHTTPForecastProvider(httpConfig(srv.URL)).Forecast(context.Background())
	var se *xhttp.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 status error", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestHTTPProviderRecoversOnRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"nodeCount":3}`))
	}))
	defer srv.Close()

	s, err := NewHTTPRootCauseProvider(httpConfig(srv.URL)).GetSummary(context.Background())
	if err != nil || s.NodeCount != 3 {
		t.Fatalf("GetSummary = %+v, %v", s, err)
	}
}

func TestStaticProviders(t *testing.T) {
	cfg := config.Default().Analytics
	p, err := NewProviders(cfg)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	g, _ := p.Correlation.GetGraph(context.Background())
	if len(g.Pairs) != len(cfg.Static.Coefficients) || g.Pairs[0].Source != "metric-0" || g.Pairs[0].Target != "metric-1" {
		t.Fatalf("static graph %+v", g)
	}
	f, _ := p.Forecast.Forecast(context.Background())
	if f.RiskShift != cfg.Static.RiskShift || f.Window30s.State != "STABLE" {
		t.Fatalf("static forecast %+v", f)
	}
}

func TestUnknownMode(t *testing.T) {
	if _, err := NewProviders(config.AnalyticsConfig{Mode: "grpc"}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
