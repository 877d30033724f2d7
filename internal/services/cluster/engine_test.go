package cluster

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/features"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(features.NewEncoder(features.WithClock(func() time.Time { return now })))
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestClusterGoldenFixture(t *testing.T) {
	records := []models.SignalRecord{
		{Severity: 5, Category: models.CategoryMemory, Source: "memory-a", Message: "heap pressure rising", Timestamp: now.Add(-20 * time.Second)},
		{Severity: 4, Category: models.CategoryMemory, Source: "memory-a", Message: "heap pressure rising", Timestamp: now.Add(-10 * time.Second)},
		{Severity: 1, Category: models.CategoryMemory, Source: "ui-b", Message: "render stall", Timestamp: now},
	}

	got := newTestEngine().Cluster(records)
	if len(got) != 3 {
		t.Fatalf("got %d clusters, want 3", len(got))
	}

	wantIDs := []string{"cluster-0", "cluster-1", "cluster-2"}
	wantStrength := []float64{500.0 / 6, 400.0 / 6, 100.0 / 6}
	for i, c := range got {
		if c.ID != wantIDs[i] {
			t.Errorf("cluster %d id = %s, want %s", i, c.ID, wantIDs[i])
		}
		if !approx(c.Strength, wantStrength[i]) {
			t.Errorf("cluster %d strength = %v, want %v", i, c.Strength, wantStrength[i])
		}
		if c.Confidence != 13 {
			t.Errorf("cluster %d confidence = %v, want 13", i, c.Confidence)
		}
		if len(c.Members) != 1 || c.Members[0] != records[i] {
			t.Errorf("cluster %d members = %+v", i, c.Members)
		}
	}
	if got[0].Summary != "1 signal grouped, max severity 5, led by memory-a [memory]" {
		t.Errorf("summary = %q", got[0].Summary)
	}

	again := newTestEngine().Cluster(records)
	if diff := cmp.Diff(got, again); diff != "" {
		t.Fatalf("clustering is not reproducible (-first +second):\n%s", diff)
	}
}

func TestClusterEmpty(t *testing.T) {
	got := newTestEngine().Cluster(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", got)
	}
}

func TestClusterIdenticalRecordsCollapse(t *testing.T) {
	r := models.SignalRecord{Severity: 3, Category: models.CategoryStability, Source: "exec-a", Timestamp: now}
	got := newTestEngine().Cluster([]models.SignalRecord{r, r, r, r})
	if len(got) != 1 {
		t.Fatalf("got %d clusters, want 1", len(got))
	}
	c := got[0]
	if c.ID != "cluster-0" || len(c.Members) != 4 {
		t.Fatalf("unexpected cluster %+v", c)
	}
	if !approx(c.Strength, 12.0/9*100) {
		t.Fatalf("strength = %v", c.Strength)
	}
	if c.Summary != "4 signals grouped, max severity 3, led by exec-a [stability]" {
		t.Fatalf("summary = %q", c.Summary)
	}
}

func TestClusterConfidenceSourceDiversity(t *testing.T) {
	var records []models.SignalRecord
	for i := 0; i < 6; i++ {
		records = append(records, models.SignalRecord{
			Severity: 2, Category: models.CategoryExecution, Source: fmt.Sprintf("exec-%d", i%3), Timestamp: now,
		})
	}
	got := newTestEngine().Cluster(records)
	if len(got) != 1 {
		t.Fatalf("got %d clusters, want 1", len(got))
	}
	// round(6*0.7 + 12) = 16
	if got[0].Confidence != 16 {
		t.Fatalf("confidence = %v, want 16", got[0].Confidence)
	}
}

func TestClusterInvariants(t *testing.T) {
	categories := []models.Category{models.CategoryStability, models.CategoryEmotional, models.CategoryExecution, models.CategoryMemory}
	sources := []string{"memory-x", "ui-y", "engine-z", "feed"}
	for n := 1; n <= 12; n++ {
		records := make([]models.SignalRecord, n)
		for i := range records {
			records[i] = models.SignalRecord{
				Severity:  (i * 7) % 6,
				Category:  categories[(i*3)%4],
				Source:    sources[i%4],
				Message:   fmt.Sprintf("event %d", i*13),
				Timestamp: now.Add(-time.Duration(i) * time.Minute),
			}
		}
		got := newTestEngine().Cluster(records)
		if len(got) > min(MaxResults, n) {
			t.Fatalf("n=%d: %d clusters exceeds bound", n, len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].Strength > got[i-1].Strength {
				t.Fatalf("n=%d: strengths not sorted: %v then %v", n, got[i-1].Strength, got[i].Strength)
			}
		}
		for _, c := range got {
			if c.Strength < 0 || c.Strength > 100 || c.Confidence < 0 || c.Confidence > 100 {
				t.Fatalf("n=%d: out of range cluster %+v", n, c)
			}
		}
	}
}

func TestNearestTieKeepsLowestIndex(t *testing.T) {
	c := models.FeatureVector{1, 1, 0, 0, 0}
	if got := nearest(models.FeatureVector{2, 2, 0, 0, 0}, []models.FeatureVector{c, c, c}); got != 0 {
		t.Fatalf("nearest = %d, want 0", got)
	}
}

func TestRecomputeKeepsEmptyCentroid(t *testing.T) {
	prev := []models.FeatureVector{{1, 0, 0, 0, 0}, {0, 9, 0, 0, 0}}
	vectors := []models.FeatureVector{{2, 0, 0, 0, 0}, {4, 0, 0, 0, 0}}
	next := recompute(vectors, []int{0, 0}, prev)
	if next[0] != (models.FeatureVector{3, 0, 0, 0, 0}) {
		t.Fatalf("mean centroid = %v", next[0])
	}
	if next[1] != prev[1] {
		t.Fatalf("empty group centroid changed to %v", next[1])
	}
}

func TestCosineZeroNorm(t *testing.T) {
	if got := Cosine(models.FeatureVector{}, models.FeatureVector{1, 2, 3, 4, 5}); got != 0 {
		t.Fatalf("cosine = %v, want 0", got)
	}
}

func TestLastReturnsCopy(t *testing.T) {
	e := newTestEngine()
	e.Cluster([]models.SignalRecord{{Severity: 1, Source: "a", Timestamp: now}})
	last := e.Last()
	if len(last) != 1 {
		t.Fatalf("last = %+v", last)
	}
	last[0].ID = "mutated"
	if e.Last()[0].ID != "cluster-0" {
		t.Fatalf("Last exposed internal state")
	}
}
