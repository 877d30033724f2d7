package cluster

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/features"
)

const (
	// MaxClusters bounds k.
	MaxClusters = 5
	// MaxResults bounds the returned slice.
	MaxResults = 3
	// Iterations is fixed so results are reproducible.
	Iterations = 5
)

// Engine groups signal records by cosine similarity of their feature vectors.
// Centroids are seeded from the first k vectors; there is no randomness.
type Engine struct {
	enc *features.Encoder

	mu   sync.RWMutex
	last []models.Cluster
}

func NewEngine(enc *features.Encoder) *Engine {
	if enc == nil {
		enc = features.NewEncoder()
	}
	return &Engine{enc: enc}
}

// Cluster returns at most MaxResults clusters in non-increasing strength order.
func (e *Engine) Cluster(records []models.SignalRecord) []models.Cluster {
	out := e.cluster(records)

	e.mu.Lock()
	e.last = out
	e.mu.Unlock()

	return out
}

// Last returns a copy of the most recent result.
func (e *Engine) Last() []models.Cluster {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Cluster, len(e.last))
	copy(out, e.last)
	return out
}

func (e *Engine) cluster(records []models.SignalRecord) []models.Cluster {
	n := len(records)
	if n == 0 {
		return []models.Cluster{}
	}

	vectors := e.enc.EncodeAll(records)
	k := min(MaxClusters, n)
	centroids := make([]models.FeatureVector, k)
	copy(centroids, vectors[:k])

	assign := make([]int, n)
	for iter := 0; iter < Iterations; iter++ {
		for i, v := range vectors {
			assign[i] = nearest(v, centroids)
		}
		centroids = recompute(vectors, assign, centroids)
	}

	groups := make([][]int, k)
	for i, g := range assign {
		groups[g] = append(groups[g], i)
	}

	out := make([]models.Cluster, 0, k)
	for g, members := range groups {
		if len(members) == 0 {
			continue
		}
		out = append(out, build(g, members, records, centroids[g]))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	if len(out) > MaxResults {
		out = out[:MaxResults]
	}
	return out
}

// nearest picks the centroid with the highest cosine similarity; ties keep
// the lowest index.
func nearest(v models.FeatureVector, centroids []models.FeatureVector) int {
	best, bestSim := 0, math.Inf(-1)
	for c, centroid := range centroids {
		if sim := Cosine(v, centroid); sim > bestSim {
			best, bestSim = c, sim
		}
	}
	return best
}

// recompute averages each group; an empty group keeps its previous centroid.
func recompute(vectors []models.FeatureVector, assign []int, prev []models.FeatureVector) []models.FeatureVector {
	sums := make([]models.FeatureVector, len(prev))
	counts := make([]int, len(prev))
	for i, g := range assign {
		for d := range vectors[i] {
			sums[g][d] += vectors[i][d]
		}
		counts[g]++
	}
	next := make([]models.FeatureVector, len(prev))
	for g := range prev {
		if counts[g] == 0 {
			next[g] = prev[g]
			continue
		}
		for d := range sums[g] {
			next[g][d] = sums[g][d] / float64(counts[g])
		}
	}
	return next
}

func build(group int, members []int, records []models.SignalRecord, centroid models.FeatureVector) models.Cluster {
	recs := make([]models.SignalRecord, len(members))
	sevSum, maxSev := 0, 0
	sources := make(map[string]struct{}, len(members))
	for i, idx := range members {
		r := records[idx]
		recs[i] = r
		sevSum += r.Severity
		if r.Severity > maxSev {
			maxSev = r.Severity
		}
		sources[r.Source] = struct{}{}
	}

	count := len(members)
	strength := math.Min(100, float64(sevSum)/float64(count+5)*100)

	factor := 1.0
	if len(sources) > 2 {
		factor = 0.7
	}
	confidence := math.Min(100, math.Round(float64(count)*factor+12))

	lead := recs[0]
	noun := "signals"
	if count == 1 {
		noun = "signal"
	}

	return models.Cluster{
		ID:          fmt.Sprintf("cluster-%d", group),
		Members:     recs,
		Strength:    strength,
		Centroid:    centroid,
		Summary:     fmt.Sprintf("%d %s grouped, max severity %d, led by %s [%s]", count, noun, maxSev, lead.Source, lead.Category),
		MaxSeverity: maxSev,
		Confidence:  confidence,
	}
}

// Cosine returns the cosine similarity of a and b, or 0 when either has zero norm.
func Cosine(a, b models.FeatureVector) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
