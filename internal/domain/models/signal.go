package models

import "time"

// Category buckets a signal for clustering and conflict rules.
type Category string

const (
	CategoryStability Category = "stability"
	CategoryEmotional Category = "emotional"
	CategoryExecution Category = "execution"
	CategoryMemory    Category = "memory"
)

// SignalRecord is one observation produced by an upstream detector.
// Records are immutable once observed.
type SignalRecord struct {
	Severity  int       `json:"severity" validate:"gte=0,lte=5"`
	Category  Category  `json:"category"`
	Source    string    `json:"source" validate:"required"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// FeatureVectorDim is the fixed dimension of an encoded signal.
const FeatureVectorDim = 5

// FeatureVector is the normalized numeric form of a SignalRecord:
// severity, category code, source class, message signature, recency.
type FeatureVector [FeatureVectorDim]float64

// Cluster groups similar signals.
type Cluster struct {
	ID          string         `json:"id"`
	Members     []SignalRecord `json:"members"`
	Strength    float64        `json:"strength"`
	Centroid    FeatureVector  `json:"centroid"`
	Summary     string         `json:"summary"`
	MaxSeverity int            `json:"max_severity"`
	Confidence  float64        `json:"confidence"`
}
