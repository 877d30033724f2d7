package features

import (
	"strings"
	"time"

	"RiskPulse/internal/domain/models"
)

// Vector positions.
const (
	DimSeverity = iota
	DimCategory
	DimSourceClass
	DimSignature
	DimRecency
)

const (
	signatureModulus = 1000
	recencyWindow    = 10 * time.Minute
)

var categoryCodes = map[models.Category]float64{
	models.CategoryStability: 0,
	models.CategoryEmotional: 1,
	models.CategoryExecution: 2,
	models.CategoryMemory:    3,
}

// sourceClasses is matched in order; the first substring hit wins.
var sourceClasses = []struct {
	needles []string
	code    float64
}{
	{[]string{"memory"}, 0},
	{[]string{"ui"}, 1},
	{[]string{"exec", "engine", "order"}, 2},
}

const catchAllSourceClass = 3

// Encoder maps signal records to fixed-dimension feature vectors.
type Encoder struct {
	now func() time.Time
}

type Option func(*Encoder)

// WithClock overrides the time source used for the recency weight.
func WithClock(now func() time.Time) Option {
	return func(e *Encoder) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Encode never fails: unknown categories and sources fall into default buckets.
func (e *Encoder) Encode(r models.SignalRecord) models.FeatureVector {
	var v models.FeatureVector
	v[DimSeverity] = float64(clampSeverity(r.Severity))
	v[DimCategory] = CategoryCode(r.Category)
	v[DimSourceClass] = SourceClass(r.Source)
	v[DimSignature] = MessageSignature(r.Message)
	v[DimRecency] = Recency(e.now().Sub(r.Timestamp))
	return v
}

// EncodeAll encodes records in order.
func (e *Encoder) EncodeAll(records []models.SignalRecord) []models.FeatureVector {
	out := make([]models.FeatureVector, len(records))
	for i, r := range records {
		out[i] = e.Encode(r)
	}
	return out
}

func CategoryCode(c models.Category) float64 {
	return categoryCodes[c]
}

func SourceClass(source string) float64 {
	s := strings.ToLower(source)
	for _, class := range sourceClasses {
		for _, n := range class.needles {
			if strings.Contains(s, n) {
				return class.code
			}
		}
	}
	return catchAllSourceClass
}

// MessageSignature is a rolling hash of the message runes mod 1000, scaled to [0,1).
func MessageSignature(msg string) float64 {
	h := 0
	for _, r := range msg {
		h = (h*31 + int(r)) % signatureModulus
	}
	return float64(h) / signatureModulus
}

// Recency decays linearly to zero over ten minutes. Future timestamps weigh 1.
func Recency(age time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	w := 1 - float64(age)/float64(recencyWindow)
	if w < 0 {
		return 0
	}
	return w
}

func clampSeverity(s int) int {
	if s < 0 {
		return 0
	}
	if s > 5 {
		return 5
	}
	return s
}
