package hazard

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/seoulsafe/sinkhole-api/errors"
	"github.com/seoulsafe/sinkhole-api/geo"
)

// Level is the qualitative risk band derived from a score.
type Level string

// Risk levels, highest first.
const (
	LevelVeryHigh Level = "very_high"
	LevelHigh     Level = "high"
	LevelModerate Level = "moderate"
	LevelLow      Level = "low"
	LevelVeryLow  Level = "very_low"
)

// Levels lists every level, highest first.
var Levels = []Level{LevelVeryHigh, LevelHigh, LevelModerate, LevelLow, LevelVeryLow}

// Distance bands (km) from the nearest zone.
const (
	nearBandKm = 0.5
	midBandKm  = 1.0
	farBandKm  = 2.0
)

// Assessment is the risk estimate for one coordinate.
type Assessment struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RiskScore float64 `json:"risk_score"`
	RiskLevel Level   `json:"risk_level"`
	Message   string  `json:"message"`

	NearestZone Zone    `json:"-"`
	DistanceKm  float64 `json:"-"`
}

// Baseline yields the score for points at least 2 km from every zone. It
// receives the distance to the nearest zone and must return a value in
// [0.1, 0.3).
type Baseline func(distanceKm float64) float64

// DecayBaseline falls from 0.299 at 2 km towards 0.1 with distance.
func DecayBaseline(distanceKm float64) float64 {
	return 0.1 + 0.199*math.Exp(-(distanceKm-farBandKm)/5)
}

// RandomBaseline draws uniformly from [0.1, 0.299). A nil r uses the
// package-level generator.
func RandomBaseline(r *rand.Rand) Baseline {
	if r == nil {
		return func(float64) float64 {
			return 0.1 + rand.Float64()*0.199
		}
	}

	var mu sync.Mutex
	return func(float64) float64 {
		mu.Lock()
		f := r.Float64()
		mu.Unlock()
		return 0.1 + f*0.199
	}
}

// ParseBaseline maps a config name to a Baseline.
func ParseBaseline(name string) (Baseline, error) {
	switch name {
	case "", "decay":
		return DecayBaseline, nil
	case "random":
		return RandomBaseline(nil), nil
	default:
		return nil, fmt.Errorf("unknown risk baseline %q (want decay or random)", name)
	}
}

// EstimatorOption configures an Estimator.
type EstimatorOption func(*Estimator)

// WithBaseline sets the far-field baseline.
func WithBaseline(b Baseline) EstimatorOption {
	return func(e *Estimator) {
		if b != nil {
			e.baseline = b
		}
	}
}

// Estimator scores a coordinate by its distance to the nearest hazard zone.
type Estimator struct {
	table    *Table
	baseline Baseline
}

// NewEstimator creates an estimator over table.
func NewEstimator(table *Table, opts ...EstimatorOption) *Estimator {
	e := &Estimator{
		table:    table,
		baseline: DecayBaseline,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate returns the risk assessment for p.
func (e *Estimator) Estimate(p geo.Point) (Assessment, error) {
	if err := checkPoint(p, "latitude", "longitude"); err != nil {
		return Assessment{}, err
	}

	zone, d := e.table.Nearest(p)
	score := roundScore(e.score(d, zone.Risk))
	level, msg := Classify(score)

	return Assessment{
		Latitude:    p.Lat,
		Longitude:   p.Lng,
		RiskScore:   score,
		RiskLevel:   level,
		Message:     msg,
		NearestZone: zone,
		DistanceKm:  d,
	}, nil
}

func (e *Estimator) score(d, risk float64) float64 {
	switch {
	case d < nearBandKm:
		return math.Max(0.7, risk)
	case d < midBandKm:
		return math.Max(0.4, risk*0.7)
	case d < farBandKm:
		return math.Max(0.2, risk*0.5)
	default:
		return e.baseline(d)
	}
}

// Classify maps a rounded score to its level and user-facing message.
func Classify(score float64) (Level, string) {
	switch {
	case score >= 0.8:
		return LevelVeryHigh, "매우 위험한 지역입니다. 우회 경로를 이용하세요."
	case score >= 0.6:
		return LevelHigh, "위험도가 높은 지역입니다. 주의가 필요합니다."
	case score >= 0.4:
		return LevelModerate, "보통 수준의 위험도입니다."
	case score >= 0.2:
		return LevelLow, "비교적 안전한 지역입니다."
	default:
		return LevelVeryLow, "매우 안전한 지역입니다."
	}
}

func roundScore(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func checkPoint(p geo.Point, latField, lngField string) error {
	if !geo.ValidLatitude(p.Lat) {
		return errors.InvalidCoordinate(latField, p.Lat)
	}
	if !geo.ValidLongitude(p.Lng) {
		return errors.InvalidCoordinate(lngField, p.Lng)
	}
	return nil
}
