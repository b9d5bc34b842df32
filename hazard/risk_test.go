package hazard

import (
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/seoulsafe/sinkhole-api/errors"
	"github.com/seoulsafe/sinkhole-api/geo"
)

// kmPerDegree is the length of one degree of latitude on the haversine sphere.
const kmPerDegree = geo.EarthRadiusKm * math.Pi / 180

// northOf returns the point d km due north of the origin.
func northOf(d float64) geo.Point {
	return geo.NewPoint(d/kmPerDegree, 0)
}

func singleZoneTable(t *testing.T, risk float64) *Table {
	t.Helper()
	table, err := NewTable([]Zone{{Lat: 0, Lng: 0, Risk: risk, Name: "origin"}})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	return table
}

func TestEstimate_DistanceBands(t *testing.T) {
	tests := []struct {
		name      string
		risk      float64
		distKm    float64
		wantScore float64
		wantLevel Level
	}{
		{"near band floor", 0.5, 0.3, 0.7, LevelHigh},
		{"near band zone risk", 0.9, 0.3, 0.9, LevelVeryHigh},
		{"mid band floor", 0.5, 0.7, 0.4, LevelModerate},
		{"mid band scaled", 0.9, 0.7, 0.63, LevelHigh},
		{"outer band floor", 0.3, 1.5, 0.2, LevelLow},
		{"outer band scaled", 0.9, 1.5, 0.45, LevelModerate},
		{"far field decay", 0.9, 5, 0.209, LevelLow},
		{"very far field", 0.9, 500, 0.1, LevelVeryLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := NewEstimator(singleZoneTable(t, tt.risk))

			got, err := est.Estimate(northOf(tt.distKm))
			if err != nil {
				t.Fatalf("Estimate() error = %v", err)
			}
			if got.RiskScore != tt.wantScore {
				t.Errorf("RiskScore = %v, want %v", got.RiskScore, tt.wantScore)
			}
			if got.RiskLevel != tt.wantLevel {
				t.Errorf("RiskLevel = %s, want %s", got.RiskLevel, tt.wantLevel)
			}
		})
	}
}

func TestEstimate_MonotonicAcrossBands(t *testing.T) {
	for _, risk := range []float64{0, 0.3, 0.5, 0.75, 1} {
		est := NewEstimator(singleZoneTable(t, risk))

		prev := math.Inf(1)
		for _, d := range []float64{0.1, 0.6, 1.2, 2.5} {
			a, err := est.Estimate(northOf(d))
			if err != nil {
				t.Fatalf("Estimate() error = %v", err)
			}
			if a.RiskScore > prev {
				t.Errorf("risk %v: score rose from %v to %v at %v km", risk, prev, a.RiskScore, d)
			}
			prev = a.RiskScore
		}
	}
}

func TestEstimate_NearHighestRiskZone(t *testing.T) {
	est := NewEstimator(DefaultTable())

	points := []geo.Point{
		geo.NewPoint(37.5663, 126.9779),
		geo.NewPoint(37.5680, 126.9790),
		geo.NewPoint(37.5640, 126.9760),
	}
	for _, p := range points {
		a, err := est.Estimate(p)
		if err != nil {
			t.Fatalf("Estimate(%v) error = %v", p, err)
		}
		if a.RiskScore < 0.7 {
			t.Errorf("Estimate(%v) score = %v, want >= 0.7", p, a.RiskScore)
		}
		if a.RiskLevel != LevelVeryHigh {
			t.Errorf("Estimate(%v) level = %s, want very_high", p, a.RiskLevel)
		}
		if a.Message != "매우 위험한 지역입니다. 우회 경로를 이용하세요." {
			t.Errorf("unexpected message %q", a.Message)
		}
	}
}

func TestEstimate_FarFromEveryZone(t *testing.T) {
	busan := geo.NewPoint(35.1796, 129.0756)

	baselines := map[string]Baseline{
		"decay":  DecayBaseline,
		"random": RandomBaseline(rand.New(rand.NewPCG(1, 2))),
	}
	for name, b := range baselines {
		t.Run(name, func(t *testing.T) {
			est := NewEstimator(DefaultTable(), WithBaseline(b))
			for i := 0; i < 100; i++ {
				a, err := est.Estimate(busan)
				if err != nil {
					t.Fatalf("Estimate() error = %v", err)
				}
				if a.RiskScore < 0.1 || a.RiskScore >= 0.3 {
					t.Fatalf("RiskScore = %v, want within [0.1, 0.3)", a.RiskScore)
				}
			}
		})
	}
}

func TestEstimate_EchoesCoordinate(t *testing.T) {
	est := NewEstimator(DefaultTable())

	a, err := est.Estimate(geo.NewPoint(37.55, 126.99))
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if a.Latitude != 37.55 || a.Longitude != 126.99 {
		t.Errorf("coordinate = (%v, %v)", a.Latitude, a.Longitude)
	}
	if a.NearestZone.Name == "" {
		t.Error("NearestZone should be set")
	}
}

func TestEstimate_InvalidCoordinate(t *testing.T) {
	est := NewEstimator(DefaultTable())

	tests := []struct {
		name      string
		point     geo.Point
		wantField string
	}{
		{"latitude too high", geo.NewPoint(90.1, 0), "latitude"},
		{"latitude too low", geo.NewPoint(-91, 0), "latitude"},
		{"longitude too high", geo.NewPoint(0, 180.5), "longitude"},
		{"latitude NaN", geo.NewPoint(math.NaN(), 0), "latitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := est.Estimate(tt.point)
			if !errors.IsInvalidCoordinate(err) {
				t.Fatalf("error = %v, want InvalidCoordinate", err)
			}
			if _, ok := err.(*errors.AppError).Details[tt.wantField]; !ok {
				t.Errorf("details %v missing %s", err.(*errors.AppError).Details, tt.wantField)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{1, LevelVeryHigh},
		{0.8, LevelVeryHigh},
		{0.799, LevelHigh},
		{0.6, LevelHigh},
		{0.599, LevelModerate},
		{0.4, LevelModerate},
		{0.399, LevelLow},
		{0.2, LevelLow},
		{0.199, LevelVeryLow},
		{0, LevelVeryLow},
	}

	for _, tt := range tests {
		level, msg := Classify(tt.score)
		if level != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.score, level, tt.want)
		}
		if msg == "" {
			t.Errorf("Classify(%v) returned an empty message", tt.score)
		}
	}
}

func TestDecayBaseline_Range(t *testing.T) {
	for _, d := range []float64{2, 2.5, 10, 100, 10000} {
		got := roundScore(DecayBaseline(d))
		if got < 0.1 || got >= 0.3 {
			t.Errorf("DecayBaseline(%v) = %v, want within [0.1, 0.3)", d, got)
		}
	}
	if DecayBaseline(3) <= DecayBaseline(30) {
		t.Error("DecayBaseline should fall with distance")
	}
}

func TestParseBaseline(t *testing.T) {
	for _, name := range []string{"", "decay", "random"} {
		b, err := ParseBaseline(name)
		if err != nil || b == nil {
			t.Errorf("ParseBaseline(%q) = %v, %v", name, b, err)
		}
	}
	if _, err := ParseBaseline("gaussian"); err == nil {
		t.Error("expected error for unknown baseline")
	}
}

func TestEstimate_Concurrent(t *testing.T) {
	est := NewEstimator(DefaultTable(), WithBaseline(RandomBaseline(rand.New(rand.NewPCG(7, 7)))))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := est.Estimate(geo.NewPoint(33.5, 126.5)); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
