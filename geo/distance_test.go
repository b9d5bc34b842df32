package geo

import (
	"math"
	"testing"
)

func TestHaversineDistance(t *testing.T) {
	tests := []struct {
		name    string
		p1, p2  Point
		wantKm  float64
		epsilon float64
	}{
		{
			name:    "same point",
			p1:      Point{Lat: 37.5665, Lng: 126.9780},
			p2:      Point{Lat: 37.5665, Lng: 126.9780},
			wantKm:  0,
			epsilon: 1e-12,
		},
		{
			name:    "myeongdong to samseong",
			p1:      Point{Lat: 37.5665, Lng: 126.9780},
			p2:      Point{Lat: 37.5172, Lng: 127.0473},
			wantKm:  8.21,
			epsilon: 0.1,
		},
		{
			name:    "one degree of latitude",
			p1:      Point{Lat: 0, Lng: 0},
			p2:      Point{Lat: 1, Lng: 0},
			wantKm:  111.19,
			epsilon: 0.01,
		},
		{
			name:    "seoul to busan",
			p1:      Point{Lat: 37.5665, Lng: 126.9780},
			p2:      Point{Lat: 35.1796, Lng: 129.0756},
			wantKm:  325,
			epsilon: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineDistance(tt.p1, tt.p2)
			if math.Abs(got-tt.wantKm) > tt.epsilon {
				t.Errorf("HaversineDistance() = %f, want %f ± %f", got, tt.wantKm, tt.epsilon)
			}
		})
	}
}

func TestHaversineDistance_Symmetric(t *testing.T) {
	points := []Point{
		{Lat: 37.5665, Lng: 126.9780},
		{Lat: 37.5172, Lng: 127.0473},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 89.9, Lng: -179.9},
		{Lat: 0, Lng: 0},
	}

	for _, a := range points {
		if d := HaversineDistance(a, a); d != 0 {
			t.Errorf("HaversineDistance(%v, %v) = %f, want 0", a, a, d)
		}
		for _, b := range points {
			ab := HaversineDistance(a, b)
			ba := HaversineDistance(b, a)
			if math.Abs(ab-ba) > 1e-9 {
				t.Errorf("distance not symmetric for %v, %v: %f vs %f", a, b, ab, ba)
			}
		}
	}
}

func TestHaversineDistanceMeters(t *testing.T) {
	p1 := Point{Lat: 37.5665, Lng: 126.9780}
	p2 := Point{Lat: 37.5663, Lng: 126.9779}

	km := HaversineDistance(p1, p2)
	m := HaversineDistanceMeters(p1, p2)
	if math.Abs(m-km*1000) > 1e-9 {
		t.Errorf("meters = %f, want %f", m, km*1000)
	}
	if m < 20 || m > 30 {
		t.Errorf("expected roughly 24m between the two Myeong-dong points, got %f", m)
	}
}

func TestPoint_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		want  bool
	}{
		{"origin", Point{0, 0}, true},
		{"seoul", Point{37.5665, 126.9780}, true},
		{"north pole", Point{90, 0}, true},
		{"antimeridian", Point{0, -180}, true},
		{"lat too high", Point{90.0001, 0}, false},
		{"lat too low", Point{-91, 0}, false},
		{"lng too high", Point{0, 180.5}, false},
		{"lng too low", Point{0, -181}, false},
		{"NaN latitude", Point{math.NaN(), 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.point.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPathLength(t *testing.T) {
	a := Point{Lat: 37.5665, Lng: 126.9780}
	b := Point{Lat: 37.5519, Lng: 126.9918}
	c := Point{Lat: 37.5172, Lng: 127.0473}

	if got := PathLength(nil); got != 0 {
		t.Errorf("PathLength(nil) = %f, want 0", got)
	}
	if got := PathLength([]Point{a}); got != 0 {
		t.Errorf("PathLength(single) = %f, want 0", got)
	}

	want := HaversineDistance(a, b) + HaversineDistance(b, c)
	if got := PathLength([]Point{a, b, c}); math.Abs(got-want) > 1e-9 {
		t.Errorf("PathLength() = %f, want %f", got, want)
	}

	if direct := HaversineDistance(a, c); PathLength([]Point{a, b, c}) < direct {
		t.Error("path through a waypoint should not be shorter than the direct distance")
	}
}

func TestPlanarMidpoint(t *testing.T) {
	got := PlanarMidpoint(Point{Lat: 37.5, Lng: 126.9}, Point{Lat: 37.6, Lng: 127.1})
	if math.Abs(got.Lat-37.55) > 1e-9 || math.Abs(got.Lng-127.0) > 1e-9 {
		t.Errorf("PlanarMidpoint() = %+v, want {37.55 127.0}", got)
	}
}
