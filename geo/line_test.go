package geo

import (
	"math"
	"testing"
)

func TestLineDistance(t *testing.T) {
	tests := []struct {
		name   string
		p1, p2 Point
		point  Point
		want   float64
	}{
		{
			name:  "point on horizontal line",
			p1:    Point{Lat: 0, Lng: 0},
			p2:    Point{Lat: 0, Lng: 10},
			point: Point{Lat: 0, Lng: 5},
			want:  0,
		},
		{
			name:  "point above horizontal line",
			p1:    Point{Lat: 0, Lng: 0},
			p2:    Point{Lat: 0, Lng: 10},
			point: Point{Lat: 3, Lng: 5},
			want:  3,
		},
		{
			name:  "line is infinite beyond the segment",
			p1:    Point{Lat: 0, Lng: 0},
			p2:    Point{Lat: 0, Lng: 1},
			point: Point{Lat: 2, Lng: 50},
			want:  2,
		},
		{
			name:  "diagonal line",
			p1:    Point{Lat: 0, Lng: 0},
			p2:    Point{Lat: 1, Lng: 1},
			point: Point{Lat: 0, Lng: 1},
			want:  math.Sqrt2 / 2,
		},
		{
			name:  "degenerate line falls back to point distance",
			p1:    Point{Lat: 1, Lng: 1},
			p2:    Point{Lat: 1, Lng: 1},
			point: Point{Lat: 4, Lng: 5},
			want:  5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LineDistance(tt.p1, tt.p2, tt.point)
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Fatalf("LineDistance() = %v, want finite", got)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("LineDistance() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestNearLine_Endpoints(t *testing.T) {
	p1 := Point{Lat: 37.5665, Lng: 126.9780}
	p2 := Point{Lat: 37.5172, Lng: 127.0473}

	for _, threshold := range []float64{1e-9, 0.001, 0.5} {
		if !NearLine(p1, p2, p1, threshold) {
			t.Errorf("p1 should be near the line at threshold %g", threshold)
		}
		if !NearLine(p1, p2, p2, threshold) {
			t.Errorf("p2 should be near the line at threshold %g", threshold)
		}
	}
}

func TestNearLine_StrictThreshold(t *testing.T) {
	p1 := Point{Lat: 0, Lng: 0}
	p2 := Point{Lat: 0, Lng: 10}
	point := Point{Lat: 0.5, Lng: 5}

	if NearLine(p1, p2, point, 0.5) {
		t.Error("distance equal to threshold should not count as near")
	}
	if !NearLine(p1, p2, point, 0.5000001) {
		t.Error("distance below threshold should count as near")
	}
}

func TestNearLine_Degenerate(t *testing.T) {
	p := Point{Lat: 37.5665, Lng: 126.9780}

	if !NearLine(p, p, p, 0.5) {
		t.Error("point coinciding with a degenerate line should be near")
	}
	if NearLine(p, p, Point{Lat: 35.1796, Lng: 129.0756}, 0.5) {
		t.Error("distant point should not be near a degenerate line")
	}
}
