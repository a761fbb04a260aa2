package geo

import (
	"math"
	"testing"

	"github.com/umahmood/haversine"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name             string
		lat1, lon1       float64
		lat2, lon2       float64
		wantMeters       float64
		tolerancePercent float64
	}{
		{
			name:             "Nuremberg to Wurzburg",
			lat1:             49.4521, lon1: 11.0767,
			lat2:             49.7913, lon2: 9.9534,
			wantMeters:       89_300,
			tolerancePercent: 1,
		},
		{
			name:             "Same point",
			lat1:             49.5180, lon1: 10.6897,
			lat2:             49.5180, lon2: 10.6897,
			wantMeters:       0,
			tolerancePercent: 0,
		},
		{
			name:             "London to Paris",
			lat1:             51.5074, lon1: -0.1278,
			lat2:             48.8566, lon2: 2.3522,
			wantMeters:       343_500,
			tolerancePercent: 1,
		},
		{
			name:             "Short distance (~100m)",
			lat1:             49.5180, lon1: 10.6897,
			lat2:             49.5189, lon2: 10.6897,
			wantMeters:       100,
			tolerancePercent: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if tt.wantMeters == 0 {
				if got != 0 {
					t.Errorf("expected 0, got %f", got)
				}
				return
			}
			diff := math.Abs(got-tt.wantMeters) / tt.wantMeters * 100
			if diff > tt.tolerancePercent {
				t.Errorf("Haversine = %f m, want ~%f m (diff %.1f%%)", got, tt.wantMeters, diff)
			}
		})
	}
}

// TestHaversineAgainstOracle cross-checks our formula against an independent
// implementation rather than hand-computed expectations.
func TestHaversineAgainstOracle(t *testing.T) {
	pairs := [][4]float64{
		{49.4521, 11.0767, 49.7913, 9.9534},
		{1.3521, 103.8198, 1.2905, 103.8520},
		{51.5074, -0.1278, 48.8566, 2.3522},
		{0, 0, 0, 0},
	}

	for _, p := range pairs {
		ours := Haversine(p[0], p[1], p[2], p[3])

		km, _ := haversine.Distance(
			haversine.Coord{Lat: p[0], Lon: p[1]},
			haversine.Coord{Lat: p[2], Lon: p[3]},
		)
		oracle := km * 1000

		if oracle == 0 {
			if ours != 0 {
				t.Errorf("Haversine(%v) = %f, oracle = 0", p, ours)
			}
			continue
		}

		diff := math.Abs(ours-oracle) / oracle * 100
		if diff > 0.5 {
			t.Errorf("Haversine(%v) = %f m, oracle = %f m (diff %.2f%%)", p, ours, oracle, diff)
		}
	}
}

func TestHaversineSymmetric(t *testing.T) {
	a := Haversine(49.4521, 11.0767, 49.7913, 9.9534)
	b := Haversine(49.7913, 9.9534, 49.4521, 11.0767)
	if a != b {
		t.Errorf("Haversine not symmetric: %f vs %f", a, b)
	}
}

func BenchmarkHaversine(b *testing.B) {
	for b.Loop() {
		Haversine(49.4521, 11.0767, 49.7913, 9.9534)
	}
}
