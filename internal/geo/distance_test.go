package geo_test

import (
	"math"
	"testing"

	"storefinder/internal/geo"
)

func TestMiles_BostonToCambridge(t *testing.T) {
	d := geo.Miles(42.3601, -71.0589, 42.3736, -71.1097)
	if math.Abs(d-2.76) > 0.1 {
		t.Fatalf("expected ~2.76 mi, got %.4f", d)
	}
}

func TestMiles_SamePointIsZero(t *testing.T) {
	if d := geo.Miles(42.3601, -71.0589, 42.3601, -71.0589); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestMiles_Symmetric(t *testing.T) {
	a := geo.Miles(40.7128, -74.0060, 34.0522, -118.2437)
	b := geo.Miles(34.0522, -118.2437, 40.7128, -74.0060)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("asymmetric: %f vs %f", a, b)
	}
	// NYC -> LA is roughly 2445 miles
	if math.Abs(a-2445) > 15 {
		t.Fatalf("unexpected NYC-LA distance %f", a)
	}
}

func TestMeters_FortyMetersNorth(t *testing.T) {
	// one degree of latitude ~ 111195 m on this sphere
	d := geo.Meters(42.3601, -71.0589, 42.3601+40.0/111195.0, -71.0589)
	if math.Abs(d-40) > 0.5 {
		t.Fatalf("expected ~40 m, got %f", d)
	}
}

func TestRound3(t *testing.T) {
	cases := map[float64]float64{
		42.36014:  42.36,
		42.36017:  42.36,
		-71.05893: -71.059,
		-71.05891: -71.059,
		0.0004:    0,
	}
	for in, want := range cases {
		if got := geo.Round3(in); math.Abs(got-want) > 1e-12 {
			t.Errorf("Round3(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestRadiusMiles(t *testing.T) {
	if got := geo.RadiusMiles(1609); math.Abs(got-1609/1609.34) > 1e-12 {
		t.Fatalf("got %v", got)
	}
}
