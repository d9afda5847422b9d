package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/globe-simulator/model"
)

func TestFixedDuration(t *testing.T) {
	d := FixedDuration(600)
	if got := d.Duration(model.GeoPoint{}, model.GeoPoint{Lat: 50, Lon: 50}); got != 600 {
		t.Fatalf("Duration = %v, want 600", got)
	}
}

func TestDistanceDuration(t *testing.T) {
	d := DefaultDistanceDuration

	// A one-degree hop is far below the floor.
	if got := d.Duration(model.GeoPoint{}, model.GeoPoint{Lon: 1}); got != d.MinSeconds {
		t.Errorf("short hop = %v, want floor %v", got, d.MinSeconds)
	}

	// A quarter of the equator is roughly 10000 km.
	got := d.Duration(model.GeoPoint{}, model.GeoPoint{Lon: 90})
	want := 10007.5 / d.CruiseKmh * 3600
	if math.Abs(got-want)/want > 0.01 {
		t.Errorf("quarter turn = %v s, want about %v s", got, want)
	}

	longer := d.Duration(model.GeoPoint{}, model.GeoPoint{Lon: 120})
	if longer <= got {
		t.Errorf("duration did not grow with distance: %v <= %v", longer, got)
	}
}

func TestParseDurationPolicy(t *testing.T) {
	cases := []struct {
		in   string
		want DurationPolicy
	}{
		{"", FixedDuration(DefaultFlightDuration)},
		{"fixed", FixedDuration(DefaultFlightDuration)},
		{"fixed:600", FixedDuration(600)},
		{" Fixed:1.5e3 ", FixedDuration(1500)},
		{"distance", DefaultDistanceDuration},
	}
	for _, tc := range cases {
		got, err := ParseDurationPolicy(tc.in)
		if err != nil {
			t.Errorf("ParseDurationPolicy(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDurationPolicy(%q) = %#v, want %#v", tc.in, got, tc.want)
		}
	}

	for _, in := range []string{"fixed:0", "fixed:-3", "fixed:soon"} {
		if _, err := ParseDurationPolicy(in); !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("ParseDurationPolicy(%q) err = %v, want ErrInvalidDuration", in, err)
		}
	}
	if _, err := ParseDurationPolicy("warp"); err == nil {
		t.Errorf("expected error for unknown policy")
	}
}
