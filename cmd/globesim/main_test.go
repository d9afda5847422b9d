package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/globe-simulator/internal/config"
	"github.com/signalsfoundry/globe-simulator/internal/logging"
	"github.com/signalsfoundry/globe-simulator/internal/snapshot"
)

const shuttleCSV = `origin_lat,origin_lon,destination_lat,destination_lon,departure_time,plane_name,plane_model,origin_iata,destination_iata
0,0,0,90,00:00,Outbound,A320,AAA,BBB
0,90,0,0,00:10,Return,A320,BBB,AAA
0,0,0,90,25:00,Broken,A320,AAA,BBB
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// TestRunHeadlessShuttle sweeps two flights that swap planes between two
// airports and checks that every plane ends up on the ground.
func TestRunHeadlessShuttle(t *testing.T) {
	c := config.Default()
	c.Input = writeTemp(t, "shuttle.csv", shuttleCSV)
	c.Duration = "fixed:600"
	c.Segments = 10
	c.Frame = time.Second
	c.Acceleration = 60
	c.Snapshot = filepath.Join(t.TempDir(), "final.frame.zst")
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	var out bytes.Buffer
	sum, err := runHeadless(context.Background(), c, logging.Noop(), &out)
	if err != nil {
		t.Fatalf("runHeadless: %v", err)
	}

	if sum.Flights != 2 || sum.Rejected != 1 {
		t.Fatalf("flights/rejected = %d/%d, want 2/1", sum.Flights, sum.Rejected)
	}
	if sum.Start != 0 || sum.End != 1200 {
		t.Fatalf("window = %v..%v, want 0..1200", sum.Start, sum.End)
	}
	if sum.Departures != 2 || sum.Arrivals != 2 || sum.Underflows != 0 {
		t.Fatalf("departures/arrivals/underflows = %d/%d/%d, want 2/2/0",
			sum.Departures, sum.Arrivals, sum.Underflows)
	}
	if sum.Segments != 2*10 {
		t.Fatalf("segments drawn = %d, want 20", sum.Segments)
	}
	if sum.Final.Completed != 2 {
		t.Fatalf("final tick = %+v, want both flights completed", sum.Final)
	}

	if len(sum.Airports) != 2 {
		t.Fatalf("airports = %+v, want 2", sum.Airports)
	}
	for _, a := range sum.Airports {
		if a.Planes != 1 {
			t.Fatalf("airport %s has %d planes, want 1", a.IATA, a.Planes)
		}
	}
	if !strings.Contains(out.String(), "arrivals") {
		t.Fatalf("summary missing arrivals line:\n%s", out.String())
	}

	final, err := snapshot.Load(c.Snapshot)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if final.SimTime != sum.Final.SimTime || len(final.Lines) != 2 {
		t.Fatalf("snapshot frame at %v with %d lines", final.SimTime, len(final.Lines))
	}
}

func TestLoadScenarioByExtension(t *testing.T) {
	jsonPath := writeTemp(t, "flights.json", `[
		{"origin_lat": 10, "origin_lon": 20, "destination_lat": 30, "destination_lon": 40, "departure_time": "08:30"}
	]`)
	scenario, err := loadScenario(context.Background(), jsonPath, logging.Noop())
	if err != nil {
		t.Fatalf("loadScenario json: %v", err)
	}
	if len(scenario.Records) != 1 || scenario.Records[0].DepartureSeconds != 8*3600+30*60 {
		t.Fatalf("records = %+v", scenario.Records)
	}

	if _, err := loadScenario(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), logging.Noop()); err == nil {
		t.Fatal("expected error for missing file")
	}
}
