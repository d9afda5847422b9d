// core/scenario_loader_test.go
package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/signalsfoundry/globe-simulator/model"
)

func TestParseDepartureTime(t *testing.T) {
	valid := map[string]float64{
		"00:00": 0,
		"08:30": 8*3600 + 30*60,
		"23:59": 23*3600 + 59*60,
		" 7:05": 7*3600 + 5*60,
	}
	for in, want := range valid {
		got, err := ParseDepartureTime(in)
		if err != nil || got != want {
			t.Errorf("ParseDepartureTime(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"", "0830", "24:00", "12:60", "12:5", "-1:00", "ab:cd"} {
		if _, err := ParseDepartureTime(in); !errors.Is(err, ErrMalformedTime) {
			t.Errorf("ParseDepartureTime(%q) err = %v, want ErrMalformedTime", in, err)
		}
	}
}

func TestLoadFlightsCSV_AcceptsAndRejects(t *testing.T) {
	data := ` Origin_Lat ,origin_lon,destination_lat,destination_lon,departure_time,plane_name,plane_model,origin_iata,destination_iata
40.64,-73.78,51.47,-0.45,08:30,Speedbird 178,B777,JFK,LHR
40.64,-73.78,,-0.45,09:00,,,,
abc,-73.78,51.47,-0.45,09:00,,,,
95,-73.78,51.47,-0.45,09:00,,,,
40.64,-73.78,51.47,-0.45,7:5,,,,
,,,,,,,,
40.64,-73.78,51.47
35.55,139.78,1.36,103.99,22:15,,,HND,SIN
`
	scenario, err := LoadFlightsCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFlightsCSV: %v", err)
	}

	if len(scenario.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(scenario.Records))
	}
	first := scenario.Records[0]
	want := model.FlightRecord{
		ID:               "flight-1",
		Origin:           model.GeoPoint{Lat: 40.64, Lon: -73.78},
		Destination:      model.GeoPoint{Lat: 51.47, Lon: -0.45},
		DepartureTime:    "08:30",
		DepartureSeconds: 8*3600 + 30*60,
		PlaneName:        "Speedbird 178",
		PlaneModel:       "B777",
		OriginIATA:       "JFK",
		DestinationIATA:  "LHR",
	}
	if first != want {
		t.Errorf("first record = %+v\nwant %+v", first, want)
	}
	if last := scenario.Records[1]; last.ID != "flight-7" || last.PlaneName != "" {
		t.Errorf("last record = %+v, want flight-7 with blank plane name", last)
	}

	wantRejects := []struct {
		row int
		err error
	}{
		{2, ErrMissingField},
		{3, ErrMalformedNumber},
		{4, model.ErrInvalidCoordinate},
		{5, ErrMalformedTime},
		{6, nil},
	}
	if len(scenario.Rejected) != len(wantRejects) {
		t.Fatalf("rejected = %v, want %d rows", scenario.Rejected, len(wantRejects))
	}
	for i, w := range wantRejects {
		got := scenario.Rejected[i]
		if got.Row != w.row {
			t.Errorf("reject %d row = %d, want %d", i, got.Row, w.row)
		}
		if w.err != nil && !errors.Is(got, w.err) {
			t.Errorf("reject %d err = %v, want %v", i, got, w.err)
		}
	}
	if !strings.Contains(scenario.Rejected[4].Error(), "mismatch") {
		t.Errorf("short row error = %q", scenario.Rejected[4].Error())
	}
}

func TestLoadFlightsCSV_EmptyInput(t *testing.T) {
	if _, err := LoadFlightsCSV(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for missing header")
	}
	scenario, err := LoadFlightsCSV(strings.NewReader("origin_lat,origin_lon,destination_lat,destination_lon,departure_time\n"))
	if err != nil {
		t.Fatalf("header only: %v", err)
	}
	if len(scenario.Records) != 0 || len(scenario.Rejected) != 0 {
		t.Fatalf("header only produced %+v", scenario)
	}
}

func TestLoadFlightsJSON_NumbersAndStrings(t *testing.T) {
	data := `[
  {"origin_lat": 10, "origin_lon": "20.5", "destination_lat": -30, "destination_lon": 40,
   "departure_time": "06:00", "plane_name": "Night Owl", "origin_iata": "AAA"},
  {"origin_lat": 10, "origin_lon": 20, "destination_lon": 40, "departure_time": "06:00"},
  {"origin_lat": 10, "origin_lon": 20, "destination_lat": 0, "destination_lon": 400, "departure_time": "06:00"}
]`
	scenario, err := LoadFlightsJSON(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadFlightsJSON: %v", err)
	}
	if len(scenario.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(scenario.Records))
	}
	rec := scenario.Records[0]
	if rec.Origin.Lon != 20.5 || rec.Destination.Lat != -30 || rec.DepartureSeconds != 6*3600 {
		t.Errorf("record = %+v", rec)
	}
	if rec.PlaneName != "Night Owl" || rec.OriginIATA != "AAA" || rec.DestinationIATA != "" {
		t.Errorf("metadata = %+v", rec)
	}

	if len(scenario.Rejected) != 2 {
		t.Fatalf("rejected = %v, want 2", scenario.Rejected)
	}
	if r := scenario.Rejected[0]; r.Row != 2 || !errors.Is(r, ErrMissingField) || r.Field != colDestinationLat {
		t.Errorf("reject 0 = %+v", r)
	}
	if r := scenario.Rejected[1]; r.Row != 3 || !errors.Is(r, model.ErrInvalidCoordinate) {
		t.Errorf("reject 1 = %+v", r)
	}
}

func TestLoadFlightsJSON_Malformed(t *testing.T) {
	if _, err := LoadFlightsJSON(strings.NewReader(`{"origin_lat": 1}`)); err == nil {
		t.Fatalf("expected error for non-array document")
	}
}
