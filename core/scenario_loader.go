package core

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/signalsfoundry/globe-simulator/model"
)

var (
	// ErrMissingField marks a row without a required column value.
	ErrMissingField = errors.New("missing required field")
	// ErrMalformedTime marks a departure time that is not HH:MM.
	ErrMalformedTime = errors.New("malformed departure time")
	// ErrMalformedNumber marks a coordinate that does not parse as a number.
	ErrMalformedNumber = errors.New("malformed number")
)

// Column names of the flight input schema.
const (
	colOriginLat       = "origin_lat"
	colOriginLon       = "origin_lon"
	colDestinationLat  = "destination_lat"
	colDestinationLon  = "destination_lon"
	colDepartureTime   = "departure_time"
	colPlaneName       = "plane_name"
	colPlaneModel      = "plane_model"
	colOriginIATA      = "origin_iata"
	colDestinationIATA = "destination_iata"
)

// RowError describes why an input row was rejected. Row is 1-based and counts
// data rows only.
type RowError struct {
	Row   int
	Field string
	Err   error
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d: %s: %v", e.Row, e.Field, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// FlightScenario is the outcome of loading a flight file: the accepted
// records in input order and every rejected row.
type FlightScenario struct {
	Records  []model.FlightRecord
	Rejected []*RowError
}

// ParseDepartureTime converts "HH:MM" into seconds since midnight.
func ParseDepartureTime(s string) (float64, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("%w: hours in %q", ErrMalformedTime, s)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: minutes in %q", ErrMalformedTime, s)
	}
	return float64(hours*3600 + minutes*60), nil
}

// LoadFlightsCSV reads a header-first CSV of flight rows. Structural CSV
// errors abort the load; invalid rows are collected in Rejected and skipped.
func LoadFlightsCSV(r io.Reader) (*FlightScenario, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("LoadFlightsCSV: read header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(headers[i]))
	}

	result := &FlightScenario{}
	for row := 1; ; row++ {
		vals, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("LoadFlightsCSV: row %d: %w", row, err)
		}
		if isBlank(vals) {
			row--
			continue
		}
		if len(vals) != len(headers) {
			result.Rejected = append(result.Rejected, &RowError{
				Row: row,
				Err: fmt.Errorf("header/value mismatch (%d/%d)", len(headers), len(vals)),
			})
			continue
		}

		fields := make(map[string]string, len(headers))
		for i, h := range headers {
			fields[h] = strings.TrimSpace(vals[i])
		}
		rec, rowErr := recordFromFields(row, fields)
		if rowErr != nil {
			result.Rejected = append(result.Rejected, rowErr)
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// flightRowJSON accepts numbers either as JSON numbers or numeric strings.
type flightRowJSON struct {
	OriginLat       json.Number `json:"origin_lat"`
	OriginLon       json.Number `json:"origin_lon"`
	DestinationLat  json.Number `json:"destination_lat"`
	DestinationLon  json.Number `json:"destination_lon"`
	DepartureTime   string      `json:"departure_time"`
	PlaneName       string      `json:"plane_name"`
	PlaneModel      string      `json:"plane_model"`
	OriginIATA      string      `json:"origin_iata"`
	DestinationIATA string      `json:"destination_iata"`
}

// LoadFlightsJSON reads a JSON array of flight rows with the same schema as
// the CSV loader.
func LoadFlightsJSON(r io.Reader) (*FlightScenario, error) {
	var rows []flightRowJSON
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("LoadFlightsJSON: decode failed: %w", err)
	}

	result := &FlightScenario{Records: make([]model.FlightRecord, 0, len(rows))}
	for i, js := range rows {
		rec, rowErr := recordFromFields(i+1, map[string]string{
			colOriginLat:       js.OriginLat.String(),
			colOriginLon:       js.OriginLon.String(),
			colDestinationLat:  js.DestinationLat.String(),
			colDestinationLon:  js.DestinationLon.String(),
			colDepartureTime:   js.DepartureTime,
			colPlaneName:       js.PlaneName,
			colPlaneModel:      js.PlaneModel,
			colOriginIATA:      js.OriginIATA,
			colDestinationIATA: js.DestinationIATA,
		})
		if rowErr != nil {
			result.Rejected = append(result.Rejected, rowErr)
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func recordFromFields(row int, fields map[string]string) (model.FlightRecord, *RowError) {
	departure := fields[colDepartureTime]
	if departure == "" {
		return model.FlightRecord{}, &RowError{Row: row, Field: colDepartureTime, Err: ErrMissingField}
	}
	secs, err := ParseDepartureTime(departure)
	if err != nil {
		return model.FlightRecord{}, &RowError{Row: row, Field: colDepartureTime, Err: err}
	}

	origin, rowErr := pointFromFields(row, fields, colOriginLat, colOriginLon)
	if rowErr != nil {
		return model.FlightRecord{}, rowErr
	}
	destination, rowErr := pointFromFields(row, fields, colDestinationLat, colDestinationLon)
	if rowErr != nil {
		return model.FlightRecord{}, rowErr
	}

	return model.FlightRecord{
		ID:               fmt.Sprintf("flight-%d", row),
		Origin:           origin,
		Destination:      destination,
		DepartureTime:    departure,
		DepartureSeconds: secs,
		PlaneName:        fields[colPlaneName],
		PlaneModel:       fields[colPlaneModel],
		OriginIATA:       fields[colOriginIATA],
		DestinationIATA:  fields[colDestinationIATA],
	}, nil
}

func pointFromFields(row int, fields map[string]string, latCol, lonCol string) (model.GeoPoint, *RowError) {
	lat, rowErr := floatField(row, fields, latCol)
	if rowErr != nil {
		return model.GeoPoint{}, rowErr
	}
	lon, rowErr := floatField(row, fields, lonCol)
	if rowErr != nil {
		return model.GeoPoint{}, rowErr
	}
	p, err := model.NewGeoPoint(lat, lon)
	if err != nil {
		return model.GeoPoint{}, &RowError{Row: row, Field: latCol + "/" + lonCol, Err: err}
	}
	return p, nil
}

func floatField(row int, fields map[string]string, col string) (float64, *RowError) {
	raw := fields[col]
	if raw == "" {
		return 0, &RowError{Row: row, Field: col, Err: ErrMissingField}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &RowError{Row: row, Field: col, Err: fmt.Errorf("%w: %q", ErrMalformedNumber, raw)}
	}
	return v, nil
}

func isBlank(vals []string) bool {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
