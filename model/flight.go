package model

// FlightRecord is one validated input row describing a scheduled flight.
// DepartureSeconds is the departure time as seconds since midnight.
type FlightRecord struct {
	ID               string   `json:"id" msgpack:"id"`
	Origin           GeoPoint `json:"origin" msgpack:"origin"`
	Destination      GeoPoint `json:"destination" msgpack:"destination"`
	DepartureTime    string   `json:"departure_time" msgpack:"departure_time"`
	DepartureSeconds float64  `json:"departure_seconds" msgpack:"departure_seconds"`

	PlaneName       string `json:"plane_name,omitempty" msgpack:"plane_name,omitempty"`
	PlaneModel      string `json:"plane_model,omitempty" msgpack:"plane_model,omitempty"`
	OriginIATA      string `json:"origin_iata,omitempty" msgpack:"origin_iata,omitempty"`
	DestinationIATA string `json:"destination_iata,omitempty" msgpack:"destination_iata,omitempty"`
}

// OrUnknown returns s, or "Unknown" when s is empty. Used for tooltip payloads.
func OrUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
