package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/globe-simulator/internal/logging"
	"github.com/signalsfoundry/globe-simulator/model"
)

// MetricsRecorder receives simulation measurements. The observability
// collector implements it; nil disables recording.
type MetricsRecorder interface {
	ObserveTick(elapsed time.Duration, stats TickStats)
	ObservePick(layer string, hit bool)
	IncOccupancyUnderflow()
}

// TickStats summarizes one tick.
type TickStats struct {
	SimTime           float64 `json:"sim_time" msgpack:"sim_time"`
	Pending           int     `json:"pending" msgpack:"pending"`
	InFlight          int     `json:"in_flight" msgpack:"in_flight"`
	Completed         int     `json:"completed" msgpack:"completed"`
	SegmentsCommitted int     `json:"segments_committed" msgpack:"segments_committed"`
	Departures        int     `json:"departures" msgpack:"departures"`
	Arrivals          int     `json:"arrivals" msgpack:"arrivals"`
	Underflows        int     `json:"underflows" msgpack:"underflows"`
}

// Config parameterizes a simulation session.
type Config struct {
	Profile          Profile
	Segments         int
	Durations        DurationPolicy
	KeyMode          OccupancyKeyMode
	SnapToleranceDeg float64
	Picker           Picker
	PathCacheSize    int
	// Epoch is the calendar day simulated seconds are counted from; it only
	// affects the sun position.
	Epoch time.Time
}

// DefaultConfig returns the flight globe defaults.
func DefaultConfig() Config {
	now := time.Now().UTC()
	return Config{
		Profile:          FlightsProfile,
		Segments:         DefaultSegments,
		Durations:        FixedDuration(DefaultFlightDuration),
		KeyMode:          KeyExact,
		SnapToleranceDeg: DefaultSnapToleranceDeg,
		Picker:           DefaultPicker,
		PathCacheSize:    DefaultPathCacheSize,
		Epoch:            time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}
}

// Option customizes a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTracer records one span per tick.
func WithTracer(t trace.Tracer) Option {
	return func(s *Simulation) { s.tracer = t }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Simulation) { s.metrics = m }
}

// Simulation is the explicit context that owns every flight, the marker
// batch and the occupancy counters. Tick and Pick serialize on one mutex, so
// engine state is never touched concurrently.
type Simulation struct {
	mu sync.Mutex

	cfg     Config
	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer

	flights   []*Flight
	markers   *MarkerSet
	airports  *StaticMarkers
	occupancy *Occupancy
	sun       SunModel
	moon      BodyModel

	skipped []error

	pathsVisible         bool
	completePathsVisible bool

	simTime float64
	ticks   uint64

	// Generation of the last tick that wrote each line and any marker.
	lineGen    []uint64
	markersGen uint64
}

// NewSimulation builds every flight from records. Records whose flight cannot
// be constructed are skipped and reported through Skipped. Marker capacity is
// fixed to the number of accepted flights.
func NewSimulation(cfg Config, records []model.FlightRecord, opts ...Option) (*Simulation, error) {
	if cfg.Segments < 1 {
		return nil, fmt.Errorf("NewSimulation: %w: got %d", ErrInvalidSegments, cfg.Segments)
	}
	if cfg.Durations == nil {
		cfg.Durations = FixedDuration(DefaultFlightDuration)
	}
	if cfg.Profile.Name == "" {
		cfg.Profile = FlightsProfile
	}

	s := &Simulation{
		cfg:          cfg,
		log:          logging.Noop(),
		pathsVisible: true,
		moon:         MoonOrbit,
		sun: SunModel{
			Epoch:      cfg.Epoch,
			Distance:   5,
			Projection: cfg.Profile.Projection,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	paths, err := NewPathCache(cfg.Profile.Projection, cfg.Profile.PathRadius(), cfg.PathCacheSize)
	if err != nil {
		return nil, fmt.Errorf("NewSimulation: %w", err)
	}

	s.flights = make([]*Flight, 0, len(records))
	for _, rec := range records {
		path, err := paths.Get(rec.Origin, rec.Destination, cfg.Segments)
		if err != nil {
			s.skipped = append(s.skipped, fmt.Errorf("flight %q: %w", rec.ID, err))
			continue
		}
		f, err := NewFlight(len(s.flights), rec, cfg.Durations.Duration(rec.Origin, rec.Destination), path)
		if err != nil {
			s.skipped = append(s.skipped, err)
			continue
		}
		s.flights = append(s.flights, f)
	}
	for _, err := range s.skipped {
		s.log.Warn(context.Background(), "flight skipped", logging.Err(err))
	}

	s.occupancy = NewOccupancy(cfg.KeyMode, cfg.SnapToleranceDeg)
	s.occupancy.Register(s.flights)
	s.markers = NewMarkerSet(len(s.flights), cfg.Profile.MarkerRadius)
	s.lineGen = make([]uint64, len(s.flights))

	airports := s.occupancy.Airports()
	positions := make([]Vec3, len(airports))
	for i, a := range airports {
		positions[i] = cfg.Profile.Projection.Project(a.Location.Lat, a.Location.Lon, 1)
	}
	s.airports = NewStaticMarkers(positions, cfg.Profile.AirportRadius)

	s.log.Info(context.Background(), "simulation built",
		logging.String("profile", cfg.Profile.Name),
		logging.Int("flights", len(s.flights)),
		logging.Int("skipped", len(s.skipped)),
		logging.Int("airports", len(airports)),
		logging.Int("routes", paths.Len()),
		logging.String("occupancy_keys", cfg.KeyMode.String()),
	)
	return s, nil
}

// Tick advances every flight to simTime: path drawing, marker pose, and
// occupancy on latch edges.
func (s *Simulation) Tick(ctx context.Context, simTime float64) TickStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	stats := TickStats{SimTime: simTime}
	prof := s.cfg.Profile
	gen := s.ticks + 1
	markerWrites := s.markers.Writes()

	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "simulation.tick", trace.WithAttributes(
			attribute.Float64("sim.time", simTime),
			attribute.Int("sim.flights", len(s.flights)),
		))
		defer func() {
			span.SetAttributes(
				attribute.Int("sim.in_flight", stats.InFlight),
				attribute.Int("sim.segments_committed", stats.SegmentsCommitted),
				attribute.Int("sim.departures", stats.Departures),
				attribute.Int("sim.arrivals", stats.Arrivals),
				attribute.Int("sim.underflows", stats.Underflows),
			)
			span.End()
		}()
	}

	for _, f := range s.flights {
		appended, err := f.Update(simTime)
		if err != nil {
			s.log.Error(ctx, "path update failed", logging.String("flight", f.Record.ID), logging.Err(err))
		}
		stats.SegmentsCommitted += appended
		if appended > 0 {
			s.lineGen[f.Index] = gen
		}

		ev := s.markers.Track(f, simTime, prof)
		if ev.Departed {
			stats.Departures++
		}
		if ev.Arrived {
			stats.Arrivals++
		}
		if ev.Any() {
			if err := s.occupancy.Apply(f, ev); err != nil {
				if errors.Is(err, ErrOccupancyUnderflow) {
					stats.Underflows++
					if s.metrics != nil {
						s.metrics.IncOccupancyUnderflow()
					}
				}
				s.log.Warn(ctx, "occupancy inconsistency",
					logging.String("flight", f.Record.ID),
					logging.Err(err),
				)
			}
		}

		switch f.State(simTime) {
		case FlightPending:
			stats.Pending++
		case FlightInFlight:
			stats.InFlight++
		default:
			stats.Completed++
		}
	}

	if s.markers.Writes() != markerWrites {
		s.markersGen = gen
	}
	s.simTime = simTime
	s.ticks = gen
	if s.metrics != nil {
		s.metrics.ObserveTick(time.Since(start), stats)
	}
	return stats
}

// PickLayer names the kind of object a pick hit.
type PickLayer string

const (
	PickLayerFlight  PickLayer = "flight"
	PickLayerAirport PickLayer = "airport"
)

// FlightDetail is the tooltip payload for a picked flight.
type FlightDetail struct {
	PlaneName         string         `json:"plane_name" msgpack:"plane_name"`
	PlaneModel        string         `json:"plane_model" msgpack:"plane_model"`
	OriginIATA        string         `json:"origin_iata" msgpack:"origin_iata"`
	Origin            model.GeoPoint `json:"origin" msgpack:"origin"`
	OriginRegion      string         `json:"origin_region" msgpack:"origin_region"`
	DestinationIATA   string         `json:"destination_iata" msgpack:"destination_iata"`
	Destination       model.GeoPoint `json:"destination" msgpack:"destination"`
	DestinationRegion string         `json:"destination_region" msgpack:"destination_region"`
	Departure         string         `json:"departure" msgpack:"departure"`
	DurationMinutes   int            `json:"duration_minutes" msgpack:"duration_minutes"`
	State             string         `json:"state" msgpack:"state"`
}

// PickResult is what a tooltip renderer consumes. TrajectoryIndex is the
// marker slot for flights and the airport ordinal for airports.
type PickResult struct {
	Layer           PickLayer     `json:"layer" msgpack:"layer"`
	TrajectoryIndex int           `json:"trajectory_index" msgpack:"trajectory_index"`
	WorldPoint      Vec3          `json:"world_point" msgpack:"world_point"`
	Distance        float64       `json:"distance" msgpack:"distance"`
	Flight          *FlightDetail `json:"flight,omitempty" msgpack:"flight,omitempty"`
	Airport         *AirportCount `json:"airport,omitempty" msgpack:"airport,omitempty"`
}

// Pick resolves a world-space ray to the nearest flight marker, falling back
// to airport markers when no flight is hit. Hidden layers are not pickable.
func (s *Simulation) Pick(ctx context.Context, ray Ray) (PickResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markers.Visible() {
		if hit, ok := s.cfg.Picker.Pick(ray, s.markers); ok {
			f := s.flights[hit.Index]
			s.observePick(PickLayerFlight, true)
			return PickResult{
				Layer:           PickLayerFlight,
				TrajectoryIndex: hit.Index,
				WorldPoint:      hit.Point,
				Distance:        hit.Distance,
				Flight:          s.flightDetail(f),
			}, true
		}
	}
	if s.airports.Visible() {
		if hit, ok := s.cfg.Picker.Pick(ray, s.airports); ok {
			airport := s.occupancy.Airports()[hit.Index]
			s.observePick(PickLayerAirport, true)
			return PickResult{
				Layer:           PickLayerAirport,
				TrajectoryIndex: hit.Index,
				WorldPoint:      hit.Point,
				Distance:        hit.Distance,
				Airport:         &airport,
			}, true
		}
	}

	s.observePick("", false)
	s.log.Debug(ctx, "pick missed")
	return PickResult{}, false
}

func (s *Simulation) observePick(layer PickLayer, hit bool) {
	if s.metrics != nil {
		s.metrics.ObservePick(string(layer), hit)
	}
}

func (s *Simulation) flightDetail(f *Flight) *FlightDetail {
	rec := f.Record
	return &FlightDetail{
		PlaneName:         model.OrUnknown(rec.PlaneName),
		PlaneModel:        model.OrUnknown(rec.PlaneModel),
		OriginIATA:        model.OrUnknown(rec.OriginIATA),
		Origin:            rec.Origin,
		OriginRegion:      model.ClassifyRegion(rec.Origin),
		DestinationIATA:   model.OrUnknown(rec.DestinationIATA),
		Destination:       rec.Destination,
		DestinationRegion: model.ClassifyRegion(rec.Destination),
		Departure:         model.OrUnknown(rec.DepartureTime),
		DurationMinutes:   int(math.Round(f.Duration / 60)),
		State:             f.State(s.simTime).String(),
	}
}

// SetMarkersVisible toggles flight markers. Simulation state is unaffected.
func (s *Simulation) SetMarkersVisible(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers.SetVisible(v)
}

// SetAirportsVisible toggles airport markers.
func (s *Simulation) SetAirportsVisible(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.airports.SetVisible(v)
}

// SetPathsVisible toggles every progressively drawn path.
func (s *Simulation) SetPathsVisible(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pathsVisible = v
	for _, f := range s.flights {
		f.line.SetVisible(v)
	}
}

// SetCompletePathsVisible toggles the full-route polylines.
func (s *Simulation) SetCompletePathsVisible(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completePathsVisible = v
}

// Visibility reports the render toggles.
type Visibility struct {
	Markers       bool `json:"markers" msgpack:"markers"`
	Airports      bool `json:"airports" msgpack:"airports"`
	Paths         bool `json:"paths" msgpack:"paths"`
	CompletePaths bool `json:"complete_paths" msgpack:"complete_paths"`
}

// Visibility returns the current render toggles.
func (s *Simulation) Visibility() Visibility {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibilityLocked()
}

func (s *Simulation) visibilityLocked() Visibility {
	return Visibility{
		Markers:       s.markers.Visible(),
		Airports:      s.airports.Visible(),
		Paths:         s.pathsVisible,
		CompletePaths: s.completePathsVisible,
	}
}

// Len returns the number of flights.
func (s *Simulation) Len() int { return len(s.flights) }

// Flight returns the flight in marker slot i. The returned flight must only
// be read while no tick is running.
func (s *Simulation) Flight(i int) *Flight {
	if i < 0 || i >= len(s.flights) {
		return nil
	}
	return s.flights[i]
}

// Skipped returns the errors of records that did not become flights.
func (s *Simulation) Skipped() []error { return s.skipped }

// Airports returns a copy of the occupancy counters.
func (s *Simulation) Airports() []AirportCount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.occupancy.Airports()
}

// Span returns the earliest departure and latest arrival over all flights.
func (s *Simulation) Span() (first, last float64) {
	if len(s.flights) == 0 {
		return 0, 0
	}
	first, last = math.Inf(1), math.Inf(-1)
	for _, f := range s.flights {
		first = math.Min(first, f.StartTime)
		last = math.Max(last, f.EndTime())
	}
	return first, last
}

// Profile returns the session profile.
func (s *Simulation) Profile() Profile { return s.cfg.Profile }

// SimTime returns the simulated time of the last tick.
func (s *Simulation) SimTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simTime
}

// FlightDetail returns the tooltip payload for the flight in marker slot i.
func (s *Simulation) FlightDetail(i int) (*FlightDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.flights) {
		return nil, false
	}
	return s.flightDetail(s.flights[i]), true
}
