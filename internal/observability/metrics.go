package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/globe-simulator/core"
)

// SimCollector bundles Prometheus metrics for the simulation engine and its
// HTTP surface. It implements core.MetricsRecorder.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Ticks         prometheus.Counter
	TickDurations prometheus.Histogram
	Flights       *prometheus.GaugeVec
	SimTime       prometheus.Gauge
	Segments      prometheus.Counter
	Departures    prometheus.Counter
	Arrivals      prometheus.Counter
	Underflows    prometheus.Counter
	Picks         *prometheus.CounterVec

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

var _ core.MetricsRecorder = (*SimCollector)(nil)

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &SimCollector{gatherer: gatherer}
	var err error

	if c.Ticks, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globesim_ticks_total",
		Help: "Number of simulation ticks processed.",
	}), "globesim_ticks_total"); err != nil {
		return nil, err
	}
	if c.TickDurations, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "globesim_tick_duration_seconds",
		Help:    "Wall time spent processing one simulation tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}), "globesim_tick_duration_seconds"); err != nil {
		return nil, err
	}
	if c.Flights, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "globesim_flights",
		Help: "Flights by lifecycle state as of the last tick.",
	}, []string{"state"}), "globesim_flights"); err != nil {
		return nil, err
	}
	if c.SimTime, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "globesim_sim_time_seconds",
		Help: "Simulated time of the last tick.",
	}), "globesim_sim_time_seconds"); err != nil {
		return nil, err
	}
	if c.Segments, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globesim_path_segments_committed_total",
		Help: "Path segments appended to line buffers.",
	}), "globesim_path_segments_committed_total"); err != nil {
		return nil, err
	}
	if c.Departures, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globesim_departures_total",
		Help: "Departure events applied to airport occupancy.",
	}), "globesim_departures_total"); err != nil {
		return nil, err
	}
	if c.Arrivals, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globesim_arrivals_total",
		Help: "Arrival events applied to airport occupancy.",
	}), "globesim_arrivals_total"); err != nil {
		return nil, err
	}
	if c.Underflows, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "globesim_occupancy_underflows_total",
		Help: "Departures that drove an airport count below zero.",
	}), "globesim_occupancy_underflows_total"); err != nil {
		return nil, err
	}
	if c.Picks, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globesim_picks_total",
		Help: "Pick queries, labeled by the layer hit and outcome.",
	}, []string{"layer", "outcome"}), "globesim_picks_total"); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "globesim_http_requests_total",
		Help: "Handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"}), "globesim_http_requests_total"); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "globesim_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route", "method"}), "globesim_http_request_duration_seconds"); err != nil {
		return nil, err
	}
	return c, nil
}

// ObserveTick records one tick's duration and outcome.
func (c *SimCollector) ObserveTick(elapsed time.Duration, stats core.TickStats) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.TickDurations.Observe(elapsed.Seconds())
	c.SimTime.Set(stats.SimTime)
	c.Flights.WithLabelValues(core.FlightPending.String()).Set(float64(stats.Pending))
	c.Flights.WithLabelValues(core.FlightInFlight.String()).Set(float64(stats.InFlight))
	c.Flights.WithLabelValues(core.FlightCompleted.String()).Set(float64(stats.Completed))
	c.Segments.Add(float64(stats.SegmentsCommitted))
	c.Departures.Add(float64(stats.Departures))
	c.Arrivals.Add(float64(stats.Arrivals))
}

// ObservePick counts a pick query. An empty layer on a miss is reported as
// "none".
func (c *SimCollector) ObservePick(layer string, hit bool) {
	if c == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	if layer == "" {
		layer = "none"
	}
	c.Picks.WithLabelValues(layer, outcome).Inc()
}

// IncOccupancyUnderflow counts one occupancy underflow.
func (c *SimCollector) IncOccupancyUnderflow() {
	if c == nil {
		return
	}
	c.Underflows.Inc()
}

// Middleware records request counts and durations, labeled by the matched
// chi route pattern.
func (c *SimCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if c == nil {
			return
		}
		route := RoutePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		c.HTTPDurations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// RoutePattern returns the chi route pattern that matched r, or "unknown"
// outside a chi router.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
