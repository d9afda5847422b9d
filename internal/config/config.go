// Package config resolves runtime settings for the globe simulator. Layers
// apply in order: built-in defaults, an optional YAML file named by
// GLOBESIM_CONFIG, GLOBESIM_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/globe-simulator/core"
	"github.com/signalsfoundry/globe-simulator/internal/observability"
	"github.com/signalsfoundry/globe-simulator/timectrl"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds every setting the CLI needs to build and drive a simulation.
type Config struct {
	Input    string `yaml:"input"`
	Profile  string `yaml:"profile"`
	Segments int    `yaml:"segments"`
	Duration string `yaml:"duration"`
	// LatTiltDeg overrides the profile's latitude tilt. NaN keeps it.
	LatTiltDeg float64 `yaml:"lat_tilt_deg"`

	KeyMode          string  `yaml:"key_mode"`
	SnapToleranceDeg float64 `yaml:"snap_tolerance_deg"`

	Acceleration float64       `yaml:"acceleration"`
	Frame        time.Duration `yaml:"frame"`
	// Start and End bound the simulated window in seconds. NaN means
	// "derive from the loaded flights".
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`

	HTTPAddr     string   `yaml:"http_addr"`
	CORSOrigins  []string `yaml:"cors_origins"`
	PickRate     float64  `yaml:"pick_rate"`
	PickBurst    int      `yaml:"pick_burst"`
	FrameFormat  string   `yaml:"frame_format"`
	CompletePath bool     `yaml:"complete_paths"`

	// Snapshot, when set, is where a headless run saves its final frame.
	Snapshot string `yaml:"snapshot"`

	Tracing observability.TracingConfig `yaml:"tracing"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Input:            "configs/flights.csv",
		Profile:          core.FlightsProfile.Name,
		Segments:         core.DefaultSegments,
		Duration:         "fixed",
		LatTiltDeg:       math.NaN(),
		KeyMode:          core.KeyExact.String(),
		SnapToleranceDeg: core.DefaultSnapToleranceDeg,
		Acceleration:     timectrl.DefaultAcceleration,
		Frame:            time.Second / 60,
		Start:            math.NaN(),
		End:              math.NaN(),
		HTTPAddr:         ":8080",
		CORSOrigins:      []string{"*"},
		PickRate:         30,
		PickBurst:        10,
		FrameFormat:      "json",
		Tracing: observability.TracingConfig{
			ServiceName: "globesim",
			Exporter:    "stdout",
			SampleRatio: 1,
		},
	}
}

// FromEnv overlays GLOBESIM_* environment variables on the defaults.
// Unparseable values are reported rather than silently ignored.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error

	if path, ok := lookup("GLOBESIM_CONFIG"); ok && path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	str("GLOBESIM_INPUT", &cfg.Input)
	str("GLOBESIM_PROFILE", &cfg.Profile)
	integer("GLOBESIM_SEGMENTS", &cfg.Segments)
	str("GLOBESIM_DURATION", &cfg.Duration)
	str("GLOBESIM_KEY_MODE", &cfg.KeyMode)
	float("GLOBESIM_SNAP_TOLERANCE_DEG", &cfg.SnapToleranceDeg)
	float("GLOBESIM_ACCELERATION", &cfg.Acceleration)
	float("GLOBESIM_START", &cfg.Start)
	float("GLOBESIM_END", &cfg.End)
	str("GLOBESIM_HTTP_ADDR", &cfg.HTTPAddr)
	float("GLOBESIM_PICK_RATE", &cfg.PickRate)
	integer("GLOBESIM_PICK_BURST", &cfg.PickBurst)
	str("GLOBESIM_FRAME_FORMAT", &cfg.FrameFormat)
	str("GLOBESIM_SNAPSHOT", &cfg.Snapshot)
	float("GLOBESIM_LAT_TILT_DEG", &cfg.LatTiltDeg)
	boolean("GLOBESIM_TRACING_ENABLED", &cfg.Tracing.Enabled)
	str("GLOBESIM_TRACING_SERVICE_NAME", &cfg.Tracing.ServiceName)
	str("GLOBESIM_TRACING_EXPORTER", &cfg.Tracing.Exporter)
	str("GLOBESIM_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)
	float("GLOBESIM_TRACING_SAMPLE_RATIO", &cfg.Tracing.SampleRatio)

	if v, ok := lookup("GLOBESIM_FRAME"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("GLOBESIM_FRAME: %w", err))
		} else {
			cfg.Frame = d
		}
	}
	if v, ok := lookup("GLOBESIM_CORS_ORIGINS"); ok && v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	boolean("GLOBESIM_COMPLETE_PATHS", &cfg.CompletePath)

	if err := errors.Join(errs...); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// LoadFile overlays the YAML document at path on cfg. Keys that are absent
// keep their current values; unknown keys are an error.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return nil
}

// BindFlags registers flags that override cfg. Defaults shown in help are the
// values already resolved from the environment.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Input, "input", "i", c.Input, "flight data file (.csv or .json)")
	fs.StringVar(&c.Profile, "profile", c.Profile, "visual profile: flights or packets")
	fs.IntVar(&c.Segments, "segments", c.Segments, "path segments per flight")
	fs.StringVar(&c.Duration, "duration", c.Duration, `flight duration policy: "fixed", "fixed:<seconds>" or "distance"`)
	fs.StringVar(&c.KeyMode, "key-mode", c.KeyMode, "airport key mode: exact or snapped")
	fs.Float64Var(&c.SnapToleranceDeg, "snap-tolerance", c.SnapToleranceDeg, "snapped key tolerance in degrees")
	fs.Float64Var(&c.Acceleration, "acceleration", c.Acceleration, "simulated seconds per wall second")
	fs.DurationVar(&c.Frame, "frame", c.Frame, "frame interval")
	fs.Float64Var(&c.Start, "start", c.Start, "simulated start time in seconds (NaN: first departure)")
	fs.Float64Var(&c.End, "end", c.End, "simulated end time in seconds (NaN: last arrival)")
	fs.StringVar(&c.HTTPAddr, "http-addr", c.HTTPAddr, "HTTP listen address")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origins", c.CORSOrigins, "allowed CORS origins")
	fs.Float64Var(&c.PickRate, "pick-rate", c.PickRate, "pick requests per second")
	fs.IntVar(&c.PickBurst, "pick-burst", c.PickBurst, "pick request burst")
	fs.StringVar(&c.FrameFormat, "frame-format", c.FrameFormat, "default frame encoding: json or msgpack")
	fs.BoolVar(&c.CompletePath, "complete-paths", c.CompletePath, "show full trajectories from the start")
	fs.StringVar(&c.Snapshot, "snapshot", c.Snapshot, "write the final frame of a headless run to this file")
	fs.Float64Var(&c.LatTiltDeg, "lat-tilt", c.LatTiltDeg, "latitude tilt in degrees (NaN: profile default)")
	fs.BoolVar(&c.Tracing.Enabled, "tracing", c.Tracing.Enabled, "export OpenTelemetry spans")
	fs.StringVar(&c.Tracing.Exporter, "tracing-exporter", c.Tracing.Exporter, "span exporter: stdout or otlp")
	fs.StringVar(&c.Tracing.Endpoint, "tracing-endpoint", c.Tracing.Endpoint, "OTLP gRPC collector address")
	fs.Float64Var(&c.Tracing.SampleRatio, "tracing-sample-ratio", c.Tracing.SampleRatio, "fraction of root spans sampled")
}

// Validate checks every field and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	if c.Input == "" {
		errs = append(errs, errors.New("input path is required"))
	} else if ext := strings.ToLower(filepath.Ext(c.Input)); ext != ".csv" && ext != ".json" {
		errs = append(errs, fmt.Errorf("input %q: unsupported extension %q", c.Input, ext))
	}
	if _, err := core.ProfileByName(c.Profile); err != nil {
		errs = append(errs, err)
	}
	if c.Segments < 1 {
		errs = append(errs, fmt.Errorf("segments must be >= 1, got %d", c.Segments))
	}
	if _, err := core.ParseDurationPolicy(c.Duration); err != nil {
		errs = append(errs, err)
	}
	if _, err := core.ParseOccupancyKeyMode(c.KeyMode); err != nil {
		errs = append(errs, err)
	}
	if !(c.SnapToleranceDeg > 0) {
		errs = append(errs, fmt.Errorf("snap tolerance must be > 0, got %v", c.SnapToleranceDeg))
	}
	if !(c.Acceleration > 0) || math.IsInf(c.Acceleration, 0) {
		errs = append(errs, fmt.Errorf("%w: got %v", timectrl.ErrInvalidAcceleration, c.Acceleration))
	}
	if c.Frame <= 0 {
		errs = append(errs, fmt.Errorf("frame interval must be > 0, got %s", c.Frame))
	}
	if !math.IsNaN(c.Start) && !math.IsNaN(c.End) && c.End < c.Start {
		errs = append(errs, fmt.Errorf("end %v is before start %v", c.End, c.Start))
	}
	if !(c.PickRate > 0) || c.PickBurst < 1 {
		errs = append(errs, fmt.Errorf("pick rate/burst must be positive, got %v/%d", c.PickRate, c.PickBurst))
	}
	switch c.FrameFormat {
	case "json", "msgpack":
	default:
		errs = append(errs, fmt.Errorf("frame format must be json or msgpack, got %q", c.FrameFormat))
	}
	if math.IsInf(c.LatTiltDeg, 0) || math.Abs(c.LatTiltDeg) > 90 {
		errs = append(errs, fmt.Errorf("lat tilt must be within [-90, 90], got %v", c.LatTiltDeg))
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// SimulationConfig converts c into an engine configuration. Call Validate
// first.
func (c Config) SimulationConfig() (core.Config, error) {
	cfg := core.DefaultConfig()

	prof, err := core.ProfileByName(c.Profile)
	if err != nil {
		return cfg, err
	}
	durations, err := core.ParseDurationPolicy(c.Duration)
	if err != nil {
		return cfg, err
	}
	mode, err := core.ParseOccupancyKeyMode(c.KeyMode)
	if err != nil {
		return cfg, err
	}

	if !math.IsNaN(c.LatTiltDeg) {
		prof.Projection.LatTiltDeg = c.LatTiltDeg
	}
	cfg.Profile = prof
	cfg.Segments = c.Segments
	cfg.Durations = durations
	cfg.KeyMode = mode
	cfg.SnapToleranceDeg = c.SnapToleranceDeg
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
