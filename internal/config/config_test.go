package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/signalsfoundry/globe-simulator/core"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestFromEnvOverlaysDefaults(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"GLOBESIM_INPUT":        "data/packets.json",
		"GLOBESIM_PROFILE":      "packets",
		"GLOBESIM_SEGMENTS":     "20",
		"GLOBESIM_KEY_MODE":     "snapped",
		"GLOBESIM_FRAME":        "50ms",
		"GLOBESIM_CORS_ORIGINS": "http://a.test, http://b.test",
		"GLOBESIM_END":          "86400",
	}))
	if err != nil {
		t.Fatalf("fromLookup: %v", err)
	}
	if cfg.Input != "data/packets.json" || cfg.Profile != "packets" || cfg.Segments != 20 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Frame != 50*time.Millisecond {
		t.Fatalf("Frame = %s, want 50ms", cfg.Frame)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.End != 86400 || !math.IsNaN(cfg.Start) {
		t.Fatalf("Start/End = %v/%v", cfg.Start, cfg.End)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFromEnvReportsBadNumbers(t *testing.T) {
	_, err := fromLookup(lookupFrom(map[string]string{
		"GLOBESIM_SEGMENTS":     "many",
		"GLOBESIM_ACCELERATION": "fast",
	}))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{"GLOBESIM_SEGMENTS": "20"}))
	if err != nil {
		t.Fatalf("fromLookup: %v", err)
	}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse([]string{"--segments", "8", "--duration", "distance"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Segments != 8 || cfg.Duration != "distance" {
		t.Fatalf("flags not applied: segments=%d duration=%s", cfg.Segments, cfg.Duration)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Input = "flights.txt"
	cfg.Profile = "boats"
	cfg.Segments = 0
	cfg.Acceleration = -1
	cfg.Start, cfg.End = 100, 50

	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	if !errors.Is(err, core.ErrUnknownProfile) {
		t.Fatalf("err = %v, want it to include ErrUnknownProfile", err)
	}
}

func TestSimulationConfig(t *testing.T) {
	cfg := Default()
	cfg.Profile = "packets"
	cfg.KeyMode = "snapped"
	cfg.Duration = "fixed:600"
	cfg.Segments = 12

	sc, err := cfg.SimulationConfig()
	if err != nil {
		t.Fatalf("SimulationConfig: %v", err)
	}
	if sc.Profile.Name != core.PacketsProfile.Name || sc.KeyMode != core.KeySnapped || sc.Segments != 12 {
		t.Fatalf("unexpected engine config: %+v", sc)
	}
	if sc.Durations == nil {
		t.Fatal("duration policy not set")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "globesim.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestConfigFileSitsBetweenDefaultsAndEnv(t *testing.T) {
	path := writeYAML(t, `
input: data/night.json
segments: 80
frame: 250ms
key_mode: snapped
cors_origins: [http://globe.test]
snapshot: out/final.frame.zst
`)
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"GLOBESIM_CONFIG":   path,
		"GLOBESIM_SEGMENTS": "30",
	}))
	if err != nil {
		t.Fatalf("fromLookup: %v", err)
	}
	if cfg.Input != "data/night.json" || cfg.KeyMode != "snapped" || cfg.Snapshot != "out/final.frame.zst" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Frame != 250*time.Millisecond {
		t.Fatalf("Frame = %s, want 250ms", cfg.Frame)
	}
	if cfg.Segments != 30 {
		t.Fatalf("Segments = %d, want the env override 30", cfg.Segments)
	}
	if cfg.Profile != "flights" || !math.IsNaN(cfg.Start) {
		t.Fatalf("absent keys lost their defaults: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://globe.test" {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	err := LoadFile(writeYAML(t, "segmnts: 5\n"), &cfg)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}

	if err := LoadFile(writeYAML(t, ""), &cfg); err != nil {
		t.Fatalf("empty file: %v", err)
	}
	if err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("missing file err = %v", err)
	}
}

func TestTracingLayers(t *testing.T) {
	path := writeYAML(t, `
tracing:
  enabled: true
  exporter: otlp
  endpoint: collector:4317
  sample_ratio: 0.25
`)
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"GLOBESIM_CONFIG":               path,
		"GLOBESIM_TRACING_SERVICE_NAME": "globe-night",
	}))
	if err != nil {
		t.Fatalf("fromLookup: %v", err)
	}
	tr := cfg.Tracing
	if !tr.Enabled || tr.Exporter != "otlp" || tr.Endpoint != "collector:4317" || tr.SampleRatio != 0.25 {
		t.Fatalf("file tracing block not applied: %+v", tr)
	}
	if tr.ServiceName != "globe-night" {
		t.Fatalf("ServiceName = %q, want the env override", tr.ServiceName)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	if err := fs.Parse([]string{"--tracing=false", "--tracing-sample-ratio", "2"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Tracing.Enabled {
		t.Fatal("--tracing=false not applied")
	}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Validate() = %v, want a sample ratio error", err)
	}
}

func TestLatTiltOverridesProfile(t *testing.T) {
	cfg, err := fromLookup(lookupFrom(map[string]string{
		"GLOBESIM_PROFILE":      "packets",
		"GLOBESIM_LAT_TILT_DEG": "7.5",
	}))
	if err != nil {
		t.Fatalf("fromLookup: %v", err)
	}
	sc, err := cfg.SimulationConfig()
	if err != nil {
		t.Fatalf("SimulationConfig: %v", err)
	}
	if sc.Profile.Projection.LatTiltDeg != 7.5 || sc.Profile.Projection.LonOffsetDeg != -90 {
		t.Fatalf("projection = %+v", sc.Profile.Projection)
	}
	if core.PacketsProfile.Projection.LatTiltDeg != 0 {
		t.Fatal("override leaked into the shared profile")
	}

	def, err := Default().SimulationConfig()
	if err != nil {
		t.Fatalf("SimulationConfig: %v", err)
	}
	if def.Profile.Projection != core.FlightsProjection {
		t.Fatalf("unset tilt changed the projection: %+v", def.Profile.Projection)
	}

	cfg.LatTiltDeg = 120
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Validate() = %v, want a tilt error", err)
	}
}
