package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/globe-simulator/core"
	"github.com/signalsfoundry/globe-simulator/internal/config"
	"github.com/signalsfoundry/globe-simulator/internal/logging"
	"github.com/signalsfoundry/globe-simulator/internal/observability"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "globesim",
	Short: "Animate scheduled flights over a globe",
	Long: `globesim loads scheduled flights, advances them on an accelerated clock and
serves progressive paths, marker transforms and pick results to a renderer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cfg.Validate()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sweep the whole schedule headlessly and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, log := cmd.Context(), logging.NewFromEnv()
		shutdown, err := observability.InitTracing(ctx, cfg.Tracing, log)
		if err != nil {
			return err
		}
		defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)
		_, err = runHeadless(ctx, cfg, log, cmd.OutOrStdout())
		return err
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulation in real time behind the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), cfg, logging.NewFromEnv())
	},
}

func init() {
	var err error
	cfg, err = config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg.BindFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(runCmd, serveCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadScenario reads flights from path, choosing the decoder by extension.
// Rejected rows are logged and dropped.
func loadScenario(ctx context.Context, path string, log logging.Logger) (_ *core.FlightScenario, err error) {
	ctx, span := observability.Tracer("globesim").Start(ctx, "scenario.load")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load scenario")
		}
		span.End()
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open flights %q: %w", path, err)
	}
	defer f.Close()

	var scenario *core.FlightScenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		scenario, err = core.LoadFlightsJSON(f)
	default:
		scenario, err = core.LoadFlightsCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("load flights %q: %w", path, err)
	}

	for _, rej := range scenario.Rejected {
		log.Warn(ctx, "flight row rejected",
			logging.Int("row", rej.Row),
			logging.String("field", rej.Field),
			logging.Err(rej.Err),
		)
	}
	span.SetAttributes(observability.ScenarioAttributes(path, len(scenario.Records), len(scenario.Rejected))...)
	log.Info(ctx, "loaded flights",
		logging.String("path", path),
		logging.Int("accepted", len(scenario.Records)),
		logging.Int("rejected", len(scenario.Rejected)),
	)
	return scenario, nil
}

// buildSimulation loads the scenario and constructs the engine.
func buildSimulation(ctx context.Context, c config.Config, log logging.Logger, opts ...core.Option) (*core.Simulation, *core.FlightScenario, error) {
	scenario, err := loadScenario(ctx, c.Input, log)
	if err != nil {
		return nil, nil, err
	}
	simCfg, err := c.SimulationConfig()
	if err != nil {
		return nil, nil, err
	}
	opts = append([]core.Option{core.WithLogger(log), core.WithTracer(observability.Tracer("core"))}, opts...)
	sim, err := core.NewSimulation(simCfg, scenario.Records, opts...)
	if err != nil {
		return nil, nil, err
	}
	sim.SetCompletePathsVisible(c.CompletePath)
	return sim, scenario, nil
}
