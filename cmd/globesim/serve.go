package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/globe-simulator/core"
	"github.com/signalsfoundry/globe-simulator/internal/config"
	"github.com/signalsfoundry/globe-simulator/internal/logging"
	"github.com/signalsfoundry/globe-simulator/internal/observability"
	"github.com/signalsfoundry/globe-simulator/internal/viewer"
	"github.com/signalsfoundry/globe-simulator/timectrl"
)

// serve runs the real-time frame loop and the HTTP API until interrupted.
func serve(ctx context.Context, c config.Config, log logging.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, c.Tracing, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		return err
	}

	sim, _, err := buildSimulation(ctx, c, log, core.WithMetrics(collector))
	if err != nil {
		return err
	}

	start, end := window(c, sim)
	tc, err := timectrl.NewTimeController(start, c.Frame, timectrl.RealTime, c.Acceleration)
	if err != nil {
		return err
	}
	api := viewer.NewServer(sim, tc, log, collector, viewer.Options{
		CORSOrigins: c.CORSOrigins,
		PickRate:    c.PickRate,
		PickBurst:   c.PickBurst,
		FrameFormat: c.FrameFormat,
	})

	sim.Tick(ctx, start)
	tc.AddListener(func(simTime float64) {
		sim.Tick(ctx, simTime)
		api.Publish(ctx)
	})
	srv := &http.Server{
		Addr:              c.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		// Ticking stops after the last arrival; the API keeps serving the
		// final state until shutdown.
		<-tc.Start(ctx, end)
		log.Info(ctx, "simulation window finished", logging.Float64("sim_time", tc.Now()))
		return nil
	})
	eg.Go(func() error {
		log.Info(ctx, "serving globe API", logging.String("addr", c.HTTPAddr))
		if err := srv.ListenAndServe(); !viewer.IsClosed(err) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info(shutdownCtx, "shutting down globe API")
		api.CloseStreams()
		return srv.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
