package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/mainsync"
	"github.com/dmitrymomot/mainsync/core/config"
	"github.com/dmitrymomot/mainsync/core/event"
	"github.com/dmitrymomot/mainsync/core/health"
	"github.com/dmitrymomot/mainsync/core/logger"
	"github.com/dmitrymomot/mainsync/core/metrics"
	"github.com/dmitrymomot/mainsync/core/synchronizer"
	"github.com/dmitrymomot/mainsync/pkg/async"
)

const benchEvent event.Type = "bench.tick"

var errInvalidBench = errors.New("producers, events and listeners must be positive")

// benchConfig is loaded from the environment and then overridden by flags.
type benchConfig struct {
	Producers   int    `env:"SYNCTICK_PRODUCERS" envDefault:"8"`
	Events      int    `env:"SYNCTICK_EVENTS" envDefault:"10000"`
	Listeners   int    `env:"SYNCTICK_LISTENERS" envDefault:"1"`
	MetricsAddr string `env:"SYNCTICK_METRICS_ADDR"`

	Sync synchronizer.Config
}

type benchResult struct {
	RunID      string        `json:"run_id"`
	Producers  int           `json:"producers"`
	Events     int           `json:"events_per_producer"`
	Listeners  int           `json:"listeners"`
	Dispatched uint64        `json:"dispatched"`
	Delivered  uint64        `json:"delivered"`
	Drains     uint64        `json:"drains"`
	Ticks      uint64        `json:"ticks"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

func newBenchCmd(root *rootFlags) *cobra.Command {
	var (
		cfg     benchConfig
		jsonOut bool
	)
	if err := config.Load(&cfg); err != nil {
		cfg = benchConfig{Producers: 8, Events: 10000, Listeners: 1, Sync: synchronizer.DefaultConfig()}
	}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Dispatch producers x events through one dispatcher and report delivery stats",
		Example: "  synctick bench --producers 16 --events 5000\n" +
			"  synctick bench --tick 1ms --json",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := root.logger(cmd)
			if err != nil {
				return err
			}
			res, err := runBench(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), res, jsonOut)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&cfg.Producers, "producers", "p", cfg.Producers, "Number of producer goroutines")
	f.IntVarP(&cfg.Events, "events", "n", cfg.Events, "Events dispatched by each producer")
	f.IntVarP(&cfg.Listeners, "listeners", "l", cfg.Listeners, "Listeners subscribed to the bench event")
	f.DurationVar(&cfg.Sync.TickInterval, "tick", cfg.Sync.TickInterval, "Tick interval of the main loop")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on this address while running")
	f.BoolVar(&jsonOut, "json", false, "Print the result as JSON")

	return cmd
}

// runBench runs the producers as runtime workers and returns once every event has
// reached every listener on the main goroutine.
func runBench(ctx context.Context, cfg benchConfig, log *slog.Logger) (benchResult, error) {
	if cfg.Producers <= 0 || cfg.Events <= 0 || cfg.Listeners <= 0 {
		return benchResult{}, errInvalidBench
	}

	res := benchResult{
		RunID:     uuid.NewString(),
		Producers: cfg.Producers,
		Events:    cfg.Events,
		Listeners: cfg.Listeners,
	}
	log = log.With(slog.String("run_id", res.RunID))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt := mainsync.New(mainsync.WithConfig(cfg.Sync), mainsync.WithLogger(log))
	d := rt.NewDispatcher("bench")

	want := uint64(cfg.Producers) * uint64(cfg.Events) * uint64(cfg.Listeners)
	var delivered atomic.Uint64
	allDelivered := make(chan struct{})

	for range cfg.Listeners {
		err := d.Subscribe(benchEvent, event.NewListener(func(ctx context.Context, e *event.Event) error {
			if delivered.Add(1) == want {
				close(allDelivered)
			}
			return nil
		}))
		if err != nil {
			return res, err
		}
	}

	rt.Go(func(ctx context.Context) error {
		futures := make([]*async.Future, cfg.Producers)
		for p := range cfg.Producers {
			futures[p] = async.Exec(ctx, p, func(ctx context.Context, p int) error {
				for i := range cfg.Events {
					if err := d.Dispatch(event.New(benchEvent, p*cfg.Events+i)); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := async.ExecAll(futures...); err != nil {
			return fmt.Errorf("producer failed: %w", err)
		}
		log.DebugContext(ctx, "producers finished", logger.Count("producers", cfg.Producers))

		select {
		case <-allDelivered:
			cancel()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(rt.Metrics())
		rt.Go(serveMetrics(cfg.MetricsAddr, newMux(rt, reg, log), log))
	}

	start := time.Now()
	if err := rt.Run(ctx); err != nil {
		return res, err
	}
	res.Elapsed = time.Since(start)

	stats := d.Stats()
	res.Dispatched = stats.Dispatched
	res.Delivered = delivered.Load()
	res.Drains = stats.Drains
	res.Ticks = rt.Synchronizer().Stats().Ticks

	if res.Delivered != want {
		return res, fmt.Errorf("bench interrupted: delivered %d of %d", res.Delivered, want)
	}

	log.InfoContext(ctx, "bench finished",
		logger.Count("delivered", int(res.Delivered)),
		logger.Duration(res.Elapsed))
	return res, nil
}

// newMux exposes metrics and probes of rt.
func newMux(rt *mainsync.Runtime, g prometheus.Gatherer, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g))
	mux.Handle("/health/live", health.Liveness())
	mux.Handle("/health/ready", health.Readiness(log, rt.Synchronizer().Healthcheck))
	return mux
}

func serveMetrics(addr string, h http.Handler, log *slog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		srv := &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		log.InfoContext(ctx, "serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}

func printResult(w io.Writer, res benchResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	rate := float64(res.Delivered) / res.Elapsed.Seconds()
	_, err := fmt.Fprintf(w,
		"run %s\n  producers:  %d x %d events, %d listeners\n  dispatched: %d\n  delivered:  %d\n  drains:     %d over %d ticks\n  elapsed:    %s (%.0f deliveries/s)\n",
		res.RunID, res.Producers, res.Events, res.Listeners,
		res.Dispatched, res.Delivered, res.Drains, res.Ticks,
		res.Elapsed.Round(time.Microsecond), rate)
	return err
}
