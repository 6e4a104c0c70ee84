// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Command monitored-server runs a demo HTTP server, serving each request as a
// task on an instrumented event loop, and exporting the loop's metrics at
// /metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeycumines/go-monitoredloop"
	"github.com/joeycumines/go-monitoredloop/internal/config"
	"github.com/joeycumines/go-monitoredloop/internal/server"
	"github.com/joeycumines/go-monitoredloop/sinks"
	"github.com/joeycumines/go-monitoredloop/sinks/logsink"
	"github.com/joeycumines/go-monitoredloop/sinks/promsink"
	"github.com/joeycumines/go-monitoredloop/sinks/statsink"
	"github.com/joeycumines/logiface"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const (
	flagAddr          = `addr`
	flagMonitorType   = `monitor-type`
	flagSlowCallback  = `slow-callback`
	flagLagThreshold  = `lag-threshold`
	flagStatsInterval = `stats-interval`
	flagShutdown      = `shutdown-timeout`

	monitorTypeMonitored = `monitored`
	monitorTypePlain     = `plain`
)

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   `monitored-server`,
		Short: `Demo HTTP server running on an instrumented event loop`,
		Long: `monitored-server serves each request as a task on an instrumented event loop.

Endpoints:
  /ping                                           responds immediately
  /async_slow?sleep_for=S&coroutines_number=N     sleeps cooperatively, in N concurrent tasks
  /blocking_slow?sleep_for=S                      blocks the loop for S seconds
  /metrics                                        Prometheus metrics

With --monitor-type=plain, the sinks are disabled: callbacks are still
wrapped and counted, but samples are discarded and no loop metrics are
exported, isolating the cost of the sinks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.Load(cmd, `MONITORED_SERVER`)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, v)
		},
	}
	config.AddFlags(cmd)
	cmd.Flags().String(flagAddr, `:1441`, `address to listen on`)
	cmd.Flags().String(flagMonitorType, monitorTypeMonitored, `one of: monitored, plain`)
	cmd.Flags().Duration(flagSlowCallback, logsink.DefaultWallTimeThreshold, `log callbacks blocking the loop for longer than this (0 disables)`)
	cmd.Flags().Duration(flagLagThreshold, 0, `log callbacks starting later than this (0 disables)`)
	cmd.Flags().Duration(flagStatsInterval, 10*time.Second, `interval to log loop statistics (0 disables)`)
	cmd.Flags().Duration(flagShutdown, 10*time.Second, `graceful shutdown timeout`)
	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	logger, err := config.Logger(v, os.Stderr)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sink, stats, err := newSink(v, reg, logger)
	if err != nil {
		return err
	}

	loop, err := monitoredloop.New(sink, monitoredloop.WithLogger(logger))
	if err != nil {
		return fmt.Errorf(`create loop: %w`, err)
	}

	listener, err := net.Listen(`tcp`, v.GetString(flagAddr))
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           server.New(loop, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logger),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info().
		Str(`addr`, listener.Addr().String()).
		Str(`monitor_type`, v.GetString(flagMonitorType)).
		Log(`server listening`)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := loop.Run(context.WithoutCancel(gctx)); err != nil {
			return fmt.Errorf(`loop: %w`, err)
		}
		return nil
	})

	g.Go(func() error {
		if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf(`serve: %w`, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), v.GetDuration(flagShutdown))
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if err2 := loop.Shutdown(shutdownCtx); err == nil {
			err = err2
		}
		return err
	})

	if interval := v.GetDuration(flagStatsInterval); stats != nil && interval > 0 {
		g.Go(func() error {
			logStats(gctx, logger, loop, stats, interval)
			return nil
		})
	}

	err = g.Wait()
	logger.Info().Log(`server stopped`)
	return err
}

// newSink builds the sink for the configured monitor type, registering
// metrics with reg. The plain monitor type disables sinks, returning nil.
func newSink(v *viper.Viper, reg prometheus.Registerer, logger *logiface.Logger[logiface.Event]) (monitoredloop.Sink, *statsink.Sink, error) {
	switch monitorType := v.GetString(flagMonitorType); monitorType {
	case monitorTypeMonitored:
		prom, err := promsink.New(reg)
		if err != nil {
			return nil, nil, fmt.Errorf(`register metrics: %w`, err)
		}
		stats := statsink.New()
		logs := logsink.New(logger,
			logsink.WithWallTimeThreshold(v.GetDuration(flagSlowCallback)),
			logsink.WithLoopLagThreshold(v.GetDuration(flagLagThreshold)),
		)
		return sinks.Multi(prom.Observe, stats.Observe, logs.Observe), stats, nil
	case monitorTypePlain:
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf(`invalid %s: %q`, flagMonitorType, monitorType)
	}
}

func logStats(ctx context.Context, logger *logiface.Logger[logiface.Event], loop *monitoredloop.Loop, stats *statsink.Sink, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		snapshot := stats.Reset()
		if snapshot.WallTime.Count == 0 {
			continue
		}
		logger.Info().
			Int(`callbacks`, snapshot.WallTime.Count).
			Int(`pending`, loop.Pending()).
			Int(`max_loop_handles_count`, snapshot.MaxLoopHandlesCount).
			Stringer(`wall_time`, snapshot.WallTime).
			Stringer(`loop_lag`, snapshot.LoopLag).
			Str(`slowest`, snapshot.Slowest).
			Log(`loop statistics`)
	}
}
