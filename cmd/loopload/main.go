// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Command loopload generates HTTP load against monitored-server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeycumines/go-monitoredloop/internal/config"
	"github.com/joeycumines/go-monitoredloop/internal/load"
	"github.com/spf13/cobra"
)

const (
	flagTarget      = `target`
	flagPaths       = `paths`
	flagRequests    = `requests`
	flagConcurrency = `concurrency`
	flagRate        = `rate`
	flagTimeout     = `timeout`
)

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           `loopload`,
		Short:         `Generate HTTP load against monitored-server`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.Load(cmd, `LOOPLOAD`)
			if err != nil {
				return err
			}
			logger, err := config.Logger(v, os.Stderr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := load.Run(ctx, load.Config{
				Logger:      logger,
				Target:      v.GetString(flagTarget),
				Paths:       v.GetStringSlice(flagPaths),
				Requests:    v.GetInt(flagRequests),
				Concurrency: v.GetInt(flagConcurrency),
				Rate:        v.GetFloat64(flagRate),
				Timeout:     v.GetDuration(flagTimeout),
			})
			if result != nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), result)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	config.AddFlags(cmd)
	cmd.Flags().String(flagTarget, `http://localhost:1441`, `base URL of the server`)
	cmd.Flags().StringSlice(flagPaths, load.DefaultPaths, `paths to request, chosen uniformly`)
	cmd.Flags().Int(flagRequests, 100, `total number of requests`)
	cmd.Flags().Int(flagConcurrency, 20, `maximum in-flight requests`)
	cmd.Flags().Float64(flagRate, 0, `maximum requests per second (0 is unlimited)`)
	cmd.Flags().Duration(flagTimeout, 30*time.Second, `per-request timeout`)
	return cmd
}
