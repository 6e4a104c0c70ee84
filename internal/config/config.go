// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package config binds command flags, environment variables, and an optional
// config file, for the commands in this module.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag names shared by all commands.
const (
	FlagConfig   = `config`
	FlagLogLevel = `log-level`
)

// AddFlags registers the shared flags on cmd.
func AddFlags(cmd *cobra.Command) {
	cmd.Flags().String(FlagConfig, ``, `path to a config file (yaml, json, or toml), keyed by flag name`)
	cmd.Flags().String(FlagLogLevel, `info`, `minimum log level (debug, info, notice, warning, err)`)
}

// Load returns a viper instance bound to the flags of cmd. Precedence, from
// highest, is explicitly set flags, environment variables (e.g.
// PREFIX_LOG_LEVEL), the config file (if any), then flag defaults.
func Load(cmd *cobra.Command, envPrefix string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(`-`, `_`))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf(`config: bind flags: %w`, err)
	}
	if file := v.GetString(FlagConfig); file != `` {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf(`config: read %s: %w`, file, err)
		}
	}
	return v, nil
}

// ParseLevel parses a level name, as output by [logiface.Level.String].
func ParseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelEmergency; level <= logiface.LevelTrace; level++ {
		if strings.EqualFold(s, level.String()) {
			return level, nil
		}
	}
	switch strings.ToLower(s) {
	case `warn`:
		return logiface.LevelWarning, nil
	case `error`:
		return logiface.LevelError, nil
	case `disabled`, `off`:
		return logiface.LevelDisabled, nil
	}
	return 0, fmt.Errorf(`config: unknown log level: %q`, s)
}

// Logger builds the JSON lines logger, writing to w, using the configured
// level.
func Logger(v *viper.Viper, w io.Writer) (*logiface.Logger[logiface.Event], error) {
	level, err := ParseLevel(v.GetString(FlagLogLevel))
	if err != nil {
		return nil, err
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger(), nil
}
