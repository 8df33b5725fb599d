/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package main runs the netmirror daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	zlog "github.com/rs/zerolog/log"

	"github.com/carverauto/netmirror/pkg/bus"
	"github.com/carverauto/netmirror/pkg/bus/dbusclient"
	"github.com/carverauto/netmirror/pkg/config"
	"github.com/carverauto/netmirror/pkg/lifecycle"
	"github.com/carverauto/netmirror/pkg/logger"
	"github.com/carverauto/netmirror/pkg/mirror"
	"github.com/carverauto/netmirror/pkg/models"
	"github.com/carverauto/netmirror/pkg/natsutil"
	"github.com/carverauto/netmirror/pkg/nm"
	"github.com/carverauto/netmirror/pkg/nmstore"
	"github.com/carverauto/netmirror/pkg/udev"
	"github.com/carverauto/netmirror/pkg/version"
)

const shutdownTimeout = 5 * time.Second

var (
	errFailedToLoadConfig = errors.New("failed to load config")
	errUnknownTarget      = errors.New("unknown target")
)

func main() {
	if err := run(); err != nil {
		zlog.Fatal().Err(err).Msg("netmirror stopped")
	}
}

func run() error {
	configPath := flag.String("config", "/etc/netmirror/netmirror.yaml", "Path to netmirror config file")
	flag.Parse()

	ctx := context.Background()

	var cfg models.MirrorConfig

	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	if err := lifecycle.InitializeLogger(cfg.Logging); err != nil {
		return err
	}

	mirrorLogger, err := lifecycle.CreateComponentLogger("netmirror", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.Metrics.Enabled {
		if _, err := logger.InitializeMetrics(ctx, metricsConfig(cfg.Metrics)); err != nil {
			mirrorLogger.Warn().Err(err).Msg("Metrics disabled")
		} else {
			defer shutdownMetrics(mirrorLogger)
		}
	}

	resolverFor, err := newResolverFactory(cfg.Udev, mirrorLogger)
	if err != nil {
		return err
	}

	store, err := nmstore.New(nmstore.Options{
		Dialer:      newDialer(&cfg, mirrorLogger),
		ResolverFor: resolverFor,
		Logger:      mirrorLogger,
		Grace:       time.Duration(cfg.ReleaseGrace),
	})
	if err != nil {
		return err
	}

	defer func() {
		if err := store.Close(); err != nil {
			mirrorLogger.Warn().Err(err).Msg("Failed to close engines")
		}
	}()

	opts := mirror.Options{
		Registry: store,
		Logger:   mirrorLogger,
		Targets:  targetNames(cfg.Targets),
	}

	if cfg.NATS.Enabled {
		publisher, nc, err := natsutil.ConnectWithEventPublisher(ctx, cfg.NATS, mirrorLogger, nats.Name("netmirror"))
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Close()

		opts.Publisher = publisher
	}

	svc, err := mirror.New(opts)
	if err != nil {
		return err
	}

	runCtx, cancel := lifecycle.WithShutdownSignals(ctx, mirrorLogger)
	defer cancel()

	mirrorLogger.Info().Str("version", version.Full()).Int("targets", len(cfg.Targets)).Msg("Starting netmirror")

	return svc.Run(runCtx)
}

func newDialer(cfg *models.MirrorConfig, log logger.Logger) nmstore.Dialer {
	return func(ctx context.Context, name string) (bus.Client, error) {
		target, ok := cfg.Target(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", errUnknownTarget, name)
		}

		return dbusclient.Dial(ctx, target.Address, log)
	}
}

// newResolverFactory returns nil when udev lookups are disabled. With an SSH
// host configured the lookups run there, otherwise on this machine.
func newResolverFactory(cfg models.UdevConfig, log logger.Logger) (nmstore.ResolverFactory, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var runner udev.Runner = udev.LocalRunner{}

	if cfg.SSH.Host != "" {
		sshRunner, err := udev.NewSSHRunner(cfg.SSH)
		if err != nil {
			return nil, fmt.Errorf("failed to configure udev over ssh: %w", err)
		}

		runner = sshRunner
	}

	resolver, err := udev.NewResolver(runner, udev.Config{
		Command: cfg.Command,
		Timeout: time.Duration(cfg.Timeout),
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}

	return func(string) nm.Resolver { return resolver }, nil
}

// metricsConfig starts from the OTEL_* environment and lets the config
// file override it.
func metricsConfig(cfg models.MetricsConfig) logger.MetricsConfig {
	otel := logger.DefaultOTelConfig()
	otel.Enabled = true
	otel.Insecure = otel.Insecure || cfg.Insecure

	if cfg.Endpoint != "" {
		otel.Endpoint = cfg.Endpoint
	}

	return logger.MetricsConfig{
		ServiceName:    "netmirror",
		ServiceVersion: version.Version(),
		OTel:           &otel,
		ExportInterval: time.Duration(cfg.ExportInterval),
	}
}

func shutdownMetrics(log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := logger.ShutdownMetrics(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to flush metrics")
	}
}

func targetNames(targets []models.TargetConfig) []string {
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Name)
	}

	return names
}
