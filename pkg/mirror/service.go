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

// Package mirror runs one engine per configured target, logs each
// target's device table when it changes and publishes snapshots.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/netmirror/pkg/logger"
	"github.com/carverauto/netmirror/pkg/models"
	"github.com/carverauto/netmirror/pkg/natsutil"
	"github.com/carverauto/netmirror/pkg/nm"
)

var (
	ErrRegistryRequired = errors.New("engine registry is required")
	ErrNoTargets        = errors.New("no targets configured")
)

// Registry hands out shared engines.
type Registry interface {
	Acquire(ctx context.Context, target string) (*nm.Engine, error)
	Release(target string)
}

// Options configures a Service.
type Options struct {
	Registry Registry
	// Publisher is optional.
	Publisher natsutil.DevicePublisher
	Logger    logger.Logger
	Targets   []string
}

// Service mirrors every configured target until its context ends.
type Service struct {
	registry  Registry
	publisher natsutil.DevicePublisher
	log       logger.Logger
	targets   []string
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	if opts.Registry == nil {
		return nil, ErrRegistryRequired
	}

	if len(opts.Targets) == 0 {
		return nil, ErrNoTargets
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Service{
		registry:  opts.Registry,
		publisher: opts.Publisher,
		log:       log,
		targets:   opts.Targets,
	}, nil
}

// Run acquires every target and reports their changes until ctx is done.
// Targets that fail to start are logged and skipped; Run fails only when
// none could be started.
func (s *Service) Run(ctx context.Context) error {
	var (
		wg       sync.WaitGroup
		acquired []string
		cancels  []func()
	)

	for _, target := range s.targets {
		engine, err := s.registry.Acquire(ctx, target)
		if err != nil {
			s.log.Error().Err(err).Str("target", target).Msg("Failed to start mirror")

			continue
		}

		acquired = append(acquired, target)

		changed := make(chan struct{}, 1)
		changed <- struct{}{}

		cancels = append(cancels, engine.OnChanged(func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		}))

		wg.Add(1)

		go func() {
			defer wg.Done()

			s.watch(ctx, engine, changed)
		}()
	}

	if len(acquired) == 0 {
		return fmt.Errorf("%w: all %d targets failed", ErrNoTargets, len(s.targets))
	}

	s.log.Info().Strs("targets", acquired).Msg("Mirroring targets")

	<-ctx.Done()

	for _, cancel := range cancels {
		cancel()
	}

	wg.Wait()

	for _, target := range acquired {
		s.registry.Release(target)
	}

	return nil
}

// watch reports engine's devices each time changed fires. Bursts collapse
// into one report since changed holds at most one token.
func (s *Service) watch(ctx context.Context, engine *nm.Engine, changed <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
		}

		if err := engine.Sync(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				s.log.Debug().Err(err).Str("target", engine.Target()).Msg("Engine not ready")
			}

			continue
		}

		devices := engine.Snapshot()
		s.logTable(engine.Target(), devices)

		if s.publisher == nil {
			continue
		}

		change := models.DevicesChangedData{
			Target:    engine.Target(),
			EngineID:  engine.ID(),
			Timestamp: time.Now().UTC(),
			Devices:   devices,
		}

		if err := s.publisher.PublishDevices(ctx, change); err != nil {
			s.log.Warn().Err(err).Str("target", engine.Target()).Msg("Failed to publish devices")
		}
	}
}

func (s *Service) logTable(target string, devices []models.DeviceSnapshot) {
	for _, d := range Visible(devices) {
		s.log.Info().
			Str("target", target).
			Str("interface", d.Interface).
			Str("addresses", FormatAddresses(d)).
			Str("hw_address", d.HwAddress).
			Str("state", d.State).
			Msg("Device")
	}
}

// Visible drops loopback and generic devices, which are not shown in the
// device table.
func Visible(devices []models.DeviceSnapshot) []models.DeviceSnapshot {
	out := make([]models.DeviceSnapshot, 0, len(devices))

	for _, d := range devices {
		if d.Type == nm.DeviceTypeLoopback || d.Type == nm.DeviceTypeGeneric {
			continue
		}

		out = append(out, d)
	}

	return out
}

// FormatAddresses renders a device's addresses as "a/p, a/p".
func FormatAddresses(d models.DeviceSnapshot) string {
	parts := make([]string, 0, len(d.IPv4)+len(d.IPv6))

	for _, a := range d.IPv4 {
		parts = append(parts, a.String())
	}

	for _, a := range d.IPv6 {
		parts = append(parts, a.String())
	}

	return strings.Join(parts, ", ")
}
