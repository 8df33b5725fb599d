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

// Package nmstore shares one mirror engine per target between consumers
// and tears it down once the last consumer has let go.
package nmstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/carverauto/netmirror/pkg/bus"
	"github.com/carverauto/netmirror/pkg/logger"
	"github.com/carverauto/netmirror/pkg/models"
	"github.com/carverauto/netmirror/pkg/nm"
)

var (
	ErrStoreClosed    = errors.New("store is closed")
	ErrDialerRequired = errors.New("dialer is required")
	ErrTargetRequired = errors.New("target is required")
	ErrOverRelease    = errors.New("target released more often than acquired")
)

// Dialer opens a bus connection to the NetworkManager of target.
type Dialer func(ctx context.Context, target string) (bus.Client, error)

// ResolverFactory returns the vendor metadata resolver for target, or nil.
type ResolverFactory func(target string) nm.Resolver

// Options configures a Store.
type Options struct {
	Dialer      Dialer
	ResolverFor ResolverFactory
	Reporter    nm.ErrorReporter
	Logger      logger.Logger
	// Grace is how long a release waits before it takes effect. Zero
	// selects models.DefaultReleaseGrace.
	Grace time.Duration
	Clock clock.WithDelayedExecution
}

type entry struct {
	engine *nm.Engine
	refs   int
	// pending counts releases whose grace period has not elapsed.
	pending int
	timers  []clock.Timer
}

// Store is the registry of live engines keyed by target name.
type Store struct {
	dial        Dialer
	resolverFor ResolverFactory
	reporter    nm.ErrorReporter
	log         logger.Logger
	grace       time.Duration
	clock       clock.WithDelayedExecution

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// New creates a Store.
func New(opts Options) (*Store, error) {
	if opts.Dialer == nil {
		return nil, ErrDialerRequired
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	reporter := opts.Reporter
	if reporter == nil {
		reporter = nm.NewLogReporter(log)
	}

	grace := opts.Grace
	if grace <= 0 {
		grace = time.Duration(models.DefaultReleaseGrace)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	return &Store{
		dial:        opts.Dialer,
		resolverFor: opts.ResolverFor,
		reporter:    reporter,
		log:         log,
		grace:       grace,
		clock:       clk,
		entries:     make(map[string]*entry),
	}, nil
}

// Acquire returns the engine for target, creating it on first use. Every
// successful Acquire must be paired with a Release.
func (s *Store) Acquire(ctx context.Context, target string) (*nm.Engine, error) {
	if target == "" {
		return nil, ErrTargetRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if ent, ok := s.entries[target]; ok {
		ent.refs++

		s.log.Debug().Str("target", target).Int("refs", ent.refs).Msg("Reusing engine")

		return ent.engine, nil
	}

	client, err := s.dial(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	var resolver nm.Resolver
	if s.resolverFor != nil {
		resolver = s.resolverFor(target)
	}

	engine, err := nm.New(ctx, client, nm.Options{
		Target:   target,
		Logger:   s.log,
		Reporter: s.reporter,
		Resolver: resolver,
	})
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("start engine for %s: %w", target, err)
	}

	s.entries[target] = &entry{engine: engine, refs: 1}

	s.log.Info().Str("target", target).Str("engine_id", engine.ID()).Msg("Engine created")

	return engine, nil
}

// Release gives up one reference to target after the grace period. A
// release that has no matching Acquire is reported and otherwise ignored.
func (s *Store) Release(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	ent, ok := s.entries[target]
	if !ok || ent.refs-ent.pending <= 0 {
		s.log.Warn().Str("target", target).Msg("Release without matching acquire")
		s.reporter.ReportUnexpected(target, fmt.Errorf("%w: %s", ErrOverRelease, target))

		return
	}

	ent.pending++

	var timer clock.Timer

	timer = s.clock.AfterFunc(s.grace, func() {
		s.settle(target, ent, &timer)
	})
	ent.timers = append(ent.timers, timer)
}

// settle applies one delayed release. timer is read under the lock since
// it may fire before AfterFunc has returned.
func (s *Store) settle(target string, ent *entry, timer *clock.Timer) {
	s.mu.Lock()

	if s.closed || s.entries[target] != ent {
		s.mu.Unlock()

		return
	}

	for i, t := range ent.timers {
		if t == *timer {
			ent.timers = append(ent.timers[:i], ent.timers[i+1:]...)

			break
		}
	}

	ent.pending--
	ent.refs--

	if ent.refs > 0 {
		s.mu.Unlock()

		return
	}

	delete(s.entries, target)
	s.mu.Unlock()

	s.log.Info().Str("target", target).Str("engine_id", ent.engine.ID()).Msg("Engine released")

	if err := ent.engine.Close(); err != nil {
		s.log.Warn().Err(err).Str("target", target).Msg("Failed to close bus client")
	}
}

// Len returns the number of live engines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Refcount returns the current reference count of target, counting
// releases still inside their grace period as held.
func (s *Store) Refcount(target string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[target]; ok {
		return ent.refs
	}

	return 0
}

// Targets lists the targets with a live engine.
func (s *Store) Targets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.entries))
	for target := range s.entries {
		out = append(out, target)
	}

	sort.Strings(out)

	return out
}

// Close tears down every engine immediately, ignoring reference counts.
func (s *Store) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	entries := s.entries
	s.entries = make(map[string]*entry)
	s.mu.Unlock()

	var errs []error

	for target, ent := range entries {
		for _, t := range ent.timers {
			t.Stop()
		}

		if err := ent.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target, err))
		}
	}

	s.log.Info().Int("engines", len(entries)).Msg("Store closed")

	return errors.Join(errs...)
}
