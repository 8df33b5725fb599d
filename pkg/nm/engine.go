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

// Package nm mirrors the NetworkManager object graph of one target into an
// in-process cache of records and publishes coalesced change notifications.
package nm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/netmirror/pkg/bus"
	"github.com/carverauto/netmirror/pkg/logger"
	"github.com/carverauto/netmirror/pkg/nm/addr"
	"github.com/carverauto/netmirror/pkg/nm/settings"
	"github.com/carverauto/netmirror/pkg/udev"
)

// Resolver looks up vendor metadata for a device's udev path.
type Resolver interface {
	Lookup(ctx context.Context, sysfsPath string) (udev.Info, error)
}

// Options configures an Engine.
type Options struct {
	// Target names the remote host the engine mirrors.
	Target   string
	Logger   logger.Logger
	Reporter ErrorReporter
	// Resolver is optional; without it devices carry no vendor metadata.
	Resolver Resolver
}

// Engine keeps the mirror of one NetworkManager instance up to date.
//
// Bus events and asynchronous completions are applied one at a time on
// the engine's event goroutine. Record accessors may be called from any
// goroutine.
type Engine struct {
	id       string
	target   string
	client   bus.Client
	codec    addr.Codec
	log      logger.Logger
	reporter ErrorReporter
	resolver Resolver

	ctx    context.Context
	cancel context.CancelFunc
	loop   *loop
	sub    bus.Subscription

	mu             sync.Mutex
	cache          *cache
	devices        []bus.ObjectPath
	changedPending bool
	listeners      []listener
	nextListener   int

	hmu      sync.Mutex
	handles  map[*handle]struct{}
	inflight atomic.Int64

	closed    atomic.Bool
	closeOnce sync.Once
}

type listener struct {
	id int
	fn func()
}

// New subscribes to client and starts mirroring. Discovery runs in the
// background; use Sync to wait for the initial object graph.
func New(ctx context.Context, client bus.Client, opts Options) (*Engine, error) {
	if client == nil {
		return nil, ErrClientRequired
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	reporter := opts.Reporter
	if reporter == nil {
		reporter = NewLogReporter(log)
	}

	engineCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	e := &Engine{
		id:       uuid.NewString(),
		target:   opts.Target,
		client:   client,
		codec:    addr.NewCodec(client.ByteOrder()),
		log:      log,
		reporter: reporter,
		resolver: opts.Resolver,
		ctx:      engineCtx,
		cancel:   cancel,
		loop:     newLoop(),
		handles:  make(map[*handle]struct{}),
	}
	e.cache = newCache(e)

	go e.loop.run()

	sub, err := client.Subscribe(eventHandler{e: e})
	if err != nil {
		cancel()
		e.loop.stop()

		return nil, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	e.sub = sub

	e.log.Info().
		Str("engine_id", e.id).
		Str("target", e.target).
		Str("byte_order", client.ByteOrder()).
		Msg("Starting NetworkManager mirror")

	e.async(func(ctx context.Context) func() {
		objs, err := client.Objects(ctx)
		if err != nil {
			e.fail(fmt.Errorf("object discovery: %w", err))

			return nil
		}

		return func() {
			for _, obj := range objs {
				e.objectAdded(obj)
			}

			e.log.Debug().Int("objects", len(objs)).Msg("Discovery complete")
		}
	})

	return e, nil
}

// ID returns the engine's instance identifier.
func (e *Engine) ID() string {
	return e.id
}

// Target returns the remote target name.
func (e *Engine) Target() string {
	return e.target
}

// Devices returns the device records listed by the manager, in manager
// order.
func (e *Engine) Devices() []*Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Record, 0, len(e.devices))

	for _, p := range e.devices {
		if rec := e.cache.lookup(p); rec != nil {
			out = append(out, rec)
		}
	}

	return out
}

// Device returns the device record at path if the manager lists it.
func (e *Engine) Device(path bus.ObjectPath) *Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !slices.Contains(e.devices, path) {
		return nil
	}

	return e.cache.lookup(path)
}

// FindDevice returns the device whose interface name is iface, or nil.
func (e *Engine) FindDevice(iface string) *Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range e.devices {
		rec := e.cache.lookup(p)
		if rec != nil && rec.attrs.Interface == iface {
			return rec
		}
	}

	return nil
}

// Lookup returns the cached record for path without creating it.
func (e *Engine) Lookup(path bus.ObjectPath) *Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.cache.lookup(path)
}

// Resolve returns the record for path, creating an empty one on first
// use. It returns nil for the root path or once the engine is closed.
func (e *Engine) Resolve(path bus.ObjectPath) *Record {
	if e.closed.Load() {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.cache.resolve(path)
}

// OnChanged registers fn to run after each coalesced batch of changes.
// Listeners run on the event goroutine and must not call Sync.
func (e *Engine) OnChanged(fn func()) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextListener++
	id := e.nextListener
	e.listeners = append(e.listeners, listener{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		e.listeners = slices.DeleteFunc(e.listeners, func(l listener) bool { return l.id == id })
	}
}

// ActivateConnection asks the manager to activate conn on device. The
// call does not wait; failures go to the error reporter.
func (e *Engine) ActivateConnection(conn, device, specific bus.ObjectPath) {
	e.async(func(ctx context.Context) func() {
		_, err := e.client.Call(ctx, bus.ManagerPath, bus.ManagerInterface, bus.MethodActivateConnection,
			orRoot(conn), orRoot(device), orRoot(specific))
		if err != nil {
			e.fail(fmt.Errorf("%w: %s: %w", ErrActivateFailed, conn, err))
		}

		return nil
	})
}

// DeactivateConnection asks the manager to tear down an active
// connection. The call does not wait; failures go to the error reporter.
func (e *Engine) DeactivateConnection(active bus.ObjectPath) {
	e.async(func(ctx context.Context) func() {
		_, err := e.client.Call(ctx, bus.ManagerPath, bus.ManagerInterface, bus.MethodDeactivateConnection,
			orRoot(active))
		if err != nil {
			e.fail(fmt.Errorf("%w: %s: %w", ErrDeactivateFailed, active, err))
		}

		return nil
	})
}

// Sync blocks until every queued event and in-flight refresh has been
// applied and pending notifications delivered.
func (e *Engine) Sync(ctx context.Context) error {
	for {
		if e.closed.Load() {
			return ErrEngineClosed
		}

		settled := make(chan bool, 1)

		if !e.loop.post(func() {
			e.mu.Lock()
			pending := e.changedPending
			e.mu.Unlock()

			settled <- !pending && e.inflight.Load() == 0
		}) {
			return ErrEngineClosed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.loop.done:
			return ErrEngineClosed
		case ok := <-settled:
			if ok {
				return nil
			}
		}

		if e.inflight.Load() > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}
	}
}

// Close stops the engine, discards in-flight completions, drops the cache
// and closes the bus client. It is safe to call more than once.
func (e *Engine) Close() error {
	var err error

	e.closeOnce.Do(func() {
		e.closed.Store(true)

		e.hmu.Lock()
		for h := range e.handles {
			h.superseded.Store(true)
		}
		e.hmu.Unlock()

		if e.sub != nil {
			e.sub.Unsubscribe()
		}

		e.cancel()
		e.loop.stop()

		e.mu.Lock()
		e.cache.reset()
		e.devices = nil
		e.listeners = nil
		e.mu.Unlock()

		err = e.client.Close()

		e.log.Info().Str("engine_id", e.id).Str("target", e.target).Msg("Stopped NetworkManager mirror")
	})

	return err
}

// post runs fn as one processing turn under the engine lock.
func (e *Engine) post(fn func()) {
	e.loop.post(func() {
		if e.closed.Load() {
			return
		}

		e.mu.Lock()
		defer e.mu.Unlock()

		fn()
	})
}

// async runs work off the event goroutine. The function it returns, if
// any, is applied as a later processing turn unless the engine closed in
// the meantime.
func (e *Engine) async(work func(ctx context.Context) func()) {
	h := &handle{}

	e.hmu.Lock()
	if e.closed.Load() {
		e.hmu.Unlock()

		return
	}

	e.handles[h] = struct{}{}
	e.hmu.Unlock()
	e.inflight.Add(1)

	finish := func() {
		e.hmu.Lock()
		delete(e.handles, h)
		e.hmu.Unlock()
		e.inflight.Add(-1)
	}

	go func() {
		apply := work(e.ctx)
		if apply == nil {
			finish()

			return
		}

		posted := e.loop.post(func() {
			defer finish()

			if h.superseded.Load() || e.closed.Load() {
				recordStale(e.target)

				return
			}

			e.mu.Lock()
			defer e.mu.Unlock()

			apply()
		})
		if !posted {
			recordStale(e.target)
			finish()
		}
	}()
}

// fail records and reports a remote failure. Failures of calls cut short
// by Close are dropped.
func (e *Engine) fail(err error) {
	if e.closed.Load() {
		recordStale(e.target)

		return
	}

	recordFailure(e.target)
	e.reporter.ReportUnexpected(e.target, err)
}

// merge applies a change payload that arrived on iface to the record at
// path. Requires the engine lock.
func (e *Engine) merge(path bus.ObjectPath, iface string, props map[string]any) {
	class := Classify(iface)

	tables := settersFor(class)
	if len(tables) == 0 {
		return
	}

	rec := e.cache.resolve(path)
	if rec == nil {
		return
	}

	if n := e.apply(rec, tables, props); n > 0 {
		recordMerge(e.target)
		e.log.Trace().
			Str("path", string(path)).
			Str("kind", class.Kind.String()).
			Int("attributes", n).
			Msg("Merged properties")
	}

	e.touch()
}

// touch recomputes the device list and schedules a change notification.
// Requires the engine lock.
func (e *Engine) touch() {
	if mgr := e.cache.lookup(bus.ManagerPath); mgr != nil {
		e.devices = slices.Clone(mgr.attrs.Devices)
	} else {
		e.devices = nil
	}

	if e.changedPending {
		return
	}

	e.changedPending = true
	e.loop.post(e.notify)
}

func (e *Engine) notify() {
	if e.closed.Load() {
		return
	}

	e.mu.Lock()
	e.changedPending = false
	fns := make([]func(), 0, len(e.listeners))

	for _, l := range e.listeners {
		fns = append(fns, l.fn)
	}
	e.mu.Unlock()

	recordNotification(e.target)

	for _, fn := range fns {
		fn()
	}
}

// objectAdded merges every interface of a newly seen object. Requires the
// engine lock.
func (e *Engine) objectAdded(obj bus.Object) {
	for iface, props := range obj.Interfaces {
		e.interfaceAdded(obj.Path, iface, props)
	}
}

func (e *Engine) interfaceAdded(path bus.ObjectPath, iface string, props map[string]bus.Variant) {
	if props == nil {
		e.refresh(path, iface)
	} else {
		e.merge(path, iface, bus.StripSignatures(props))
	}

	if iface == bus.SettingsConnectionInterface {
		e.refreshSettings(path)
	}
}

// remove drops the record at path. Requires the engine lock.
func (e *Engine) remove(path bus.ObjectPath) {
	if e.cache.remove(path) == nil {
		return
	}

	e.log.Debug().Str("path", string(path)).Msg("Object removed")
	e.touch()
}

// refresh fetches every property of iface on path and merges them.
// Requires the engine lock.
func (e *Engine) refresh(path bus.ObjectPath, iface string) {
	rec := e.cache.resolve(path)
	if rec == nil || len(settersFor(Classify(iface))) == 0 {
		return
	}

	e.async(func(ctx context.Context) func() {
		props, err := e.client.GetAll(ctx, path, iface)
		if err != nil {
			e.log.Debug().Err(err).Str("path", string(path)).Str("interface", iface).Msg("Property refresh failed")

			return nil
		}

		return func() {
			if e.cache.lookup(path) != rec {
				recordStale(e.target)

				return
			}

			e.merge(path, iface, bus.StripSignatures(props))
		}
	})
}

// refreshSettings fetches the connection settings of path. Requires the
// engine lock.
func (e *Engine) refreshSettings(path bus.ObjectPath) {
	rec := e.cache.resolve(path)
	if rec == nil {
		return
	}

	e.async(func(ctx context.Context) func() {
		reply, err := e.client.Call(ctx, path, bus.SettingsConnectionInterface, bus.MethodGetSettings)
		if err != nil {
			e.fail(fmt.Errorf("get settings of %s: %w", path, err))

			return nil
		}

		var wire settings.Wire
		if len(reply) > 0 {
			wire = asWire(reply[0])
		}

		if wire == nil {
			e.fail(fmt.Errorf("%w: GetSettings on %s", ErrUnexpectedReply, path))

			return nil
		}

		return func() {
			if e.cache.lookup(path) != rec {
				recordStale(e.target)

				return
			}

			view := settings.FromNM(e.codec, wire, rec.settingsView, rec.mods)
			rec.settingsOrig = wire
			rec.settingsView = &view

			e.touch()
		}
	})
}

// refreshAllDevices refetches the base properties of every cached
// device. NetworkManager does not reliably announce a device's new IP
// config after a settings update. Requires the engine lock.
func (e *Engine) refreshAllDevices() {
	for _, p := range e.cache.paths() {
		if p.HasPrefix(bus.DevicesPathPrefix) {
			e.refresh(p, bus.DeviceInterface)
		}
	}
}

// lookupVendor fetches udev metadata for rec. Requires the engine lock.
func (e *Engine) lookupVendor(rec *Record, udi string) {
	if e.resolver == nil {
		return
	}

	e.async(func(ctx context.Context) func() {
		info, err := e.resolver.Lookup(ctx, udi)

		switch {
		case err == nil:
		case errors.Is(err, udev.ErrNoMetadata):
			e.log.Debug().Str("udi", udi).Msg("No vendor metadata")

			return nil
		case e.closed.Load():
			recordStale(e.target)

			return nil
		default:
			recordFailure(e.target)
			e.log.Debug().Err(err).Str("udi", udi).Msg("Vendor metadata lookup failed")

			return nil
		}

		return func() {
			if e.cache.lookup(rec.path) != rec || rec.attrs.Udi != udi {
				recordStale(e.target)

				return
			}

			props := make(map[string]any, 2)
			if info.Vendor != "" {
				props[string(AttrIDVendor)] = info.Vendor
			}

			if info.Model != "" {
				props[string(AttrIDModel)] = info.Model
			}

			if e.apply(rec, []setterTable{vendorTable}, props) > 0 {
				recordMerge(e.target)
			}

			e.touch()
		}
	})
}

func orRoot(p bus.ObjectPath) bus.ObjectPath {
	if p == "" {
		return bus.RootPath
	}

	return p
}

func asWire(raw any) settings.Wire {
	switch v := unwrap(raw).(type) {
	case settings.Wire:
		return v
	case map[string]map[string]bus.Variant:
		return settings.Wire(v)
	case map[string]map[string]any:
		out := make(settings.Wire, len(v))

		for section, fields := range v {
			sec := make(map[string]bus.Variant, len(fields))

			for name, val := range fields {
				if vv, ok := val.(bus.Variant); ok {
					sec[name] = vv
				} else {
					sec[name] = bus.Variant{Value: val}
				}
			}

			out[section] = sec
		}

		return out
	default:
		return nil
	}
}

// eventHandler turns bus callbacks into processing turns.
type eventHandler struct {
	e *Engine
}

func (h eventHandler) ObjectAdded(obj bus.Object) {
	h.e.post(func() { h.e.objectAdded(obj) })
}

func (h eventHandler) ObjectRemoved(obj bus.Object) {
	h.e.post(func() { h.e.remove(obj.Path) })
}

func (h eventHandler) InterfaceAdded(path bus.ObjectPath, iface string, props map[string]bus.Variant) {
	h.e.post(func() { h.e.interfaceAdded(path, iface, props) })
}

// InterfaceRemoved drops the whole object.
func (h eventHandler) InterfaceRemoved(path bus.ObjectPath, _ string) {
	h.e.post(func() { h.e.remove(path) })
}

func (h eventHandler) SignalEmitted(sig bus.Signal) {
	switch sig.Name {
	case bus.SignalPropertiesChanged:
		iface, props, ok := propertiesChanged(sig)
		if !ok {
			return
		}

		h.e.post(func() { h.e.merge(sig.Path, iface, props) })
	case bus.SignalUpdated:
		if sig.Interface != bus.SettingsConnectionInterface {
			return
		}

		h.e.post(func() {
			h.e.refreshSettings(sig.Path)
			h.e.refreshAllDevices()
		})
	}
}

// propertiesChanged accepts both NetworkManager's per-interface signal
// (props) and the standard one (iface, props, invalidated).
func propertiesChanged(sig bus.Signal) (string, map[string]any, bool) {
	if sig.Interface == bus.PropertiesInterface {
		if len(sig.Args) < 2 {
			return "", nil, false
		}

		iface, ok := unwrap(sig.Args[0]).(string)
		if !ok {
			return "", nil, false
		}

		props, ok := asProps(sig.Args[1])

		return iface, props, ok
	}

	if len(sig.Args) < 1 {
		return "", nil, false
	}

	props, ok := asProps(sig.Args[0])

	return sig.Interface, props, ok
}
