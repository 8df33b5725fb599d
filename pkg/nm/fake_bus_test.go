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

package nm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carverauto/netmirror/pkg/bus"
	"github.com/carverauto/netmirror/pkg/nm/addr"
	"github.com/carverauto/netmirror/pkg/nm/settings"
	"github.com/carverauto/netmirror/pkg/udev"
)

var (
	errNoSuchObject = errors.New("no such object")
	errRemote       = errors.New("remote failure")
)

const (
	devEth  bus.ObjectPath = "/org/freedesktop/NetworkManager/Devices/1"
	devLo   bus.ObjectPath = "/org/freedesktop/NetworkManager/Devices/2"
	ip4Eth  bus.ObjectPath = "/org/freedesktop/NetworkManager/IP4Config/1"
	ip6Eth  bus.ObjectPath = "/org/freedesktop/NetworkManager/IP6Config/1"
	conn1   bus.ObjectPath = "/org/freedesktop/NetworkManager/Settings/1"
	active1 bus.ObjectPath = "/org/freedesktop/NetworkManager/ActiveConnection/1"

	wiredInterface = "org.freedesktop.NetworkManager.Device.Wired"
	udiEth         = "/sys/devices/pci0000:00/0000:00:1f.6/net/eth0"
)

var testCodec = addr.NewCodec("be")

type fakeCall struct {
	Path   bus.ObjectPath
	Iface  string
	Method string
	Args   []any
}

// fakeBus is an in-memory bus.Client. Tests drive events through the emit
// helpers.
type fakeBus struct {
	mu sync.Mutex

	objects    []bus.Object
	objectsErr error
	props      map[bus.ObjectPath]map[string]map[string]bus.Variant
	settings   map[bus.ObjectPath]settings.Wire
	errs       map[string]error
	subErr     error

	// settingsGate blocks GetSettings until closed; settingsStarted is
	// signalled when a blocked call begins.
	settingsGate    chan struct{}
	settingsStarted chan struct{}

	calls        []fakeCall
	getAll       int
	handler      bus.Handler
	unsubscribed bool
	closed       bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		props:    make(map[bus.ObjectPath]map[string]map[string]bus.Variant),
		settings: make(map[bus.ObjectPath]settings.Wire),
		errs:     make(map[string]error),
	}
}

func (b *fakeBus) ByteOrder() string { return "be" }

func (b *fakeBus) Objects(_ context.Context) ([]bus.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.objectsErr != nil {
		return nil, b.objectsErr
	}

	return b.objects, nil
}

func (b *fakeBus) Subscribe(h bus.Handler) (bus.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subErr != nil {
		return nil, b.subErr
	}

	b.handler = h

	return bus.SubscriptionFunc(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		b.unsubscribed = true
		b.handler = nil
	}), nil
}

func (b *fakeBus) GetAll(_ context.Context, path bus.ObjectPath, iface string) (map[string]bus.Variant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.getAll++

	props, ok := b.props[path][iface]
	if !ok {
		return nil, errNoSuchObject
	}

	return props, nil
}

func (b *fakeBus) Call(ctx context.Context, path bus.ObjectPath, iface, method string, args ...any) ([]any, error) {
	b.mu.Lock()
	b.calls = append(b.calls, fakeCall{Path: path, Iface: iface, Method: method, Args: args})
	gate, started := b.settingsGate, b.settingsStarted
	b.mu.Unlock()

	switch method {
	case bus.MethodGetSettings:
		if gate != nil {
			if started != nil {
				started <- struct{}{}
			}

			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		wire, ok := b.settings[path]
		if !ok {
			return nil, errNoSuchObject
		}

		return []any{map[string]map[string]bus.Variant(wire.Clone())}, nil
	case bus.MethodUpdate:
		b.mu.Lock()
		defer b.mu.Unlock()

		if err := b.errs[method]; err != nil {
			return nil, err
		}

		if wire, ok := args[0].(map[string]map[string]bus.Variant); ok {
			b.settings[path] = settings.Wire(wire)
		}

		return nil, nil
	default:
		b.mu.Lock()
		defer b.mu.Unlock()

		return nil, b.errs[method]
	}
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	return nil
}

func (b *fakeBus) currentHandler() bus.Handler {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.handler
}

func (b *fakeBus) emitSignal(sig bus.Signal) {
	if h := b.currentHandler(); h != nil {
		h.SignalEmitted(sig)
	}
}

func (b *fakeBus) emitPropertiesChanged(path bus.ObjectPath, iface string, props map[string]bus.Variant) {
	b.emitSignal(bus.Signal{Path: path, Interface: iface, Name: bus.SignalPropertiesChanged, Args: []any{props}})
}

func (b *fakeBus) emitObjectAdded(obj bus.Object) {
	if h := b.currentHandler(); h != nil {
		h.ObjectAdded(obj)
	}
}

func (b *fakeBus) emitObjectRemoved(path bus.ObjectPath) {
	if h := b.currentHandler(); h != nil {
		h.ObjectRemoved(bus.Object{Path: path})
	}
}

func (b *fakeBus) emitInterfaceAdded(path bus.ObjectPath, iface string, props map[string]bus.Variant) {
	if h := b.currentHandler(); h != nil {
		h.InterfaceAdded(path, iface, props)
	}
}

func (b *fakeBus) emitInterfaceRemoved(path bus.ObjectPath, iface string) {
	if h := b.currentHandler(); h != nil {
		h.InterfaceRemoved(path, iface)
	}
}

func (b *fakeBus) callsTo(method string) []fakeCall {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []fakeCall

	for _, c := range b.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}

	return out
}

func (b *fakeBus) setSettings(path bus.ObjectPath, wire settings.Wire) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.settings[path] = wire
}

func (b *fakeBus) setProps(path bus.ObjectPath, iface string, props map[string]bus.Variant) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.props[path] == nil {
		b.props[path] = make(map[string]map[string]bus.Variant)
	}

	b.props[path][iface] = props
}

func v(sig string, val any) bus.Variant {
	return bus.Variant{Signature: sig, Value: val}
}

func ethDeviceProps() map[string]bus.Variant {
	return map[string]bus.Variant{
		"DeviceType":           v("u", uint32(1)),
		"Interface":            v("s", "eth0"),
		"State":                v("u", uint32(100)),
		"Driver":               v("s", "e1000e"),
		"Udi":                  v("s", udiEth),
		"Ip4Config":            v("o", ip4Eth),
		"Ip6Config":            v("o", ip6Eth),
		"ActiveConnection":     v("o", active1),
		"AvailableConnections": v("ao", []bus.ObjectPath{conn1}),
		"Capabilities":         v("u", uint32(7)),
	}
}

func connectionWire(id, method string) settings.Wire {
	return settings.Wire{
		"connection": {
			"id":          v("s", id),
			"uuid":        v("s", "0b8c5a1e-3f0a-4d4b-9a3e-5f2b1c7d9e10"),
			"autoconnect": v("b", true),
		},
		"ipv4": {
			"method": v("s", method),
			"dns":    v("au", []uint32{testCodec.IPv4Packed("9.9.9.9")}),
		},
	}
}

// sampleBus returns a bus exporting a manager with an ethernet and a
// loopback device, the ethernet device's IP configs, one connection
// profile and its active connection.
func sampleBus() *fakeBus {
	b := newFakeBus()

	b.objects = []bus.Object{
		{
			Path: bus.ManagerPath,
			Interfaces: map[string]map[string]bus.Variant{
				bus.ManagerInterface: {
					"Devices":           v("ao", []bus.ObjectPath{devEth, devLo}),
					"ActiveConnections": v("ao", []bus.ObjectPath{active1}),
					"Version":           v("s", "1.46.0"),
				},
			},
		},
		{
			Path: devEth,
			Interfaces: map[string]map[string]bus.Variant{
				bus.DeviceInterface: ethDeviceProps(),
				wiredInterface: {
					"HwAddress": v("s", "52:54:00:12:34:56"),
					"Speed":     v("u", uint32(1000)),
				},
				bus.PropertiesInterface: {},
			},
		},
		{
			Path: devLo,
			Interfaces: map[string]map[string]bus.Variant{
				bus.DeviceInterface: {
					"DeviceType": v("u", uint32(32)),
					"Interface":  v("s", "lo"),
					"State":      v("u", uint32(10)),
					"Ip4Config":  v("o", bus.RootPath),
				},
			},
		},
		{
			Path: ip4Eth,
			Interfaces: map[string]map[string]bus.Variant{
				bus.IP4ConfigInterface: {
					"Addresses": v("aau", [][]uint32{{
						testCodec.IPv4Packed("10.0.0.2"), 24, testCodec.IPv4Packed("10.0.0.1"),
					}}),
				},
			},
		},
		{
			Path: ip6Eth,
			Interfaces: map[string]map[string]bus.Variant{
				bus.IP6ConfigInterface: {
					"Addresses": v("a(ayuay)", []any{[]any{
						addr.IPv6Bytes("fe80::5054:ff:fe12:3456"), uint32(64), make([]byte, 16),
					}}),
				},
			},
		},
		{
			Path: conn1,
			Interfaces: map[string]map[string]bus.Variant{
				bus.SettingsConnectionInterface: {"Unsaved": v("b", false)},
			},
		},
		{
			Path: active1,
			Interfaces: map[string]map[string]bus.Variant{
				bus.ActiveConnectionInterface: {"Connection": v("o", conn1)},
			},
		},
	}

	b.settings[conn1] = connectionWire("Wired connection 1", "auto")

	return b
}

type captureReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *captureReporter) ReportUnexpected(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errs = append(r.errs, err)
}

func (r *captureReporter) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]error(nil), r.errs...)
}

type fakeResolver struct {
	mu    sync.Mutex
	info  udev.Info
	err   error
	calls []string
}

func (p *fakeResolver) Lookup(_ context.Context, path string) (udev.Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, path)

	return p.info, p.err
}

func (p *fakeResolver) lookups() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.calls...)
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}

// startEngine builds an engine over b and waits for discovery.
func startEngine(t *testing.T, b *fakeBus, opts Options) *Engine {
	t.Helper()

	if opts.Target == "" {
		opts.Target = "test"
	}

	e, err := New(context.Background(), b, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	require.NoError(t, e.Sync(testContext(t)))

	return e
}
