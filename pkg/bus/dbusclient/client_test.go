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

package dbusclient

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/netmirror/pkg/bus"
	"github.com/carverauto/netmirror/pkg/logger"
)

const devPath = "/org/freedesktop/NetworkManager/Devices/3"

type event struct {
	kind  string
	path  bus.ObjectPath
	iface string
	sig   bus.Signal
}

type recordingHandler struct {
	events []event
}

func (h *recordingHandler) ObjectAdded(obj bus.Object) {
	h.events = append(h.events, event{kind: "object-added", path: obj.Path})
}

func (h *recordingHandler) ObjectRemoved(obj bus.Object) {
	h.events = append(h.events, event{kind: "object-removed", path: obj.Path})
}

func (h *recordingHandler) InterfaceAdded(path bus.ObjectPath, iface string, _ map[string]bus.Variant) {
	h.events = append(h.events, event{kind: "interface-added", path: path, iface: iface})
}

func (h *recordingHandler) InterfaceRemoved(path bus.ObjectPath, iface string) {
	h.events = append(h.events, event{kind: "interface-removed", path: path, iface: iface})
}

func (h *recordingHandler) SignalEmitted(sig bus.Signal) {
	h.events = append(h.events, event{kind: "signal", path: sig.Path, iface: sig.Interface, sig: sig})
}

func newTestClient(h bus.Handler) *Client {
	return &Client{
		log:     logger.NewTestLogger(),
		known:   make(map[bus.ObjectPath]map[string]struct{}),
		handler: h,
	}
}

func TestSplitMember(t *testing.T) {
	iface, name := splitMember("org.freedesktop.DBus.Properties.PropertiesChanged")
	assert.Equal(t, bus.PropertiesInterface, iface)
	assert.Equal(t, "PropertiesChanged", name)

	iface, name = splitMember("Updated")
	assert.Empty(t, iface)
	assert.Equal(t, "Updated", name)
}

func TestFromDBus(t *testing.T) {
	raw := map[string]dbus.Variant{
		"Devices":   dbus.MakeVariant([]dbus.ObjectPath{devPath}),
		"Ip4Config": dbus.MakeVariant(dbus.ObjectPath("/")),
		"State":     dbus.MakeVariant(uint32(100)),
		"Addresses": dbus.MakeVariant([][]uint32{{1, 24, 0}}),
	}

	props, ok := fromDBus(raw).(map[string]bus.Variant)
	require.True(t, ok)

	assert.Equal(t, bus.Variant{Signature: "ao", Value: []bus.ObjectPath{devPath}}, props["Devices"])
	assert.Equal(t, bus.Variant{Signature: "o", Value: bus.RootPath}, props["Ip4Config"])
	assert.Equal(t, bus.Variant{Signature: "u", Value: uint32(100)}, props["State"])
	assert.Equal(t, bus.Variant{Signature: "aau", Value: [][]uint32{{1, 24, 0}}}, props["Addresses"])
}

func TestToDBus(t *testing.T) {
	wire := map[string]map[string]bus.Variant{
		"ipv4": {
			"method":    {Signature: "s", Value: "manual"},
			"addresses": {Signature: "aau", Value: [][]uint32{{1, 24, 2}}},
		},
	}

	converted, err := toDBus(wire)
	require.NoError(t, err)

	out, ok := converted.(map[string]map[string]dbus.Variant)
	require.True(t, ok)

	method := out["ipv4"]["method"]
	assert.Equal(t, "s", method.Signature().String())
	assert.Equal(t, "manual", method.Value())

	addrs := out["ipv4"]["addresses"]
	assert.Equal(t, "aau", addrs.Signature().String())

	path, err := toDBus(bus.ObjectPath(devPath))
	require.NoError(t, err)
	assert.Equal(t, dbus.ObjectPath(devPath), path)

	args, err := toDBus([]any{bus.RootPath, "x"})
	require.NoError(t, err)
	assert.Equal(t, []any{dbus.ObjectPath("/"), "x"}, args)
}

func TestDeliverInterfacesAdded(t *testing.T) {
	h := &recordingHandler{}
	c := newTestClient(h)

	added := &dbus.Signal{
		Path: dbus.ObjectPath(bus.ObjectManagerPath),
		Name: bus.ObjectManagerInterface + "." + bus.SignalInterfacesAdded,
		Body: []any{
			dbus.ObjectPath(devPath),
			map[string]map[string]dbus.Variant{
				bus.DeviceInterface: {"Interface": dbus.MakeVariant("wlan0")},
			},
		},
	}

	c.deliver(added)

	added.Body[1] = map[string]map[string]dbus.Variant{
		"org.freedesktop.NetworkManager.Device.Statistics": {},
	}
	c.deliver(added)

	require.Len(t, h.events, 2)
	assert.Equal(t, "object-added", h.events[0].kind)
	assert.Equal(t, bus.ObjectPath(devPath), h.events[0].path)
	assert.Equal(t, "interface-added", h.events[1].kind)
	assert.Equal(t, "org.freedesktop.NetworkManager.Device.Statistics", h.events[1].iface)
}

func TestDeliverInterfacesRemoved(t *testing.T) {
	h := &recordingHandler{}
	c := newTestClient(h)
	c.known[devPath] = map[string]struct{}{
		bus.DeviceInterface: {},
		"org.freedesktop.NetworkManager.Device.Wired": {},
	}

	removed := func(ifaces ...string) *dbus.Signal {
		return &dbus.Signal{
			Path: dbus.ObjectPath(bus.ObjectManagerPath),
			Name: bus.ObjectManagerInterface + "." + bus.SignalInterfacesRemoved,
			Body: []any{dbus.ObjectPath(devPath), ifaces},
		}
	}

	c.deliver(removed("org.freedesktop.NetworkManager.Device.Wired"))
	c.deliver(removed(bus.DeviceInterface))

	require.Len(t, h.events, 2)
	assert.Equal(t, event{kind: "interface-removed", path: devPath, iface: "org.freedesktop.NetworkManager.Device.Wired"}, h.events[0])
	assert.Equal(t, event{kind: "object-removed", path: devPath}, h.events[1])
	assert.NotContains(t, c.known, bus.ObjectPath(devPath))
}

func TestDeliverSignal(t *testing.T) {
	h := &recordingHandler{}
	c := newTestClient(h)

	c.deliver(&dbus.Signal{
		Path: dbus.ObjectPath(devPath),
		Name: bus.PropertiesInterface + "." + bus.SignalPropertiesChanged,
		Body: []any{
			bus.DeviceInterface,
			map[string]dbus.Variant{"State": dbus.MakeVariant(uint32(30))},
			[]string{},
		},
	})

	require.Len(t, h.events, 1)

	sig := h.events[0].sig
	assert.Equal(t, bus.ObjectPath(devPath), sig.Path)
	assert.Equal(t, bus.PropertiesInterface, sig.Interface)
	assert.Equal(t, bus.SignalPropertiesChanged, sig.Name)
	require.Len(t, sig.Args, 3)
	assert.Equal(t, map[string]bus.Variant{"State": {Signature: "u", Value: uint32(30)}}, sig.Args[1])
}

func TestDeliverWithoutHandler(t *testing.T) {
	c := newTestClient(nil)

	assert.NotPanics(t, func() {
		c.deliver(&dbus.Signal{Name: "org.freedesktop.NetworkManager.StateChanged", Body: []any{uint32(70)}})
	})
}

func TestByteOrder(t *testing.T) {
	assert.Contains(t, []string{"be", "le"}, (&Client{}).ByteOrder())
}
