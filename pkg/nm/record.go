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
	"fmt"
	"slices"

	"github.com/carverauto/netmirror/pkg/bus"
	"github.com/carverauto/netmirror/pkg/nm/addr"
	"github.com/carverauto/netmirror/pkg/nm/settings"
)

// Attr names a mirrored attribute. Values match the remote property names.
type Attr string

const (
	AttrDevices              Attr = "Devices"
	AttrActiveConnections    Attr = "ActiveConnections"
	AttrDeviceType           Attr = "DeviceType"
	AttrInterface            Attr = "Interface"
	AttrHwAddress            Attr = "HwAddress"
	AttrState                Attr = "State"
	AttrDriver               Attr = "Driver"
	AttrUdi                  Attr = "Udi"
	AttrIDVendor             Attr = "IdVendor"
	AttrIDModel              Attr = "IdModel"
	AttrIP4Config            Attr = "Ip4Config"
	AttrIP6Config            Attr = "Ip6Config"
	AttrActiveConnection     Attr = "ActiveConnection"
	AttrAvailableConnections Attr = "AvailableConnections"
	AttrAddresses            Attr = "Addresses"
	AttrUnsaved              Attr = "Unsaved"
	AttrConnection           Attr = "Connection"
)

// Attributes holds every attribute the mirror models. Only the fields
// reported by Record.Has have been received; the rest are zero values.
// Object references are paths into the owning engine's cache.
type Attributes struct {
	// manager
	Devices           []bus.ObjectPath `json:"devices,omitempty"`
	ActiveConnections []bus.ObjectPath `json:"active_connections,omitempty"`

	// device
	DeviceType           uint32           `json:"device_type"`
	Interface            string           `json:"interface,omitempty"`
	HwAddress            string           `json:"hw_address,omitempty"`
	State                string           `json:"state"`
	Driver               string           `json:"driver,omitempty"`
	Udi                  string           `json:"udi,omitempty"`
	IDVendor             string           `json:"id_vendor,omitempty"`
	IDModel              string           `json:"id_model,omitempty"`
	IP4Config            bus.ObjectPath   `json:"ip4_config,omitempty"`
	IP6Config            bus.ObjectPath   `json:"ip6_config,omitempty"`
	ActiveConnection     bus.ObjectPath   `json:"active_connection,omitempty"`
	AvailableConnections []bus.ObjectPath `json:"available_connections,omitempty"`

	// ip config
	Addresses []addr.Tuple `json:"addresses,omitempty"`

	// settings connection
	Unsaved bool `json:"unsaved"`

	// active connection
	Connection bus.ObjectPath `json:"connection,omitempty"`
}

func (a Attributes) clone() Attributes {
	out := a
	out.Devices = slices.Clone(a.Devices)
	out.ActiveConnections = slices.Clone(a.ActiveConnections)
	out.AvailableConnections = slices.Clone(a.AvailableConnections)
	out.Addresses = slices.Clone(a.Addresses)

	return out
}

// Record is the local mirror of one remote object. Records are owned by
// the engine that created them; every accessor returns a copy.
type Record struct {
	engine *Engine
	path   bus.ObjectPath

	attrs Attributes
	known map[Attr]struct{}

	settingsOrig settings.Wire
	settingsView *settings.View
	mods         settings.Mask

	removed bool
}

func newRecord(e *Engine, path bus.ObjectPath) *Record {
	return &Record{
		engine: e,
		path:   path,
		known:  make(map[Attr]struct{}),
	}
}

// Path returns the remote object path.
func (r *Record) Path() bus.ObjectPath {
	return r.path
}

// Attributes returns a copy of the merged attributes.
func (r *Record) Attributes() Attributes {
	r.engine.mu.Lock()
	defer r.engine.mu.Unlock()

	return r.attrs.clone()
}

// Has reports whether attribute a has been received.
func (r *Record) Has(a Attr) bool {
	r.engine.mu.Lock()
	defer r.engine.mu.Unlock()

	_, ok := r.known[a]

	return ok
}

// Removed reports whether the remote object has gone away.
func (r *Record) Removed() bool {
	r.engine.mu.Lock()
	defer r.engine.mu.Unlock()

	return r.removed
}

// Settings returns the editable settings view, or false when the record
// is not a connection profile or its settings have not been fetched yet.
func (r *Record) Settings() (settings.View, bool) {
	r.engine.mu.Lock()
	defer r.engine.mu.Unlock()

	if r.settingsView == nil {
		return settings.View{}, false
	}

	return r.settingsView.Clone(), true
}

// OriginalSettings returns the last settings document fetched from the
// remote service.
func (r *Record) OriginalSettings() settings.Wire {
	r.engine.mu.Lock()
	defer r.engine.mu.Unlock()

	return r.settingsOrig.Clone()
}

// PendingModifications returns the fields edited locally but not yet
// committed. The result is nil when nothing is pending.
func (r *Record) PendingModifications() settings.Mask {
	r.engine.mu.Lock()
	defer r.engine.mu.Unlock()

	return r.mods.Clone()
}

// BeginEdit marks f as locally modified. It performs no I/O and is safe to
// call repeatedly.
func (r *Record) BeginEdit(f settings.Field) {
	r.engine.mu.Lock()
	defer r.engine.mu.Unlock()

	r.mods = r.mods.Add(f)
}

// EditSettings marks fields as pending and applies fn to the settings view.
func (r *Record) EditSettings(fn func(v *settings.View), fields ...settings.Field) error {
	r.engine.mu.Lock()
	defer r.engine.mu.Unlock()

	if r.settingsView == nil {
		return fmt.Errorf("%w: %s", ErrNoSettings, r.path)
	}

	for _, f := range fields {
		r.mods = r.mods.Add(f)
	}

	if fn != nil {
		fn(r.settingsView)
	}

	return nil
}

// Invoke calls a method without arguments or reply on this object.
// Failures are reported and returned.
func (r *Record) Invoke(ctx context.Context, iface, method string, args ...any) error {
	e := r.engine
	if e.closed.Load() {
		return ErrEngineClosed
	}

	if _, err := e.client.Call(ctx, r.path, iface, method, args...); err != nil {
		err = fmt.Errorf("%s.%s on %s: %w", iface, method, r.path, err)
		e.fail(err)

		return err
	}

	return nil
}

// CommitSettings sends pending edits to the remote service. It returns
// false without any I/O when nothing is pending. On success the fields
// that were sent stop being pending.
func (r *Record) CommitSettings(ctx context.Context) (bool, error) {
	e := r.engine
	if e.closed.Load() {
		return false, ErrEngineClosed
	}

	e.mu.Lock()

	if r.mods.Empty() {
		e.mu.Unlock()

		return false, nil
	}

	if r.settingsView == nil {
		e.mu.Unlock()

		return false, fmt.Errorf("%w: %s", ErrNoSettings, r.path)
	}

	sent := r.mods.Clone()
	wire := settings.ToNM(e.codec, r.settingsOrig, *r.settingsView, sent)

	e.mu.Unlock()

	e.log.Debug().
		Str("path", string(r.path)).
		Int("fields", len(sent)).
		Msg("Committing connection settings")

	_, err := e.client.Call(ctx, r.path, bus.SettingsConnectionInterface, bus.MethodUpdate,
		map[string]map[string]bus.Variant(wire))
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrUpdateFailed, r.path, err)
		e.fail(err)

		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for f := range sent {
		delete(r.mods, f)
	}

	if r.mods.Empty() {
		r.mods = nil
	}

	return true, nil
}
