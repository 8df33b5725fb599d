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
	"github.com/carverauto/netmirror/pkg/bus"
	"github.com/carverauto/netmirror/pkg/models"
	"github.com/carverauto/netmirror/pkg/nm/addr"
)

// Snapshot flattens every device, following its references to IP configs
// and connection profiles.
func (e *Engine) Snapshot() []models.DeviceSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.DeviceSnapshot, 0, len(e.devices))

	for _, p := range e.devices {
		dev := e.cache.lookup(p)
		if dev == nil {
			continue
		}

		a := dev.attrs
		snap := models.DeviceSnapshot{
			Path:      string(p),
			Interface: a.Interface,
			Type:      a.DeviceType,
			HwAddress: a.HwAddress,
			State:     a.State,
			Driver:    a.Driver,
			Vendor:    a.IDVendor,
			Model:     a.IDModel,
			IPv4:      e.addresses(a.IP4Config),
			IPv6:      e.addresses(a.IP6Config),
		}

		if active := e.cache.lookup(a.ActiveConnection); active != nil {
			if conn, ok := e.connection(active.attrs.Connection); ok {
				snap.ActiveConnection = &conn
			}
		}

		for _, cp := range a.AvailableConnections {
			if conn, ok := e.connection(cp); ok {
				snap.AvailableConnections = append(snap.AvailableConnections, conn)
			}
		}

		out = append(out, snap)
	}

	return out
}

func (e *Engine) addresses(p bus.ObjectPath) []models.AddressSnapshot {
	rec := e.cache.lookup(p)
	if rec == nil || len(rec.attrs.Addresses) == 0 {
		return nil
	}

	out := make([]models.AddressSnapshot, 0, len(rec.attrs.Addresses))
	for _, t := range rec.attrs.Addresses {
		out = append(out, addressSnapshot(t))
	}

	return out
}

func addressSnapshot(t addr.Tuple) models.AddressSnapshot {
	return models.AddressSnapshot{Address: t.Address, Prefix: t.Prefix, Gateway: t.Gateway}
}

func (e *Engine) connection(p bus.ObjectPath) (models.ConnectionSnapshot, bool) {
	rec := e.cache.lookup(p)
	if rec == nil {
		return models.ConnectionSnapshot{}, false
	}

	conn := models.ConnectionSnapshot{
		Path:    string(p),
		Unsaved: rec.attrs.Unsaved,
		Pending: len(rec.mods),
	}

	if v := rec.settingsView; v != nil {
		conn.ID = v.Connection.ID
		conn.Autoconnect = v.Connection.Autoconnect
		conn.IPv4Method = v.IPv4.Method
		conn.IPv6Method = v.IPv6.Method
	}

	return conn, true
}
