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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carverauto/netmirror/pkg/bus"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		iface   string
		kind    InterfaceKind
		baseDev bool
		setters int
	}{
		{name: "manager", iface: bus.ManagerInterface, kind: KindManager, setters: 1},
		{name: "device", iface: bus.DeviceInterface, kind: KindDevice, baseDev: true, setters: 1},
		{name: "wired", iface: "org.freedesktop.NetworkManager.Device.Wired", kind: KindDeviceSpecialized, baseDev: true, setters: 1},
		{name: "wireless", iface: "org.freedesktop.NetworkManager.Device.Wireless", kind: KindDeviceSpecialized, baseDev: true, setters: 1},
		{name: "ip4", iface: bus.IP4ConfigInterface, kind: KindIP4Config, setters: 1},
		{name: "ip6", iface: bus.IP6ConfigInterface, kind: KindIP6Config, setters: 1},
		{name: "settings connection", iface: bus.SettingsConnectionInterface, kind: KindSettingsConnection, setters: 1},
		{name: "active connection", iface: bus.ActiveConnectionInterface, kind: KindActiveConnection, setters: 1},
		{name: "agent manager", iface: "org.freedesktop.NetworkManager.AgentManager", kind: KindUnknown},
		{name: "properties", iface: bus.PropertiesInterface, kind: KindUnknown},
		{name: "device prefix only", iface: "org.freedesktop.NetworkManager.Devices", kind: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class := Classify(tt.iface)

			assert.Equal(t, tt.kind, class.Kind)
			assert.Equal(t, tt.baseDev, class.Has(CapBaseDevice))
			assert.Len(t, settersFor(class), tt.setters)
		})
	}
}

func TestSpecialisedDevicesUseDeviceSetters(t *testing.T) {
	tables := settersFor(Classify("org.freedesktop.NetworkManager.Device.Bond"))

	assert.Len(t, tables, 1)
	assert.Contains(t, tables[0], AttrHwAddress)
	assert.Contains(t, tables[0], AttrState)
}

func TestInterfaceKindString(t *testing.T) {
	assert.Equal(t, "device-specialized", KindDeviceSpecialized.String())
	assert.Equal(t, "unknown", InterfaceKind(99).String())
}

func TestDeviceStateText(t *testing.T) {
	tests := []struct {
		code uint32
		want string
	}{
		{0, "unknown"},
		{10, ""},
		{20, "not available"},
		{30, "disconnected"},
		{40, "preparing"},
		{50, "configuring"},
		{60, "authenticating"},
		{70, "configuring ip"},
		{80, "checking ip"},
		{90, "waiting"},
		{100, "active"},
		{110, "deactivating"},
		{120, "failed"},
		{15, ""},
		{999, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DeviceStateText(tt.code), "code %d", tt.code)
	}
}
