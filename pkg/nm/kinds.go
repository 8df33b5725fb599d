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
	"strings"

	"github.com/carverauto/netmirror/pkg/bus"
)

// InterfaceKind is the typed form of a remote interface name.
type InterfaceKind int

const (
	KindUnknown InterfaceKind = iota
	KindManager
	KindDevice
	// KindDeviceSpecialized covers capability interfaces such as
	// org.freedesktop.NetworkManager.Device.Wired.
	KindDeviceSpecialized
	KindIP4Config
	KindIP6Config
	KindSettingsConnection
	KindActiveConnection
)

func (k InterfaceKind) String() string {
	switch k {
	case KindManager:
		return "manager"
	case KindDevice:
		return "device"
	case KindDeviceSpecialized:
		return "device-specialized"
	case KindIP4Config:
		return "ip4config"
	case KindIP6Config:
		return "ip6config"
	case KindSettingsConnection:
		return "settings-connection"
	case KindActiveConnection:
		return "active-connection"
	case KindUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// Capability tags an interface kind with extra merge behaviour.
type Capability uint8

const (
	// CapBaseDevice marks interfaces whose change payloads carry the base
	// device properties. The remote service has no change signal on the base
	// device interface itself, so the specialised interfaces report for it.
	CapBaseDevice Capability = 1 << iota
)

// InterfaceClass is the result of classifying an interface name.
type InterfaceClass struct {
	Kind         InterfaceKind
	Capabilities Capability
}

// Has reports whether c carries capability cp.
func (c InterfaceClass) Has(cp Capability) bool {
	return c.Capabilities&cp != 0
}

// Classify maps an interface name to its kind.
func Classify(iface string) InterfaceClass {
	switch iface {
	case bus.ManagerInterface:
		return InterfaceClass{Kind: KindManager}
	case bus.DeviceInterface:
		return InterfaceClass{Kind: KindDevice, Capabilities: CapBaseDevice}
	case bus.IP4ConfigInterface:
		return InterfaceClass{Kind: KindIP4Config}
	case bus.IP6ConfigInterface:
		return InterfaceClass{Kind: KindIP6Config}
	case bus.SettingsConnectionInterface:
		return InterfaceClass{Kind: KindSettingsConnection}
	case bus.ActiveConnectionInterface:
		return InterfaceClass{Kind: KindActiveConnection}
	}

	if strings.HasPrefix(iface, bus.DeviceInterfacePrefix) {
		return InterfaceClass{Kind: KindDeviceSpecialized, Capabilities: CapBaseDevice}
	}

	return InterfaceClass{Kind: KindUnknown}
}
