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

package bus

// Well-known NetworkManager names.
const (
	NetworkManager = "org.freedesktop.NetworkManager"

	ManagerPath        ObjectPath = "/org/freedesktop/NetworkManager"
	ObjectManagerPath  ObjectPath = "/org/freedesktop"
	DevicesPathPrefix             = "/org/freedesktop/NetworkManager/Devices/"
	SettingsPathPrefix            = "/org/freedesktop/NetworkManager/Settings/"

	ManagerInterface            = "org.freedesktop.NetworkManager"
	DeviceInterface             = "org.freedesktop.NetworkManager.Device"
	DeviceInterfacePrefix       = "org.freedesktop.NetworkManager.Device."
	IP4ConfigInterface          = "org.freedesktop.NetworkManager.IP4Config"
	IP6ConfigInterface          = "org.freedesktop.NetworkManager.IP6Config"
	SettingsConnectionInterface = "org.freedesktop.NetworkManager.Settings.Connection"
	ActiveConnectionInterface   = "org.freedesktop.NetworkManager.Connection.Active"

	PropertiesInterface    = "org.freedesktop.DBus.Properties"
	ObjectManagerInterface = "org.freedesktop.DBus.ObjectManager"
)

// Signal and method names used by the mirror.
const (
	SignalPropertiesChanged = "PropertiesChanged"
	SignalUpdated           = "Updated"
	SignalInterfacesAdded   = "InterfacesAdded"
	SignalInterfacesRemoved = "InterfacesRemoved"

	MethodGetAll               = "GetAll"
	MethodGetSettings          = "GetSettings"
	MethodUpdate               = "Update"
	MethodActivateConnection   = "ActivateConnection"
	MethodDeactivateConnection = "DeactivateConnection"
	MethodGetManagedObjects    = "GetManagedObjects"
	MethodDeviceDisconnect     = "Disconnect"
)
