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

package models

// DeviceSnapshot is a flattened, point-in-time view of one mirrored
// device.
type DeviceSnapshot struct {
	Path                 string               `json:"path"`
	Interface            string               `json:"interface"`
	Type                 uint32               `json:"type"`
	HwAddress            string               `json:"hw_address,omitempty"`
	State                string               `json:"state"`
	Driver               string               `json:"driver,omitempty"`
	Vendor               string               `json:"vendor,omitempty"`
	Model                string               `json:"model,omitempty"`
	IPv4                 []AddressSnapshot    `json:"ipv4,omitempty"`
	IPv6                 []AddressSnapshot    `json:"ipv6,omitempty"`
	ActiveConnection     *ConnectionSnapshot  `json:"active_connection,omitempty"`
	AvailableConnections []ConnectionSnapshot `json:"available_connections,omitempty"`
}

// AddressSnapshot is an (address, prefix, gateway) tuple in text form.
type AddressSnapshot struct {
	Address string `json:"address"`
	Prefix  string `json:"prefix"`
	Gateway string `json:"gateway,omitempty"`
}

func (a AddressSnapshot) String() string {
	if a.Prefix == "" {
		return a.Address
	}

	return a.Address + "/" + a.Prefix
}

// ConnectionSnapshot summarises a connection profile.
type ConnectionSnapshot struct {
	Path        string `json:"path"`
	ID          string `json:"id"`
	Autoconnect bool   `json:"autoconnect"`
	Unsaved     bool   `json:"unsaved"`
	IPv4Method  string `json:"ipv4_method,omitempty"`
	IPv6Method  string `json:"ipv6_method,omitempty"`
	// Pending counts fields edited locally but not yet committed.
	Pending int `json:"pending,omitempty"`
}
