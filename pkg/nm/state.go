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

// NetworkManager device types the mirror cares about.
const (
	DeviceTypeGeneric  uint32 = 14
	DeviceTypeLoopback uint32 = 32
)

var deviceStates = map[uint32]string{
	0:   "unknown",
	10:  "", // unmanaged
	20:  "not available",
	30:  "disconnected",
	40:  "preparing",
	50:  "configuring",
	60:  "authenticating",
	70:  "configuring ip",
	80:  "checking ip",
	90:  "waiting",
	100: "active",
	110: "deactivating",
	120: "failed",
}

// DeviceStateText maps a device state code to its display text.
// Unrecognised codes map to "".
func DeviceStateText(code uint32) string {
	return deviceStates[code]
}
