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
	"github.com/stretchr/testify/require"

	"github.com/carverauto/netmirror/pkg/models"
	"github.com/carverauto/netmirror/pkg/nm/settings"
	"github.com/carverauto/netmirror/pkg/udev"
)

func TestSnapshot(t *testing.T) {
	resolver := &fakeResolver{info: udev.Info{Vendor: "Intel Corporation"}}
	e := startEngine(t, sampleBus(), Options{Resolver: resolver})

	e.Lookup(conn1).BeginEdit(settings.IPv4DNS)

	snaps := e.Snapshot()
	require.Len(t, snaps, 2)

	eth := snaps[0]
	assert.Equal(t, "eth0", eth.Interface)
	assert.Equal(t, uint32(1), eth.Type)
	assert.Equal(t, "active", eth.State)
	assert.Equal(t, "Intel Corporation", eth.Vendor)
	assert.Empty(t, eth.Model)
	assert.Equal(t, []models.AddressSnapshot{{Address: "10.0.0.2", Prefix: "24", Gateway: "10.0.0.1"}}, eth.IPv4)
	require.Len(t, eth.IPv6, 1)
	assert.Equal(t, "fe80:0:0:0:5054:ff:fe12:3456/64", eth.IPv6[0].String())

	require.NotNil(t, eth.ActiveConnection)
	assert.Equal(t, models.ConnectionSnapshot{
		Path:        string(conn1),
		ID:          "Wired connection 1",
		Autoconnect: true,
		IPv4Method:  "auto",
		IPv6Method:  settings.DefaultMethod,
		Pending:     1,
	}, *eth.ActiveConnection)
	require.Len(t, eth.AvailableConnections, 1)
	assert.Equal(t, "Wired connection 1", eth.AvailableConnections[0].ID)

	lo := snaps[1]
	assert.Equal(t, "lo", lo.Interface)
	assert.Equal(t, uint32(DeviceTypeLoopback), lo.Type)
	assert.Empty(t, lo.IPv4)
	assert.Nil(t, lo.ActiveConnection)
}
