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

package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/netmirror/pkg/bus"
	"github.com/carverauto/netmirror/pkg/nm/addr"
)

var codec = addr.NewCodec("be")

func sampleWire() Wire {
	return Wire{
		"connection": {
			"id":          {Signature: "s", Value: "Wired connection 1"},
			"uuid":        {Signature: "s", Value: "0b8c5a1e-3f0a-4d4b-9a3e-5f2b1c7d9e10"},
			"autoconnect": {Signature: "b", Value: false},
		},
		"ipv4": {
			"method":    {Signature: "s", Value: "manual"},
			"addresses": {Signature: "aau", Value: [][]uint32{{0xC0A80105, 24, 0xC0A80101}}},
			"dns":       {Signature: "au", Value: []uint32{0x08080808}},
		},
		"ipv6": {
			"method": {Signature: "s", Value: "auto"},
			"addresses": {Signature: "a(ayuay)", Value: [][]any{{
				[]byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x05},
				uint32(64),
				make([]byte, 16),
			}}},
			"dns": {Signature: "aay", Value: [][]byte{{0x20, 0x01, 0x48, 0x60, 0x48, 0x60, 0, 0, 0, 0, 0, 0, 0, 0, 0x88, 0x88}}},
		},
		"802-3-ethernet": {
			"mtu": {Signature: "u", Value: uint32(1500)},
		},
	}
}

func TestFromNMDecodesEveryField(t *testing.T) {
	t.Parallel()

	view := FromNM(codec, sampleWire(), nil, nil)

	assert.Equal(t, "Wired connection 1", view.Connection.ID)
	assert.False(t, view.Connection.Autoconnect)
	assert.Equal(t, "manual", view.IPv4.Method)
	assert.Equal(t, []addr.Tuple{{Address: "192.168.1.5", Prefix: "24", Gateway: "192.168.1.1"}}, view.IPv4.Addresses)
	assert.Equal(t, []string{"8.8.8.8"}, view.IPv4.DNS)
	assert.Equal(t, "auto", view.IPv6.Method)
	assert.Equal(t, []addr.Tuple{{Address: "2001:db8:0:0:0:0:0:5", Prefix: "64", Gateway: "0:0:0:0:0:0:0:0"}}, view.IPv6.Addresses)
	assert.Equal(t, []string{"2001:4860:4860:0:0:0:0:8888"}, view.IPv6.DNS)
}

func TestFromNMDefaults(t *testing.T) {
	t.Parallel()

	view := FromNM(codec, Wire{"ipv4": {"method": {Signature: "u", Value: uint32(3)}}}, nil, nil)

	assert.Equal(t, Defaults(), view)
	assert.Equal(t, DefaultConnectionID, view.Connection.ID)
	assert.True(t, view.Connection.Autoconnect)
	assert.Equal(t, DefaultMethod, view.IPv4.Method, "mistyped value falls back to default")
	assert.NotNil(t, view.IPv4.Addresses)
	assert.Empty(t, view.IPv4.Addresses)
}

func TestFromNMKeepsPendingEdits(t *testing.T) {
	t.Parallel()

	prev := FromNM(codec, sampleWire(), nil, nil)
	prev.IPv4.Method = "manual"
	prev.IPv4.DNS = []string{"1.1.1.1"}

	mask := Mask(nil).Add(IPv4Method).Add(IPv4DNS)

	wire := sampleWire()
	wire["ipv4"]["method"] = bus.Variant{Signature: "s", Value: "auto"}
	wire["connection"]["id"] = bus.Variant{Signature: "s", Value: "renamed"}

	view := FromNM(codec, wire, &prev, mask)

	assert.Equal(t, "manual", view.IPv4.Method, "pending edit must survive a remote refresh")
	assert.Equal(t, []string{"1.1.1.1"}, view.IPv4.DNS)
	assert.Equal(t, "renamed", view.Connection.ID, "unedited fields follow the server")

	prev.IPv4.DNS[0] = "9.9.9.9"
	assert.Equal(t, "1.1.1.1", view.IPv4.DNS[0], "kept values are copied, not aliased")
}

func TestToNMEmptyMaskIsIdentity(t *testing.T) {
	t.Parallel()

	orig := sampleWire()
	view := FromNM(codec, orig, nil, nil)
	view.IPv4.Method = "disabled"

	out := ToNM(codec, orig, view, nil)
	assert.Equal(t, orig, out)

	out["ipv4"]["method"] = bus.Variant{Signature: "s", Value: "changed"}
	assert.Equal(t, "manual", orig["ipv4"]["method"].Value, "result must not share maps with the original")
}

func TestToNMSingleFieldDiff(t *testing.T) {
	t.Parallel()

	orig := sampleWire()
	view := FromNM(codec, orig, nil, nil)
	view.IPv4.DNS = []string{"9.9.9.9", "1.1.1.1"}

	out := ToNM(codec, orig, view, Mask(nil).Add(IPv4DNS))

	differing := 0

	for section, fields := range out {
		for name, v := range fields {
			if !assert.ObjectsAreEqual(orig[section][name], v) {
				differing++
			}
		}
	}

	assert.Equal(t, 1, differing)
	assert.Equal(t, bus.Variant{Signature: "au", Value: []uint32{0x09090909, 0x01010101}}, out["ipv4"]["dns"])
}

func TestToNMEncodesEveryField(t *testing.T) {
	t.Parallel()

	view := Defaults()
	view.Connection.ID = "lab"
	view.Connection.Autoconnect = false
	view.IPv4.Method = "manual"
	view.IPv4.Addresses = []addr.Tuple{{Address: "10.0.0.2", Prefix: "", Gateway: "10.0.0.1"}}
	view.IPv6.Method = "ignore"
	view.IPv6.Addresses = []addr.Tuple{{Address: "fd00::2", Prefix: "48", Gateway: "fd00::1"}}
	view.IPv6.DNS = []string{"fd00::53"}

	var mask Mask
	for _, f := range AllFields() {
		mask = mask.Add(f)
	}

	out := ToNM(codec, nil, view, mask)
	require.NotNil(t, out)

	for _, f := range AllFields() {
		assert.Equal(t, Signature(f), out[f.Section][f.Name].Signature, f.String())
	}

	assert.Equal(t, [][]uint32{{0x0A000002, addr.DefaultIPv4Prefix, 0x0A000001}}, out["ipv4"]["addresses"].Value)

	v6, ok := out["ipv6"]["addresses"].Value.([]addr.IPv6Address)
	require.True(t, ok)
	require.Len(t, v6, 1)
	assert.Equal(t, uint32(48), v6[0].Prefix)

	back := FromNM(codec, out, nil, nil)
	assert.Equal(t, "lab", back.Connection.ID)
	assert.Equal(t, "fd00:0:0:0:0:0:0:2", back.IPv6.Addresses[0].Address)
	assert.Equal(t, []string{"fd00:0:0:0:0:0:0:53"}, back.IPv6.DNS)
	assert.Equal(t, "24", back.IPv4.Addresses[0].Prefix)
}

func TestMask(t *testing.T) {
	t.Parallel()

	var m Mask
	assert.True(t, m.Empty())
	assert.False(t, m.Has(IPv4Method))
	assert.Nil(t, m.Clone())

	m = m.Add(IPv6DNS).Add(ConnectionID).Add(ConnectionID)
	assert.True(t, m.Has(ConnectionID))
	assert.Equal(t, []Field{ConnectionID, IPv6DNS}, m.Fields())

	c := m.Clone()
	c.Add(IPv4Method)
	assert.False(t, m.Has(IPv4Method))
}
