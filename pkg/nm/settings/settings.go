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

// Package settings transcodes NetworkManager connection settings documents
// into an editable view and back.
package settings

import (
	"slices"

	"github.com/carverauto/netmirror/pkg/bus"
	"github.com/carverauto/netmirror/pkg/nm/addr"
)

// Wire is a connection settings document as exchanged on the bus (a{sa{sv}}).
type Wire map[string]map[string]bus.Variant

// View is the human-editable form of a connection profile.
type View struct {
	Connection ConnectionSettings `json:"connection"`
	IPv4       IPSettings         `json:"ipv4"`
	IPv6       IPSettings         `json:"ipv6"`
}

// ConnectionSettings holds the "connection" section.
type ConnectionSettings struct {
	ID          string `json:"id"`
	Autoconnect bool   `json:"autoconnect"`
}

// IPSettings holds an "ipv4" or "ipv6" section.
type IPSettings struct {
	Method    string       `json:"method"`
	Addresses []addr.Tuple `json:"addresses"`
	DNS       []string     `json:"dns"`
}

// Clone returns a deep copy of v.
func (v View) Clone() View {
	out := v
	out.IPv4 = v.IPv4.clone()
	out.IPv6 = v.IPv6.clone()

	return out
}

func (s IPSettings) clone() IPSettings {
	out := s
	out.Addresses = slices.Clone(s.Addresses)
	out.DNS = slices.Clone(s.DNS)

	return out
}

// Field names one (section, field) pair of the settings document.
type Field struct {
	Section string
	Name    string
}

func (f Field) String() string {
	return f.Section + "." + f.Name
}

// Fields understood by the transcoder.
var (
	ConnectionID          = Field{Section: "connection", Name: "id"}
	ConnectionAutoconnect = Field{Section: "connection", Name: "autoconnect"}
	IPv4Method            = Field{Section: "ipv4", Name: "method"}
	IPv4Addresses         = Field{Section: "ipv4", Name: "addresses"}
	IPv4DNS               = Field{Section: "ipv4", Name: "dns"}
	IPv6Method            = Field{Section: "ipv6", Name: "method"}
	IPv6Addresses         = Field{Section: "ipv6", Name: "addresses"}
	IPv6DNS               = Field{Section: "ipv6", Name: "dns"}
)

// Mask is the set of fields edited locally but not yet committed.
// A nil Mask means no pending edits.
type Mask map[Field]struct{}

// Add marks f as pending. It allocates m when nil and returns it.
func (m Mask) Add(f Field) Mask {
	if m == nil {
		m = make(Mask)
	}

	m[f] = struct{}{}

	return m
}

// Has reports whether f is pending.
func (m Mask) Has(f Field) bool {
	_, ok := m[f]
	return ok
}

// Empty reports whether no field is pending.
func (m Mask) Empty() bool {
	return len(m) == 0
}

// Clone copies m; the copy of an empty mask is nil.
func (m Mask) Clone() Mask {
	if len(m) == 0 {
		return nil
	}

	out := make(Mask, len(m))
	for f := range m {
		out[f] = struct{}{}
	}

	return out
}

// Fields lists the pending fields in transcoder order.
func (m Mask) Fields() []Field {
	var out []Field

	for _, spec := range fieldTable {
		if m.Has(spec.field) {
			out = append(out, spec.field)
		}
	}

	return out
}

// Clone returns a copy of w whose maps and nested slices are not shared
// with w.
func (w Wire) Clone() Wire {
	if w == nil {
		return nil
	}

	out := make(Wire, len(w))

	for section, fields := range w {
		copied := make(map[string]bus.Variant, len(fields))
		for name, v := range fields {
			copied[name] = bus.Variant{Signature: v.Signature, Value: copyValue(v.Value)}
		}

		out[section] = copied
	}

	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return slices.Clone(val)
	case []uint32:
		return slices.Clone(val)
	case []string:
		return slices.Clone(val)
	case [][]byte:
		if val == nil {
			return val
		}

		out := make([][]byte, len(val))
		for i := range val {
			out[i] = slices.Clone(val[i])
		}

		return out
	case [][]uint32:
		if val == nil {
			return val
		}

		out := make([][]uint32, len(val))
		for i := range val {
			out[i] = slices.Clone(val[i])
		}

		return out
	case []any:
		if val == nil {
			return val
		}

		out := make([]any, len(val))
		for i := range val {
			out[i] = copyValue(val[i])
		}

		return out
	case [][]any:
		if val == nil {
			return val
		}

		out := make([][]any, len(val))
		for i := range val {
			out[i], _ = copyValue(val[i]).([]any)
		}

		return out
	case []addr.IPv6Address:
		if val == nil {
			return val
		}

		out := make([]addr.IPv6Address, len(val))
		for i := range val {
			out[i] = addr.IPv6Address{
				Address: slices.Clone(val[i].Address),
				Prefix:  val[i].Prefix,
				Gateway: slices.Clone(val[i].Gateway),
			}
		}

		return out
	case map[string]bus.Variant:
		if val == nil {
			return val
		}

		out := make(map[string]bus.Variant, len(val))
		for k, inner := range val {
			out[k] = bus.Variant{Signature: inner.Signature, Value: copyValue(inner.Value)}
		}

		return out
	case map[string]any:
		if val == nil {
			return val
		}

		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = copyValue(inner)
		}

		return out
	default:
		return v
	}
}
