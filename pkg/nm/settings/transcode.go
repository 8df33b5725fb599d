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
	"github.com/carverauto/netmirror/pkg/bus"
	"github.com/carverauto/netmirror/pkg/nm/addr"
)

// DefaultConnectionID is shown for profiles without a name.
const DefaultConnectionID = "Unknown"

// DefaultMethod is the IP configuration method assumed when none is set.
const DefaultMethod = "auto"

// fieldSpec binds one Field to its wire signature, default, and codecs.
type fieldSpec struct {
	field     Field
	signature string
	reset     func(v *View)
	keep      func(dst, src *View)
	decode    func(c addr.Codec, raw any, v *View) bool
	encode    func(c addr.Codec, v *View) any
}

var fieldTable = []fieldSpec{
	{
		field:     ConnectionID,
		signature: "s",
		reset:     func(v *View) { v.Connection.ID = DefaultConnectionID },
		keep:      func(dst, src *View) { dst.Connection.ID = src.Connection.ID },
		decode: func(_ addr.Codec, raw any, v *View) bool {
			s, ok := raw.(string)
			v.Connection.ID = s

			return ok
		},
		encode: func(_ addr.Codec, v *View) any { return v.Connection.ID },
	},
	{
		field:     ConnectionAutoconnect,
		signature: "b",
		reset:     func(v *View) { v.Connection.Autoconnect = true },
		keep:      func(dst, src *View) { dst.Connection.Autoconnect = src.Connection.Autoconnect },
		decode: func(_ addr.Codec, raw any, v *View) bool {
			b, ok := raw.(bool)
			v.Connection.Autoconnect = b

			return ok
		},
		encode: func(_ addr.Codec, v *View) any { return v.Connection.Autoconnect },
	},
	methodSpec(IPv4Method, func(v *View) *IPSettings { return &v.IPv4 }),
	{
		field:     IPv4Addresses,
		signature: "aau",
		reset:     func(v *View) { v.IPv4.Addresses = []addr.Tuple{} },
		keep:      func(dst, src *View) { dst.IPv4.Addresses = src.IPv4.clone().Addresses },
		decode: func(c addr.Codec, raw any, v *View) bool {
			rows, ok := asUint32Matrix(raw)
			if !ok {
				return false
			}

			v.IPv4.Addresses = make([]addr.Tuple, 0, len(rows))
			for _, row := range rows {
				v.IPv4.Addresses = append(v.IPv4.Addresses, c.IPv4TupleText(row))
			}

			return true
		},
		encode: func(c addr.Codec, v *View) any {
			out := make([][]uint32, 0, len(v.IPv4.Addresses))
			for _, t := range v.IPv4.Addresses {
				out = append(out, c.IPv4TupleWire(t))
			}

			return out
		},
	},
	{
		field:     IPv4DNS,
		signature: "au",
		reset:     func(v *View) { v.IPv4.DNS = []string{} },
		keep:      func(dst, src *View) { dst.IPv4.DNS = src.IPv4.clone().DNS },
		decode: func(c addr.Codec, raw any, v *View) bool {
			packed, ok := asUint32Slice(raw)
			if !ok {
				return false
			}

			v.IPv4.DNS = make([]string, 0, len(packed))
			for _, p := range packed {
				v.IPv4.DNS = append(v.IPv4.DNS, c.IPv4Text(p))
			}

			return true
		},
		encode: func(c addr.Codec, v *View) any {
			out := make([]uint32, 0, len(v.IPv4.DNS))
			for _, s := range v.IPv4.DNS {
				out = append(out, c.IPv4Packed(s))
			}

			return out
		},
	},
	methodSpec(IPv6Method, func(v *View) *IPSettings { return &v.IPv6 }),
	{
		field:     IPv6Addresses,
		signature: "a(ayuay)",
		reset:     func(v *View) { v.IPv6.Addresses = []addr.Tuple{} },
		keep:      func(dst, src *View) { dst.IPv6.Addresses = src.IPv6.clone().Addresses },
		decode: func(c addr.Codec, raw any, v *View) bool {
			rows, ok := asIPv6Addresses(raw)
			if !ok {
				return false
			}

			v.IPv6.Addresses = make([]addr.Tuple, 0, len(rows))
			for _, row := range rows {
				v.IPv6.Addresses = append(v.IPv6.Addresses, c.IPv6TupleText(row))
			}

			return true
		},
		encode: func(c addr.Codec, v *View) any {
			out := make([]addr.IPv6Address, 0, len(v.IPv6.Addresses))
			for _, t := range v.IPv6.Addresses {
				out = append(out, c.IPv6TupleWire(t))
			}

			return out
		},
	},
	{
		field:     IPv6DNS,
		signature: "aay",
		reset:     func(v *View) { v.IPv6.DNS = []string{} },
		keep:      func(dst, src *View) { dst.IPv6.DNS = src.IPv6.clone().DNS },
		decode: func(c addr.Codec, raw any, v *View) bool {
			list, ok := asBytesList(raw)
			if !ok {
				return false
			}

			v.IPv6.DNS = make([]string, 0, len(list))
			for _, b := range list {
				v.IPv6.DNS = append(v.IPv6.DNS, c.IPv6Text(b))
			}

			return true
		},
		encode: func(c addr.Codec, v *View) any {
			out := make([][]byte, 0, len(v.IPv6.DNS))
			for _, s := range v.IPv6.DNS {
				out = append(out, c.IPv6Bytes(s))
			}

			return out
		},
	},
}

func methodSpec(f Field, section func(v *View) *IPSettings) fieldSpec {
	return fieldSpec{
		field:     f,
		signature: "s",
		reset:     func(v *View) { section(v).Method = DefaultMethod },
		keep:      func(dst, src *View) { section(dst).Method = section(src).Method },
		decode: func(_ addr.Codec, raw any, v *View) bool {
			s, ok := raw.(string)
			section(v).Method = s

			return ok
		},
		encode: func(_ addr.Codec, v *View) any { return section(v).Method },
	}
}

// Signature returns the wire type signature of f, or "" for unknown fields.
func Signature(f Field) string {
	for _, spec := range fieldTable {
		if spec.field == f {
			return spec.signature
		}
	}

	return ""
}

// AllFields lists every field the transcoder understands.
func AllFields() []Field {
	out := make([]Field, 0, len(fieldTable))
	for _, spec := range fieldTable {
		out = append(out, spec.field)
	}

	return out
}

// Defaults returns a view with every field at its default.
func Defaults() View {
	var v View

	for _, spec := range fieldTable {
		spec.reset(&v)
	}

	return v
}

// FromNM builds a view from a wire document. Fields pending in mask keep
// their value from prev, so a remote refresh never clobbers a local edit.
// Missing or unrecognised wire fields fall back to their defaults.
func FromNM(c addr.Codec, wire Wire, prev *View, mask Mask) View {
	var out View

	for _, spec := range fieldTable {
		if mask.Has(spec.field) {
			if prev != nil {
				spec.keep(&out, prev)
			} else {
				spec.reset(&out)
			}

			continue
		}

		if raw, ok := wire[spec.field.Section][spec.field.Name]; ok && spec.decode(c, raw.Value, &out) {
			continue
		}

		spec.reset(&out)
	}

	return out
}

// ToNM overlays the pending fields of view onto a copy of orig. Fields not
// in mask are left exactly as they were in orig.
func ToNM(c addr.Codec, orig Wire, view View, mask Mask) Wire {
	out := orig.Clone()
	if mask.Empty() {
		return out
	}

	if out == nil {
		out = make(Wire)
	}

	for _, spec := range fieldTable {
		if !mask.Has(spec.field) {
			continue
		}

		section, ok := out[spec.field.Section]
		if !ok {
			section = make(map[string]bus.Variant)
			out[spec.field.Section] = section
		}

		section[spec.field.Name] = bus.Variant{
			Signature: spec.signature,
			Value:     spec.encode(c, &view),
		}
	}

	return out
}
