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

// The helpers below accept the shapes a bus client may hand back for the
// same signature: concrete slices when the decoder knows the element type,
// []any when it does not.

// AsUint32 coerces an unsigned wire integer.
func AsUint32(raw any) (uint32, bool) {
	switch v := raw.(type) {
	case uint32:
		return v, true
	case uint8:
		return uint32(v), true
	case uint16:
		return uint32(v), true
	case uint64:
		return uint32(v), true
	case int32:
		return uint32(v), true
	case int64:
		return uint32(v), true
	case int:
		return uint32(v), true
	case bus.Variant:
		return AsUint32(v.Value)
	default:
		return 0, false
	}
}

func asUint32Slice(raw any) ([]uint32, bool) {
	switch v := raw.(type) {
	case []uint32:
		return v, true
	case []any:
		out := make([]uint32, 0, len(v))

		for _, item := range v {
			n, ok := AsUint32(item)
			if !ok {
				return nil, false
			}

			out = append(out, n)
		}

		return out, true
	case bus.Variant:
		return asUint32Slice(v.Value)
	default:
		return nil, false
	}
}

// AsUint32Matrix coerces an aau value.
func AsUint32Matrix(raw any) ([][]uint32, bool) {
	return asUint32Matrix(raw)
}

func asUint32Matrix(raw any) ([][]uint32, bool) {
	switch v := raw.(type) {
	case [][]uint32:
		return v, true
	case []any:
		out := make([][]uint32, 0, len(v))

		for _, item := range v {
			row, ok := asUint32Slice(item)
			if !ok {
				return nil, false
			}

			out = append(out, row)
		}

		return out, true
	case bus.Variant:
		return asUint32Matrix(v.Value)
	default:
		return nil, false
	}
}

func asBytes(raw any) ([]byte, bool) {
	switch v := raw.(type) {
	case []byte:
		return v, true
	case []any:
		out := make([]byte, 0, len(v))

		for _, item := range v {
			n, ok := AsUint32(item)
			if !ok {
				return nil, false
			}

			out = append(out, byte(n))
		}

		return out, true
	case bus.Variant:
		return asBytes(v.Value)
	default:
		return nil, false
	}
}

func asBytesList(raw any) ([][]byte, bool) {
	switch v := raw.(type) {
	case [][]byte:
		return v, true
	case []any:
		out := make([][]byte, 0, len(v))

		for _, item := range v {
			b, ok := asBytes(item)
			if !ok {
				return nil, false
			}

			out = append(out, b)
		}

		return out, true
	case bus.Variant:
		return asBytesList(v.Value)
	default:
		return nil, false
	}
}

// AsIPv6Addresses coerces an a(ayuay) value.
func AsIPv6Addresses(raw any) ([]addr.IPv6Address, bool) {
	return asIPv6Addresses(raw)
}

func asIPv6Addresses(raw any) ([]addr.IPv6Address, bool) {
	switch v := raw.(type) {
	case []addr.IPv6Address:
		return v, true
	case [][]any:
		out := make([]addr.IPv6Address, 0, len(v))

		for _, row := range v {
			a, ok := ipv6Struct(row)
			if !ok {
				return nil, false
			}

			out = append(out, a)
		}

		return out, true
	case []any:
		out := make([]addr.IPv6Address, 0, len(v))

		for _, item := range v {
			var (
				a  addr.IPv6Address
				ok bool
			)

			switch row := item.(type) {
			case addr.IPv6Address:
				a, ok = row, true
			case []any:
				a, ok = ipv6Struct(row)
			}

			if !ok {
				return nil, false
			}

			out = append(out, a)
		}

		return out, true
	case bus.Variant:
		return asIPv6Addresses(v.Value)
	default:
		return nil, false
	}
}

func ipv6Struct(fields []any) (addr.IPv6Address, bool) {
	if len(fields) != 3 {
		return addr.IPv6Address{}, false
	}

	address, ok := asBytes(fields[0])
	if !ok {
		return addr.IPv6Address{}, false
	}

	prefix, ok := AsUint32(fields[1])
	if !ok {
		return addr.IPv6Address{}, false
	}

	gateway, ok := asBytes(fields[2])
	if !ok {
		return addr.IPv6Address{}, false
	}

	return addr.IPv6Address{Address: address, Prefix: prefix, Gateway: gateway}, true
}
