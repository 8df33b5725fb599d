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
	"github.com/carverauto/netmirror/pkg/bus"
	"github.com/carverauto/netmirror/pkg/nm/addr"
	"github.com/carverauto/netmirror/pkg/nm/settings"
)

// setter decodes one raw property value into a record. It returns false
// when the value has a shape it does not understand.
type setter func(e *Engine, rec *Record, raw any) bool

type setterTable map[Attr]setter

//nolint:gochecknoglobals // static dispatch table
var mergeTable = map[InterfaceKind]setterTable{
	KindManager: {
		AttrDevices: pathsSetter(func(a *Attributes) *[]bus.ObjectPath { return &a.Devices }),
		AttrActiveConnections: pathsSetter(func(a *Attributes) *[]bus.ObjectPath {
			return &a.ActiveConnections
		}),
	},
	KindDevice: {
		AttrDeviceType: func(_ *Engine, rec *Record, raw any) bool {
			n, ok := settings.AsUint32(raw)
			if ok {
				rec.attrs.DeviceType = n
			}

			return ok
		},
		AttrInterface: stringSetter(func(a *Attributes) *string { return &a.Interface }),
		AttrHwAddress: stringSetter(func(a *Attributes) *string { return &a.HwAddress }),
		AttrDriver:    stringSetter(func(a *Attributes) *string { return &a.Driver }),
		AttrState: func(_ *Engine, rec *Record, raw any) bool {
			n, ok := settings.AsUint32(raw)
			if ok {
				rec.attrs.State = DeviceStateText(n)
			}

			return ok
		},
		AttrUdi:              setUdi,
		AttrIP4Config:        pathSetter(func(a *Attributes) *bus.ObjectPath { return &a.IP4Config }),
		AttrIP6Config:        pathSetter(func(a *Attributes) *bus.ObjectPath { return &a.IP6Config }),
		AttrActiveConnection: pathSetter(func(a *Attributes) *bus.ObjectPath { return &a.ActiveConnection }),
		AttrAvailableConnections: pathsSetter(func(a *Attributes) *[]bus.ObjectPath {
			return &a.AvailableConnections
		}),
	},
	KindDeviceSpecialized: {},
	KindIP4Config: {
		AttrAddresses: func(e *Engine, rec *Record, raw any) bool {
			rows, ok := settings.AsUint32Matrix(raw)
			if !ok {
				return false
			}

			out := make([]addr.Tuple, 0, len(rows))
			for _, row := range rows {
				out = append(out, e.codec.IPv4TupleText(row))
			}

			rec.attrs.Addresses = out

			return true
		},
	},
	KindIP6Config: {
		AttrAddresses: func(_ *Engine, rec *Record, raw any) bool {
			rows, ok := settings.AsIPv6Addresses(raw)
			if !ok {
				return false
			}

			out := make([]addr.Tuple, 0, len(rows))
			for _, row := range rows {
				out = append(out, addr.IPv6TupleText(row))
			}

			rec.attrs.Addresses = out

			return true
		},
	},
	KindSettingsConnection: {
		AttrUnsaved: func(_ *Engine, rec *Record, raw any) bool {
			b, ok := unwrap(raw).(bool)
			if ok {
				rec.attrs.Unsaved = b
			}

			return ok
		},
	},
	KindActiveConnection: {
		AttrConnection: pathSetter(func(a *Attributes) *bus.ObjectPath { return &a.Connection }),
	},
}

// vendorTable merges udev metadata, which has no remote interface.
//
//nolint:gochecknoglobals // static dispatch table
var vendorTable = setterTable{
	AttrIDVendor: stringSetter(func(a *Attributes) *string { return &a.IDVendor }),
	AttrIDModel:  stringSetter(func(a *Attributes) *string { return &a.IDModel }),
}

// settersFor returns the tables that apply to payloads arriving on class.
func settersFor(class InterfaceClass) []setterTable {
	var tables []setterTable

	if t, ok := mergeTable[class.Kind]; ok && len(t) > 0 {
		tables = append(tables, t)
	}

	if class.Has(CapBaseDevice) && class.Kind != KindDevice {
		tables = append(tables, mergeTable[KindDevice])
	}

	return tables
}

// apply runs every setter whose attribute is present in props and
// returns how many attributes were merged. Attributes absent from props
// are left alone.
func (e *Engine) apply(rec *Record, tables []setterTable, props map[string]any) int {
	merged := 0

	for name, raw := range props {
		attr := Attr(name)

		for _, t := range tables {
			set, ok := t[attr]
			if !ok {
				continue
			}

			if set(e, rec, raw) {
				rec.known[attr] = struct{}{}
				merged++
			}

			break
		}
	}

	return merged
}

func stringSetter(field func(a *Attributes) *string) setter {
	return func(_ *Engine, rec *Record, raw any) bool {
		s, ok := unwrap(raw).(string)
		if ok {
			*field(&rec.attrs) = s
		}

		return ok
	}
}

func pathSetter(field func(a *Attributes) *bus.ObjectPath) setter {
	return func(e *Engine, rec *Record, raw any) bool {
		p, ok := asPath(raw)
		if !ok {
			return false
		}

		*field(&rec.attrs) = e.reference(p)

		return true
	}
}

func pathsSetter(field func(a *Attributes) *[]bus.ObjectPath) setter {
	return func(e *Engine, rec *Record, raw any) bool {
		ps, ok := asPaths(raw)
		if !ok {
			return false
		}

		out := make([]bus.ObjectPath, 0, len(ps))

		for _, p := range ps {
			if ref := e.reference(p); ref != "" {
				out = append(out, ref)
			}
		}

		*field(&rec.attrs) = out

		return true
	}
}

func setUdi(e *Engine, rec *Record, raw any) bool {
	udi, ok := unwrap(raw).(string)
	if !ok {
		return false
	}

	_, seen := rec.known[AttrUdi]
	changed := !seen || rec.attrs.Udi != udi
	rec.attrs.Udi = udi

	if changed && udi != "" {
		e.lookupVendor(rec, udi)
	}

	return true
}

// reference resolves p through the cache so the referenced record exists,
// and returns the path to store. The root path yields "".
func (e *Engine) reference(p bus.ObjectPath) bus.ObjectPath {
	if e.cache.resolve(p) == nil {
		return ""
	}

	return p
}

func unwrap(raw any) any {
	if v, ok := raw.(bus.Variant); ok {
		return unwrap(v.Value)
	}

	return raw
}

func asPath(raw any) (bus.ObjectPath, bool) {
	switch v := unwrap(raw).(type) {
	case bus.ObjectPath:
		return v, true
	case string:
		return bus.ObjectPath(v), true
	default:
		return "", false
	}
}

func asPaths(raw any) ([]bus.ObjectPath, bool) {
	switch v := unwrap(raw).(type) {
	case []bus.ObjectPath:
		return v, true
	case []string:
		out := make([]bus.ObjectPath, len(v))
		for i, s := range v {
			out[i] = bus.ObjectPath(s)
		}

		return out, true
	case []any:
		out := make([]bus.ObjectPath, 0, len(v))

		for _, item := range v {
			p, ok := asPath(item)
			if !ok {
				return nil, false
			}

			out = append(out, p)
		}

		return out, true
	default:
		return nil, false
	}
}

// asProps normalises a property payload from a signal argument.
func asProps(raw any) (map[string]any, bool) {
	switch v := unwrap(raw).(type) {
	case map[string]bus.Variant:
		return bus.StripSignatures(v), true
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = unwrap(item)
		}

		return out, true
	default:
		return nil, false
	}
}
