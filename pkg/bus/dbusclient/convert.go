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

package dbusclient

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/godbus/dbus/v5"

	"github.com/carverauto/netmirror/pkg/bus"
)

var (
	ErrSignature   = errors.New("invalid signature")
	ErrValueLayout = errors.New("value does not match signature")
)

var (
	variantType   = reflect.TypeOf(dbus.Variant{})
	signatureType = reflect.TypeOf(dbus.Signature{})

	basicTypes = map[byte]reflect.Type{
		'y': reflect.TypeOf(byte(0)),
		'b': reflect.TypeOf(false),
		'n': reflect.TypeOf(int16(0)),
		'q': reflect.TypeOf(uint16(0)),
		'i': reflect.TypeOf(int32(0)),
		'u': reflect.TypeOf(uint32(0)),
		'x': reflect.TypeOf(int64(0)),
		't': reflect.TypeOf(uint64(0)),
		'd': reflect.TypeOf(float64(0)),
		's': reflect.TypeOf(""),
		'o': reflect.TypeOf(dbus.ObjectPath("")),
		'g': signatureType,
		'h': reflect.TypeOf(dbus.UnixFDIndex(0)),
		'v': variantType,
	}
)

// fromDBus replaces godbus types in v with their bus equivalents. Values
// without a godbus-specific type pass through unchanged.
func fromDBus(v any) any {
	switch val := v.(type) {
	case dbus.Variant:
		return variantFromDBus(val)
	case dbus.ObjectPath:
		return bus.ObjectPath(val)
	case []dbus.ObjectPath:
		out := make([]bus.ObjectPath, len(val))
		for i, p := range val {
			out[i] = bus.ObjectPath(p)
		}

		return out
	case map[string]dbus.Variant:
		return propsFromDBus(val)
	case map[string]map[string]dbus.Variant:
		return interfacesFromDBus(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromDBus(item)
		}

		return out
	default:
		return v
	}
}

func variantFromDBus(v dbus.Variant) bus.Variant {
	return bus.Variant{Signature: v.Signature().String(), Value: fromDBus(v.Value())}
}

func propsFromDBus(props map[string]dbus.Variant) map[string]bus.Variant {
	out := make(map[string]bus.Variant, len(props))
	for name, v := range props {
		out[name] = variantFromDBus(v)
	}

	return out
}

func interfacesFromDBus(ifaces map[string]map[string]dbus.Variant) map[string]map[string]bus.Variant {
	out := make(map[string]map[string]bus.Variant, len(ifaces))
	for name, props := range ifaces {
		out[name] = propsFromDBus(props)
	}

	return out
}

// toDBus is the inverse of fromDBus for method arguments. Variants are
// rebuilt against their recorded signature, so values godbus decoded
// loosely (structs as []interface{}) are sent back with the original type.
func toDBus(v any) (any, error) {
	switch val := v.(type) {
	case bus.ObjectPath:
		return dbus.ObjectPath(val), nil
	case []bus.ObjectPath:
		out := make([]dbus.ObjectPath, len(val))
		for i, p := range val {
			out[i] = dbus.ObjectPath(p)
		}

		return out, nil
	case bus.Variant:
		return variantToDBus(val)
	case map[string]bus.Variant:
		return propsToDBus(val)
	case map[string]map[string]bus.Variant:
		out := make(map[string]map[string]dbus.Variant, len(val))

		for name, props := range val {
			converted, err := propsToDBus(props)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}

			out[name] = converted
		}

		return out, nil
	case []any:
		out := make([]any, len(val))

		for i, item := range val {
			converted, err := toDBus(item)
			if err != nil {
				return nil, err
			}

			out[i] = converted
		}

		return out, nil
	default:
		return v, nil
	}
}

func variantToDBus(v bus.Variant) (dbus.Variant, error) {
	if v.Signature == "" {
		return toVariant(v.Value)
	}

	sig, err := dbus.ParseSignature(v.Signature)
	if err != nil || !sig.Single() {
		return dbus.Variant{}, fmt.Errorf("%w: %q", ErrSignature, v.Signature)
	}

	t, rest, err := typeForSignature(v.Signature)
	if err != nil {
		return dbus.Variant{}, err
	}

	if rest != "" {
		return dbus.Variant{}, fmt.Errorf("%w: %q", ErrSignature, v.Signature)
	}

	value, err := convertTo(v.Value, t)
	if err != nil {
		return dbus.Variant{}, fmt.Errorf("%s: %w", v.Signature, err)
	}

	return dbus.MakeVariantWithSignature(value.Interface(), sig), nil
}

func propsToDBus(props map[string]bus.Variant) (map[string]dbus.Variant, error) {
	out := make(map[string]dbus.Variant, len(props))

	for name, v := range props {
		converted, err := variantToDBus(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		out[name] = converted
	}

	return out, nil
}

func toVariant(v any) (dbus.Variant, error) {
	switch val := v.(type) {
	case nil:
		return dbus.Variant{}, fmt.Errorf("%w: nil variant", ErrValueLayout)
	case dbus.Variant:
		return val, nil
	case bus.Variant:
		return variantToDBus(val)
	}

	converted, err := toDBus(v)
	if err != nil {
		return dbus.Variant{}, err
	}

	return dbus.MakeVariant(converted), nil
}

// typeForSignature returns the Go type godbus encodes as the first
// complete type in sig, and the remainder of sig.
func typeForSignature(sig string) (reflect.Type, string, error) {
	if sig == "" {
		return nil, "", fmt.Errorf("%w: truncated", ErrSignature)
	}

	if t, ok := basicTypes[sig[0]]; ok {
		return t, sig[1:], nil
	}

	switch sig[0] {
	case 'a':
		if len(sig) > 1 && sig[1] == '{' {
			key, rest, err := typeForSignature(sig[2:])
			if err != nil {
				return nil, "", err
			}

			elem, rest, err := typeForSignature(rest)
			if err != nil {
				return nil, "", err
			}

			if rest == "" || rest[0] != '}' {
				return nil, "", fmt.Errorf("%w: unterminated dict entry", ErrSignature)
			}

			return reflect.MapOf(key, elem), rest[1:], nil
		}

		elem, rest, err := typeForSignature(sig[1:])
		if err != nil {
			return nil, "", err
		}

		return reflect.SliceOf(elem), rest, nil
	case '(':
		var fields []reflect.StructField

		rest := sig[1:]
		for rest != "" && rest[0] != ')' {
			ft, r, err := typeForSignature(rest)
			if err != nil {
				return nil, "", err
			}

			fields = append(fields, reflect.StructField{Name: fmt.Sprintf("F%d", len(fields)), Type: ft})
			rest = r
		}

		if rest == "" || len(fields) == 0 {
			return nil, "", fmt.Errorf("%w: bad struct", ErrSignature)
		}

		return reflect.StructOf(fields), rest[1:], nil
	}

	return nil, "", fmt.Errorf("%w: unknown type code %q", ErrSignature, sig[0])
}

// convertTo rebuilds v as a value of type t.
func convertTo(v any, t reflect.Type) (reflect.Value, error) {
	if t == variantType {
		dv, err := toVariant(v)

		return reflect.ValueOf(dv), err
	}

	switch val := v.(type) {
	case nil:
		return reflect.Value{}, fmt.Errorf("%w: nil for %s", ErrValueLayout, t)
	case bus.ObjectPath:
		v = dbus.ObjectPath(val)
	case string:
		if t == signatureType {
			sig, err := dbus.ParseSignature(val)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%w: %q", ErrSignature, val)
			}

			return reflect.ValueOf(sig), nil
		}
	}

	rv := reflect.ValueOf(v)
	if rv.Type() == t {
		return rv, nil
	}

	switch t.Kind() {
	case reflect.Slice:
		return convertSlice(rv, t)
	case reflect.Map:
		return convertMap(rv, t)
	case reflect.Struct:
		return convertStruct(rv, t)
	}

	if sameKindClass(rv.Kind(), t.Kind()) && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}

	return reflect.Value{}, fmt.Errorf("%w: %s for %s", ErrValueLayout, rv.Type(), t)
}

func convertSlice(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return reflect.Value{}, fmt.Errorf("%w: %s for %s", ErrValueLayout, rv.Type(), t)
	}

	out := reflect.MakeSlice(t, rv.Len(), rv.Len())

	for i := range rv.Len() {
		ev, err := convertTo(rv.Index(i).Interface(), t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}

		out.Index(i).Set(ev)
	}

	return out, nil
}

func convertMap(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	if rv.Kind() != reflect.Map {
		return reflect.Value{}, fmt.Errorf("%w: %s for %s", ErrValueLayout, rv.Type(), t)
	}

	out := reflect.MakeMapWithSize(t, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		k, err := convertTo(iter.Key().Interface(), t.Key())
		if err != nil {
			return reflect.Value{}, err
		}

		ev, err := convertTo(iter.Value().Interface(), t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}

		out.SetMapIndex(k, ev)
	}

	return out, nil
}

// convertStruct accepts the []interface{} form godbus decodes structs
// into, or any struct with the same number of exported fields.
func convertStruct(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Len() != t.NumField() {
			return reflect.Value{}, fmt.Errorf("%w: %d members for %s", ErrValueLayout, rv.Len(), t)
		}

		for i := range t.NumField() {
			fv, err := convertTo(rv.Index(i).Interface(), t.Field(i).Type)
			if err != nil {
				return reflect.Value{}, err
			}

			out.Field(i).Set(fv)
		}
	case reflect.Struct:
		if rv.NumField() != t.NumField() {
			return reflect.Value{}, fmt.Errorf("%w: %s for %s", ErrValueLayout, rv.Type(), t)
		}

		for i := range t.NumField() {
			if !rv.Type().Field(i).IsExported() {
				return reflect.Value{}, fmt.Errorf("%w: unexported field in %s", ErrValueLayout, rv.Type())
			}

			fv, err := convertTo(rv.Field(i).Interface(), t.Field(i).Type)
			if err != nil {
				return reflect.Value{}, err
			}

			out.Field(i).Set(fv)
		}
	default:
		return reflect.Value{}, fmt.Errorf("%w: %s for %s", ErrValueLayout, rv.Type(), t)
	}

	return out, nil
}

func sameKindClass(a, b reflect.Kind) bool {
	if a == b {
		return true
	}

	return isNumeric(a) && isNumeric(b)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
