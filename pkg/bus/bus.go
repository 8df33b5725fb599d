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

// Package bus defines the boundary between the NetworkManager mirror and the
// object/property-change bus it observes.
package bus

import (
	"context"
	"strings"
)

// ObjectPath identifies a remote object.
type ObjectPath string

// RootPath denotes "no object" and is never cached.
const RootPath ObjectPath = "/"

// IsRoot reports whether p is empty or the root path.
func (p ObjectPath) IsRoot() bool {
	return p == "" || p == RootPath
}

// HasPrefix reports whether p lives under the given path prefix.
func (p ObjectPath) HasPrefix(prefix string) bool {
	return strings.HasPrefix(string(p), prefix)
}

// Variant is a wire value tagged with its type signature.
type Variant struct {
	Signature string
	Value     any
}

// Object is one remote object together with the interfaces it implements
// and the current properties of each interface.
type Object struct {
	Path       ObjectPath
	Interfaces map[string]map[string]Variant
}

// Signal is a decoded signal emission.
type Signal struct {
	Path      ObjectPath
	Interface string
	Name      string
	Args      []any
}

// Handler receives bus events. Implementations must not block.
type Handler interface {
	ObjectAdded(obj Object)
	ObjectRemoved(obj Object)
	InterfaceAdded(path ObjectPath, iface string, props map[string]Variant)
	InterfaceRemoved(path ObjectPath, iface string)
	SignalEmitted(sig Signal)
}

// Subscription detaches a Handler from a Client.
type Subscription interface {
	Unsubscribe()
}

// Client is the transport-level bus connection consumed by the engine.
type Client interface {
	// ByteOrder reports how packed 32-bit values are laid out: "be" or "le".
	ByteOrder() string

	// Objects returns every object currently exported by the remote service.
	Objects(ctx context.Context) ([]Object, error)

	// Subscribe delivers discovery and signal events to h until the
	// subscription is cancelled.
	Subscribe(h Handler) (Subscription, error)

	// GetAll fetches every property of iface on path.
	GetAll(ctx context.Context, path ObjectPath, iface string) (map[string]Variant, error)

	// Call invokes iface.method on path and returns the reply body.
	Call(ctx context.Context, path ObjectPath, iface, method string, args ...any) ([]any, error)

	// Close releases the connection.
	Close() error
}

// StripSignatures drops the type tags from a property payload.
func StripSignatures(props map[string]Variant) map[string]any {
	out := make(map[string]any, len(props))

	for name, v := range props {
		out[name] = v.Value
	}

	return out
}

// SubscriptionFunc adapts a plain function to Subscription.
type SubscriptionFunc func()

// Unsubscribe implements Subscription.
func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}
