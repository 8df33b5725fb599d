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

// Package dbusclient connects the mirror to NetworkManager over D-Bus.
package dbusclient

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/carverauto/netmirror/pkg/bus"
	"github.com/carverauto/netmirror/pkg/logger"
)

const (
	// SystemBus selects the local system bus.
	SystemBus = "system"

	signalBuffer = 64
)

var (
	ErrAlreadySubscribed = errors.New("client already has a subscriber")
	ErrClosed            = errors.New("client is closed")
)

// Client is a bus.Client over a godbus connection.
type Client struct {
	conn *dbus.Conn
	log  logger.Logger

	mu      sync.Mutex
	known   map[bus.ObjectPath]map[string]struct{}
	handler bus.Handler
	signals chan *dbus.Signal
	done    chan struct{}
	closed  bool
}

var _ bus.Client = (*Client)(nil)

// Dial connects to address. SystemBus or "" selects the system bus;
// anything else is a D-Bus address such as unix:path=/run/dbus/socket.
func Dial(ctx context.Context, address string, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	var (
		conn *dbus.Conn
		err  error
	)

	if address == "" || address == SystemBus {
		conn, err = dbus.ConnectSystemBus(dbus.WithContext(ctx))
	} else {
		conn, err = dbus.Connect(address, dbus.WithContext(ctx))
	}

	if err != nil {
		return nil, fmt.Errorf("connect to %q: %w", address, err)
	}

	log.Debug().Str("address", address).Msg("Connected to D-Bus")

	return &Client{
		conn:  conn,
		log:   log,
		known: make(map[bus.ObjectPath]map[string]struct{}),
	}, nil
}

// ByteOrder reports the host byte order. NetworkManager packs IPv4
// addresses in network order inside host-order integers.
func (*Client) ByteOrder() string {
	if binary.NativeEndian.Uint16([]byte{0, 1}) == 1 {
		return "be"
	}

	return "le"
}

func (c *Client) object(path bus.ObjectPath) dbus.BusObject {
	return c.conn.Object(bus.NetworkManager, dbus.ObjectPath(path))
}

// Objects lists every object NetworkManager exports.
func (c *Client) Objects(ctx context.Context) ([]bus.Object, error) {
	var managed map[dbus.ObjectPath]map[string]map[string]dbus.Variant

	call := c.object(bus.ObjectManagerPath).CallWithContext(ctx,
		bus.ObjectManagerInterface+"."+bus.MethodGetManagedObjects, 0)
	if call.Err != nil {
		return nil, fmt.Errorf("get managed objects: %w", call.Err)
	}

	if err := call.Store(&managed); err != nil {
		return nil, fmt.Errorf("decode managed objects: %w", err)
	}

	out := make([]bus.Object, 0, len(managed))

	c.mu.Lock()
	defer c.mu.Unlock()

	for path, ifaces := range managed {
		obj := bus.Object{Path: bus.ObjectPath(path), Interfaces: interfacesFromDBus(ifaces)}
		c.remember(obj.Path, obj.Interfaces)
		out = append(out, obj)
	}

	return out, nil
}

// GetAll fetches every property of iface on path.
func (c *Client) GetAll(ctx context.Context, path bus.ObjectPath, iface string) (map[string]bus.Variant, error) {
	var props map[string]dbus.Variant

	call := c.object(path).CallWithContext(ctx, bus.PropertiesInterface+"."+bus.MethodGetAll, 0, iface)
	if call.Err != nil {
		return nil, fmt.Errorf("get properties of %s on %s: %w", iface, path, call.Err)
	}

	if err := call.Store(&props); err != nil {
		return nil, fmt.Errorf("decode properties of %s on %s: %w", iface, path, err)
	}

	return propsFromDBus(props), nil
}

// Call invokes iface.method on path.
func (c *Client) Call(ctx context.Context, path bus.ObjectPath, iface, method string, args ...any) ([]any, error) {
	converted := make([]any, len(args))

	for i, a := range args {
		v, err := toDBus(a)
		if err != nil {
			return nil, fmt.Errorf("encode argument %d of %s.%s: %w", i, iface, method, err)
		}

		converted[i] = v
	}

	call := c.object(path).CallWithContext(ctx, iface+"."+method, 0, converted...)
	if call.Err != nil {
		return nil, call.Err
	}

	out := make([]any, len(call.Body))
	for i, v := range call.Body {
		out[i] = fromDBus(v)
	}

	return out, nil
}

// Subscribe starts delivering NetworkManager signals to h. Only one
// subscriber is supported.
func (c *Client) Subscribe(h bus.Handler) (bus.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	if c.handler != nil {
		return nil, ErrAlreadySubscribed
	}

	if err := c.conn.AddMatchSignal(dbus.WithMatchSender(bus.NetworkManager)); err != nil {
		return nil, fmt.Errorf("add signal match: %w", err)
	}

	c.handler = h
	c.signals = make(chan *dbus.Signal, signalBuffer)
	c.done = make(chan struct{})
	c.conn.Signal(c.signals)

	go c.dispatch(c.signals, c.done)

	return bus.SubscriptionFunc(c.unsubscribe), nil
}

func (c *Client) unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handler == nil {
		return
	}

	c.conn.RemoveSignal(c.signals)

	if err := c.conn.RemoveMatchSignal(dbus.WithMatchSender(bus.NetworkManager)); err != nil {
		c.log.Debug().Err(err).Msg("Failed to remove signal match")
	}

	close(c.done)
	c.handler = nil
	c.signals = nil
	c.done = nil
}

func (c *Client) dispatch(signals <-chan *dbus.Signal, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}

			c.deliver(sig)
		}
	}
}

// deliver translates one godbus signal into handler callbacks.
func (c *Client) deliver(sig *dbus.Signal) {
	iface, name := splitMember(sig.Name)

	c.mu.Lock()
	h := c.handler

	if h == nil {
		c.mu.Unlock()

		return
	}

	var events []func()

	switch {
	case iface == bus.ObjectManagerInterface && name == bus.SignalInterfacesAdded:
		events = c.interfacesAdded(h, sig.Body)
	case iface == bus.ObjectManagerInterface && name == bus.SignalInterfacesRemoved:
		events = c.interfacesRemoved(h, sig.Body)
	default:
		args := make([]any, len(sig.Body))
		for i, v := range sig.Body {
			args[i] = fromDBus(v)
		}

		s := bus.Signal{Path: bus.ObjectPath(sig.Path), Interface: iface, Name: name, Args: args}
		events = []func(){func() { h.SignalEmitted(s) }}
	}
	c.mu.Unlock()

	for _, ev := range events {
		ev()
	}
}

// interfacesAdded reports a first sighting as a new object and anything
// later as added interfaces. Requires c.mu.
func (c *Client) interfacesAdded(h bus.Handler, body []any) []func() {
	if len(body) < 2 {
		return nil
	}

	path, ok := body[0].(dbus.ObjectPath)
	if !ok {
		return nil
	}

	raw, ok := body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return nil
	}

	p := bus.ObjectPath(path)
	ifaces := interfacesFromDBus(raw)

	_, seen := c.known[p]
	c.remember(p, ifaces)

	if !seen {
		obj := bus.Object{Path: p, Interfaces: ifaces}

		return []func(){func() { h.ObjectAdded(obj) }}
	}

	events := make([]func(), 0, len(ifaces))

	for name, props := range ifaces {
		events = append(events, func() { h.InterfaceAdded(p, name, props) })
	}

	return events
}

// interfacesRemoved reports an object whose last interface went away as
// removed. Requires c.mu.
func (c *Client) interfacesRemoved(h bus.Handler, body []any) []func() {
	if len(body) < 2 {
		return nil
	}

	path, ok := body[0].(dbus.ObjectPath)
	if !ok {
		return nil
	}

	names, ok := body[1].([]string)
	if !ok {
		return nil
	}

	p := bus.ObjectPath(path)
	have := c.known[p]

	for _, name := range names {
		delete(have, name)
	}

	if len(have) == 0 {
		delete(c.known, p)

		return []func(){func() { h.ObjectRemoved(bus.Object{Path: p}) }}
	}

	events := make([]func(), 0, len(names))

	for _, name := range names {
		events = append(events, func() { h.InterfaceRemoved(p, name) })
	}

	return events
}

func (c *Client) remember(path bus.ObjectPath, ifaces map[string]map[string]bus.Variant) {
	have, ok := c.known[path]
	if !ok {
		have = make(map[string]struct{}, len(ifaces))
		c.known[path] = have
	}

	for name := range ifaces {
		have[name] = struct{}{}
	}
}

// Close unsubscribes and closes the connection.
func (c *Client) Close() error {
	c.unsubscribe()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	c.mu.Unlock()

	return c.conn.Close()
}

// splitMember splits "org.freedesktop.DBus.Properties.PropertiesChanged"
// into its interface and member.
func splitMember(full string) (string, string) {
	i := strings.LastIndexByte(full, '.')
	if i < 0 {
		return "", full
	}

	return full[:i], full[i+1:]
}
