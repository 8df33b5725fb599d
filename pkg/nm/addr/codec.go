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

// Package addr converts NetworkManager's wire encodings of IP addresses to
// and from human text.
//
// The codec is deliberately permissive: malformed text is coerced to a zero
// address or a default prefix rather than rejected. Callers that need strict
// validation must validate before encoding.
package addr

import (
	"encoding/binary"
	"net/netip"
	"strconv"
	"strings"
)

const (
	// DefaultIPv4Prefix is used when an IPv4 tuple carries no usable prefix.
	DefaultIPv4Prefix = 24
	// DefaultIPv6Prefix is used when an IPv6 tuple carries no usable prefix.
	DefaultIPv6Prefix = 64

	// BigEndian is the byte order name reported by big-endian buses.
	BigEndian = "be"

	ipv4Octets = 4
	ipv6Groups = 8
	ipv6Len    = 16
)

// Tuple is the human form of an (address, prefix, gateway) triple.
// Prefix stays textual so a half-edited tuple survives the round trip
// through an editable view.
type Tuple struct {
	Address string `json:"address"`
	Prefix  string `json:"prefix"`
	Gateway string `json:"gateway"`
}

// IPv6Address is the wire form of an IPv6 tuple, signature (ayuay).
type IPv6Address struct {
	Address []byte
	Prefix  uint32
	Gateway []byte
}

// Codec converts addresses using one fixed byte order for packed 32-bit values.
type Codec struct {
	order binary.ByteOrder
}

// NewCodec returns a Codec for the byte order advertised by the bus.
// "be" selects big-endian; anything else selects little-endian.
func NewCodec(order string) Codec {
	if order == BigEndian {
		return Codec{order: binary.BigEndian}
	}

	return Codec{order: binary.LittleEndian}
}

func (c Codec) byteOrder() binary.ByteOrder {
	if c.order == nil {
		return binary.LittleEndian
	}

	return c.order
}

// IPv4Text renders a packed address as dotted decimal.
func (c Codec) IPv4Text(packed uint32) string {
	var b [ipv4Octets]byte

	c.byteOrder().PutUint32(b[:], packed)

	return netip.AddrFrom4(b).String()
}

// IPv4Packed is the inverse of IPv4Text. Text that does not split into
// exactly four components yields 0; an octet that does not parse becomes 0.
func (c Codec) IPv4Packed(text string) uint32 {
	parts := strings.Split(text, ".")
	if len(parts) != ipv4Octets {
		return 0
	}

	var b [ipv4Octets]byte

	for i, part := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			continue
		}

		b[i] = byte(n)
	}

	return c.byteOrder().Uint32(b[:])
}

// IPv4TupleText decodes a wire (address, prefix, gateway) triple.
func (c Codec) IPv4TupleText(wire []uint32) Tuple {
	var addr, prefix, gw uint32

	if len(wire) > 0 {
		addr = wire[0]
	}

	if len(wire) > 1 {
		prefix = wire[1]
	}

	if len(wire) > 2 {
		gw = wire[2]
	}

	return Tuple{
		Address: c.IPv4Text(addr),
		Prefix:  strconv.FormatUint(uint64(prefix), 10),
		Gateway: c.IPv4Text(gw),
	}
}

// IPv4TupleWire encodes a tuple, defaulting the prefix to 24.
func (c Codec) IPv4TupleWire(t Tuple) []uint32 {
	return []uint32{
		c.IPv4Packed(t.Address),
		parsePrefix(t.Prefix, DefaultIPv4Prefix),
		c.IPv4Packed(t.Gateway),
	}
}

// IPv6Text renders 16 bytes as eight uncompressed lowercase hex groups.
// Short input is padded with zero bytes.
func IPv6Text(b []byte) string {
	var buf [ipv6Len]byte

	copy(buf[:], b)

	groups := make([]string, ipv6Groups)
	for i := range groups {
		groups[i] = strconv.FormatUint(uint64(binary.BigEndian.Uint16(buf[2*i:])), 16)
	}

	return strings.Join(groups, ":")
}

// IPv6Bytes is the inverse of IPv6Text. Valid literals, including
// ::-compressed ones, are parsed exactly; anything else is parsed group by
// group with ill-formed or missing groups becoming 0.
func IPv6Bytes(text string) []byte {
	if a, err := netip.ParseAddr(strings.TrimSpace(text)); err == nil && a.Is6() && a.Zone() == "" {
		b := a.As16()
		return b[:]
	}

	out := make([]byte, ipv6Len)
	parts := strings.Split(text, ":")

	for i := 0; i < ipv6Groups && i < len(parts); i++ {
		n, err := strconv.ParseUint(strings.TrimSpace(parts[i]), 16, 16)
		if err != nil {
			continue
		}

		binary.BigEndian.PutUint16(out[2*i:], uint16(n))
	}

	return out
}

// IPv6TupleText decodes a wire IPv6 triple.
func IPv6TupleText(wire IPv6Address) Tuple {
	return Tuple{
		Address: IPv6Text(wire.Address),
		Prefix:  strconv.FormatUint(uint64(wire.Prefix), 10),
		Gateway: IPv6Text(wire.Gateway),
	}
}

// IPv6TupleWire encodes a tuple, defaulting the prefix to 64.
func IPv6TupleWire(t Tuple) IPv6Address {
	return IPv6Address{
		Address: IPv6Bytes(t.Address),
		Prefix:  parsePrefix(t.Prefix, DefaultIPv6Prefix),
		Gateway: IPv6Bytes(t.Gateway),
	}
}

// IPv6Text, IPv6Bytes and their tuple forms do not depend on byte order;
// the methods below let callers hold a single Codec for everything.

// IPv6Text is the method form of the package-level IPv6Text.
func (Codec) IPv6Text(b []byte) string { return IPv6Text(b) }

// IPv6Bytes is the method form of the package-level IPv6Bytes.
func (Codec) IPv6Bytes(text string) []byte { return IPv6Bytes(text) }

// IPv6TupleText is the method form of the package-level IPv6TupleText.
func (Codec) IPv6TupleText(wire IPv6Address) Tuple { return IPv6TupleText(wire) }

// IPv6TupleWire is the method form of the package-level IPv6TupleWire.
func (Codec) IPv6TupleWire(t Tuple) IPv6Address { return IPv6TupleWire(t) }

// parsePrefix mirrors the remote service's "unparsable or zero means
// default" rule.
func parsePrefix(text string, def uint32) uint32 {
	n, err := strconv.ParseUint(strings.TrimSpace(text), 10, 32)
	if err != nil || n == 0 {
		return def
	}

	return uint32(n)
}
