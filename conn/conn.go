/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package conn implements edgehop's datagram transport.
package conn

import (
	"errors"
	"net"
	"strings"
)

// ErrBindAlreadyOpen is returned by Bind.Open on a bind that is
// already receiving.
var ErrBindAlreadyOpen = errors.New("bind is already open")

// A Bind sends and receives single-event datagrams on a port for both
// IPv6 and IPv4 traffic.
type Bind interface {
	// Open binds to port on all interfaces. The value actualPort
	// reports the port the bind object got bound to, which differs
	// from port when port is zero.
	Open(port uint16) (actualPort uint16, err error)

	// Receive reads one datagram into b, reporting the number of
	// bytes read and the packet source address.
	Receive(b []byte) (n int, ep Endpoint, err error)

	// Send writes a datagram b to address ep.
	Send(b []byte, ep Endpoint) error

	// Close closes the bind, unblocking pending receives.
	Close() error
}

// An Endpoint is the remote address of a peer.
type Endpoint interface {
	DstToString() string // returns the destination address (ip:port)
	DstIP() net.IP
}

// ParseEndpoint parses an ip:port pair. Hostnames are rejected here;
// name resolution is the resolver's job, not the transport's.
func ParseEndpoint(s string) (Endpoint, error) {
	host, _, err := net.SplitHostPort(s)
	if err != nil {
		return nil, err
	}
	if i := strings.LastIndexByte(host, '%'); i > 0 && strings.IndexByte(host, ':') >= 0 {
		// Remove the scope, if any. ResolveUDPAddr below will use it, but here we're just
		// trying to make sure with a small sanity test that this is a real IP address and
		// not something that's likely to incur DNS lookups.
		host = host[:i]
	}
	if ip := net.ParseIP(host); ip == nil {
		return nil, errors.New("failed to parse IP address: " + host)
	}
	addr, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		return nil, err
	}
	ip4 := addr.IP.To4()
	if ip4 != nil {
		addr.IP = ip4
	}
	return (*StdNetEndpoint)(addr), nil
}

// EndpointFromUDPAddr adapts a resolved UDP address.
func EndpointFromUDPAddr(addr *net.UDPAddr) Endpoint {
	if ip4 := addr.IP.To4(); ip4 != nil {
		addr = &net.UDPAddr{IP: ip4, Port: addr.Port, Zone: addr.Zone}
	}
	return (*StdNetEndpoint)(addr)
}
