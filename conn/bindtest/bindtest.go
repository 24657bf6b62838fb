/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package bindtest provides a pair of conn.Binds connected to each
// other by channels, for tests that need a deterministic transport.
package bindtest

import (
	"fmt"
	"net"

	"golang.zx2c4.com/edgehop/conn"
)

type ChannelBind struct {
	rx, tx      *chan []byte
	closeSignal chan struct{}
	source      ChannelEndpoint
	target      ChannelEndpoint
}

type ChannelEndpoint uint16

var (
	_ conn.Bind     = (*ChannelBind)(nil)
	_ conn.Endpoint = ChannelEndpoint(0)
)

// NewChannelBinds creates a connected pair. Datagrams sent on one bind
// to its peer's endpoint arrive on the other; sends to any other
// endpoint vanish, like UDP to nowhere.
func NewChannelBinds() [2]conn.Bind {
	arx := make(chan []byte, 8192)
	brx := make(chan []byte, 8192)
	var binds [2]ChannelBind
	binds[0].rx = &arx
	binds[0].tx = &brx
	binds[1].rx = &brx
	binds[1].tx = &arx
	binds[0].source = ChannelEndpoint(1)
	binds[1].source = ChannelEndpoint(2)
	binds[0].target = binds[1].source
	binds[1].target = binds[0].source
	return [2]conn.Bind{&binds[0], &binds[1]}
}

func (c ChannelEndpoint) DstToString() string { return fmt.Sprintf("127.0.0.1:%d", uint16(c)) }

func (c ChannelEndpoint) DstIP() net.IP { return net.IPv4(127, 0, 0, 1) }

func (c *ChannelBind) Open(port uint16) (uint16, error) {
	if c.closeSignal != nil {
		return 0, conn.ErrBindAlreadyOpen
	}
	c.closeSignal = make(chan struct{})
	return uint16(c.source), nil
}

func (c *ChannelBind) Receive(b []byte) (int, conn.Endpoint, error) {
	select {
	case <-c.closeSignal:
		return 0, nil, net.ErrClosed
	case rx := <-*c.rx:
		return copy(b, rx), c.target, nil
	}
}

func (c *ChannelBind) Send(b []byte, ep conn.Endpoint) error {
	select {
	case <-c.closeSignal:
		return net.ErrClosed
	default:
		if ep.DstToString() != c.target.DstToString() {
			return nil
		}
		bc := make([]byte, len(b))
		copy(bc, b)
		*c.tx <- bc
	}
	return nil
}

func (c *ChannelBind) Close() error {
	if c.closeSignal != nil {
		select {
		case <-c.closeSignal:
		default:
			close(c.closeSignal)
		}
	}
	return nil
}
