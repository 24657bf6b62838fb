/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package conn

import (
	"errors"
	"net"
	"sync"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// maxDatagramSize is the receive buffer size per datagram. The
// protocol caps packets at 1200 bytes; anything longer is not ours.
const maxDatagramSize = 1200

// batchSize is how many datagrams one recvmmsg may return. Relative
// pointer motion arrives in bursts well above the syscall rate worth
// paying per event.
const batchSize = 8

// StdNetBind implements Bind using Go's net package with a single
// dual-stack UDP socket. Reads are batched through
// golang.org/x/net/ipv6 (recvmmsg where the platform has it, one
// datagram per call elsewhere).
type StdNetBind struct {
	mu     sync.Mutex
	conn   *net.UDPConn
	batch  batchReader
	msgs   []ipv6.Message
	next   int
	count  int
	single bool
}

// batchReader is satisfied by both ipv4.PacketConn and
// ipv6.PacketConn; their Message types are one and the same.
type batchReader interface {
	ReadBatch(ms []ipv6.Message, flags int) (int, error)
}

type StdNetEndpoint net.UDPAddr

var (
	_ Bind     = (*StdNetBind)(nil)
	_ Endpoint = (*StdNetEndpoint)(nil)
)

func NewStdNetBind() Bind { return &StdNetBind{} }

func (e *StdNetEndpoint) DstIP() net.IP {
	return (*net.UDPAddr)(e).IP
}

func (e *StdNetEndpoint) DstToString() string {
	return (*net.UDPAddr)(e).String()
}

func (e *StdNetEndpoint) UDPAddr() *net.UDPAddr {
	return (*net.UDPAddr)(e)
}

func (bind *StdNetBind) Open(port uint16) (uint16, error) {
	bind.mu.Lock()
	defer bind.mu.Unlock()

	if bind.conn != nil {
		return 0, ErrBindAlreadyOpen
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(port)})
	if err == nil {
		bind.batch = ipv6.NewPacketConn(conn)
	} else if errors.Is(err, syscall.EAFNOSUPPORT) {
		conn, err = net.ListenUDP("udp4", &net.UDPAddr{Port: int(port)})
		if err == nil {
			bind.batch = ipv4.NewPacketConn(conn)
		}
	}
	if err != nil {
		return 0, err
	}

	bind.conn = conn
	bind.msgs = make([]ipv6.Message, batchSize)
	for i := range bind.msgs {
		bind.msgs[i].Buffers = [][]byte{make([]byte, maxDatagramSize)}
	}
	bind.next, bind.count = 0, 0
	return uint16(conn.LocalAddr().(*net.UDPAddr).Port), nil
}

func (bind *StdNetBind) Receive(b []byte) (int, Endpoint, error) {
	for bind.next >= bind.count {
		if err := bind.fill(); err != nil {
			return 0, nil, err
		}
	}
	msg := &bind.msgs[bind.next]
	bind.next++
	n := copy(b, msg.Buffers[0][:msg.N])
	addr, ok := msg.Addr.(*net.UDPAddr)
	if !ok {
		return 0, nil, errors.New("unexpected source address type")
	}
	return n, EndpointFromUDPAddr(addr), nil
}

func (bind *StdNetBind) fill() error {
	bind.mu.Lock()
	conn, batch := bind.conn, bind.batch
	bind.mu.Unlock()
	if conn == nil {
		return net.ErrClosed
	}
	if !bind.single {
		n, err := batch.ReadBatch(bind.msgs, 0)
		if err == nil {
			bind.next, bind.count = 0, n
			return nil
		}
		if errors.Is(err, syscall.ENOSYS) || errors.Is(err, syscall.ENOTSUP) {
			// No recvmmsg on this platform; read one at a time from here on.
			bind.single = true
		} else {
			return err
		}
	}
	msg := &bind.msgs[0]
	n, addr, err := conn.ReadFromUDP(msg.Buffers[0])
	if err != nil {
		return err
	}
	msg.N, msg.Addr = n, addr
	bind.next, bind.count = 0, 1
	return nil
}

func (bind *StdNetBind) Send(b []byte, ep Endpoint) error {
	bind.mu.Lock()
	conn := bind.conn
	bind.mu.Unlock()
	if conn == nil {
		return net.ErrClosed
	}
	dst, ok := ep.(*StdNetEndpoint)
	if !ok {
		return errors.New("unexpected endpoint type")
	}
	_, err := conn.WriteToUDP(b, dst.UDPAddr())
	return err
}

func (bind *StdNetBind) Close() error {
	bind.mu.Lock()
	defer bind.mu.Unlock()
	if bind.conn == nil {
		return nil
	}
	err := bind.conn.Close()
	bind.conn = nil
	bind.batch = nil
	return err
}
