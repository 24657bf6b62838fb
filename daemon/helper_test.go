/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package daemon

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"

	"golang.zx2c4.com/edgehop/capture"
	"golang.zx2c4.com/edgehop/conn"
	"golang.zx2c4.com/edgehop/event"
	"golang.zx2c4.com/edgehop/frontend"
)

/* Test transport: a bind that records everything sent and lets the
 * test inject inbound datagrams.
 */

type sentPacket struct {
	buf []byte
	ep  conn.Endpoint
}

type injectedPacket struct {
	buf []byte
	ep  conn.Endpoint
}

type recordBind struct {
	mu   sync.Mutex
	sent []sentPacket
	rx   chan injectedPacket
	done chan struct{}
}

func newRecordBind() *recordBind {
	return &recordBind{
		rx:   make(chan injectedPacket, 1024),
		done: make(chan struct{}),
	}
}

func (b *recordBind) Open(port uint16) (uint16, error) {
	if port == 0 {
		port = 4242
	}
	return port, nil
}

func (b *recordBind) Receive(buf []byte) (int, conn.Endpoint, error) {
	select {
	case pkt := <-b.rx:
		return copy(buf, pkt.buf), pkt.ep, nil
	case <-b.done:
		return 0, nil, net.ErrClosed
	}
}

func (b *recordBind) Send(buf []byte, ep conn.Endpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bc := make([]byte, len(buf))
	copy(bc, buf)
	b.sent = append(b.sent, sentPacket{buf: bc, ep: ep})
	return nil
}

func (b *recordBind) Close() error {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
	return nil
}

func (b *recordBind) inject(t *testing.T, from string, buf []byte) {
	t.Helper()
	ep, err := conn.ParseEndpoint(from)
	if err != nil {
		t.Fatal(err)
	}
	b.rx <- injectedPacket{buf: buf, ep: ep}
}

func (b *recordBind) sentPackets() []sentPacket {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sentPacket(nil), b.sent...)
}

// sentTo filters recorded packets by destination.
func (b *recordBind) sentTo(addr string) [][]byte {
	var out [][]byte
	for _, pkt := range b.sentPackets() {
		if pkt.ep.DstToString() == addr {
			out = append(out, pkt.buf)
		}
	}
	return out
}

/* Test capture backend with an injectable stream. */

type fakeCapture struct {
	mu       sync.Mutex
	events   chan capture.Event
	barriers map[uint64]frontend.Edge
	released int
	closed   bool
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{
		events:   make(chan capture.Event, 1024),
		barriers: make(map[uint64]frontend.Edge),
	}
}

func (c *fakeCapture) Create(handle uint64, edge frontend.Edge) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.barriers[handle] = edge
	return nil
}

func (c *fakeCapture) Destroy(handle uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.barriers, handle)
	return nil
}

func (c *fakeCapture) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
	return nil
}

func (c *fakeCapture) Events() <-chan capture.Event {
	return c.events
}

func (c *fakeCapture) Terminate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

/* Test emulation backend recording consumed events. */

type consumed struct {
	ev     event.Event
	handle uint64
}

type fakeEmulation struct {
	mu        sync.Mutex
	events    []consumed
	created   []uint64
	destroyed []uint64
}

func (e *fakeEmulation) Consume(ev event.Event, handle uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, consumed{ev: ev, handle: handle})
	return nil
}

func (e *fakeEmulation) Create(handle uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created = append(e.created, handle)
	return nil
}

func (e *fakeEmulation) Destroy(handle uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed = append(e.destroyed, handle)
	return nil
}

func (e *fakeEmulation) Terminate() error { return nil }

func (e *fakeEmulation) consumedEvents() []consumed {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]consumed(nil), e.events...)
}

func (e *fakeEmulation) destroyedHandles() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uint64(nil), e.destroyed...)
}

/* Daemon harness. */

type harness struct {
	daemon  *Daemon
	bind    *recordBind
	capture *fakeCapture
	emulate *fakeEmulation
}

func newHarness(t *testing.T, trusted ...event.Fingerprint) *harness {
	t.Helper()
	h := &harness{
		bind:    newRecordBind(),
		capture: newFakeCapture(),
		emulate: &fakeEmulation{},
	}
	logger := NewLogger(LogLevelSilent, "(test) ")
	daemon, err := NewDaemon(logger, h.bind, h.capture, h.emulate, 4242, trusted)
	if err != nil {
		t.Fatal(err)
	}
	h.daemon = daemon
	t.Cleanup(daemon.Close)
	return h
}

// addPeer registers a peer with one fixed address before Up.
func (h *harness) addPeer(t *testing.T, addr string, edge frontend.Edge) Handle {
	t.Helper()
	ep, err := conn.ParseEndpoint(addr)
	if err != nil {
		t.Fatal(err)
	}
	udp := ep.(*conn.StdNetEndpoint).UDPAddr()
	handle, err := h.daemon.AddPeer(PeerConfig{
		FixedIPs: []net.IP{udp.IP},
		Port:     uint16(udp.Port),
		Edge:     edge,
	})
	if err != nil {
		t.Fatal(err)
	}
	return handle
}

func (h *harness) up(t *testing.T) {
	t.Helper()
	if err := h.daemon.Up(); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) peerState(handle Handle) (PeerSnapshot, bool) {
	for _, p := range h.daemon.Snapshot().Peers {
		if p.Handle == handle {
			return p, true
		}
	}
	return PeerSnapshot{}, false
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

/* Frontend test client over an in-memory pipe. The daemon side is
 * served by FrontendHandle; events are drained eagerly so the daemon
 * never blocks on us.
 */

type testFrontend struct {
	conn net.Conn
	mu   sync.Mutex
	evs  []frontend.Event
}

func newTestFrontend(t *testing.T, daemon *Daemon) *testFrontend {
	t.Helper()
	server, client := net.Pipe()
	go daemon.FrontendHandle(server)
	tf := &testFrontend{conn: client}
	go func() {
		scanner := bufio.NewScanner(client)
		for scanner.Scan() {
			ev, err := frontend.UnmarshalEvent(scanner.Bytes())
			if err != nil {
				continue
			}
			tf.mu.Lock()
			tf.evs = append(tf.evs, ev)
			tf.mu.Unlock()
		}
	}()
	t.Cleanup(func() { client.Close() })
	return tf
}

func (tf *testFrontend) request(t *testing.T, req frontend.Request) {
	t.Helper()
	line, err := frontend.MarshalRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tf.conn.Write(append(line, '\n')); err != nil {
		t.Fatal(err)
	}
}

func (tf *testFrontend) events() []frontend.Event {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return append([]frontend.Event(nil), tf.evs...)
}

// lastEventOfType returns the most recent event of the given type.
func (tf *testFrontend) lastEventOfType(typ frontend.EventType) (frontend.Event, bool) {
	evs := tf.events()
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Type == typ {
			return evs[i], true
		}
	}
	return frontend.Event{}, false
}
