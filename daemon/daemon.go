/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package daemon wires capture, emulation, the datagram transport and
// the control socket into the event pipeline: capture events flow out
// to the peer owning the active slot, inbound events flow into
// emulation under their sender's handle, and a per-peer session state
// machine tracks who may exchange input with whom.
package daemon

import (
	"crypto/rand"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/crypto/blake2s"

	"golang.zx2c4.com/edgehop/capture"
	"golang.zx2c4.com/edgehop/conn"
	"golang.zx2c4.com/edgehop/emulate"
	"golang.zx2c4.com/edgehop/event"
	"golang.zx2c4.com/edgehop/frontend"
)

type Daemon struct {
	isUp     atomic.Bool
	isClosed atomic.Bool
	log      *Logger

	bind conn.Bind
	port uint16

	capture capture.Capture
	emulate emulate.Emulation

	identity struct {
		secret      [32]byte
		fingerprint event.Fingerprint
	}

	// Owned by the run loop after Up; see registry.go.
	peers   registry
	trusted map[event.Fingerprint]bool
	active  *Peer // activated outbound session, at most one
	focused bool  // capture currently directs input at the active peer

	inbox chan message

	subscribers struct {
		sync.Mutex
		m map[*subscriber]bool
	}

	signals struct {
		stop chan struct{} // closed when the run loop has fully shut down
	}

	closeOnce sync.Once
}

/* Inbox messages. Everything that mutates daemon state arrives here;
 * the run loop is the single writer.
 */

type message interface{}

type packetMessage struct {
	ep  conn.Endpoint
	ev  event.Event // nil when err != nil
	err error
	tag byte
}

type captureMessage struct {
	ev capture.Event
}

type requestMessage struct {
	sub *subscriber
	req frontend.Request
}

type timerFired struct {
	handle Handle
	kind   timerKind
}

type resolveUpdate struct {
	handle Handle
	gen    uint32
	eps    []conn.Endpoint
}

type resolveKick struct {
	handle Handle
}

type snapshotQuery struct {
	reply chan Snapshot
}

type shutdownMessage struct{}

// NewDaemon assembles a daemon around the given transport and
// backends. The daemon generates a fresh session credential; its
// fingerprint is what remote peers are asked to authorize.
func NewDaemon(logger *Logger, bind conn.Bind, cap capture.Capture, emu emulate.Emulation, port uint16, trusted []event.Fingerprint) (*Daemon, error) {
	daemon := &Daemon{
		log:     logger,
		bind:    bind,
		port:    port,
		capture: cap,
		emulate: emu,
		peers:   newRegistry(),
		trusted: make(map[event.Fingerprint]bool),
		inbox:   make(chan message, 1024),
	}
	daemon.signals.stop = make(chan struct{})
	daemon.subscribers.m = make(map[*subscriber]bool)

	if _, err := rand.Read(daemon.identity.secret[:]); err != nil {
		return nil, err
	}
	daemon.identity.fingerprint = blake2s.Sum256(daemon.identity.secret[:])

	for _, fp := range trusted {
		daemon.trusted[fp] = true
	}
	return daemon, nil
}

// Fingerprint returns the daemon's session fingerprint.
func (daemon *Daemon) Fingerprint() event.Fingerprint {
	return daemon.identity.fingerprint
}

// AddPeer creates a peer entry before the daemon is up, during config
// loading. Afterwards peers are added through the control socket only.
func (daemon *Daemon) AddPeer(config PeerConfig) (Handle, error) {
	if daemon.isUp.Load() {
		return 0, errors.New("daemon already running; add peers via the control socket")
	}
	peer, err := daemon.newPeer(config, false)
	if err != nil {
		return 0, err
	}
	return peer.handle, nil
}

// newPeer allocates and registers a peer entry. Run-loop context (or
// pre-Up single-threaded context).
func (daemon *Daemon) newPeer(config PeerConfig, inbound bool) (*Peer, error) {
	handle, err := daemon.peers.alloc()
	if err != nil {
		return nil, err
	}
	peer := &Peer{
		handle:     handle,
		daemon:     daemon,
		inbound:    inbound,
		config:     config,
		session:    StateDisconnected,
		errLimiter: newErrLimiter(),
	}
	peer.timersInit()
	peer.candidates = fixedEndpoints(config)
	daemon.peers.add(peer)
	return peer, nil
}

// Up binds the transport and starts the pipeline. The returned error
// is a bind failure.
func (daemon *Daemon) Up() error {
	if daemon.isUp.Swap(true) {
		return nil
	}
	actualPort, err := daemon.bind.Open(daemon.port)
	if err != nil {
		daemon.isUp.Store(false)
		return err
	}
	daemon.port = actualPort
	daemon.log.Info.Printf("listening on port %d", actualPort)

	// Queue the startup work before the run loop takes ownership of
	// the registry.
	for _, peer := range daemon.peers.sorted() {
		daemon.post(resolveKick{handle: peer.handle})
		if peer.config.ActivateOnStartup {
			daemon.post(requestMessage{req: frontend.Request{
				Type:   frontend.RequestActivateClient,
				Handle: uint64(peer.handle),
			}})
		}
	}

	go daemon.RoutineReceiveIncoming()
	go daemon.RoutineReadCapture()
	go daemon.run()
	return nil
}

// post delivers a message to the run loop, dropping it when the daemon
// has shut down.
func (daemon *Daemon) post(msg message) {
	select {
	case daemon.inbox <- msg:
	case <-daemon.signals.stop:
	}
}

func (daemon *Daemon) run() {
	for {
		select {
		case msg := <-daemon.inbox:
			switch msg := msg.(type) {
			case packetMessage:
				daemon.handlePacket(msg)
			case captureMessage:
				daemon.handleCapture(msg.ev)
			case requestMessage:
				daemon.handleRequest(msg.sub, msg.req)
			case timerFired:
				if peer := daemon.peers.get(msg.handle); peer != nil {
					daemon.timerExpired(peer, msg.kind)
				}
			case resolveUpdate:
				daemon.finishResolve(msg)
			case resolveKick:
				if peer := daemon.peers.get(msg.handle); peer != nil {
					daemon.startResolve(peer)
				}
			case snapshotQuery:
				msg.reply <- daemon.snapshot()
			case shutdownMessage:
				daemon.shutdown()
				return
			}
		}
	}
}

// shutdown runs the orderly teardown on the run loop: best-effort
// release of the active peer, then backends, then the socket.
func (daemon *Daemon) shutdown() {
	if daemon.active != nil && daemon.active.session.connected() {
		daemon.active.send(event.Release{})
	}
	for _, peer := range daemon.peers.sorted() {
		peer.timersStop()
		if peer.resolveCancel != nil {
			peer.resolveCancel()
		}
	}
	for _, peer := range daemon.peers.incoming {
		peer.timersStop()
	}
	if err := daemon.capture.Terminate(); err != nil {
		daemon.log.Error.Printf("capture terminate: %v", err)
	}
	if err := daemon.emulate.Terminate(); err != nil {
		daemon.log.Error.Printf("emulation terminate: %v", err)
	}
	daemon.bind.Close()
	daemon.closeSubscribers()
	close(daemon.signals.stop)
	daemon.log.Info.Printf("shut down")
}

// Close stops the daemon and blocks until teardown finished.
func (daemon *Daemon) Close() {
	daemon.closeOnce.Do(func() {
		daemon.isClosed.Store(true)
		if !daemon.isUp.Load() {
			close(daemon.signals.stop)
			return
		}
		select {
		case daemon.inbox <- shutdownMessage{}:
		case <-daemon.signals.stop:
		}
		<-daemon.signals.stop
	})
}

// Wait returns a channel that is closed when the daemon has shut down.
func (daemon *Daemon) Wait() chan struct{} {
	return daemon.signals.stop
}

/* Snapshots are how anything off the run loop observes peer state. */

type PeerSnapshot struct {
	Handle           Handle
	Config           PeerConfig
	Session          SessionState
	Resolving        bool
	Addrs            []string
	Alive            bool
	OutstandingPings uint16
	ProtocolErrors   uint64
	Inbound          bool
}

type Snapshot struct {
	Peers   []PeerSnapshot
	Active  Handle // 0 when no session is activated
	Focused Handle // 0 when the active slot is empty
}

func (daemon *Daemon) snapshot() Snapshot {
	var snap Snapshot
	all := daemon.peers.sorted()
	for _, peer := range daemon.peers.incoming {
		all = append(all, peer)
	}
	for _, peer := range all {
		snap.Peers = append(snap.Peers, PeerSnapshot{
			Handle:           peer.handle,
			Config:           peer.config,
			Session:          peer.session,
			Resolving:        peer.resolving,
			Addrs:            peer.addrStrings(),
			Alive:            peer.alive,
			OutstandingPings: peer.outstandingPings,
			ProtocolErrors:   peer.protocolErrors,
			Inbound:          peer.inbound,
		})
	}
	if daemon.active != nil {
		snap.Active = daemon.active.handle
		if daemon.focused {
			snap.Focused = daemon.active.handle
		}
	}
	return snap
}

// Snapshot returns a consistent view of all peers and the active slot.
func (daemon *Daemon) Snapshot() Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case daemon.inbox <- snapshotQuery{reply: reply}:
		return <-reply
	case <-daemon.signals.stop:
		return Snapshot{}
	}
}
