/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package daemon

import (
	"time"

	"golang.zx2c4.com/edgehop/capture"
	"golang.zx2c4.com/edgehop/conn"
	"golang.zx2c4.com/edgehop/event"
)

/* Session lifecycle. Every function in this file runs on the run
 * loop; peer state needs no locking there.
 */

// activatePeer starts an outbound session: Disconnected (or Dead, on
// explicit reactivation) -> WaitingForPeer. Activating one peer
// implicitly deactivates the previously activated one.
func (daemon *Daemon) activatePeer(peer *Peer) {
	if peer.inbound {
		daemon.notifyError("cannot activate an inbound-only peer")
		return
	}
	if daemon.active != nil && daemon.active != peer {
		daemon.deactivatePeer(daemon.active)
	}
	daemon.active = peer
	daemon.focused = false
	if peer.session.connected() {
		// Already exchanging events (the peer activated us
		// first); it only needs a barrier now.
		if err := daemon.capture.Create(uint64(peer.handle), peer.config.Edge); err != nil {
			daemon.log.Error.Printf("%s: capture create: %v", peer, err)
			daemon.notifyError(err.Error())
		}
		daemon.notifyState(peer)
		return
	}
	if peer.session == StateWaitingForPeer {
		return
	}

	peer.session = StateWaitingForPeer
	peer.endpoint = nil
	peer.outstandingPings = 0
	peer.alive = false
	peer.sendHello()
	peer.timers.helloResend.Mod(HelloResendInterval)
	peer.timers.helloGiveUp.Mod(HelloGiveUpTimeout)
	if err := daemon.capture.Create(uint64(peer.handle), peer.config.Edge); err != nil {
		daemon.log.Error.Printf("%s: capture create: %v", peer, err)
		daemon.notifyError(err.Error())
	}
	daemon.notifyState(peer)
}

// deactivatePeer tears an outbound session down: Release is sent
// best-effort, the emulation handle is destroyed, and the session
// returns to Disconnected.
func (daemon *Daemon) deactivatePeer(peer *Peer) {
	if peer.session.connected() {
		peer.send(event.Release{})
		daemon.emulate.Destroy(uint64(peer.handle))
	}
	peer.timersStop()
	peer.session = StateDisconnected
	peer.endpoint = nil
	peer.outstandingPings = 0
	if !peer.inbound {
		daemon.capture.Destroy(uint64(peer.handle))
	}
	if daemon.active == peer {
		daemon.active = nil
		daemon.focused = false
	}
	daemon.notifyState(peer)
}

// transitionDead marks a session dead. Only an explicit reactivation
// from the frontend leaves this state; inbound-only entries are
// dropped entirely.
func (daemon *Daemon) transitionDead(peer *Peer, reason string) {
	if peer.session == StateDead {
		return
	}
	if peer.session.connected() {
		daemon.emulate.Destroy(uint64(peer.handle))
	}
	peer.timersStop()
	peer.session = StateDead
	peer.alive = false
	if daemon.active == peer {
		daemon.active = nil
		daemon.focused = false
		if !peer.inbound {
			daemon.capture.Destroy(uint64(peer.handle))
		}
	}
	daemon.notifyError(peer.String() + ": " + reason)
	if peer.inbound {
		if peer.resolveCancel != nil {
			peer.resolveCancel()
		}
		daemon.peers.remove(peer)
		return
	}
	daemon.notifyState(peer)
}

// enterActive is the common WaitingForPeer/Hello -> Active edge.
func (daemon *Daemon) enterActive(peer *Peer, ep conn.Endpoint) {
	peer.session = StateActive
	peer.endpoint = ep
	peer.alive = true
	peer.outstandingPings = 0
	peer.lastSeen = time.Now()
	daemon.peers.byAddr[ep.DstToString()] = peer
	peer.timers.helloResend.Del()
	peer.timers.helloGiveUp.Del()
	peer.timers.ping.Mod(PingInterval)
	peer.timers.idle.Mod(IdleTimeout)
	if err := daemon.emulate.Create(uint64(peer.handle)); err != nil {
		daemon.log.Error.Printf("%s: emulation create: %v", peer, err)
		daemon.notifyError(err.Error())
	}
	daemon.notifyState(peer)
}

/* Inbound datagram dispatch. */

func (daemon *Daemon) handlePacket(msg packetMessage) {
	peer := daemon.peers.lookupAddr(msg.ep.DstToString())

	if msg.err != nil {
		daemon.handleProtocolError(peer, msg)
		return
	}

	if peer == nil {
		// Unmatched sources must introduce themselves with a
		// Hello in their first datagram.
		if hello, ok := msg.ev.(event.Hello); ok {
			daemon.handleStrangerHello(msg.ep, hello)
		} else {
			daemon.log.Debug.Printf("dropping %s from unknown source %s", msg.ev, msg.ep.DstToString())
		}
		return
	}

	if peer.session == StateDead {
		// Only the frontend resurrects a dead session.
		daemon.log.Debug.Printf("%s: dropping %s, session is dead", peer, msg.ev)
		return
	}

	// Any valid datagram from the expected peer counts as life.
	peer.lastSeen = time.Now()
	peer.outstandingPings = 0
	peer.alive = true

	switch ev := msg.ev.(type) {
	case event.Ping:
		buf := event.Marshal(event.Pong{Nonce: ev.Nonce})
		daemon.bind.Send(buf, msg.ep)
	case event.Pong:
		// Counted above.
	case event.Hello:
		daemon.handlePeerHello(peer, msg.ep, ev)
	case event.HelloReply:
		daemon.handleHelloReply(peer, msg.ep, ev)
	case event.Release:
		if peer.session.connected() {
			daemon.consume(peer, ev)
		}
	default:
		daemon.handleInput(peer, ev)
	}
}

func (daemon *Daemon) handleProtocolError(peer *Peer, msg packetMessage) {
	if msg.tag > 0xF0 {
		// Reserved extension range: not an error, simply unknown
		// to this version.
		daemon.log.Debug.Printf("ignoring extension tag %#02x from %s", msg.tag, msg.ep.DstToString())
		return
	}
	if peer == nil {
		daemon.log.Debug.Printf("undecodable datagram from unknown source %s: %v", msg.ep.DstToString(), msg.err)
		return
	}
	daemon.log.Debug.Printf("%s: %v", peer, msg.err)
	peer.protocolErrors++
	if !peer.errLimiter.Allow() {
		daemon.transitionDead(peer, "protocol error rate exceeded")
	}
}

// handleStrangerHello processes a Hello from a source that matches no
// known peer address: the receiving half of the handshake.
func (daemon *Daemon) handleStrangerHello(ep conn.Endpoint, hello event.Hello) {
	peer, err := daemon.newPeer(PeerConfig{Port: daemon.port}, true)
	if err != nil {
		daemon.log.Error.Printf("inbound peer from %s: %v", ep.DstToString(), err)
		return
	}
	peer.candidates = []conn.Endpoint{ep}
	peer.fingerprint = hello.Fingerprint
	peer.hasFingerprint = true
	daemon.peers.registerAddrs(peer)
	daemon.answerHello(peer, ep)
}

// handlePeerHello processes a Hello from an address already attributed
// to a peer: a re-introduction, or the remote side activating us.
func (daemon *Daemon) handlePeerHello(peer *Peer, ep conn.Endpoint, hello event.Hello) {
	peer.fingerprint = hello.Fingerprint
	peer.hasFingerprint = true
	daemon.answerHello(peer, ep)
}

func (daemon *Daemon) answerHello(peer *Peer, ep conn.Endpoint) {
	if daemon.trusted[peer.fingerprint] {
		buf := event.Marshal(event.HelloReply{Accepted: true})
		daemon.bind.Send(buf, ep)
		peer.authRequested = false
		switch peer.session {
		case StateDisconnected, StateAuthorizing:
			daemon.enterActive(peer, ep)
		}
		// WaitingForPeer stays: our own Hello is answered by the
		// peer's HelloReply, not by its Hello. Dead stays dead
		// until the frontend reactivates.
		return
	}

	buf := event.Marshal(event.HelloReply{Accepted: false, Fingerprint: daemon.identity.fingerprint})
	daemon.bind.Send(buf, ep)
	if peer.session == StateDisconnected {
		peer.session = StateAuthorizing
		daemon.notifyState(peer)
	}
	if !peer.authRequested {
		peer.authRequested = true
		daemon.notifyAuthorization(peer)
	}
}

// handleHelloReply drives the initiator side of the handshake.
func (daemon *Daemon) handleHelloReply(peer *Peer, ep conn.Endpoint, reply event.HelloReply) {
	if peer.session != StateWaitingForPeer {
		return
	}
	if reply.Accepted {
		daemon.log.Info.Printf("%s: session established with %s", peer, ep.DstToString())
		daemon.enterActive(peer, ep)
		return
	}
	peer.session = StateAuthorizing
	peer.fingerprint = reply.Fingerprint
	peer.hasFingerprint = true
	peer.timers.helloResend.Del()
	peer.timers.helloGiveUp.Del()
	daemon.notifyState(peer)
	if !peer.authRequested {
		peer.authRequested = true
		daemon.notifyAuthorization(peer)
	}
}

// authorizeFingerprint resolves a pending authorization, from the
// frontend's AuthorizeFingerprint request.
func (daemon *Daemon) authorizeFingerprint(peer *Peer, accept bool) {
	peer.authRequested = false
	if !accept {
		if !peer.hasFingerprint {
			return
		}
		delete(daemon.trusted, peer.fingerprint)
		daemon.transitionDead(peer, "authorization rejected")
		return
	}
	if peer.hasFingerprint {
		daemon.trusted[peer.fingerprint] = true
	}
	if peer.session != StateAuthorizing {
		return
	}
	if peer.inbound {
		// Nothing to initiate; the peer's next Hello will be
		// accepted.
		return
	}
	peer.session = StateWaitingForPeer
	peer.sendHello()
	peer.timers.helloResend.Mod(HelloResendInterval)
	peer.timers.helloGiveUp.Mod(HelloGiveUpTimeout)
	daemon.notifyState(peer)
}

/* Input paths. */

// handleInput applies one remote input event to emulation, in
// reception order, regardless of the active-slot state.
func (daemon *Daemon) handleInput(peer *Peer, ev event.Event) {
	if !peer.session.connected() {
		daemon.log.Debug.Printf("%s: dropping %s outside an active session", peer, ev)
		return
	}
	daemon.touchSession(peer)
	daemon.consume(peer, ev)
}

func (daemon *Daemon) consume(peer *Peer, ev event.Event) {
	if err := daemon.emulate.Consume(ev, uint64(peer.handle)); err != nil {
		// Non-fatal by contract; the event is not retried.
		daemon.log.Error.Printf("%s: emulation: %v", peer, err)
		daemon.notifyError(err.Error())
	}
}

// touchSession records input activity: Idle wakes up to Active, and
// the idle countdown restarts.
func (daemon *Daemon) touchSession(peer *Peer) {
	if peer.session == StateIdle {
		peer.session = StateActive
		daemon.notifyState(peer)
	}
	if peer.session == StateActive {
		peer.timers.idle.Mod(IdleTimeout)
	}
}

// handleCapture reacts to the local capture stream: Begin selects the
// active slot, End empties it (sending Release), Input is forwarded to
// the slot's peer.
func (daemon *Daemon) handleCapture(ev capture.Event) {
	if ev.Err != nil {
		daemon.log.Error.Printf("capture: %v", ev.Err)
		daemon.notifyError(ev.Err.Error())
		return
	}
	switch ev.Kind {
	case capture.Begin:
		if daemon.active == nil || Handle(ev.Handle) != daemon.active.handle || !daemon.active.session.connected() {
			// A barrier fired for a session that cannot take
			// input; give it straight back.
			daemon.capture.Release()
			return
		}
		daemon.focused = true

	case capture.Input:
		if !daemon.focused || daemon.active == nil || Handle(ev.Handle) != daemon.active.handle {
			return
		}
		peer := daemon.active
		if !peer.session.connected() {
			return
		}
		daemon.touchSession(peer)
		if err := peer.send(ev.Input); err != nil {
			daemon.log.Debug.Printf("%s: send: %v", peer, err)
		}

	case capture.End:
		if daemon.active != nil && daemon.active.session.connected() {
			daemon.active.send(event.Release{})
		}
		daemon.focused = false
	}
}
