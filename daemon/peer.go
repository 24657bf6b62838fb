/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package daemon

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/time/rate"

	"golang.zx2c4.com/edgehop/conn"
	"golang.zx2c4.com/edgehop/event"
	"golang.zx2c4.com/edgehop/frontend"
)

// A Handle identifies a peer within this daemon. Handles are dense
// small integers, stable for the daemon's lifetime; 0 is never a valid
// handle.
type Handle uint64

// A SessionState is the lifecycle state of a peer session.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateWaitingForPeer
	StateAuthorizing
	StateActive
	StateIdle
	StateDead
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateWaitingForPeer:
		return "waiting-for-peer"
	case StateAuthorizing:
		return "authorizing"
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	case StateDead:
		return "dead"
	default:
		return "invalid"
	}
}

// connected reports whether events may flow in this state.
func (s SessionState) connected() bool {
	return s == StateActive || s == StateIdle
}

// PeerConfig is the immutable part of a peer entry, changed only by
// explicit frontend edits.
type PeerConfig struct {
	Hostnames         []string
	FixedIPs          []net.IP
	Port              uint16
	Edge              frontend.Edge
	ActivateOnStartup bool
}

// A Peer is one entry of the registry: configuration plus runtime
// session state. All fields below the config are owned by the daemon's
// run loop; nothing else reads or writes them.
type Peer struct {
	handle  Handle
	daemon  *Daemon
	inbound bool // created for an unmatched sender, not via the frontend

	config PeerConfig

	session          SessionState
	resolving        bool
	resolveGen       uint32
	resolveCancel    context.CancelFunc
	candidates       []conn.Endpoint
	endpoint         conn.Endpoint // confirmed peer address, nil until a reply arrived
	fingerprint      event.Fingerprint
	hasFingerprint   bool
	authRequested    bool
	lastSeen         time.Time
	lastPingSent     time.Time
	outstandingPings uint16
	pingNonce        uint32
	alive            bool
	protocolErrors   uint64
	errLimiter       *rate.Limiter

	timers struct {
		helloResend *Timer
		helloGiveUp *Timer
		ping        *Timer
		idle        *Timer
	}
}

func (peer *Peer) String() string {
	return fmt.Sprintf("peer(%d)", peer.handle)
}

// send marshals e and transmits it to the peer's confirmed address,
// or, while none is confirmed yet, to every candidate address.
func (peer *Peer) send(e event.Event) error {
	buf := event.Marshal(e)
	if peer.endpoint != nil {
		return peer.daemon.bind.Send(buf, peer.endpoint)
	}
	if len(peer.candidates) == 0 {
		return fmt.Errorf("%s: no candidate addresses", peer)
	}
	var firstErr error
	for _, ep := range peer.candidates {
		if err := peer.daemon.bind.Send(buf, ep); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (peer *Peer) sendHello() {
	hello := event.Hello{Fingerprint: peer.daemon.identity.fingerprint}
	if err := peer.send(hello); err != nil {
		peer.daemon.log.Debug.Printf("%s: hello: %v", peer, err)
	}
}

func (peer *Peer) sendPing() {
	peer.pingNonce++
	peer.outstandingPings++
	peer.lastPingSent = time.Now()
	if err := peer.send(event.Ping{Nonce: peer.pingNonce}); err != nil {
		peer.daemon.log.Debug.Printf("%s: ping: %v", peer, err)
	}
}

// addrStrings lists the peer's candidate addresses for frontends.
func (peer *Peer) addrStrings() []string {
	addrs := make([]string, 0, len(peer.candidates))
	for _, ep := range peer.candidates {
		addrs = append(addrs, ep.DstToString())
	}
	return addrs
}

func newErrLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(ProtocolErrorRate), ProtocolErrorRate)
}
