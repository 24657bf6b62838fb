/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package daemon

import "time"

/* This Timer structure and related functions roughly copy the
 * interface of the Linux kernel's struct timer_list. Expiration does
 * not run session logic directly: it posts a message to the daemon's
 * inbox so that all state transitions happen on the run loop.
 */

type Timer struct {
	timer     *time.Timer
	isPending bool
}

type timerKind int

const (
	timerHelloResend timerKind = iota
	timerHelloGiveUp
	timerPing
	timerIdle
)

func (peer *Peer) newTimer(kind timerKind) *Timer {
	timer := &Timer{}
	timer.timer = time.AfterFunc(time.Hour, func() {
		timer.isPending = false
		peer.daemon.post(timerFired{handle: peer.handle, kind: kind})
	})
	timer.timer.Stop()
	return timer
}

func (timer *Timer) Mod(d time.Duration) {
	timer.isPending = true
	timer.timer.Reset(d)
}

func (timer *Timer) Del() {
	timer.isPending = false
	timer.timer.Stop()
}

func (peer *Peer) timersInit() {
	peer.timers.helloResend = peer.newTimer(timerHelloResend)
	peer.timers.helloGiveUp = peer.newTimer(timerHelloGiveUp)
	peer.timers.ping = peer.newTimer(timerPing)
	peer.timers.idle = peer.newTimer(timerIdle)
}

func (peer *Peer) timersStop() {
	peer.timers.helloResend.Del()
	peer.timers.helloGiveUp.Del()
	peer.timers.ping.Del()
	peer.timers.idle.Del()
}

/* Expiration handlers, invoked on the run loop. Each one re-checks the
 * session state: a message may arrive after the condition that armed
 * the timer is gone, in which case it is ignored.
 */

func (daemon *Daemon) timerExpired(peer *Peer, kind timerKind) {
	switch kind {
	case timerHelloResend:
		if peer.session != StateWaitingForPeer {
			return
		}
		peer.sendHello()
		peer.timers.helloResend.Mod(HelloResendInterval)

	case timerHelloGiveUp:
		if peer.session != StateWaitingForPeer {
			return
		}
		daemon.log.Info.Printf("%s: no reply to hello, giving up", peer)
		daemon.transitionDead(peer, "peer did not answer")

	case timerPing:
		if !peer.session.connected() {
			return
		}
		if peer.outstandingPings >= MaxOutstandingPings {
			daemon.log.Info.Printf("%s: %d pings unanswered, declaring dead", peer, peer.outstandingPings)
			daemon.transitionDead(peer, "peer stopped responding")
			return
		}
		peer.sendPing()
		peer.timers.ping.Mod(PingInterval)

	case timerIdle:
		if peer.session != StateActive {
			return
		}
		peer.session = StateIdle
		daemon.notifyState(peer)
	}
}
