/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package daemon

import "time"

/* Protocol constants */

const (
	DefaultPort = 4242

	HelloResendInterval = time.Second
	HelloGiveUpTimeout  = time.Second * 5
	PingInterval        = time.Second
	IdleTimeout         = time.Second * 5
	MaxOutstandingPings = 3

	// MaxDatagramSize is the wire packet budget; no current event
	// comes near it.
	MaxDatagramSize = 1200

	// ProtocolErrorRate is the per-peer budget of undecodable
	// datagrams per second before the session is declared dead.
	ProtocolErrorRate = 64
)

/* Implementation constants */

const (
	MaxPeers = 1 << 16 // maximum number of configured peers

	// MaxPendingEvents is the per-subscriber frontend event queue;
	// a subscriber that falls further behind is disconnected.
	MaxPendingEvents = 128

	ResolveBackoffMin = 10 * time.Millisecond
	ResolveBackoffMax = time.Second
)
