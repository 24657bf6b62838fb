/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package daemon

import (
	"testing"

	"golang.zx2c4.com/edgehop/conn"
)

func mustEndpoint(t *testing.T, addr string) conn.Endpoint {
	t.Helper()
	ep, err := conn.ParseEndpoint(addr)
	if err != nil {
		t.Fatal(err)
	}
	return ep
}

func TestHandleAllocation(t *testing.T) {
	r := newRegistry()

	a, _ := r.alloc()
	b, _ := r.alloc()
	if a == 0 || b == 0 {
		t.Fatal("zero handle allocated")
	}
	if a == b {
		t.Fatal("duplicate handles")
	}
}

func TestHandleReuseIsDeferred(t *testing.T) {
	r := newRegistry()

	a, _ := r.alloc()
	peerA := &Peer{handle: a}
	r.add(peerA)
	b, _ := r.alloc()
	r.add(&Peer{handle: b})

	r.remove(peerA)

	// The next allocation must not hand the stale handle back out.
	c, _ := r.alloc()
	if c == a {
		t.Fatalf("handle %d reused immediately after removal", a)
	}
	// One epoch later it is fair game again.
	d, _ := r.alloc()
	if d != a {
		t.Fatalf("handle %d not recycled after an epoch (got %d)", a, d)
	}
}

func TestAddrLookup(t *testing.T) {
	r := newRegistry()

	handle, _ := r.alloc()
	peer := &Peer{handle: handle}
	peer.candidates = []conn.Endpoint{
		mustEndpoint(t, "10.0.0.2:4242"),
		mustEndpoint(t, "10.0.0.3:4242"),
	}
	r.add(peer)

	if r.lookupAddr("10.0.0.3:4242") != peer {
		t.Fatal("candidate address not routed to peer")
	}
	if r.lookupAddr("10.0.0.4:4242") != nil {
		t.Fatal("unknown address routed to a peer")
	}

	r.remove(peer)
	if r.lookupAddr("10.0.0.2:4242") != nil {
		t.Fatal("address still routed after removal")
	}
}

func TestInboundPeersAreNotListed(t *testing.T) {
	r := newRegistry()

	handle, _ := r.alloc()
	r.add(&Peer{handle: handle, inbound: true})
	if len(r.sorted()) != 0 {
		t.Fatal("inbound peer listed as a client")
	}
	if r.get(handle) == nil {
		t.Fatal("inbound peer not addressable by handle")
	}
}
