/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package daemon

import (
	"context"
	"net"
	"testing"

	"golang.zx2c4.com/edgehop/conn"
)

func TestFixedEndpointsKeepOrder(t *testing.T) {
	config := PeerConfig{
		FixedIPs: []net.IP{
			net.ParseIP("10.0.0.2"),
			net.ParseIP("10.0.0.3"),
		},
		Port: 4242,
	}
	eps := fixedEndpoints(config)
	if len(eps) != 2 {
		t.Fatalf("got %d endpoints", len(eps))
	}
	if eps[0].DstToString() != "10.0.0.2:4242" || eps[1].DstToString() != "10.0.0.3:4242" {
		t.Fatalf("order broken: %s, %s", eps[0].DstToString(), eps[1].DstToString())
	}
}

func TestResolveOnceWithoutHostnames(t *testing.T) {
	config := PeerConfig{
		FixedIPs: []net.IP{net.ParseIP("192.168.1.5")},
		Port:     4242,
	}
	eps, err := resolveOnce(context.Background(), config)
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 1 || eps[0].DstToString() != "192.168.1.5:4242" {
		t.Fatalf("unexpected endpoints: %v", eps)
	}
}

func TestFinishResolveKeepsWorkingEndpoint(t *testing.T) {
	h := newHarness(t)
	handle := h.addPeer(t, "10.0.0.2:4242", "right")
	h.up(t)
	tf := newTestFrontend(t, h.daemon)
	activateAndConnect(t, h, tf, handle)

	// DNS stops mentioning the confirmed address; it must survive at
	// the front of the candidate list anyway.
	newEp := mustEndpoint(t, "10.0.0.7:4242")
	h.daemon.post(resolveUpdate{handle: handle, gen: 0, eps: []conn.Endpoint{newEp}})

	eventually(t, "candidates swapped", func() bool {
		p, _ := h.peerState(handle)
		if len(p.Addrs) != 2 {
			return false
		}
		return p.Addrs[0] == "10.0.0.2:4242" && p.Addrs[1] == "10.0.0.7:4242"
	})

	// The session stays activated across the candidate swap.
	if h.daemon.Snapshot().Active != handle {
		t.Fatal("session lost across resolution")
	}
}

func TestStaleResolutionDropped(t *testing.T) {
	h := newHarness(t)
	handle := h.addPeer(t, "10.0.0.2:4242", "right")
	h.up(t)

	h.daemon.post(resolveUpdate{handle: handle, gen: 99, eps: []conn.Endpoint{mustEndpoint(t, "10.0.0.9:4242")}})
	// Force a full inbox round trip, then confirm nothing changed.
	snap := h.daemon.Snapshot()
	for _, p := range snap.Peers {
		if p.Handle != handle {
			continue
		}
		for _, addr := range p.Addrs {
			if addr == "10.0.0.9:4242" {
				t.Fatal("stale resolution installed")
			}
		}
	}
}
