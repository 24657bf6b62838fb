/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package daemon

import (
	"errors"
	"sort"
)

// The registry is the peer handle table. It is owned by the daemon's
// run loop; frontends observe it through snapshot queries posted to
// the inbox, which is what makes reads consistent without a lock.
//
// Handles are allocated from a free list. A removed handle is not
// reusable immediately: it is parked for one allocation epoch first,
// so a frontend still holding the old handle cannot address an
// unrelated new peer by accident.
type registry struct {
	peers    map[Handle]*Peer
	incoming map[Handle]*Peer  // inbound-only senders, not frontend-managed
	byAddr   map[string]*Peer  // candidate/source address -> peer
	next     Handle
	free     []Handle
	freeNext []Handle
}

func newRegistry() registry {
	return registry{
		peers:    make(map[Handle]*Peer),
		incoming: make(map[Handle]*Peer),
		byAddr:   make(map[string]*Peer),
	}
}

var errTooManyPeers = errors.New("too many peers")

func (r *registry) alloc() (Handle, error) {
	if len(r.peers)+len(r.incoming) >= MaxPeers {
		return 0, errTooManyPeers
	}
	var handle Handle
	if len(r.free) > 0 {
		handle = r.free[0]
		r.free = r.free[1:]
	} else {
		r.next++
		handle = r.next
	}
	// Handles parked by earlier removals become reusable from the
	// next allocation on.
	r.free = append(r.free, r.freeNext...)
	r.freeNext = nil
	return handle, nil
}

func (r *registry) add(peer *Peer) {
	if peer.inbound {
		r.incoming[peer.handle] = peer
	} else {
		r.peers[peer.handle] = peer
	}
	r.registerAddrs(peer)
}

// remove drops the peer and parks its handle for one epoch.
func (r *registry) remove(peer *Peer) {
	r.unregisterAddrs(peer)
	delete(r.peers, peer.handle)
	delete(r.incoming, peer.handle)
	r.freeNext = append(r.freeNext, peer.handle)
}

// get looks a handle up in either table.
func (r *registry) get(handle Handle) *Peer {
	if peer, ok := r.peers[handle]; ok {
		return peer
	}
	return r.incoming[handle]
}

func (r *registry) lookupAddr(addr string) *Peer {
	return r.byAddr[addr]
}

func (r *registry) registerAddrs(peer *Peer) {
	for _, ep := range peer.candidates {
		r.byAddr[ep.DstToString()] = peer
	}
	if peer.endpoint != nil {
		r.byAddr[peer.endpoint.DstToString()] = peer
	}
}

func (r *registry) unregisterAddrs(peer *Peer) {
	for addr, p := range r.byAddr {
		if p == peer {
			delete(r.byAddr, addr)
		}
	}
}

// sorted returns the frontend-managed peers in handle order.
func (r *registry) sorted() []*Peer {
	peers := make([]*Peer, 0, len(r.peers))
	for _, peer := range r.peers {
		peers = append(peers, peer)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].handle < peers[j].handle })
	return peers
}
