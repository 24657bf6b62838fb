/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package daemon

import (
	"context"
	"net"
	"time"

	"golang.zx2c4.com/edgehop/conn"
	"golang.zx2c4.com/edgehop/internal/backoff"
)

// fixedEndpoints builds the candidate endpoints that need no
// resolution. Fixed addresses are operator intent and always sort
// before resolved ones.
func fixedEndpoints(config PeerConfig) []conn.Endpoint {
	eps := make([]conn.Endpoint, 0, len(config.FixedIPs))
	for _, ip := range config.FixedIPs {
		eps = append(eps, conn.EndpointFromUDPAddr(&net.UDPAddr{IP: ip, Port: int(config.Port)}))
	}
	return eps
}

// startResolve kicks off (or restarts) hostname resolution for a
// peer. The peer keeps its current candidates, and in particular its
// working endpoint, until a new resolution completes.
func (daemon *Daemon) startResolve(peer *Peer) {
	if peer.resolveCancel != nil {
		peer.resolveCancel()
	}
	if len(peer.config.Hostnames) == 0 {
		peer.resolving = false
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	peer.resolveCancel = cancel
	peer.resolveGen++
	peer.resolving = true

	gen := peer.resolveGen
	handle := peer.handle
	config := peer.config
	go daemon.runResolver(ctx, handle, gen, config)
	daemon.notifyState(peer)
}

func (daemon *Daemon) runResolver(ctx context.Context, handle Handle, gen uint32, config PeerConfig) {
	delay := backoff.New(ResolveBackoffMin, ResolveBackoffMax)
	for {
		eps, err := resolveOnce(ctx, config)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			daemon.post(resolveUpdate{handle: handle, gen: gen, eps: eps})
			return
		}
		daemon.log.Debug.Printf("peer(%d): resolve: %v", handle, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay.Next()):
		}
	}
}

// resolveOnce resolves every hostname and merges the results behind
// the fixed addresses. Partial results count as success as long as at
// least one hostname resolved.
func resolveOnce(ctx context.Context, config PeerConfig) ([]conn.Endpoint, error) {
	eps := fixedEndpoints(config)
	seen := make(map[string]bool, len(eps))
	for _, ep := range eps {
		seen[ep.DstToString()] = true
	}

	var lastErr error
	resolved := false
	for _, host := range config.Hostnames {
		addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			lastErr = err
			continue
		}
		resolved = true
		for _, addr := range addrs {
			ep := conn.EndpointFromUDPAddr(&net.UDPAddr{IP: addr.IP, Port: int(config.Port), Zone: addr.Zone})
			if seen[ep.DstToString()] {
				continue
			}
			seen[ep.DstToString()] = true
			eps = append(eps, ep)
		}
	}
	if !resolved && lastErr != nil {
		return nil, lastErr
	}
	return eps, nil
}

// finishResolve installs a completed resolution, on the run loop.
// Stale generations (a newer resolve was started meanwhile) are
// dropped.
func (daemon *Daemon) finishResolve(msg resolveUpdate) {
	peer := daemon.peers.get(msg.handle)
	if peer == nil || peer.resolveGen != msg.gen {
		return
	}
	peer.resolving = false

	daemon.peers.unregisterAddrs(peer)
	peer.candidates = msg.eps
	if peer.endpoint != nil && !containsEndpoint(peer.candidates, peer.endpoint) {
		// Never drop a working address because DNS stopped
		// mentioning it.
		peer.candidates = append([]conn.Endpoint{peer.endpoint}, peer.candidates...)
	}
	daemon.peers.registerAddrs(peer)

	if peer.session == StateWaitingForPeer {
		peer.sendHello()
	}
	daemon.notifyState(peer)
}

func containsEndpoint(eps []conn.Endpoint, ep conn.Endpoint) bool {
	for _, e := range eps {
		if e.DstToString() == ep.DstToString() {
			return true
		}
	}
	return false
}
