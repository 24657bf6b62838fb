/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package daemon

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"golang.zx2c4.com/edgehop/conn"
	"golang.zx2c4.com/edgehop/frontend"
)

// A subscriber is one connected frontend. Events are pushed through a
// bounded queue; a frontend that stops reading is disconnected rather
// than allowed to stall the daemon.
type subscriber struct {
	daemon *Daemon
	conn   net.Conn
	out    chan []byte
	done   chan struct{}
	once   sync.Once
}

// FrontendHandle serves one control socket connection until it closes.
// The accept loop in main calls this per connection.
func (daemon *Daemon) FrontendHandle(conn net.Conn) {
	sub := &subscriber{
		daemon: daemon,
		conn:   conn,
		out:    make(chan []byte, MaxPendingEvents),
		done:   make(chan struct{}),
	}
	daemon.subscribers.Lock()
	daemon.subscribers.m[sub] = true
	daemon.subscribers.Unlock()

	go sub.writer()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		req, err := frontend.UnmarshalRequest(line)
		if err != nil {
			sub.push(frontend.Event{Type: frontend.EventError, Message: err.Error()})
			continue
		}
		daemon.post(requestMessage{sub: sub, req: req})
	}
	sub.close()
}

func (sub *subscriber) writer() {
	for {
		select {
		case line := <-sub.out:
			if _, err := sub.conn.Write(append(line, '\n')); err != nil {
				sub.close()
				return
			}
		case <-sub.done:
			return
		}
	}
}

// push enqueues one event, disconnecting the subscriber when its
// queue is full.
func (sub *subscriber) push(ev frontend.Event) {
	line, err := frontend.MarshalEvent(ev)
	if err != nil {
		return
	}
	select {
	case sub.out <- line:
	default:
		sub.daemon.log.Error.Printf("frontend subscriber too slow, disconnecting")
		sub.close()
	}
}

func (sub *subscriber) close() {
	sub.once.Do(func() {
		sub.daemon.subscribers.Lock()
		delete(sub.daemon.subscribers.m, sub)
		sub.daemon.subscribers.Unlock()
		close(sub.done)
		sub.conn.Close()
	})
}

// notify fans an event out to every connected frontend.
func (daemon *Daemon) notify(ev frontend.Event) {
	daemon.subscribers.Lock()
	subs := make([]*subscriber, 0, len(daemon.subscribers.m))
	for sub := range daemon.subscribers.m {
		subs = append(subs, sub)
	}
	daemon.subscribers.Unlock()
	for _, sub := range subs {
		sub.push(ev)
	}
}

func (daemon *Daemon) notifyError(message string) {
	daemon.notify(frontend.Event{Type: frontend.EventError, Message: message})
}

func (daemon *Daemon) notifyState(peer *Peer) {
	daemon.notify(daemon.stateEvent(peer))
}

func (daemon *Daemon) stateEvent(peer *Peer) frontend.Event {
	return frontend.Event{
		Type:      frontend.EventStateChanged,
		Handle:    uint64(peer.handle),
		State:     peer.session.String(),
		IPs:       peer.addrStrings(),
		Active:    daemon.active == peer,
		Resolving: peer.resolving,
	}
}

func (daemon *Daemon) notifyAuthorization(peer *Peer) {
	daemon.notify(frontend.Event{
		Type:        frontend.EventAuthorizationRequested,
		Handle:      uint64(peer.handle),
		Fingerprint: peer.fingerprint.String(),
	})
}

func (daemon *Daemon) closeSubscribers() {
	daemon.subscribers.Lock()
	subs := make([]*subscriber, 0, len(daemon.subscribers.m))
	for sub := range daemon.subscribers.m {
		subs = append(subs, sub)
	}
	daemon.subscribers.Unlock()
	for _, sub := range subs {
		sub.close()
	}
}

/* Request handling, on the run loop. */

func (daemon *Daemon) handleRequest(sub *subscriber, req frontend.Request) {
	respondErr := func(format string, v ...interface{}) {
		msg := fmt.Sprintf(format, v...)
		daemon.log.Error.Printf("frontend: %s", msg)
		if sub != nil {
			sub.push(frontend.Event{Type: frontend.EventError, Message: msg})
		}
	}

	switch req.Type {
	case frontend.RequestAddClient:
		if req.Client == nil {
			respondErr("AddClient without client")
			return
		}
		config, err := PeerConfigFromClient(*req.Client)
		if err != nil {
			respondErr("AddClient: %v", err)
			return
		}
		peer, err := daemon.newPeer(config, false)
		if err != nil {
			respondErr("AddClient: %v", err)
			return
		}
		daemon.notify(frontend.Event{
			Type:   frontend.EventClientAdded,
			Handle: uint64(peer.handle),
			Client: req.Client,
		})
		daemon.startResolve(peer)

	case frontend.RequestDelClient:
		peer := daemon.requirePeer(req.Handle, respondErr)
		if peer == nil {
			return
		}
		daemon.deactivatePeer(peer)
		if peer.resolveCancel != nil {
			peer.resolveCancel()
		}
		peer.timersStop()
		daemon.peers.remove(peer)
		daemon.notify(frontend.Event{Type: frontend.EventClientRemoved, Handle: req.Handle})

	case frontend.RequestUpdateClient:
		peer := daemon.requirePeer(req.Handle, respondErr)
		if peer == nil {
			return
		}
		if req.Client == nil {
			respondErr("UpdateClient without client")
			return
		}
		config, err := PeerConfigFromClient(*req.Client)
		if err != nil {
			respondErr("UpdateClient: %v", err)
			return
		}
		peer.config = config
		daemon.peers.unregisterAddrs(peer)
		peer.candidates = fixedEndpoints(config)
		if peer.endpoint != nil && !containsEndpoint(peer.candidates, peer.endpoint) {
			peer.candidates = append([]conn.Endpoint{peer.endpoint}, peer.candidates...)
		}
		daemon.peers.registerAddrs(peer)
		daemon.startResolve(peer)
		daemon.notify(frontend.Event{
			Type:   frontend.EventClientUpdated,
			Handle: req.Handle,
			Client: req.Client,
		})

	case frontend.RequestActivateClient:
		peer := daemon.requirePeer(req.Handle, respondErr)
		if peer == nil {
			return
		}
		daemon.activatePeer(peer)

	case frontend.RequestDeactivateClient:
		peer := daemon.requirePeer(req.Handle, respondErr)
		if peer == nil {
			return
		}
		daemon.deactivatePeer(peer)

	case frontend.RequestAuthorizeFingerprint:
		peer := daemon.requirePeer(req.Handle, respondErr)
		if peer == nil {
			return
		}
		daemon.authorizeFingerprint(peer, req.Accept)

	case frontend.RequestListClients, frontend.RequestEnumerate:
		if sub == nil {
			return
		}
		for _, peer := range daemon.peers.sorted() {
			client := clientFromPeerConfig(peer.config)
			sub.push(frontend.Event{
				Type:   frontend.EventClientAdded,
				Handle: uint64(peer.handle),
				Client: &client,
			})
			sub.push(daemon.stateEvent(peer))
		}

	case frontend.RequestShutdown:
		daemon.log.Info.Printf("shutdown requested via control socket")
		go daemon.Close()

	default:
		respondErr("unknown request type %q", req.Type)
	}
}

func (daemon *Daemon) requirePeer(handle uint64, respondErr func(string, ...interface{})) *Peer {
	peer := daemon.peers.get(Handle(handle))
	if peer == nil {
		respondErr("no such client: %d", handle)
	}
	return peer
}

// PeerConfigFromClient validates a frontend client description and
// converts it to a peer configuration.
func PeerConfigFromClient(client frontend.ClientConfig) (PeerConfig, error) {
	if !client.Edge.Valid() {
		return PeerConfig{}, fmt.Errorf("invalid edge %q", client.Edge)
	}
	if len(client.Hostnames) == 0 && len(client.IPs) == 0 {
		return PeerConfig{}, fmt.Errorf("client needs a hostname or an ip")
	}
	config := PeerConfig{
		Hostnames:         client.Hostnames,
		Port:              client.Port,
		Edge:              client.Edge,
		ActivateOnStartup: client.ActivateOnStartup,
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	for _, s := range client.IPs {
		ip := net.ParseIP(s)
		if ip == nil {
			return PeerConfig{}, fmt.Errorf("invalid ip %q", s)
		}
		config.FixedIPs = append(config.FixedIPs, ip)
	}
	return config, nil
}

func clientFromPeerConfig(config PeerConfig) frontend.ClientConfig {
	client := frontend.ClientConfig{
		Hostnames:         config.Hostnames,
		Port:              config.Port,
		Edge:              config.Edge,
		ActivateOnStartup: config.ActivateOnStartup,
	}
	for _, ip := range config.FixedIPs {
		client.IPs = append(client.IPs, ip.String())
	}
	return client
}
