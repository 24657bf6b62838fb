/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package daemon

import (
	"errors"
	"net"

	"golang.zx2c4.com/edgehop/event"
)

// RoutineReceiveIncoming reads datagrams off the bind, decodes them
// and hands them to the run loop. Decoding happens here so the run
// loop never touches raw buffers; the error policy (rate accounting,
// extension tags) stays on the loop where the peer state lives.
func (daemon *Daemon) RoutineReceiveIncoming() {
	daemon.log.Debug.Printf("routine: receive incoming - started")
	defer daemon.log.Debug.Printf("routine: receive incoming - stopped")

	var buf [MaxDatagramSize]byte
	for {
		n, ep, err := daemon.bind.Receive(buf[:])
		if err != nil {
			if daemon.isClosed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			// An I/O error on the UDP socket is fatal to the
			// network loop.
			daemon.log.Error.Printf("receive: %v", err)
			go daemon.Close()
			return
		}
		if n == 0 {
			continue
		}
		msg := packetMessage{ep: ep, tag: buf[0]}
		msg.ev, msg.err = event.Unmarshal(buf[:n])
		daemon.post(msg)
	}
}

// RoutineReadCapture drains the capture backend's stream into the
// inbox. The stream closes when the backend terminates.
func (daemon *Daemon) RoutineReadCapture() {
	daemon.log.Debug.Printf("routine: read capture - started")
	defer daemon.log.Debug.Printf("routine: read capture - stopped")

	for ev := range daemon.capture.Events() {
		daemon.post(captureMessage{ev: ev})
	}
}
