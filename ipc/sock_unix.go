//go:build linux || darwin || freebsd || openbsd

/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package ipc opens the local control socket the daemon and its
// frontends talk over: a UNIX socket on POSIX systems, loopback TCP on
// Windows.
package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

const (
	IpcErrorIO       = -int64(unix.EIO)
	IpcErrorProtocol = -int64(unix.EPROTO)
	IpcErrorInvalid  = -int64(unix.EINVAL)
	IpcErrorCapacity = -int64(unix.ENOBUFS)
)

func socketDirectory() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return fmt.Sprintf("%s/edgehop", dir)
	}
	return "/var/run/edgehop"
}

// SocketPath returns the path of the daemon's control socket.
func SocketPath() string {
	return fmt.Sprintf("%s/edgehop.sock", socketDirectory())
}

// Listen creates the control socket, replacing a stale one left over
// from a crashed daemon if nothing is listening on it.
func Listen() (net.Listener, error) {
	if err := os.MkdirAll(socketDirectory(), 0o755); err != nil {
		return nil, err
	}

	socketPath := SocketPath()
	addr, err := net.ResolveUnixAddr("unix", socketPath)
	if err != nil {
		return nil, err
	}

	oldUmask := unix.Umask(0o077)
	defer unix.Umask(oldUmask)

	listener, err := net.ListenUnix("unix", addr)
	if err == nil {
		return listener, nil
	}

	// Test socket, if not in use cleanup and try again.
	if _, err := net.Dial("unix", socketPath); err == nil {
		return nil, errors.New("unix socket in use")
	}
	if err := os.Remove(socketPath); err != nil {
		return nil, err
	}
	return net.ListenUnix("unix", addr)
}

// Dial connects to a running daemon's control socket.
func Dial() (net.Conn, error) {
	return net.Dial("unix", SocketPath())
}
