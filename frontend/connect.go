/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package frontend

import (
	"bufio"
	"errors"
	"net"
	"time"

	"golang.zx2c4.com/edgehop/internal/backoff"
	"golang.zx2c4.com/edgehop/ipc"
)

// ErrConnectTimeout is returned by Connect when the daemon socket did
// not come up within the given timeout.
var ErrConnectTimeout = errors.New("timed out waiting for the daemon socket")

// A Client is a frontend's connection to the daemon.
type Client struct {
	conn net.Conn
	scan *bufio.Scanner
}

// Connect dials the daemon's control socket, retrying with exponential
// backoff while the daemon comes up. A zero timeout waits forever.
func Connect(timeout time.Duration) (*Client, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	delay := backoff.New(10*time.Millisecond, time.Second)
	for {
		conn, err := ipc.Dial()
		if err == nil {
			return newClient(conn), nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, ErrConnectTimeout
		}
		time.Sleep(delay.Next())
	}
}

func newClient(conn net.Conn) *Client {
	return &Client{conn: conn, scan: bufio.NewScanner(conn)}
}

// Request sends one request line to the daemon.
func (c *Client) Request(r Request) error {
	line, err := MarshalRequest(r)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(append(line, '\n'))
	return err
}

// NextEvent blocks until the daemon pushes the next event.
func (c *Client) NextEvent() (Event, error) {
	if !c.scan.Scan() {
		if err := c.scan.Err(); err != nil {
			return Event{}, err
		}
		return Event{}, net.ErrClosed
	}
	return UnmarshalEvent(c.scan.Bytes())
}

func (c *Client) Close() error {
	return c.conn.Close()
}
