/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package capture

import (
	"log"
	"sync"

	"golang.zx2c4.com/edgehop/frontend"
)

// DummyCapture is the fallback capture backend. It manages barrier
// bookkeeping but never produces input, since there is no OS to take
// it from.
type DummyCapture struct {
	mu       sync.Mutex
	logger   *log.Logger
	barriers map[uint64]frontend.Edge
	events   chan Event
	done     bool
}

var _ Capture = (*DummyCapture)(nil)

func NewDummy(logger *log.Logger) *DummyCapture {
	return &DummyCapture{
		logger:   logger,
		barriers: make(map[uint64]frontend.Edge),
		events:   make(chan Event),
	}
}

func (c *DummyCapture) Create(handle uint64, edge frontend.Edge) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.barriers[handle] = edge
	c.logger.Printf("dummy capture: created barrier %d at %s edge", handle, edge)
	return nil
}

func (c *DummyCapture) Destroy(handle uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.barriers, handle)
	c.logger.Printf("dummy capture: destroyed barrier %d", handle)
	return nil
}

func (c *DummyCapture) Release() error {
	return nil
}

func (c *DummyCapture) Events() <-chan Event {
	return c.events
}

func (c *DummyCapture) Terminate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.done {
		c.done = true
		close(c.events)
	}
	return nil
}
