/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package emulate

import (
	"log"
	"sync"

	"golang.zx2c4.com/edgehop/event"
)

// DummyEmulation is the fallback emulation backend: it logs events
// instead of injecting them.
type DummyEmulation struct {
	mu     sync.Mutex
	logger *log.Logger
	held   map[uint64]bool
}

var _ Emulation = (*DummyEmulation)(nil)

func NewDummy(logger *log.Logger) *DummyEmulation {
	return &DummyEmulation{
		logger: logger,
		held:   make(map[uint64]bool),
	}
}

func (e *DummyEmulation) Consume(ev event.Event, handle uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch v := ev.(type) {
	case event.Release:
		// Releasing an already released handle is a no-op.
		if !e.held[handle] {
			return nil
		}
		e.held[handle] = false
		e.logger.Printf("dummy emulation: %d released", handle)
	case event.PointerAxisDiscrete120:
		e.held[handle] = true
		notches := float64(v.Value) / event.AxisDiscreteUnit
		e.logger.Printf("dummy emulation: %d scrolled %v notches on axis %d", handle, notches, v.Axis)
	default:
		e.held[handle] = true
		e.logger.Printf("dummy emulation: %d -> %s", handle, ev)
	}
	return nil
}

func (e *DummyEmulation) Create(handle uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.held[handle] = false
	e.logger.Printf("dummy emulation: created handle %d", handle)
	return nil
}

func (e *DummyEmulation) Destroy(handle uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.held, handle)
	e.logger.Printf("dummy emulation: destroyed handle %d", handle)
	return nil
}

func (e *DummyEmulation) Terminate() error {
	return nil
}
