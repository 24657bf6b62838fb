/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package emulate abstracts OS-level input emulation: synthetic
// injection of events received from remote peers.
package emulate

import (
	"fmt"
	"log"

	"golang.zx2c4.com/edgehop/event"
)

// An Emulation is an OS emulation backend. Consume applies one event
// on behalf of the peer identified by handle; it must apply key events
// in the order received and be idempotent for release events. A
// backend that drops an event returns a non-fatal error; the caller
// does not retry.
type Emulation interface {
	Consume(e event.Event, handle uint64) error
	Create(handle uint64) error
	Destroy(handle uint64) error
	Terminate() error
}

// ErrUnavailable reports a known backend that is not usable in this
// build or session.
type ErrUnavailable struct {
	Backend string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("emulation backend %q is not available", e.Backend)
}

// New selects an emulation backend by name. "auto" picks the best
// available backend, falling back to dummy.
func New(backend string, logger *log.Logger) (Emulation, error) {
	switch backend {
	case "", "auto":
		return NewDummy(logger), nil
	case "dummy":
		return NewDummy(logger), nil
	case "wlroots", "libei", "x11", "xdp", "windows", "macos":
		return nil, &ErrUnavailable{Backend: backend}
	default:
		return nil, fmt.Errorf("unknown emulation backend %q", backend)
	}
}
