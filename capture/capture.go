/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package capture abstracts OS-level input capture. A backend owns a
// set of barriers, one per peer handle, each sitting on a screen edge.
// When the cursor crosses a barrier the backend grabs the local input
// devices and streams events until the user releases them again.
package capture

import (
	"fmt"
	"log"

	"golang.zx2c4.com/edgehop/event"
	"golang.zx2c4.com/edgehop/frontend"
)

type Kind int

const (
	// Begin is emitted when the OS hands input focus to the barrier
	// associated with the event's handle.
	Begin Kind = iota
	// Input carries one captured input event between a matched
	// Begin/End pair.
	Input
	// End is emitted when the user releases input, by hotkey
	// (Ctrl+Alt+Shift+Super) or by re-entering the boundary.
	End
)

// An Event is one element of a backend's capture stream. Err carries a
// non-fatal backend error; the stream remains consumable after one.
type Event struct {
	Handle uint64
	Kind   Kind
	Input  event.Event
	Err    error
}

// A Capture is an OS capture backend. Create and Destroy manage
// barriers; Release force-returns input to the local host; Terminate
// tears the backend down and closes the event stream.
type Capture interface {
	Create(handle uint64, edge frontend.Edge) error
	Destroy(handle uint64) error
	Release() error
	Events() <-chan Event
	Terminate() error
}

// ErrUnavailable reports a known backend that is not usable in this
// build or session.
type ErrUnavailable struct {
	Backend string
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("capture backend %q is not available", e.Backend)
}

// New selects a capture backend by name. "auto" picks the best
// available backend, falling back to dummy.
func New(backend string, logger *log.Logger) (Capture, error) {
	switch backend {
	case "", "auto":
		return NewDummy(logger), nil
	case "dummy":
		return NewDummy(logger), nil
	case "wlroots", "libei", "x11", "xdp", "windows", "macos":
		return nil, &ErrUnavailable{Backend: backend}
	default:
		return nil, fmt.Errorf("unknown capture backend %q", backend)
	}
}
