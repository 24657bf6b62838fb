/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package emulate

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"golang.zx2c4.com/edgehop/event"
)

func TestDummyReleaseIdempotent(t *testing.T) {
	var out bytes.Buffer
	e := NewDummy(log.New(&out, "", 0))

	e.Create(1)
	e.Consume(event.PointerMotion{DX: 1}, 1)
	e.Consume(event.Release{}, 1)
	e.Consume(event.Release{}, 1)
	e.Consume(event.Release{}, 1)

	if got := strings.Count(out.String(), "released"); got != 1 {
		t.Fatalf("release logged %d times, want 1", got)
	}
}

func TestDummyScrollNotches(t *testing.T) {
	var out bytes.Buffer
	e := NewDummy(log.New(&out, "", 0))

	e.Create(2)
	e.Consume(event.PointerAxisDiscrete120{Axis: event.AxisVertical, Value: -240}, 2)
	if !strings.Contains(out.String(), "-2 notches") {
		t.Fatalf("scroll log: %q", out.String())
	}
}
