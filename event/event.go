/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

// Package event defines the input events exchanged between hosts and
// their binary wire representation. Each datagram on the wire carries
// exactly one event: a one byte tag followed by a fixed, tag specific
// payload. All integers are little-endian, floats are IEEE-754.
package event

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Linux evdev button codes carried in PointerButton.Button.
const (
	BtnLeft    uint32 = 0x110
	BtnRight   uint32 = 0x111
	BtnMiddle  uint32 = 0x112
	BtnBack    uint32 = 0x113
	BtnForward uint32 = 0x114
)

// Wire tags. These are stable protocol constants; tags above 0xF0 are
// reserved for future extension and must be ignored by receivers.
const (
	TagMotion          byte = 0x00
	TagButton          byte = 0x01
	TagAxis            byte = 0x02
	TagAxisDiscrete120 byte = 0x03
	TagKey             byte = 0x10
	TagModifiers       byte = 0x11
	TagRelease         byte = 0x20
	TagPing            byte = 0x30
	TagPong            byte = 0x31
	TagHello           byte = 0x40
	TagHelloReply      byte = 0x41

	TagReservedMin byte = 0xF1
)

const (
	AxisVertical   uint8 = 0
	AxisHorizontal uint8 = 1
)

// AxisDiscreteUnit is the number of discrete axis value units that make
// up one scroll notch.
const AxisDiscreteUnit = 120

// A Fingerprint identifies a peer's long lived credential.
type Fingerprint [32]byte

func (fp Fingerprint) String() string {
	parts := make([]string, len(fp))
	for i, b := range fp {
		parts[i] = hex.EncodeToString([]byte{b})
	}
	return strings.Join(parts, " ")
}

// An Event is one of the pointer, keyboard or control events below. All
// concrete event types are comparable value types, so decoded events
// compare equal to the events they were encoded from.
type Event interface {
	Tag() byte
	fmt.Stringer
}

// PointerMotion is a relative pointer motion.
type PointerMotion struct {
	Time uint32
	DX   float64
	DY   float64
}

// PointerButton is a mouse button press or release.
type PointerButton struct {
	Time   uint32
	Button uint32
	State  uint32
}

// PointerAxis is a smooth scroll event (touchpads).
type PointerAxis struct {
	Time  uint32
	Axis  uint8
	Value float64
}

// PointerAxisDiscrete120 is a discrete scroll event (mouse wheels),
// counted in 1/120ths of a notch.
type PointerAxisDiscrete120 struct {
	Axis  uint8
	Value int32
}

// KeyboardKey is a key press or release, identified by Linux evdev
// scancode.
type KeyboardKey struct {
	Time  uint32
	Key   uint32
	State uint8
}

// KeyboardModifiers reports a change of modifier state.
type KeyboardModifiers struct {
	Depressed uint32
	Latched   uint32
	Locked    uint32
	Group     uint32
}

// Release yields input back to the receiving host.
type Release struct{}

// Ping probes peer liveness; the peer answers with a Pong carrying the
// same nonce.
type Ping struct {
	Nonce uint32
}

// Pong answers a Ping.
type Pong struct {
	Nonce uint32
}

// Hello opens a session, announcing the sender's fingerprint.
type Hello struct {
	Fingerprint Fingerprint
}

// HelloReply accepts or rejects a Hello. A rejection carries the
// responder's fingerprint so the initiator can surface whose credential
// awaits authorization; an accepting reply carries none.
type HelloReply struct {
	Accepted    bool
	Fingerprint Fingerprint
}

func (PointerMotion) Tag() byte          { return TagMotion }
func (PointerButton) Tag() byte          { return TagButton }
func (PointerAxis) Tag() byte            { return TagAxis }
func (PointerAxisDiscrete120) Tag() byte { return TagAxisDiscrete120 }
func (KeyboardKey) Tag() byte            { return TagKey }
func (KeyboardModifiers) Tag() byte      { return TagModifiers }
func (Release) Tag() byte                { return TagRelease }
func (Ping) Tag() byte                   { return TagPing }
func (Pong) Tag() byte                   { return TagPong }
func (Hello) Tag() byte                  { return TagHello }
func (HelloReply) Tag() byte             { return TagHelloReply }

func (e PointerMotion) String() string {
	return fmt.Sprintf("motion(%v,%v)", e.DX, e.DY)
}

func (e PointerButton) String() string {
	name := "unknown"
	switch e.Button {
	case BtnLeft:
		name = "left"
	case BtnRight:
		name = "right"
	case BtnMiddle:
		name = "middle"
	case BtnBack:
		name = "back"
	case BtnForward:
		name = "forward"
	}
	return fmt.Sprintf("button(%s, %d)", name, e.State)
}

func (e PointerAxis) String() string {
	return fmt.Sprintf("scroll(%d, %v)", e.Axis, e.Value)
}

func (e PointerAxisDiscrete120) String() string {
	return fmt.Sprintf("scroll-120(%d, %d)", e.Axis, e.Value)
}

func (e KeyboardKey) String() string {
	return fmt.Sprintf("key(%d, %d)", e.Key, e.State)
}

func (e KeyboardModifiers) String() string {
	return fmt.Sprintf("modifiers(%d,%d,%d,%d)", e.Depressed, e.Latched, e.Locked, e.Group)
}

func (Release) String() string { return "release" }

func (e Ping) String() string { return fmt.Sprintf("ping(%d)", e.Nonce) }
func (e Pong) String() string { return fmt.Sprintf("pong(%d)", e.Nonce) }

func (e Hello) String() string {
	return fmt.Sprintf("hello(%s)", e.Fingerprint)
}

func (e HelloReply) String() string {
	if e.Accepted {
		return "hello-reply(accepted)"
	}
	return fmt.Sprintf("hello-reply(rejected, %s)", e.Fingerprint)
}
