/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package event

import (
	"encoding/binary"
	"math"
)

// Encoded sizes, tag byte included.
const (
	sizeMotion          = 1 + 4 + 8 + 8
	sizeButton          = 1 + 4 + 4 + 4
	sizeAxis            = 1 + 4 + 1 + 8
	sizeAxisDiscrete120 = 1 + 1 + 4
	sizeKey             = 1 + 4 + 4 + 1
	sizeModifiers       = 1 + 4 + 4 + 4 + 4
	sizeRelease         = 1
	sizePing            = 1 + 4
	sizePong            = 1 + 4
	sizeHello           = 1 + 32
	sizeHelloAccept     = 1 + 1
	sizeHelloReject     = 1 + 1 + 32
)

// MaxEventSize is the largest encoding Marshal produces. Every event
// fits a single datagram with room to spare below the 1200 byte packet
// budget.
const MaxEventSize = sizeHelloReject

// Marshal encodes e into its wire representation. It is total: every
// constructible event encodes.
func Marshal(e Event) []byte {
	switch ev := e.(type) {
	case PointerMotion:
		b := make([]byte, sizeMotion)
		b[0] = TagMotion
		binary.LittleEndian.PutUint32(b[1:], ev.Time)
		binary.LittleEndian.PutUint64(b[5:], math.Float64bits(ev.DX))
		binary.LittleEndian.PutUint64(b[13:], math.Float64bits(ev.DY))
		return b
	case PointerButton:
		b := make([]byte, sizeButton)
		b[0] = TagButton
		binary.LittleEndian.PutUint32(b[1:], ev.Time)
		binary.LittleEndian.PutUint32(b[5:], ev.Button)
		binary.LittleEndian.PutUint32(b[9:], ev.State)
		return b
	case PointerAxis:
		b := make([]byte, sizeAxis)
		b[0] = TagAxis
		binary.LittleEndian.PutUint32(b[1:], ev.Time)
		b[5] = ev.Axis
		binary.LittleEndian.PutUint64(b[6:], math.Float64bits(ev.Value))
		return b
	case PointerAxisDiscrete120:
		b := make([]byte, sizeAxisDiscrete120)
		b[0] = TagAxisDiscrete120
		b[1] = ev.Axis
		binary.LittleEndian.PutUint32(b[2:], uint32(ev.Value))
		return b
	case KeyboardKey:
		b := make([]byte, sizeKey)
		b[0] = TagKey
		binary.LittleEndian.PutUint32(b[1:], ev.Time)
		binary.LittleEndian.PutUint32(b[5:], ev.Key)
		b[9] = ev.State
		return b
	case KeyboardModifiers:
		b := make([]byte, sizeModifiers)
		b[0] = TagModifiers
		binary.LittleEndian.PutUint32(b[1:], ev.Depressed)
		binary.LittleEndian.PutUint32(b[5:], ev.Latched)
		binary.LittleEndian.PutUint32(b[9:], ev.Locked)
		binary.LittleEndian.PutUint32(b[13:], ev.Group)
		return b
	case Release:
		return []byte{TagRelease}
	case Ping:
		b := make([]byte, sizePing)
		b[0] = TagPing
		binary.LittleEndian.PutUint32(b[1:], ev.Nonce)
		return b
	case Pong:
		b := make([]byte, sizePong)
		b[0] = TagPong
		binary.LittleEndian.PutUint32(b[1:], ev.Nonce)
		return b
	case Hello:
		b := make([]byte, sizeHello)
		b[0] = TagHello
		copy(b[1:], ev.Fingerprint[:])
		return b
	case HelloReply:
		if ev.Accepted {
			return []byte{TagHelloReply, 1}
		}
		b := make([]byte, sizeHelloReject)
		b[0] = TagHelloReply
		b[1] = 0
		copy(b[2:], ev.Fingerprint[:])
		return b
	default:
		panic("event: marshal of unknown event type")
	}
}

func truncated(tag byte) (Event, error) {
	return nil, &ProtocolError{Kind: ErrTruncatedPayload, Tag: tag}
}

func invalidSub(tag byte, value uint32) (Event, error) {
	return nil, &ProtocolError{Kind: ErrInvalidSubId, Tag: tag, Value: value}
}

// Unmarshal decodes a single event from b. Trailing bytes beyond the
// tag's fixed payload are rejected as they indicate a framing bug on
// the sender. Unmarshal(Marshal(e)) == e for every event that Unmarshal
// itself can produce.
func Unmarshal(b []byte) (Event, error) {
	if len(b) == 0 {
		return truncated(0)
	}
	tag := b[0]
	switch tag {
	case TagMotion:
		if len(b) != sizeMotion {
			return truncated(tag)
		}
		return PointerMotion{
			Time: binary.LittleEndian.Uint32(b[1:]),
			DX:   math.Float64frombits(binary.LittleEndian.Uint64(b[5:])),
			DY:   math.Float64frombits(binary.LittleEndian.Uint64(b[13:])),
		}, nil
	case TagButton:
		if len(b) != sizeButton {
			return truncated(tag)
		}
		ev := PointerButton{
			Time:   binary.LittleEndian.Uint32(b[1:]),
			Button: binary.LittleEndian.Uint32(b[5:]),
			State:  binary.LittleEndian.Uint32(b[9:]),
		}
		if ev.Button < BtnLeft || ev.Button > BtnForward {
			return invalidSub(tag, ev.Button)
		}
		if ev.State > 1 {
			return invalidSub(tag, ev.State)
		}
		return ev, nil
	case TagAxis:
		if len(b) != sizeAxis {
			return truncated(tag)
		}
		ev := PointerAxis{
			Time:  binary.LittleEndian.Uint32(b[1:]),
			Axis:  b[5],
			Value: math.Float64frombits(binary.LittleEndian.Uint64(b[6:])),
		}
		if ev.Axis > AxisHorizontal {
			return invalidSub(tag, uint32(ev.Axis))
		}
		return ev, nil
	case TagAxisDiscrete120:
		if len(b) != sizeAxisDiscrete120 {
			return truncated(tag)
		}
		ev := PointerAxisDiscrete120{
			Axis:  b[1],
			Value: int32(binary.LittleEndian.Uint32(b[2:])),
		}
		if ev.Axis > AxisHorizontal {
			return invalidSub(tag, uint32(ev.Axis))
		}
		return ev, nil
	case TagKey:
		if len(b) != sizeKey {
			return truncated(tag)
		}
		ev := KeyboardKey{
			Time:  binary.LittleEndian.Uint32(b[1:]),
			Key:   binary.LittleEndian.Uint32(b[5:]),
			State: b[9],
		}
		if ev.State > 1 {
			return invalidSub(tag, uint32(ev.State))
		}
		return ev, nil
	case TagModifiers:
		if len(b) != sizeModifiers {
			return truncated(tag)
		}
		return KeyboardModifiers{
			Depressed: binary.LittleEndian.Uint32(b[1:]),
			Latched:   binary.LittleEndian.Uint32(b[5:]),
			Locked:    binary.LittleEndian.Uint32(b[9:]),
			Group:     binary.LittleEndian.Uint32(b[13:]),
		}, nil
	case TagRelease:
		if len(b) != sizeRelease {
			return truncated(tag)
		}
		return Release{}, nil
	case TagPing:
		if len(b) != sizePing {
			return truncated(tag)
		}
		return Ping{Nonce: binary.LittleEndian.Uint32(b[1:])}, nil
	case TagPong:
		if len(b) != sizePong {
			return truncated(tag)
		}
		return Pong{Nonce: binary.LittleEndian.Uint32(b[1:])}, nil
	case TagHello:
		if len(b) != sizeHello {
			return truncated(tag)
		}
		var ev Hello
		copy(ev.Fingerprint[:], b[1:])
		return ev, nil
	case TagHelloReply:
		if len(b) < sizeHelloAccept {
			return truncated(tag)
		}
		switch b[1] {
		case 1:
			if len(b) != sizeHelloAccept {
				return truncated(tag)
			}
			return HelloReply{Accepted: true}, nil
		case 0:
			if len(b) != sizeHelloReject {
				return truncated(tag)
			}
			ev := HelloReply{Accepted: false}
			copy(ev.Fingerprint[:], b[2:])
			return ev, nil
		default:
			return invalidSub(tag, uint32(b[1]))
		}
	default:
		return nil, &ProtocolError{Kind: ErrInvalidEventId, Tag: tag}
	}
}
