// go-stepbus
// Copyright (c) 2025 The go-stepbus Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-stepbus.
//
// go-stepbus is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-stepbus is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-stepbus; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package message

import (
	"fmt"

	"github.com/stepbus/go-stepbus/internal/frame"
)

// Response is a decoded controller reply
type Response interface {
	Kind() Kind
	isResponse()
}

// QueueAddAck acknowledges a queued move
type QueueAddAck struct {
	FrameID FrameID
	Queued  byte
	Result  Result
}

// QueueStatusReply reports queue depth and motion state
type QueueStatusReply struct {
	FrameID     FrameID
	Queued      byte
	Capacity    byte
	State       MotionState
	LastFrameID FrameID
}

// Idle reports whether the queue is drained and nothing is moving
func (r QueueStatusReply) Idle() bool {
	return r.Queued == 0 && r.State == StateIdle
}

// StartMoveAck acknowledges a start-move request
type StartMoveAck struct {
	FrameID FrameID
	Result  Result
}

// MoveEndAck acknowledges a move-end request
type MoveEndAck struct {
	FrameID FrameID
	Result  Result
}

// LEDAck echoes the applied LED settings
type LEDAck struct {
	Frequency uint16
	FrameID   FrameID
	Mask      byte
	Mode      byte
}

// LEDAckRGB acknowledges a legacy LED request
type LEDAckRGB struct {
	FrameID FrameID
	Result  Result
}

// HomeReply reports which of the requested axes reached home
type HomeReply struct {
	FrameID   FrameID
	AxisMask  byte
	HomedMask byte
	Result    Result
}

// ProbeReply reports the probe outcome and the position it triggered at
type ProbeReply struct {
	Position  int32
	FrameID   FrameID
	AxisMask  byte
	Triggered byte
}

// Controller fault flags reported in StatusReply.Faults
const (
	FaultEmergencyStop byte = 0x01
	FaultLimitSwitch   byte = 0x02
	FaultDriver        byte = 0x04
	FaultQueueOverrun  byte = 0x08
)

// StatusReply is a full controller status snapshot
type StatusReply struct {
	Position [NumAxes]int32
	FrameID  FrameID
	State    MotionState
	Faults   byte
	Queued   byte
}

// HelloReply is the fixed liveness answer
type HelloReply struct{}

func (QueueAddAck) Kind() Kind      { return KindQueueAdd }
func (QueueStatusReply) Kind() Kind { return KindQueueStatus }
func (StartMoveAck) Kind() Kind     { return KindStartMove }
func (MoveEndAck) Kind() Kind       { return KindMoveEnd }
func (LEDAck) Kind() Kind           { return KindLEDControl }
func (LEDAckRGB) Kind() Kind        { return KindLEDControl }
func (HomeReply) Kind() Kind        { return KindMoveHome }
func (ProbeReply) Kind() Kind       { return KindProbeLevel }
func (StatusReply) Kind() Kind      { return KindStatus }
func (HelloReply) Kind() Kind       { return KindHello }

func (QueueAddAck) isResponse()      {}
func (QueueStatusReply) isResponse() {}
func (StartMoveAck) isResponse()     {}
func (MoveEndAck) isResponse()       {}
func (LEDAck) isResponse()           {}
func (LEDAckRGB) isResponse()        {}
func (HomeReply) isResponse()        {}
func (ProbeReply) isResponse()       {}
func (StatusReply) isResponse()      {}
func (HelloReply) isResponse()       {}

// ResponseSpec binds a request kind to the exact response it expects
type ResponseSpec struct {
	decode func(b []byte) Response
	layout frame.Layout
	kind   Kind
}

// Kind returns the originating request kind
func (s ResponseSpec) Kind() Kind { return s.kind }

// Length returns the exact response length in bytes
func (s ResponseSpec) Length() int { return s.layout.Length }

// Layout returns the frame layout used to verify the response
func (s ResponseSpec) Layout() frame.Layout { return s.layout }

// Valid reports whether s came from the catalog
func (s ResponseSpec) Valid() bool { return s.decode != nil }

// String describes the expected response for diagnostics
func (s ResponseSpec) String() string {
	return fmt.Sprintf("%s response: %d bytes, %s parity", s.kind, s.layout.Length, s.layout.Parity)
}

// Decode verifies b against the expected shape and returns the typed response.
// It is total: any input yields either a response or a *DecodeError.
func (s ResponseSpec) Decode(b []byte) (Response, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: empty response spec", ErrUnknownKind)
	}
	if err := frame.Verify(b, s.layout); err != nil {
		return nil, NewDecodeError(s.kind, b, err)
	}
	return s.decode(b), nil
}

// Find scans buf for the first complete, valid response at any offset.
// When nothing matches, the returned error is the *DecodeError for the last
// rejected candidate, or nil when buf held no response header at all.
func (s ResponseSpec) Find(buf []byte) (Response, int, error) {
	frm, off, err := frame.Scan(buf, s.layout)
	if frm == nil {
		if err != nil {
			return nil, -1, NewDecodeError(s.kind, buf, err)
		}
		return nil, -1, nil
	}
	return s.decode(frm), off, nil
}

var (
	specQueueAdd    = ResponseSpec{kind: KindQueueAdd, layout: layoutQueueAddAck, decode: decodeQueueAddAck}
	specQueueStatus = ResponseSpec{kind: KindQueueStatus, layout: layoutQueueStatusRsp, decode: decodeQueueStatus}
	specStartMove   = ResponseSpec{kind: KindStartMove, layout: layoutStartMoveAck, decode: decodeStartMoveAck}
	specMoveEnd     = ResponseSpec{kind: KindMoveEnd, layout: layoutMoveEndAck, decode: decodeMoveEndAck}
	specLED         = ResponseSpec{kind: KindLEDControl, layout: layoutLEDAck, decode: decodeLEDAck}
	specLEDRGB      = ResponseSpec{kind: KindLEDControl, layout: layoutLEDAckRGB, decode: decodeLEDAckRGB}
	specHome        = ResponseSpec{kind: KindMoveHome, layout: layoutHomeReply, decode: decodeHomeReply}
	specProbe       = ResponseSpec{kind: KindProbeLevel, layout: layoutProbeReply, decode: decodeProbeReply}
	specStatus      = ResponseSpec{kind: KindStatus, layout: layoutStatusReply, decode: decodeStatusReply}
	specHello       = ResponseSpec{kind: KindHello, layout: layoutHelloReply, decode: decodeHelloReply}
)

var catalog = map[Kind]ResponseSpec{
	KindQueueAdd:    specQueueAdd,
	KindQueueStatus: specQueueStatus,
	KindStartMove:   specStartMove,
	KindMoveHome:    specHome,
	KindProbeLevel:  specProbe,
	KindMoveEnd:     specMoveEnd,
	KindLEDControl:  specLED,
	KindStatus:      specStatus,
	KindHello:       specHello,
}

// Spec returns the response spec for kind under the given LED profile
func Spec(kind Kind, profile LEDProfile) (ResponseSpec, error) {
	if kind == KindLEDControl && profile == ProfileRGB {
		return specLEDRGB, nil
	}
	spec, ok := catalog[kind]
	if !ok {
		return ResponseSpec{}, fmt.Errorf("%w: 0x%02X", ErrUnknownKind, byte(kind))
	}
	return spec, nil
}

func decodeQueueAddAck(b []byte) Response {
	return QueueAddAck{FrameID: FrameID(b[2]), Queued: b[3], Result: Result(b[4])}
}

func decodeQueueStatus(b []byte) Response {
	return QueueStatusReply{
		FrameID:     FrameID(b[2]),
		Queued:      b[3],
		Capacity:    b[4],
		State:       MotionState(b[5]),
		LastFrameID: FrameID(b[6]),
	}
}

func decodeStartMoveAck(b []byte) Response {
	return StartMoveAck{FrameID: FrameID(b[2]), Result: Result(b[3])}
}

func decodeMoveEndAck(b []byte) Response {
	return MoveEndAck{FrameID: FrameID(b[2]), Result: Result(b[3])}
}

func decodeLEDAck(b []byte) Response {
	return LEDAck{FrameID: FrameID(b[2]), Mask: b[3], Mode: b[4], Frequency: frame.Uint16(b, 5)}
}

func decodeLEDAckRGB(b []byte) Response {
	return LEDAckRGB{FrameID: FrameID(b[2]), Result: Result(b[3])}
}

func decodeHomeReply(b []byte) Response {
	return HomeReply{FrameID: FrameID(b[2]), AxisMask: b[3], HomedMask: b[4], Result: Result(b[5])}
}

func decodeProbeReply(b []byte) Response {
	return ProbeReply{
		FrameID:   FrameID(b[2]),
		AxisMask:  b[3],
		Triggered: b[4],
		Position:  int32(frame.Uint32(b, 5)),
	}
}

func decodeStatusReply(b []byte) Response {
	r := StatusReply{
		FrameID: FrameID(b[2]),
		State:   MotionState(b[3]),
		Faults:  b[4],
		Queued:  b[17],
	}
	for i := range r.Position {
		r.Position[i] = int32(frame.Uint32(b, 5+4*i))
	}
	return r
}

func decodeHelloReply([]byte) Response {
	return HelloReply{}
}
