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

// Request is a typed controller request. The implementations in this
// package form a closed set; Build rejects anything else.
type Request interface {
	Kind() Kind
	ID() FrameID
	isRequest()
}

// QueueStatus asks how many moves are queued and what the motion engine is doing
type QueueStatus struct {
	FrameID FrameID
}

// StartMove starts executing the queued moves
type StartMove struct {
	FrameID FrameID
}

// MoveEnd tells the controller no more moves follow and the queue may drain
type MoveEnd struct {
	FrameID FrameID
}

// Status requests a full status snapshot including axis positions
type Status struct {
	FrameID FrameID
}

// Hello is the diagnostic liveness request
type Hello struct {
	FrameID FrameID
}

// LEDControl drives the indicator LEDs by mode and blink frequency
type LEDControl struct {
	Frequency uint16
	FrameID   FrameID
	Mask      byte
	Mode      byte
}

// LEDControlRGB is the legacy LED request carrying a colour triple
type LEDControlRGB struct {
	Frequency uint16
	FrameID   FrameID
	Mask      byte
	R, G, B   byte
	Mode      byte
}

// MoveHome homes the axes in AxisMask; DirMask bits select the negative direction
type MoveHome struct {
	Velocity uint16
	FrameID  FrameID
	AxisMask byte
	DirMask  byte
}

// ProbeLevel moves the axes in AxisMask until the probe triggers
type ProbeLevel struct {
	Velocity uint16
	FrameID  FrameID
	AxisMask byte
}

// AxisMove is one axis worth of a queued move
type AxisMove struct {
	Steps    uint32
	Velocity uint16
}

// Gains are the per-axis PID gains sent with every queued move
type Gains struct {
	Kp, Ki, Kd uint16
}

// QueueAdd appends one move segment to the controller's queue
type QueueAdd struct {
	Axes    [NumAxes]AxisMove
	Gains   [NumAxes]Gains
	FrameID FrameID
	DirMask byte
}

func (QueueStatus) Kind() Kind   { return KindQueueStatus }
func (StartMove) Kind() Kind     { return KindStartMove }
func (MoveEnd) Kind() Kind       { return KindMoveEnd }
func (Status) Kind() Kind        { return KindStatus }
func (Hello) Kind() Kind         { return KindHello }
func (LEDControl) Kind() Kind    { return KindLEDControl }
func (LEDControlRGB) Kind() Kind { return KindLEDControl }
func (MoveHome) Kind() Kind      { return KindMoveHome }
func (ProbeLevel) Kind() Kind    { return KindProbeLevel }
func (QueueAdd) Kind() Kind      { return KindQueueAdd }

func (r QueueStatus) ID() FrameID   { return r.FrameID }
func (r StartMove) ID() FrameID     { return r.FrameID }
func (r MoveEnd) ID() FrameID       { return r.FrameID }
func (r Status) ID() FrameID        { return r.FrameID }
func (r Hello) ID() FrameID         { return r.FrameID }
func (r LEDControl) ID() FrameID    { return r.FrameID }
func (r LEDControlRGB) ID() FrameID { return r.FrameID }
func (r MoveHome) ID() FrameID      { return r.FrameID }
func (r ProbeLevel) ID() FrameID    { return r.FrameID }
func (r QueueAdd) ID() FrameID      { return r.FrameID }

func (QueueStatus) isRequest()   {}
func (StartMove) isRequest()     {}
func (MoveEnd) isRequest()       {}
func (Status) isRequest()        {}
func (Hello) isRequest()         {}
func (LEDControl) isRequest()    {}
func (LEDControlRGB) isRequest() {}
func (MoveHome) isRequest()      {}
func (ProbeLevel) isRequest()    {}
func (QueueAdd) isRequest()      {}

// Build encodes req and returns the ResponseSpec it expects back.
// Field values are range checked before anything is encoded.
func Build(req Request) ([]byte, ResponseSpec, error) {
	var (
		b    []byte
		spec ResponseSpec
		err  error
	)

	switch r := req.(type) {
	case QueueStatus:
		b, spec = encodeShort(layoutQueueStatusReq, r.FrameID), specQueueStatus
	case StartMove:
		b, spec = encodeShort(layoutStartMoveReq, r.FrameID), specStartMove
	case MoveEnd:
		b, spec = encodeShort(layoutMoveEndReq, r.FrameID), specMoveEnd
	case Status:
		b, spec = encodeShort(layoutStatusReq, r.FrameID), specStatus
	case Hello:
		b, spec = encodeShort(layoutHelloReq, r.FrameID), specHello
	case LEDControl:
		b, err = r.encode()
		spec = specLED
	case LEDControlRGB:
		b, err = r.encode()
		spec = specLEDRGB
	case MoveHome:
		b, err = r.encode()
		spec = specHome
	case ProbeLevel:
		b, err = r.encode()
		spec = specProbe
	case QueueAdd:
		b, err = r.encode()
		spec = specQueueAdd
	default:
		return nil, ResponseSpec{}, fmt.Errorf("%w: %T", ErrUnknownKind, req)
	}

	if err != nil {
		return nil, ResponseSpec{}, err
	}
	return b, spec, nil
}

func encodeShort(l frame.Layout, id FrameID) []byte {
	b := make([]byte, l.Length)
	b[2] = byte(id)
	l.Seal(b)
	return b
}

func (r LEDControl) encode() ([]byte, error) {
	if r.Mask > MaxLEDMask {
		return nil, invalidField(KindLEDControl, "mask", uint64(r.Mask), uint64(MaxLEDMask))
	}
	if r.Mode > MaxLEDMode {
		return nil, invalidField(KindLEDControl, "mode", uint64(r.Mode), uint64(MaxLEDMode))
	}

	b := make([]byte, LenLEDRequest)
	b[2] = byte(r.FrameID)
	b[3] = r.Mask
	b[4] = r.Mode
	frame.PutUint16(b, 5, r.Frequency)
	layoutLEDReq.Seal(b)
	return b, nil
}

func (r LEDControlRGB) encode() ([]byte, error) {
	if r.Mask > MaxLEDMask {
		return nil, invalidField(KindLEDControl, "mask", uint64(r.Mask), uint64(MaxLEDMask))
	}
	if r.Mode > MaxLEDMode {
		return nil, invalidField(KindLEDControl, "mode", uint64(r.Mode), uint64(MaxLEDMode))
	}

	b := make([]byte, LenLEDRequestRGB)
	b[2] = byte(r.FrameID)
	b[3] = r.Mask
	b[4] = r.R
	b[5] = r.G
	b[6] = r.B
	b[7] = r.Mode
	frame.PutUint16(b, 8, r.Frequency)
	layoutLEDReqRGB.Seal(b)
	return b, nil
}

func (r MoveHome) encode() ([]byte, error) {
	if r.AxisMask > AxisMask {
		return nil, invalidField(KindMoveHome, "axis_mask", uint64(r.AxisMask), uint64(AxisMask))
	}
	if r.DirMask > AxisMask {
		return nil, invalidField(KindMoveHome, "dir_mask", uint64(r.DirMask), uint64(AxisMask))
	}

	b := make([]byte, LenHomeRequest)
	b[2] = byte(r.FrameID)
	b[3] = r.AxisMask
	b[4] = r.DirMask
	frame.PutUint16(b, 5, r.Velocity)
	layoutHomeReq.Seal(b)
	return b, nil
}

func (r ProbeLevel) encode() ([]byte, error) {
	if r.AxisMask > AxisMask {
		return nil, invalidField(KindProbeLevel, "axis_mask", uint64(r.AxisMask), uint64(AxisMask))
	}

	b := make([]byte, LenProbeRequest)
	b[2] = byte(r.FrameID)
	b[3] = r.AxisMask
	frame.PutUint16(b, 4, r.Velocity)
	layoutProbeReq.Seal(b)
	return b, nil
}

func (r QueueAdd) encode() ([]byte, error) {
	if r.DirMask > AxisMask {
		return nil, invalidField(KindQueueAdd, "dir_mask", uint64(r.DirMask), uint64(AxisMask))
	}

	b := make([]byte, LenQueueAdd)
	b[2] = byte(r.FrameID)
	b[3] = r.DirMask

	off := queueAddAxesOff
	for _, ax := range r.Axes {
		frame.PutUint16(b, off, ax.Velocity)
		frame.PutUint32(b, off+2, ax.Steps)
		off += 6
	}
	for _, g := range r.Gains {
		frame.PutUint16(b, off, g.Kp)
		frame.PutUint16(b, off+2, g.Ki)
		frame.PutUint16(b, off+4, g.Kd)
		off += 6
	}

	layoutQueueAddReq.Seal(b)
	return b, nil
}
