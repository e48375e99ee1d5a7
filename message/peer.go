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

// ParseRequest decodes a request frame the way the controller would.
// It is used by the virtual controller and by round trip tests.
func ParseRequest(b []byte) (Request, error) {
	if len(b) < frame.MinFrameLength {
		return nil, NewDecodeError(0, b, &frame.Error{Check: frame.CheckLength, Want: frame.MinFrameLength, Got: len(b)})
	}

	kind := Kind(b[1])
	l, err := requestLayoutFor(kind, len(b))
	if err != nil {
		return nil, err
	}
	if err := frame.Verify(b, l); err != nil {
		return nil, NewDecodeError(kind, b, err)
	}

	id := FrameID(b[2])
	switch kind {
	case KindQueueStatus:
		return QueueStatus{FrameID: id}, nil
	case KindStartMove:
		return StartMove{FrameID: id}, nil
	case KindMoveEnd:
		return MoveEnd{FrameID: id}, nil
	case KindStatus:
		return Status{FrameID: id}, nil
	case KindHello:
		return Hello{FrameID: id}, nil
	case KindLEDControl:
		if len(b) == LenLEDRequestRGB {
			return LEDControlRGB{
				FrameID: id, Mask: b[3], R: b[4], G: b[5], B: b[6], Mode: b[7],
				Frequency: frame.Uint16(b, 8),
			}, nil
		}
		return LEDControl{FrameID: id, Mask: b[3], Mode: b[4], Frequency: frame.Uint16(b, 5)}, nil
	case KindMoveHome:
		return MoveHome{FrameID: id, AxisMask: b[3], DirMask: b[4], Velocity: frame.Uint16(b, 5)}, nil
	case KindProbeLevel:
		return ProbeLevel{FrameID: id, AxisMask: b[3], Velocity: frame.Uint16(b, 4)}, nil
	case KindQueueAdd:
		return parseQueueAdd(b), nil
	}
	return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownKind, byte(kind))
}

func requestLayoutFor(kind Kind, n int) (frame.Layout, error) {
	switch kind {
	case KindQueueStatus:
		return layoutQueueStatusReq, nil
	case KindStartMove:
		return layoutStartMoveReq, nil
	case KindMoveEnd:
		return layoutMoveEndReq, nil
	case KindStatus:
		return layoutStatusReq, nil
	case KindHello:
		return layoutHelloReq, nil
	case KindLEDControl:
		if n == LenLEDRequestRGB {
			return layoutLEDReqRGB, nil
		}
		return layoutLEDReq, nil
	case KindMoveHome:
		return layoutHomeReq, nil
	case KindProbeLevel:
		return layoutProbeReq, nil
	case KindQueueAdd:
		return layoutQueueAddReq, nil
	}
	return frame.Layout{}, fmt.Errorf("%w: 0x%02X", ErrUnknownKind, byte(kind))
}

func parseQueueAdd(b []byte) QueueAdd {
	r := QueueAdd{FrameID: FrameID(b[2]), DirMask: b[3]}
	off := queueAddAxesOff
	for i := range r.Axes {
		r.Axes[i].Velocity = frame.Uint16(b, off)
		r.Axes[i].Steps = frame.Uint32(b, off+2)
		off += 6
	}
	for i := range r.Gains {
		r.Gains[i].Kp = frame.Uint16(b, off)
		r.Gains[i].Ki = frame.Uint16(b, off+2)
		r.Gains[i].Kd = frame.Uint16(b, off+4)
		off += 6
	}
	return r
}

// EncodeResponse lays out resp as the controller would send it
func EncodeResponse(resp Response) ([]byte, error) {
	var (
		b []byte
		l frame.Layout
	)

	switch r := resp.(type) {
	case QueueAddAck:
		l = layoutQueueAddAck
		b = make([]byte, l.Length)
		b[2], b[3], b[4] = byte(r.FrameID), r.Queued, byte(r.Result)
	case QueueStatusReply:
		l = layoutQueueStatusRsp
		b = make([]byte, l.Length)
		b[2], b[3], b[4], b[5], b[6] = byte(r.FrameID), r.Queued, r.Capacity, byte(r.State), byte(r.LastFrameID)
	case StartMoveAck:
		l = layoutStartMoveAck
		b = make([]byte, l.Length)
		b[2], b[3] = byte(r.FrameID), byte(r.Result)
	case MoveEndAck:
		l = layoutMoveEndAck
		b = make([]byte, l.Length)
		b[2], b[3] = byte(r.FrameID), byte(r.Result)
	case LEDAck:
		l = layoutLEDAck
		b = make([]byte, l.Length)
		b[2], b[3], b[4] = byte(r.FrameID), r.Mask, r.Mode
		frame.PutUint16(b, 5, r.Frequency)
	case LEDAckRGB:
		l = layoutLEDAckRGB
		b = make([]byte, l.Length)
		b[2], b[3] = byte(r.FrameID), byte(r.Result)
	case HomeReply:
		l = layoutHomeReply
		b = make([]byte, l.Length)
		b[2], b[3], b[4], b[5] = byte(r.FrameID), r.AxisMask, r.HomedMask, byte(r.Result)
	case ProbeReply:
		l = layoutProbeReply
		b = make([]byte, l.Length)
		b[2], b[3], b[4] = byte(r.FrameID), r.AxisMask, r.Triggered
		frame.PutUint32(b, 5, uint32(r.Position))
	case StatusReply:
		l = layoutStatusReply
		b = make([]byte, l.Length)
		b[2], b[3], b[4] = byte(r.FrameID), byte(r.State), r.Faults
		for i, p := range r.Position {
			frame.PutUint32(b, 5+4*i, uint32(p))
		}
		b[17] = r.Queued
	case HelloReply:
		return append([]byte(nil), HelloToken...), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, resp)
	}

	l.Seal(b)
	return b, nil
}
