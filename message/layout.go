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

import "github.com/stepbus/go-stepbus/internal/frame"

// Frame lengths, in bytes
const (
	LenShortRequest  = 4
	LenLEDRequest    = 9
	LenLEDRequestRGB = 12
	LenHomeRequest   = 9
	LenProbeRequest  = 8
	LenQueueAdd      = 42

	LenQueueAddAck  = 7
	LenQueueStatus  = 9
	LenAck          = 5
	LenLEDAck       = 9
	LenHomeReply    = 8
	LenProbeReply   = 11
	LenStatusReply  = 20
	LenHelloReply   = 7
	LenLEDAckRGB    = LenAck
	queueAddAxesOff = 4
	queueAddGainOff = queueAddAxesOff + NumAxes*6
)

func requestLayout(kind Kind, length int, parity frame.Parity, from, to int) frame.Layout {
	return frame.Layout{
		Length:     length,
		Header:     frame.RequestHeader,
		Tail:       frame.RequestTail,
		Type:       byte(kind),
		Parity:     parity,
		ParityFrom: from,
		ParityTo:   to,
	}
}

func responseLayout(kind Kind, length int, parity frame.Parity, from, to int) frame.Layout {
	return frame.Layout{
		Length:     length,
		Header:     frame.ResponseHeader,
		Tail:       frame.ResponseTail,
		Type:       byte(kind),
		Parity:     parity,
		ParityFrom: from,
		ParityTo:   to,
	}
}

// Request layouts
var (
	layoutQueueStatusReq = requestLayout(KindQueueStatus, LenShortRequest, frame.ParityNone, 0, 0)
	layoutStartMoveReq   = requestLayout(KindStartMove, LenShortRequest, frame.ParityNone, 0, 0)
	layoutMoveEndReq     = requestLayout(KindMoveEnd, LenShortRequest, frame.ParityNone, 0, 0)
	layoutStatusReq      = requestLayout(KindStatus, LenShortRequest, frame.ParityNone, 0, 0)
	layoutHelloReq       = requestLayout(KindHello, LenShortRequest, frame.ParityNone, 0, 0)
	layoutLEDReq         = requestLayout(KindLEDControl, LenLEDRequest, frame.ParityByte, 1, 6)
	layoutLEDReqRGB      = requestLayout(KindLEDControl, LenLEDRequestRGB, frame.ParityByte, 1, 9)
	layoutHomeReq        = requestLayout(KindMoveHome, LenHomeRequest, frame.ParityByte, 1, 6)
	layoutProbeReq       = requestLayout(KindProbeLevel, LenProbeRequest, frame.ParityByte, 1, 5)
	layoutQueueAddReq    = requestLayout(KindQueueAdd, LenQueueAdd, frame.ParityBit, 1, 39)
)

// Response layouts
var (
	layoutQueueAddAck    = responseLayout(KindQueueAdd, LenQueueAddAck, frame.ParityBit, 1, 4)
	layoutQueueStatusRsp = responseLayout(KindQueueStatus, LenQueueStatus, frame.ParityBit, 1, 6)
	layoutStartMoveAck   = responseLayout(KindStartMove, LenAck, frame.ParityNone, 0, 0)
	layoutMoveEndAck     = responseLayout(KindMoveEnd, LenAck, frame.ParityNone, 0, 0)
	layoutLEDAck         = responseLayout(KindLEDControl, LenLEDAck, frame.ParityByte, 1, 6)
	layoutLEDAckRGB      = responseLayout(KindLEDControl, LenLEDAckRGB, frame.ParityNone, 0, 0)
	layoutHomeReply      = responseLayout(KindMoveHome, LenHomeReply, frame.ParityByte, 1, 5)
	layoutProbeReply     = responseLayout(KindProbeLevel, LenProbeReply, frame.ParityByte, 1, 8)
	layoutStatusReply    = responseLayout(KindStatus, LenStatusReply, frame.ParityBit, 1, 17)
	layoutHelloReply     = helloLayout()
)

// HelloToken is the controller's complete hello reply. It carries no frame
// id, which makes it usable as a resynchronisation token.
var HelloToken = []byte{frame.ResponseHeader, 'h', 'e', 'l', 'l', 'o', frame.ResponseTail}

func helloLayout() frame.Layout {
	l := responseLayout(KindHello, LenHelloReply, frame.ParityNone, 0, 0)
	l.Fixed = HelloToken
	return l
}
