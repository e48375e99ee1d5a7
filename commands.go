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

package stepbus

import (
	"context"
	"fmt"

	"github.com/stepbus/go-stepbus/message"
)

// LEDSettings describes an LED change independent of the request layout
// the firmware expects. R, G and B are only sent under the RGB profile.
type LEDSettings struct {
	Frequency uint16
	Mask      byte
	Mode      byte
	R, G, B   byte
}

// exchangeAs runs req and asserts the decoded response type
func exchangeAs[T message.Response](ctx context.Context, d *Device, req message.Request) (T, error) {
	var zero T
	res, err := d.Exchange(ctx, req)
	if err != nil {
		return zero, err
	}
	out, ok := res.Response.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s got %T", ErrUnexpectedResult, req.Kind(), res.Response)
	}
	return out, nil
}

func checkResult(kind message.Kind, r message.Result) error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrRejected, kind, r)
}

func (d *Device) frameID(id message.FrameID) message.FrameID {
	if id == 0 {
		return d.NextFrameID()
	}
	return id
}

// QueueAdd appends a move segment. A zero FrameID is filled from the
// device's sequence.
func (d *Device) QueueAdd(ctx context.Context, move message.QueueAdd) (message.QueueAddAck, error) {
	move.FrameID = d.frameID(move.FrameID)
	ack, err := exchangeAs[message.QueueAddAck](ctx, d, move)
	if err != nil {
		return ack, err
	}
	return ack, checkResult(message.KindQueueAdd, ack.Result)
}

// QueueStatus returns queue depth and motion state
func (d *Device) QueueStatus(ctx context.Context) (message.QueueStatusReply, error) {
	return exchangeAs[message.QueueStatusReply](ctx, d, message.QueueStatus{FrameID: d.NextFrameID()})
}

// StartMove starts executing the queue
func (d *Device) StartMove(ctx context.Context) (message.StartMoveAck, error) {
	ack, err := exchangeAs[message.StartMoveAck](ctx, d, message.StartMove{FrameID: d.NextFrameID()})
	if err != nil {
		return ack, err
	}
	return ack, checkResult(message.KindStartMove, ack.Result)
}

// MoveEnd marks the end of the queued sequence
func (d *Device) MoveEnd(ctx context.Context) (message.MoveEndAck, error) {
	ack, err := exchangeAs[message.MoveEndAck](ctx, d, message.MoveEnd{FrameID: d.NextFrameID()})
	if err != nil {
		return ack, err
	}
	return ack, checkResult(message.KindMoveEnd, ack.Result)
}

// SetLEDs applies s using the configured LED profile
func (d *Device) SetLEDs(ctx context.Context, s LEDSettings) (message.Response, error) {
	var req message.Request
	id := d.NextFrameID()
	switch d.config.LEDProfile {
	case message.ProfileRGB:
		req = message.LEDControlRGB{
			FrameID: id, Mask: s.Mask, R: s.R, G: s.G, B: s.B, Mode: s.Mode, Frequency: s.Frequency,
		}
	default:
		req = message.LEDControl{FrameID: id, Mask: s.Mask, Mode: s.Mode, Frequency: s.Frequency}
	}

	res, err := d.Exchange(ctx, req)
	if err != nil {
		return nil, err
	}
	if ack, ok := res.Response.(message.LEDAckRGB); ok {
		return ack, checkResult(message.KindLEDControl, ack.Result)
	}
	return res.Response, nil
}

// Home homes the axes in axisMask at velocity. The reply arrives once
// homing has finished, so this uses the motion budget.
func (d *Device) Home(ctx context.Context, axisMask, dirMask byte, velocity uint16) (message.HomeReply, error) {
	reply, err := exchangeAs[message.HomeReply](ctx, d, message.MoveHome{
		FrameID:  d.NextFrameID(),
		AxisMask: axisMask,
		DirMask:  dirMask,
		Velocity: velocity,
	})
	if err != nil {
		return reply, err
	}
	return reply, checkResult(message.KindMoveHome, reply.Result)
}

// Probe moves the axes in axisMask until the probe triggers
func (d *Device) Probe(ctx context.Context, axisMask byte, velocity uint16) (message.ProbeReply, error) {
	return exchangeAs[message.ProbeReply](ctx, d, message.ProbeLevel{
		FrameID:  d.NextFrameID(),
		AxisMask: axisMask,
		Velocity: velocity,
	})
}

// Status returns a full status snapshot
func (d *Device) Status(ctx context.Context) (message.StatusReply, error) {
	return exchangeAs[message.StatusReply](ctx, d, message.Status{FrameID: d.NextFrameID()})
}

// Hello checks the controller is alive and framing is in step
func (d *Device) Hello(ctx context.Context) error {
	_, err := exchangeAs[message.HelloReply](ctx, d, message.Hello{FrameID: d.NextFrameID()})
	return err
}
