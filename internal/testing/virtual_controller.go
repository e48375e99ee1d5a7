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

package testing

import (
	"bytes"
	"errors"
	"sync"

	"github.com/stepbus/go-stepbus/internal/frame"
	"github.com/stepbus/go-stepbus/message"
)

// DefaultQueueCapacity is the move queue depth of the virtual controller
const DefaultQueueCapacity = 16

// DefaultProbePosition is where the virtual probe triggers
const DefaultProbePosition int32 = -1200

// Handler overrides the controller's answer to a request. Returning false
// falls through to the built-in behaviour.
type Handler func(req message.Request) (message.Response, bool)

// VirtualController simulates the motion controller's side of the bus.
// Request transfers are answered with a handshake echo, and the response
// is handed out on a later poll transfer.
type VirtualController struct {
	handler  Handler
	txErr    error
	pending  []byte
	boot     []byte
	requests []message.Request
	queue    []message.QueueAdd
	position [message.NumAxes]int32

	mu sync.Mutex

	capacity      int
	delay         int
	busy          int
	corrupt       int
	embed         int
	garbageAt     int
	handshakes    int
	polls         int
	probePosition int32

	state     message.MotionState
	lastFrame message.FrameID
	faults    byte
	homed     byte
	pollByte  byte
	garbage   byte
	silent    bool
	mixed     bool
	ended     bool
}

// NewVirtualController creates an idle controller with an empty queue
func NewVirtualController() *VirtualController {
	return &VirtualController{
		capacity:      DefaultQueueCapacity,
		probePosition: DefaultProbePosition,
		pollByte:      frame.DefaultPollByte,
		garbageAt:     -1,
	}
}

// Tx implements the full-duplex transfer
func (v *VirtualController) Tx(w, r []byte) error {
	if len(w) != len(r) {
		return errors.New("virtual controller: tx and rx lengths differ")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.txErr != nil {
		return v.txErr
	}

	if len(v.boot) > 0 {
		n := copy(r, v.boot)
		v.boot = v.boot[n:]
		for i := n; i < len(r); i++ {
			r[i] = frame.NoComm
		}
		return nil
	}

	if isPoll(w, v.pollByte) {
		v.answerPoll(r)
		return nil
	}
	v.answerRequest(w, r)
	return nil
}

func isPoll(w []byte, pollByte byte) bool {
	for _, b := range w {
		if b != pollByte {
			return false
		}
	}
	return len(w) > 0
}

func (v *VirtualController) answerPoll(r []byte) {
	v.polls++
	for i := range r {
		r[i] = frame.NoComm
	}
	if v.pending == nil {
		return
	}
	if v.delay > 0 {
		v.delay--
		return
	}
	copy(r, v.pending)
	v.pending = nil
}

func (v *VirtualController) answerRequest(w, r []byte) {
	v.handshakes++

	switch {
	case v.silent:
		fill(r, frame.NoComm)
		return
	case v.busy > 0:
		v.busy--
		fill(r, frame.Busy)
		return
	}

	fill(r, frame.Ready)
	if v.mixed {
		for i := 1; i < len(r); i += 2 {
			r[i] = frame.NoComm
		}
	}
	if v.garbageAt >= 0 && v.garbageAt < len(r) {
		r[v.garbageAt] = v.garbage
		v.garbageAt = -1
		return
	}

	start := bytes.IndexByte(w, frame.RequestHeader)
	if start < 0 {
		return
	}
	req, err := message.ParseRequest(w[start:])
	if err != nil {
		return
	}
	v.requests = append(v.requests, req)

	resp := v.respond(req)
	if resp == nil {
		return
	}
	b, err := message.EncodeResponse(resp)
	if err != nil {
		return
	}
	if v.corrupt > 0 {
		v.corrupt--
		b[len(b)-1] ^= 0xFF
	}

	if v.embed > 0 && len(b) <= len(r) {
		v.embed--
		copy(r[len(r)-len(b):], b)
		return
	}
	v.pending = b
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

func (v *VirtualController) respond(req message.Request) message.Response {
	if v.handler != nil {
		if resp, ok := v.handler(req); ok {
			return resp
		}
	}

	switch r := req.(type) {
	case message.QueueAdd:
		if len(v.queue) >= v.capacity {
			return message.QueueAddAck{FrameID: r.FrameID, Queued: byte(len(v.queue)), Result: message.ResultQueueFull}
		}
		v.queue = append(v.queue, r)
		v.lastFrame = r.FrameID
		return message.QueueAddAck{FrameID: r.FrameID, Queued: byte(len(v.queue)), Result: message.ResultOK}
	case message.QueueStatus:
		v.step()
		return message.QueueStatusReply{
			FrameID:     r.FrameID,
			Queued:      byte(len(v.queue)),
			Capacity:    byte(v.capacity),
			State:       v.state,
			LastFrameID: v.lastFrame,
		}
	case message.StartMove:
		if len(v.queue) == 0 {
			return message.StartMoveAck{FrameID: r.FrameID, Result: message.ResultRejected}
		}
		v.state = message.StateRunning
		return message.StartMoveAck{FrameID: r.FrameID, Result: message.ResultOK}
	case message.MoveEnd:
		v.ended = true
		return message.MoveEndAck{FrameID: r.FrameID, Result: message.ResultOK}
	case message.LEDControl:
		return message.LEDAck{FrameID: r.FrameID, Mask: r.Mask, Mode: r.Mode, Frequency: r.Frequency}
	case message.LEDControlRGB:
		return message.LEDAckRGB{FrameID: r.FrameID, Result: message.ResultOK}
	case message.MoveHome:
		mask := r.AxisMask & message.AxisMask
		for i := range v.position {
			if mask&(1<<i) != 0 {
				v.position[i] = 0
			}
		}
		v.homed |= mask
		return message.HomeReply{FrameID: r.FrameID, AxisMask: r.AxisMask, HomedMask: mask, Result: message.ResultOK}
	case message.ProbeLevel:
		if v.homed&r.AxisMask != r.AxisMask {
			return message.ProbeReply{FrameID: r.FrameID, AxisMask: r.AxisMask}
		}
		return message.ProbeReply{FrameID: r.FrameID, AxisMask: r.AxisMask, Triggered: 1, Position: v.probePosition}
	case message.Status:
		v.step()
		return message.StatusReply{
			FrameID:  r.FrameID,
			State:    v.state,
			Faults:   v.faults,
			Queued:   byte(len(v.queue)),
			Position: v.position,
		}
	case message.Hello:
		return message.HelloReply{}
	}
	return nil
}

// step executes one queued move per status query while running
func (v *VirtualController) step() {
	if v.state != message.StateRunning {
		return
	}
	if len(v.queue) == 0 {
		if v.ended {
			v.state = message.StateIdle
			v.ended = false
		}
		return
	}
	mv := v.queue[0]
	v.queue = v.queue[1:]
	for i, ax := range mv.Axes {
		steps := int32(ax.Steps) //nolint:gosec // simulated positions wrap like the firmware's
		if mv.DirMask&(1<<i) != 0 {
			steps = -steps
		}
		v.position[i] += steps
	}
	if len(v.queue) == 0 && v.ended {
		v.state = message.StateIdle
		v.ended = false
	}
}

// SetHandler installs a request override
func (v *VirtualController) SetHandler(h Handler) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.handler = h
}

// SetTxError makes every transfer fail with err
func (v *VirtualController) SetTxError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.txErr = err
}

// SetResponseDelay makes each response appear only after n empty polls
func (v *VirtualController) SetResponseDelay(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.delay = n
}

// BusyFor answers the next n request transfers with BUSY
func (v *VirtualController) BusyFor(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.busy = n
}

// SetSilent makes the controller drive NO_COMM on every handshake and
// ignore requests
func (v *VirtualController) SetSilent(silent bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.silent = silent
}

// SetMixedHandshake alternates READY and NO_COMM in handshake echoes
func (v *VirtualController) SetMixedHandshake(mixed bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mixed = mixed
}

// CorruptNext flips the tail byte of the next n responses
func (v *VirtualController) CorruptNext(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.corrupt = n
}

// EmbedNext returns the next n responses inside the handshake echo
func (v *VirtualController) EmbedNext(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.embed = n
}

// InjectHandshakeByte puts b at position pos of the next handshake echo.
// The request carried by that transfer is dropped.
func (v *VirtualController) InjectHandshakeByte(pos int, b byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.garbageAt = pos
	v.garbage = b
}

// SetBootStream makes the following transfers return stream verbatim
// until it is used up, as after a controller reset
func (v *VirtualController) SetBootStream(stream []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.boot = append([]byte(nil), stream...)
}

// SetCapacity sets the move queue depth
func (v *VirtualController) SetCapacity(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.capacity = n
}

// SetFaults sets the fault flags reported by status
func (v *VirtualController) SetFaults(f byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.faults = f
}

// Requests returns every request the controller accepted
func (v *VirtualController) Requests() []message.Request {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]message.Request(nil), v.requests...)
}

// Handshakes returns the number of request transfers seen
func (v *VirtualController) Handshakes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.handshakes
}

// Polls returns the number of poll transfers seen
func (v *VirtualController) Polls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.polls
}

// Queued returns the number of moves waiting in the queue
func (v *VirtualController) Queued() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.queue)
}

// State returns the motion state
func (v *VirtualController) State() message.MotionState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Position returns the simulated axis positions
func (v *VirtualController) Position() [message.NumAxes]int32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.position
}
