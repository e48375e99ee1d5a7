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

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/stepbus/go-stepbus"
	"github.com/stepbus/go-stepbus/internal/frame"
	"github.com/stepbus/go-stepbus/message"
	"github.com/stepbus/go-stepbus/tmc"
)

// Output handles consistent formatting of results and failures
type Output struct {
	w    io.Writer
	json bool
}

// NewOutput creates a new output handler
func NewOutput(w io.Writer, jsonOut bool) *Output {
	return &Output{w: w, json: jsonOut}
}

// Result prints the outcome of a command
func (o *Output) Result(cmd string, v any) {
	if o.json {
		o.encode(o.w, map[string]any{"command": cmd, "result": v})
		return
	}
	for _, line := range describe(v) {
		_, _ = fmt.Fprintln(o.w, line)
	}
}

// Line prints an informational line. It is dropped in JSON mode.
func (o *Output) Line(format string, args ...any) {
	if o.json {
		return
	}
	_, _ = fmt.Fprintf(o.w, format+"\n", args...)
}

// Event prints one line of a streaming command
func (o *Output) Event(cmd, event string, fields map[string]any) {
	if o.json {
		rec := map[string]any{"command": cmd, "event": event}
		for k, v := range fields {
			rec[k] = v
		}
		o.encode(o.w, rec)
		return
	}
	parts := make([]string, 0, len(fields))
	for _, k := range sortedKeys(fields) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	_, _ = fmt.Fprintf(o.w, "%s %s\n", event, strings.Join(parts, " "))
}

// Failure prints err to w with whatever structure it carries
func (o *Output) Failure(w io.Writer, cmd string, err error) {
	fields := errorFields(err)
	if o.json {
		fields["command"] = cmd
		fields["error"] = err.Error()
		o.encode(w, fields)
		return
	}
	_, _ = fmt.Fprintf(w, "stepbusctl %s: %v\n", cmd, err)
	for _, k := range sortedKeys(fields) {
		_, _ = fmt.Fprintf(w, "  %s: %v\n", k, fields[k])
	}
}

func (*Output) encode(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	if err := enc.Encode(v); err != nil {
		_, _ = fmt.Fprintf(w, "{\"error\":%q}\n", err.Error())
	}
}

// errorFields pulls the diagnostic context out of the library's error types
func errorFields(err error) map[string]any {
	fields := map[string]any{}

	var (
		te  *stepbus.TimeoutError
		pf  *stepbus.ProtocolFault
		bf  *stepbus.BusyFault
		de  *stepbus.DecodeError
		tre *stepbus.TransportError
		sf  *tmc.StatusFault
	)
	switch {
	case errors.As(err, &te):
		fields["type"] = "timeout"
		fields["op"] = te.Op
		fields["request"] = frame.Hex(te.Request)
		fields["attempts"] = te.Attempts
		fields["tries"] = te.Tries
		fields["settle_delay"] = te.SettleDelay.String()
		if errors.As(te.Last, &de) {
			fields["last_check"] = de.Check
			fields["last_frame"] = frame.Hex(de.Frame)
		}
	case errors.As(err, &pf):
		fields["type"] = "protocol_fault"
		fields["kind"] = pf.Kind.String()
		fields["request"] = frame.Hex(pf.Request)
		fields["echo"] = frame.Hex(pf.Echo)
		fields["silent"] = pf.Silent
		if pf.Position >= 0 {
			fields["region"] = string(pf.Region)
			fields["position"] = pf.Position
			fields["sent"] = fmt.Sprintf("0x%02X", pf.Sent)
			fields["got"] = fmt.Sprintf("0x%02X", pf.Got)
		}
	case errors.As(err, &bf):
		fields["type"] = "busy"
		fields["kind"] = bf.Kind.String()
		fields["request"] = frame.Hex(bf.Request)
	case errors.As(err, &de):
		fields["type"] = "decode"
		fields["check"] = de.Check
		fields["frame"] = frame.Hex(de.Frame)
	case errors.As(err, &sf):
		fields["type"] = "driver_status"
		fields["register"] = sf.Register.String()
		fields["status"] = sf.Status.String()
	case errors.As(err, &tre):
		fields["type"] = "transport"
		fields["op"] = tre.Op
		fields["class"] = tre.Type.String()
	}
	if len(fields) > 0 {
		fields["retryable"] = stepbus.IsRetryable(err)
	}
	return fields
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// describe renders a result for humans
func describe(v any) []string {
	switch r := v.(type) {
	case message.StatusReply:
		return []string{
			fmt.Sprintf("frame id:  %d", r.FrameID),
			fmt.Sprintf("state:     %s", r.State),
			fmt.Sprintf("faults:    %s", faultNames(r.Faults)),
			fmt.Sprintf("queued:    %d", r.Queued),
			fmt.Sprintf("position:  x=%d y=%d z=%d", r.Position[0], r.Position[1], r.Position[2]),
		}
	case message.QueueStatusReply:
		return []string{
			fmt.Sprintf("frame id:  %d", r.FrameID),
			fmt.Sprintf("state:     %s", r.State),
			fmt.Sprintf("queued:    %d/%d", r.Queued, r.Capacity),
			fmt.Sprintf("last move: %d", r.LastFrameID),
		}
	case message.QueueAddAck:
		return []string{fmt.Sprintf("frame %d: %s (queued %d)", r.FrameID, r.Result, r.Queued)}
	case message.StartMoveAck:
		return []string{fmt.Sprintf("frame %d: %s", r.FrameID, r.Result)}
	case message.MoveEndAck:
		return []string{fmt.Sprintf("frame %d: %s", r.FrameID, r.Result)}
	case message.LEDAck:
		return []string{fmt.Sprintf("frame %d: leds 0x%X mode %d at %d Hz", r.FrameID, r.Mask, r.Mode, r.Frequency)}
	case message.LEDAckRGB:
		return []string{fmt.Sprintf("frame %d: %s", r.FrameID, r.Result)}
	case message.HomeReply:
		return []string{fmt.Sprintf("frame %d: %s, homed 0x%X of 0x%X", r.FrameID, r.Result, r.HomedMask, r.AxisMask)}
	case message.ProbeReply:
		return []string{fmt.Sprintf("frame %d: triggered 0x%X at %d", r.FrameID, r.Triggered, r.Position)}
	case message.HelloReply:
		return []string{"hello"}
	case *stepbus.ResyncResult:
		return []string{
			fmt.Sprintf("token found after %d reads", r.ReadsUsed),
			fmt.Sprintf("bytes before header: %d", r.BytesBeforeHeader),
			fmt.Sprintf("bytes until tail:    %d", r.BytesUntilTail),
		}
	case registerValue:
		return []string{fmt.Sprintf("%s %s = 0x%08X (status %s)", r.Driver, r.Register, r.Value, r.Status)}
	default:
		return []string{fmt.Sprintf("%+v", v)}
	}
}

func faultNames(f byte) string {
	if f == 0 {
		return "none"
	}
	names := []struct {
		name string
		bit  byte
	}{
		{"emergency-stop", message.FaultEmergencyStop},
		{"limit-switch", message.FaultLimitSwitch},
		{"driver", message.FaultDriver},
		{"queue-overrun", message.FaultQueueOverrun},
	}
	var out []string
	for _, n := range names {
		if f&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	if rest := f &^ 0x0F; rest != 0 {
		out = append(out, fmt.Sprintf("0x%02X", rest))
	}
	return strings.Join(out, ",")
}
