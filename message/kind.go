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

// Package message holds the controller message catalog: typed requests,
// typed responses and the fixed byte layout each one travels in.
package message

import (
	"fmt"
	"sync"
)

// Kind is the request type code carried in byte 1 of a request frame.
// The matching response carries the same code.
type Kind byte

// Request type codes understood by the controller
const (
	KindQueueAdd    Kind = 0x01
	KindQueueStatus Kind = 0x02
	KindStartMove   Kind = 0x03
	KindMoveHome    Kind = 0x04
	KindProbeLevel  Kind = 0x05
	KindMoveEnd     Kind = 0x06
	KindLEDControl  Kind = 0x07
	KindStatus      Kind = 0x20
	KindHello       Kind = 0x68
)

var kindNames = map[Kind]string{
	KindQueueAdd:    "queue-add",
	KindQueueStatus: "queue-status",
	KindStartMove:   "start-move",
	KindMoveHome:    "move-home",
	KindProbeLevel:  "probe-level",
	KindMoveEnd:     "move-end",
	KindLEDControl:  "led-control",
	KindStatus:      "status",
	KindHello:       "hello",
}

// String returns the CLI style name of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(0x%02X)", byte(k))
}

// Kinds returns every known kind in code order
func Kinds() []Kind {
	return []Kind{
		KindQueueAdd, KindQueueStatus, KindStartMove, KindMoveHome, KindProbeLevel,
		KindMoveEnd, KindLEDControl, KindStatus, KindHello,
	}
}

// FrameID is the caller assigned correlation byte. Zero is reserved.
type FrameID byte

// Sequence hands out frame ids 1..255, wrapping and never returning 0.
// The zero value is ready to use.
type Sequence struct {
	mu   sync.Mutex
	last FrameID
}

// Next returns the next frame id
func (s *Sequence) Next() FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	if s.last == 0 {
		s.last = 1
	}
	return s.last
}

// Reset makes the next call to Next return start (or 1 if start is 0)
func (s *Sequence) Reset(start FrameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if start == 0 {
		start = 1
	}
	s.last = start - 1
}

// LEDProfile selects between the two LED request layouts in circulation
type LEDProfile int

const (
	// ProfileModeFrequency is the 9 byte mask/mode/frequency layout
	ProfileModeFrequency LEDProfile = iota
	// ProfileRGB is the legacy 12 byte layout with a colour triple
	ProfileRGB
)

// String returns the profile name as used in configuration files
func (p LEDProfile) String() string {
	switch p {
	case ProfileModeFrequency:
		return "mode-frequency"
	case ProfileRGB:
		return "rgb"
	default:
		return fmt.Sprintf("profile(%d)", int(p))
	}
}

// ParseLEDProfile maps a configuration name to a profile
func ParseLEDProfile(s string) (LEDProfile, error) {
	switch s {
	case "", "mode-frequency":
		return ProfileModeFrequency, nil
	case "rgb", "legacy-rgb":
		return ProfileRGB, nil
	default:
		return 0, fmt.Errorf("%w: unknown led profile %q", ErrInvalidField, s)
	}
}

// MotionState is the controller's motion engine state
type MotionState byte

// Motion engine states
const (
	StateIdle    MotionState = 0x00
	StateRunning MotionState = 0x01
	StateHoming  MotionState = 0x02
	StateProbing MotionState = 0x03
	StateHalted  MotionState = 0x04
)

// String returns the state name
func (s MotionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateHoming:
		return "homing"
	case StateProbing:
		return "probing"
	case StateHalted:
		return "halted"
	default:
		return fmt.Sprintf("state(0x%02X)", byte(s))
	}
}

// Result is the status code the controller attaches to acknowledgements
type Result byte

// Acknowledgement results
const (
	ResultOK        Result = 0x00
	ResultRejected  Result = 0x01
	ResultQueueFull Result = 0x02
	ResultBadParity Result = 0x03
	ResultNotHomed  Result = 0x04
)

// OK reports whether the controller accepted the request
func (r Result) OK() bool { return r == ResultOK }

// String returns the result name
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultRejected:
		return "rejected"
	case ResultQueueFull:
		return "queue full"
	case ResultBadParity:
		return "bad parity"
	case ResultNotHomed:
		return "not homed"
	default:
		return fmt.Sprintf("result(0x%02X)", byte(r))
	}
}

// Axis bit masks
const (
	AxisX    byte = 0x01
	AxisY    byte = 0x02
	AxisZ    byte = 0x04
	AxisMask byte = AxisX | AxisY | AxisZ

	// NumAxes is the number of motion axes carried by queue and status frames
	NumAxes = 3

	// MaxLEDMask covers four LED channels
	MaxLEDMask byte = 0x0F
	// MaxLEDMode is the highest LED mode code
	MaxLEDMode byte = 0x03
)
