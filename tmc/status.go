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

package tmc

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the first byte echoed by every transaction. Bits are sticky
// until the chip clears them.
type Status byte

// Status bits
const (
	StatusReset           Status = 1 << 0
	StatusUndervoltage    Status = 1 << 1
	StatusOvertemperature Status = 1 << 2
	StatusShortToGround   Status = 1 << 3
	StatusOpenLoad        Status = 1 << 4
	StatusStall           Status = 1 << 5
	StatusStandstill      Status = 1 << 6
	StatusVelocityReached Status = 1 << 7

	faultMask = StatusUndervoltage | StatusOvertemperature | StatusShortToGround |
		StatusOpenLoad | StatusStall
)

// Fault sentinels, matched by *StatusFault through errors.Is
var (
	ErrUndervoltage    = errors.New("driver undervoltage")
	ErrOvertemperature = errors.New("driver overtemperature")
	ErrShortToGround   = errors.New("driver short to ground")
	ErrOpenLoad        = errors.New("driver open load")
	ErrStall           = errors.New("driver stall")
)

var statusBits = []struct {
	bit  Status
	name string
	err  error
}{
	{StatusReset, "reset", nil},
	{StatusUndervoltage, "undervoltage", ErrUndervoltage},
	{StatusOvertemperature, "overtemperature", ErrOvertemperature},
	{StatusShortToGround, "short-to-ground", ErrShortToGround},
	{StatusOpenLoad, "open-load", ErrOpenLoad},
	{StatusStall, "stall", ErrStall},
	{StatusStandstill, "standstill", nil},
	{StatusVelocityReached, "velocity-reached", nil},
}

// Faults returns only the fault bits of s
func (s Status) Faults() Status {
	return s & faultMask
}

// Has reports whether every bit of mask is set
func (s Status) Has(mask Status) bool {
	return s&mask == mask
}

// String lists the set bits, e.g. "stall|standstill"
func (s Status) String() string {
	if s == 0 {
		return "ok"
	}
	var names []string
	for _, b := range statusBits {
		if s&b.bit != 0 {
			names = append(names, b.name)
		}
	}
	return strings.Join(names, "|")
}

// StatusFault reports fault bits seen after a register access
type StatusFault struct {
	Op       string
	Register Register
	Index    int // position in a write sequence, or -1
	Status   Status
}

func (e *StatusFault) Error() string {
	msg := fmt.Sprintf("%s %s: driver fault %s (status 0x%02X)", e.Op, e.Register, e.Status.Faults(), byte(e.Status))
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s (sequence index %d)", msg, e.Index)
	}
	return msg
}

// Is matches the sentinel of every fault bit set
func (e *StatusFault) Is(target error) bool {
	for _, b := range statusBits {
		if b.err != nil && e.Status&b.bit != 0 && target == b.err {
			return true
		}
	}
	return false
}

// check returns a *StatusFault if s carries fault bits
func check(op string, reg Register, s Status) error {
	if s.Faults() == 0 {
		return nil
	}
	return &StatusFault{Op: op, Register: reg, Status: s, Index: -1}
}
