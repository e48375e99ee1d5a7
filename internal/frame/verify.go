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

package frame

import "fmt"

// Parity identifies how a frame protects its payload
type Parity uint8

const (
	// ParityNone frames carry no parity byte
	ParityNone Parity = iota
	// ParityByte stores the full XOR byte
	ParityByte
	// ParityBit stores the XOR folded to bit 0
	ParityBit
)

// String returns the parity scheme name
func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityByte:
		return "byte"
	case ParityBit:
		return "bit"
	default:
		return fmt.Sprintf("parity(%d)", uint8(p))
	}
}

// Layout describes the fixed shape of one frame type.
// The parity byte, when present, sits directly before the tail.
// Frames with no variable content set Fixed to the only accepted bytes.
type Layout struct {
	Fixed      []byte
	Length     int
	Header     byte
	Tail       byte
	Type       byte
	Parity     Parity
	ParityFrom int
	ParityTo   int
}

// ParityOffset returns where the parity byte is stored
func (l Layout) ParityOffset() int {
	return l.Length - 2
}

// Seal writes header, type, tail and parity into b, which must be l.Length long
func (l Layout) Seal(b []byte) {
	b[0] = l.Header
	b[1] = l.Type
	b[l.Length-1] = l.Tail
	switch l.Parity {
	case ParityByte:
		b[l.ParityOffset()] = ByteParity(b, l.ParityFrom, l.ParityTo)
	case ParityBit:
		b[l.ParityOffset()] = BitParity(b, l.ParityFrom, l.ParityTo)
	case ParityNone:
	}
}

// Check names the verification step that rejected a frame
type Check string

// Verification steps, in the order Verify applies them
const (
	CheckLength Check = "length"
	CheckHeader Check = "header"
	CheckTail   Check = "tail"
	CheckType   Check = "type"
	CheckParity Check = "parity"
	CheckFixed  Check = "content"
)

// Error reports a frame that failed verification
type Error struct {
	Check  Check
	Offset int
	Want   int
	Got    int
}

func (e *Error) Error() string {
	if e.Check == CheckLength {
		return fmt.Sprintf("frame: bad length: want %d bytes, got %d", e.Want, e.Got)
	}
	return fmt.Sprintf("frame: bad %s at offset %d: want 0x%02X, got 0x%02X", e.Check, e.Offset, e.Want, e.Got)
}

// Verify checks length, header, tail, type, parity and fixed content in that order.
// It never reads outside b.
func Verify(b []byte, l Layout) error {
	if len(b) != l.Length || len(b) < MinFrameLength {
		return &Error{Check: CheckLength, Want: l.Length, Got: len(b)}
	}
	if b[0] != l.Header {
		return &Error{Check: CheckHeader, Offset: 0, Want: int(l.Header), Got: int(b[0])}
	}
	last := len(b) - 1
	if b[last] != l.Tail {
		return &Error{Check: CheckTail, Offset: last, Want: int(l.Tail), Got: int(b[last])}
	}
	if b[1] != l.Type {
		return &Error{Check: CheckType, Offset: 1, Want: int(l.Type), Got: int(b[1])}
	}

	if err := verifyParity(b, l); err != nil {
		return err
	}

	if l.Fixed != nil {
		for i, v := range l.Fixed {
			if i < len(b) && b[i] != v {
				return &Error{Check: CheckFixed, Offset: i, Want: int(v), Got: int(b[i])}
			}
		}
	}
	return nil
}

func verifyParity(b []byte, l Layout) error {
	var want byte
	switch l.Parity {
	case ParityNone:
		return nil
	case ParityByte:
		want = ByteParity(b, l.ParityFrom, l.ParityTo)
	case ParityBit:
		want = BitParity(b, l.ParityFrom, l.ParityTo)
	}
	off := l.ParityOffset()
	if b[off] != want {
		return &Error{Check: CheckParity, Offset: off, Want: int(want), Got: int(b[off])}
	}
	return nil
}

// Scan looks for a frame matching l anywhere in buf. Every offset holding
// l.Header is tried in order; candidates that run past the end of buf or
// fail Verify are skipped. The error from the last rejected candidate is
// returned when nothing matches, or nil when no header was seen at all.
func Scan(buf []byte, l Layout) (frm []byte, offset int, lastErr error) {
	for i, v := range buf {
		if v != l.Header {
			continue
		}
		if i+l.Length > len(buf) {
			lastErr = &Error{Check: CheckLength, Want: l.Length, Got: len(buf) - i}
			continue
		}
		candidate := buf[i : i+l.Length]
		if err := Verify(candidate, l); err != nil {
			lastErr = err
			continue
		}
		out := make([]byte, l.Length)
		copy(out, candidate)
		return out, i, nil
	}
	return nil, -1, lastErr
}
