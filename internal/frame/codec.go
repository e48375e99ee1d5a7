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

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// PutUint16 writes v big-endian at b[off:off+2]
func PutUint16(b []byte, off int, v uint16) {
	binary.BigEndian.PutUint16(b[off:off+2], v)
}

// PutUint32 writes v big-endian at b[off:off+4]
func PutUint32(b []byte, off int, v uint32) {
	binary.BigEndian.PutUint32(b[off:off+4], v)
}

// Uint16 reads a big-endian value at b[off:off+2]
func Uint16(b []byte, off int) uint16 {
	return binary.BigEndian.Uint16(b[off : off+2])
}

// Uint32 reads a big-endian value at b[off:off+4]
func Uint32(b []byte, off int) uint32 {
	return binary.BigEndian.Uint32(b[off : off+4])
}

// RightAlign places frm at the end of an n byte buffer filled with pad.
// The tail of frm always lands on the last byte of the result.
func RightAlign(frm []byte, n int, pad byte) ([]byte, error) {
	if len(frm) > n {
		return nil, fmt.Errorf("frame: %d byte frame does not fit %d byte transfer", len(frm), n)
	}

	out := make([]byte, n)
	padding := n - len(frm)
	for i := 0; i < padding; i++ {
		out[i] = pad
	}
	copy(out[padding:], frm)
	return out, nil
}

// Filled returns an n byte buffer where every byte is v
func Filled(n int, v byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Hex formats b as space separated upper case hex pairs
func Hex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, v := range b {
		if i > 0 {
			_ = sb.WriteByte(' ')
		}
		_, _ = fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}
