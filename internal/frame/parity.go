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

// ByteParity returns the XOR of b[from..to], both ends inclusive.
// An invalid range is a programming error and panics.
func ByteParity(b []byte, from, to int) byte {
	if from < 0 || to >= len(b) || from > to {
		panic(fmt.Sprintf("frame: parity range [%d..%d] outside %d byte frame", from, to, len(b)))
	}

	var p byte
	for _, v := range b[from : to+1] {
		p ^= v
	}
	return p
}

// BitParity folds ByteParity down to a single bit, returned in bit 0
func BitParity(b []byte, from, to int) byte {
	x := ByteParity(b, from, to)
	x ^= x >> 4
	x ^= x >> 2
	x ^= x >> 1
	return x & 0x01
}
