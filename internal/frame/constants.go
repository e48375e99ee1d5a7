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

// Package frame provides frame manipulation and protocol constants for the controller bus
package frame

// Frame direction markers - each direction has its own header and tail byte
const (
	RequestHeader  = 0xAA // Host to controller
	RequestTail    = 0x55
	ResponseHeader = 0xAB // Controller to host
	ResponseTail   = 0x54
)

// Handshake echo codes driven back by the controller while a request is shifted in
const (
	Ready  = 0xA5
	Busy   = 0x5A
	NoComm = 0x00
)

// Filler bytes
const (
	DefaultPadByte  = 0x00 // Left padding of a request inside the transfer frame
	DefaultPollByte = 0xFF // Clocked out while reading back a response
)

// Transfer frame sizes
const (
	TransferLengthV1 = 42
	TransferLengthV2 = 43
	MaxFrameLength   = TransferLengthV2

	// MinFrameLength covers header, type and tail
	MinFrameLength = 3
)
