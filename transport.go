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
	"time"
)

// Duplexer is the physical full-duplex primitive: w is shifted out while
// the same number of bytes is shifted into r. len(w) must equal len(r).
type Duplexer interface {
	Tx(w, r []byte) error
}

// Transport is an owned bus handle. It can be implemented by an SPI
// device node or a USB serial bridge.
type Transport interface {
	Duplexer

	// Close releases the bus
	Close() error

	// SetTimeout sets the per-transfer timeout where the backend has one
	SetTimeout(timeout time.Duration) error

	// IsConnected returns true if the transport is open
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportSPI represents a native SPI device node.
	TransportSPI TransportType = "spi"
	// TransportUART represents a USB serial to SPI bridge.
	TransportUART TransportType = "uart"
	// TransportMock represents an in-memory transport for testing
	TransportMock TransportType = "mock"
)

// DuplexFunc adapts a function to the Duplexer interface
type DuplexFunc func(w, r []byte) error

// Tx calls f(w, r)
func (f DuplexFunc) Tx(w, r []byte) error {
	return f(w, r)
}
