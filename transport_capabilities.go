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

// TransportTuner lets a transport supply its own exchange budgets
type TransportTuner interface {
	// TunePolicy returns the budgets this transport needs
	TunePolicy(base Policy) Policy
}

// policyForTransport returns the exchange budgets for t
func policyForTransport(t Transport) Policy {
	base := DefaultPolicy()
	if t == nil {
		return base
	}

	// Check if transport provides its own tuning
	if tuner, ok := t.(TransportTuner); ok {
		return tuner.TunePolicy(base)
	}

	// Default tuning based on transport type
	switch t.Type() {
	case TransportSPI:
		return spiPolicy()
	case TransportUART:
		return uartPolicy()
	case TransportMock:
		// Mock transport answers instantly
		return mockPolicy()
	default:
		return base
	}
}

// spiPolicy returns budgets for a native SPI device node
func spiPolicy() Policy {
	return Policy{
		ClassQuery:   {Tries: 10, SettleDelay: 1 * time.Millisecond}, // SPI is fast
		ClassCommand: {Tries: 10, SettleDelay: 1 * time.Millisecond},
		ClassQueue:   {Tries: 20, SettleDelay: 1 * time.Millisecond},
		ClassMotion:  {Tries: 1200, SettleDelay: 25 * time.Millisecond},
	}
}

// uartPolicy returns budgets for a USB serial bridge, which adds a USB
// frame of latency to every transfer
func uartPolicy() Policy {
	return Policy{
		ClassQuery:   {Tries: 8, SettleDelay: 5 * time.Millisecond},
		ClassCommand: {Tries: 8, SettleDelay: 5 * time.Millisecond},
		ClassQueue:   {Tries: 15, SettleDelay: 5 * time.Millisecond},
		ClassMotion:  {Tries: 300, SettleDelay: 100 * time.Millisecond},
	}
}

func mockPolicy() Policy {
	return Policy{
		ClassQuery:   {Tries: 3},
		ClassCommand: {Tries: 3},
		ClassQueue:   {Tries: 3},
		ClassMotion:  {Tries: 3},
	}
}
