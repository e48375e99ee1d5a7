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

/*
Package stepbus is the host side of the SPI link to a motion control
microcontroller and its stepper drivers.

The controller speaks a handshake protocol: every request is right aligned
in a fixed transfer frame, the controller drives a handshake code back on
each byte while the request shifts in, and the response is clocked out
later by poll transfers. Frames carry a header, a type byte, optional byte
or bit parity and a tail; the message package holds the catalog of typed
requests and responses.

Features:
  - Typed requests and responses for every controller message
  - Exchange engine with handshake judging, bounded polling and typed faults
  - Boot resynchronisation by token search across chunk boundaries
  - Busy cooldown with exponential backoff and per class retry budgets
  - SPI (periph.io) and USB serial bridge transports, bus detection
  - Driver register access in the tmc package
  - zap logging and Prometheus metrics

Basic Usage:

	import (
	    "github.com/stepbus/go-stepbus"
	    "github.com/stepbus/go-stepbus/message"
	    "github.com/stepbus/go-stepbus/transport/spi"
	)

	transport, err := spi.New("/dev/spidev0.0")
	if err != nil {
	    log.Fatal(err)
	}

	device, err := stepbus.New(transport,
	    stepbus.WithProtocolVersion(stepbus.ProtocolV2),
	    stepbus.WithMaxRetries(5),
	)
	if err != nil {
	    log.Fatal(err)
	}
	defer device.Close()

	if err := device.Init(ctx); err != nil {
	    log.Fatal(err)
	}

	ack, err := device.QueueAdd(ctx, message.QueueAdd{
	    Axes: [3]message.AxisMove{{Steps: 3200, Velocity: 800}},
	})

Error Handling:

A response that never arrives within the poll budget is a *TimeoutError
carrying the request bytes and the last decode failure. A handshake that
is all BUSY is a *BusyFault; Device retries those after a cooldown. Any
other unexpected handshake byte is a *ProtocolFault naming the position
and whether it fell on padding or on the request. All of them match the
sentinels ErrTimeout, ErrBusy and ErrProtocolFault through errors.Is.

Concurrency:

One Engine owns one bus and lets a single exchange onto it at a time.
Device methods may be called from several goroutines.
*/
package stepbus
