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

// Package uart provides a transport for USB serial bridges that clock an
// SPI bus. Every byte written is shifted out on MOSI and the byte shifted
// in on MISO is returned on the serial line.
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	stepbus "github.com/stepbus/go-stepbus"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is used when none is configured
	DefaultBaudRate = 921600

	// readSlice is how long a single Read blocks before ctx is checked
	readSlice = 10 * time.Millisecond
)

var errShortRead = errors.New("bridge returned fewer bytes than sent")

// port is the subset of serial.Port used by Transport
type port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Transport implements stepbus.Transport over a serial bridge
type Transport struct {
	port     port
	portName string
	timeout  time.Duration
	mu       sync.Mutex
}

// New opens portName at baud. A zero baud uses DefaultBaudRate.
func New(portName string, baud int) (*Transport, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	p, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, stepbus.NewTransportError("open", portName, err, stepbus.ErrorTypePermanent)
	}

	t := &Transport{port: p, portName: portName, timeout: 100 * time.Millisecond}
	if err := p.SetReadTimeout(readSlice); err != nil {
		_ = p.Close()
		return nil, stepbus.NewTransportError("open", portName, err, stepbus.ErrorTypePermanent)
	}
	return t, nil
}

// Tx writes w and reads back len(r) bytes within the transport timeout
func (t *Transport) Tx(w, r []byte) error {
	return t.TxContext(context.Background(), w, r)
}

// TxContext is Tx that also stops when ctx is done
func (t *Transport) TxContext(ctx context.Context, w, r []byte) error {
	if len(w) != len(r) {
		return fmt.Errorf("%w: tx %d bytes, rx %d bytes", stepbus.ErrInvalidParameter, len(w), len(r))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return stepbus.ErrTransportClosed
	}

	// Stale bytes from an aborted transfer would shift every later frame
	if err := t.port.ResetInputBuffer(); err != nil {
		return stepbus.NewTransportError("reset", t.portName, err, stepbus.ErrorTypeTransient)
	}
	if _, err := t.port.Write(w); err != nil {
		return stepbus.NewTransportError("write", t.portName, err, stepbus.ErrorTypeTransient)
	}
	return t.readFull(ctx, r)
}

func (t *Transport) readFull(ctx context.Context, r []byte) error {
	deadline := time.Now().Add(t.timeout)
	got := 0
	for got < len(r) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return stepbus.NewTransportError("read", t.portName,
				fmt.Errorf("%w: %d of %d", errShortRead, got, len(r)), stepbus.ErrorTypeTransient)
		}

		n, err := t.port.Read(r[got:])
		if err != nil {
			return stepbus.NewTransportError("read", t.portName, err, stepbus.ErrorTypeTransient)
		}
		got += n
	}
	return nil
}

// SetTimeout sets how long a transfer may wait for the bridge
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout %s", stepbus.ErrInvalidParameter, timeout)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close closes the serial port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return stepbus.NewTransportError("close", t.portName, err, stepbus.ErrorTypePermanent)
	}
	return nil
}

// IsConnected returns true if the port is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() stepbus.TransportType {
	return stepbus.TransportUART
}
