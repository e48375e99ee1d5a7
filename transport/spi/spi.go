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

// Package spi provides the spidev transport on periph.io
package spi

import (
	"fmt"
	"sync"
	"time"

	stepbus "github.com/stepbus/go-stepbus"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// DefaultSpeed is the clock used when none is configured
	DefaultSpeed = 1 * physic.MegaHertz

	// DefaultMode is CPOL=0 CPHA=0
	DefaultMode = spi.Mode0

	bitsPerWord = 8
)

// Option configures a Transport
type Option func(*config)

type config struct {
	speed physic.Frequency
	mode  spi.Mode
}

// WithSpeed sets the SPI clock
func WithSpeed(f physic.Frequency) Option {
	return func(c *config) {
		c.speed = f
	}
}

// WithMode sets the SPI mode
func WithMode(m spi.Mode) Option {
	return func(c *config) {
		c.mode = m
	}
}

// Transport implements stepbus.Transport on an SPI port
type Transport struct {
	port spi.PortCloser
	conn spi.Conn
	name string
	mu   sync.Mutex
}

// New opens the SPI port by name, e.g. "/dev/spidev0.0" or "SPI0.0"
func New(name string, opts ...Option) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	port, err := spireg.Open(name)
	if err != nil {
		return nil, stepbus.NewTransportError("open", name, err, stepbus.ErrorTypePermanent)
	}

	t, err := NewWithPort(name, port, opts...)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return t, nil
}

// NewWithPort connects an already opened port
func NewWithPort(name string, port spi.PortCloser, opts ...Option) (*Transport, error) {
	cfg := config{speed: DefaultSpeed, mode: DefaultMode}
	for _, opt := range opts {
		opt(&cfg)
	}

	conn, err := port.Connect(cfg.speed, cfg.mode, bitsPerWord)
	if err != nil {
		return nil, stepbus.NewTransportError("connect", name, err, stepbus.ErrorTypePermanent)
	}

	return &Transport{
		port: port,
		conn: conn,
		name: name,
	}, nil
}

// Tx shifts w out while reading len(w) bytes into r
func (t *Transport) Tx(w, r []byte) error {
	if len(w) != len(r) {
		return fmt.Errorf("%w: tx %d bytes, rx %d bytes", stepbus.ErrInvalidParameter, len(w), len(r))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return stepbus.ErrTransportClosed
	}
	if err := t.conn.Tx(w, r); err != nil {
		return stepbus.NewTransportError("tx", t.name, err, stepbus.ErrorTypeTransient)
	}
	return nil
}

// SetTimeout has no effect. A spidev transfer is a single synchronous
// ioctl that the kernel clocks out in full, so there is nothing to bound.
func (*Transport) SetTimeout(time.Duration) error {
	return nil
}

// Close releases the port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	t.conn = nil
	if err != nil {
		return stepbus.NewTransportError("close", t.name, err, stepbus.ErrorTypePermanent)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Type returns the transport type
func (*Transport) Type() stepbus.TransportType {
	return stepbus.TransportSPI
}

// String returns the port name
func (t *Transport) String() string {
	return t.name
}
