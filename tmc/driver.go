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

// Package tmc talks to stepper driver chips over their 5-byte pipelined
// register protocol. The value echoed by transaction N belongs to the
// command sent in transaction N-1.
package tmc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	stepbus "github.com/stepbus/go-stepbus"
	"github.com/stepbus/go-stepbus/internal/frame"
	"github.com/stepbus/go-stepbus/internal/retry"
	"go.uber.org/zap"
)

// FrameLength is the size of every register transaction
const FrameLength = 5

const readBit = 0x80

// Driver errors
var (
	// ErrNoChip means MISO stayed high for every attempt
	ErrNoChip = errors.New("no driver chip answering")
	// ErrVerify means a register did not read back the value written
	ErrVerify = errors.New("register verify failed")
)

// EncodeWrite returns the transaction that writes value to reg
func EncodeWrite(reg Register, value uint32) [FrameLength]byte {
	var f [FrameLength]byte
	f[0] = byte(reg) & 0x7F
	frame.PutUint32(f[:], 1, value)
	return f
}

// EncodeRead returns the transaction that requests reg
func EncodeRead(reg Register) [FrameLength]byte {
	return [FrameLength]byte{byte(reg) | readBit}
}

// DecodeReply splits an echoed transaction into status and value
func DecodeReply(rx []byte) (Status, uint32) {
	if len(rx) < FrameLength {
		return 0, 0
	}
	return Status(rx[0]), frame.Uint32(rx, 1)
}

// Config configures a Driver
type Config struct {
	Logger  *zap.Logger
	Metrics *stepbus.Metrics
	Name    string
	// Tries is how many times a transaction echoing all 0xFF is attempted
	Tries       int
	SettleDelay time.Duration
}

// DefaultConfig returns the default driver configuration
func DefaultConfig() Config {
	return Config{
		Tries:       3,
		SettleDelay: time.Millisecond,
	}
}

// Option configures a Driver
type Option func(*Config)

// WithName labels the driver in logs and errors
func WithName(name string) Option {
	return func(c *Config) { c.Name = name }
}

// WithTries sets the attempt budget per transaction
func WithTries(n int) Option {
	return func(c *Config) { c.Tries = n }
}

// WithSettleDelay sets the delay between attempts
func WithSettleDelay(d time.Duration) Option {
	return func(c *Config) { c.SettleDelay = d }
}

// WithLogger sets the driver logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics reports transactions to m
func WithMetrics(m *stepbus.Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

// Driver is one chip on its own chip select. A Driver serialises its
// callers since every transaction depends on the one before it.
type Driver struct {
	bus  stepbus.Duplexer
	log  *zap.Logger
	cfg  Config
	mu   sync.Mutex
	last Status
}

// New creates a driver on bus
func New(bus stepbus.Duplexer, opts ...Option) *Driver {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Tries < 1 {
		cfg.Tries = 1
	}
	log := cfg.Logger
	if log == nil {
		log = stepbus.Logger()
	}
	if cfg.Name != "" {
		log = log.With(zap.String("driver", cfg.Name))
	}
	return &Driver{bus: bus, cfg: cfg, log: log.Named("tmc")}
}

// Name returns the driver label
func (d *Driver) Name() string {
	return d.cfg.Name
}

// LastStatus returns the status byte of the most recent transaction
func (d *Driver) LastStatus() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// transfer runs one transaction, repeating it while MISO floats high
func (d *Driver) transfer(ctx context.Context, tx [FrameLength]byte) ([]byte, error) {
	rx, attempts, err := retry.Do(ctx, retry.Config{
		Description: "driver transfer",
		MaxRetries:  d.cfg.Tries - 1,
		RetryDelay:  d.cfg.SettleDelay,
	}, func(int) ([]byte, bool, error) {
		rx := make([]byte, FrameLength)
		if err := d.bus.Tx(tx[:], rx); err != nil {
			return nil, false, err
		}
		return rx, floating(rx), nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		return nil, fmt.Errorf("%w: %d attempts", ErrNoChip, attempts)
	}
	if err != nil {
		return nil, err
	}
	d.last = Status(rx[0])
	return rx, nil
}

func floating(rx []byte) bool {
	for _, b := range rx {
		if b != 0xFF {
			return false
		}
	}
	return true
}

// Write sets reg to value and returns the value echoed from the previous
// transaction
func (d *Driver) Write(ctx context.Context, reg Register, value uint32) (uint32, error) {
	if !reg.Valid() {
		return 0, fmt.Errorf("%w: register 0x%02X", stepbus.ErrInvalidParameter, byte(reg))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	prev, err := d.write(ctx, reg, value)
	d.cfg.Metrics.ObserveDriverTransaction("write", err)
	return prev, err
}

func (d *Driver) write(ctx context.Context, reg Register, value uint32) (uint32, error) {
	rx, err := d.transfer(ctx, EncodeWrite(reg, value))
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", reg, err)
	}
	status, prev := DecodeReply(rx)
	d.log.Debug("register write",
		zap.Stringer("register", reg),
		zap.Uint32("value", value),
		zap.Stringer("status", status),
	)
	return prev, check("write", reg, status)
}

// Read returns the value of reg. It takes two transactions: the first
// issues the read, the second clocks the value out.
func (d *Driver) Read(ctx context.Context, reg Register) (uint32, error) {
	if !reg.Valid() {
		return 0, fmt.Errorf("%w: register 0x%02X", stepbus.ErrInvalidParameter, byte(reg))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.read(ctx, reg)
	d.cfg.Metrics.ObserveDriverTransaction("read", err)
	return v, err
}

func (d *Driver) read(ctx context.Context, reg Register) (uint32, error) {
	if _, err := d.transfer(ctx, EncodeRead(reg)); err != nil {
		return 0, fmt.Errorf("read %s: %w", reg, err)
	}
	rx, err := d.transfer(ctx, [FrameLength]byte{})
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", reg, err)
	}
	status, value := DecodeReply(rx)
	d.log.Debug("register read",
		zap.Stringer("register", reg),
		zap.Uint32("value", value),
		zap.Stringer("status", status),
	)
	return value, check("read", reg, status)
}

// WriteVerified writes value and reads it back, repeating the pair until
// they agree or the attempt budget runs out. Read-only registers are
// rejected.
func (d *Driver) WriteVerified(ctx context.Context, reg Register, value uint32) error {
	if reg.ReadOnly() {
		return fmt.Errorf("%w: %s is read-only", stepbus.ErrInvalidParameter, reg)
	}
	if !reg.Valid() {
		return fmt.Errorf("%w: register 0x%02X", stepbus.ErrInvalidParameter, byte(reg))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	got, _, err := retry.Do(ctx, retry.Config{
		Description: "verify " + reg.String(),
		MaxRetries:  d.cfg.Tries - 1,
		RetryDelay:  d.cfg.SettleDelay,
	}, func(attempt int) (uint32, bool, error) {
		if _, err := d.write(ctx, reg, value); err != nil {
			return 0, false, err
		}
		got, err := d.read(ctx, reg)
		if err != nil {
			return 0, false, err
		}
		if got != value {
			d.log.Debug("verify mismatch",
				zap.Stringer("register", reg),
				zap.Uint32("want", value),
				zap.Uint32("got", got),
				zap.Int("attempt", attempt),
			)
		}
		return got, got != value, nil
	})
	d.cfg.Metrics.ObserveDriverTransaction("verify", err)
	if errors.Is(err, retry.ErrExhausted) {
		return fmt.Errorf("%w: %s wrote 0x%08X read 0x%08X", ErrVerify, reg, value, got)
	}
	return err
}

// RegisterWrite is one step of a write sequence
type RegisterWrite struct {
	Register Register
	Value    uint32
}

// WriteSequence writes each entry in order, checking status after every
// one. It stops at the first fault; the returned count is the number of
// writes that completed cleanly and a *StatusFault carries the index.
func (d *Driver) WriteSequence(ctx context.Context, writes []RegisterWrite) (int, error) {
	for _, w := range writes {
		if !w.Register.Valid() {
			return 0, fmt.Errorf("%w: register 0x%02X", stepbus.ErrInvalidParameter, byte(w.Register))
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i, w := range writes {
		_, err := d.write(ctx, w.Register, w.Value)
		d.cfg.Metrics.ObserveDriverTransaction("write", err)
		if err != nil {
			var sf *StatusFault
			if errors.As(err, &sf) {
				sf.Index = i
			}
			d.log.Warn("write sequence stopped",
				zap.Int("index", i),
				zap.Int("remaining", len(writes)-i-1),
				zap.Error(err),
			)
			return i, err
		}
	}
	return len(writes), nil
}

// Status reads GSTAT and returns the status byte echoed with it. Fault bits
// are returned as a *StatusFault alongside the status.
func (d *Driver) Status(ctx context.Context) (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.read(ctx, RegGSTAT)
	var sf *StatusFault
	if err != nil && !errors.As(err, &sf) {
		return 0, err
	}
	return d.last, err
}
