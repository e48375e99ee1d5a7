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

package uart

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	stepbus "github.com/stepbus/go-stepbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopPort echoes written bytes back through a transform, handing them out
// at most chunk bytes per Read
type loopPort struct {
	transform func(byte) byte
	readErr   error
	pending   bytes.Buffer
	chunk     int
	resets    int
	mu        sync.Mutex
	closed    bool
}

func (p *loopPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range b {
		if p.transform != nil {
			v = p.transform(v)
		}
		_ = p.pending.WriteByte(v)
	}
	return len(b), nil
}

func (p *loopPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return 0, p.readErr
	}
	if p.chunk > 0 && len(b) > p.chunk {
		b = b[:p.chunk]
	}
	n, _ := p.pending.Read(b)
	if n == 0 {
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
		p.mu.Lock()
	}
	return n, nil
}

func (p *loopPort) Close() error {
	p.closed = true
	return nil
}

func (*loopPort) SetReadTimeout(time.Duration) error { return nil }

func (p *loopPort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	p.pending.Reset()
	return nil
}

func newTestTransport(p port) *Transport {
	return &Transport{port: p, portName: "/dev/ttyTEST", timeout: 100 * time.Millisecond}
}

func TestTransportCreation(t *testing.T) {
	t.Parallel()

	transport := &Transport{portName: "/dev/ttyUSB0"}
	assert.Equal(t, stepbus.TransportUART, transport.Type())
	assert.False(t, transport.IsConnected())
	assert.ErrorIs(t, transport.Tx([]byte{1}, []byte{0}), stepbus.ErrTransportClosed)
}

func TestTxReadsAcrossShortReads(t *testing.T) {
	t.Parallel()

	p := &loopPort{chunk: 3, transform: func(b byte) byte { return ^b }}
	tr := newTestTransport(p)

	w := []byte{0xAA, 0x02, 0x05, 0x55, 0x00, 0xFF, 0x10}
	r := make([]byte, len(w))
	require.NoError(t, tr.Tx(w, r))
	assert.Equal(t, []byte{0x55, 0xFD, 0xFA, 0xAA, 0xFF, 0x00, 0xEF}, r)
	assert.Equal(t, 1, p.resets)
}

func TestTxShortReadTimesOut(t *testing.T) {
	t.Parallel()

	p := &loopPort{}
	tr := newTestTransport(p)
	tr.timeout = 20 * time.Millisecond

	// Nothing was written, so the bridge has nothing to return
	err := tr.readFull(context.Background(), make([]byte, 4))
	require.Error(t, err)
	assert.ErrorIs(t, err, errShortRead)
	assert.True(t, stepbus.IsRetryable(err))
}

func TestTxReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("unplugged")
	tr := newTestTransport(&loopPort{readErr: boom})

	err := tr.Tx([]byte{1, 2}, make([]byte, 2))
	assert.ErrorIs(t, err, boom)
}

func TestTxLengthMismatch(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(&loopPort{})
	assert.ErrorIs(t, tr.Tx([]byte{1, 2}, make([]byte, 1)), stepbus.ErrInvalidParameter)
}

// TestUARTContextCancellationDuringDelay checks that an already cancelled
// context returns before touching the port
func TestUARTContextCancellationDuringDelay(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &loopPort{}
	tr := newTestTransport(p)

	start := time.Now()
	err := tr.TxContext(ctx, []byte{0xFF}, make([]byte, 1))
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.resets)
	assert.Less(t, elapsed, 10*time.Millisecond)
}

// TestUARTContextTimeoutDuringOperation checks that a context deadline
// interrupts a read the bridge never completes
func TestUARTContextTimeoutDuringOperation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	tr := newTestTransport(&loopPort{})
	tr.timeout = time.Second

	start := time.Now()
	err := tr.readFull(ctx, make([]byte, 8))
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestSetTimeoutAndClose(t *testing.T) {
	t.Parallel()

	p := &loopPort{}
	tr := newTestTransport(p)

	assert.ErrorIs(t, tr.SetTimeout(0), stepbus.ErrInvalidParameter)
	require.NoError(t, tr.SetTimeout(time.Second))
	assert.Equal(t, time.Second, tr.timeout)

	require.NoError(t, tr.Close())
	assert.True(t, p.closed)
	assert.False(t, tr.IsConnected())
	require.NoError(t, tr.Close())
}
