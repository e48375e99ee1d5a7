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
	"errors"
	"sync"
	"time"
)

// MockTransport is an in-memory Transport around a Duplexer, usually a
// virtual controller. It records every transfer.
type MockTransport struct {
	bus       Duplexer
	err       error
	transfers [][]byte
	timeout   time.Duration
	mu        sync.Mutex
	closed    bool
}

// NewMockTransport creates a mock transport that forwards transfers to bus
func NewMockTransport(bus Duplexer) *MockTransport {
	return &MockTransport{bus: bus, timeout: 100 * time.Millisecond}
}

// Tx forwards to the wrapped Duplexer
func (m *MockTransport) Tx(w, r []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrTransportClosed
	}
	err := m.err
	m.transfers = append(m.transfers, append([]byte(nil), w...))
	bus := m.bus
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if bus == nil {
		for i := range r {
			r[i] = 0x00
		}
		return nil
	}
	return bus.Tx(w, r)
}

// SetError makes every following transfer fail with err
func (m *MockTransport) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Transfers returns a copy of every frame shifted out
func (m *MockTransport) Transfers() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.transfers...)
}

// Close marks the transport closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetTimeout records the timeout
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// Timeout returns the last timeout set
func (m *MockTransport) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// IsConnected returns false once closed
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// BlockingMockTransport is a simple mock transport that can block transfers on demand.
// This is used for testing bus serialisation and cancellation.
type BlockingMockTransport struct {
	blockChan chan struct{}
	entered   chan struct{}
	bus       Duplexer
	timeout   time.Duration
	mu        sync.Mutex
	closed    bool
}

// NewBlockingMockTransport creates a blocking mock that forwards released
// transfers to bus
func NewBlockingMockTransport(bus Duplexer) *BlockingMockTransport {
	return &BlockingMockTransport{
		blockChan: make(chan struct{}),
		entered:   make(chan struct{}, 64),
		bus:       bus,
		timeout:   5 * time.Second,
	}
}

var errBlockedTimeout = errors.New("mock transfer blocked past timeout")

// Tx blocks until Unblock() is called, timeout expires, or the transport is closed
func (m *BlockingMockTransport) Tx(w, r []byte) error {
	m.mu.Lock()
	blockChan := m.blockChan
	closed := m.closed
	timeout := m.timeout
	m.mu.Unlock()

	if closed {
		return ErrTransportClosed
	}

	select {
	case m.entered <- struct{}{}:
	default:
	}

	select {
	case <-blockChan:
	case <-time.After(timeout):
		return NewTransportError("tx", "mock", errBlockedTimeout, ErrorTypeTransient)
	}

	m.mu.Lock()
	closed = m.closed
	m.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	return m.bus.Tx(w, r)
}

// Entered is signalled each time a transfer starts waiting
func (m *BlockingMockTransport) Entered() <-chan struct{} {
	return m.entered
}

// Unblock releases every waiting transfer
func (m *BlockingMockTransport) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		close(m.blockChan)
		m.blockChan = make(chan struct{})
	}
}

// Close unblocks all operations and marks transport as closed
func (m *BlockingMockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.blockChan)
	}
	return nil
}

// SetTimeout configures how long a transfer blocks before failing
func (m *BlockingMockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// IsConnected returns false once closed
func (m *BlockingMockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*BlockingMockTransport) Type() TransportType {
	return TransportMock
}
