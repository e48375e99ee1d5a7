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

package polling

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stepbus/go-stepbus"
	"github.com/stepbus/go-stepbus/message"
)

// Statuser is implemented by *stepbus.Device
type Statuser interface {
	Status(ctx context.Context) (message.StatusReply, error)
}

// Metrics are the monitor's running counters
type Metrics struct {
	PollCycles      int64
	PollErrors      int64
	StateChanges    int64
	LastPollLatency time.Duration
}

// Monitor polls controller status at a steady pace and reports changes.
// Callbacks run on the monitor's goroutine and must not block for long.
type Monitor struct {
	device        Statuser
	config        *Config
	OnStateChange func(prev, cur message.MotionState)
	OnFault       func(faults byte)
	OnPosition    func(pos [message.NumAxes]int32)
	OnError       func(err error)
	tracker       Tracker
	mu            sync.Mutex

	pollCycles   atomic.Int64
	pollErrors   atomic.Int64
	stateChanges atomic.Int64
	lastLatency  atomic.Int64
}

// NewMonitor creates a status monitor for device
func NewMonitor(device Statuser, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Monitor{
		device: device,
		config: config,
	}
}

// Start polls until ctx is done or the transport is closed
func (m *Monitor) Start(ctx context.Context) error {
	if m.device == nil {
		return ErrNilDevice
	}

	lim := m.config.limiter()
	for {
		if err := pace(ctx, lim); err != nil {
			return err
		}

		start := time.Now()
		st, err := m.device.Status(ctx)
		m.pollCycles.Add(1)
		m.lastLatency.Store(int64(time.Since(start)))

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.pollErrors.Add(1)
			if m.OnError != nil {
				m.OnError(err)
			}
			if errors.Is(err, stepbus.ErrTransportClosed) {
				return err
			}
			continue
		}

		m.process(st, start)
	}
}

func (m *Monitor) process(st message.StatusReply, now time.Time) {
	m.mu.Lock()
	change := m.tracker.Observe(st, now)
	m.mu.Unlock()

	if change.State {
		m.stateChanges.Add(1)
		if m.OnStateChange != nil {
			m.OnStateChange(change.PrevState, st.State)
		}
	}
	if change.Faults && st.Faults != 0 && m.OnFault != nil {
		m.OnFault(st.Faults)
	}
	if change.Position && m.OnPosition != nil {
		m.OnPosition(st.Position)
	}
}

// GetState returns a copy of the tracked status
func (m *Monitor) GetState() Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker
}

// GetMetrics returns the current counters
func (m *Monitor) GetMetrics() Metrics {
	return Metrics{
		PollCycles:      m.pollCycles.Load(),
		PollErrors:      m.pollErrors.Load(),
		StateChanges:    m.stateChanges.Load(),
		LastPollLatency: time.Duration(m.lastLatency.Load()),
	}
}
