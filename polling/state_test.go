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
	"testing"
	"time"

	"github.com/stepbus/go-stepbus/message"
	"github.com/stretchr/testify/assert"
)

func TestTrackerObserve(t *testing.T) {
	t.Parallel()

	var tr Tracker
	now := time.Unix(1000, 0)

	first := tr.Observe(message.StatusReply{State: message.StateIdle}, now)
	assert.True(t, first.State)
	assert.False(t, first.Faults)
	assert.True(t, tr.Valid)
	assert.Equal(t, now, tr.ChangedAt)

	same := tr.Observe(message.StatusReply{State: message.StateIdle}, now.Add(time.Second))
	assert.False(t, same.Any())
	assert.Equal(t, now, tr.ChangedAt)
	assert.Equal(t, now.Add(time.Second), tr.LastSeen)

	moved := message.StatusReply{State: message.StateRunning, Faults: message.FaultLimitSwitch}
	moved.Position[2] = 15
	c := tr.Observe(moved, now.Add(2*time.Second))
	assert.True(t, c.State)
	assert.True(t, c.Faults)
	assert.True(t, c.Position)
	assert.Equal(t, message.StateIdle, c.PrevState)
	assert.Zero(t, c.PrevFaults)

	tr.Reset()
	assert.False(t, tr.Valid)
}

func TestTrackerStale(t *testing.T) {
	t.Parallel()

	var tr Tracker
	now := time.Unix(1000, 0)
	assert.True(t, tr.Stale(now, time.Second))

	tr.Observe(message.StatusReply{}, now)
	assert.False(t, tr.Stale(now.Add(500*time.Millisecond), time.Second))
	assert.True(t, tr.Stale(now.Add(2*time.Second), time.Second))
}
