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
	"time"

	"github.com/stepbus/go-stepbus/message"
)

// Tracker remembers the last status snapshot and when it changed
type Tracker struct {
	LastSeen  time.Time
	ChangedAt time.Time
	Last      message.StatusReply
	Valid     bool
}

// Change describes what differs between two consecutive snapshots
type Change struct {
	PrevState  message.MotionState
	PrevFaults byte
	State      bool
	Faults     bool
	Position   bool
}

// Any reports whether anything changed
func (c Change) Any() bool {
	return c.State || c.Faults || c.Position
}

// Observe records st and returns what changed since the previous call.
// The first observation counts as a state change.
func (t *Tracker) Observe(st message.StatusReply, now time.Time) Change {
	c := Change{PrevState: t.Last.State, PrevFaults: t.Last.Faults}
	if !t.Valid {
		c.State = true
		c.Faults = st.Faults != 0
		c.Position = true
	} else {
		c.State = st.State != t.Last.State
		c.Faults = st.Faults != t.Last.Faults
		c.Position = st.Position != t.Last.Position
	}

	if c.Any() {
		t.ChangedAt = now
	}
	t.Last = st
	t.LastSeen = now
	t.Valid = true
	return c
}

// Reset forgets everything observed so far
func (t *Tracker) Reset() {
	*t = Tracker{}
}

// Stale reports whether no status arrived within d
func (t *Tracker) Stale(now time.Time, d time.Duration) bool {
	return !t.Valid || now.Sub(t.LastSeen) > d
}
