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
	"testing"
	"time"

	"github.com/stepbus/go-stepbus"
	testutil "github.com/stepbus/go-stepbus/internal/testing"
	"github.com/stepbus/go-stepbus/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVirtualDevice(t *testing.T) (*stepbus.Device, *testutil.VirtualController) {
	t.Helper()
	vc := testutil.NewVirtualController()
	device, err := stepbus.New(stepbus.NewMockTransport(vc))
	require.NoError(t, err)
	t.Cleanup(func() { _ = device.Close() })
	return device, vc
}

// scriptedQueue replays canned queue status answers
type scriptedQueue struct {
	errs    []error
	replies []message.QueueStatusReply
	calls   int
}

func (s *scriptedQueue) QueueStatus(context.Context) (message.QueueStatusReply, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return message.QueueStatusReply{}, s.errs[i]
	}
	if i >= len(s.replies) {
		return s.replies[len(s.replies)-1], nil
	}
	return s.replies[i], nil
}

var running = message.QueueStatusReply{Queued: 2, State: message.StateRunning}

func TestWaitIdleRunsQueueToCompletion(t *testing.T) {
	t.Parallel()

	device, vc := newVirtualDevice(t)
	ctx := context.Background()

	for range 3 {
		mv := message.QueueAdd{}
		mv.Axes[1] = message.AxisMove{Steps: 10, Velocity: 100}
		_, err := device.QueueAdd(ctx, mv)
		require.NoError(t, err)
	}
	_, err := device.MoveEnd(ctx)
	require.NoError(t, err)
	_, err = device.StartMove(ctx)
	require.NoError(t, err)

	st, err := WaitIdle(ctx, device, &Config{Interval: time.Millisecond, MaxErrors: 1})
	require.NoError(t, err)
	assert.True(t, st.Idle())
	assert.Equal(t, int32(30), vc.Position()[1])
	assert.Equal(t, message.StateIdle, vc.State())
}

func TestWaitIdle(t *testing.T) {
	t.Parallel()

	busy := &stepbus.BusyFault{Kind: message.KindQueueStatus}
	idle := message.QueueStatusReply{State: message.StateIdle}
	halted := message.QueueStatusReply{State: message.StateHalted, Queued: 1}

	tests := []struct {
		wantErr   error
		name      string
		errs      []error
		replies   []message.QueueStatusReply
		wantCalls int
	}{
		{
			name:      "already idle",
			replies:   []message.QueueStatusReply{idle},
			wantCalls: 1,
		},
		{
			name:      "idle after running",
			replies:   []message.QueueStatusReply{running, running, idle},
			wantCalls: 3,
		},
		{
			name:      "busy tolerated",
			errs:      []error{busy, busy},
			replies:   []message.QueueStatusReply{idle, idle, idle},
			wantCalls: 3,
		},
		{
			name:      "too many busy",
			errs:      []error{busy, busy, busy, busy},
			replies:   []message.QueueStatusReply{idle},
			wantErr:   stepbus.ErrBusy,
			wantCalls: 4,
		},
		{
			name:      "protocol fault ends wait",
			errs:      []error{&stepbus.ProtocolFault{Position: -1, Silent: true}},
			replies:   []message.QueueStatusReply{idle},
			wantErr:   stepbus.ErrNoComm,
			wantCalls: 1,
		},
		{
			name:      "halted",
			replies:   []message.QueueStatusReply{running, halted},
			wantErr:   ErrHalted,
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := &scriptedQueue{errs: tt.errs, replies: tt.replies}
			_, err := WaitIdle(context.Background(), q, &Config{MaxErrors: 3})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, q.calls)
		})
	}
}

func TestWaitIdleTimeout(t *testing.T) {
	t.Parallel()

	q := &scriptedQueue{replies: []message.QueueStatusReply{running}}
	start := time.Now()
	last, err := WaitIdle(context.Background(), q, &Config{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond})
	require.ErrorIs(t, err, ErrWaitTimeout)
	assert.Equal(t, running, last)
	assert.Less(t, time.Since(start), time.Second)
	assert.Greater(t, q.calls, 1)
	// Paced at 5ms, 30ms allows only a handful of polls
	assert.LessOrEqual(t, q.calls, 8)
}

func TestWaitIdleCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := &scriptedQueue{replies: []message.QueueStatusReply{running}}
	_, err := WaitIdle(ctx, q, nil)
	require.ErrorIs(t, err, ErrWaitTimeout)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, q.calls)
}

func TestWaitIdleNilDevice(t *testing.T) {
	t.Parallel()

	_, err := WaitIdle(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrNilDevice)
}
