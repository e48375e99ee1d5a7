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

// Package polling paces status requests to a motion controller: waiting
// for a queued program to finish and watching for state changes.
package polling

import (
	"context"
	"errors"
	"fmt"

	"github.com/stepbus/go-stepbus"
	"github.com/stepbus/go-stepbus/message"
)

// Polling errors
var (
	ErrNilDevice   = errors.New("device cannot be nil")
	ErrWaitTimeout = errors.New("controller did not become idle")
	ErrHalted      = errors.New("controller halted")
)

// QueueStatuser is implemented by *stepbus.Device
type QueueStatuser interface {
	QueueStatus(ctx context.Context) (message.QueueStatusReply, error)
}

// WaitIdle polls queue status until the queue is drained and motion has
// stopped. It returns the last status seen. A halted controller ends the
// wait with ErrHalted. Retryable errors are tolerated
// up to cfg.MaxErrors in a row; anything else ends the wait.
func WaitIdle(ctx context.Context, dev QueueStatuser, cfg *Config) (message.QueueStatusReply, error) {
	var last message.QueueStatusReply
	if dev == nil {
		return last, ErrNilDevice
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	lim := cfg.limiter()
	polls, failures := 0, 0
	for {
		if err := pace(ctx, lim); err != nil {
			return last, fmt.Errorf("%w after %d polls: %w", ErrWaitTimeout, polls, err)
		}

		st, err := dev.QueueStatus(ctx)
		polls++
		if err != nil {
			if ctx.Err() != nil {
				return last, fmt.Errorf("%w after %d polls: %w", ErrWaitTimeout, polls, err)
			}
			if stepbus.IsRetryable(err) && failures < cfg.MaxErrors {
				failures++
				continue
			}
			return last, fmt.Errorf("queue status: %w", err)
		}

		failures = 0
		last = st
		if st.Idle() {
			return st, nil
		}
		if st.State == message.StateHalted {
			return st, fmt.Errorf("%w with %d moves queued", ErrHalted, st.Queued)
		}
	}
}
