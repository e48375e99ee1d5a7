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
	"time"

	"golang.org/x/time/rate"
)

// Config controls how often the controller is asked for status
type Config struct {
	// Interval is the minimum time between two status requests.
	// Zero polls as fast as the bus allows.
	Interval time.Duration
	// Timeout bounds WaitIdle on top of any context deadline. Zero means
	// only the context applies.
	Timeout time.Duration
	// Burst lets the first polls run back to back
	Burst int
	// MaxErrors is how many retryable errors in a row are tolerated
	// before giving up
	MaxErrors int
}

// DefaultConfig returns pacing suitable for a controller executing moves
func DefaultConfig() *Config {
	return &Config{
		Interval:  20 * time.Millisecond,
		Timeout:   60 * time.Second,
		Burst:     1,
		MaxErrors: 3,
	}
}

func (c *Config) limiter() *rate.Limiter {
	burst := c.Burst
	if burst < 1 {
		burst = 1
	}
	if c.Interval <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Every(c.Interval), burst)
}

// pace blocks until the limiter allows another poll. The limiter refuses
// early when the deadline would pass first; that is reported as
// context.DeadlineExceeded.
func pace(ctx context.Context, lim *rate.Limiter) error {
	if err := lim.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return context.DeadlineExceeded
	}
	return nil
}
