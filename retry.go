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
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures the busy cooldown applied by Device
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Jitter            float64
	RetryTimeout      time.Duration
}

// DefaultRetryConfig returns the default busy cooldown
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      2 * time.Second,
	}
}

// RetryWithConfig runs fn until it succeeds, returns an error that is not
// retryable, or the budget in config runs out. Only errors for which
// IsRetryable is true are repeated; everything else is returned at once.
func RetryWithConfig(ctx context.Context, config *RetryConfig, fn func() error) error {
	return RetryIf(ctx, config, IsRetryable, fn)
}

// RetryIf is RetryWithConfig with the caller deciding which errors are
// repeated. fn must be safe to run again for every error shouldRetry accepts.
func RetryIf(ctx context.Context, config *RetryConfig, shouldRetry func(error) bool, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	backoff := config.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err) || attempt == maxAttempts {
			break
		}

		debugf("retryable error (attempt %d/%d): %v", attempt, maxAttempts, err)
		if werr := sleepContext(ctx, withJitter(backoff, config.Jitter)); werr != nil {
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, errors.Join(lastErr, werr))
		}
		backoff = nextBackoff(backoff, config)
	}

	return lastErr
}

// isBusy reports a busy handshake. The controller refused the request
// without taking it, so the exchange can be sent again.
func isBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

func nextBackoff(current time.Duration, config *RetryConfig) time.Duration {
	mult := config.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	next := time.Duration(float64(current) * mult)
	if config.MaxBackoff > 0 && next > config.MaxBackoff {
		next = config.MaxBackoff
	}
	return next
}

func withJitter(d time.Duration, jitter float64) time.Duration {
	if d <= 0 || jitter <= 0 {
		return d
	}
	jitter = math.Min(jitter, 1)
	spread := float64(d) * jitter
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread) //nolint:gosec // jitter only
}
