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

// Package retry provides the bounded retry loop shared by the bus protocols
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt asked to be retried
var ErrExhausted = errors.New("retries exhausted")

// Operation represents a function that can be retried
// Returns: data, shouldRetry, error
// - data: the result if successful
// - shouldRetry: true if the operation should be retried
// - error: any permanent error that should stop retries
type Operation[T any] func(attempt int) (T, bool, error)

// Config configures retry behavior
type Config struct {
	OnRetry     func(attempt int) error
	Description string
	MaxRetries  int
	RetryDelay  time.Duration
}

// Do executes an operation with retry logic. The delay between attempts is
// the only place ctx is checked.
func Do[T any](ctx context.Context, config Config, operation Operation[T]) (T, int, error) {
	var (
		zero T
		last T
	)

	attempts := 0
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		attempts++
		result, shouldRetry, err := operation(attempt)
		if err != nil {
			return zero, attempts, err
		}

		if !shouldRetry {
			return result, attempts, nil
		}
		last = result

		// If we should retry but we're at max attempts, break
		if attempt >= config.MaxRetries {
			break
		}

		if config.OnRetry != nil {
			if err := config.OnRetry(attempt + 1); err != nil {
				return zero, attempts, err
			}
		}

		if err := wait(ctx, config.RetryDelay); err != nil {
			return zero, attempts, err
		}
	}

	return last, attempts, exhausted(config)
}

// Until repeats operation until it stops asking for a retry or timeout
// elapses. Common pattern for waiting on a peer to become ready.
func Until[T any](ctx context.Context, timeout, interval time.Duration, operation Operation[T]) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)

	for attempt := 0; time.Now().Before(deadline); attempt++ {
		result, shouldRetry, err := operation(attempt)
		if err != nil {
			return zero, err
		}

		if !shouldRetry {
			return result, nil
		}

		if err := wait(ctx, interval); err != nil {
			return zero, err
		}
	}

	return zero, exhausted(Config{Description: "until"})
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func exhausted(config Config) error {
	if config.Description == "" {
		return ErrExhausted
	}
	return &exhaustedError{desc: config.Description}
}

type exhaustedError struct {
	desc string
}

func (e *exhaustedError) Error() string {
	return e.desc + ": " + ErrExhausted.Error()
}

func (*exhaustedError) Is(target error) bool {
	return target == ErrExhausted
}
