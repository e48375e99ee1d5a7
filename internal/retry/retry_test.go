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

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	t.Parallel()

	errPermanent := errors.New("permanent")

	tests := []struct {
		op           Operation[int]
		wantErr      error
		name         string
		maxRetries   int
		want         int
		wantAttempts int
	}{
		{
			name:         "first try",
			maxRetries:   3,
			op:           func(int) (int, bool, error) { return 7, false, nil },
			want:         7,
			wantAttempts: 1,
		},
		{
			name:       "succeeds on third",
			maxRetries: 3,
			op: func(attempt int) (int, bool, error) {
				return attempt, attempt < 2, nil
			},
			want:         2,
			wantAttempts: 3,
		},
		{
			name:         "permanent error stops",
			maxRetries:   3,
			op:           func(int) (int, bool, error) { return 0, true, errPermanent },
			wantErr:      errPermanent,
			wantAttempts: 1,
		},
		{
			name:         "exhausted",
			maxRetries:   2,
			op:           func(attempt int) (int, bool, error) { return attempt, true, nil },
			wantErr:      ErrExhausted,
			want:         2,
			wantAttempts: 3,
		},
		{
			name:         "no retries",
			maxRetries:   0,
			op:           func(int) (int, bool, error) { return 1, true, nil },
			wantErr:      ErrExhausted,
			want:         1,
			wantAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, attempts, err := Do(context.Background(), Config{MaxRetries: tt.maxRetries, Description: tt.name}, tt.op)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if tt.wantErr == nil || errors.Is(tt.wantErr, ErrExhausted) {
				assert.Equal(t, tt.want, got)
			}
			assert.Equal(t, tt.wantAttempts, attempts)
		})
	}
}

func TestDo_OnRetry(t *testing.T) {
	t.Parallel()

	var seen []int
	_, _, err := Do(context.Background(), Config{
		MaxRetries: 2,
		OnRetry: func(attempt int) error {
			seen = append(seen, attempt)
			return nil
		},
	}, func(int) (struct{}, bool, error) { return struct{}{}, true, nil })

	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, []int{1, 2}, seen)

	stop := errors.New("stop")
	_, attempts, err := Do(context.Background(), Config{
		MaxRetries: 5,
		OnRetry:    func(int) error { return stop },
	}, func(int) (int, bool, error) { return 0, true, nil })
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancelledDuringDelay(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, attempts, err := Do(ctx, Config{MaxRetries: 5, RetryDelay: time.Hour}, func(int) (int, bool, error) {
		return 0, true, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestUntil(t *testing.T) {
	t.Parallel()

	got, err := Until(context.Background(), time.Second, time.Millisecond, func(attempt int) (string, bool, error) {
		return "ready", attempt < 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ready", got)

	_, err = Until(context.Background(), 5*time.Millisecond, time.Millisecond, func(int) (string, bool, error) {
		return "", true, nil
	})
	assert.ErrorIs(t, err, ErrExhausted)
}
