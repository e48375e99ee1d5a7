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
	"sync"
	"testing"
	"time"

	testutil "github.com/stepbus/go-stepbus/internal/testing"
	"github.com/stepbus/go-stepbus/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestBusReleasedAfterTransferFailure verifies that a failed transfer does
// not leave the engine holding the bus
func TestBusReleasedAfterTransferFailure(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualController()
	e := NewEngine(NewMockTransport(vc), nil)

	vc.SetTxError(errors.New("transient glitch"))
	_, err := e.Exchange(context.Background(), message.Status{FrameID: 1}, quick)
	require.Error(t, err)

	vc.SetTxError(nil)
	done := make(chan error, 1)
	go func() {
		_, err := e.Exchange(context.Background(), message.Status{FrameID: 2}, quick)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine still held the bus after a failed transfer")
	}
}

// TestCloseReleasesBlockedExchange verifies that closing the device while
// a transfer is stuck returns the caller promptly
func TestCloseReleasesBlockedExchange(t *testing.T) {
	t.Parallel()

	blocking := NewBlockingMockTransport(testutil.NewVirtualController())
	device, err := New(blocking, WithRetryConfig(fastRetry(3)))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- device.Hello(context.Background())
	}()

	<-blocking.Entered()
	require.NoError(t, device.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrTransportClosed)
		assert.False(t, IsRetryable(err))
	case <-time.After(time.Second):
		t.Fatal("exchange did not return after close")
	}
}

// TestBlockedTransferTimesOut verifies that a transfer the bus never
// completes is reported as a retryable transport error
func TestBlockedTransferTimesOut(t *testing.T) {
	t.Parallel()

	blocking := NewBlockingMockTransport(testutil.NewVirtualController())
	require.NoError(t, blocking.SetTimeout(10*time.Millisecond))
	t.Cleanup(func() { _ = blocking.Close() })

	e := NewEngine(blocking, nil)
	start := time.Now()
	_, err := e.Exchange(context.Background(), message.Status{FrameID: 1}, quick)
	require.ErrorIs(t, err, errBlockedTimeout)
	assert.True(t, IsRetryable(err))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

// TestConcurrentDeviceAccess verifies that many goroutines can share a
// device without deadlocking or interleaving exchanges
func TestConcurrentDeviceAccess(t *testing.T) {
	t.Parallel()

	device, vc, mock := newTestDevice(t)
	const workers = 10

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, err := device.Status(ctx)
			errs <- err
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("deadlock detected during concurrent access")
	}

	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, workers, vc.Handshakes())

	// Every handshake is followed directly by its own poll
	transfers := mock.Transfers()
	require.Len(t, transfers, 2*workers)
	for i := 0; i < len(transfers); i += 2 {
		assert.Len(t, transfers[i], device.Config().Version.TransferLength())
		assert.Len(t, transfers[i+1], message.LenStatusReply)
	}
}

// TestCancellationWhileWaitingForBus verifies that a caller queued behind
// a stuck exchange gives up once its context ends
func TestCancellationWhileWaitingForBus(t *testing.T) {
	t.Parallel()

	blocking := NewBlockingMockTransport(testutil.NewVirtualController())
	require.NoError(t, blocking.SetTimeout(200*time.Millisecond))
	t.Cleanup(func() { _ = blocking.Close() })
	e := NewEngine(blocking, nil)

	first := make(chan error, 1)
	go func() {
		_, err := e.Exchange(context.Background(), message.Status{FrameID: 1}, quick)
		first <- err
	}()
	<-blocking.Entered()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	res, err := e.Exchange(ctx, message.Status{FrameID: 2}, quick)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateIdle, res.State)
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	require.Error(t, <-first)
}
