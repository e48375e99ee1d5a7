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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stepbus/go-stepbus/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordExchanges(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	device, vc, _ := newTestDevice(t, WithMetrics(m))
	ctx := context.Background()

	require.NoError(t, device.Hello(ctx))
	assert.InDelta(t, 1, testutil.ToFloat64(m.Exchanges.WithLabelValues("hello", outcomeDelivered)), 0)

	vc.BusyFor(1)
	_, err := device.Status(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Exchanges.WithLabelValues("status", outcomeBusy)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.BusyRetries.WithLabelValues("status")), 0)

	vc.InjectHandshakeByte(0, 0x42)
	_, err = device.Status(ctx)
	require.ErrorIs(t, err, ErrProtocolFault)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HandshakeFaults.WithLabelValues(string(RegionPadding))), 0)

	vc.SetResponseDelay(5)
	_, err = device.Status(ctx)
	require.ErrorIs(t, err, ErrTimeout)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Exchanges.WithLabelValues("status", outcomeTimeout)), 0)

	assert.Equal(t, 2, testutil.CollectAndCount(m.PollAttempts))
	n, err := testutil.GatherAndCount(reg, "stepbus_exchanges_total")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestMetricsResyncAndDriver(t *testing.T) {
	t.Parallel()

	m := NewMetrics(nil)
	device, vc, _ := newTestDevice(t, WithMetrics(m), WithResyncConfig(resyncConfig(8, 4)))
	vc.SetBootStream(message.HelloToken)

	_, err := device.Resync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CollectAndCount(m.ResyncReads))

	m.ObserveDriverTransaction("write", nil)
	m.ObserveDriverTransaction("write", assert.AnError)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DriverTransactions.WithLabelValues("write", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DriverTransactions.WithLabelValues("write", "error")), 0)
}

func TestNilMetricsRecordNothing(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeExchange("status", outcomeDelivered, 1)
		m.observeHandshakeFault("padding")
		m.observeBusyRetry("status")
		m.observeResync(2)
		m.ObserveDriverTransaction("read", nil)
	})
}
