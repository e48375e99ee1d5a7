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
	"github.com/prometheus/client_golang/prometheus"
)

// Exchange outcome labels
const (
	outcomeDelivered = "delivered"
	outcomeTimeout   = "timeout"
	outcomeBusy      = "busy"
	outcomeFault     = "fault"
	outcomeError     = "error"
)

// Metrics collects bus level counters. A nil *Metrics records nothing.
type Metrics struct {
	Exchanges          *prometheus.CounterVec
	PollAttempts       *prometheus.HistogramVec
	HandshakeFaults    *prometheus.CounterVec
	BusyRetries        *prometheus.CounterVec
	ResyncReads        prometheus.Histogram
	DriverTransactions *prometheus.CounterVec
}

// NewMetrics creates the bus metrics and registers them on reg.
// Pass nil to create unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Exchanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stepbus",
				Name:      "exchanges_total",
				Help:      "Command exchanges by request kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		PollAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stepbus",
				Name:      "poll_attempts",
				Help:      "Poll transfers needed per delivered response",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
			[]string{"kind"},
		),
		HandshakeFaults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stepbus",
				Name:      "handshake_faults_total",
				Help:      "Rejected handshake echoes by region",
			},
			[]string{"region"},
		),
		BusyRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stepbus",
				Name:      "busy_retries_total",
				Help:      "Exchanges repeated after a busy cooldown",
			},
			[]string{"kind"},
		),
		ResyncReads: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "stepbus",
				Name:      "resync_reads",
				Help:      "Chunk reads used to find the resync token",
				Buckets:   prometheus.LinearBuckets(1, 2, 8),
			},
		),
		DriverTransactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stepbus",
				Name:      "driver_transactions_total",
				Help:      "Driver register transactions by direction and outcome",
			},
			[]string{"op", "outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.Exchanges, m.PollAttempts, m.HandshakeFaults,
			m.BusyRetries, m.ResyncReads, m.DriverTransactions,
		)
	}
	return m
}

func (m *Metrics) observeExchange(kind, outcome string, polls int) {
	if m == nil {
		return
	}
	m.Exchanges.WithLabelValues(kind, outcome).Inc()
	if outcome == outcomeDelivered {
		m.PollAttempts.WithLabelValues(kind).Observe(float64(polls))
	}
}

func (m *Metrics) observeHandshakeFault(region string) {
	if m == nil {
		return
	}
	m.HandshakeFaults.WithLabelValues(region).Inc()
}

func (m *Metrics) observeBusyRetry(kind string) {
	if m == nil {
		return
	}
	m.BusyRetries.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeResync(reads int) {
	if m == nil {
		return
	}
	m.ResyncReads.Observe(float64(reads))
}

// ObserveDriverTransaction records one register access. It is exported so
// the tmc package can report through the same collectors.
func (m *Metrics) ObserveDriverTransaction(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.DriverTransactions.WithLabelValues(op, outcome).Inc()
}
