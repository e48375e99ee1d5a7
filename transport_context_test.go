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

	"github.com/stepbus/go-stepbus/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxBus struct {
	calls int
}

func (b *ctxBus) Tx(w, r []byte) error {
	copy(r, w)
	return nil
}

func (b *ctxBus) TxContext(_ context.Context, w, r []byte) error {
	b.calls++
	return b.Tx(w, r)
}

func TestAsContextDuplexer(t *testing.T) {
	t.Parallel()

	native := &ctxBus{}
	assert.Same(t, native, AsContextDuplexer(native))

	transfers := 0
	plain := DuplexFunc(func(w, r []byte) error {
		transfers++
		copy(r, w)
		return nil
	})
	cd := AsContextDuplexer(plain)
	_, wrapped := cd.(*duplexContextAdapter)
	assert.True(t, wrapped)

	r := make([]byte, 2)
	require.NoError(t, cd.TxContext(context.Background(), []byte{1, 2}, r))
	assert.Equal(t, []byte{1, 2}, r)
	assert.Equal(t, 1, transfers)
}

func TestContextAdapterChecksBeforeTransfer(t *testing.T) {
	t.Parallel()

	transfers := 0
	cd := AsContextDuplexer(DuplexFunc(func(_, _ []byte) error {
		transfers++
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cd.TxContext(ctx, []byte{1}, make([]byte, 1))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, transfers)
}

func TestEngineUsesNativeTxContext(t *testing.T) {
	t.Parallel()

	bus := &ctxBus{}
	e := NewEngine(bus, nil)

	// A loopback bus echoes the request, which is not a valid handshake
	_, err := e.Exchange(context.Background(), message.Status{FrameID: 1}, quick)
	require.ErrorIs(t, err, ErrProtocolFault)
	assert.Equal(t, 1, bus.calls)
}
