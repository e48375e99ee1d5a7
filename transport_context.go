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
	"fmt"
)

// ContextDuplexer is a Duplexer whose transfers observe a context.
// Transports that can abandon a slow transfer, such as the serial bridge,
// implement it directly.
type ContextDuplexer interface {
	Duplexer

	// TxContext is Tx that returns early once ctx is done
	TxContext(ctx context.Context, w, r []byte) error
}

// duplexContextAdapter wraps a Duplexer to provide context support
type duplexContextAdapter struct {
	Duplexer
}

// TxContext checks ctx before starting the transfer. A transfer that has
// started always runs to completion; abandoning it half way would leave
// the peer's shift register out of step.
func (d *duplexContextAdapter) TxContext(ctx context.Context, w, r []byte) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled before transfer: %w", ctx.Err())
	default:
	}
	return d.Tx(w, r)
}

// AsContextDuplexer converts a Duplexer to a ContextDuplexer
func AsContextDuplexer(d Duplexer) ContextDuplexer {
	if cd, ok := d.(ContextDuplexer); ok {
		return cd
	}
	return &duplexContextAdapter{Duplexer: d}
}
