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

	"github.com/stepbus/go-stepbus/internal/frame"
	"github.com/stepbus/go-stepbus/message"
)

// SendRawFrame exchanges an already encoded request frame. The response
// layout is chosen from the type byte and the device's LED profile, and
// the budget from the operation class of that type. It is meant for
// diagnostics and firmware bring-up; the frame is not validated beyond
// its type byte.
func (d *Device) SendRawFrame(ctx context.Context, req []byte) (*Result, error) {
	if d.closed.Load() {
		return nil, ErrTransportClosed
	}
	if len(req) < frame.MinFrameLength {
		return nil, fmt.Errorf("%w: raw frame of %d bytes", ErrInvalidParameter, len(req))
	}

	kind := message.Kind(req[1])
	spec, err := message.Spec(kind, d.config.LEDProfile)
	if err != nil {
		return nil, err
	}

	opts := d.config.Policy.Options(ClassOf(kind))
	var res *Result
	err = RetryIf(ctx, d.config.RetryConfig, isBusy, func() error {
		var err error
		res, err = d.engine.ExchangeFrame(ctx, req, spec, opts)
		return err
	})
	return res, err
}
