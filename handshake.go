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
	"github.com/stepbus/go-stepbus/internal/frame"
	"github.com/stepbus/go-stepbus/message"
)

// echoCounts tallies handshake codes in an echo
type echoCounts struct {
	ready    int
	busy     int
	noComm   int
	other    int
	firstBad int // first byte that is neither READY nor NO_COMM, or -1
}

func countEcho(echo []byte) echoCounts {
	c := echoCounts{firstBad: -1}
	for i, v := range echo {
		switch v {
		case frame.Ready:
			c.ready++
			continue
		case frame.NoComm:
			c.noComm++
			continue
		case frame.Busy:
			c.busy++
		default:
			c.other++
		}
		if c.firstBad < 0 {
			c.firstBad = i
		}
	}
	return c
}

// judgeHandshake decides what the echo of a request transfer means.
// It returns a response when the controller answered inside the same
// transfer, nil and nil when polling should continue, or a *BusyFault or
// *ProtocolFault. padding is the number of pad bytes in front of the request.
func judgeHandshake(
	echo, sent []byte,
	padding int,
	spec message.ResponseSpec,
) (message.Response, error) {
	c := countEcho(echo)
	n := len(echo)

	if n > 0 && c.ready == n {
		return nil, nil
	}

	if resp, _, _ := spec.Find(echo); resp != nil {
		return resp, nil
	}

	if n > 0 && c.busy == n {
		return nil, &BusyFault{
			Kind:    spec.Kind(),
			Request: sent[padding:],
			Echo:    append([]byte(nil), echo...),
		}
	}

	if c.ready > 0 && c.busy == 0 && c.other == 0 {
		return nil, nil
	}

	fault := &ProtocolFault{
		Kind:     spec.Kind(),
		Request:  sent[padding:],
		Echo:     append([]byte(nil), echo...),
		Position: -1,
	}

	if c.firstBad < 0 {
		fault.Silent = true
		fault.Reason = "every handshake byte was NO_COMM"
		return nil, fault
	}

	p := c.firstBad
	fault.Position = p
	fault.Got = echo[p]
	if p < len(sent) {
		fault.Sent = sent[p]
	}
	fault.Region = RegionPayload
	if p < padding {
		fault.Region = RegionPadding
	}
	if echo[p] == frame.Busy {
		fault.Reason = "BUSY mixed with other handshake codes"
	} else {
		fault.Reason = "unrecognised handshake byte"
	}
	return nil, fault
}
