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
	"fmt"
	"time"

	"github.com/stepbus/go-stepbus/message"
)

// OperationClass groups requests that share a retry budget
type OperationClass string

const (
	// ClassQuery covers read only requests: status, queue status, hello
	ClassQuery OperationClass = "query"

	// ClassCommand covers short state changes: start, end, LEDs
	ClassCommand OperationClass = "command"

	// ClassQueue covers queue-add, which the controller validates before acking
	ClassQueue OperationClass = "queue"

	// ClassMotion covers homing and probing, which ack only when motion ends
	ClassMotion OperationClass = "motion"
)

// ClassOf returns the operation class a request kind belongs to
func ClassOf(kind message.Kind) OperationClass {
	switch kind {
	case message.KindQueueAdd:
		return ClassQueue
	case message.KindMoveHome, message.KindProbeLevel:
		return ClassMotion
	case message.KindStartMove, message.KindMoveEnd, message.KindLEDControl:
		return ClassCommand
	default:
		return ClassQuery
	}
}

// Policy maps operation classes to exchange budgets
type Policy map[OperationClass]ExchangeOptions

// Options returns the budget for class, falling back to the query budget
func (p Policy) Options(class OperationClass) ExchangeOptions {
	if o, ok := p[class]; ok {
		return o
	}
	return p[ClassQuery]
}

// Validate checks every budget in the policy
func (p Policy) Validate() error {
	for class, o := range p {
		if o.Tries < 0 {
			return fmt.Errorf("%w: %s tries %d", ErrInvalidParameter, class, o.Tries)
		}
		if o.SettleDelay < 0 {
			return fmt.Errorf("%w: %s settle delay %s", ErrInvalidParameter, class, o.SettleDelay)
		}
	}
	return nil
}

// Clone returns a copy that can be modified independently
func (p Policy) Clone() Policy {
	out := make(Policy, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// DefaultPolicy returns conservative budgets suitable for any transport
func DefaultPolicy() Policy {
	return Policy{
		ClassQuery:   {Tries: 10, SettleDelay: 2 * time.Millisecond},
		ClassCommand: {Tries: 10, SettleDelay: 2 * time.Millisecond},
		ClassQueue:   {Tries: 20, SettleDelay: 2 * time.Millisecond},
		ClassMotion:  {Tries: 600, SettleDelay: 50 * time.Millisecond},
	}
}
