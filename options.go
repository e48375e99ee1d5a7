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
	"go.uber.org/zap"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithRetryConfig sets the busy cooldown configuration for the device
func WithRetryConfig(config *RetryConfig) Option {
	return func(d *Device) error {
		d.SetRetryConfig(config)
		return nil
	}
}

// WithTimeout sets the per-transfer timeout passed to the transport
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		d.config.Timeout = timeout
		return nil
	}
}

// WithMaxRetries sets how many times a busy exchange is attempted
func WithMaxRetries(maxAttempts int) Option {
	return func(device *Device) error {
		if device.config.RetryConfig == nil {
			device.config.RetryConfig = DefaultRetryConfig()
		}
		device.config.RetryConfig.MaxAttempts = maxAttempts
		return nil
	}
}

// WithRetryBackoff sets the initial busy cooldown
func WithRetryBackoff(initialBackoff time.Duration) Option {
	return func(device *Device) error {
		if device.config.RetryConfig == nil {
			device.config.RetryConfig = DefaultRetryConfig()
		}
		device.config.RetryConfig.InitialBackoff = initialBackoff
		return nil
	}
}

// WithPolicy replaces every exchange budget
func WithPolicy(p Policy) Option {
	return func(d *Device) error {
		if p == nil {
			return fmt.Errorf("%w: nil policy", ErrInvalidParameter)
		}
		d.config.Policy = p.Clone()
		return nil
	}
}

// WithClassOptions overrides the budget of one operation class
func WithClassOptions(class OperationClass, opts ExchangeOptions) Option {
	return func(d *Device) error {
		p := d.config.Policy.Clone()
		p[class] = opts
		d.config.Policy = p
		return nil
	}
}

// WithProtocolVersion selects the transfer frame size
func WithProtocolVersion(v ProtocolVersion) Option {
	return func(d *Device) error {
		if v != ProtocolV1 && v != ProtocolV2 {
			return fmt.Errorf("%w: protocol version %d", ErrInvalidParameter, v)
		}
		d.config.Version = v
		return nil
	}
}

// WithFillBytes sets the request padding byte and the poll byte
func WithFillBytes(pad, poll byte) Option {
	return func(d *Device) error {
		d.config.PadByte = pad
		d.config.PollByte = poll
		return nil
	}
}

// WithLEDProfile selects which LED request layout the firmware expects
func WithLEDProfile(p message.LEDProfile) Option {
	return func(d *Device) error {
		d.config.LEDProfile = p
		return nil
	}
}

// WithResyncConfig sets the boot token search configuration
func WithResyncConfig(cfg ResyncConfig) Option {
	return func(d *Device) error {
		d.config.Resync = cfg
		return nil
	}
}

// WithFrameIDStart sets the first frame id the device hands out
func WithFrameIDStart(id message.FrameID) Option {
	return func(d *Device) error {
		d.seq.Reset(id)
		return nil
	}
}

// WithLogger sets the logger used by the device and its engine
func WithLogger(l *zap.Logger) Option {
	return func(d *Device) error {
		if l == nil {
			l = zap.NewNop()
		}
		d.log = l
		return nil
	}
}

// WithMetrics attaches metrics collectors
func WithMetrics(m *Metrics) Option {
	return func(d *Device) error {
		d.metrics = m
		return nil
	}
}
