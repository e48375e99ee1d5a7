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
	"errors"
	"fmt"
	"time"

	"github.com/stepbus/go-stepbus/internal/frame"
	"github.com/stepbus/go-stepbus/message"
)

// Sentinel errors. The typed errors below match these through errors.Is.
var (
	ErrBusy             = errors.New("controller busy")
	ErrProtocolFault    = errors.New("protocol fault")
	ErrTimeout          = errors.New("exchange timeout")
	ErrNoComm           = errors.New("controller not driving the bus")
	ErrTransportClosed  = errors.New("transport closed")
	ErrTransfer         = errors.New("bus transfer failed")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrDeviceNotFound   = errors.New("device not found")

	// ErrDecode and ErrInvalidField come from the message catalog
	ErrDecode       = message.ErrDecode
	ErrInvalidField = message.ErrInvalidField
)

// DecodeError is a received frame that failed verification. During polling
// these are swallowed; the last one is kept on the TimeoutError.
type DecodeError = message.DecodeError

// ErrorType classifies errors for retry decisions
type ErrorType int

const (
	// ErrorTypePermanent errors will not go away on their own
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient errors are physical transfer hiccups
	ErrorTypeTransient
	// ErrorTypeTimeout means the retry budget ran out
	ErrorTypeTimeout
	// ErrorTypeBusy means the controller asked us to come back later
	ErrorTypeBusy
)

// String returns the error type name
func (t ErrorType) String() string {
	switch t {
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeBusy:
		return "busy"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// TransportError wraps a failure of the physical transport
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
}

// Unwrap returns the wrapped error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a TransportError; transient errors are marked retryable
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient,
	}
}

// BusyFault is raised when every handshake byte said BUSY.
// The engine never retries it; orchestration may after a cooldown.
type BusyFault struct {
	Request []byte
	Echo    []byte
	Kind    message.Kind
}

func (e *BusyFault) Error() string {
	return fmt.Sprintf("controller busy: %s request [%s]", e.Kind, frame.Hex(e.Request))
}

// Is matches ErrBusy
func (*BusyFault) Is(target error) bool {
	return target == ErrBusy
}

// Region tells whether a handshake position held padding or request bytes
type Region string

// Handshake regions
const (
	RegionPadding Region = "padding"
	RegionPayload Region = "payload"
)

// ProtocolFault is a handshake echo that is neither ready, busy nor an
// embedded response. It means framing is out of step with the controller.
type ProtocolFault struct {
	Reason   string
	Region   Region
	Request  []byte
	Echo     []byte
	Position int
	Kind     message.Kind
	Sent     byte
	Got      byte
	Silent   bool
}

func (e *ProtocolFault) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("protocol fault: %s request [%s]: %s", e.Kind, frame.Hex(e.Request), e.Reason)
	}
	return fmt.Sprintf(
		"protocol fault: %s request: echo 0x%02X at %s position %d (sent 0x%02X): %s",
		e.Kind, e.Got, e.Region, e.Position, e.Sent, e.Reason,
	)
}

// Is matches ErrProtocolFault, and ErrNoComm for a silent controller
func (e *ProtocolFault) Is(target error) bool {
	return target == ErrProtocolFault || (e.Silent && target == ErrNoComm)
}

// TimeoutError reports an exhausted poll budget. It carries enough context
// to reproduce the exchange.
type TimeoutError struct {
	Last        error
	Op          string
	Request     []byte
	Attempts    int
	Tries       int
	SettleDelay time.Duration
	Kind        message.Kind
}

func (e *TimeoutError) Error() string {
	subject := "token"
	if e.Kind != 0 {
		subject = e.Kind.String() + " request"
	}
	msg := fmt.Sprintf(
		"%s timeout: %s [%s]: no valid response after %d attempts (tries=%d, settle=%s)",
		e.Op, subject, frame.Hex(e.Request), e.Attempts, e.Tries, e.SettleDelay,
	)
	if e.Last != nil {
		msg += ": last: " + e.Last.Error()
	}
	return msg
}

// Unwrap returns the last decode error seen, if any
func (e *TimeoutError) Unwrap() error {
	return e.Last
}

// Is matches ErrTimeout
func (*TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// IsRetryable reports whether orchestration may try err again.
// Only busy faults and transient transport errors qualify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var busy *BusyFault
	if errors.As(err, &busy) {
		return true
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	return false
}

// GetErrorType classifies err
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var te *TransportError
	switch {
	case errors.As(err, &te):
		return te.Type
	case errors.Is(err, ErrBusy):
		return ErrorTypeBusy
	case errors.Is(err, ErrTimeout):
		return ErrorTypeTimeout
	default:
		return ErrorTypePermanent
	}
}
