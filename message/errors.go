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

package message

import (
	"errors"
	"fmt"

	"github.com/stepbus/go-stepbus/internal/frame"
)

// Catalog errors
var (
	ErrDecode       = errors.New("response decode failed")
	ErrInvalidField = errors.New("invalid field value")
	ErrUnknownKind  = errors.New("unknown message kind")
)

// DecodeError reports a received frame that did not match the layout of the
// expected response. Check names the first verification step that failed.
type DecodeError struct {
	Err   error
	Check string
	Frame []byte
	Kind  Kind
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response [%s]: %v", e.Kind, frame.Hex(e.Frame), e.Err)
}

// Unwrap returns the underlying verification error
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrDecode
func (*DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// NewDecodeError wraps a frame verification failure for kind
func NewDecodeError(kind Kind, b []byte, err error) *DecodeError {
	de := &DecodeError{
		Kind:  kind,
		Frame: append([]byte(nil), b...),
		Err:   err,
	}
	var ferr *frame.Error
	if errors.As(err, &ferr) {
		de.Check = string(ferr.Check)
	}
	return de
}

func invalidField(kind Kind, field string, v, limit uint64) error {
	return fmt.Errorf("%w: %s %s=0x%X exceeds 0x%X", ErrInvalidField, kind, field, v, limit)
}
