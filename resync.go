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
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/stepbus/go-stepbus/internal/frame"
	"github.com/stepbus/go-stepbus/message"
)

// ResyncConfig configures a token search
type ResyncConfig struct {
	// Token is searched for verbatim, header and tail included
	Token       []byte
	ChunkLength int
	Tries       int
	Delay       time.Duration
	PollByte    byte
}

// DefaultResyncConfig searches for the hello reply
func DefaultResyncConfig() ResyncConfig {
	return ResyncConfig{
		Token:       message.HelloToken,
		ChunkLength: frame.TransferLengthV2,
		Tries:       32,
		Delay:       time.Millisecond,
		PollByte:    frame.DefaultPollByte,
	}
}

// ResyncResult describes where the token was found. Offsets count bytes
// from the first byte read, including any bytes since trimmed.
type ResyncResult struct {
	Match             []byte
	Chunks            [][]byte
	BytesBeforeHeader int
	BytesUntilTail    int
	ReadsUsed         int
}

// Resync clocks poll chunks out of bus until cfg.Token shows up in the
// stream of returned bytes. The token may straddle chunk boundaries.
// The rolling buffer is trimmed from the front once it grows past
// 4*ChunkLength + 2*len(Token).
func Resync(ctx context.Context, bus Duplexer, cfg ResyncConfig) (*ResyncResult, error) {
	if len(cfg.Token) == 0 || cfg.ChunkLength <= 0 || cfg.Tries < 0 {
		return nil, fmt.Errorf("%w: resync token=%d chunk=%d tries=%d",
			ErrInvalidParameter, len(cfg.Token), cfg.ChunkLength, cfg.Tries)
	}

	cd := AsContextDuplexer(bus)
	limit := 4*cfg.ChunkLength + 2*len(cfg.Token)
	poll := frame.Filled(cfg.ChunkLength, cfg.PollByte)
	res := &ResyncResult{}

	var (
		buf     []byte
		dropped int
	)
	for read := 1; read <= cfg.Tries; read++ {
		delay := cfg.Delay
		if read == 1 {
			delay = 0
		}
		if err := sleepContext(ctx, delay); err != nil {
			return res, err
		}

		chunk := make([]byte, cfg.ChunkLength)
		if err := cd.TxContext(ctx, poll, chunk); err != nil {
			if ctx.Err() != nil {
				return res, err
			}
			return res, wrapTransfer("resync", err)
		}
		res.Chunks = append(res.Chunks, chunk)
		res.ReadsUsed = read
		buf = append(buf, chunk...)

		if i := bytes.Index(buf, cfg.Token); i >= 0 {
			res.Match = append([]byte(nil), buf[i:i+len(cfg.Token)]...)
			res.BytesBeforeHeader = dropped + i
			res.BytesUntilTail = dropped + i + len(cfg.Token)
			debugf("resync: token after %d bytes, %d reads", res.BytesBeforeHeader, read)
			return res, nil
		}

		if len(buf) > limit {
			excess := len(buf) - limit
			buf = append(buf[:0], buf[excess:]...)
			dropped += excess
		}
	}

	return res, &TimeoutError{
		Op:       "resync",
		Request:  append([]byte(nil), cfg.Token...),
		Attempts: res.ReadsUsed,
		Tries:    cfg.Tries,
	}
}

// Resync runs a token search on the engine's bus, holding the bus for the
// whole search
func (e *Engine) Resync(ctx context.Context, cfg ResyncConfig) (*ResyncResult, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	res, err := Resync(ctx, e.bus, cfg)
	if err == nil {
		e.metrics.observeResync(res.ReadsUsed)
	}
	return res, err
}
