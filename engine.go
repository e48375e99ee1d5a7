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
	"errors"
	"fmt"
	"time"

	"github.com/stepbus/go-stepbus/internal/frame"
	"github.com/stepbus/go-stepbus/message"
	"go.uber.org/zap"
)

// State is a step of the exchange state machine
type State int

// Exchange states. Delivered, TimedOut and Faulted are terminal.
const (
	StateIdle State = iota
	StateHandshaking
	StatePolling
	StateDelivered
	StateTimedOut
	StateFaulted
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshaking:
		return "handshaking"
	case StatePolling:
		return "polling"
	case StateDelivered:
		return "delivered"
	case StateTimedOut:
		return "timed out"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ProtocolVersion selects the transfer frame size
type ProtocolVersion int

// Protocol versions
const (
	ProtocolV1 ProtocolVersion = 1
	ProtocolV2 ProtocolVersion = 2
)

// String returns "v1" or "v2"
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("v%d", int(v))
}

// TransferLength returns the fixed transfer frame size for v
func (v ProtocolVersion) TransferLength() int {
	if v == ProtocolV1 {
		return frame.TransferLengthV1
	}
	return frame.TransferLengthV2
}

// EngineConfig configures an Engine
type EngineConfig struct {
	Logger   *zap.Logger
	Metrics  *Metrics
	Version  ProtocolVersion
	PadByte  byte
	PollByte byte
}

// DefaultEngineConfig returns the configuration for current firmware
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Version:  ProtocolV2,
		PadByte:  frame.DefaultPadByte,
		PollByte: frame.DefaultPollByte,
	}
}

// ExchangeOptions is the retry budget of a single exchange
type ExchangeOptions struct {
	// SettleDelay is slept before every poll transfer
	SettleDelay time.Duration
	// Tries is the number of poll transfers after the handshake
	Tries int
}

// Result describes a finished exchange
type Result struct {
	Response  message.Response
	Request   []byte
	Echo      []byte
	State     State
	Attempts  int // poll transfers made
	Transfers int // poll transfers plus the handshake transfer
}

// Engine runs request/response exchanges over one bus. An Engine
// serialises its callers: only one exchange is on the bus at a time.
type Engine struct {
	bus     ContextDuplexer
	log     *zap.Logger
	metrics *Metrics
	cfg     EngineConfig
	// bus ownership; a channel so waiting callers can give up on ctx
	sem chan struct{}
}

// NewEngine creates an engine on bus. A nil config uses DefaultEngineConfig.
func NewEngine(bus Duplexer, cfg *EngineConfig) *Engine {
	if cfg == nil {
		cfg = DefaultEngineConfig()
	}
	c := *cfg
	if c.Version == 0 {
		c.Version = ProtocolV2
	}
	log := c.Logger
	if log == nil {
		log = Logger()
	}
	return &Engine{
		bus:     AsContextDuplexer(bus),
		cfg:     c,
		log:     log.Named("engine"),
		metrics: c.Metrics,
		sem:     make(chan struct{}, 1),
	}
}

func (e *Engine) acquire(ctx context.Context) error {
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) release() {
	<-e.sem
}

// Config returns a copy of the engine configuration
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Exchange builds req, sends it and polls for the matching response
func (e *Engine) Exchange(ctx context.Context, req message.Request, opts ExchangeOptions) (*Result, error) {
	b, spec, err := message.Build(req)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", kindOf(req), err)
	}
	return e.ExchangeFrame(ctx, b, spec, opts)
}

// ExchangeFrame runs the exchange state machine for an already encoded request
func (e *Engine) ExchangeFrame(
	ctx context.Context,
	req []byte,
	spec message.ResponseSpec,
	opts ExchangeOptions,
) (*Result, error) {
	if !spec.Valid() {
		return nil, fmt.Errorf("%w: response spec", ErrInvalidParameter)
	}
	if opts.Tries < 0 {
		return nil, fmt.Errorf("%w: tries=%d", ErrInvalidParameter, opts.Tries)
	}

	res := &Result{State: StateIdle, Request: append([]byte(nil), req...)}
	if err := e.acquire(ctx); err != nil {
		return res, err
	}
	defer e.release()
	if err := ctx.Err(); err != nil {
		return res, err
	}

	n := e.cfg.Version.TransferLength()
	transfer, err := frame.RightAlign(req, n, e.cfg.PadByte)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	res.State = StateHandshaking
	echo := make([]byte, n)
	if err := e.bus.TxContext(ctx, transfer, echo); err != nil {
		res.State = StateFaulted
		e.metrics.observeExchange(spec.Kind().String(), outcomeError, 0)
		if ctx.Err() != nil {
			return res, err
		}
		return res, wrapTransfer("handshake", err)
	}
	res.Transfers = 1
	res.Echo = echo
	debugf("handshake %s tx=[%s] rx=[%s]", spec.Kind(), frame.Hex(transfer), frame.Hex(echo))

	resp, err := judgeHandshake(echo, transfer, n-len(req), spec)
	if err != nil {
		return res, e.fault(res, spec, err)
	}
	if resp != nil {
		return e.deliver(res, spec, resp), nil
	}

	res.State = StatePolling
	return e.poll(ctx, res, spec, opts)
}

func (e *Engine) poll(
	ctx context.Context,
	res *Result,
	spec message.ResponseSpec,
	opts ExchangeOptions,
) (*Result, error) {
	poll := frame.Filled(spec.Length(), e.cfg.PollByte)
	rx := make([]byte, len(poll))

	var last error
	for attempt := 1; attempt <= opts.Tries; attempt++ {
		if err := sleepContext(ctx, opts.SettleDelay); err != nil {
			res.State = StateTimedOut
			e.metrics.observeExchange(spec.Kind().String(), outcomeTimeout, res.Attempts)
			return res, e.timeout(res, spec, opts, err)
		}

		if err := e.bus.TxContext(ctx, poll, rx); err != nil {
			if ctx.Err() != nil {
				res.State = StateTimedOut
				e.metrics.observeExchange(spec.Kind().String(), outcomeTimeout, res.Attempts)
				return res, e.timeout(res, spec, opts, ctx.Err())
			}
			res.State = StateFaulted
			e.metrics.observeExchange(spec.Kind().String(), outcomeError, res.Attempts)
			return res, wrapTransfer("poll", err)
		}
		res.Transfers++
		res.Attempts = attempt

		resp, _, derr := spec.Find(rx)
		if resp != nil {
			return e.deliver(res, spec, resp), nil
		}
		if derr != nil {
			last = derr
			debugf("poll %d/%d %s: %v", attempt, opts.Tries, spec.Kind(), derr)
		}
	}

	res.State = StateTimedOut
	e.metrics.observeExchange(spec.Kind().String(), outcomeTimeout, res.Attempts)
	return res, e.timeout(res, spec, opts, last)
}

func (e *Engine) deliver(res *Result, spec message.ResponseSpec, resp message.Response) *Result {
	res.State = StateDelivered
	res.Response = resp
	e.metrics.observeExchange(spec.Kind().String(), outcomeDelivered, res.Attempts)
	e.log.Debug("exchange delivered",
		zap.Stringer("kind", spec.Kind()),
		zap.Int("attempts", res.Attempts),
	)
	return res
}

func (e *Engine) fault(res *Result, spec message.ResponseSpec, err error) error {
	res.State = StateFaulted

	var pf *ProtocolFault
	switch {
	case errors.As(err, &pf):
		region := string(pf.Region)
		if pf.Silent {
			region = "silent"
		}
		e.metrics.observeHandshakeFault(region)
		e.metrics.observeExchange(spec.Kind().String(), outcomeFault, 0)
		e.log.Warn("handshake rejected",
			zap.Stringer("kind", spec.Kind()),
			zap.Int("position", pf.Position),
			zap.String("region", region),
			zap.String("echo", frame.Hex(res.Echo)),
		)
	case errors.Is(err, ErrBusy):
		e.metrics.observeExchange(spec.Kind().String(), outcomeBusy, 0)
		e.log.Debug("controller busy", zap.Stringer("kind", spec.Kind()))
	}
	return err
}

func (e *Engine) timeout(res *Result, spec message.ResponseSpec, opts ExchangeOptions, last error) error {
	e.log.Warn("exchange timed out",
		zap.Stringer("kind", spec.Kind()),
		zap.String("request", frame.Hex(res.Request)),
		zap.Int("attempts", res.Attempts),
		zap.Int("tries", opts.Tries),
		zap.Duration("settle", opts.SettleDelay),
	)
	return &TimeoutError{
		Op:          "exchange",
		Kind:        spec.Kind(),
		Request:     res.Request,
		Attempts:    res.Attempts,
		Tries:       opts.Tries,
		SettleDelay: opts.SettleDelay,
		Last:        last,
	}
}

func wrapTransfer(op string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	errType := ErrorTypeTransient
	if errors.Is(err, ErrTransportClosed) {
		errType = ErrorTypePermanent
	}
	return NewTransportError(op, "", fmt.Errorf("%w: %w", ErrTransfer, err), errType)
}

func kindOf(req message.Request) string {
	if req == nil {
		return "nil"
	}
	return req.Kind().String()
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
