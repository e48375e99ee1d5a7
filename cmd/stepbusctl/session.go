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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stepbus/go-stepbus"
	"github.com/stepbus/go-stepbus/internal/config"
	"github.com/stepbus/go-stepbus/message"
	"go.uber.org/zap"
)

// session carries what every command needs
type session struct {
	cfg     *config.Config
	global  *globalFlags
	log     *zap.Logger
	out     *Output
	dial    *dialer
	stderr  io.Writer
	cmdName string
}

func (s *session) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	if s.stderr != nil {
		fs.SetOutput(s.stderr)
	} else {
		fs.SetOutput(io.Discard)
	}
	return fs
}

// parse parses command flags; commands take no positional arguments
func (*session) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}
	return nil
}

// device opens the controller. The caller closes it.
func (s *session) device(ctx context.Context, extra ...stepbus.Option) (*stepbus.Device, error) {
	t, err := s.dial.controller(ctx, s.cfg)
	if err != nil {
		return nil, err
	}
	if s.cfg.Device.Timeout > 0 {
		if err := t.SetTimeout(s.cfg.Device.Timeout); err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("failed to set timeout on transport: %w", err)
		}
	}

	opts := append(s.cfg.DeviceOptions(), stepbus.WithLogger(s.log))
	if s.global.frameID > 0 {
		opts = append(opts, stepbus.WithFrameIDStart(message.FrameID(s.global.frameID)))
	}
	opts = append(opts, extra...)

	dev, err := stepbus.New(t, opts...)
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	s.log.Debug("controller open",
		zap.String("path", s.cfg.Device.Path),
		zap.String("transport", s.cfg.Device.Transport),
		zap.Stringer("version", s.cfg.Device.Version),
	)
	return dev, nil
}

// withDevice opens the controller, runs fn and closes it again
func (s *session) withDevice(ctx context.Context, fn func(*stepbus.Device) error, extra ...stepbus.Option) error {
	dev, err := s.device(ctx, extra...)
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			s.log.Warn("failed to close device", zap.Error(err))
		}
	}()
	return fn(dev)
}

// report prints a decoded response. A controller rejection still decoded
// cleanly, so it is printed and logged rather than failed.
func (s *session) report(resp message.Response, err error) error {
	if err != nil && !errors.Is(err, stepbus.ErrRejected) {
		return err
	}
	s.out.Result(s.cmdName, resp)
	if err != nil {
		s.log.Warn("controller rejected request", zap.Error(err))
	}
	return nil
}

// byteFlag checks a mask or mode flag fits in a byte
func byteFlag(name string, v uint) (byte, error) {
	if v > 0xFF {
		return 0, fmt.Errorf("%w: --%s 0x%X does not fit in a byte", errUsage, name, v)
	}
	return byte(v), nil
}

// uint16Flag checks a velocity or frequency flag fits in 16 bits
func uint16Flag(name string, v uint) (uint16, error) {
	if v > 0xFFFF {
		return 0, fmt.Errorf("%w: --%s %d does not fit in 16 bits", errUsage, name, v)
	}
	return uint16(v), nil
}

// parseList parses n comma separated unsigned integers of the given bit size
func parseList(name, s string, n, bits int) ([]uint64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("%w: --%s wants %d comma separated values, got %q", errUsage, name, n, s)
	}
	out := make([]uint64, n)
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 0, bits)
		if err != nil {
			return nil, fmt.Errorf("%w: --%s: %w", errUsage, name, err)
		}
		out[i] = v
	}
	return out, nil
}
