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
	"fmt"
	"strconv"
	"time"

	"github.com/stepbus/go-stepbus/detection"
	"github.com/stepbus/go-stepbus/tmc"
	"go.uber.org/zap"
)

// registerValue is the result of a register access
type registerValue struct {
	Driver   string `json:"driver"`
	Register string `json:"register"`
	Status   string `json:"status"`
	Value    uint32 `json:"value"`
}

// parseRegister accepts a register name such as GCONF or an address
func parseRegister(s string) (tmc.Register, error) {
	if r, ok := tmc.LookupRegister(s); ok {
		return r, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil || !tmc.Register(v).Valid() {
		return 0, fmt.Errorf("%w: unknown register %q", errUsage, s)
	}
	return tmc.Register(v), nil
}

// withDriver opens the driver bus, runs fn and closes the bus again
func (s *session) withDriver(name string, fn func(*tmc.Driver) error) error {
	bus, err := s.dial.driver(s.cfg.Driver)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			s.log.Warn("failed to close driver bus", zap.Error(err))
		}
	}()

	tries := s.cfg.Driver.Tries
	if s.global.tries > 0 {
		tries = s.global.tries
	}
	settle := s.cfg.Driver.SettleDelay
	if s.global.settleDelay > 0 {
		settle = s.global.settleDelay
	}
	d := tmc.New(bus,
		tmc.WithName(name),
		tmc.WithTries(tries),
		tmc.WithSettleDelay(settle),
		tmc.WithLogger(s.log),
	)
	return fn(d)
}

func (s *session) defaultDriverName() string {
	if len(s.cfg.Driver.Names) > 0 {
		return s.cfg.Driver.Names[0]
	}
	return "driver"
}

func cmdDriverRead(ctx context.Context, s *session, args []string) error {
	fs := s.flags(s.cmdName)
	reg := fs.String("register", "", "Register name (e.g. GCONF) or address")
	name := fs.String("driver", s.defaultDriverName(), "Driver label")
	if err := s.parse(fs, args); err != nil {
		return err
	}
	if *reg == "" {
		return fmt.Errorf("%w: --register is required", errUsage)
	}
	r, err := parseRegister(*reg)
	if err != nil {
		return err
	}

	return s.withDriver(*name, func(d *tmc.Driver) error {
		v, err := d.Read(ctx, r)
		if err != nil {
			return err
		}
		s.out.Result(s.cmdName, registerValue{
			Driver:   *name,
			Register: r.String(),
			Value:    v,
			Status:   d.LastStatus().String(),
		})
		return nil
	})
}

func cmdDriverWrite(ctx context.Context, s *session, args []string) error {
	fs := s.flags(s.cmdName)
	reg := fs.String("register", "", "Register name (e.g. GCONF) or address")
	value := fs.String("value", "", "Value to write, decimal or 0x hex")
	verify := fs.Bool("verify", false, "Read the register back and retry until it matches")
	name := fs.String("driver", s.defaultDriverName(), "Driver label")
	if err := s.parse(fs, args); err != nil {
		return err
	}
	if *reg == "" || *value == "" {
		return fmt.Errorf("%w: --register and --value are required", errUsage)
	}
	r, err := parseRegister(*reg)
	if err != nil {
		return err
	}
	v, err := strconv.ParseUint(*value, 0, 32)
	if err != nil {
		return fmt.Errorf("%w: --value: %w", errUsage, err)
	}

	return s.withDriver(*name, func(d *tmc.Driver) error {
		if *verify {
			err = d.WriteVerified(ctx, r, uint32(v))
		} else {
			_, err = d.Write(ctx, r, uint32(v))
		}
		if err != nil {
			return err
		}
		s.out.Result(s.cmdName, registerValue{
			Driver:   *name,
			Register: r.String(),
			Value:    uint32(v),
			Status:   d.LastStatus().String(),
		})
		return nil
	})
}

func cmdDetect(ctx context.Context, s *session, args []string) error {
	opts := detection.DefaultOptions()
	fs := s.flags(s.cmdName)
	mode := fs.String("mode", opts.Mode.String(), "Detection mode: passive, safe or full")
	fs.DurationVar(&opts.Timeout, "wait", 5*time.Second, "Give up after this long")
	if err := s.parse(fs, args); err != nil {
		return err
	}
	switch *mode {
	case "passive":
		opts.Mode = detection.Passive
	case "safe":
		opts.Mode = detection.Safe
	case "full":
		opts.Mode = detection.Full
	default:
		return fmt.Errorf("%w: --mode %q", errUsage, *mode)
	}

	devices, err := detection.DetectAllContext(ctx, &opts)
	if errors.Is(err, detection.ErrNoDevicesFound) {
		s.out.Line("No devices found")
		return err
	}
	if err != nil {
		return err
	}
	if s.out.json {
		s.out.Result(s.cmdName, devices)
		return nil
	}
	for _, d := range devices {
		s.out.Line("%s confidence=%d", d.String(), d.Confidence)
	}
	return nil
}
