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
	"time"

	"github.com/stepbus/go-stepbus"
	"github.com/stepbus/go-stepbus/message"
	"github.com/stepbus/go-stepbus/polling"
	"go.uber.org/zap"
)

type command struct {
	run     func(ctx context.Context, s *session, args []string) error
	summary string
}

var commands = map[string]command{
	"queue-add":    {run: cmdQueueAdd, summary: "Append a move segment to the controller queue"},
	"queue-status": {run: simple(queueStatus), summary: "Show queue depth and motion state"},
	"start-move":   {run: simple(startMove), summary: "Start executing the queued moves"},
	"move-end":     {run: simple(moveEnd), summary: "Mark the end of the queued sequence"},
	"led":          {run: cmdLED, summary: "Set the indicator LEDs"},
	"home":         {run: cmdHome, summary: "Home axes"},
	"probe":        {run: cmdProbe, summary: "Move axes until the probe triggers"},
	"status":       {run: simple(status), summary: "Show a full status snapshot"},
	"hello":        {run: simple(hello), summary: "Check the controller answers in step"},
	"resync":       {run: cmdResync, summary: "Search the bus for the boot token"},
	"wait-idle":    {run: cmdWaitIdle, summary: "Poll queue status until the controller is idle"},
	"watch":        {run: cmdWatch, summary: "Poll status and print changes"},
	"driver-read":  {run: cmdDriverRead, summary: "Read a driver register"},
	"driver-write": {run: cmdDriverWrite, summary: "Write a driver register"},
	"detect":       {run: cmdDetect, summary: "List buses that may carry a controller"},
}

// simple wraps a request that takes no parameters
func simple(fn func(ctx context.Context, dev *stepbus.Device) (message.Response, error)) func(
	context.Context, *session, []string,
) error {
	return func(ctx context.Context, s *session, args []string) error {
		if err := s.parse(s.flags(s.cmdName), args); err != nil {
			return err
		}
		return s.withDevice(ctx, func(dev *stepbus.Device) error {
			return s.report(fn(ctx, dev))
		})
	}
}

func queueStatus(ctx context.Context, dev *stepbus.Device) (message.Response, error) {
	return dev.QueueStatus(ctx)
}

func startMove(ctx context.Context, dev *stepbus.Device) (message.Response, error) {
	return dev.StartMove(ctx)
}

func moveEnd(ctx context.Context, dev *stepbus.Device) (message.Response, error) {
	return dev.MoveEnd(ctx)
}

func status(ctx context.Context, dev *stepbus.Device) (message.Response, error) {
	return dev.Status(ctx)
}

func hello(ctx context.Context, dev *stepbus.Device) (message.Response, error) {
	if err := dev.Hello(ctx); err != nil {
		return nil, err
	}
	return message.HelloReply{}, nil
}

func cmdQueueAdd(ctx context.Context, s *session, args []string) error {
	fs := s.flags(s.cmdName)
	steps := fs.String("steps", "0,0,0", "Steps per axis as x,y,z")
	velocity := fs.String("velocity", "0,0,0", "Velocity per axis as x,y,z")
	gains := fs.String("gains", "0,0,0", "PID gains kp,ki,kd applied to every axis")
	dirMask := fs.Uint("dir-mask", 0, "Axes that move in the negative direction")
	if err := s.parse(fs, args); err != nil {
		return err
	}

	stepVals, err := parseList("steps", *steps, message.NumAxes, 32)
	if err != nil {
		return err
	}
	velVals, err := parseList("velocity", *velocity, message.NumAxes, 16)
	if err != nil {
		return err
	}
	gainVals, err := parseList("gains", *gains, 3, 16)
	if err != nil {
		return err
	}
	dir, err := byteFlag("dir-mask", *dirMask)
	if err != nil {
		return err
	}

	move := message.QueueAdd{DirMask: dir}
	for i := range message.NumAxes {
		move.Axes[i] = message.AxisMove{Steps: uint32(stepVals[i]), Velocity: uint16(velVals[i])}
		move.Gains[i] = message.Gains{Kp: uint16(gainVals[0]), Ki: uint16(gainVals[1]), Kd: uint16(gainVals[2])}
	}

	return s.withDevice(ctx, func(dev *stepbus.Device) error {
		return s.report(dev.QueueAdd(ctx, move))
	})
}

func cmdLED(ctx context.Context, s *session, args []string) error {
	fs := s.flags(s.cmdName)
	mask := fs.Uint("mask", uint(message.MaxLEDMask), "LEDs to change")
	mode := fs.Uint("mode", 0, "LED mode, 0-3")
	freq := fs.Uint("frequency", 0, "Blink frequency in Hz")
	rgb := fs.String("rgb", "0,0,0", "Colour as r,g,b (rgb profile only)")
	profile := fs.String("profile", "", "LED request layout: mode-frequency or rgb (default from config)")
	if err := s.parse(fs, args); err != nil {
		return err
	}

	var settings stepbus.LEDSettings
	var err error
	if settings.Mask, err = byteFlag("mask", *mask); err != nil {
		return err
	}
	if settings.Mode, err = byteFlag("mode", *mode); err != nil {
		return err
	}
	if settings.Frequency, err = uint16Flag("frequency", *freq); err != nil {
		return err
	}
	colour, err := parseList("rgb", *rgb, 3, 8)
	if err != nil {
		return err
	}
	settings.R, settings.G, settings.B = byte(colour[0]), byte(colour[1]), byte(colour[2])

	var extra []stepbus.Option
	if *profile != "" {
		p, err := message.ParseLEDProfile(*profile)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		extra = append(extra, stepbus.WithLEDProfile(p))
	}

	return s.withDevice(ctx, func(dev *stepbus.Device) error {
		return s.report(dev.SetLEDs(ctx, settings))
	}, extra...)
}

func cmdHome(ctx context.Context, s *session, args []string) error {
	fs := s.flags(s.cmdName)
	axes := fs.Uint("axes", uint(message.AxisMask), "Axes to home")
	dirMask := fs.Uint("dir-mask", 0, "Axes that home in the negative direction")
	velocity := fs.Uint("velocity", 1000, "Homing velocity")
	if err := s.parse(fs, args); err != nil {
		return err
	}

	axisMask, err := byteFlag("axes", *axes)
	if err != nil {
		return err
	}
	dir, err := byteFlag("dir-mask", *dirMask)
	if err != nil {
		return err
	}
	vel, err := uint16Flag("velocity", *velocity)
	if err != nil {
		return err
	}

	return s.withDevice(ctx, func(dev *stepbus.Device) error {
		return s.report(dev.Home(ctx, axisMask, dir, vel))
	})
}

func cmdProbe(ctx context.Context, s *session, args []string) error {
	fs := s.flags(s.cmdName)
	axes := fs.Uint("axes", uint(message.AxisZ), "Axes to move while probing")
	velocity := fs.Uint("velocity", 200, "Probing velocity")
	if err := s.parse(fs, args); err != nil {
		return err
	}

	axisMask, err := byteFlag("axes", *axes)
	if err != nil {
		return err
	}
	vel, err := uint16Flag("velocity", *velocity)
	if err != nil {
		return err
	}

	return s.withDevice(ctx, func(dev *stepbus.Device) error {
		return s.report(dev.Probe(ctx, axisMask, vel))
	})
}

func cmdResync(ctx context.Context, s *session, args []string) error {
	fs := s.flags(s.cmdName)
	chunk := fs.Int("chunk", s.cfg.Resync.ChunkLength, "Bytes clocked per read")
	tries := fs.Int("reads", s.cfg.Resync.Tries, "Reads before giving up")
	if err := s.parse(fs, args); err != nil {
		return err
	}

	rc := s.cfg.Resync
	rc.ChunkLength = *chunk
	rc.Tries = *tries
	rc.PollByte = s.cfg.Device.PollByte

	return s.withDevice(ctx, func(dev *stepbus.Device) error {
		res, err := dev.Resync(ctx)
		if err != nil {
			return err
		}
		s.out.Result(s.cmdName, res)
		return nil
	}, stepbus.WithResyncConfig(rc))
}

func cmdWaitIdle(ctx context.Context, s *session, args []string) error {
	pc := polling.DefaultConfig()
	fs := s.flags(s.cmdName)
	fs.DurationVar(&pc.Interval, "interval", pc.Interval, "Delay between polls")
	fs.DurationVar(&pc.Timeout, "wait", pc.Timeout, "Give up after this long")
	fs.IntVar(&pc.MaxErrors, "max-errors", pc.MaxErrors, "Consecutive retryable errors tolerated")
	if err := s.parse(fs, args); err != nil {
		return err
	}

	return s.withDevice(ctx, func(dev *stepbus.Device) error {
		start := time.Now()
		reply, err := polling.WaitIdle(ctx, dev, pc)
		if err != nil {
			return err
		}
		s.log.Debug("controller idle", zap.Duration("waited", time.Since(start)))
		s.out.Result(s.cmdName, reply)
		return nil
	})
}

func cmdWatch(ctx context.Context, s *session, args []string) error {
	pc := polling.DefaultConfig()
	pc.Interval = 100 * time.Millisecond
	fs := s.flags(s.cmdName)
	fs.DurationVar(&pc.Interval, "interval", pc.Interval, "Delay between polls")
	duration := fs.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	if err := s.parse(fs, args); err != nil {
		return err
	}

	return s.withDevice(ctx, func(dev *stepbus.Device) error {
		watchCtx := ctx
		if *duration > 0 {
			var cancel context.CancelFunc
			watchCtx, cancel = context.WithTimeout(ctx, *duration)
			defer cancel()
		}

		mon := polling.NewMonitor(dev, pc)
		mon.OnStateChange = func(prev, cur message.MotionState) {
			s.out.Event(s.cmdName, "state", map[string]any{"from": prev.String(), "to": cur.String()})
		}
		mon.OnFault = func(faults byte) {
			s.out.Event(s.cmdName, "faults", map[string]any{"faults": faultNames(faults)})
		}
		mon.OnPosition = func(pos [message.NumAxes]int32) {
			s.out.Event(s.cmdName, "position", map[string]any{"x": pos[0], "y": pos[1], "z": pos[2]})
		}
		mon.OnError = func(err error) {
			s.log.Warn("status poll failed", zap.Error(err))
		}

		err := mon.Start(watchCtx)
		m := mon.GetMetrics()
		s.log.Debug("watch finished",
			zap.Int64("polls", m.PollCycles),
			zap.Int64("errors", m.PollErrors),
			zap.Int64("changes", m.StateChanges),
		)
		// Running out the requested duration, or an interrupt, is a clean stop
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}
