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
	"fmt"
	"strings"

	"github.com/stepbus/go-stepbus"
	"github.com/stepbus/go-stepbus/detection"
	"github.com/stepbus/go-stepbus/internal/config"
	"github.com/stepbus/go-stepbus/transport/spi"
	"github.com/stepbus/go-stepbus/transport/uart"
	"periph.io/x/conn/v3/physic"
)

// autoDevice asks for the first detected controller bus
const autoDevice = "auto"

// driverBus is the bus a driver chip sits on
type driverBus interface {
	stepbus.Duplexer
	Close() error
}

// dialer opens the buses a command needs
type dialer struct {
	controller func(ctx context.Context, cfg *config.Config) (stepbus.Transport, error)
	driver     func(cfg config.DriverConfig) (driverBus, error)
}

func hardwareDialer() *dialer {
	return &dialer{
		controller: openController,
		driver:     openDriverBus,
	}
}

func openController(ctx context.Context, cfg *config.Config) (stepbus.Transport, error) {
	if cfg.Device.Path == autoDevice {
		return detectController(ctx)
	}
	return newTransport(cfg.Device)
}

// newTransport opens the controller bus named in cfg
func newTransport(cfg config.DeviceConfig) (stepbus.Transport, error) {
	switch strings.ToLower(cfg.Transport) {
	case config.TransportUART:
		t, err := uart.New(cfg.Path, cfg.Baud)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return t, nil
	case config.TransportSPI:
		t, err := spi.New(cfg.Path, spi.WithSpeed(physic.Frequency(cfg.SpeedHz)*physic.Hertz))
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI transport: %w", err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Transport)
	}
}

// newTransportFromDevice opens a detected bus with default settings
func newTransportFromDevice(device detection.DeviceInfo) (stepbus.Transport, error) {
	cfg := config.Default().Device
	cfg.Path = device.Path
	cfg.Transport = device.Transport
	return newTransport(cfg)
}

func detectController(ctx context.Context) (stepbus.Transport, error) {
	opts := detection.DefaultOptions()
	opts.Mode = detection.Safe
	devices, err := detection.DetectAllContext(ctx, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, stepbus.ErrDeviceNotFound
	}
	return newTransportFromDevice(devices[0])
}

func openDriverBus(cfg config.DriverConfig) (driverBus, error) {
	t, err := spi.New(cfg.Path, spi.WithSpeed(physic.Frequency(cfg.SpeedHz)*physic.Hertz))
	if err != nil {
		return nil, fmt.Errorf("failed to open driver bus: %w", err)
	}
	return t, nil
}
