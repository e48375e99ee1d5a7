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

// Package uart detects USB serial bridges that can clock an SPI bus
package uart

import (
	"context"
	"fmt"
	"strings"

	"github.com/stepbus/go-stepbus/detection"
	"go.bug.st/serial/enumerator"
)

const transportName = "uart"

// knownBridges maps VID:PID pairs of USB to SPI bridges to a description
var knownBridges = map[string]string{
	"1A86:5512": "WCH CH341 (SPI mode)",
	"0403:6014": "FTDI FT232H",
	"0403:6010": "FTDI FT2232H",
	"10C4:87A0": "Silicon Labs CP2130",
	"04D8:00DE": "Microchip MCP2210",
	"2E8A:000A": "Raspberry Pi RP2040 bridge",
}

// portLister returns the serial ports on the host
type portLister func() ([]*enumerator.PortDetails, error)

type detector struct {
	list portLister
}

// New creates a new UART bridge detector
func New() detection.Detector {
	return &detector{list: enumerator.GetDetailedPortsList}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return transportName
}

// Detect enumerates serial ports and keeps USB bridges that are not
// blocked or ignored
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if opts == nil {
		o := detection.DefaultOptions()
		opts = &o
	}

	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, port := range ports {
		if ctx.Err() != nil {
			return devices, detection.ErrDetectionTimeout
		}
		if dev, ok := classify(port, opts); ok {
			devices = append(devices, dev)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func classify(port *enumerator.PortDetails, opts *detection.Options) (detection.DeviceInfo, bool) {
	if port == nil || port.Name == "" {
		return detection.DeviceInfo{}, false
	}
	if detection.IsPathIgnored(port.Name, opts.IgnorePaths) || strings.Contains(port.Name, "Bluetooth") {
		return detection.DeviceInfo{}, false
	}

	// Built-in UARTs cannot be told apart from anything else without
	// sending frames.
	if !port.IsUSB {
		if opts.Mode != detection.Full {
			return detection.DeviceInfo{}, false
		}
		return detection.DeviceInfo{
			Transport:  transportName,
			Path:       port.Name,
			Name:       port.Name,
			Confidence: detection.Low,
			Metadata:   map[string]string{},
		}, true
	}

	vidpid := detection.VIDPID(port.VID, port.PID)
	if detection.IsBlocked(vidpid, opts.Blocklist) {
		return detection.DeviceInfo{}, false
	}

	dev := detection.DeviceInfo{
		Transport:  transportName,
		Path:       port.Name,
		Name:       port.Name,
		Confidence: detection.Low,
		Metadata:   map[string]string{},
	}
	if vidpid != "" {
		dev.Metadata["vidpid"] = vidpid
	}
	if port.Product != "" {
		dev.Metadata["product"] = port.Product
	}
	if port.SerialNumber != "" {
		dev.Metadata["serial"] = port.SerialNumber
	}
	if desc, ok := knownBridges[vidpid]; ok {
		dev.Name = desc
		dev.Confidence = detection.High
	} else if strings.Contains(strings.ToLower(port.Product), "spi") {
		dev.Confidence = detection.Medium
	}
	return dev, true
}
