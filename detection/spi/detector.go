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

// Package spi detects spidev device nodes
package spi

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stepbus/go-stepbus/detection"
)

const transportName = "spi"

type detector struct{}

// New creates a new SPI detector
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return transportName
}

// Detect lists spidev nodes. Nodes that cannot be opened are reported
// with low confidence outside passive mode.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if opts == nil {
		o := detection.DefaultOptions()
		opts = &o
	}
	return detectPlatform(ctx, opts)
}

// parseSpidevName splits "spidev0.1" into bus 0 and chip select 1
func parseSpidevName(name string) (bus, cs int, ok bool) {
	rest, found := strings.CutPrefix(name, "spidev")
	if !found {
		return 0, 0, false
	}
	b, c, found := strings.Cut(rest, ".")
	if !found {
		return 0, 0, false
	}
	var err error
	if bus, err = strconv.Atoi(b); err != nil || bus < 0 {
		return 0, 0, false
	}
	if cs, err = strconv.Atoi(c); err != nil || cs < 0 {
		return 0, 0, false
	}
	return bus, cs, true
}

func deviceInfo(path string, bus, cs int) detection.DeviceInfo {
	return detection.DeviceInfo{
		Transport:  transportName,
		Path:       path,
		Name:       fmt.Sprintf("SPI bus %d chip select %d", bus, cs),
		Confidence: detection.Medium,
		Metadata: map[string]string{
			"bus": strconv.Itoa(bus),
			"cs":  strconv.Itoa(cs),
		},
	}
}
