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

package spi

import (
	"context"
	"testing"

	"github.com/stepbus/go-stepbus/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpidevName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		bus    int
		cs     int
		wantOK bool
	}{
		{name: "bus 0 cs 0", input: "spidev0.0", bus: 0, cs: 0, wantOK: true},
		{name: "bus 1 cs 2", input: "spidev1.2", bus: 1, cs: 2, wantOK: true},
		{name: "multi digit", input: "spidev10.11", bus: 10, cs: 11, wantOK: true},
		{name: "missing dot", input: "spidev0", wantOK: false},
		{name: "wrong prefix", input: "ttyUSB0", wantOK: false},
		{name: "non numeric bus", input: "spidevA.0", wantOK: false},
		{name: "empty cs", input: "spidev0.", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			bus, cs, ok := parseSpidevName(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.bus, bus)
				assert.Equal(t, tt.cs, cs)
			}
		})
	}
}

func TestDeviceInfo(t *testing.T) {
	t.Parallel()

	info := deviceInfo("/dev/spidev0.1", 0, 1)
	assert.Equal(t, "spi", info.Transport)
	assert.Equal(t, "/dev/spidev0.1", info.Path)
	assert.Equal(t, detection.Medium, info.Confidence)
	assert.Equal(t, "0", info.Metadata["bus"])
	assert.Equal(t, "1", info.Metadata["cs"])
}

func TestDetectorRegistered(t *testing.T) {
	t.Parallel()

	var found bool
	for _, d := range detection.Detectors() {
		if d.Transport() == "spi" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDetectIgnoresEverything(t *testing.T) {
	t.Parallel()

	opts := detection.DefaultOptions()
	opts.IgnorePaths = []string{"/dev/spidev0.0", "/dev/spidev0.1"}
	devices, err := New().Detect(context.Background(), &opts)
	if err != nil {
		// No spidev nodes, or not linux
		return
	}
	require.NotNil(t, devices)
	for _, d := range devices {
		assert.NotContains(t, opts.IgnorePaths, d.Path)
	}
}
