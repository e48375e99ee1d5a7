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

package uart

import (
	"context"
	"errors"
	"testing"

	"github.com/stepbus/go-stepbus/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		port       *enumerator.PortDetails
		name       string
		mode       detection.Mode
		blocklist  []string
		ignore     []string
		confidence detection.Confidence
		want       bool
	}{
		{
			name:       "known bridge",
			port:       &enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1a86", PID: "5512"},
			want:       true,
			confidence: detection.High,
		},
		{
			name:       "spi in product name",
			port:       &enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "1209", PID: "0001", Product: "USB-SPI"},
			want:       true,
			confidence: detection.Medium,
		},
		{
			name:       "unknown usb serial",
			port:       &enumerator.PortDetails{Name: "/dev/ttyUSB1", IsUSB: true, VID: "067B", PID: "2303"},
			want:       true,
			confidence: detection.Low,
		},
		{
			name:      "blocked",
			port:      &enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1A86", PID: "5512"},
			blocklist: []string{"1a86:5512"},
			want:      false,
		},
		{
			name:   "ignored path",
			port:   &enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "1A86", PID: "5512"},
			ignore: []string{"/dev/ttyUSB0"},
			want:   false,
		},
		{
			name: "bluetooth",
			port: &enumerator.PortDetails{Name: "/dev/cu.Bluetooth-Incoming-Port"},
			mode: detection.Full,
			want: false,
		},
		{
			name: "builtin uart passive",
			port: &enumerator.PortDetails{Name: "/dev/ttyS0"},
			want: false,
		},
		{
			name:       "builtin uart full",
			port:       &enumerator.PortDetails{Name: "/dev/ttyS0"},
			mode:       detection.Full,
			want:       true,
			confidence: detection.Low,
		},
		{
			name:      "default blocklist, lower case ids",
			port:      &enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "2341", PID: "0043"},
			blocklist: detection.DefaultBlocklist(),
			want:      false,
		},
		{
			name:       "usb port without ids",
			port:       &enumerator.PortDetails{Name: "/dev/ttyACM1", IsUSB: true},
			blocklist:  detection.DefaultBlocklist(),
			want:       true,
			confidence: detection.Low,
		},
		{
			name: "nil port",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := &detection.Options{Mode: tt.mode, Blocklist: tt.blocklist, IgnorePaths: tt.ignore}
			dev, ok := classify(tt.port, opts)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, "uart", dev.Transport)
				assert.Equal(t, tt.port.Name, dev.Path)
				assert.Equal(t, tt.confidence, dev.Confidence)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	t.Run("returns bridges", func(t *testing.T) {
		t.Parallel()
		d := &detector{list: func() ([]*enumerator.PortDetails, error) {
			return []*enumerator.PortDetails{
				{Name: "/dev/ttyS0"},
				{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6014", SerialNumber: "FT1234"},
			}, nil
		}}
		devices, err := d.Detect(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, devices, 1)
		assert.Equal(t, "FTDI FT232H", devices[0].Name)
		assert.Equal(t, "FT1234", devices[0].Metadata["serial"])
	})

	t.Run("no ports", func(t *testing.T) {
		t.Parallel()
		d := &detector{list: func() ([]*enumerator.PortDetails, error) { return nil, nil }}
		_, err := d.Detect(context.Background(), nil)
		assert.ErrorIs(t, err, detection.ErrNoDevicesFound)
	})

	t.Run("enumerator error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		d := &detector{list: func() ([]*enumerator.PortDetails, error) { return nil, boom }}
		_, err := d.Detect(context.Background(), nil)
		assert.ErrorIs(t, err, boom)
	})
}
