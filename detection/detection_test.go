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

package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	err       error
	transport string
	devices   []DeviceInfo
	delay     time.Duration
}

func (f *fakeDetector) Transport() string { return f.transport }

func (f *fakeDetector) Detect(ctx context.Context, _ *Options) ([]DeviceInfo, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.devices, f.err
}

// The registry is global, so these subtests run sequentially.
func TestDetectAllContext(t *testing.T) {
	saved := Detectors()
	t.Cleanup(func() {
		registryMu.Lock()
		detectors = map[string]Detector{}
		registryMu.Unlock()
		for _, d := range saved {
			RegisterDetector(d)
		}
	})

	reset := func(ds ...Detector) {
		registryMu.Lock()
		detectors = map[string]Detector{}
		registryMu.Unlock()
		for _, d := range ds {
			RegisterDetector(d)
		}
	}

	t.Run("merges by confidence", func(t *testing.T) {
		reset(
			&fakeDetector{transport: "a", devices: []DeviceInfo{{Transport: "a", Path: "/dev/a0", Confidence: Low}}},
			&fakeDetector{transport: "b", devices: []DeviceInfo{{Transport: "b", Path: "/dev/b0", Confidence: High}}},
		)
		devices, err := DetectAll(nil)
		require.NoError(t, err)
		require.Len(t, devices, 2)
		assert.Equal(t, "/dev/b0", devices[0].Path)
		assert.Equal(t, "/dev/a0", devices[1].Path)
	})

	t.Run("skips unsupported and ignored", func(t *testing.T) {
		reset(
			&fakeDetector{transport: "a", err: ErrUnsupportedPlatform},
			&fakeDetector{transport: "b", devices: []DeviceInfo{{Path: "/dev/b0"}, {Path: "/dev/b1"}}},
		)
		opts := DefaultOptions()
		opts.IgnorePaths = []string{"/dev/b0"}
		devices, err := DetectAllContext(context.Background(), &opts)
		require.NoError(t, err)
		require.Len(t, devices, 1)
		assert.Equal(t, "/dev/b1", devices[0].Path)
	})

	t.Run("nothing found", func(t *testing.T) {
		reset(&fakeDetector{transport: "a", err: ErrNoDevicesFound})
		_, err := DetectAll(nil)
		assert.ErrorIs(t, err, ErrNoDevicesFound)
	})

	t.Run("detector errors surface", func(t *testing.T) {
		boom := errors.New("boom")
		reset(&fakeDetector{transport: "a", err: boom})
		_, err := DetectAll(nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("timeout", func(t *testing.T) {
		reset(&fakeDetector{transport: "a", delay: time.Second})
		opts := DefaultOptions()
		opts.Timeout = 20 * time.Millisecond
		_, err := DetectAllContext(context.Background(), &opts)
		assert.ErrorIs(t, err, ErrDetectionTimeout)
	})
}

func TestModeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "passive", Passive.String())
	assert.Equal(t, "safe", Safe.String())
	assert.Equal(t, "full", Full.String())
	assert.Equal(t, "Mode(9)", Mode(9).String())
}

func TestDeviceInfoString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "spi:/dev/spidev0.0", DeviceInfo{Transport: "spi", Path: "/dev/spidev0.0"}.String())
	assert.Equal(t, "uart:/dev/ttyUSB0 (FTDI FT232H)",
		DeviceInfo{Transport: "uart", Path: "/dev/ttyUSB0", Name: "FTDI FT232H"}.String())
}
