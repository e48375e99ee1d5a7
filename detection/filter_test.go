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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		ignore []string
		want   bool
	}{
		{name: "nothing ignored", path: "/dev/spidev0.0", want: false},
		{name: "empty path", path: "", ignore: []string{"/dev/spidev0.0"}, want: false},
		{name: "spidev match", path: "/dev/spidev0.0", ignore: []string{"/dev/spidev0.0"}, want: true},
		{name: "other chip select", path: "/dev/spidev0.1", ignore: []string{"/dev/spidev0.0"}, want: false},
		{name: "usb bridge match", path: "/dev/ttyUSB0", ignore: []string{"/dev/ttyACM0", "/dev/ttyUSB0"}, want: true},
		{name: "case matters", path: "/dev/ttyUSB0", ignore: []string{"/dev/ttyusb0"}, want: false},
		{name: "unclean entry", path: "/dev/spidev1.0", ignore: []string{"/dev/./spidev1.0"}, want: true},
		{name: "empty entries skipped", path: "/dev/ttyACM0", ignore: []string{"", "/dev/ttyACM0"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsPathIgnored(tt.path, tt.ignore))
		})
	}
}

func TestIsPathIgnoredFollowsSymlinks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tty := filepath.Join(dir, "ttyUSB0")
	require.NoError(t, os.WriteFile(tty, nil, 0o600))
	byID := filepath.Join(dir, "usb-FTDI_FT232H_FT1234-if00-port0")
	require.NoError(t, os.Symlink(tty, byID))

	assert.True(t, IsPathIgnored(tty, []string{byID}))
	assert.True(t, IsPathIgnored(byID, []string{tty}))
	assert.False(t, IsPathIgnored(filepath.Join(dir, "ttyUSB1"), []string{byID}))
}

func TestVIDPID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0403:6014", VIDPID("0403", "6014"))
	assert.Equal(t, "1A86:5512", VIDPID(" 1a86", "5512 "))
	assert.Empty(t, VIDPID("", "6014"))
	assert.Empty(t, VIDPID("0403", ""))
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	assert.True(t, IsBlocked("2341:0043", DefaultBlocklist()))
	assert.True(t, IsBlocked(" 1d50:614e ", DefaultBlocklist()))
	assert.False(t, IsBlocked("0403:6014", DefaultBlocklist()))
	assert.False(t, IsBlocked("", []string{""}))
}

func TestDefaultOptionsIgnoreNothing(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	assert.Nil(t, opts.IgnorePaths)
	assert.Equal(t, DefaultBlocklist(), opts.Blocklist)
}
