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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stepbus/go-stepbus"
	"github.com/stepbus/go-stepbus/internal/config"
	testutil "github.com/stepbus/go-stepbus/internal/testing"
	"github.com/stepbus/go-stepbus/message"
	"github.com/stepbus/go-stepbus/tmc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct {
	stepbus.Duplexer
}

func (nopCloser) Close() error { return nil }

func testDialer(vc *testutil.VirtualController, chip *testutil.VirtualDriverChip) *dialer {
	return &dialer{
		controller: func(context.Context, *config.Config) (stepbus.Transport, error) {
			return stepbus.NewMockTransport(vc), nil
		},
		driver: func(config.DriverConfig) (driverBus, error) {
			return nopCloser{chip}, nil
		},
	}
}

type runResult struct {
	stdout string
	stderr string
	code   int
}

func runCLI(t *testing.T, d *dialer, args ...string) runResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, d)
	return runResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// lastLine skips any log output written before the final record
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	return s[strings.LastIndex(s, "\n")+1:]
}

func TestRunStatus(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualController()
	vc.SetFaults(message.FaultLimitSwitch | message.FaultDriver)

	res := runCLI(t, testDialer(vc, nil), "status")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "state:     idle")
	assert.Contains(t, res.stdout, "limit-switch,driver")
	assert.Equal(t, 1, vc.Handshakes())
}

func TestRunQueueAddUsesFrameID(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualController()
	res := runCLI(t, testDialer(vc, nil),
		"--frame-id", "9", "queue-add",
		"--steps", "10,20,30", "--velocity", "5,6,7", "--gains", "1,2,3", "--dir-mask", "2")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "frame 9: ok (queued 1)")

	reqs := vc.Requests()
	require.Len(t, reqs, 1)
	move, ok := reqs[0].(message.QueueAdd)
	require.True(t, ok)
	assert.Equal(t, message.FrameID(9), move.FrameID)
	assert.Equal(t, byte(2), move.DirMask)
	assert.Equal(t, message.AxisMove{Steps: 30, Velocity: 7}, move.Axes[2])
	assert.Equal(t, message.Gains{Kp: 1, Ki: 2, Kd: 3}, move.Gains[0])
}

func TestRunRejectionStillDecodes(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualController()
	vc.SetCapacity(0)

	res := runCLI(t, testDialer(vc, nil), "queue-add", "--steps", "1,1,1")
	require.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stdout, "queue full")
	assert.Contains(t, res.stderr, "rejected")
}

func TestRunTimeoutIsStructured(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualController()
	vc.SetResponseDelay(10)

	res := runCLI(t, testDialer(vc, nil), "--tries", "2", "--settle-delay", "1ms", "queue-status")
	require.Equal(t, exitError, res.code)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "stepbusctl queue-status:")
	assert.Contains(t, res.stderr, "type: timeout")
	assert.Contains(t, res.stderr, "attempts: 2")
	assert.Contains(t, res.stderr, "retryable: false")
	assert.Equal(t, 2, vc.Polls())
}

func TestRunProtocolFaultJSON(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualController()
	vc.InjectHandshakeByte(5, 0xE1)

	res := runCLI(t, testDialer(vc, nil), "--json", "hello")
	require.Equal(t, exitError, res.code)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lastLine(res.stderr)), &got))
	assert.Equal(t, "hello", got["command"])
	assert.Equal(t, "protocol_fault", got["type"])
	assert.Equal(t, "padding", got["region"])
	assert.Equal(t, "0xE1", got["got"])
}

func TestRunStatusJSON(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualController()
	res := runCLI(t, testDialer(vc, nil), "--json", "status")
	require.Equal(t, exitOK, res.code, res.stderr)

	var got struct {
		Command string              `json:"command"`
		Result  message.StatusReply `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	assert.Equal(t, "status", got.Command)
	assert.Equal(t, message.StateIdle, got.Result.State)
}

func TestRunMotionCommands(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualController()
	d := testDialer(vc, nil)

	res := runCLI(t, d, "probe", "--axes", "4")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "triggered 0x0")

	res = runCLI(t, d, "home", "--axes", "7")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "ok, homed 0x7 of 0x7")

	res = runCLI(t, d, "probe", "--axes", "4")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "triggered 0x1 at -1200")
}

func TestRunQueueLifecycle(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualController()
	d := testDialer(vc, nil)

	for _, args := range [][]string{
		{"start-move"},
		{"queue-add", "--steps", "5,0,0"},
		{"queue-add", "--steps", "5,0,0"},
		{"start-move"},
		{"move-end"},
		{"wait-idle", "--interval", "1ms", "--wait", "2s"},
	} {
		res := runCLI(t, d, args...)
		require.Equal(t, exitOK, res.code, "%v: %s", args, res.stderr)
	}
	assert.Equal(t, message.StateIdle, vc.State())
	assert.Equal(t, [message.NumAxes]int32{10, 0, 0}, vc.Position())
}

func TestRunLEDProfiles(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualController()
	d := testDialer(vc, nil)

	res := runCLI(t, d, "led", "--mask", "3", "--mode", "2", "--frequency", "5")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "leds 0x3 mode 2 at 5 Hz")

	res = runCLI(t, d, "led", "--profile", "rgb", "--rgb", "1,2,3")
	require.Equal(t, exitOK, res.code, res.stderr)

	reqs := vc.Requests()
	require.Len(t, reqs, 2)
	rgb, ok := reqs[1].(message.LEDControlRGB)
	require.True(t, ok)
	assert.Equal(t, [3]byte{1, 2, 3}, [3]byte{rgb.R, rgb.G, rgb.B})
}

func TestRunResync(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualController()
	vc.SetBootStream(append([]byte{0x00, 0x00}, message.HelloToken...))

	res := runCLI(t, testDialer(vc, nil), "resync", "--chunk", "4", "--reads", "5")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "token found after 3 reads")
	assert.Contains(t, res.stdout, "bytes before header: 2")
}

func TestRunWatch(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualController()
	res := runCLI(t, testDialer(vc, nil), "watch", "--interval", "5ms", "--duration", "60ms")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "state from=idle to=idle")
	assert.GreaterOrEqual(t, vc.Handshakes(), 2)
}

func TestRunDriverRegisters(t *testing.T) {
	t.Parallel()

	chip := testutil.NewVirtualDriverChip()
	d := testDialer(nil, chip)

	res := runCLI(t, d, "driver-write", "--register", "CHOPCONF", "--value", "0x1234", "--verify")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Equal(t, uint32(0x1234), chip.Register(byte(tmc.RegCHOPCONF)))

	res = runCLI(t, d, "driver-read", "--register", "0x6C", "--driver", "x")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "x CHOPCONF = 0x00001234")
}

func TestRunDriverFault(t *testing.T) {
	t.Parallel()

	chip := testutil.NewVirtualDriverChip()
	chip.FaultAfterWrites(1, byte(tmc.StatusOvertemperature))

	// The fault shows on the echo after the write, so only the read back sees it
	res := runCLI(t, testDialer(nil, chip), "driver-write", "--register", "CHOPCONF", "--value", "1", "--verify")
	require.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "type: driver_status")
	assert.Contains(t, res.stderr, "overtemperature")
}

func TestRunDialFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("no such bus")
	d := &dialer{
		controller: func(context.Context, *config.Config) (stepbus.Transport, error) { return nil, boom },
	}
	res := runCLI(t, d, "status")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "no such bus")
}

func TestRunConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stepbus.toml")
	require.NoError(t, os.WriteFile(path, []byte("[policy.query]\ntries = 1\nsettle_delay = \"0s\"\n"), 0o600))

	vc := testutil.NewVirtualController()
	vc.SetResponseDelay(3)
	res := runCLI(t, testDialer(vc, nil), "--config", path, "status")
	require.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "tries: 1")
}

func TestRunUsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"jog"}},
		{name: "frame id range", args: []string{"--frame-id", "300", "status"}},
		{name: "zero tries", args: []string{"--tries", "0", "status"}},
		{name: "unknown flag", args: []string{"--speed", "1", "status"}},
		{name: "short steps", args: []string{"queue-add", "--steps", "1,2"}},
		{name: "steps overflow", args: []string{"queue-add", "--steps", "1,2,4294967296"}},
		{name: "mask overflow", args: []string{"led", "--mask", "300"}},
		{name: "bad profile", args: []string{"led", "--profile", "neon"}},
		{name: "home axis out of range", args: []string{"home", "--axes", "0x08"}},
		{name: "probe axis out of range", args: []string{"probe", "--axes", "0x10"}},
		{name: "queue dir mask out of range", args: []string{"queue-add", "--dir-mask", "0x08"}},
		{name: "stray argument", args: []string{"status", "now"}},
		{name: "missing register", args: []string{"driver-read"}},
		{name: "unknown register", args: []string{"driver-read", "--register", "NOPE"}},
		{name: "bad value", args: []string{"driver-write", "--register", "GCONF", "--value", "x"}},
		{name: "bad detect mode", args: []string{"detect", "--mode", "loud"}},
		{name: "missing config", args: []string{"--config", "/nonexistent/stepbus.toml", "status"}},
		{name: "bad transport", args: []string{"--transport", "i2c", "status"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			vc := testutil.NewVirtualController()
			res := runCLI(t, testDialer(vc, testutil.NewVirtualDriverChip()), tt.args...)
			assert.Equal(t, exitUsage, res.code, res.stderr)
			assert.Zero(t, vc.Handshakes())
		})
	}
}

func TestRunHelp(t *testing.T) {
	t.Parallel()

	res := runCLI(t, testDialer(nil, nil), "-h")
	assert.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stderr, "wait-idle")

	res = runCLI(t, testDialer(nil, nil), "home", "-h")
	assert.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stderr, "-dir-mask")
}

func TestParseRegister(t *testing.T) {
	t.Parallel()

	r, err := parseRegister("DRV_STATUS")
	require.NoError(t, err)
	assert.Equal(t, tmc.RegDRVSTATUS, r)

	r, err = parseRegister("0x10")
	require.NoError(t, err)
	assert.Equal(t, tmc.Register(0x10), r)

	_, err = parseRegister("0x80")
	require.ErrorIs(t, err, errUsage)
}
