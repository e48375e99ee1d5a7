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

// Command stepbusctl talks to a motion controller and its driver chips
// from the command line. Each controller request has its own subcommand.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/stepbus/go-stepbus"
	// Import detection packages to register detectors
	_ "github.com/stepbus/go-stepbus/detection/spi"
	_ "github.com/stepbus/go-stepbus/detection/uart"
	"github.com/stepbus/go-stepbus/internal/config"
	"go.uber.org/zap"
)

// Exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}

// globalFlags are accepted before the subcommand name
type globalFlags struct {
	configPath  string
	device      string
	transport   string
	logFile     string
	frameID     int
	tries       int
	settleDelay time.Duration
	timeout     time.Duration
	debug       bool
	jsonOut     bool
}

func parseGlobal(args []string, stderr io.Writer) (*globalFlags, map[string]bool, []string, error) {
	g := &globalFlags{}
	fs := flag.NewFlagSet("stepbusctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&g.configPath, "config", "", "Path to a TOML configuration file")
	fs.StringVar(&g.device, "device", "",
		"Controller bus (e.g. /dev/spidev0.0 or /dev/ttyUSB0). Use \"auto\" for detection.")
	fs.StringVar(&g.transport, "transport", "", "Controller transport: spi or uart")
	fs.StringVar(&g.logFile, "log-file", "", "Also write logs to this file (rotated)")
	fs.IntVar(&g.frameID, "frame-id", 0, "First frame id to send, 1-255 (0 uses the sequence)")
	fs.IntVar(&g.tries, "tries", 0, "Poll transfers per exchange (overrides the policy)")
	fs.DurationVar(&g.settleDelay, "settle-delay", 0, "Delay before every poll (overrides the policy)")
	fs.DurationVar(&g.timeout, "timeout", 0, "Overall deadline for the command (0 for none)")
	fs.BoolVar(&g.debug, "debug", false, "Enable debug output")
	fs.BoolVar(&g.jsonOut, "json", false, "Print results as JSON")
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if g.frameID < 0 || g.frameID > 255 {
		return nil, nil, nil, fmt.Errorf("%w: --frame-id %d out of range", errUsage, g.frameID)
	}
	if set["tries"] && g.tries < 1 {
		return nil, nil, nil, fmt.Errorf("%w: --tries must be at least 1", errUsage)
	}
	if g.settleDelay < 0 {
		return nil, nil, nil, fmt.Errorf("%w: --settle-delay must not be negative", errUsage)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, nil, nil, fmt.Errorf("%w: no command given", errUsage)
	}
	return g, set, fs.Args(), nil
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	_, _ = fmt.Fprintln(out, "Usage: stepbusctl [flags] <command> [command flags]")
	_, _ = fmt.Fprintln(out, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(out, "  %-14s %s\n", name, commands[name].summary)
	}
	_, _ = fmt.Fprintln(out, "\nFlags:")
	fs.PrintDefaults()
}

// run executes one command and returns the process exit code. A nil
// dialer opens the real hardware.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, d *dialer) int {
	g, set, rest, err := parseGlobal(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		_, _ = fmt.Fprintln(stderr, err)
		return exitUsage
	}

	name := rest[0]
	cmd, ok := commands[name]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n", name)
		return exitUsage
	}

	cfg, err := loadConfig(g, set)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return exitUsage
	}

	log, closeLog, err := newLogger(cfg.Log, g.debug, stderr)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return exitError
	}
	defer closeLog()
	stepbus.SetLogger(log)
	stepbus.SetDebugEnabled(g.debug)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if d == nil {
		d = hardwareDialer()
	}
	s := &session{
		cfg:     cfg,
		global:  g,
		log:     log,
		out:     NewOutput(stdout, g.jsonOut),
		dial:    d,
		stderr:  stderr,
		cmdName: name,
	}

	err = cmd.run(ctx, s, rest[1:])
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, stepbus.ErrInvalidField):
		_, _ = fmt.Fprintln(stderr, err)
		return exitUsage
	default:
		log.Debug("command failed", zap.String("command", name), zap.Error(err))
		s.out.Failure(stderr, name, err)
		return exitError
	}
}

// loadConfig reads the configuration file and applies flag overrides
func loadConfig(g *globalFlags, set map[string]bool) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if g.device != "" {
		cfg.Device.Path = g.device
	}
	if g.transport != "" {
		cfg.Device.Transport = g.transport
	}
	if g.logFile != "" {
		cfg.Log.File = g.logFile
	}
	if set["tries"] || set["settle-delay"] {
		for class, opts := range cfg.Policy {
			if set["tries"] {
				opts.Tries = g.tries
			}
			if set["settle-delay"] {
				opts.SettleDelay = g.settleDelay
			}
			cfg.Policy[class] = opts
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
