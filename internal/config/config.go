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

// Package config loads the stepbusctl configuration file. Only keys that
// are present in the file override the built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stepbus/go-stepbus"
	"github.com/stepbus/go-stepbus/message"
)

// ErrInvalidConfig is returned for values that parse but make no sense
var ErrInvalidConfig = errors.New("invalid config")

// Transport names accepted in [device] transport
const (
	TransportSPI  = "spi"
	TransportUART = "uart"
)

// DeviceConfig describes how to reach the controller
type DeviceConfig struct {
	Path       string
	Transport  string
	SpeedHz    int64
	Baud       int
	Timeout    time.Duration
	Version    stepbus.ProtocolVersion
	LEDProfile message.LEDProfile
	PadByte    byte
	PollByte   byte
}

// DriverConfig describes the driver chip bus
type DriverConfig struct {
	Path        string
	Names       []string
	SpeedHz     int64
	SettleDelay time.Duration
	Tries       int
}

// LogConfig controls CLI logging
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Config is the resolved configuration
type Config struct {
	Policy stepbus.Policy
	Device DeviceConfig
	Log    LogConfig
	Driver DriverConfig
	Retry  stepbus.RetryConfig
	Resync stepbus.ResyncConfig
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Path:       "/dev/spidev0.0",
			Transport:  TransportSPI,
			SpeedHz:    1_000_000,
			Baud:       921600,
			Timeout:    100 * time.Millisecond,
			Version:    stepbus.ProtocolV2,
			LEDProfile: message.ProfileModeFrequency,
			PadByte:    0x00,
			PollByte:   0xFF,
		},
		Driver: DriverConfig{
			Path:        "/dev/spidev0.1",
			SpeedHz:     2_000_000,
			Tries:       3,
			SettleDelay: time.Millisecond,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Policy: stepbus.DefaultPolicy(),
		Retry:  *stepbus.DefaultRetryConfig(),
		Resync: stepbus.DefaultResyncConfig(),
	}
}

type budgetFile struct {
	SettleDelay string `toml:"settle_delay"`
	Tries       int    `toml:"tries"`
}

type fileConfig struct {
	Device struct {
		Path       string `toml:"path"`
		Transport  string `toml:"transport"`
		Timeout    string `toml:"timeout"`
		LEDProfile string `toml:"led_profile"`
		SpeedHz    int64  `toml:"speed_hz"`
		Baud       int    `toml:"baud"`
		Version    int    `toml:"protocol_version"`
		PadByte    int    `toml:"pad_byte"`
		PollByte   int    `toml:"poll_byte"`
	} `toml:"device"`
	Policy map[string]budgetFile `toml:"policy"`
	Retry  struct {
		InitialBackoff string  `toml:"initial_backoff"`
		MaxBackoff     string  `toml:"max_backoff"`
		Timeout        string  `toml:"timeout"`
		MaxAttempts    int     `toml:"max_attempts"`
		Multiplier     float64 `toml:"multiplier"`
		Jitter         float64 `toml:"jitter"`
	} `toml:"retry"`
	Resync struct {
		Delay       string `toml:"delay"`
		ChunkLength int    `toml:"chunk_length"`
		Tries       int    `toml:"tries"`
	} `toml:"resync"`
	Driver struct {
		Path        string   `toml:"path"`
		Names       []string `toml:"names"`
		SettleDelay string   `toml:"settle_delay"`
		SpeedHz     int64    `toml:"speed_hz"`
		Tries       int      `toml:"tries"`
	} `toml:"driver"`
	Log struct {
		Level      string `toml:"level"`
		Format     string `toml:"format"`
		File       string `toml:"file"`
		MaxSizeMB  int    `toml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups"`
		MaxAgeDays int    `toml:"max_age_days"`
	} `toml:"log"`
}

// Load reads path and overlays it on Default. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return resolve(meta, &raw)
}

// Parse is Load for an in-memory document
func Parse(data string) (*Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return resolve(meta, &raw)
}

func resolve(meta toml.MetaData, raw *fileConfig) (*Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys %s", ErrInvalidConfig, strings.Join(keys, ", "))
	}

	cfg := Default()
	steps := []func(toml.MetaData, *fileConfig, *Config) error{
		applyDevice, applyPolicy, applyRetry, applyResync, applyDriver, applyLog,
	}
	for _, apply := range steps {
		if err := apply(meta, raw, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func duration(key, v string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func byteValue(key string, v int) (byte, error) {
	if v < 0 || v > 0xFF {
		return 0, fmt.Errorf("%w: %s=%d is not a byte", ErrInvalidConfig, key, v)
	}
	return byte(v), nil
}

func applyDevice(meta toml.MetaData, raw *fileConfig, cfg *Config) error {
	d := &cfg.Device
	var err error

	if meta.IsDefined("device", "path") {
		d.Path = strings.TrimSpace(raw.Device.Path)
	}
	if meta.IsDefined("device", "transport") {
		d.Transport = strings.ToLower(strings.TrimSpace(raw.Device.Transport))
	}
	if meta.IsDefined("device", "speed_hz") {
		d.SpeedHz = raw.Device.SpeedHz
	}
	if meta.IsDefined("device", "baud") {
		d.Baud = raw.Device.Baud
	}
	if meta.IsDefined("device", "timeout") {
		if d.Timeout, err = duration("device.timeout", raw.Device.Timeout); err != nil {
			return err
		}
	}
	if meta.IsDefined("device", "protocol_version") {
		d.Version = stepbus.ProtocolVersion(raw.Device.Version)
	}
	if meta.IsDefined("device", "led_profile") {
		if d.LEDProfile, err = message.ParseLEDProfile(raw.Device.LEDProfile); err != nil {
			return fmt.Errorf("parse device.led_profile: %w", err)
		}
	}
	if meta.IsDefined("device", "pad_byte") {
		if d.PadByte, err = byteValue("device.pad_byte", raw.Device.PadByte); err != nil {
			return err
		}
	}
	if meta.IsDefined("device", "poll_byte") {
		if d.PollByte, err = byteValue("device.poll_byte", raw.Device.PollByte); err != nil {
			return err
		}
	}
	return nil
}

func applyPolicy(meta toml.MetaData, raw *fileConfig, cfg *Config) error {
	for name, b := range raw.Policy {
		class := stepbus.OperationClass(name)
		switch class {
		case stepbus.ClassQuery, stepbus.ClassCommand, stepbus.ClassQueue, stepbus.ClassMotion:
		default:
			return fmt.Errorf("%w: unknown operation class %q", ErrInvalidConfig, name)
		}

		opts := cfg.Policy[class]
		if meta.IsDefined("policy", name, "tries") {
			opts.Tries = b.Tries
		}
		if meta.IsDefined("policy", name, "settle_delay") {
			d, err := duration("policy."+name+".settle_delay", b.SettleDelay)
			if err != nil {
				return err
			}
			opts.SettleDelay = d
		}
		cfg.Policy[class] = opts
	}
	return nil
}

func applyRetry(meta toml.MetaData, raw *fileConfig, cfg *Config) error {
	r := &cfg.Retry
	var err error

	if meta.IsDefined("retry", "max_attempts") {
		r.MaxAttempts = raw.Retry.MaxAttempts
	}
	if meta.IsDefined("retry", "initial_backoff") {
		if r.InitialBackoff, err = duration("retry.initial_backoff", raw.Retry.InitialBackoff); err != nil {
			return err
		}
	}
	if meta.IsDefined("retry", "max_backoff") {
		if r.MaxBackoff, err = duration("retry.max_backoff", raw.Retry.MaxBackoff); err != nil {
			return err
		}
	}
	if meta.IsDefined("retry", "timeout") {
		if r.RetryTimeout, err = duration("retry.timeout", raw.Retry.Timeout); err != nil {
			return err
		}
	}
	if meta.IsDefined("retry", "multiplier") {
		r.BackoffMultiplier = raw.Retry.Multiplier
	}
	if meta.IsDefined("retry", "jitter") {
		r.Jitter = raw.Retry.Jitter
	}
	return nil
}

func applyResync(meta toml.MetaData, raw *fileConfig, cfg *Config) error {
	if meta.IsDefined("resync", "tries") {
		cfg.Resync.Tries = raw.Resync.Tries
	}
	if meta.IsDefined("resync", "chunk_length") {
		cfg.Resync.ChunkLength = raw.Resync.ChunkLength
	}
	if meta.IsDefined("resync", "delay") {
		d, err := duration("resync.delay", raw.Resync.Delay)
		if err != nil {
			return err
		}
		cfg.Resync.Delay = d
	}
	return nil
}

func applyDriver(meta toml.MetaData, raw *fileConfig, cfg *Config) error {
	d := &cfg.Driver
	if meta.IsDefined("driver", "path") {
		d.Path = strings.TrimSpace(raw.Driver.Path)
	}
	if meta.IsDefined("driver", "names") {
		d.Names = d.Names[:0]
		for _, n := range raw.Driver.Names {
			if n = strings.TrimSpace(n); n != "" {
				d.Names = append(d.Names, n)
			}
		}
	}
	if meta.IsDefined("driver", "speed_hz") {
		d.SpeedHz = raw.Driver.SpeedHz
	}
	if meta.IsDefined("driver", "tries") {
		d.Tries = raw.Driver.Tries
	}
	if meta.IsDefined("driver", "settle_delay") {
		s, err := duration("driver.settle_delay", raw.Driver.SettleDelay)
		if err != nil {
			return err
		}
		d.SettleDelay = s
	}
	return nil
}

func applyLog(meta toml.MetaData, raw *fileConfig, cfg *Config) error {
	l := &cfg.Log
	if meta.IsDefined("log", "level") {
		l.Level = strings.ToLower(strings.TrimSpace(raw.Log.Level))
	}
	if meta.IsDefined("log", "format") {
		l.Format = strings.ToLower(strings.TrimSpace(raw.Log.Format))
	}
	if meta.IsDefined("log", "file") {
		l.File = strings.TrimSpace(raw.Log.File)
	}
	if meta.IsDefined("log", "max_size_mb") {
		l.MaxSizeMB = raw.Log.MaxSizeMB
	}
	if meta.IsDefined("log", "max_backups") {
		l.MaxBackups = raw.Log.MaxBackups
	}
	if meta.IsDefined("log", "max_age_days") {
		l.MaxAgeDays = raw.Log.MaxAgeDays
	}
	return nil
}

// Validate checks values that cannot be caught while parsing
func (c *Config) Validate() error {
	switch c.Device.Transport {
	case TransportSPI, TransportUART:
	default:
		return fmt.Errorf("%w: device.transport %q", ErrInvalidConfig, c.Device.Transport)
	}
	if c.Device.Version != stepbus.ProtocolV1 && c.Device.Version != stepbus.ProtocolV2 {
		return fmt.Errorf("%w: device.protocol_version %d", ErrInvalidConfig, c.Device.Version)
	}
	if c.Device.Path == "" {
		return fmt.Errorf("%w: device.path is empty", ErrInvalidConfig)
	}
	if c.Device.SpeedHz <= 0 || c.Driver.SpeedHz <= 0 {
		return fmt.Errorf("%w: speed_hz must be positive", ErrInvalidConfig)
	}
	if c.Driver.Tries < 1 {
		return fmt.Errorf("%w: driver.tries %d", ErrInvalidConfig, c.Driver.Tries)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// DeviceOptions turns the configuration into device options
func (c *Config) DeviceOptions() []stepbus.Option {
	retry := c.Retry
	return []stepbus.Option{
		stepbus.WithTimeout(c.Device.Timeout),
		stepbus.WithProtocolVersion(c.Device.Version),
		stepbus.WithFillBytes(c.Device.PadByte, c.Device.PollByte),
		stepbus.WithLEDProfile(c.Device.LEDProfile),
		stepbus.WithPolicy(c.Policy),
		stepbus.WithRetryConfig(&retry),
		stepbus.WithResyncConfig(c.resyncConfig()),
	}
}

func (c *Config) resyncConfig() stepbus.ResyncConfig {
	r := c.Resync
	r.PollByte = c.Device.PollByte
	return r
}
