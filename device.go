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

package stepbus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/stepbus/go-stepbus/detection"
	"github.com/stepbus/go-stepbus/message"
	"go.uber.org/zap"
)

// Device errors
var (
	ErrRejected         = errors.New("request rejected by controller")
	ErrUnexpectedResult = errors.New("unexpected response type")
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// RetryConfig configures the busy cooldown
	RetryConfig *RetryConfig
	// Policy holds the exchange budget per operation class
	Policy Policy
	// Resync configures the boot token search
	Resync ResyncConfig
	// Timeout is passed to transports that have a per-transfer timeout
	Timeout    time.Duration
	Version    ProtocolVersion
	LEDProfile message.LEDProfile
	PadByte    byte
	PollByte   byte
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	ec := DefaultEngineConfig()
	return &DeviceConfig{
		RetryConfig: DefaultRetryConfig(),
		Policy:      DefaultPolicy(),
		Resync:      DefaultResyncConfig(),
		Timeout:     100 * time.Millisecond,
		Version:     ec.Version,
		LEDProfile:  message.ProfileModeFrequency,
		PadByte:     ec.PadByte,
		PollByte:    ec.PollByte,
	}
}

// Device is a motion controller reached over one Transport. It owns the
// transport and closes it on Close.
//
// Thread Safety: Device methods may be called from several goroutines; the
// engine lets one exchange onto the bus at a time. Callers that need a
// request and its follow-up to be adjacent on the bus must still serialise
// them themselves.
type Device struct {
	transport Transport
	engine    *Engine
	config    *DeviceConfig
	log       *zap.Logger
	metrics   *Metrics
	seq       message.Sequence
	closed    atomic.Bool
}

// New creates a new device on transport
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	config := DefaultDeviceConfig()
	config.Policy = policyForTransport(transport)

	device := &Device{
		transport: transport,
		config:    config,
		log:       Logger(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	if err := device.config.Policy.Validate(); err != nil {
		return nil, err
	}

	device.engine = NewEngine(transport, &EngineConfig{
		Logger:   device.log,
		Metrics:  device.metrics,
		Version:  device.config.Version,
		PadByte:  device.config.PadByte,
		PollByte: device.config.PollByte,
	})

	return device, nil
}

// TransportFactory is a function type for creating transports
type TransportFactory func(path string) (Transport, error)

// TransportFromDeviceFactory is a function type for creating transports from detected devices
type TransportFromDeviceFactory func(device detection.DeviceInfo) (Transport, error)

// ConnectOption represents a functional option for ConnectDevice
type ConnectOption func(*connectConfig) error

// connectConfig holds configuration options for device connection
type connectConfig struct {
	transportFactory       TransportFactory
	transportDeviceFactory TransportFromDeviceFactory
	deviceOptions          []Option
	timeout                time.Duration
	autoDetect             bool
	resync                 bool
}

// WithAutoDetection enables automatic device detection instead of using a specific path
func WithAutoDetection() ConnectOption {
	return func(c *connectConfig) error {
		c.autoDetect = true
		return nil
	}
}

// WithResyncOnConnect runs a token search before the first hello
func WithResyncOnConnect() ConnectOption {
	return func(c *connectConfig) error {
		c.resync = true
		return nil
	}
}

// WithDeviceOptions adds device-level options
func WithDeviceOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceOptions = append(c.deviceOptions, opts...)
		return nil
	}
}

// WithConnectTimeout bounds the connect handshake
func WithConnectTimeout(timeout time.Duration) ConnectOption {
	return func(c *connectConfig) error {
		c.timeout = timeout
		return nil
	}
}

// WithTransportFactory sets the transport factory function
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportFactory = factory
		return nil
	}
}

// WithTransportFromDeviceFactory sets the transport from device factory function
func WithTransportFromDeviceFactory(factory TransportFromDeviceFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportDeviceFactory = factory
		return nil
	}
}

func applyConnectOptions(opts []ConnectOption) (*connectConfig, error) {
	config := &connectConfig{
		timeout: 5 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}

	return config, nil
}

// ConnectDevice opens a transport for path (or the first detected bus),
// creates the device and checks that the controller answers hello.
//
// Example usage:
//
//	device, err := stepbus.ConnectDevice(ctx, "/dev/spidev0.0",
//		stepbus.WithTransportFactory(openSPI))
//
//	device, err := stepbus.ConnectDevice(ctx, "", stepbus.WithAutoDetection(),
//		stepbus.WithTransportFromDeviceFactory(openDetected))
func ConnectDevice(ctx context.Context, path string, opts ...ConnectOption) (*Device, error) {
	config, err := applyConnectOptions(opts)
	if err != nil {
		return nil, err
	}

	transport, err := createTransport(ctx, path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	device, err := setupDevice(ctx, transport, config)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	return device, nil
}

func createTransport(ctx context.Context, path string, config *connectConfig) (Transport, error) {
	if config.autoDetect || path == "" {
		return createAutoDetectedTransport(ctx, config.transportDeviceFactory)
	}
	return createManualTransport(path, config.transportFactory)
}

func setupDevice(ctx context.Context, transport Transport, config *connectConfig) (*Device, error) {
	device, err := New(transport, config.deviceOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	if config.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.timeout)
		defer cancel()
	}

	if config.resync {
		if _, err := device.Resync(ctx); err != nil {
			return nil, fmt.Errorf("failed to resynchronise: %w", err)
		}
	}

	if err := device.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize device: %w", err)
	}
	return device, nil
}

// createManualTransport handles creation of transport for a specific path
func createManualTransport(path string, factory TransportFactory) (Transport, error) {
	if factory == nil {
		return nil, errors.New("transport factory not provided")
	}

	transport, err := factory(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport for path %s: %w", path, err)
	}

	return transport, nil
}

// createAutoDetectedTransport handles auto-detection of devices
func createAutoDetectedTransport(ctx context.Context, factory TransportFromDeviceFactory) (Transport, error) {
	opts := detection.DefaultOptions()
	opts.Mode = detection.Safe

	devices, err := detection.DetectAllContext(ctx, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to detect devices: %w", err)
	}

	if len(devices) == 0 {
		return nil, ErrDeviceNotFound
	}

	// Use the first detected device
	if factory == nil {
		return nil, errors.New("transport device factory not provided")
	}
	return factory(devices[0])
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Engine returns the exchange engine
func (d *Device) Engine() *Engine {
	return d.engine
}

// Config returns the device configuration
func (d *Device) Config() DeviceConfig {
	return *d.config
}

// NextFrameID advances the device's frame id sequence
func (d *Device) NextFrameID() message.FrameID {
	return d.seq.Next()
}

// Init checks that the controller is in step by exchanging hello
func (d *Device) Init(ctx context.Context) error {
	if d.config.Timeout > 0 {
		if err := d.transport.SetTimeout(d.config.Timeout); err != nil {
			return fmt.Errorf("failed to set timeout on transport: %w", err)
		}
	}
	return d.Hello(ctx)
}

// SetRetryConfig updates the busy cooldown configuration
func (d *Device) SetRetryConfig(config *RetryConfig) {
	d.config.RetryConfig = config
}

// SetPolicy replaces the exchange budgets
func (d *Device) SetPolicy(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	d.config.Policy = p.Clone()
	return nil
}

// Exchange sends req with the budget of its operation class and retries
// busy faults with the configured cooldown. Other errors, transport errors
// included, are returned at once since the request may already be queued.
func (d *Device) Exchange(ctx context.Context, req message.Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidParameter)
	}
	return d.ExchangeWith(ctx, req, d.config.Policy.Options(ClassOf(req.Kind())))
}

// ExchangeWith is Exchange with an explicit budget
func (d *Device) ExchangeWith(ctx context.Context, req message.Request, opts ExchangeOptions) (*Result, error) {
	if d.closed.Load() {
		return nil, ErrTransportClosed
	}

	var (
		res     *Result
		attempt int
	)
	err := RetryIf(ctx, d.config.RetryConfig, isBusy, func() error {
		attempt++
		if attempt > 1 {
			d.metrics.observeBusyRetry(kindOf(req))
			d.log.Debug("retrying after busy cooldown",
				zap.String("kind", kindOf(req)),
				zap.Int("attempt", attempt),
			)
		}
		var err error
		res, err = d.engine.Exchange(ctx, req, opts)
		return err
	})
	return res, err
}

// Resync searches for the configured token, typically after a controller reset
func (d *Device) Resync(ctx context.Context) (*ResyncResult, error) {
	if d.closed.Load() {
		return nil, ErrTransportClosed
	}
	return d.engine.Resync(ctx, d.config.Resync)
}

// Close closes the transport. It is safe to call more than once.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}
