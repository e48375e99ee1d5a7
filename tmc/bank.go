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

package tmc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownDriver is returned for a name that is not in the bank
var ErrUnknownDriver = errors.New("unknown driver")

// Bank holds the drivers of a machine by name, one per chip select
type Bank struct {
	drivers map[string]*Driver
	mu      sync.RWMutex
}

// NewBank creates an empty bank
func NewBank() *Bank {
	return &Bank{drivers: make(map[string]*Driver)}
}

// Add registers d under name, replacing any previous driver
func (b *Bank) Add(name string, d *Driver) error {
	if name == "" || d == nil {
		return fmt.Errorf("%w: driver %q", ErrUnknownDriver, name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drivers[name] = d
	return nil
}

// Driver returns the driver called name
func (b *Bank) Driver(name string) (*Driver, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return d, nil
}

// Names returns the driver names sorted
func (b *Bank) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.drivers))
	for n := range b.drivers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Configure applies the same write sequence to every driver, in name
// order. It stops at the first driver that faults.
func (b *Bank) Configure(ctx context.Context, writes []RegisterWrite) error {
	for _, name := range b.Names() {
		d, err := b.Driver(name)
		if err != nil {
			return err
		}
		if _, err := d.WriteSequence(ctx, writes); err != nil {
			return fmt.Errorf("driver %s: %w", name, err)
		}
	}
	return nil
}

// CheckAll reads the status of every driver. Drivers without faults are
// absent from the returned map.
func (b *Bank) CheckAll(ctx context.Context) map[string]error {
	faults := make(map[string]error)
	for _, name := range b.Names() {
		d, err := b.Driver(name)
		if err != nil {
			continue
		}
		if _, err := d.Status(ctx); err != nil {
			faults[name] = err
		}
	}
	return faults
}
