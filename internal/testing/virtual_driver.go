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

package testing

import (
	"encoding/binary"
	"errors"
	"sync"
)

const (
	driverFrameLength = 5
	driverRegisters   = 128
	driverReadBit     = 0x80
)

// VirtualDriverChip simulates a stepper driver on the 5-byte pipelined
// register protocol. Each echo carries the status byte and the value
// latched by the previous transaction.
type VirtualDriverChip struct {
	frozen  map[byte]bool
	log     [][driverFrameLength]byte
	regs    [driverRegisters]uint32
	mu      sync.Mutex
	latched uint32

	floating   int
	faultAfter int
	writes     int
	status     byte
	faultBits  byte
}

// NewVirtualDriverChip creates a chip with every register zero
func NewVirtualDriverChip() *VirtualDriverChip {
	return &VirtualDriverChip{frozen: map[byte]bool{}, faultAfter: -1}
}

// Tx implements the full-duplex transfer
func (c *VirtualDriverChip) Tx(w, r []byte) error {
	if len(w) != driverFrameLength || len(r) != driverFrameLength {
		return errors.New("virtual driver: transactions are 5 bytes")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var entry [driverFrameLength]byte
	copy(entry[:], w)
	c.log = append(c.log, entry)

	if c.floating > 0 {
		c.floating--
		for i := range r {
			r[i] = 0xFF
		}
		return nil
	}

	r[0] = c.status
	binary.BigEndian.PutUint32(r[1:], c.latched)

	addr := w[0] &^ driverReadBit
	if w[0]&driverReadBit != 0 {
		c.latched = c.regs[addr]
		return nil
	}

	value := binary.BigEndian.Uint32(w[1:])
	if !c.frozen[addr] {
		c.regs[addr] = value
	}
	c.latched = value
	c.writes++
	if c.faultAfter >= 0 && c.writes >= c.faultAfter {
		c.status |= c.faultBits
	}
	return nil
}

// SetRegister sets a register directly
func (c *VirtualDriverChip) SetRegister(addr byte, value uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[addr&^driverReadBit] = value
}

// Register returns a register value
func (c *VirtualDriverChip) Register(addr byte) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[addr&^driverReadBit]
}

// SetStatus sets the status byte echoed by every transaction
func (c *VirtualDriverChip) SetStatus(s byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}

// FaultAfterWrites raises bits in the status once n writes have landed
func (c *VirtualDriverChip) FaultAfterWrites(n int, bits byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faultAfter = n
	c.faultBits = bits
}

// Float makes the next n transactions echo all 0xFF, as if no chip
// were driving MISO
func (c *VirtualDriverChip) Float(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.floating = n
}

// Freeze makes writes to addr have no effect
func (c *VirtualDriverChip) Freeze(addr byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen[addr&^driverReadBit] = true
}

// Transactions returns every frame shifted into the chip
func (c *VirtualDriverChip) Transactions() [][driverFrameLength]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][driverFrameLength]byte(nil), c.log...)
}
