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
	"testing"

	testutil "github.com/stepbus/go-stepbus/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ok", Status(0).String())
	assert.Equal(t, "stall|standstill", (StatusStall | StatusStandstill).String())
	assert.Equal(t, "reset|undervoltage", (StatusReset | StatusUndervoltage).String())
	assert.True(t, (StatusStall | StatusOpenLoad).Has(StatusStall))
	assert.False(t, StatusStall.Has(StatusStall|StatusOpenLoad))
	assert.Equal(t, StatusStall|StatusOpenLoad, (StatusStall | StatusOpenLoad | StatusStandstill).Faults())
}

func TestStatusFaultMatchesEverySetBit(t *testing.T) {
	t.Parallel()

	err := check("write", RegVMAX, StatusStall|StatusOvertemperature)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStall)
	assert.ErrorIs(t, err, ErrOvertemperature)
	assert.NotErrorIs(t, err, ErrOpenLoad)
	assert.Contains(t, err.Error(), "write VMAX")

	assert.NoError(t, check("read", RegGSTAT, StatusStandstill|StatusReset))
}

func TestRegisterNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "DRV_STATUS", RegDRVSTATUS.String())
	assert.Equal(t, "0x7E", Register(0x7E).String())
	assert.True(t, RegDRVSTATUS.ReadOnly())
	assert.False(t, RegVMAX.ReadOnly())

	r, ok := LookupRegister("CHOPCONF")
	assert.True(t, ok)
	assert.Equal(t, RegCHOPCONF, r)
	_, ok = LookupRegister("NOPE")
	assert.False(t, ok)
}

func TestBank(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	bank := NewBank()
	chips := map[string]*testutil.VirtualDriverChip{}
	for _, name := range []string{"z", "x", "y"} {
		chip := testutil.NewVirtualDriverChip()
		chips[name] = chip
		require.NoError(t, bank.Add(name, New(chip, WithName(name), WithSettleDelay(0))))
	}
	assert.Error(t, bank.Add("", nil))
	assert.Equal(t, []string{"x", "y", "z"}, bank.Names())

	_, err := bank.Driver("e")
	assert.ErrorIs(t, err, ErrUnknownDriver)

	writes := []RegisterWrite{{Register: RegIHOLDIRUN, Value: 0x00071F0A}, {Register: RegVMAX, Value: 1000}}
	require.NoError(t, bank.Configure(ctx, writes))
	for _, chip := range chips {
		assert.Equal(t, uint32(1000), chip.Register(byte(RegVMAX)))
	}

	chips["y"].SetStatus(byte(StatusOpenLoad))
	faults := bank.CheckAll(ctx)
	require.Len(t, faults, 1)
	assert.ErrorIs(t, faults["y"], ErrOpenLoad)

	err = bank.Configure(ctx, writes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driver y")
	var sf *StatusFault
	assert.True(t, errors.As(err, &sf))
}
