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

import "fmt"

// Register is a 7-bit driver register address
type Register byte

// Register map of the supported driver family
const (
	RegGCONF        Register = 0x00
	RegGSTAT        Register = 0x01
	RegIFCNT        Register = 0x02
	RegSLAVECONF    Register = 0x03
	RegIOIN         Register = 0x04
	RegOUTPUT       Register = 0x05
	RegXCOMPARE     Register = 0x06
	RegDRVCONF      Register = 0x0A
	RegGLOBALSCALER Register = 0x0B
	RegIHOLDIRUN    Register = 0x10
	RegTPOWERDOWN   Register = 0x11
	RegTSTEP        Register = 0x12
	RegTPWMTHRS     Register = 0x13
	RegTCOOLTHRS    Register = 0x14
	RegTHIGH        Register = 0x15
	RegRAMPMODE     Register = 0x20
	RegXACTUAL      Register = 0x21
	RegVACTUAL      Register = 0x22
	RegVSTART       Register = 0x23
	RegA1           Register = 0x24
	RegV1           Register = 0x25
	RegAMAX         Register = 0x26
	RegVMAX         Register = 0x27
	RegDMAX         Register = 0x28
	RegD1           Register = 0x2A
	RegVSTOP        Register = 0x2B
	RegTZEROWAIT    Register = 0x2C
	RegXTARGET      Register = 0x2D
	RegSWMODE       Register = 0x34
	RegRAMPSTAT     Register = 0x35
	RegXLATCH       Register = 0x36
	RegCHOPCONF     Register = 0x6C
	RegCOOLCONF     Register = 0x6D
	RegDRVSTATUS    Register = 0x6F
	RegPWMCONF      Register = 0x70
	RegPWMSCALE     Register = 0x71
	RegSG4THRS      Register = 0x74
	RegSG4RESULT    Register = 0x75
)

// MaxRegister is the highest addressable register
const MaxRegister Register = 0x7F

var registerNames = map[Register]string{
	RegGCONF:        "GCONF",
	RegGSTAT:        "GSTAT",
	RegIFCNT:        "IFCNT",
	RegSLAVECONF:    "SLAVECONF",
	RegIOIN:         "IOIN",
	RegOUTPUT:       "OUTPUT",
	RegXCOMPARE:     "X_COMPARE",
	RegDRVCONF:      "DRV_CONF",
	RegGLOBALSCALER: "GLOBAL_SCALER",
	RegIHOLDIRUN:    "IHOLD_IRUN",
	RegTPOWERDOWN:   "TPOWERDOWN",
	RegTSTEP:        "TSTEP",
	RegTPWMTHRS:     "TPWMTHRS",
	RegTCOOLTHRS:    "TCOOLTHRS",
	RegTHIGH:        "THIGH",
	RegRAMPMODE:     "RAMPMODE",
	RegXACTUAL:      "XACTUAL",
	RegVACTUAL:      "VACTUAL",
	RegVSTART:       "VSTART",
	RegA1:           "A1",
	RegV1:           "V1",
	RegAMAX:         "AMAX",
	RegVMAX:         "VMAX",
	RegDMAX:         "DMAX",
	RegD1:           "D1",
	RegVSTOP:        "VSTOP",
	RegTZEROWAIT:    "TZEROWAIT",
	RegXTARGET:      "XTARGET",
	RegSWMODE:       "SW_MODE",
	RegRAMPSTAT:     "RAMP_STAT",
	RegXLATCH:       "XLATCH",
	RegCHOPCONF:     "CHOPCONF",
	RegCOOLCONF:     "COOLCONF",
	RegDRVSTATUS:    "DRV_STATUS",
	RegPWMCONF:      "PWMCONF",
	RegPWMSCALE:     "PWM_SCALE",
	RegSG4THRS:      "SG4_THRS",
	RegSG4RESULT:    "SG4_RESULT",
}

// readOnly registers cannot be verified after a write
var readOnly = map[Register]bool{
	RegIFCNT:     true,
	RegIOIN:      true,
	RegTSTEP:     true,
	RegVACTUAL:   true,
	RegXLATCH:    true,
	RegDRVSTATUS: true,
	RegPWMSCALE:  true,
	RegSG4RESULT: true,
}

// String returns the register name, or its address if unnamed
func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", byte(r))
}

// ReadOnly reports whether writes to r are ignored by the chip
func (r Register) ReadOnly() bool {
	return readOnly[r]
}

// Valid reports whether r fits in 7 bits
func (r Register) Valid() bool {
	return r <= MaxRegister
}

// LookupRegister finds a register by name, case sensitive
func LookupRegister(name string) (Register, bool) {
	for r, n := range registerNames {
		if n == name {
			return r, true
		}
	}
	return 0, false
}

// DRV_STATUS bits
const (
	DrvStatusSGResult   uint32 = 0x3FF
	DrvStatusS2VSA      uint32 = 1 << 12
	DrvStatusS2VSB      uint32 = 1 << 13
	DrvStatusStealth    uint32 = 1 << 14
	DrvStatusFSActive   uint32 = 1 << 15
	DrvStatusCSActual   uint32 = 0x1F << 16
	DrvStatusStallGuard uint32 = 1 << 24
	DrvStatusOT         uint32 = 1 << 25
	DrvStatusOTPW       uint32 = 1 << 26
	DrvStatusS2GA       uint32 = 1 << 27
	DrvStatusS2GB       uint32 = 1 << 28
	DrvStatusOLA        uint32 = 1 << 29
	DrvStatusOLB        uint32 = 1 << 30
	DrvStatusStandstill uint32 = 1 << 31
)

// RAMPMODE values
const (
	RampModePosition uint32 = iota
	RampModeVelocityPositive
	RampModeVelocityNegative
	RampModeHold
)
