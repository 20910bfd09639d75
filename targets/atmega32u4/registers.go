//go:build atmega32u4

package main

import (
	"device/avr"
	"runtime/volatile"

	"timerfour/core"
)

// avrRegisters maps core registers onto the ATmega32U4 I/O space
type avrRegisters struct{}

var registerMap = [...]*volatile.Register8{
	core.TCCR4A: avr.TCCR4A,
	core.TCCR4B: avr.TCCR4B,
	core.TCCR4C: avr.TCCR4C,
	core.TCCR4D: avr.TCCR4D,
	core.TCCR4E: avr.TCCR4E,
	core.TC4H:   avr.TC4H,
	core.TCNT4:  avr.TCNT4,
	core.OCR4A:  avr.OCR4A,
	core.OCR4B:  avr.OCR4B,
	core.OCR4C:  avr.OCR4C,
	core.OCR4D:  avr.OCR4D,
	core.TIMSK4: avr.TIMSK4,
	core.PLLFRQ: avr.PLLFRQ,
}

// Read implements core.Registers
func (avrRegisters) Read(r core.Register) uint8 {
	if int(r) >= len(registerMap) {
		return 0
	}
	return registerMap[r].Get()
}

// Write implements core.Registers
func (avrRegisters) Write(r core.Register, value uint8) {
	if int(r) >= len(registerMap) {
		return
	}
	registerMap[r].Set(value)
}
