//go:build atmega32u4

package main

import (
	"machine"

	"timerfour/core"
)

// Leonardo / Pro Micro pin numbers of the Timer4 outputs
var timer4Pins = map[core.Pin]machine.Pin{
	core.PinA:  machine.PC7,
	core.PinAC: machine.PC6,
	core.PinB:  machine.PB6,
	core.PinBC: machine.PB5,
	core.PinD:  machine.PD7,
	core.PinDC: machine.PD6,
}

// avrPins implements core.PinDriver with the machine package
type avrPins struct{}

// ConfigureOutput implements core.PinDriver
func (avrPins) ConfigureOutput(pin core.Pin) {
	p, ok := timer4Pins[pin]
	if !ok {
		return
	}
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
}

// boardPin maps a machine pin back to its board number
func boardPin(p machine.Pin) (core.Pin, bool) {
	for board, mp := range timer4Pins {
		if mp == p {
			return board, true
		}
	}
	return 0, false
}
