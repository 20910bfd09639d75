//go:build atmega32u4

package main

import (
	"device/avr"
	"machine"
	"runtime/interrupt"
	"time"

	"timerfour/core"
)

// debugLog routes core debug messages to the console. It shares the port
// with the command link, so leave it off unless debugging without a host.
const debugLog = false

var (
	timer4 = core.NewTimer4(avrRegisters{}, avrPins{}, core.ATmega32U4, core.DefaultClock)
	cmds   = core.NewTimerCommands(timer4)
)

func init() {
	interrupt.New(avr.IRQ_TIMER4_OVF, func(interrupt.Interrupt) {
		timer4.HandleOverflow()
	})
}

// serialPort adapts machine.Serial to io.ReadWriter
type serialPort struct {
	s machine.Serialer
}

func (p serialPort) Read(b []byte) (int, error) {
	n := 0
	for n < len(b) && p.s.Buffered() > 0 {
		c, err := p.s.ReadByte()
		if err != nil {
			return n, err
		}
		b[n] = c
		n++
	}
	return n, nil
}

func (p serialPort) Write(b []byte) (int, error) {
	return p.s.Write(b)
}

func main() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: 115200})

	if debugLog {
		core.SetDebugWriter(func(s string) { println(s) })
		core.SetDebugEnabled(true)
	}

	timer4.Initialize(core.DefaultPeriodUS)
	registerServoCommand(cmds)

	port := serialPort{s: machine.Serial}
	for {
		// Serve only returns on a port error; start over
		cmds.Serve(port, port, func() {
			time.Sleep(time.Millisecond)
		})
	}
}
