//go:build atmega32u4

package main

import (
	"errors"
	"machine"

	"tinygo.org/x/drivers/servo"

	"timerfour/core"
)

var errNotTimer4Pin = errors.New("pin is not driven by Timer4")

// timerPWM exposes Timer4 as a servo.PWM. All channels share one period,
// so driving a servo sets the whole timer to 20ms.
type timerPWM struct {
	timer *core.Timer4
}

// Configure sets the timer period from the requested period in nanoseconds
func (p timerPWM) Configure(config machine.PWMConfig) error {
	if config.Period > 0 {
		p.timer.SetPeriod(uint32(config.Period / 1000))
	}
	return nil
}

// Channel enables PWM output on a pin and returns its channel handle,
// which is the board pin number
func (p timerPWM) Channel(pin machine.Pin) (uint8, error) {
	board, ok := boardPin(pin)
	if !ok {
		return 0, errNotTimer4Pin
	}
	p.timer.EnablePwm(board, 0)
	return uint8(board), nil
}

// Top returns the current counter top
func (p timerPWM) Top() uint32 {
	return uint32(p.timer.Top())
}

// Set writes a compare value in ticks of the current top
func (p timerPWM) Set(channel uint8, value uint32) {
	if value > 0xFFFF {
		value = 0xFFFF
	}
	p.timer.SetCompare(core.Pin(channel), uint16(value))
}

// servos caches servo handles per board pin
var servos = map[core.Pin]servo.Servo{}

// registerServoCommand adds set_servo to the firmware's command set
func registerServoCommand(cmds *core.TimerCommands) {
	pwm := timerPWM{timer: cmds.Timer()}
	cmds.Registry().RegisterByID(core.CmdSetServo, func(a []uint32) error {
		board, ok := core.WirePin(a[0])
		if !ok {
			return errNotTimer4Pin
		}
		s, cached := servos[board]
		if !cached {
			mp, found := timer4Pins[board]
			if !found {
				return errNotTimer4Pin
			}
			var err error
			if s, err = servo.New(pwm, mp); err != nil {
				return err
			}
			servos[board] = s
		}
		us := a[1]
		if us > 0x7FFF {
			us = 0x7FFF
		}
		s.SetMicroseconds(int16(us))
		return nil
	})
}
