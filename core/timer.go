// Timer4 configuration and control
// Drives the 10-bit high-speed Timer/Counter4 in phase and frequency correct
// mode for periodic interrupts and PWM on up to six pins.
package core

// DefaultPeriodUS is the period Initialize uses when given 0.
const DefaultPeriodUS = 1000000

// DutyMax is the top of the abstract duty scale, independent of the
// counter resolution.
const DutyMax = 1023

// dutyShift converts from the 0..1023 duty scale.
const dutyShift = 10

// Timer4 owns the Timer/Counter4 configuration: the selected clock-select
// code, the computed top and the overflow callback. There is exactly one
// such timer on the chip; the struct exists so the registers can be swapped
// for a RegisterFile off-target.
//
// No method blocks. The overflow callback runs in interrupt context and must
// not block or call back into the configuration methods.
type Timer4 struct {
	regs    Registers
	pins    PinDriver
	variant Variant
	clock   ClockTopology

	clockSelect uint8
	top         uint16
	source      ClockSource
	isr         func()
}

// NewTimer4 creates the timer driver. A nil pin driver configures nothing;
// a nil variant is treated as Inert.
func NewTimer4(regs Registers, pins PinDriver, variant Variant, clock ClockTopology) *Timer4 {
	if pins == nil {
		pins = nopPins{}
	}
	if variant == nil {
		variant = Inert
	}
	return &Timer4{
		regs:    regs,
		pins:    pins,
		variant: variant,
		clock:   clock,
	}
}

func (t *Timer4) inert() bool {
	return t.regs == nil || t.variant.Resolution() == 0
}

// Variant returns the chip variant the timer was built for.
func (t *Timer4) Variant() Variant { return t.variant }

// Clock returns the clock topology.
func (t *Timer4) Clock() ClockTopology { return t.clock }

// Top returns the current counter top (OCR4C).
func (t *Timer4) Top() uint16 { return t.top }

// ClockSelect returns the persisted CS43..CS40 code.
func (t *Timer4) ClockSelect() uint8 { return t.clockSelect }

// Source returns the clock source picked by the last SetPeriod.
func (t *Timer4) Source() ClockSource { return t.source }

// Running reports whether the counter currently has a clock.
func (t *Timer4) Running() bool {
	if t.inert() {
		return false
	}
	return t.regs.Read(TCCR4B)&ClockSelectMask != 0
}

// InterruptEnabled reports whether the overflow interrupt is unmasked.
func (t *Timer4) InterruptEnabled() bool {
	if t.inert() {
		return false
	}
	return t.regs.Read(TIMSK4)&bv(TOIE4) != 0
}

//****************************
//  Configuration
//****************************

// Initialize puts the timer in phase and frequency correct mode with all
// outputs disconnected, then sets the period. A period of 0 selects
// DefaultPeriodUS.
func (t *Timer4) Initialize(periodUS uint32) {
	if t.inert() {
		return
	}
	if periodUS == 0 {
		periodUS = DefaultPeriodUS
	}
	t.regs.Write(TCCR4D, modePhaseFrequencyCorrect)
	t.regs.Write(TCCR4A, 0)
	t.regs.Write(TCCR4C, 0)
	t.regs.Write(TCCR4E, 0)
	t.SetPeriod(periodUS)
}

// SetPeriod resolves the period, programs the PLL postcaler and TOP, and
// clocks the timer with the new prescaler. Periods too long to represent
// saturate to the slowest setting.
func (t *Timer4) SetPeriod(periodUS uint32) {
	if t.inert() {
		return
	}
	res := Resolve(t.clock, t.variant.Resolution(), periodUS)

	switch res.Source {
	case SourcePLL:
		// The PLL comes back at 48MHz after a power cycle, so write the
		// whole register instead of just PLLTM.
		t.regs.Write(PLLFRQ, PLLFRQFull)
	case SourcePLLHalf:
		t.regs.Write(PLLFRQ, PLLFRQHalf)
	default:
		t.regs.Write(PLLFRQ, t.regs.Read(PLLFRQ)&PLLFRQTimerMask)
	}

	t.clockSelect = res.Tier.Code
	t.top = res.Top
	t.source = res.Source

	t.writeLatched(OCR4C, t.top)
	t.regs.Write(TCCR4D, modePhaseFrequencyCorrect)
	t.regs.Write(TCCR4B, t.clockSelect)

	if IsDebugEnabled() {
		DebugPrintln("timer4: period=" + utoa(periodUS) + "us cs=" + utoa(uint32(t.clockSelect)) +
			" top=" + utoa(uint32(t.top)) + " src=" + t.source.String())
	}
}

// Resolution returns what SetPeriod would program for a period.
func (t *Timer4) Resolution(periodUS uint32) Resolution {
	return Resolve(t.clock, t.variant.Resolution(), periodUS)
}

// writeLatched writes a 10-bit value through the shared TC4H latch. The
// high byte must land before the low byte, with nothing in between.
func (t *Timer4) writeLatched(low Register, value uint16) {
	state := enterCritical()
	t.regs.Write(TC4H, uint8(value>>8))
	t.regs.Write(low, uint8(value))
	exitCritical(state)
}

//****************************
//  Run Control
//****************************

// Start resets the counter to zero and runs it. Resetting TCNT4 may raise
// one spurious overflow if the interrupt is enabled.
func (t *Timer4) Start() {
	if t.inert() {
		return
	}
	t.regs.Write(TCCR4B, 0)
	t.regs.Write(TCCR4D, 0)
	t.writeLatched(TCNT4, 0)
	t.Resume()
}

// Stop removes the clock, leaving the counter and mode untouched.
func (t *Timer4) Stop() {
	if t.inert() {
		return
	}
	t.regs.Write(TCCR4B, 0)
}

// Restart is Start.
func (t *Timer4) Restart() {
	t.Start()
}

// Resume clocks the timer again from wherever the counter was left.
func (t *Timer4) Resume() {
	if t.inert() {
		return
	}
	t.regs.Write(TCCR4B, t.clockSelect)
	t.regs.Write(TCCR4D, modePhaseFrequencyCorrect)
}

//****************************
//  PWM outputs
//****************************

// SetPwmDuty sets the duty of a pin on the 0..1023 scale. Unknown pins are
// ignored.
func (t *Timer4) SetPwmDuty(pin Pin, duty uint16) {
	if t.inert() {
		return
	}
	b, ok := t.variant.Binding(pin)
	if !ok {
		return
	}
	t.writeLatched(b.Compare, t.scaleDuty(duty))
}

// PhysicalDuty returns the compare value a duty maps to at the current top.
func (t *Timer4) PhysicalDuty(duty uint16) uint16 {
	return t.scaleDuty(duty)
}

func (t *Timer4) scaleDuty(duty uint16) uint16 {
	if duty > DutyMax {
		duty = DutyMax
	}
	return uint16((uint32(t.top) * uint32(duty)) >> dutyShift)
}

// SetCompare writes a raw compare value for a pin, clamped to top.
func (t *Timer4) SetCompare(pin Pin, value uint16) {
	if t.inert() {
		return
	}
	b, ok := t.variant.Binding(pin)
	if !ok {
		return
	}
	if value > t.top {
		value = t.top
	}
	t.writeLatched(b.Compare, value)
}

// EnablePwm connects a pin to its compare output and sets its duty.
func (t *Timer4) EnablePwm(pin Pin, duty uint16) {
	if t.inert() {
		return
	}
	b, ok := t.variant.Binding(pin)
	if !ok {
		return
	}
	t.pins.ConfigureOutput(pin)
	t.regs.Write(b.Control, t.regs.Read(b.Control)|bv(b.ComBit)|bv(b.PWMBit))
	t.writeLatched(b.Compare, t.scaleDuty(duty))
	t.regs.Write(TCCR4D, modePhaseFrequencyCorrect)
	t.regs.Write(TCCR4B, t.clockSelect)
}

// EnablePwmPeriod sets the period first when periodUS > 0, then behaves like
// EnablePwm.
func (t *Timer4) EnablePwmPeriod(pin Pin, duty uint16, periodUS uint32) {
	if periodUS > 0 {
		t.SetPeriod(periodUS)
	}
	t.EnablePwm(pin, duty)
}

// DisablePwm disconnects a pin from its compare output. Duty and period are
// kept so EnablePwm can bring the same level back.
func (t *Timer4) DisablePwm(pin Pin) {
	if t.inert() {
		return
	}
	b, ok := t.variant.Binding(pin)
	if !ok {
		return
	}
	t.regs.Write(b.Control, t.regs.Read(b.Control)&^bv(b.ComBit))
}

//****************************
//  Interrupt Function
//****************************

// AttachInterrupt installs the overflow callback and unmasks the overflow
// interrupt.
func (t *Timer4) AttachInterrupt(isr func()) {
	if t.inert() {
		return
	}
	// TOIE4 may already be set; the func value is two words
	state := enterCritical()
	t.isr = isr
	exitCritical(state)
	t.regs.Write(TIMSK4, bv(TOIE4))
}

// AttachInterruptPeriod sets the period first when periodUS > 0, then
// behaves like AttachInterrupt.
func (t *Timer4) AttachInterruptPeriod(isr func(), periodUS uint32) {
	if periodUS > 0 {
		t.SetPeriod(periodUS)
	}
	t.AttachInterrupt(isr)
}

// DetachInterrupt masks the overflow interrupt.
func (t *Timer4) DetachInterrupt() {
	if t.inert() {
		return
	}
	t.regs.Write(TIMSK4, 0)
}

// HandleOverflow is called from the TIMER4_OVF vector.
func (t *Timer4) HandleOverflow() {
	if isr := t.isr; isr != nil {
		isr()
	}
}
