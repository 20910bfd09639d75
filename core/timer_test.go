package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestTimer(v Variant) (*Timer4, *RegisterFile, *PinRecorder) {
	regs := NewRegisterFile()
	pins := &PinRecorder{}
	return NewTimer4(regs, pins, v, DefaultClock), regs, pins
}

func TestSetPeriodWriteOrder(t *testing.T) {
	timer, regs, _ := newTestTimer(ATmega32U4)
	timer.SetPeriod(2500)

	want := []RegisterWrite{
		{PLLFRQ, 0x00},
		{TC4H, 625 >> 8},
		{OCR4C, 625 & 0xFF},
		{TCCR4D, 1 << WGM40},
		{TCCR4B, 0x6},
	}
	if diff := cmp.Diff(want, regs.Writes()); diff != "" {
		t.Errorf("SetPeriod(2500) writes (-want +got):\n%s", diff)
	}
	if regs.Value10(OCR4C) != 625 {
		t.Errorf("OCR4C = %d, want 625", regs.Value10(OCR4C))
	}
	if timer.Top() != 625 || timer.ClockSelect() != 0x6 {
		t.Errorf("top=%d cs=%d, want 625/6", timer.Top(), timer.ClockSelect())
	}
	if !timer.Running() {
		t.Error("SetPeriod should leave the timer clocked")
	}
}

func TestSetPeriodClockPaths(t *testing.T) {
	testCases := []struct {
		periodUS uint32
		source   ClockSource
		pllfrq   uint8
	}{
		{999, SourcePLL, PLLFRQFull},
		{0, SourcePLL, PLLFRQFull},
		{1500, SourcePLLHalf, PLLFRQHalf},
		{1000, SourcePLLHalf, PLLFRQHalf},
		{2500, SourceSystem, PLLFRQHalf & PLLFRQTimerMask},
	}
	for _, tc := range testCases {
		timer, regs, _ := newTestTimer(ATmega32U4)
		regs.Write(PLLFRQ, PLLFRQHalf)
		timer.SetPeriod(tc.periodUS)
		if timer.Source() != tc.source {
			t.Errorf("SetPeriod(%d) source = %v, want %v", tc.periodUS, timer.Source(), tc.source)
		}
		if got := regs.Peek(PLLFRQ); got != tc.pllfrq {
			t.Errorf("SetPeriod(%d) PLLFRQ = 0x%02X, want 0x%02X", tc.periodUS, got, tc.pllfrq)
		}
	}
}

func TestInitialize(t *testing.T) {
	timer, regs, _ := newTestTimer(ATmega32U4)
	regs.Write(TCCR4A, 0xFF)
	regs.Write(TCCR4C, 0xFF)
	regs.Write(TCCR4E, 0xFF)
	regs.ClearLog()

	timer.Initialize(0)

	got := regs.Writes()[:4]
	want := []RegisterWrite{
		{TCCR4D, 1},
		{TCCR4A, 0},
		{TCCR4C, 0},
		{TCCR4E, 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Initialize prologue (-want +got):\n%s", diff)
	}
	// 1s at 16MHz
	if timer.ClockSelect() != 0xE || timer.Top() != 976 {
		t.Errorf("Initialize(0) cs=%d top=%d, want the 1s default", timer.ClockSelect(), timer.Top())
	}
}

func TestStartResetsCounter(t *testing.T) {
	timer, regs, _ := newTestTimer(ATmega32U4)
	timer.SetPeriod(2500)
	regs.Advance(300)
	if regs.Value10(TCNT4) == 0 {
		t.Fatal("counter did not move")
	}

	regs.ClearLog()
	timer.Start()

	if regs.Value10(TCNT4) != 0 {
		t.Errorf("TCNT4 = %d after Start, want 0", regs.Value10(TCNT4))
	}
	want := []RegisterWrite{
		{TCCR4B, 0},
		{TCCR4D, 0},
		{TC4H, 0},
		{TCNT4, 0},
		{TCCR4B, 0x6},
		{TCCR4D, 1},
	}
	if diff := cmp.Diff(want, regs.Writes()); diff != "" {
		t.Errorf("Start writes (-want +got):\n%s", diff)
	}

	regs.Advance(10)
	timer.Restart()
	if regs.Value10(TCNT4) != 0 {
		t.Errorf("TCNT4 = %d after Restart, want 0", regs.Value10(TCNT4))
	}
}

func TestStopResumePreservesCounter(t *testing.T) {
	timer, regs, _ := newTestTimer(ATmega32U4)
	timer.SetPeriod(2500)
	timer.Start()
	regs.Advance(100)

	timer.Stop()
	if timer.Running() {
		t.Fatal("timer still running after Stop")
	}
	if regs.Peek(TCCR4D) != 1 {
		t.Errorf("Stop touched TCCR4D")
	}
	regs.Advance(50)
	if regs.Value10(TCNT4) != 100 {
		t.Errorf("stopped counter moved to %d", regs.Value10(TCNT4))
	}

	regs.ClearLog()
	timer.Resume()
	if regs.Value10(TCNT4) != 100 {
		t.Errorf("Resume reset the counter to %d", regs.Value10(TCNT4))
	}
	for _, w := range regs.Writes() {
		if w.Reg == TCNT4 || w.Reg == OCR4C || w.Reg == TC4H {
			t.Errorf("Resume wrote %v", w.Reg)
		}
	}
	if timer.Top() != 625 || timer.ClockSelect() != 0x6 {
		t.Errorf("Resume changed the period: top=%d cs=%d", timer.Top(), timer.ClockSelect())
	}
	regs.Advance(5)
	if regs.Value10(TCNT4) != 105 {
		t.Errorf("counter = %d after resuming 5 ticks, want 105", regs.Value10(TCNT4))
	}
}

func TestSetPwmDutyScaling(t *testing.T) {
	timer, regs, _ := newTestTimer(ATmega32U4)
	timer.SetPeriod(2500) // top 625

	testCases := []struct {
		duty uint16
		phys uint16
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{256, 156},
		{512, 312},
		{1023, 624},
		{5000, 624},
	}
	for _, tc := range testCases {
		regs.ClearLog()
		timer.SetPwmDuty(PinB, tc.duty)
		if got := regs.Value10(OCR4B); got != tc.phys {
			t.Errorf("duty %d: OCR4B = %d, want %d", tc.duty, got, tc.phys)
		}
		want := []RegisterWrite{{TC4H, uint8(tc.phys >> 8)}, {OCR4B, uint8(tc.phys)}}
		if diff := cmp.Diff(want, regs.Writes()); diff != "" {
			t.Errorf("duty %d writes (-want +got):\n%s", tc.duty, diff)
		}
	}
}

func TestSetPwmDutyFullScale(t *testing.T) {
	timer, regs, _ := newTestTimer(ATmega32U4)
	for _, p := range []uint32{21, 2000, 2500, 1000000, 0xFFFFFFFF} {
		timer.SetPeriod(p)
		timer.SetPwmDuty(PinD, DutyMax)
		top := timer.Top()
		got := regs.Value10(OCR4D)
		if got > top || top-got > 1 {
			t.Errorf("period %d: full-scale duty = %d, top %d", p, got, top)
		}
	}
}

func TestSetPwmDutyMonotonic(t *testing.T) {
	timer, _, _ := newTestTimer(ATmega32U4)
	timer.SetPeriod(2000) // top 1000
	prev := uint16(0)
	for d := uint16(0); d <= DutyMax; d++ {
		phys := timer.PhysicalDuty(d)
		if phys < prev {
			t.Fatalf("duty %d maps to %d, below %d", d, phys, prev)
		}
		if want := uint16(uint32(1000) * uint32(d) >> 10); phys != want {
			t.Fatalf("duty %d maps to %d, want %d", d, phys, want)
		}
		prev = phys
	}
}

func TestEnablePwm(t *testing.T) {
	testCases := []struct {
		pin     Pin
		control Register
		bits    uint8
		compare Register
	}{
		{PinA, TCCR4A, 1<<COM4A1 | 1<<PWM4A, OCR4A},
		{PinAC, TCCR4A, 1<<COM4A0 | 1<<PWM4A, OCR4A},
		{PinB, TCCR4A, 1<<COM4B1 | 1<<PWM4B, OCR4B},
		{PinBC, TCCR4A, 1<<COM4B0 | 1<<PWM4B, OCR4B},
		{PinD, TCCR4C, 1<<COM4D1 | 1<<PWM4D, OCR4D},
		{PinDC, TCCR4C, 1<<COM4D0 | 1<<PWM4D, OCR4D},
	}
	for _, tc := range testCases {
		timer, regs, pins := newTestTimer(ATmega32U4)
		timer.Initialize(2000)
		timer.Stop()

		timer.EnablePwm(tc.pin, 512)

		if got := regs.Peek(tc.control); got != tc.bits {
			t.Errorf("pin %d: %v = 0x%02X, want 0x%02X", tc.pin, tc.control, got, tc.bits)
		}
		if got := regs.Value10(tc.compare); got != 500 {
			t.Errorf("pin %d: %v = %d, want 500", tc.pin, tc.compare, got)
		}
		if diff := cmp.Diff([]Pin{tc.pin}, pins.Outputs); diff != "" {
			t.Errorf("pin %d: outputs (-want +got):\n%s", tc.pin, diff)
		}
		if !timer.Running() || regs.Peek(TCCR4D) != 1 {
			t.Errorf("pin %d: EnablePwm did not restart the timer in PFC mode", tc.pin)
		}
	}
}

func TestEnablePwmBothPolarities(t *testing.T) {
	timer, regs, _ := newTestTimer(ATmega32U4)
	timer.Initialize(2000)
	timer.EnablePwm(PinA, 100)
	timer.EnablePwm(PinAC, 100)
	timer.EnablePwm(PinB, 100)
	want := uint8(1<<COM4A1 | 1<<COM4A0 | 1<<PWM4A | 1<<COM4B1 | 1<<PWM4B)
	if got := regs.Peek(TCCR4A); got != want {
		t.Errorf("TCCR4A = 0x%02X, want 0x%02X", got, want)
	}
}

func TestEnablePwmPeriod(t *testing.T) {
	timer, regs, _ := newTestTimer(ATmega32U4)
	timer.Initialize(2000)

	timer.EnablePwmPeriod(PinD, 512, 2500)
	if timer.Top() != 625 {
		t.Errorf("top = %d, want 625", timer.Top())
	}
	if regs.Value10(OCR4D) != 312 {
		t.Errorf("OCR4D = %d, want 312", regs.Value10(OCR4D))
	}

	timer.EnablePwmPeriod(PinD, 512, 0)
	if timer.Top() != 625 {
		t.Errorf("period 0 must keep the current period, top = %d", timer.Top())
	}
}

func TestDisablePwmKeepsState(t *testing.T) {
	timer, regs, _ := newTestTimer(ATmega32U4)
	timer.Initialize(2500)
	timer.EnablePwm(PinB, 300)
	before := regs.Value10(OCR4B)

	regs.ClearLog()
	timer.DisablePwm(PinB)

	if diff := cmp.Diff([]RegisterWrite{{TCCR4A, 1 << PWM4B}}, regs.Writes()); diff != "" {
		t.Errorf("DisablePwm writes (-want +got):\n%s", diff)
	}
	if regs.Value10(OCR4B) != before || timer.Top() != 625 {
		t.Error("DisablePwm changed duty or period")
	}

	timer.EnablePwm(PinB, 300)
	if regs.Value10(OCR4B) != before {
		t.Errorf("re-enabled duty %d, want %d", regs.Value10(OCR4B), before)
	}
	if regs.Peek(TCCR4A) != 1<<COM4B1|1<<PWM4B {
		t.Errorf("TCCR4A = 0x%02X after re-enable", regs.Peek(TCCR4A))
	}
}

func TestUnknownPinIgnored(t *testing.T) {
	timer, regs, pins := newTestTimer(ATmega32U4)
	timer.Initialize(2500)
	regs.ClearLog()

	timer.SetPwmDuty(2, 500)
	timer.EnablePwm(2, 500)
	timer.DisablePwm(2)
	timer.SetCompare(2, 10)

	if w := regs.Writes(); len(w) != 0 {
		t.Errorf("unknown pin wrote registers: %v", w)
	}
	if len(pins.Outputs) != 0 {
		t.Errorf("unknown pin configured as output")
	}
}

func TestSetCompareClamps(t *testing.T) {
	timer, regs, _ := newTestTimer(ATmega32U4)
	timer.SetPeriod(2500)
	timer.SetCompare(PinA, 100)
	if regs.Value10(OCR4A) != 100 {
		t.Errorf("OCR4A = %d, want 100", regs.Value10(OCR4A))
	}
	timer.SetCompare(PinA, 900)
	if regs.Value10(OCR4A) != 625 {
		t.Errorf("OCR4A = %d, want clamp to 625", regs.Value10(OCR4A))
	}
}

func TestInterruptAttachDetach(t *testing.T) {
	timer, regs, _ := newTestTimer(ATmega32U4)
	regs.OnOverflow = timer.HandleOverflow

	var count int
	timer.AttachInterruptPeriod(func() { count++ }, 2500)
	if regs.Peek(TIMSK4) != 1<<TOIE4 {
		t.Errorf("TIMSK4 = 0x%02X, want TOIE4", regs.Peek(TIMSK4))
	}
	if !timer.InterruptEnabled() {
		t.Error("InterruptEnabled() = false")
	}
	timer.Start()

	// One full dual-slope period is 2*top ticks
	regs.Advance(2 * 625 * 3)
	if count != 3 {
		t.Errorf("overflows = %d, want 3", count)
	}

	timer.DetachInterrupt()
	if regs.Peek(TIMSK4) != 0 {
		t.Errorf("TIMSK4 = 0x%02X after detach", regs.Peek(TIMSK4))
	}
	regs.Advance(2 * 625)
	if count != 3 {
		t.Errorf("detached callback ran, count = %d", count)
	}
}

func TestReattachInterruptWhileEnabled(t *testing.T) {
	timer, regs, _ := newTestTimer(ATmega32U4)
	regs.OnOverflow = timer.HandleOverflow

	var first, second int
	timer.AttachInterruptPeriod(func() { first++ }, 2500)
	timer.Start()
	regs.Advance(2 * 625)

	regs.ClearLog()
	timer.AttachInterrupt(func() { second++ })
	want := []RegisterWrite{{TIMSK4, 1 << TOIE4}}
	if diff := cmp.Diff(want, regs.Writes()); diff != "" {
		t.Errorf("re-attach writes (-want +got):\n%s", diff)
	}

	regs.Advance(2 * 625 * 2)
	if first != 1 || second != 2 {
		t.Errorf("first = %d, second = %d, want 1 and 2", first, second)
	}
}

func TestAttachInterruptKeepsPeriod(t *testing.T) {
	timer, _, _ := newTestTimer(ATmega32U4)
	timer.SetPeriod(2000)
	timer.AttachInterruptPeriod(func() {}, 0)
	if timer.Top() != 1000 {
		t.Errorf("period 0 must keep the current period, top = %d", timer.Top())
	}
	timer.HandleOverflow()
}

func TestInertVariant(t *testing.T) {
	timer, regs, pins := newTestTimer(Inert)
	timer.Initialize(2500)
	timer.SetPeriod(1000)
	timer.Start()
	timer.Stop()
	timer.Resume()
	timer.Restart()
	timer.EnablePwmPeriod(PinA, 512, 2000)
	timer.SetPwmDuty(PinA, 512)
	timer.DisablePwm(PinA)
	timer.AttachInterrupt(func() {})
	timer.DetachInterrupt()

	if w := regs.Writes(); len(w) != 0 {
		t.Errorf("inert timer wrote registers: %v", w)
	}
	if len(pins.Outputs) != 0 || timer.Running() {
		t.Error("inert timer changed state")
	}
}

func TestNilVariantIsInert(t *testing.T) {
	regs := NewRegisterFile()
	timer := NewTimer4(regs, nil, nil, DefaultClock)
	timer.SetPeriod(2500)
	if len(regs.Writes()) != 0 {
		t.Error("nil variant wrote registers")
	}
}

func TestATmega16U4HasNoPins(t *testing.T) {
	timer, regs, pins := newTestTimer(ATmega16U4)
	timer.SetPeriod(2500)
	if timer.Top() != 625 {
		t.Errorf("top = %d, want 625", timer.Top())
	}
	regs.ClearLog()
	timer.EnablePwm(PinA, 512)
	if len(regs.Writes()) != 0 || len(pins.Outputs) != 0 {
		t.Error("16U4 PWM request touched hardware")
	}
}

func TestLookupVariant(t *testing.T) {
	if LookupVariant("atmega32u4") != ATmega32U4 {
		t.Error("atmega32u4 not found")
	}
	if LookupVariant("atmega328p") != Inert {
		t.Error("unknown chip should be inert")
	}
	if diff := cmp.Diff([]string{"atmega32u4", "atmega16u4"}, VariantNames()); diff != "" {
		t.Errorf("VariantNames (-want +got):\n%s", diff)
	}
}

func TestDebugOutput(t *testing.T) {
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	SetDebugEnabled(true)
	defer func() {
		SetDebugEnabled(false)
		SetDebugWriter(func(string) {})
	}()

	timer, _, _ := newTestTimer(ATmega32U4)
	timer.SetPeriod(2500)

	want := []string{"timer4: period=2500us cs=6 top=625 src=system"}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Errorf("debug output (-want +got):\n%s", diff)
	}
}
