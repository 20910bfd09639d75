package core

// RegisterWrite is one entry of a RegisterFile write log.
type RegisterWrite struct {
	Reg   Register
	Value uint8
}

// RegisterFile is an in-memory Registers implementation for host builds and
// tests. It models the shared TC4H latch: writing the low byte of a 10-bit
// register combines it with whatever TC4H held at that moment, and reading a
// low byte loads the matching high bits into TC4H.
//
// Advance simulates the counter in phase and frequency correct mode, counting
// prescaled ticks from BOTTOM to TOP (OCR4C) and back, with an overflow at
// BOTTOM.
type RegisterFile struct {
	regs [numRegisters]uint8
	wide [numRegisters]uint16
	log  []RegisterWrite

	countingDown bool

	// OnOverflow is invoked from Advance for every overflow while TOIE4 is
	// set, the way the TIMER4_OVF vector would fire.
	OnOverflow func()
}

// NewRegisterFile creates a zeroed register file.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{}
}

// Read implements Registers.
func (f *RegisterFile) Read(r Register) uint8 {
	if r >= numRegisters {
		return 0
	}
	if r.Wide() {
		f.regs[TC4H] = uint8(f.wide[r]>>8) & TC4HMask
		return uint8(f.wide[r])
	}
	return f.regs[r]
}

// Write implements Registers.
func (f *RegisterFile) Write(r Register, value uint8) {
	if r >= numRegisters {
		return
	}
	f.log = append(f.log, RegisterWrite{Reg: r, Value: value})
	switch {
	case r == TC4H:
		f.regs[TC4H] = value & TC4HMask
	case r.Wide():
		f.wide[r] = uint16(f.regs[TC4H])<<8 | uint16(value)
		if r == TCNT4 {
			f.countingDown = false
		}
	default:
		f.regs[r] = value
	}
}

// Value10 returns the full 10-bit content of a wide register without
// disturbing the latch.
func (f *RegisterFile) Value10(r Register) uint16 {
	if r >= numRegisters || !r.Wide() {
		return 0
	}
	return f.wide[r]
}

// Peek returns an 8-bit register without side effects.
func (f *RegisterFile) Peek(r Register) uint8 {
	if r >= numRegisters {
		return 0
	}
	return f.regs[r]
}

// Writes returns the write log since the last ClearLog.
func (f *RegisterFile) Writes() []RegisterWrite {
	out := make([]RegisterWrite, len(f.log))
	copy(out, f.log)
	return out
}

// ClearLog discards the write log, keeping register contents.
func (f *RegisterFile) ClearLog() {
	f.log = f.log[:0]
}

// Running reports whether a clock source is selected.
func (f *RegisterFile) Running() bool {
	return f.regs[TCCR4B]&ClockSelectMask != 0
}

// Advance moves the counter by ticks prescaled clock ticks and returns the
// number of overflows that occurred. Nothing happens while stopped.
func (f *RegisterFile) Advance(ticks uint32) uint32 {
	if !f.Running() {
		return 0
	}
	top := f.wide[OCR4C]
	var overflows uint32
	for i := uint32(0); i < ticks; i++ {
		cnt := f.wide[TCNT4]
		if top == 0 {
			overflows++
			continue
		}
		if f.countingDown {
			cnt--
			if cnt == 0 {
				f.countingDown = false
				overflows++
			}
		} else {
			cnt++
			if cnt >= top {
				cnt = top
				f.countingDown = true
			}
		}
		f.wide[TCNT4] = cnt
	}
	if f.OnOverflow != nil && f.regs[TIMSK4]&bv(TOIE4) != 0 {
		for i := uint32(0); i < overflows; i++ {
			f.OnOverflow()
		}
	}
	return overflows
}
