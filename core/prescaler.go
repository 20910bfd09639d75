package core

// Prescaler is one tier of the Timer4 clock divider.
type Prescaler struct {
	Ratio uint32 // clock divide ratio
	Code  uint8  // CS43..CS40 value

	// Saturating marks the catch-all tier used when the period does not
	// fit any ratio; its top is pinned to resolution-1.
	Saturating bool
}

// PrescalerTable lists the Timer4 dividers in increasing ratio order.
// CS4 code n selects a ratio of 2^(n-1); code 0 stops the timer.
var PrescalerTable = [16]Prescaler{
	{Ratio: 1, Code: 0x1},
	{Ratio: 2, Code: 0x2},
	{Ratio: 4, Code: 0x3},
	{Ratio: 8, Code: 0x4},
	{Ratio: 16, Code: 0x5},
	{Ratio: 32, Code: 0x6},
	{Ratio: 64, Code: 0x7},
	{Ratio: 128, Code: 0x8},
	{Ratio: 256, Code: 0x9},
	{Ratio: 512, Code: 0xA},
	{Ratio: 1024, Code: 0xB},
	{Ratio: 2048, Code: 0xC},
	{Ratio: 4096, Code: 0xD},
	{Ratio: 8192, Code: 0xE},
	{Ratio: 16384, Code: 0xF},
	{Ratio: 16384, Code: 0xF, Saturating: true},
}

// PrescalerForCode returns the non-saturating tier with the given CS4 code.
func PrescalerForCode(code uint8) (Prescaler, bool) {
	for _, p := range PrescalerTable {
		if p.Code == code && !p.Saturating {
			return p, true
		}
	}
	return Prescaler{}, false
}

// Resolution is the outcome of resolving a period against the clock and
// prescaler table.
type Resolution struct {
	PeriodUS uint32
	Source   ClockSource
	Cycles   uint64 // ticks per slope before prescaling
	Tier     Prescaler
	Top      uint16 // OCR4C value, always < counter resolution
}

// Resolve computes the clock source, prescaler and top for a period without
// touching any registers. resolution is the counter range (1024 for the
// 10-bit Timer4). The smallest ratio whose range holds the tick count wins;
// periods longer than the slowest tier can hold saturate.
func Resolve(clock ClockTopology, resolution uint32, periodUS uint32) Resolution {
	src, cycles := clock.source(periodUS)
	res := Resolution{PeriodUS: periodUS, Source: src, Cycles: cycles}

	last := len(PrescalerTable) - 1
	for _, p := range PrescalerTable[:last] {
		if cycles < uint64(resolution)*uint64(p.Ratio) {
			res.Tier = p
			res.Top = uint16(cycles / uint64(p.Ratio))
			return res
		}
	}
	res.Tier = PrescalerTable[last]
	if resolution > 0 {
		res.Top = uint16(resolution - 1)
	}
	return res
}

// RealizedUS returns the period the resolution actually produces, in
// microseconds. Dual-slope counting covers the top twice per period.
func (r Resolution) RealizedUS(clock ClockTopology) uint64 {
	timerHz := clock.TimerHz(r.Source)
	if timerHz == 0 {
		return 0
	}
	return 2 * uint64(r.Tier.Ratio) * uint64(r.Top) * 1000000 / timerHz
}

// TickUS returns the duration of one slope tick at the resolved prescaler
// in microseconds, rounded up. This is the quantization step of a resolved
// period.
func (r Resolution) TickUS(clock ClockTopology) uint64 {
	timerHz := clock.TimerHz(r.Source)
	if timerHz == 0 {
		return 0
	}
	return (2*uint64(r.Tier.Ratio)*1000000 + timerHz - 1) / timerHz
}
