package core

import "periph.io/x/conn/v3/physic"

// ClockSource identifies which clock drives Timer4.
type ClockSource uint8

const (
	SourceSystem  ClockSource = iota // CPU clock (F_CPU)
	SourcePLL                        // PLL postcaler 1 (96MHz)
	SourcePLLHalf                    // PLL postcaler 2 (48MHz)
)

func (s ClockSource) String() string {
	switch s {
	case SourceSystem:
		return "system"
	case SourcePLL:
		return "pll"
	case SourcePLLHalf:
		return "pll/2"
	}
	return "unknown"
}

// Period thresholds (microseconds) selecting the PLL paths
const (
	PLLFullBelowUS = 1000
	PLLHalfBelowUS = 2000
)

// ClockTopology describes the fixed clocks available to Timer4.
type ClockTopology struct {
	CPU physic.Frequency // F_CPU
	PLL physic.Frequency // F_PLL, VCO tap used for short periods
}

// DefaultClock is a 16MHz ATmega32U4 with the PLL at 96MHz.
var DefaultClock = ClockTopology{
	CPU: 16 * physic.MegaHertz,
	PLL: 96 * physic.MegaHertz,
}

// hz converts a frequency to whole hertz.
func hz(f physic.Frequency) uint64 {
	if f <= 0 {
		return 0
	}
	return uint64(f / physic.Hertz)
}

// source picks the clock source for a period and returns the raw tick count
// for one slope of the dual-slope period. The divide happens before the
// multiply, so sub-MHz clocks truncate to zero cycles.
func (c ClockTopology) source(periodUS uint32) (src ClockSource, cycles uint64) {
	switch {
	case periodUS < PLLFullBelowUS:
		return SourcePLL, (hz(c.PLL) / 2000000) * uint64(periodUS)
	case periodUS < PLLHalfBelowUS:
		return SourcePLLHalf, (hz(c.PLL) / 2000000 / 2) * uint64(periodUS)
	default:
		return SourceSystem, (hz(c.CPU) / 2000000) * uint64(periodUS)
	}
}

// TimerHz returns the frequency feeding the prescaler for a clock source.
func (c ClockTopology) TimerHz(src ClockSource) uint64 {
	switch src {
	case SourcePLL:
		return hz(c.PLL)
	case SourcePLLHalf:
		return hz(c.PLL) / 2
	}
	return hz(c.CPU)
}
