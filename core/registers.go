package core

// Register identifies one of the Timer/Counter4 (and PLL) I/O registers.
type Register uint8

// Timer4 register set
const (
	TCCR4A Register = iota // Control A: COM4A/COM4B, PWM4A/PWM4B
	TCCR4B                 // Control B: clock select CS43..CS40
	TCCR4C                 // Control C: COM4D, PWM4D
	TCCR4D                 // Control D: waveform generation WGM41..WGM40
	TCCR4E                 // Control E: enhanced mode
	TC4H                   // Shared high-byte latch for all 10-bit registers
	TCNT4                  // Counter, low byte
	OCR4A                  // Compare A, low byte
	OCR4B                  // Compare B, low byte
	OCR4C                  // Compare C, low byte (TOP)
	OCR4D                  // Compare D, low byte
	TIMSK4                 // Interrupt mask
	PLLFRQ                 // PLL frequency control

	numRegisters
)

var registerNames = [numRegisters]string{
	TCCR4A: "TCCR4A",
	TCCR4B: "TCCR4B",
	TCCR4C: "TCCR4C",
	TCCR4D: "TCCR4D",
	TCCR4E: "TCCR4E",
	TC4H:   "TC4H",
	TCNT4:  "TCNT4",
	OCR4A:  "OCR4A",
	OCR4B:  "OCR4B",
	OCR4C:  "OCR4C",
	OCR4D:  "OCR4D",
	TIMSK4: "TIMSK4",
	PLLFRQ: "PLLFRQ",
}

func (r Register) String() string {
	if r < numRegisters {
		return registerNames[r]
	}
	return "REG?"
}

// Wide reports whether r is the low byte of a 10-bit register that latches
// TC4H when written.
func (r Register) Wide() bool {
	switch r {
	case TCNT4, OCR4A, OCR4B, OCR4C, OCR4D:
		return true
	}
	return false
}

// TCCR4A bits
const (
	COM4A1 = 7
	COM4A0 = 6
	COM4B1 = 5
	COM4B0 = 4
	PWM4A  = 1
	PWM4B  = 0
)

// TCCR4C bits
const (
	COM4D1 = 3
	COM4D0 = 2
	PWM4D  = 0
)

// TCCR4D bits
const (
	WGM41 = 1
	WGM40 = 0
)

// TIMSK4 bits
const (
	TOIE4 = 2
)

// ClockSelectMask covers CS43..CS40 in TCCR4B.
const ClockSelectMask = 0x0F

// TC4HMask covers the bits TC4H actually stores.
const TC4HMask = 0x07

// modePhaseFrequencyCorrect is the TCCR4D value selecting phase and
// frequency correct PWM (WGM41=0, WGM40=1).
const modePhaseFrequencyCorrect = ^uint8(1<<WGM41) & (1 << WGM40)

// PLLFRQ values
const (
	PLLFRQFull      = 0x5A // PLLTM=01: timer clocked at PLL/1 (96MHz)
	PLLFRQHalf      = 0x7A // PLLTM=11: timer clocked at PLL/2 (48MHz)
	PLLFRQTimerMask = 0xCF // clears PLLTM1..PLLTM0, timer falls back to system clock
)

// bv returns the bit value of bit n, like avr-libc's _BV.
func bv(n uint8) uint8 {
	return 1 << n
}

// Registers is the abstract register interface that the timer core uses.
// Platform-specific implementations map each Register onto real memory-mapped
// I/O; host builds use RegisterFile.
type Registers interface {
	// Read returns the current value of a register
	Read(r Register) uint8

	// Write stores a value into a register
	Write(r Register, value uint8)
}
