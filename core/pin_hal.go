package core

// PinDriver is the abstract pin interface the timer uses to turn a PWM pin
// into an output. Platform-specific implementations handle actual hardware
// control.
type PinDriver interface {
	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin Pin)
}

// nopPins is used when no pin driver is supplied.
type nopPins struct{}

func (nopPins) ConfigureOutput(Pin) {}

// PinRecorder is a PinDriver that remembers which pins were configured.
// Used by host builds and tests.
type PinRecorder struct {
	Outputs []Pin
}

// ConfigureOutput implements PinDriver.
func (p *PinRecorder) ConfigureOutput(pin Pin) {
	p.Outputs = append(p.Outputs, pin)
}
