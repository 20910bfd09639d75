package core

// Pin is an Arduino pin number on the target board.
type Pin uint8

// Channel is one of the three Timer4 output compare units.
type Channel uint8

const (
	ChannelA Channel = iota
	ChannelB
	ChannelD
)

func (c Channel) String() string {
	switch c {
	case ChannelA:
		return "A"
	case ChannelB:
		return "B"
	case ChannelD:
		return "D"
	}
	return "?"
}

// ChannelBinding ties a pin role to the registers and bits that drive it.
type ChannelBinding struct {
	Pin        Pin
	Channel    Channel
	Complement bool     // output is the inverted OC4x pin
	Control    Register // TCCR4A or TCCR4C
	ComBit     uint8    // COM4x1 for the normal pin, COM4x0 for the complement
	PWMBit     uint8    // PWM4x
	Compare    Register // OCR4x
}

// Variant is the chip-specific half of the driver: counter resolution and
// which pins Timer4 can drive. A Variant with zero resolution is inert.
type Variant interface {
	Name() string

	// Resolution returns the counter range, or 0 when the chip has no
	// usable Timer4.
	Resolution() uint32

	// Binding returns the channel binding for a pin.
	Binding(pin Pin) (ChannelBinding, bool)

	// Bindings returns every supported binding in channel order.
	Bindings() []ChannelBinding
}

type chipVariant struct {
	name       string
	resolution uint32
	bindings   []ChannelBinding
}

func (v *chipVariant) Name() string       { return v.name }
func (v *chipVariant) Resolution() uint32 { return v.resolution }

func (v *chipVariant) Binding(pin Pin) (ChannelBinding, bool) {
	for _, b := range v.bindings {
		if b.Pin == pin {
			return b, true
		}
	}
	return ChannelBinding{}, false
}

func (v *chipVariant) Bindings() []ChannelBinding {
	out := make([]ChannelBinding, len(v.bindings))
	copy(out, v.bindings)
	return out
}

// Timer4 pin assignments on the Arduino Leonardo / Pro Micro
const (
	PinA  Pin = 13 // OC4A  (PC7)
	PinAC Pin = 5  // /OC4A (PC6)
	PinB  Pin = 10 // OC4B  (PB6)
	PinBC Pin = 9  // /OC4B (PB5)
	PinD  Pin = 6  // OC4D  (PD7)
	PinDC Pin = 12 // /OC4D (PD6)
)

// Resolution10Bit is the counter range of the 10-bit Timer4.
const Resolution10Bit = 1024

// ATmega32U4 is the Leonardo / Pro Micro chip with all six Timer4 pins.
var ATmega32U4 Variant = &chipVariant{
	name:       "atmega32u4",
	resolution: Resolution10Bit,
	bindings: []ChannelBinding{
		{Pin: PinA, Channel: ChannelA, Control: TCCR4A, ComBit: COM4A1, PWMBit: PWM4A, Compare: OCR4A},
		{Pin: PinAC, Channel: ChannelA, Complement: true, Control: TCCR4A, ComBit: COM4A0, PWMBit: PWM4A, Compare: OCR4A},
		{Pin: PinB, Channel: ChannelB, Control: TCCR4A, ComBit: COM4B1, PWMBit: PWM4B, Compare: OCR4B},
		{Pin: PinBC, Channel: ChannelB, Complement: true, Control: TCCR4A, ComBit: COM4B0, PWMBit: PWM4B, Compare: OCR4B},
		{Pin: PinD, Channel: ChannelD, Control: TCCR4C, ComBit: COM4D1, PWMBit: PWM4D, Compare: OCR4D},
		{Pin: PinDC, Channel: ChannelD, Complement: true, Control: TCCR4C, ComBit: COM4D0, PWMBit: PWM4D, Compare: OCR4D},
	},
}

// ATmega16U4 has the same timer but no board pin map, so period and
// interrupt control work while PWM requests are ignored.
var ATmega16U4 Variant = &chipVariant{
	name:       "atmega16u4",
	resolution: Resolution10Bit,
}

// Inert stands in for chips without Timer4. Every operation is a no-op.
var Inert Variant = &chipVariant{name: "none"}

var variants = []Variant{ATmega32U4, ATmega16U4}

// LookupVariant returns the variant with the given name, or Inert.
func LookupVariant(name string) Variant {
	for _, v := range variants {
		if v.Name() == name {
			return v
		}
	}
	return Inert
}

// VariantNames lists the supported chip names.
func VariantNames() []string {
	names := make([]string, 0, len(variants))
	for _, v := range variants {
		names = append(names, v.Name())
	}
	return names
}
