package avr

import "fmt"

// Register is one hardware register write needed to realize a PWM
// configuration.
type Register struct {
	// Name is the datasheet register name, e.g. "TCCR1B".
	Name string `json:"name"`

	// Value is the register value as an uppercase 0x-prefixed hex
	// string with no zero padding.
	Value string `json:"value"`

	// Description explains what the write configures.
	Description string `json:"description"`
}

// Timer 1 control bits (Fast PWM mode 14, TOP = ICR1).
const (
	t1ControlA = 0x82 // COM1A1 | WGM11: non-inverting OC1A, mode bits 1:0
	t1ControlB = 0x18 // WGM13 | WGM12: mode bits 3:2, OR'd with CS bits
)

// Timer 0/2 control bits (Fast PWM mode 7, TOP = OCRnA).
const (
	t02ControlA = 0x23 // COM0B1 | WGM01 | WGM00: non-inverting OCnB, mode bits 1:0
	t02ControlB = 0x08 // WGM02: mode bit 2, OR'd with CS bits
)

// Hex formats a register value the way the generated code presents it.
func Hex(v int) string {
	return fmt.Sprintf("0x%X", v)
}

// Registers derives the register writes that configure the timer for
// Fast PWM with the given prescaler, TOP and compare value. The ocr
// value is clamped at zero. Returns an error only if the prescaler has
// no clock-select code on this timer.
func (t Timer) Registers(prescaler, top, ocr int) ([]Register, error) {
	cs, ok := t.ClockSelect(prescaler)
	if !ok {
		return nil, fmt.Errorf("avr: %s has no clock-select code for prescaler %d", t, prescaler)
	}
	if ocr < 0 {
		ocr = 0
	}

	if t == Timer1 {
		return []Register{
			{"TCCR1A", Hex(t1ControlA), "Fast PWM mode 14, non-inverting OC1A"},
			{"TCCR1B", Hex(t1ControlB | int(cs)), fmt.Sprintf("Fast PWM mode 14, prescaler %d", prescaler)},
			{"ICR1", Hex(top), "TOP value (PWM period)"},
			{"OCR1A", Hex(ocr), "Compare value (duty cycle)"},
		}, nil
	}

	n := int(t)
	return []Register{
		{fmt.Sprintf("TCCR%dA", n), Hex(t02ControlA), fmt.Sprintf("Fast PWM mode 7, non-inverting OC%dB", n)},
		{fmt.Sprintf("TCCR%dB", n), Hex(t02ControlB | int(cs)), fmt.Sprintf("Fast PWM mode 7, prescaler %d", prescaler)},
		{fmt.Sprintf("OCR%dA", n), Hex(top), "TOP value (PWM period)"},
		{fmt.Sprintf("OCR%dB", n), Hex(ocr), "Compare value (duty cycle)"},
	}, nil
}
