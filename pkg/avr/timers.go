// ATmega328P timer/counter model.
//
// Describes the three timer/counter units of the ATmega328P as seen by
// the PWM solver: counter bit width, the prescaler candidates evaluated
// during the frequency search, and the hardware clock-select bit codes.
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package avr

import "fmt"

// Timer identifies one of the ATmega328P timer/counter units.
type Timer int

const (
	// Timer0 is the 8-bit timer/counter 0 (OC0B output).
	Timer0 Timer = 0

	// Timer1 is the 16-bit timer/counter 1 (OC1A output).
	Timer1 Timer = 1

	// Timer2 is the 8-bit timer/counter 2 (OC2B output).
	Timer2 Timer = 2
)

// String returns the conventional name of the timer.
func (t Timer) String() string {
	return fmt.Sprintf("timer%d", int(t))
}

// Valid reports whether t names an existing timer unit.
func (t Timer) Valid() bool {
	return t == Timer0 || t == Timer1 || t == Timer2
}

// Is16Bit reports whether the timer has a 16-bit counter.
func (t Timer) Is16Bit() bool {
	return t == Timer1
}

// MaxTop returns the largest TOP value the counter can hold.
func (t Timer) MaxTop() int {
	if t.Is16Bit() {
		return 0xFFFF
	}
	return 0xFF
}

// SearchPrescalers is the ordered prescaler candidate sequence evaluated
// by the solver, smallest first. The ascending order is part of the
// contract: the first prescaler that yields an in-range TOP wins, which
// maximizes counting resolution.
//
// All three timers are searched over the same sequence. Timer 2's
// hardware additionally supports /32 and /128 (see clockSelect2), but
// those dividers are not proposed by the search.
var SearchPrescalers = [...]int{1, 8, 64, 256, 1024}

// Clock-select bit codes for the CSn2:0 field of TCCRnB.
//
// Timers 0 and 1 share one encoding; Timer 2 has its own with the extra
// /32 and /128 steps shifting the codes of the larger dividers.
var (
	clockSelect01 = map[int]uint8{
		1:    0b001,
		8:    0b010,
		64:   0b011,
		256:  0b100,
		1024: 0b101,
	}

	clockSelect2 = map[int]uint8{
		1:    0b001,
		8:    0b010,
		32:   0b011,
		64:   0b100,
		128:  0b101,
		256:  0b110,
		1024: 0b111,
	}
)

// ClockSelect returns the CSn2:0 code that selects the given prescaler
// on this timer. The second return value is false if the timer's
// hardware has no divider step for the value.
func (t Timer) ClockSelect(prescaler int) (uint8, bool) {
	table := clockSelect01
	if t == Timer2 {
		table = clockSelect2
	}
	cs, ok := table[prescaler]
	return cs, ok
}

// OutputPin describes the PWM output pin driven by the compare unit the
// register derivation configures.
type OutputPin struct {
	// Name is the AVR port pin, e.g. "PB1".
	Name string

	// Port is the port letter ("B", "D").
	Port string

	// Bit is the bit position within the port.
	Bit int

	// Arduino is the Arduino Uno/Nano digital pin number.
	Arduino int
}

// Pin returns the output pin for the timer's configured compare channel:
// OC1A for Timer 1, OC0B/OC2B for the 8-bit timers.
func (t Timer) Pin() OutputPin {
	switch t {
	case Timer1:
		return OutputPin{Name: "PB1", Port: "B", Bit: 1, Arduino: 9}
	case Timer2:
		return OutputPin{Name: "PD3", Port: "D", Bit: 3, Arduino: 3}
	default:
		return OutputPin{Name: "PD5", Port: "D", Bit: 5, Arduino: 5}
	}
}
