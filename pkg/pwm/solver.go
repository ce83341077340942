// Fast PWM configuration solver for ATmega328P timers.
//
// Given a system clock, a target output frequency, a duty cycle and a
// timer selection, the solver searches the prescaler candidates for the
// smallest divider whose TOP value fits the counter, then derives the
// compare value and the register writes. The whole computation is a
// pure synchronous function; every call produces a fresh result.
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pwm

import (
	"fmt"
	"math"

	"avrpwm/pkg/avr"
	"avrpwm/pkg/errors"
)

// Request holds the four solver inputs.
type Request struct {
	// ClockHz is the oscillator frequency driving the timer.
	ClockHz float64 `json:"clock_hz"`

	// TargetHz is the desired PWM output frequency.
	TargetHz float64 `json:"target_hz"`

	// DutyPercent is the desired high fraction of the period, 0-100.
	DutyPercent float64 `json:"duty_cycle"`

	// Timer selects the timer/counter unit.
	Timer avr.Timer `json:"timer"`
}

// Validate checks the request for caller-side input errors. The solver
// itself accepts any request without crashing; validation is the
// boundary's responsibility.
func (r Request) Validate() error {
	if !r.Timer.Valid() {
		return errors.InputError("timer", fmt.Sprintf("must be 0, 1 or 2, got %d", int(r.Timer)))
	}
	if r.ClockHz <= 0 {
		return errors.InputError("clock_hz", "must be positive")
	}
	if r.TargetHz <= 0 {
		return errors.InputError("target_hz", "must be positive")
	}
	if r.DutyPercent < 0 || r.DutyPercent > 100 {
		return errors.InputError("duty_cycle", "must be between 0 and 100")
	}
	return nil
}

// Configured holds a successfully solved timer configuration.
type Configured struct {
	// Prescaler is the selected clock divider.
	Prescaler int

	// Top is the counter rollover value.
	Top int

	// OCR is the compare value, clamped at zero.
	OCR int

	// ActualHz is the achieved output frequency after quantization.
	ActualHz float64

	// ActualDutyPercent is the achieved duty cycle after quantization.
	ActualDutyPercent float64

	// Registers are the hardware writes realizing the configuration.
	Registers []avr.Register
}

// Outcome is the tagged result of a solve: either a configuration or a
// reason why none exists. Exactly one of Config and Reason is set.
type Outcome struct {
	Request Request
	Config  *Configured
	Reason  string
}

// Achievable reports whether the solve produced a configuration.
func (o Outcome) Achievable() bool {
	return o.Config != nil
}

// Solve runs the prescaler search for the request. The candidates are
// tried smallest first and the first one whose TOP fits the counter
// wins; a smaller prescaler means a larger TOP and therefore finer
// frequency and duty resolution.
func Solve(req Request) Outcome {
	maxTop := req.Timer.MaxTop()

	for _, n := range avr.SearchPrescalers {
		top := int(math.Round(req.ClockHz/(float64(n)*req.TargetHz))) - 1
		if top <= 0 || top > maxTop {
			continue
		}

		ocr := int(math.Round(float64(top+1)*req.DutyPercent/100)) - 1
		if ocr < 0 {
			// 0% duty would compute to -1
			ocr = 0
		}

		regs, err := req.Timer.Registers(n, top, ocr)
		if err != nil {
			// The search set is a subset of every timer's divider table,
			// so this cannot happen for a valid timer.
			return Outcome{
				Request: req,
				Reason:  err.Error(),
			}
		}

		return Outcome{
			Request: req,
			Config: &Configured{
				Prescaler:         n,
				Top:               top,
				OCR:               ocr,
				ActualHz:          req.ClockHz / (float64(n) * float64(top+1)),
				ActualDutyPercent: float64(ocr+1) / float64(top+1) * 100,
				Registers:         regs,
			},
		}
	}

	return Outcome{
		Request: req,
		Reason: fmt.Sprintf(
			"no prescaler achieves %g Hz on %s: TOP out of range [1, %d] for all candidates",
			req.TargetHz, req.Timer, maxTop),
	}
}
