package pwm

import (
	"math"
	"reflect"
	"testing"

	"avrpwm/pkg/avr"
)

func solve(t *testing.T, clock, target, duty float64, timer avr.Timer) Outcome {
	t.Helper()
	return Solve(Request{ClockHz: clock, TargetHz: target, DutyPercent: duty, Timer: timer})
}

func TestSolve16MHz1kHzTimer1(t *testing.T) {
	out := solve(t, 16e6, 1000, 50, avr.Timer1)
	if !out.Achievable() {
		t.Fatalf("unexpected failure: %s", out.Reason)
	}
	cfg := out.Config
	if cfg.Prescaler != 1 {
		t.Errorf("prescaler = %d, want 1", cfg.Prescaler)
	}
	if cfg.Top != 15999 {
		t.Errorf("top = %d, want 15999", cfg.Top)
	}
	if cfg.OCR != 7999 {
		t.Errorf("ocr = %d, want 7999", cfg.OCR)
	}
	if cfg.ActualHz != 1000.0 {
		t.Errorf("actual frequency = %g, want exactly 1000", cfg.ActualHz)
	}
	if cfg.ActualDutyPercent != 50.0 {
		t.Errorf("actual duty = %g, want exactly 50", cfg.ActualDutyPercent)
	}
}

func TestSolveLowFrequencyTimer1(t *testing.T) {
	// At 1 Hz the /256 divider is the first candidate whose TOP fits the
	// 16-bit counter: round(16e6/256) - 1 = 62499.
	out := solve(t, 16e6, 1, 50, avr.Timer1)
	if !out.Achievable() {
		t.Fatalf("unexpected failure: %s", out.Reason)
	}
	cfg := out.Config
	if cfg.Prescaler != 256 {
		t.Errorf("prescaler = %d, want 256", cfg.Prescaler)
	}
	if cfg.Top != 62499 {
		t.Errorf("top = %d, want 62499", cfg.Top)
	}
	if cfg.ActualHz != 1.0 {
		t.Errorf("actual frequency = %g, want exactly 1", cfg.ActualHz)
	}
}

func TestSolveNeedsLargestPrescaler(t *testing.T) {
	// 0.25 Hz forces /1024: round(16e6/(1024*0.25)) - 1 = 62499.
	out := solve(t, 16e6, 0.25, 50, avr.Timer1)
	if !out.Achievable() {
		t.Fatalf("unexpected failure: %s", out.Reason)
	}
	if out.Config.Prescaler != 1024 {
		t.Errorf("prescaler = %d, want 1024", out.Config.Prescaler)
	}
	if out.Config.Top != 62499 {
		t.Errorf("top = %d, want 62499", out.Config.Top)
	}
}

func TestSolveUnachievable(t *testing.T) {
	// 0.01 Hz: even /1024 needs TOP around 1.56 million.
	out := solve(t, 16e6, 0.01, 50, avr.Timer1)
	if out.Achievable() {
		t.Fatalf("expected failure, got config %+v", out.Config)
	}
	if out.Reason == "" {
		t.Error("unachievable outcome missing reason")
	}

	res := out.Result()
	if res.Error == "" {
		t.Error("result missing error")
	}
	if res.Top != 0 || res.OCR != 0 || res.ActualFrequency != 0 {
		t.Errorf("failed result should zero top/ocr/actualFrequency, got %+v", res)
	}
	if len(res.Registers) != 0 {
		t.Errorf("failed result should have empty registers, got %d", len(res.Registers))
	}
	// Requested values are preserved
	if res.Frequency != 0.01 || res.DutyCycle != 50 {
		t.Errorf("requested frequency/duty not preserved: %+v", res)
	}
}

func TestSolveZeroDutyClamp(t *testing.T) {
	out := solve(t, 16e6, 1000, 0, avr.Timer0)
	if !out.Achievable() {
		t.Fatalf("unexpected failure: %s", out.Reason)
	}
	cfg := out.Config
	if cfg.Prescaler != 64 || cfg.Top != 249 {
		t.Errorf("prescaler/top = %d/%d, want 64/249", cfg.Prescaler, cfg.Top)
	}
	if cfg.OCR != 0 {
		t.Errorf("ocr = %d, want 0 after clamp", cfg.OCR)
	}
	// One counter tick of high time remains; duty is not exactly zero.
	want := 1.0 / 250.0 * 100
	if math.Abs(cfg.ActualDutyPercent-want) > 1e-12 {
		t.Errorf("actual duty = %g, want %g", cfg.ActualDutyPercent, want)
	}
}

func TestSolveTimer2Registers(t *testing.T) {
	out := solve(t, 20e6, 500, 75, avr.Timer2)
	if !out.Achievable() {
		t.Fatalf("unexpected failure: %s", out.Reason)
	}
	cfg := out.Config
	if cfg.Prescaler != 256 || cfg.Top != 155 || cfg.OCR != 116 {
		t.Errorf("prescaler/top/ocr = %d/%d/%d, want 256/155/116", cfg.Prescaler, cfg.Top, cfg.OCR)
	}

	names := []string{"TCCR2A", "TCCR2B", "OCR2A", "OCR2B"}
	for i, name := range names {
		if cfg.Registers[i].Name != name {
			t.Errorf("register %d = %s, want %s", i, cfg.Registers[i].Name, name)
		}
	}
	// Timer 2 encodes /256 as CS=110.
	if cfg.Registers[1].Value != "0xE" {
		t.Errorf("TCCR2B = %s, want 0xE", cfg.Registers[1].Value)
	}
}

func TestSolveDeterminism(t *testing.T) {
	req := Request{ClockHz: 16e6, TargetHz: 440, DutyPercent: 33.3, Timer: avr.Timer1}
	first := Solve(req).Result()
	for i := 0; i < 10; i++ {
		if got := Solve(req).Result(); !reflect.DeepEqual(got, first) {
			t.Fatalf("solve not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestSolveMutualExclusivity(t *testing.T) {
	targets := []float64{0.001, 0.01, 0.1, 1, 10, 100, 1000, 10000, 1e5, 1e6, 1e7, 1e8}
	for _, timer := range []avr.Timer{avr.Timer0, avr.Timer1, avr.Timer2} {
		for _, target := range targets {
			res := solve(t, 16e6, target, 50, timer).Result()
			ok := res.Error == ""
			if ok != (len(res.Registers) > 0 && res.Top > 0) {
				t.Errorf("timer %d target %g: error=%q registers=%d top=%d violate exclusivity",
					res.Timer, target, res.Error, len(res.Registers), res.Top)
			}
		}
	}
}

func TestSolveSelectsSmallestPrescaler(t *testing.T) {
	targets := []float64{0.5, 1, 5, 30, 100, 245, 1000, 5000, 31250, 2e5}
	for _, timer := range []avr.Timer{avr.Timer0, avr.Timer1, avr.Timer2} {
		for _, target := range targets {
			out := solve(t, 16e6, target, 50, timer)
			if !out.Achievable() {
				continue
			}
			// No smaller candidate may have a valid TOP.
			for _, n := range avr.SearchPrescalers {
				if n >= out.Config.Prescaler {
					break
				}
				top := int(math.Round(16e6/(float64(n)*target))) - 1
				if top > 0 && top <= timer.MaxTop() {
					t.Errorf("timer %d target %g: picked %d but %d was valid",
						int(timer), target, out.Config.Prescaler, n)
				}
			}
		}
	}
}

func TestSolveBitWidthBound(t *testing.T) {
	for _, timer := range []avr.Timer{avr.Timer0, avr.Timer1, avr.Timer2} {
		for target := 1.0; target < 1e6; target *= 3.7 {
			out := solve(t, 16e6, target, 50, timer)
			if !out.Achievable() {
				continue
			}
			if out.Config.Top > timer.MaxTop() {
				t.Errorf("timer %d target %g: top %d exceeds %d",
					int(timer), target, out.Config.Top, timer.MaxTop())
			}
			if out.Config.OCR < 0 {
				t.Errorf("timer %d target %g: negative ocr %d", int(timer), target, out.Config.OCR)
			}
		}
	}
}

func TestSolveApproximationBound(t *testing.T) {
	for target := 0.3; target < 1e6; target *= 2.1 {
		out := solve(t, 16e6, target, 50, avr.Timer1)
		if !out.Achievable() {
			continue
		}
		relErr := math.Abs(out.Config.ActualHz-target) / target
		bound := 1.0 / float64(out.Config.Top)
		if relErr > bound {
			t.Errorf("target %g: relative error %g exceeds quantization bound %g (top %d)",
				target, relErr, bound, out.Config.Top)
		}
	}
}

func TestValidate(t *testing.T) {
	good := Request{ClockHz: 16e6, TargetHz: 1000, DutyPercent: 50, Timer: avr.Timer1}
	if err := good.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	cases := []struct {
		name string
		req  Request
	}{
		{"bad timer", Request{ClockHz: 16e6, TargetHz: 1000, DutyPercent: 50, Timer: 3}},
		{"zero clock", Request{ClockHz: 0, TargetHz: 1000, DutyPercent: 50, Timer: avr.Timer1}},
		{"negative target", Request{ClockHz: 16e6, TargetHz: -1, DutyPercent: 50, Timer: avr.Timer1}},
		{"duty over 100", Request{ClockHz: 16e6, TargetHz: 1000, DutyPercent: 101, Timer: avr.Timer1}},
		{"negative duty", Request{ClockHz: 16e6, TargetHz: 1000, DutyPercent: -0.5, Timer: avr.Timer1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.req.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestResultRoundTripShape(t *testing.T) {
	res := solve(t, 16e6, 1000, 50, avr.Timer1).Result()
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.Timer != 1 || res.Prescaler != 1 || res.Top != 15999 || res.OCR != 7999 {
		t.Errorf("result fields wrong: %+v", res)
	}
	if res.Frequency != 1000 || res.ActualFrequency != 1000 {
		t.Errorf("frequency fields wrong: %+v", res)
	}
	if len(res.Registers) != 4 {
		t.Errorf("got %d registers, want 4", len(res.Registers))
	}
}
