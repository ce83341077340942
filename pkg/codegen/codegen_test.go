package codegen

import (
	"strings"
	"testing"

	"avrpwm/pkg/avr"
	"avrpwm/pkg/pwm"
)

func TestCTimer1(t *testing.T) {
	out := pwm.Solve(pwm.Request{ClockHz: 16e6, TargetHz: 1000, DutyPercent: 50, Timer: avr.Timer1})
	if !out.Achievable() {
		t.Fatalf("solve failed: %s", out.Reason)
	}

	code := C(out)
	if !strings.Contains(code, "DDRB |= (1 << PB1);") {
		t.Errorf("missing pin setup:\n%s", code)
	}

	// Every derived register must appear with its exact value.
	for _, reg := range out.Config.Registers {
		want := reg.Name + " = " + reg.Value + ";"
		if !strings.Contains(code, want) {
			t.Errorf("missing %q in:\n%s", want, code)
		}
	}
}

func TestCTimer0Pin(t *testing.T) {
	out := pwm.Solve(pwm.Request{ClockHz: 16e6, TargetHz: 1000, DutyPercent: 25, Timer: avr.Timer0})
	if !out.Achievable() {
		t.Fatalf("solve failed: %s", out.Reason)
	}
	code := C(out)
	if !strings.Contains(code, "DDRD |= (1 << PD5);") {
		t.Errorf("timer0 should drive PD5:\n%s", code)
	}
	if !strings.Contains(code, "TCCR0A = ") {
		t.Errorf("missing TCCR0A assignment:\n%s", code)
	}
}

func TestCUnachievable(t *testing.T) {
	out := pwm.Solve(pwm.Request{ClockHz: 16e6, TargetHz: 0.001, DutyPercent: 50, Timer: avr.Timer0})
	if out.Achievable() {
		t.Fatal("expected unachievable outcome")
	}
	if code := C(out); code != "" {
		t.Errorf("expected empty snippet, got:\n%s", code)
	}
}
