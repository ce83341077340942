package avr

import "testing"

func TestHex(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "0x0"},
		{10, "0xA"},
		{0x82, "0x82"},
		{15999, "0x3E7F"},
		{0xFFFF, "0xFFFF"},
	}
	for _, tc := range cases {
		if got := Hex(tc.in); got != tc.want {
			t.Errorf("Hex(%d) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestRegistersTimer1(t *testing.T) {
	regs, err := Timer1.Registers(1, 15999, 7999)
	if err != nil {
		t.Fatalf("Registers failed: %v", err)
	}
	want := []struct{ name, value string }{
		{"TCCR1A", "0x82"},
		{"TCCR1B", "0x19"}, // WGM13|WGM12 | CS=001
		{"ICR1", "0x3E7F"},
		{"OCR1A", "0x1F3F"},
	}
	if len(regs) != len(want) {
		t.Fatalf("got %d registers, want %d", len(regs), len(want))
	}
	for i, w := range want {
		if regs[i].Name != w.name || regs[i].Value != w.value {
			t.Errorf("register %d = %s=%s, want %s=%s", i, regs[i].Name, regs[i].Value, w.name, w.value)
		}
		if regs[i].Description == "" {
			t.Errorf("register %s missing description", regs[i].Name)
		}
	}
}

func TestRegistersTimer1Prescaler1024(t *testing.T) {
	regs, err := Timer1.Registers(1024, 15624, 7812)
	if err != nil {
		t.Fatalf("Registers failed: %v", err)
	}
	// TCCR1B = WGM13|WGM12 | CS=101
	if regs[1].Value != "0x1D" {
		t.Errorf("TCCR1B = %s, want 0x1D", regs[1].Value)
	}
}

func TestRegistersTimer0(t *testing.T) {
	regs, err := Timer0.Registers(64, 249, 124)
	if err != nil {
		t.Fatalf("Registers failed: %v", err)
	}
	want := []struct{ name, value string }{
		{"TCCR0A", "0x23"},
		{"TCCR0B", "0xB"}, // WGM02 | CS=011
		{"OCR0A", "0xF9"},
		{"OCR0B", "0x7C"},
	}
	for i, w := range want {
		if regs[i].Name != w.name || regs[i].Value != w.value {
			t.Errorf("register %d = %s=%s, want %s=%s", i, regs[i].Name, regs[i].Value, w.name, w.value)
		}
	}
}

func TestRegistersTimer2Names(t *testing.T) {
	regs, err := Timer2.Registers(256, 155, 116)
	if err != nil {
		t.Fatalf("Registers failed: %v", err)
	}
	names := []string{"TCCR2A", "TCCR2B", "OCR2A", "OCR2B"}
	for i, name := range names {
		if regs[i].Name != name {
			t.Errorf("register %d name = %s, want %s", i, regs[i].Name, name)
		}
	}
	// Timer 2 encodes /256 as CS=110, so TCCR2B = 0x08 | 0x06.
	if regs[1].Value != "0xE" {
		t.Errorf("TCCR2B = %s, want 0xE", regs[1].Value)
	}
}

func TestRegistersClampNegativeOCR(t *testing.T) {
	regs, err := Timer0.Registers(64, 249, -1)
	if err != nil {
		t.Fatalf("Registers failed: %v", err)
	}
	if regs[3].Value != "0x0" {
		t.Errorf("OCR0B = %s, want 0x0 after clamp", regs[3].Value)
	}
}

func TestRegistersUnknownPrescaler(t *testing.T) {
	if _, err := Timer1.Registers(32, 100, 50); err == nil {
		t.Error("expected error for prescaler 32 on timer 1")
	}
}
