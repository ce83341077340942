package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadString(t *testing.T) {
	data := `
[defaults]
duty_cycle: 50
timer: 1

[board custom]
clock: 20000000
timer: 2
description: 20 MHz crystal build
`

	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}

	if !cfg.HasSection("defaults") {
		t.Error("expected [defaults] section to exist")
	}
	if !cfg.HasSection("board custom") {
		t.Error("expected [board custom] section to exist")
	}
	if cfg.HasSection("nonexistent") {
		t.Error("expected [nonexistent] section to not exist")
	}

	sec, err := cfg.GetSection("board custom")
	if err != nil {
		t.Fatalf("GetSection failed: %v", err)
	}
	clock, err := sec.GetFloat("clock")
	if err != nil {
		t.Fatalf("GetFloat(clock) failed: %v", err)
	}
	if clock != 20000000 {
		t.Errorf("clock = %g, want 20000000", clock)
	}

	desc, err := sec.Get("description")
	if err != nil {
		t.Fatalf("Get(description) failed: %v", err)
	}
	if desc != "20 MHz crystal build" {
		t.Errorf("description = %q", desc)
	}
}

func TestSectionGetters(t *testing.T) {
	data := `
[test]
string_val: hello
int_val: 42
float_val: 3.14
bool_true: yes
bool_false: 0
choice_val: json
`

	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	sec, _ := cfg.GetSection("test")

	if v, _ := sec.Get("missing", "default"); v != "default" {
		t.Errorf("fallback = %q, want default", v)
	}
	if _, err := sec.Get("missing"); err == nil {
		t.Error("expected error for missing option without fallback")
	}

	if i, _ := sec.GetInt("int_val"); i != 42 {
		t.Errorf("int = %d, want 42", i)
	}
	if _, err := sec.GetInt("string_val"); err == nil {
		t.Error("expected type error parsing string as int")
	}

	if f, _ := sec.GetFloat("float_val"); f != 3.14 {
		t.Errorf("float = %g, want 3.14", f)
	}

	if b, _ := sec.GetBool("bool_true"); !b {
		t.Error("bool_true should parse as true")
	}
	if b, _ := sec.GetBool("bool_false"); b {
		t.Error("bool_false should parse as false")
	}

	if v, err := sec.GetChoice("choice_val", []string{"text", "json"}); err != nil || v != "json" {
		t.Errorf("choice = %q, err %v", v, err)
	}
	if _, err := sec.GetChoice("string_val", []string{"text", "json"}); err == nil {
		t.Error("expected choice error")
	}
}

func TestGetFloatInRange(t *testing.T) {
	cfg, _ := LoadString("[test]\nduty: 150\nok: 75\n")
	sec, _ := cfg.GetSection("test")

	if _, err := sec.GetFloatInRange("duty", 0, 100); err == nil {
		t.Error("expected out-of-range error for 150")
	}
	if v, err := sec.GetFloatInRange("ok", 0, 100); err != nil || v != 75 {
		t.Errorf("in-range value rejected: %g, %v", v, err)
	}
	if v, err := sec.GetFloatInRange("missing", 0, 100, 50); err != nil || v != 50 {
		t.Errorf("fallback rejected: %g, %v", v, err)
	}
}

func TestComments(t *testing.T) {
	data := `
[board x]  # trailing comment
clock: 8000000  ; semicolon comment
# full line comment
`
	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	sec, err := cfg.GetSection("board x")
	if err != nil {
		t.Fatalf("GetSection failed: %v", err)
	}
	if clock, _ := sec.GetFloat("clock"); clock != 8000000 {
		t.Errorf("clock = %g, want 8000000", clock)
	}
}

func TestSectionMerge(t *testing.T) {
	data := `
[board x]
clock: 8000000

[board x]
timer: 2
`
	cfg, _ := LoadString(data)
	sec, _ := cfg.GetSection("board x")
	if clock, _ := sec.GetFloat("clock"); clock != 8000000 {
		t.Error("first section's options lost in merge")
	}
	if timer, _ := sec.GetInt("timer"); timer != 2 {
		t.Error("second section's options lost in merge")
	}
}

func TestLoadFileWithInclude(t *testing.T) {
	dir := t.TempDir()

	extra := filepath.Join(dir, "boards.cfg")
	if err := os.WriteFile(extra, []byte("[board extra]\nclock: 12000000\n"), 0644); err != nil {
		t.Fatal(err)
	}

	main := filepath.Join(dir, "main.cfg")
	if err := os.WriteFile(main, []byte("[defaults]\nduty_cycle: 25\n\n[include boards.cfg]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(main)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.HasSection("board extra") {
		t.Error("included section missing")
	}
	sec, _ := cfg.GetSection("defaults")
	if duty, _ := sec.GetFloat("duty_cycle"); duty != 25 {
		t.Errorf("duty_cycle = %g, want 25", duty)
	}
}

func TestUnusedTracking(t *testing.T) {
	cfg, _ := LoadString("[used]\na: 1\nb: 2\n\n[unused]\nc: 3\n")
	sec, _ := cfg.GetSection("used")
	sec.GetInt("a")

	unusedSections := cfg.GetUnusedSections()
	if len(unusedSections) != 1 || unusedSections[0] != "unused" {
		t.Errorf("unused sections = %v, want [unused]", unusedSections)
	}

	unusedOptions := sec.GetUnusedOptions()
	if len(unusedOptions) != 1 || unusedOptions[0] != "b" {
		t.Errorf("unused options = %v, want [b]", unusedOptions)
	}
}
