package config

import (
	"sort"
	"strings"

	"avrpwm/pkg/avr"
)

// Board describes one board profile: a named oscillator configuration
// with a preferred timer.
type Board struct {
	// Name is the profile name (the part after "board " in the header).
	Name string

	// ClockHz is the oscillator frequency in Hz.
	ClockHz float64

	// Timer is the timer used when the caller does not pick one.
	Timer avr.Timer

	// Description is free-form text for listings.
	Description string
}

// Profiles holds the parsed board profiles and calculation defaults.
type Profiles struct {
	boards map[string]*Board
	order  []string

	// DefaultDuty is the duty cycle used when none is given, percent.
	DefaultDuty float64

	// DefaultTimer is the timer used when neither the request nor the
	// board names one.
	DefaultTimer avr.Timer
}

// builtinBoards are always available, config sections override them.
var builtinBoards = []Board{
	{Name: "uno", ClockHz: 16e6, Timer: avr.Timer1, Description: "Arduino Uno (16 MHz)"},
	{Name: "nano", ClockHz: 16e6, Timer: avr.Timer1, Description: "Arduino Nano (16 MHz)"},
	{Name: "pro-mini-3v3", ClockHz: 8e6, Timer: avr.Timer1, Description: "Arduino Pro Mini 3.3V (8 MHz)"},
	{Name: "bare-1mhz", ClockHz: 1e6, Timer: avr.Timer1, Description: "Bare ATmega328P, internal RC / CKDIV8 (1 MHz)"},
}

// DefaultProfiles returns the built-in profiles with no config applied.
func DefaultProfiles() *Profiles {
	p := &Profiles{
		boards:       make(map[string]*Board),
		DefaultDuty:  50,
		DefaultTimer: avr.Timer1,
	}
	for i := range builtinBoards {
		b := builtinBoards[i]
		p.boards[b.Name] = &b
		p.order = append(p.order, b.Name)
	}
	return p
}

// ParseProfiles builds Profiles from a parsed Config, layered over the
// built-in boards. Recognized sections: [defaults] with duty_cycle and
// timer options, and any number of [board <name>] sections with clock,
// timer and description options.
func ParseProfiles(cfg *Config) (*Profiles, error) {
	p := DefaultProfiles()

	if sec := cfg.GetSectionOptional("defaults"); sec != nil {
		duty, err := sec.GetFloatInRange("duty_cycle", 0, 100, p.DefaultDuty)
		if err != nil {
			return nil, err
		}
		p.DefaultDuty = duty

		timer, err := parseTimerOption(sec, p.DefaultTimer)
		if err != nil {
			return nil, err
		}
		p.DefaultTimer = timer
	}

	for _, sec := range cfg.GetPrefixSections("board ") {
		name := strings.TrimSpace(strings.TrimPrefix(sec.GetName(), "board "))
		if name == "" {
			return nil, ErrMissingOption(sec.GetName(), "name")
		}

		clock, err := sec.GetFloat("clock")
		if err != nil {
			return nil, err
		}
		if clock <= 0 {
			return nil, ErrOutOfRange(sec.GetName(), "clock", clock, "must be positive")
		}

		timer, err := parseTimerOption(sec, p.DefaultTimer)
		if err != nil {
			return nil, err
		}

		desc, _ := sec.Get("description", "")

		board := &Board{Name: name, ClockHz: clock, Timer: timer, Description: desc}
		if _, exists := p.boards[name]; !exists {
			p.order = append(p.order, name)
		}
		p.boards[name] = board
	}

	return p, nil
}

// LoadProfiles reads a profile config file.
func LoadProfiles(path string) (*Profiles, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return ParseProfiles(cfg)
}

func parseTimerOption(sec *Section, fallback avr.Timer) (avr.Timer, error) {
	n, err := sec.GetInt("timer", int(fallback))
	if err != nil {
		return 0, err
	}
	t := avr.Timer(n)
	if !t.Valid() {
		return 0, ErrOutOfRange(sec.GetName(), "timer", float64(n), "must be 0, 1 or 2")
	}
	return t, nil
}

// Board returns the named board profile.
func (p *Profiles) Board(name string) (*Board, error) {
	b, ok := p.boards[name]
	if !ok {
		return nil, ErrMissingSection("board " + name)
	}
	return b, nil
}

// Boards returns all board profiles, built-ins first, in definition order.
func (p *Profiles) Boards() []*Board {
	result := make([]*Board, 0, len(p.order))
	for _, name := range p.order {
		result = append(result, p.boards[name])
	}
	return result
}

// BoardNames returns all profile names sorted alphabetically.
func (p *Profiles) BoardNames() []string {
	names := make([]string, 0, len(p.boards))
	for name := range p.boards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
