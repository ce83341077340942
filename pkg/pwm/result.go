package pwm

import "avrpwm/pkg/avr"

// Result is the flat record shape presented to CLI and API consumers.
// When Error is empty the configuration fields are meaningful; when it
// is set they are zero placeholders and Registers is empty. The two
// states are mutually exclusive.
type Result struct {
	Timer           int            `json:"timer"`
	Prescaler       int            `json:"prescaler"`
	Top             int            `json:"top"`
	OCR             int            `json:"ocr"`
	Frequency       float64        `json:"frequency"`
	ActualFrequency float64        `json:"actualFrequency"`
	DutyCycle       float64        `json:"dutyCycle"`
	ActualDutyCycle float64        `json:"actualDutyCycle"`
	Error           string         `json:"error,omitempty"`
	Registers       []avr.Register `json:"registers"`
}

// Result flattens the outcome into the serializable record, preserving
// the requested frequency and duty cycle in both states.
func (o Outcome) Result() Result {
	res := Result{
		Timer:     int(o.Request.Timer),
		Frequency: o.Request.TargetHz,
		DutyCycle: o.Request.DutyPercent,
		Registers: []avr.Register{},
	}

	if o.Config == nil {
		res.Error = o.Reason
		return res
	}

	res.Prescaler = o.Config.Prescaler
	res.Top = o.Config.Top
	res.OCR = o.Config.OCR
	res.ActualFrequency = o.Config.ActualHz
	res.ActualDutyCycle = o.Config.ActualDutyPercent
	res.Registers = o.Config.Registers
	return res
}
