// Package codegen renders a solved timer configuration as an AVR C
// fragment: the output pin set to output mode followed by one
// assignment per derived register. The fragment enumerates exactly the
// name/value pairs of the result's register list.
package codegen

import (
	"fmt"
	"strings"

	"avrpwm/pkg/pwm"
)

// C renders the setup fragment for a solved configuration. Returns an
// empty string for an unachievable outcome; there is nothing to set up.
func C(out pwm.Outcome) string {
	if out.Config == nil {
		return ""
	}

	pin := out.Request.Timer.Pin()
	var sb strings.Builder

	fmt.Fprintf(&sb, "// %s Fast PWM: %.4g Hz, %.4g%% duty (requested %.4g Hz, %.4g%%)\n",
		out.Request.Timer, out.Config.ActualHz, out.Config.ActualDutyPercent,
		out.Request.TargetHz, out.Request.DutyPercent)
	fmt.Fprintf(&sb, "DDR%s |= (1 << %s);  // %s (Arduino D%d) as output\n",
		pin.Port, pin.Name, pin.Name, pin.Arduino)
	for _, reg := range out.Config.Registers {
		fmt.Fprintf(&sb, "%s = %s;  // %s\n", reg.Name, reg.Value, reg.Description)
	}
	return sb.String()
}
