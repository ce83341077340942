package config

import (
	"fmt"
	"strings"

	"avrpwm/pkg/errors"
)

// ErrMissingSection reports a section that does not exist.
func ErrMissingSection(section string) error {
	return errors.ConfigSectionError(section)
}

// ErrMissingOption reports an option that does not exist and has no
// fallback.
func ErrMissingOption(section, option string) error {
	return errors.ConfigOptionError(section, option)
}

// ErrInvalidValue reports an option value that cannot be parsed as the
// requested type.
func ErrInvalidValue(section, option, value, targetType string) error {
	return errors.ConfigTypeError(section, option, value, targetType)
}

// ErrOutOfRange reports an option value outside its allowed bounds.
func ErrOutOfRange(section, option string, value float64, reason string) error {
	return errors.ConfigValidationError(section, option,
		fmt.Sprintf("value %g %s", value, reason))
}

// ErrInvalidChoice reports an option value not in the allowed set.
func ErrInvalidChoice(section, option, value string, choices []string) error {
	return errors.ConfigValidationError(section, option,
		fmt.Sprintf("'%s' is not one of: %s", value, strings.Join(choices, ", ")))
}
