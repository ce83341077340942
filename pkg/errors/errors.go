// Unified error handling for the avrpwm tool
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	"fmt"
	"runtime"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrConfigType       ErrorCode = "CONFIG_TYPE"

	// Calculation errors
	ErrCalcInput        ErrorCode = "CALC_INPUT"
	ErrCalcUnachievable ErrorCode = "CALC_UNACHIEVABLE"

	// API errors
	ErrAPIRequest ErrorCode = "API_REQUEST"

	// Runtime errors
	ErrRuntime     ErrorCode = "RUNTIME"
	ErrRuntimeInit ErrorCode = "RUNTIME_INIT"
)

// CalcError is the unified error type for the tool
type CalcError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Section is the config section or context
	Section string

	// Option is the config option or request field name (if applicable)
	Option string

	// Err wraps the underlying error
	Err error

	// Context provides additional context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *CalcError) Error() string {
	if e.Section != "" || e.Option != "" {
		return fmt.Sprintf("[%s:%s:%s] %s", e.Code, e.Section, e.Option, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *CalcError) Unwrap() error {
	return e.Err
}

// SetSection sets the context section
func (e *CalcError) SetSection(section string) *CalcError {
	e.Section = section
	return e
}

// SetOption sets the config option or field name
func (e *CalcError) SetOption(option string) *CalcError {
	e.Option = option
	return e
}

// SetContext adds additional context
func (e *CalcError) SetContext(key string, value interface{}) *CalcError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new CalcError
func New(code ErrorCode, message string) *CalcError {
	return &CalcError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *CalcError {
	return &CalcError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Config errors

// ConfigSectionError creates an error for a missing config section
func ConfigSectionError(section string) *CalcError {
	return New(ErrConfigSection, fmt.Sprintf("section '%s' not found", section)).
		SetSection(section)
}

// ConfigOptionError creates an error for a missing config option
func ConfigOptionError(section, option string) *CalcError {
	return New(ErrConfigOption, fmt.Sprintf("option '%s' not found in section '%s'", option, section)).
		SetSection(section).
		SetOption(option)
}

// ConfigValidationError creates an error for a config validation failure
func ConfigValidationError(section, option string, reason string) *CalcError {
	return New(ErrConfigValidation, fmt.Sprintf("option '%s' in section '%s': %s", option, section, reason)).
		SetSection(section).
		SetOption(option)
}

// ConfigTypeError creates an error for a config type conversion failure
func ConfigTypeError(section, option, value string, targetType string) *CalcError {
	return New(ErrConfigType, fmt.Sprintf("option '%s' in section '%s': failed to parse '%s' as %s", option, section, value, targetType)).
		SetSection(section).
		SetOption(option)
}

// Calculation errors

// InputError creates an error for an invalid solver input
func InputError(field string, reason string) *CalcError {
	return New(ErrCalcInput, fmt.Sprintf("invalid %s: %s", field, reason)).
		SetOption(field)
}

// UnachievableError creates an error for a frequency no prescaler can reach
func UnachievableError(reason string) *CalcError {
	return New(ErrCalcUnachievable, reason)
}

// API errors

// APIRequestError creates an error for a malformed API request
func APIRequestError(reason string) *CalcError {
	return New(ErrAPIRequest, reason)
}

// Runtime errors

// RuntimeError creates a general runtime error
func RuntimeError(message string) *CalcError {
	return New(ErrRuntime, message)
}

// RuntimeInitError creates an error for an initialization failure
func RuntimeInitError(component string, reason string) *CalcError {
	return New(ErrRuntimeInit, fmt.Sprintf("failed to initialize %s: %s", component, reason))
}

// RecoverPanic safely recovers from panic and converts to error
func RecoverPanic() *CalcError {
	if r := recover(); r != nil {
		switch x := r.(type) {
		case string:
			return RuntimeError(fmt.Sprintf("panic: %s", x))
		case runtime.Error:
			return RuntimeError(x.Error())
		case error:
			return RuntimeError(x.Error())
		default:
			return RuntimeError(fmt.Sprintf("panic: %v", x))
		}
	}
	return nil
}

// Is checks if error matches given error code
func Is(err error, code ErrorCode) bool {
	if calcErr, ok := err.(*CalcError); ok {
		return calcErr.Code == code
	}
	return false
}

// IsConfig checks if error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigSection) ||
		Is(err, ErrConfigOption) ||
		Is(err, ErrConfigValidation) ||
		Is(err, ErrConfigType)
}

// IsCalc checks if error is a calculation error
func IsCalc(err error) bool {
	return Is(err, ErrCalcInput) || Is(err, ErrCalcUnachievable)
}
