package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateRequired checks that a string field is not empty.
func ValidateRequired(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// ValidatePort checks that port is a usable TCP port.
func ValidatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return &ValidationError{Field: field, Message: "must be between 1 and 65535"}
	}
	return nil
}

// ValidatePositive checks that an integer setting is greater than zero.
func ValidatePositive(field string, n int) error {
	if n <= 0 {
		return &ValidationError{Field: field, Message: "must be greater than zero"}
	}
	return nil
}

// ValidateDuration checks that a duration setting is greater than zero.
func ValidateDuration(field string, d time.Duration) error {
	if d <= 0 {
		return &ValidationError{Field: field, Message: "must be a positive duration"}
	}
	return nil
}

// ValidateDurationRange checks 0 < lo <= hi.
func ValidateDurationRange(field string, lo, hi time.Duration) error {
	if lo <= 0 || hi < lo {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid range [%s, %s]", lo, hi),
		}
	}
	return nil
}

// ValidateRatio checks that r lies in (0, 1].
func ValidateRatio(field string, r float64) error {
	if r <= 0 || r > 1 {
		return &ValidationError{Field: field, Message: "must be in (0, 1]"}
	}
	return nil
}

// ValidateLogLevel checks if a log level is valid.
func ValidateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "warning", "error", "fatal":
		return nil
	default:
		return &ValidationError{Field: "logging.level", Message: "must be one of: debug, info, warn, error, fatal"}
	}
}
