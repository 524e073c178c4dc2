package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "timeouts.connect_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateService()...)
	errors = append(errors, c.validateTimeouts()...)
	errors = append(errors, c.validateLock()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateService validates the ServiceConfig
func (c *Config) validateService() []ValidationError {
	var errors []ValidationError

	if c.Service.Component != "" {
		const maxPathLength = 4096
		if len(c.Service.Component) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   "service.component",
				Value:   c.Service.Component,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
		if strings.ContainsRune(c.Service.Component, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "service.component",
				Value:   c.Service.Component,
				Message: "path contains invalid null character",
			})
		}
	}

	if c.Service.UserID < 0 {
		errors = append(errors, ValidationError{
			Field:   "service.user_id",
			Value:   c.Service.UserID,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateTimeouts validates the TimeoutConfig
func (c *Config) validateTimeouts() []ValidationError {
	var errors []ValidationError

	const minTimeoutMs = 100
	const maxTimeoutMs = 300_000 // 5 minutes

	checks := []struct {
		field string
		value int
	}{
		{"timeouts.connect_ms", c.Timeouts.ConnectMs},
		{"timeouts.finish_ms", c.Timeouts.FinishMs},
		{"timeouts.lock_release_fallback_ms", c.Timeouts.LockReleaseFallbackMs},
	}
	for _, check := range checks {
		if check.value < minTimeoutMs {
			errors = append(errors, ValidationError{
				Field:   check.field,
				Value:   check.value,
				Message: fmt.Sprintf("must be at least %dms", minTimeoutMs),
			})
		}
		if check.value > maxTimeoutMs {
			errors = append(errors, ValidationError{
				Field:   check.field,
				Value:   check.value,
				Message: fmt.Sprintf("exceeds maximum of %dms", maxTimeoutMs),
			})
		}
	}

	// The fallback should outlast the connect watchdog: a session that
	// times out connecting releases its lock through teardown anyway, and
	// a shorter fallback just races it.
	if c.Timeouts.LockReleaseFallbackMs < c.Timeouts.ConnectMs {
		errors = append(errors, ValidationError{
			Field:   "timeouts.lock_release_fallback_ms",
			Value:   c.Timeouts.LockReleaseFallbackMs,
			Message: fmt.Sprintf("should be at least connect_ms (%d)", c.Timeouts.ConnectMs),
		})
	}

	return errors
}

// validateLock validates the LockConfig
func (c *Config) validateLock() []ValidationError {
	var errors []ValidationError

	if c.Lock.Dir != "" {
		if strings.ContainsRune(c.Lock.Dir, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "lock.dir",
				Value:   c.Lock.Dir,
				Message: "path contains invalid null character",
			})
		}

		const maxPathLength = 4096
		if len(c.Lock.Dir) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   "lock.dir",
				Value:   c.Lock.Dir,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
