package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pilotdeck/pilotdeck/internal/logging"
)

// Validator is the interface for validating configuration.
type Validator interface {
	Validate() error
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors.
type MultiValidationError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "validation failed with %d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

// Validate validates ClientConfig.
func (c *ClientConfig) Validate() error {
	var errs []ValidationError
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if c.Server.BaseURL == "" {
		add("server.base_url", "server URL is required")
	} else if u, err := url.Parse(c.Server.BaseURL); err != nil {
		add("server.base_url", fmt.Sprintf("invalid URL: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("server.base_url", "scheme must be http or https")
	} else if u.Host == "" {
		add("server.base_url", "host is required")
	}

	if !strings.HasPrefix(c.Stream.Path, "/") {
		add("stream.path", "path must start with /")
	}
	if c.Stream.BaseDelay <= 0 {
		add("stream.base_delay", "base delay must be positive")
	}
	if c.Stream.MaxDelay <= 0 {
		add("stream.max_delay", "max delay must be positive")
	} else if c.Stream.MaxDelay < c.Stream.BaseDelay {
		add("stream.max_delay", "max delay must not be less than base delay")
	}
	if c.Stream.MaxAttempts <= 0 {
		add("stream.max_attempts", "max attempts must be positive")
	}
	if c.Stream.StableAfter < 0 {
		add("stream.stable_after", "stable_after must not be negative")
	}

	if c.Bus.MaxListeners < 0 {
		add("bus.max_listeners", "max listeners must not be negative")
	}
	if c.Notify.Capacity < 0 {
		add("notify.capacity", "capacity must not be negative")
	}

	if _, ok := logging.LookupLevel(c.Logging.Level); !ok {
		add("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}
