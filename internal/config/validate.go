package config

import (
	"fmt"
	"net/url"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// DATABASE_URL is required
	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	// NOTIFY_URL must be an absolute http(s) URL when set
	if cfg.NotifyURL != "" {
		u, err := url.Parse(cfg.NotifyURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "NOTIFY_URL",
				Message: fmt.Sprintf("must be an absolute http(s) URL, got %q", cfg.NotifyURL),
			})
		}
	}

	// JWT_SECRET is required; without it no request can be authenticated
	if cfg.JWTSecret == "" {
		errs = append(errs, ValidationError{
			Field:   "JWT_SECRET",
			Message: "required",
		})
	}

	// RESYNC_INTERVAL must be a valid positive duration
	if cfg.ResyncIntervalStr != "" {
		d, err := time.ParseDuration(cfg.ResyncIntervalStr)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "RESYNC_INTERVAL",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "RESYNC_INTERVAL",
				Message: "must be positive",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
