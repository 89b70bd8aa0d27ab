// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"

	cerrors "netsys.dev/peeringcoord/internal/errors"
)

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every ValidationError found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	s := e[0].Error()
	for _, extra := range e[1:] {
		s += "; " + extra.Error()
	}
	return s
}

// Validate checks a decoded, defaulted Config for internal consistency.
func Validate(c *Config) error {
	var errs ValidationErrors

	if c.Listen == "" {
		errs = append(errs, ValidationError{"listen", "must not be empty"})
	}
	if c.DBPath == "" {
		errs = append(errs, ValidationError{"db_path", "must not be empty"})
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{"log_level", "must be one of debug, info, warn, error"})
	}
	if c.TLS != nil {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			errs = append(errs, ValidationError{"tls", "cert_file and key_file are both required when the tls block is present"})
		}
	}

	if len(errs) > 0 {
		return cerrors.Wrap(errs, cerrors.KindValidation, "invalid configuration")
	}
	return nil
}
