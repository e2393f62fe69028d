package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "endpoints[2].target_url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// allowedMethods is the set of HTTP methods an endpoint may declare.
var allowedMethods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"PATCH":   true,
	"HEAD":    true,
	"OPTIONS": true,
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateEndpoints(cfg.Endpoints)...)
	errs = append(errs, validateRetry("retry", &cfg.Retry)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}

	return errs
}

// validateEndpoints validates the endpoint table. Construction of the route
// table fails fast on any of these: an empty table, duplicate paths, paths
// not starting with "/", unknown methods or response types, malformed target
// URLs, out-of-bounds timeouts, or empty header names.
func validateEndpoints(endpoints []EndpointConfig) []FieldError {
	var errs []FieldError

	if len(endpoints) == 0 {
		errs = append(errs, FieldError{
			Field:   "endpoints",
			Message: "at least one endpoint must be configured",
		})
		return errs
	}

	seen := make(map[string]bool, len(endpoints))

	for i, e := range endpoints {
		prefix := fmt.Sprintf("endpoints[%d]", i)

		if e.Path == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".path",
				Message: "path is required",
			})
		} else {
			if !strings.HasPrefix(e.Path, "/") {
				errs = append(errs, FieldError{
					Field:   prefix + ".path",
					Message: "path must start with \"/\"",
				})
			}
			if seen[e.Path] {
				errs = append(errs, FieldError{
					Field:   prefix + ".path",
					Message: fmt.Sprintf("duplicate path %q", e.Path),
				})
			}
			seen[e.Path] = true
		}

		if e.TargetURL == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".target_url",
				Message: "target URL is required",
			})
		} else if u, err := url.Parse(e.TargetURL); err != nil {
			errs = append(errs, FieldError{
				Field:   prefix + ".target_url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, FieldError{
				Field:   prefix + ".target_url",
				Message: fmt.Sprintf("unsupported scheme %q (want http or https)", u.Scheme),
			})
		}

		if !allowedMethods[e.NormalizedMethod()] {
			errs = append(errs, FieldError{
				Field:   prefix + ".method",
				Message: fmt.Sprintf("unsupported HTTP method %q", e.Method),
			})
		}

		switch e.ResponseType {
		case ResponseJSON, ResponseSSE, ResponseStream, ResponseHTML:
		default:
			errs = append(errs, FieldError{
				Field:   prefix + ".response_type",
				Message: fmt.Sprintf("unknown response type %q", e.ResponseType),
			})
		}

		if e.TimeoutSeconds != 0 && (e.TimeoutSeconds < 1 || e.TimeoutSeconds > 3600) {
			errs = append(errs, FieldError{
				Field:   prefix + ".timeout_seconds",
				Message: "timeout must be between 1 and 3600 seconds",
			})
		}

		for j, name := range e.ForwardRequestHeaders {
			if strings.TrimSpace(name) == "" {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("%s.forward_request_headers[%d]", prefix, j),
					Message: "header name must not be empty",
				})
			}
		}
		for j, name := range e.ForwardResponseHeaders {
			if strings.TrimSpace(name) == "" {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("%s.forward_response_headers[%d]", prefix, j),
					Message: "header name must not be empty",
				})
			}
		}
		for name := range e.CustomHeaders {
			if strings.TrimSpace(name) == "" {
				errs = append(errs, FieldError{
					Field:   prefix + ".custom_headers",
					Message: "header name must not be empty",
				})
			}
		}

		if e.Retry != nil {
			errs = append(errs, validateRetry(prefix+".retry", e.Retry)...)
		}
	}

	return errs
}

func validateRetry(field string, p *RetryPolicy) []FieldError {
	var errs []FieldError

	if p.MaxAttempts < 1 || p.MaxAttempts > 10 {
		errs = append(errs, FieldError{
			Field:   field + ".max_attempts",
			Message: "max attempts must be between 1 and 10",
		})
	}
	if p.BaseDelay <= 0 {
		errs = append(errs, FieldError{
			Field:   field + ".base_delay",
			Message: "base delay must be positive",
		})
	}
	if p.MaxDelay < p.BaseDelay {
		errs = append(errs, FieldError{
			Field:   field + ".max_delay",
			Message: "max delay must be >= base delay",
		})
	}
	if p.MaxDelay > 600*time.Second {
		errs = append(errs, FieldError{
			Field:   field + ".max_delay",
			Message: "max delay must not exceed 600s",
		})
	}
	if p.Multiplier < 1.0 || p.Multiplier > 10.0 {
		errs = append(errs, FieldError{
			Field:   field + ".multiplier",
			Message: "multiplier must be between 1.0 and 10.0",
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown log level %q", cfg.Level),
		})
	}

	switch cfg.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown log format %q", cfg.Format),
		})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return nil
	}
	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "audit.path",
			Message: "database path is required when audit is enabled",
		})
	}
	if cfg.RetentionDays < 1 {
		errs = append(errs, FieldError{
			Field:   "audit.retention_days",
			Message: "retention must be at least one day",
		})
	}

	return errs
}
