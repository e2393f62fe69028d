package config

import (
	"strings"
	"time"
)

// Config is the root configuration structure for Prismgate.
// It contains the proxy endpoint table plus ambient settings for
// logging, telemetry, and the request audit trail.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Endpoints is the declarative endpoint table. Each entry maps a local
	// path and method to an upstream target with forwarding policy.
	Endpoints []EndpointConfig `yaml:"endpoints"`

	// Retry is the global default retry policy, applied to any endpoint
	// that does not carry its own override.
	Retry RetryPolicy `yaml:"retry"`

	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Audit contains configuration for the SQLite request audit trail.
	Audit AuditConfig `yaml:"audit"`

	// Watch enables automatic reloading when the configuration file changes.
	// The endpoint table is rebuilt and swapped atomically on reload.
	// Default: false
	Watch bool `yaml:"watch"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:3000").
	// Default: "127.0.0.1:3000"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// ResponseType declares how an endpoint's upstream response is transcoded
// before being returned to the caller.
type ResponseType string

const (
	// ResponseJSON buffers the upstream body and re-emits it as JSON,
	// falling back to text/plain when the body does not parse.
	ResponseJSON ResponseType = "json"

	// ResponseSSE re-frames the upstream byte stream as Server-Sent Events.
	ResponseSSE ResponseType = "sse"

	// ResponseStream relays the upstream bytes, streaming incrementally when
	// the upstream content type indicates a stream.
	ResponseStream ResponseType = "stream"

	// ResponseHTML buffers the upstream body and re-emits it as text/html.
	ResponseHTML ResponseType = "html"
)

// EndpointConfig describes one proxied endpoint: a local route mapped to an
// upstream target with header-forwarding and response-handling policy.
type EndpointConfig struct {
	// Path is the local route path. Must be unique, non-empty, and start
	// with "/".
	Path string `yaml:"path"`

	// TargetURL is the upstream URL requests are forwarded to.
	// Must parse with scheme http or https.
	TargetURL string `yaml:"target_url"`

	// Method is the HTTP method for this route (GET, POST, PUT, DELETE,
	// PATCH, HEAD, OPTIONS; case-insensitive).
	Method string `yaml:"method"`

	// ResponseType selects the transcoding mode for upstream responses.
	ResponseType ResponseType `yaml:"response_type"`

	// CustomHeaders are set on the outbound request, overwriting any
	// forwarded header of the same name. No ordering guarantee.
	CustomHeaders map[string]string `yaml:"custom_headers"`

	// ForwardRequestHeaders lists inbound header names copied to the
	// outbound request when present. Matching is case-insensitive.
	ForwardRequestHeaders []string `yaml:"forward_request_headers"`

	// ForwardResponseHeaders lists upstream header names copied to the
	// client response when present.
	ForwardResponseHeaders []string `yaml:"forward_response_headers"`

	// Enabled controls whether the endpoint is mounted.
	Enabled bool `yaml:"enabled"`

	// TimeoutSeconds is an optional per-route timeout for the outbound
	// call, in seconds (1–3600). Zero means no per-route timeout.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// Retry is an optional per-route retry policy override.
	Retry *RetryPolicy `yaml:"retry"`
}

// NormalizedMethod returns the endpoint method in canonical upper-case form.
func (e *EndpointConfig) NormalizedMethod() string {
	return strings.ToUpper(strings.TrimSpace(e.Method))
}

// Timeout returns the per-route timeout, or zero when none is configured.
func (e *EndpointConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// RetryPolicy controls retry-with-backoff behavior for outbound calls.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first (1–10).
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay is the delay before the first retry.
	// Default: 100ms
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps the backoff delay (must be >= BaseDelay, <= 600s).
	// Default: 10s
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier is the exponential backoff multiplier (1.0–10.0).
	// Default: 2.0
	Multiplier float64 `yaml:"multiplier"`
}

// NextDelay returns the backoff delay following the given one, capped at
// MaxDelay.
func (p RetryPolicy) NextDelay(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * p.Multiplier)
	if next > p.MaxDelay {
		return p.MaxDelay
	}
	return next
}

// ResolveRetry returns the effective retry policy for an endpoint: the
// endpoint override when present, otherwise the global default.
func (c *Config) ResolveRetry(e *EndpointConfig) RetryPolicy {
	if e != nil && e.Retry != nil {
		return *e.Retry
	}
	return c.Retry
}

// EnabledEndpoints returns the endpoints with Enabled set, preserving order.
func (c *Config) EnabledEndpoints() []EndpointConfig {
	out := make([]EndpointConfig, 0, len(c.Endpoints))
	for _, e := range c.Endpoints {
		if e.Enabled {
			out = append(out, e)
		}
	}
	return out
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// File is an optional log file path. When set, logs are written to the
	// file with size-based rotation instead of stdout.
	File string `yaml:"file"`

	// MaxSizeMB is the maximum size of the log file before rotation.
	// Default: 100
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to retain.
	// Default: 5
	MaxBackups int `yaml:"max_backups"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path the metrics handler is mounted on.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the Prometheus metric namespace.
	// Default: "prismgate"
	Namespace string `yaml:"namespace"`
}

// AuditConfig contains configuration for the request audit trail.
type AuditConfig struct {
	// Enabled controls whether proxied requests are recorded.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// RetentionDays is how long audit records are kept before pruning.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for scheduled pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}
