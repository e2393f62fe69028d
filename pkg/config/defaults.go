package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:3000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Retry defaults
	DefaultRetryMaxAttempts = 3
	DefaultRetryBaseDelay   = 100 * time.Millisecond
	DefaultRetryMaxDelay    = 10 * time.Second
	DefaultRetryMultiplier  = 2.0

	// Logging defaults
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultLogMaxSizeMB  = 100
	DefaultLogMaxBackups = 5

	// Metrics defaults
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "prismgate"

	// Audit defaults
	DefaultAuditPath          = "data/audit.db"
	DefaultAuditRetentionDays = 30
	DefaultAuditPruneSchedule = "0 3 * * *"
)

// DefaultRetryPolicy returns the built-in retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultRetryMaxAttempts,
		BaseDelay:   DefaultRetryBaseDelay,
		MaxDelay:    DefaultRetryMaxDelay,
		Multiplier:  DefaultRetryMultiplier,
	}
}

// standardRequestHeaders is the header-forwarding set shared by most
// provider endpoints.
var standardRequestHeaders = []string{
	"authorization",
	"content-type",
	"user-agent",
	"accept",
	"accept-encoding",
}

var standardResponseHeaders = []string{
	"content-type",
	"cache-control",
}

// DefaultConfig returns a configuration with the built-in endpoint table.
// It is used when no configuration file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:   DefaultListenAddress,
			ReadTimeout:     DefaultReadTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxHeaderBytes:  DefaultMaxHeaderBytes,
		},
		Retry: DefaultRetryPolicy(),
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
		},
		Metrics: MetricsConfig{
			Enabled:   DefaultMetricsEnabled,
			Path:      DefaultMetricsPath,
			Namespace: DefaultMetricsNamespace,
		},
		Audit: AuditConfig{
			Enabled:       false,
			Path:          DefaultAuditPath,
			RetentionDays: DefaultAuditRetentionDays,
			PruneSchedule: DefaultAuditPruneSchedule,
		},
		Endpoints: defaultEndpoints(),
	}
}

// defaultEndpoints returns the built-in endpoint table covering the
// OpenAI-compatible, Anthropic, Google Gemini, Cerebras, and LLM relay
// upstreams.
func defaultEndpoints() []EndpointConfig {
	return []EndpointConfig{
		{
			Path:                   "/api/provider/openai/v1/chat/completions",
			TargetURL:              "https://api-key.info/v1/chat/completions",
			Method:                 "POST",
			ResponseType:           ResponseStream,
			ForwardRequestHeaders:  standardRequestHeaders,
			ForwardResponseHeaders: standardResponseHeaders,
			Enabled:                true,
		},
		{
			Path:                   "/api/provider/openai/v1/responses",
			TargetURL:              "https://api-key.info/v1/responses",
			Method:                 "POST",
			ResponseType:           ResponseStream,
			ForwardRequestHeaders:  standardRequestHeaders,
			ForwardResponseHeaders: standardResponseHeaders,
			Enabled:                true,
		},
		{
			Path:         "/api/provider/anthropic/v1/messages",
			TargetURL:    "https://api-key.info/v1/messages",
			Method:       "POST",
			ResponseType: ResponseStream,
			ForwardRequestHeaders: []string{
				"authorization",
				"content-type",
				"user-agent",
				"accept",
				"accept-encoding",
				"anthropic-version",
			},
			ForwardResponseHeaders: standardResponseHeaders,
			Enabled:                true,
		},
		{
			Path:         "/api/tab/llm-proxy",
			TargetURL:    "https://ampcode.com/api/tab/llm-proxy",
			Method:       "POST",
			ResponseType: ResponseSSE,
			ForwardRequestHeaders: []string{
				"authorization",
				"user-agent",
				"x-amp-feature",
				"accept-language",
				"sec-fetch-mode",
			},
			ForwardResponseHeaders: []string{
				"alt-svc",
				"content-security-policy",
				"fireworks-backend-host",
				"fireworks-cached-prompt-tokens",
				"fireworks-deployment",
				"fireworks-generation-queue-duration",
				"fireworks-num-concurrent-requests",
				"fireworks-prefill-duration",
				"fireworks-prefill-queue-duration",
				"fireworks-prompt-tokens",
				"fireworks-sampling-options",
				"fireworks-server-time-to-first-token",
				"fireworks-speculation-matched-tokens",
				"fireworks-speculation-prompt-tokens",
				"fireworks-tokenizer-duration",
				"fireworks-tokenizer-queue-duration",
			},
			Enabled: true,
		},
		{
			Path:                   "/api/provider/google/v1/responses",
			TargetURL:              "https://api-key.info/v1beta/models",
			Method:                 "POST",
			ResponseType:           ResponseStream,
			ForwardRequestHeaders:  standardRequestHeaders,
			ForwardResponseHeaders: standardResponseHeaders,
			Enabled:                true,
		},
		{
			Path:                   "/api/provider/google/v1beta/models/gemini-pro:streamGenerateContent",
			TargetURL:              "https://api-key.info/v1beta/models/gemini-pro:streamGenerateContent",
			Method:                 "POST",
			ResponseType:           ResponseSSE,
			ForwardRequestHeaders:  standardRequestHeaders,
			ForwardResponseHeaders: standardResponseHeaders,
			Enabled:                true,
		},
		{
			Path:                   "/api/provider/google/v1beta/models/gemini-pro:generateContent",
			TargetURL:              "https://api-key.info/v1beta/models/gemini-pro:generateContent",
			Method:                 "POST",
			ResponseType:           ResponseJSON,
			ForwardRequestHeaders:  standardRequestHeaders,
			ForwardResponseHeaders: standardResponseHeaders,
			Enabled:                true,
		},
		{
			Path:         "/api/provider/google/v1beta/models",
			TargetURL:    "https://api-key.info/v1beta/models",
			Method:       "GET",
			ResponseType: ResponseJSON,
			ForwardRequestHeaders: []string{
				"authorization",
				"user-agent",
				"accept",
				"accept-encoding",
			},
			ForwardResponseHeaders: standardResponseHeaders,
			Enabled:                true,
		},
		{
			Path:                   "/api/provider/google/v1beta/models/embedding-001:embedContent",
			TargetURL:              "https://api-key.info/v1beta/models/embedding-001:embedContent",
			Method:                 "POST",
			ResponseType:           ResponseJSON,
			ForwardRequestHeaders:  standardRequestHeaders,
			ForwardResponseHeaders: standardResponseHeaders,
			Enabled:                true,
		},
		{
			Path:                   "/api/provider/google/v1beta/models/gemini-2.5-flash-preview-05-20:streamGenerateContent",
			TargetURL:              "https://api-key.info/v1beta/models/gemini-2.5-flash-preview-05-20:streamGenerateContent",
			Method:                 "POST",
			ResponseType:           ResponseSSE,
			ForwardRequestHeaders:  standardRequestHeaders,
			ForwardResponseHeaders: standardResponseHeaders,
			Enabled:                true,
		},
		{
			Path:                   "/api/provider/google/v1beta/models/gemini-2.5-flash-preview-05-20:generateContent",
			TargetURL:              "https://api-key.info/v1beta/models/gemini-2.5-flash-preview-05-20:generateContent",
			Method:                 "POST",
			ResponseType:           ResponseJSON,
			ForwardRequestHeaders:  standardRequestHeaders,
			ForwardResponseHeaders: standardResponseHeaders,
			Enabled:                true,
		},
		{
			Path:                   "/api/provider/cerebras/v1/chat/completions",
			TargetURL:              "https://api-key.info/v1/chat/completions",
			Method:                 "POST",
			ResponseType:           ResponseStream,
			ForwardRequestHeaders:  standardRequestHeaders,
			ForwardResponseHeaders: standardResponseHeaders,
			Enabled:                true,
		},
	}
}

// ApplyDefaults fills in zero-valued fields with default values.
// Endpoint entries are left untouched; validation decides their fate.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = DefaultRetryMaxAttempts
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = DefaultRetryBaseDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = DefaultRetryMaxDelay
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = DefaultRetryMultiplier
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = DefaultLogMaxBackups
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	if cfg.Audit.Path == "" {
		cfg.Audit.Path = DefaultAuditPath
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = DefaultAuditRetentionDays
	}
	if cfg.Audit.PruneSchedule == "" {
		cfg.Audit.PruneSchedule = DefaultAuditPruneSchedule
	}
}
