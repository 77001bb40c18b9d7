package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "municipal-intel/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig holds settings for portal queries.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// PageLimit is the default page size when a request does not set one
	// (default 100, capped at 1000).
	PageLimit int `json:"page_limit" yaml:"page_limit" mapstructure:"page_limit"`

	// MaxRetries is the number of retry attempts for transient portal
	// failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// AppToken is an application token attached to portal requests for a
	// higher rate-limit ceiling. Per-source tokens from the secrets
	// directory take precedence.
	AppToken string `json:"app_token,omitempty" yaml:"app_token,omitempty" mapstructure:"app_token"`

	// AppTokens maps source IDs to per-source tokens. A source's entry
	// wins over AppToken; a descriptor-level token wins over both.
	AppTokens map[string]string `json:"app_tokens,omitempty" yaml:"app_tokens,omitempty" mapstructure:"app_tokens"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// RequestsPerMinute is the per-client rate limit (default 60).
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" mapstructure:"requests_per_minute"`

	// Burst is the per-client burst allowance (default 10).
	Burst int `json:"burst" yaml:"burst" mapstructure:"burst"`

	// CORSOrigins lists allowed CORS origins. Empty allows none.
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`

	// ShutdownTimeout bounds graceful shutdown (default 10s).
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// AuditConfig holds settings for the dataset drift auditor.
type AuditConfig struct {
	// AuditDir is the directory holding the drift snapshot database
	// (default "audit").
	AuditDir string `json:"audit_dir" yaml:"audit_dir" mapstructure:"audit_dir"`

	// SampleSize is the number of records fetched per dataset when
	// observing live field names (default 20).
	SampleSize int `json:"sample_size" yaml:"sample_size" mapstructure:"sample_size"`
}

// Config groups all component configurations.
type Config struct {
	Search SearchConfig `json:"search" yaml:"search" mapstructure:"search"`
	Server ServerConfig `json:"server" yaml:"server" mapstructure:"server"`
	Audit  AuditConfig  `json:"audit" yaml:"audit" mapstructure:"audit"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Search: SearchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "municipal-intel/0.1",
			},
			PageLimit:  100,
			MaxRetries: 3,
		},
		Server: ServerConfig{
			Addr:              ":8080",
			RequestsPerMinute: 60,
			Burst:             10,
			ShutdownTimeout:   10 * time.Second,
		},
		Audit: AuditConfig{
			AuditDir:   "audit",
			SampleSize: 20,
		},
	}
}
