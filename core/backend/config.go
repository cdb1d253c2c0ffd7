package backend

import (
	"fmt"
	"time"
)

// Config holds the backend connection settings.
type Config struct {
	// Host of the management API.
	Host string `mapstructure:"host" default:"localhost"`
	// Port of the management API.
	Port int `mapstructure:"port" default:"8089"`
	// Scheme is http or https.
	Scheme string `mapstructure:"scheme" default:"https"`
	// Username used to log in when no session key is configured.
	Username string `mapstructure:"username" default:"admin"`
	// Password used to log in when no session key is configured.
	Password string `mapstructure:"password" default:"changeme"`
	// SessionKey skips the login when set.
	SessionKey string `mapstructure:"session_key" default:""`
	// InsecureSkipVerify disables TLS verification, the management port usually runs a self-signed cert.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" default:"true"`
	// TimeoutSeconds bounds every single request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// PollIntervalMS is the delay between two result polls.
	PollIntervalMS int `mapstructure:"poll_interval_ms" default:"500"`
	// PollTimeoutSeconds bounds the total wait for a search job.
	PollTimeoutSeconds int `mapstructure:"poll_timeout_seconds" default:"300"`
	// DeleteQuantifier scopes delete searches, e.g. "index=main".
	DeleteQuantifier string `mapstructure:"delete_quantifier" default:""`
}

// BaseURL returns the management API root.
func (c Config) BaseURL() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// RequestTimeout returns the per request timeout.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PollInterval returns the delay between two result polls.
func (c Config) PollInterval() time.Duration {
	if c.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// PollTimeout returns the total wait bound for a search job.
func (c Config) PollTimeout() time.Duration {
	if c.PollTimeoutSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}
