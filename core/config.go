package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	SignatureSchemeHMACSHA256   = "hmac-sha256"
	SignatureSchemeSharedSecret = "shared-secret"
)

const (
	DefaultEventsPath           = "/webhook/auth"
	DefaultSignatureHeader      = "X-Webhook-Signature"
	DefaultDeliveryIDHeader     = "X-Delivery-ID"
	DefaultTimeout              = 10 * time.Second
	DefaultMaxResponseBodyBytes = int64(1 << 20)
)

type RetryConfig struct {
	MaxRetries int           `koanf:"max_retries" mapstructure:"max_retries"`
	WaitMin    time.Duration `koanf:"wait_min" mapstructure:"wait_min"`
	WaitMax    time.Duration `koanf:"wait_max" mapstructure:"wait_max"`
}

type Config struct {
	ServiceName          string        `koanf:"service_name" mapstructure:"service_name"`
	TargetURL            string        `koanf:"target_url" mapstructure:"target_url"`
	EventsPath           string        `koanf:"events_path" mapstructure:"events_path"`
	Secret               string        `koanf:"secret" mapstructure:"secret"`
	SignatureHeader      string        `koanf:"signature_header" mapstructure:"signature_header"`
	SignatureScheme      string        `koanf:"signature_scheme" mapstructure:"signature_scheme"`
	DeliveryIDHeader     string        `koanf:"delivery_id_header" mapstructure:"delivery_id_header"`
	Timeout              time.Duration `koanf:"timeout" mapstructure:"timeout"`
	MaxResponseBodyBytes int64         `koanf:"max_response_body_bytes" mapstructure:"max_response_body_bytes"`
	Retry                RetryConfig   `koanf:"retry" mapstructure:"retry"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:          "auth-relay",
		EventsPath:           DefaultEventsPath,
		SignatureHeader:      DefaultSignatureHeader,
		SignatureScheme:      SignatureSchemeHMACSHA256,
		DeliveryIDHeader:     DefaultDeliveryIDHeader,
		Timeout:              DefaultTimeout,
		MaxResponseBodyBytes: DefaultMaxResponseBodyBytes,
		Retry: RetryConfig{
			MaxRetries: 0,
			WaitMin:    250 * time.Millisecond,
			WaitMax:    5 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return ConfigurationError("core: service_name is required")
	}
	if strings.TrimSpace(c.TargetURL) == "" {
		return ConfigurationError("core: target_url is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(c.TargetURL))
	if err != nil {
		return wrapConfigurationError(err, "core: target_url is invalid")
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ConfigurationError(fmt.Sprintf("core: target_url must be an absolute http(s) url, got %q", c.TargetURL))
	}
	if c.Secret == "" {
		return ConfigurationError("core: secret is required")
	}
	switch c.SignatureScheme {
	case SignatureSchemeHMACSHA256, SignatureSchemeSharedSecret:
	default:
		return ConfigurationError(fmt.Sprintf("core: unsupported signature_scheme %q", c.SignatureScheme))
	}
	if strings.TrimSpace(c.SignatureHeader) == "" {
		return ConfigurationError("core: signature_header is required")
	}
	if c.Timeout <= 0 {
		return ConfigurationError("core: timeout must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return ConfigurationError("core: retry.max_retries must not be negative")
	}
	return nil
}

// DeliveryURL joins the target base url and the events path.
func (c Config) DeliveryURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.TargetURL), "/")
	path := strings.TrimSpace(c.EventsPath)
	if path == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(path, "/")
}
