// Package config loads relay settings from the process environment and
// optional .env files.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/goliatone/go-auth-relay/core"
)

// DefaultPrefix namespaces the environment variables, e.g. AUTH_RELAY_SECRET.
const DefaultPrefix = "AUTH_RELAY"

const defaultEnvFile = ".env"

// EnvSpec lists the recognized variables. Field names map to prefixed keys
// only, e.g. TargetURL reads AUTH_RELAY_TARGET_URL. WebhookSecret and
// ServiceURL also accept the unprefixed WEBHOOK_SECRET and SERVICE_URL used by
// existing hook deployments; the prefixed settings win when both are set.
// Unset variables leave the corresponding setting to lower precedence layers.
type EnvSpec struct {
	ServiceName          string        `split_words:"true"`
	TargetURL            string        `split_words:"true"`
	EventsPath           string        `split_words:"true"`
	Secret               string        `split_words:"true"`
	SignatureHeader      string        `split_words:"true"`
	SignatureScheme      string        `split_words:"true"`
	DeliveryIDHeader     string        `split_words:"true"`
	Timeout              time.Duration `split_words:"true"`
	MaxResponseBodyBytes int64         `split_words:"true"`
	RetryMaxRetries      int           `split_words:"true"`
	RetryWaitMin         time.Duration `split_words:"true"`
	RetryWaitMax         time.Duration `split_words:"true"`

	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
	ServiceURL    string `envconfig:"SERVICE_URL"`
}

// EnvLoader is a core.RawConfigLoader backed by the environment. Files are
// loaded with godotenv first; variables already present in the process
// environment win over file values.
type EnvLoader struct {
	Prefix string
	Files  []string
}

// NewEnvLoader reads the given .env files, which must exist. With no files it
// reads ./.env when present.
func NewEnvLoader(files ...string) *EnvLoader {
	return &EnvLoader{Prefix: DefaultPrefix, Files: files}
}

func (l *EnvLoader) LoadRaw(context.Context) (map[string]any, error) {
	if l == nil {
		return map[string]any{}, nil
	}
	if err := loadEnvFiles(l.Files); err != nil {
		return nil, err
	}
	prefix := strings.TrimSpace(l.Prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	var spec EnvSpec
	if err := envconfig.Process(prefix, &spec); err != nil {
		return nil, fmt.Errorf("config: decode environment: %w", err)
	}
	return spec.Raw(), nil
}

// Raw returns the non-zero settings keyed the way core.Config is decoded.
func (s EnvSpec) Raw() map[string]any {
	raw := map[string]any{}
	setString := func(key string, value string) {
		if strings.TrimSpace(value) != "" {
			raw[key] = strings.TrimSpace(value)
		}
	}
	setString("service_name", s.ServiceName)
	setString("target_url", firstNonBlank(s.TargetURL, s.ServiceURL))
	setString("events_path", s.EventsPath)
	setString("signature_header", s.SignatureHeader)
	setString("signature_scheme", s.SignatureScheme)
	setString("delivery_id_header", s.DeliveryIDHeader)
	if s.Secret != "" {
		raw["secret"] = s.Secret
	} else if s.WebhookSecret != "" {
		raw["secret"] = s.WebhookSecret
	}
	if s.Timeout > 0 {
		raw["timeout"] = s.Timeout
	}
	if s.MaxResponseBodyBytes > 0 {
		raw["max_response_body_bytes"] = s.MaxResponseBodyBytes
	}

	retry := map[string]any{}
	if s.RetryMaxRetries > 0 {
		retry["max_retries"] = s.RetryMaxRetries
	}
	if s.RetryWaitMin > 0 {
		retry["wait_min"] = s.RetryWaitMin
	}
	if s.RetryWaitMax > 0 {
		retry["wait_max"] = s.RetryWaitMax
	}
	if len(retry) > 0 {
		raw["retry"] = retry
	}
	return raw
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(defaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		files = []string{defaultEnvFile}
	}
	for _, file := range files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("config: load env file %s: %w", file, err)
		}
	}
	return nil
}

// Load resolves a validated core.Config from defaults, the environment and
// runtime overrides, in increasing precedence.
func Load(ctx context.Context, runtime core.Config, files ...string) (core.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	defaults := core.DefaultConfig()
	loaded, err := core.NewCfgxConfigProvider(NewEnvLoader(files...)).Load(ctx, defaults)
	if err != nil {
		return core.Config{}, err
	}
	return core.GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
}

var _ core.RawConfigLoader = (*EnvLoader)(nil)
