package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/goliatone/go-auth-relay/core"
)

func writeEnvFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.env")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

// clearRelayEnv blanks every variable the loader reads so the host
// environment cannot leak into a test.
func clearRelayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AUTH_RELAY_SERVICE_NAME",
		"AUTH_RELAY_TARGET_URL",
		"AUTH_RELAY_EVENTS_PATH",
		"AUTH_RELAY_SECRET",
		"AUTH_RELAY_SIGNATURE_HEADER",
		"AUTH_RELAY_SIGNATURE_SCHEME",
		"AUTH_RELAY_DELIVERY_ID_HEADER",
		"AUTH_RELAY_TIMEOUT",
		"AUTH_RELAY_MAX_RESPONSE_BODY_BYTES",
		"AUTH_RELAY_RETRY_MAX_RETRIES",
		"AUTH_RELAY_RETRY_WAIT_MIN",
		"AUTH_RELAY_RETRY_WAIT_MAX",
		"AUTH_RELAY_WEBHOOK_SECRET",
		"AUTH_RELAY_SERVICE_URL",
		"WEBHOOK_SECRET",
		"SERVICE_URL",
	} {
		t.Setenv(key, "")
	}
}

func loadRaw(t *testing.T) map[string]any {
	t.Helper()
	raw, err := NewEnvLoader(writeEnvFile(t, "")).LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	return raw
}

func TestEnvLoaderReadsPrefixedVariables(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("AUTH_RELAY_TARGET_URL", "https://api.example.com")
	t.Setenv("AUTH_RELAY_SECRET", "s3cr3t")
	t.Setenv("AUTH_RELAY_TIMEOUT", "3s")
	t.Setenv("AUTH_RELAY_DELIVERY_ID_HEADER", "X-Event-ID")
	t.Setenv("AUTH_RELAY_MAX_RESPONSE_BODY_BYTES", "2048")
	t.Setenv("AUTH_RELAY_RETRY_MAX_RETRIES", "2")

	raw := loadRaw(t)

	want := map[string]any{
		"target_url":              "https://api.example.com",
		"secret":                  "s3cr3t",
		"timeout":                 3 * time.Second,
		"delivery_id_header":      "X-Event-ID",
		"max_response_body_bytes": int64(2048),
		"retry":                   map[string]any{"max_retries": 2},
	}
	if !reflect.DeepEqual(raw, want) {
		t.Fatalf("expected %#v, got %#v", want, raw)
	}
}

func TestEnvLoaderIgnoresUnprefixedVariables(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("SECRET", "leaked")
	t.Setenv("TARGET_URL", "https://unrelated.example.com")
	t.Setenv("TIMEOUT", "1s")

	if raw := loadRaw(t); len(raw) != 0 {
		t.Fatalf("expected bare variables to be ignored, got %#v", raw)
	}
}

func TestEnvLoaderAcceptsHookDeploymentNames(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("WEBHOOK_SECRET", "legacy-secret")
	t.Setenv("SERVICE_URL", "https://legacy.example.com")

	raw := loadRaw(t)
	if raw["secret"] != "legacy-secret" {
		t.Fatalf("expected WEBHOOK_SECRET to set the secret, got %v", raw["secret"])
	}
	if raw["target_url"] != "https://legacy.example.com" {
		t.Fatalf("expected SERVICE_URL to set the target url, got %v", raw["target_url"])
	}

	t.Setenv("AUTH_RELAY_SECRET", "prefixed-secret")
	t.Setenv("AUTH_RELAY_TARGET_URL", "https://prefixed.example.com")
	raw = loadRaw(t)
	if raw["secret"] != "prefixed-secret" || raw["target_url"] != "https://prefixed.example.com" {
		t.Fatalf("expected prefixed settings to win, got %#v", raw)
	}
}

func TestEnvLoaderLoadsEnvFileWithoutOverridingProcessEnv(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("AUTH_RELAY_SECRET", "from-process")
	t.Setenv("AUTH_RELAY_EVENTS_PATH", "")
	_ = os.Unsetenv("AUTH_RELAY_EVENTS_PATH")
	path := writeEnvFile(t, "AUTH_RELAY_EVENTS_PATH=/hooks/users\nAUTH_RELAY_SECRET=from-file\n")

	raw, err := NewEnvLoader(path).LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if raw["events_path"] != "/hooks/users" {
		t.Fatalf("expected events path from file, got %v", raw["events_path"])
	}
	if raw["secret"] != "from-process" {
		t.Fatalf("expected process env to win, got %v", raw["secret"])
	}
}

func TestEnvLoaderMissingExplicitFileFails(t *testing.T) {
	_, err := NewEnvLoader(filepath.Join(t.TempDir(), "missing.env")).LoadRaw(context.Background())
	if err == nil {
		t.Fatalf("expected missing env file error")
	}
}

func TestEnvLoaderRejectsMalformedValues(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("AUTH_RELAY_TIMEOUT", "soon")
	_, err := NewEnvLoader(writeEnvFile(t, "")).LoadRaw(context.Background())
	if err == nil {
		t.Fatalf("expected decode error for malformed duration")
	}
}

func TestLoadResolvesValidatedConfig(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("AUTH_RELAY_TARGET_URL", "https://api.example.com")
	t.Setenv("AUTH_RELAY_SECRET", "s3cr3t")

	cfg, err := Load(context.Background(), core.Config{Timeout: 2 * time.Second}, writeEnvFile(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.DeliveryURL(); got != "https://api.example.com/webhook/auth" {
		t.Fatalf("unexpected delivery url %q", got)
	}
	if cfg.Timeout != 2*time.Second {
		t.Fatalf("expected runtime timeout to win, got %s", cfg.Timeout)
	}
	if cfg.SignatureScheme != core.SignatureSchemeHMACSHA256 {
		t.Fatalf("expected default scheme, got %q", cfg.SignatureScheme)
	}
}

func TestLoadWithoutSecretIsConfigurationError(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("AUTH_RELAY_TARGET_URL", "https://api.example.com")
	t.Setenv("SECRET", "not-for-the-relay")

	_, err := Load(context.Background(), core.Config{}, writeEnvFile(t, ""))
	if !core.IsTextCode(err, core.ErrorConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEnvSpecRawSkipsZeroValues(t *testing.T) {
	if raw := (EnvSpec{}).Raw(); len(raw) != 0 {
		t.Fatalf("expected empty raw config, got %#v", raw)
	}
}
