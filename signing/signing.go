// Package signing computes the tokens that let the downstream endpoint verify
// a relayed payload came from a holder of the shared secret.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/goliatone/go-auth-relay/core"
)

// HMACPrefix is prepended to the hex digest produced by HMACSigner.
const HMACPrefix = "sha256="

// HMACSigner signs the exact payload bytes with HMAC-SHA256.
type HMACSigner struct {
	secret []byte
}

func NewHMACSigner(secret string) (*HMACSigner, error) {
	if secret == "" {
		return nil, core.ConfigurationError("signing: secret is required")
	}
	return &HMACSigner{secret: []byte(secret)}, nil
}

func (*HMACSigner) Scheme() string { return core.SignatureSchemeHMACSHA256 }

func (s *HMACSigner) Sign(payload []byte) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", core.ConfigurationError("signing: secret is required")
	}
	return HMACPrefix + hexDigest(s.secret, payload), nil
}

// ComputeHMAC returns the token HMACSigner would produce for payload.
func ComputeHMAC(payload []byte, secret string) string {
	return HMACPrefix + hexDigest([]byte(secret), payload)
}

// Verify reports whether token is a valid HMAC-SHA256 token for payload. The
// sha256= prefix is optional.
func Verify(payload []byte, secret string, token string) bool {
	if secret == "" {
		return false
	}
	signature := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), HMACPrefix))
	if signature == "" {
		return false
	}
	decoded, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hmac.Equal(decoded, mac.Sum(nil))
}

func hexDigest(secret []byte, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SharedSecretSigner sends the secret itself as the token. It exists for
// receivers that compare the header against the configured secret and does
// not bind the token to the payload.
type SharedSecretSigner struct {
	secret string
}

func NewSharedSecretSigner(secret string) (*SharedSecretSigner, error) {
	if secret == "" {
		return nil, core.ConfigurationError("signing: secret is required")
	}
	return &SharedSecretSigner{secret: secret}, nil
}

func (*SharedSecretSigner) Scheme() string { return core.SignatureSchemeSharedSecret }

func (s *SharedSecretSigner) Sign([]byte) (string, error) {
	if s == nil || s.secret == "" {
		return "", core.ConfigurationError("signing: secret is required")
	}
	return s.secret, nil
}

// VerifySharedSecret compares token to secret in constant time.
func VerifySharedSecret(secret string, token string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(token)) == 1
}

// New builds the signer for scheme. An empty scheme selects HMAC-SHA256.
func New(scheme string, secret string) (core.Signer, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", core.SignatureSchemeHMACSHA256:
		return NewHMACSigner(secret)
	case core.SignatureSchemeSharedSecret:
		return NewSharedSecretSigner(secret)
	default:
		return nil, core.ConfigurationError(fmt.Sprintf("signing: unsupported scheme %q", scheme))
	}
}

// FromConfig is a core.SignerFactory.
func FromConfig(cfg core.Config) (core.Signer, error) {
	return New(cfg.SignatureScheme, cfg.Secret)
}

var (
	_ core.Signer        = (*HMACSigner)(nil)
	_ core.Signer        = (*SharedSecretSigner)(nil)
	_ core.SignerFactory = FromConfig
)
