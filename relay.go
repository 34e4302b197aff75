// Package relay forwards identity provider user lifecycle events (created,
// updated, deleted) to a downstream HTTP endpoint as signed JSON payloads.
package relay

import (
	"github.com/goliatone/go-auth-relay/core"
	"github.com/goliatone/go-auth-relay/signing"
	"github.com/goliatone/go-auth-relay/transport"
)

type Config = core.Config
type RetryConfig = core.RetryConfig

type Option = core.Option

type Relay = core.Relay

type EventKind = core.EventKind
type UserRecord = core.UserRecord
type RawEvent = core.RawEvent
type LifecycleEvent = core.LifecycleEvent
type Result = core.Result
type DeliveryOutcome = core.DeliveryOutcome

type Handler = core.Handler
type HandlerFunc = core.HandlerFunc
type EventSource = core.EventSource
type Signer = core.Signer
type Deliverer = core.Deliverer
type MetricsRecorder = core.MetricsRecorder

const (
	EventKindCreated = core.EventKindCreated
	EventKindUpdated = core.EventKindUpdated
	EventKindDeleted = core.EventKindDeleted
)

var (
	WithLogger              = core.WithLogger
	WithLoggerProvider      = core.WithLoggerProvider
	WithMetricsRecorder     = core.WithMetricsRecorder
	WithErrorMapper         = core.WithErrorMapper
	WithConfigProvider      = core.WithConfigProvider
	WithOptionsResolver     = core.WithOptionsResolver
	WithSigner              = core.WithSigner
	WithSignerFactory       = core.WithSignerFactory
	WithDeliverer           = core.WithDeliverer
	WithDelivererFactory    = core.WithDelivererFactory
	WithNormalizer          = core.WithNormalizer
	WithDeliveryIDGenerator = core.WithDeliveryIDGenerator
	WithClock               = core.WithClock
	NewCfgxConfigProvider   = core.NewCfgxConfigProvider
	NewStaticConfigLoader   = core.NewStaticConfigLoader
	CreatedEvent            = core.CreatedEvent
	UpdatedEvent            = core.UpdatedEvent
	DeletedEvent            = core.DeletedEvent
	ParseEventKind          = core.ParseEventKind
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// New builds a Relay whose signer follows cfg.SignatureScheme and whose
// deliverer is a transport.Client. WithSigner and WithDeliverer override both.
func New(cfg Config, opts ...Option) (*Relay, error) {
	base := []Option{
		core.WithSignerFactory(signing.FromConfig),
		core.WithDelivererFactory(transport.FromConfig),
	}
	return core.NewRelay(cfg, append(base, opts...)...)
}

func Setup(cfg Config, opts ...Option) (*Relay, error) {
	return New(cfg, opts...)
}
