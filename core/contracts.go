package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// Signer computes the authentication token for a serialized payload. The
// secret is bound when the signer is built.
type Signer interface {
	Scheme() string
	Sign(payload []byte) (string, error)
}

type DeliveryOptions struct {
	Timeout          time.Duration
	SignatureHeader  string
	DeliveryIDHeader string
	Headers          map[string]string
}

// Deliverer posts a signed request to the downstream endpoint and classifies
// the response. Implementations must be safe for concurrent use.
type Deliverer interface {
	Deliver(ctx context.Context, targetURL string, req SignedRequest, opts DeliveryOptions) DeliveryOutcome
}

// Handler is implemented by anything that consumes lifecycle events and
// reports a completion signal.
type Handler interface {
	Handle(ctx context.Context, event RawEvent) (Result, error)
}

type HandlerFunc func(ctx context.Context, event RawEvent) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, event RawEvent) (Result, error) {
	return f(ctx, event)
}

// EventSource is the host binding that invokes a registered handler for each
// lifecycle trigger and awaits its completion.
type EventSource interface {
	Register(handler Handler) error
}

type SignerFactory func(cfg Config) (Signer, error)

type DelivererFactory func(cfg Config) (Deliverer, error)

var _ Handler = HandlerFunc(nil)
