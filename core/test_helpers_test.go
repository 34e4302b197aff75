package core

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeSigner struct {
	scheme string
	token  string
	err    error

	mu       sync.Mutex
	payloads [][]byte
}

func (s *fakeSigner) Scheme() string {
	if s.scheme == "" {
		return "fake"
	}
	return s.scheme
}

func (s *fakeSigner) Sign(payload []byte) (string, error) {
	s.mu.Lock()
	s.payloads = append(s.payloads, append([]byte(nil), payload...))
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

type deliveryCall struct {
	targetURL string
	request   SignedRequest
	options   DeliveryOptions
}

type fakeDeliverer struct {
	outcome DeliveryOutcome
	respond func(ctx context.Context, req SignedRequest) DeliveryOutcome

	mu    sync.Mutex
	calls []deliveryCall
}

func (d *fakeDeliverer) Deliver(ctx context.Context, targetURL string, req SignedRequest, opts DeliveryOptions) DeliveryOutcome {
	d.mu.Lock()
	d.calls = append(d.calls, deliveryCall{targetURL: targetURL, request: req, options: opts})
	d.mu.Unlock()
	if d.respond != nil {
		return d.respond(ctx, req)
	}
	return d.outcome
}

func (d *fakeDeliverer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *fakeDeliverer) lastCall() deliveryCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.calls) == 0 {
		return deliveryCall{}
	}
	return d.calls[len(d.calls)-1]
}

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

type recordingSource struct {
	handler Handler
}

func (s *recordingSource) Register(handler Handler) error {
	if s.handler != nil {
		return errors.New("handler already registered")
	}
	s.handler = handler
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TargetURL = "https://api.example.com"
	cfg.Secret = "s3cr3t"
	return cfg
}

func newTestRelay(t *testing.T, signer Signer, deliverer Deliverer, opts ...Option) *Relay {
	t.Helper()
	base := []Option{
		WithSigner(signer),
		WithDeliverer(deliverer),
		WithDeliveryIDGenerator(func() string { return "dlv_1" }),
	}
	relay, err := NewRelay(testConfig(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}
	return relay
}
