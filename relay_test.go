package relay_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	relay "github.com/goliatone/go-auth-relay"
	relaycommand "github.com/goliatone/go-auth-relay/command"
	"github.com/goliatone/go-auth-relay/core"
	"github.com/goliatone/go-auth-relay/signing"
	"github.com/goliatone/go-auth-relay/source/httpsource"
	gocmd "github.com/goliatone/go-command"
)

const testSecret = "s3cr3t"

type capturedRequest struct {
	body       string
	signature  string
	deliveryID string
}

type downstream struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []capturedRequest
}

func newDownstream(t *testing.T, respond func(w http.ResponseWriter, body []byte)) *downstream {
	t.Helper()
	d := &downstream{}
	d.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != core.DefaultEventsPath {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		d.mu.Lock()
		d.requests = append(d.requests, capturedRequest{
			body:       string(body),
			signature:  r.Header.Get(core.DefaultSignatureHeader),
			deliveryID: r.Header.Get(core.DefaultDeliveryIDHeader),
		})
		d.mu.Unlock()
		respond(w, body)
	}))
	t.Cleanup(d.server.Close)
	return d
}

func (d *downstream) snapshot() []capturedRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]capturedRequest(nil), d.requests...)
}

func okResponder(w http.ResponseWriter, _ []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func newRelay(t *testing.T, targetURL string, mutate ...func(*relay.Config)) *relay.Relay {
	t.Helper()
	cfg := relay.DefaultConfig()
	cfg.TargetURL = targetURL
	cfg.Secret = testSecret
	for _, fn := range mutate {
		fn(&cfg)
	}
	r, err := relay.New(cfg)
	if err != nil {
		t.Fatalf("new relay: %v", err)
	}
	return r
}

func strPtr(value string) *string {
	return &value
}

func TestRelayCreatedEventEndToEnd(t *testing.T) {
	d := newDownstream(t, okResponder)
	r := newRelay(t, d.server.URL)

	result, err := r.OnCreate(context.Background(), relay.UserRecord{
		UID:         "u1",
		Email:       strPtr("a@b.com"),
		DisplayName: strPtr("A"),
	})
	if err != nil {
		t.Fatalf("relay created: %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("expected success, got %+v", result)
	}
	response, ok := result.Response.(map[string]any)
	if !ok || response["status"] != "ok" {
		t.Fatalf("expected downstream body to be surfaced, got %#v", result.Response)
	}

	requests := d.snapshot()
	if len(requests) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", len(requests))
	}
	want := `{"event_type":"create","user_data":{"uid":"u1","email":"a@b.com","display_name":"A"}}`
	if requests[0].body != want {
		t.Fatalf("expected body %s, got %s", want, requests[0].body)
	}
	if requests[0].signature == "" {
		t.Fatalf("expected signature header")
	}
	if !signing.Verify([]byte(requests[0].body), testSecret, requests[0].signature) {
		t.Fatalf("expected signature to verify over the received body")
	}
	if requests[0].deliveryID == "" || requests[0].deliveryID != result.DeliveryID {
		t.Fatalf("expected delivery id header %q to match result %q", requests[0].deliveryID, result.DeliveryID)
	}
}

func TestRelayDeletedEventEndToEnd(t *testing.T) {
	d := newDownstream(t, okResponder)
	r := newRelay(t, d.server.URL)

	if _, err := r.OnDelete(context.Background(), relay.UserRecord{UID: "u2", Email: strPtr("gone@b.com")}); err != nil {
		t.Fatalf("relay deleted: %v", err)
	}
	requests := d.snapshot()
	if len(requests) != 1 {
		t.Fatalf("expected one delivery, got %d", len(requests))
	}
	if requests[0].body != `{"event_type":"delete","user_data":{"uid":"u2"}}` {
		t.Fatalf("unexpected deletion body %s", requests[0].body)
	}
}

func TestRelayDownstreamErrorIsRejected(t *testing.T) {
	d := newDownstream(t, func(w http.ResponseWriter, _ []byte) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	r := newRelay(t, d.server.URL)

	result, err := r.OnCreate(context.Background(), relay.UserRecord{UID: "u1"})
	if err == nil {
		t.Fatalf("expected failure for a 500 response")
	}
	if result.State != core.StateFailed || result.Outcome.Status != core.DeliveryStatusRejected {
		t.Fatalf("expected failed/rejected, got %s/%s", result.State, result.Outcome.Status)
	}
	if result.Outcome.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", result.Outcome.StatusCode)
	}
	if !core.IsTextCode(err, core.ErrorRejected) {
		t.Fatalf("expected %s, got %q", core.ErrorRejected, core.TextCodeOf(err))
	}
	if len(d.snapshot()) != 1 {
		t.Fatalf("expected a single attempt without retries")
	}
}

func TestRelayUnreachableDownstreamIsTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	target := server.URL
	server.Close()
	r := newRelay(t, target)

	result, err := r.OnCreate(context.Background(), relay.UserRecord{UID: "u1"})
	if err == nil {
		t.Fatalf("expected transport failure")
	}
	if result.Outcome.Status != core.DeliveryStatusTransportFailure {
		t.Fatalf("expected transport failure, got %s", result.Outcome.Status)
	}
	if !core.IsTextCode(err, core.ErrorTransportFailure) {
		t.Fatalf("expected %s, got %q", core.ErrorTransportFailure, core.TextCodeOf(err))
	}
}

func TestRelayTimeoutIsTransportFailure(t *testing.T) {
	release := make(chan struct{})
	d := newDownstream(t, func(w http.ResponseWriter, _ []byte) {
		<-release
		okResponder(w, nil)
	})
	defer close(release)
	r := newRelay(t, d.server.URL, func(cfg *relay.Config) {
		cfg.Timeout = 50 * time.Millisecond
	})

	result, err := r.OnCreate(context.Background(), relay.UserRecord{UID: "u1"})
	if err == nil {
		t.Fatalf("expected timeout")
	}
	if !result.Outcome.Timeout || result.Outcome.Status != core.DeliveryStatusTransportFailure {
		t.Fatalf("expected timed out transport failure, got %+v", result.Outcome)
	}
}

func TestRelayInvalidEventNeverReachesDownstream(t *testing.T) {
	d := newDownstream(t, okResponder)
	r := newRelay(t, d.server.URL)

	result, err := r.OnCreate(context.Background(), relay.UserRecord{Email: strPtr("a@b.com")})
	if !core.IsTextCode(err, core.ErrorInvalidEvent) {
		t.Fatalf("expected invalid event, got %v", err)
	}
	if result.Stage != core.StageNormalize {
		t.Fatalf("expected normalize stage failure, got %s", result.Stage)
	}
	if len(d.snapshot()) != 0 {
		t.Fatalf("expected no delivery for an invalid event")
	}
}

func TestRelaySharedSecretScheme(t *testing.T) {
	d := newDownstream(t, okResponder)
	r := newRelay(t, d.server.URL, func(cfg *relay.Config) {
		cfg.SignatureScheme = core.SignatureSchemeSharedSecret
	})

	if _, err := r.OnCreate(context.Background(), relay.UserRecord{UID: "u1"}); err != nil {
		t.Fatalf("relay: %v", err)
	}
	if got := d.snapshot()[0].signature; got != testSecret {
		t.Fatalf("expected shared secret header, got %q", got)
	}
}

func TestRelayConcurrentEventsAreIsolated(t *testing.T) {
	d := newDownstream(t, func(w http.ResponseWriter, body []byte) {
		var payload struct {
			UserData struct {
				UID string `json:"uid"`
			} `json:"user_data"`
		}
		_ = json.Unmarshal(body, &payload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"uid":%q}`, payload.UserData.UID)
	})
	r := newRelay(t, d.server.URL)

	const total = 24
	var failures int32
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			uid := fmt.Sprintf("user-%d", index)
			result, err := r.OnUpdate(context.Background(),
				relay.UserRecord{UID: uid},
				relay.UserRecord{UID: uid, Email: strPtr(uid + "@b.com")},
			)
			if err != nil {
				atomic.AddInt32(&failures, 1)
				return
			}
			response, _ := result.Response.(map[string]any)
			if response["uid"] != uid || result.UserID != uid {
				atomic.AddInt32(&failures, 1)
			}
		}(i)
	}
	wg.Wait()

	if failures != 0 {
		t.Fatalf("expected every event to get its own response, %d did not", failures)
	}
	requests := d.snapshot()
	if len(requests) != total {
		t.Fatalf("expected %d deliveries, got %d", total, len(requests))
	}
	seen := map[string]int{}
	for _, req := range requests {
		var payload struct {
			UserData struct {
				UID   string `json:"uid"`
				Email string `json:"email"`
			} `json:"user_data"`
		}
		if err := json.Unmarshal([]byte(req.body), &payload); err != nil {
			t.Fatalf("decode delivered body: %v", err)
		}
		if payload.UserData.Email != payload.UserData.UID+"@b.com" {
			t.Fatalf("payload mixed data across events: %s", req.body)
		}
		if !signing.Verify([]byte(req.body), testSecret, req.signature) {
			t.Fatalf("signature does not match body %s", req.body)
		}
		seen[payload.UserData.UID]++
	}
	for uid, count := range seen {
		if count != 1 {
			t.Fatalf("expected one delivery for %s, got %d", uid, count)
		}
	}
}

func TestRelayAttachToHTTPSource(t *testing.T) {
	d := newDownstream(t, okResponder)
	r := newRelay(t, d.server.URL)

	source := httpsource.NewServer()
	if err := r.Attach(source); err != nil {
		t.Fatalf("attach: %v", err)
	}
	front := httptest.NewServer(source.Handler())
	defer front.Close()

	res, err := http.Post(front.URL+"/events/deleted", "application/json", strings.NewReader(`{"uid":"u7"}`))
	if err != nil {
		t.Fatalf("post event: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if got := d.snapshot()[0].body; got != `{"event_type":"delete","user_data":{"uid":"u7"}}` {
		t.Fatalf("unexpected relayed body %s", got)
	}
}

func TestFacadeCommandsRelayThroughHandler(t *testing.T) {
	d := newDownstream(t, okResponder)
	r := newRelay(t, d.server.URL)

	facade, err := relay.NewFacade(r)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	collector := gocmd.NewResult[core.Result]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := facade.Commands().Created.Execute(ctx, relaycommand.RelayCreatedMessage{User: relay.UserRecord{UID: "u8"}}); err != nil {
		t.Fatalf("execute created: %v", err)
	}
	result, ok := collector.Load()
	if !ok || !result.Succeeded() {
		t.Fatalf("expected stored successful result, got %+v", result)
	}
	if _, err := relay.NewFacade(nil); !core.IsTextCode(err, core.ErrorConfiguration) {
		t.Fatalf("expected configuration error for nil handler, got %v", err)
	}
}

func TestNewRejectsMissingSecret(t *testing.T) {
	cfg := relay.DefaultConfig()
	cfg.TargetURL = "https://api.example.com"
	if _, err := relay.New(cfg); !core.IsTextCode(err, core.ErrorConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
