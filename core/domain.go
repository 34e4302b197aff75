package core

import (
	"fmt"
	"strings"
)

type EventKind string

const (
	EventKindCreated EventKind = "created"
	EventKindUpdated EventKind = "updated"
	EventKindDeleted EventKind = "deleted"
)

// Wire values for the payload event_type field.
const (
	EventTypeCreate = "create"
	EventTypeUpdate = "update"
	EventTypeDelete = "delete"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventKindCreated, EventKindUpdated, EventKindDeleted:
		return true
	default:
		return false
	}
}

// EventType returns the payload event_type for the kind, or "" when the kind
// is unknown.
func (k EventKind) EventType() string {
	switch k {
	case EventKindCreated:
		return EventTypeCreate
	case EventKindUpdated:
		return EventTypeUpdate
	case EventKindDeleted:
		return EventTypeDelete
	default:
		return ""
	}
}

func ParseEventKind(value string) (EventKind, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "created", "create", "user.created":
		return EventKindCreated, nil
	case "updated", "update", "user.updated":
		return EventKindUpdated, nil
	case "deleted", "delete", "user.deleted":
		return EventKindDeleted, nil
	default:
		return "", fmt.Errorf("core: unknown event kind %q", value)
	}
}

// UserRecord is the user snapshot handed over by the identity provider.
type UserRecord struct {
	UID         string  `json:"uid" validate:"required"`
	Email       *string `json:"email,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
}

// RawEvent is the provider-side shape of a lifecycle trigger. Created events
// carry After, Deleted events carry Before and Updated events carry both.
type RawEvent struct {
	Kind   EventKind   `json:"kind"`
	Before *UserRecord `json:"before,omitempty"`
	After  *UserRecord `json:"after,omitempty"`
}

func CreatedEvent(user UserRecord) RawEvent {
	return RawEvent{Kind: EventKindCreated, After: &user}
}

func UpdatedEvent(before UserRecord, after UserRecord) RawEvent {
	return RawEvent{Kind: EventKindUpdated, Before: &before, After: &after}
}

func DeletedEvent(user UserRecord) RawEvent {
	return RawEvent{Kind: EventKindDeleted, Before: &user}
}

// LifecycleEvent is the canonical, provider independent event. UserID is
// never empty; Email and DisplayName are only meaningful for created and
// updated events.
type LifecycleEvent struct {
	Kind        EventKind
	UserID      string
	Email       *string
	DisplayName *string
}

// SignedRequest is the serialized payload plus the token computed over it.
type SignedRequest struct {
	Payload    []byte
	Signature  string
	DeliveryID string
}

type DeliveryStatus string

const (
	DeliveryStatusDelivered         DeliveryStatus = "delivered"
	DeliveryStatusRejected          DeliveryStatus = "rejected"
	DeliveryStatusTransportFailure  DeliveryStatus = "transport_failure"
	DeliveryStatusMalformedResponse DeliveryStatus = "malformed_response"
)

// DeliveryOutcome is the classified result of one delivery. Only the fields
// relevant to Status are set.
type DeliveryOutcome struct {
	Status     DeliveryStatus
	StatusCode int
	Body       []byte
	Response   any
	Cause      error
	Timeout    bool
}

func Delivered(statusCode int, body []byte, response any) DeliveryOutcome {
	return DeliveryOutcome{
		Status:     DeliveryStatusDelivered,
		StatusCode: statusCode,
		Body:       append([]byte(nil), body...),
		Response:   response,
	}
}

func Rejected(statusCode int, body []byte) DeliveryOutcome {
	return DeliveryOutcome{
		Status:     DeliveryStatusRejected,
		StatusCode: statusCode,
		Body:       append([]byte(nil), body...),
	}
}

func TransportFailure(cause error, timeout bool) DeliveryOutcome {
	return DeliveryOutcome{
		Status:  DeliveryStatusTransportFailure,
		Cause:   cause,
		Timeout: timeout,
	}
}

func MalformedResponse(statusCode int, body []byte, cause error) DeliveryOutcome {
	return DeliveryOutcome{
		Status:     DeliveryStatusMalformedResponse,
		StatusCode: statusCode,
		Body:       append([]byte(nil), body...),
		Cause:      cause,
	}
}

func (o DeliveryOutcome) Delivered() bool {
	return o.Status == DeliveryStatusDelivered
}

type State string

const (
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Stage names the pipeline step an event is in, or failed in.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageSign      Stage = "sign"
	StageDeliver   Stage = "deliver"
	StageDone      Stage = "done"
)

// Result is the completion signal returned to the event source. Reason is set
// iff State is StateFailed, Response iff State is StateSucceeded.
type Result struct {
	State      State
	Stage      Stage
	Kind       EventKind
	UserID     string
	DeliveryID string
	Response   any
	Outcome    DeliveryOutcome
	Reason     error
}

func (r Result) Succeeded() bool {
	return r.State == StateSucceeded
}
