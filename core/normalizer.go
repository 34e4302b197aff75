package core

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Normalizer turns provider snapshots into LifecycleEvents. It is safe for
// concurrent use.
type Normalizer struct {
	validate *validator.Validate
}

func NewNormalizer() *Normalizer {
	return &Normalizer{validate: validator.New()}
}

var defaultNormalizer = NewNormalizer()

// Normalize uses the package level Normalizer.
func Normalize(raw RawEvent) (LifecycleEvent, error) {
	return defaultNormalizer.Normalize(raw)
}

func (n *Normalizer) Normalize(raw RawEvent) (LifecycleEvent, error) {
	if n == nil || n.validate == nil {
		n = defaultNormalizer
	}
	if !raw.Kind.Valid() {
		return LifecycleEvent{}, invalidEventError(
			"core: unsupported lifecycle event kind",
			map[string]any{"event_kind": string(raw.Kind)},
		)
	}

	snapshot := selectSnapshot(raw)
	if snapshot == nil {
		return LifecycleEvent{}, invalidEventError(
			"core: lifecycle event has no user snapshot",
			map[string]any{"event_kind": string(raw.Kind)},
		)
	}

	// A blank uid is rejected, but the uid is delivered exactly as the
	// provider sent it.
	user := UserRecord{
		UID:         strings.TrimSpace(snapshot.UID),
		Email:       cloneString(snapshot.Email),
		DisplayName: cloneString(snapshot.DisplayName),
	}
	if err := n.validate.Struct(user); err != nil {
		return LifecycleEvent{}, invalidEventValidation(raw.Kind, err)
	}

	event := LifecycleEvent{
		Kind:   raw.Kind,
		UserID: snapshot.UID,
	}
	if raw.Kind != EventKindDeleted {
		event.Email = user.Email
		event.DisplayName = user.DisplayName
	}
	return event, nil
}

// selectSnapshot picks After for created and updated events and Before for
// deleted events, falling back to the other one when a source only fills a
// single slot.
func selectSnapshot(raw RawEvent) *UserRecord {
	switch raw.Kind {
	case EventKindUpdated:
		return raw.After
	case EventKindDeleted:
		if raw.Before != nil {
			return raw.Before
		}
		return raw.After
	default:
		if raw.After != nil {
			return raw.After
		}
		return raw.Before
	}
}

// ChangedFields lists the attributes that differ between the before and after
// snapshots of an update. Used for diagnostics only.
func ChangedFields(raw RawEvent) []string {
	if raw.Kind != EventKindUpdated || raw.Before == nil || raw.After == nil {
		return nil
	}
	changed := []string{}
	if !equalStrings(raw.Before.Email, raw.After.Email) {
		changed = append(changed, "email")
	}
	if !equalStrings(raw.Before.DisplayName, raw.After.DisplayName) {
		changed = append(changed, "display_name")
	}
	return changed
}

func equalStrings(a *string, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
