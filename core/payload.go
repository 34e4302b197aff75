package core

import "encoding/json"

// OutgoingPayload is the JSON body posted to the downstream endpoint.
type OutgoingPayload struct {
	EventType string `json:"event_type"`
	UserData  any    `json:"user_data"`
}

// ProfileData is the user_data shape for created and updated events. Missing
// attributes are sent as null.
type ProfileData struct {
	UID         string  `json:"uid"`
	Email       *string `json:"email"`
	DisplayName *string `json:"display_name"`
}

// DeletionData is the user_data shape for deleted events.
type DeletionData struct {
	UID string `json:"uid"`
}

// BuildPayload derives the outgoing payload from the event alone.
func BuildPayload(event LifecycleEvent) OutgoingPayload {
	if event.Kind == EventKindDeleted {
		return OutgoingPayload{
			EventType: event.Kind.EventType(),
			UserData:  DeletionData{UID: event.UserID},
		}
	}
	return OutgoingPayload{
		EventType: event.Kind.EventType(),
		UserData: ProfileData{
			UID:         event.UserID,
			Email:       cloneString(event.Email),
			DisplayName: cloneString(event.DisplayName),
		},
	}
}

func (p OutgoingPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
