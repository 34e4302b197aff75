package command

import (
	"strings"

	"github.com/goliatone/go-auth-relay/core"
)

const (
	TypeRelayCreated = "relay.command.user.created"
	TypeRelayUpdated = "relay.command.user.updated"
	TypeRelayDeleted = "relay.command.user.deleted"
)

type RelayCreatedMessage struct {
	User core.UserRecord
}

func (RelayCreatedMessage) Type() string { return TypeRelayCreated }

func (m RelayCreatedMessage) Validate() error {
	return validateUser("uid", m.User)
}

type RelayUpdatedMessage struct {
	Before core.UserRecord
	After  core.UserRecord
}

func (RelayUpdatedMessage) Type() string { return TypeRelayUpdated }

func (m RelayUpdatedMessage) Validate() error {
	return validateUser("after.uid", m.After)
}

type RelayDeletedMessage struct {
	User core.UserRecord
}

func (RelayDeletedMessage) Type() string { return TypeRelayDeleted }

func (m RelayDeletedMessage) Validate() error {
	return validateUser("uid", m.User)
}

func validateUser(field string, user core.UserRecord) error {
	if strings.TrimSpace(user.UID) == "" {
		return commandValidationError(field, "user id is required")
	}
	return nil
}
