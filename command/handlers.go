package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-auth-relay/core"
)

// RelayCreatedCommand relays a created user through the handler. The relay
// result is stored in the context result collector whether or not the relay
// succeeded.
type RelayCreatedCommand struct {
	handler core.Handler
}

func NewRelayCreatedCommand(handler core.Handler) *RelayCreatedCommand {
	return &RelayCreatedCommand{handler: handler}
}

func (c *RelayCreatedCommand) Execute(ctx context.Context, msg RelayCreatedMessage) error {
	if c == nil || c.handler == nil {
		return commandDependencyError("command: relay handler is required")
	}
	return relay(ctx, c.handler, core.CreatedEvent(msg.User))
}

type RelayUpdatedCommand struct {
	handler core.Handler
}

func NewRelayUpdatedCommand(handler core.Handler) *RelayUpdatedCommand {
	return &RelayUpdatedCommand{handler: handler}
}

func (c *RelayUpdatedCommand) Execute(ctx context.Context, msg RelayUpdatedMessage) error {
	if c == nil || c.handler == nil {
		return commandDependencyError("command: relay handler is required")
	}
	return relay(ctx, c.handler, core.UpdatedEvent(msg.Before, msg.After))
}

type RelayDeletedCommand struct {
	handler core.Handler
}

func NewRelayDeletedCommand(handler core.Handler) *RelayDeletedCommand {
	return &RelayDeletedCommand{handler: handler}
}

func (c *RelayDeletedCommand) Execute(ctx context.Context, msg RelayDeletedMessage) error {
	if c == nil || c.handler == nil {
		return commandDependencyError("command: relay handler is required")
	}
	return relay(ctx, c.handler, core.DeletedEvent(msg.User))
}

func relay(ctx context.Context, handler core.Handler, event core.RawEvent) error {
	result, err := handler.Handle(ctx, event)
	storeResult(ctx, result)
	return err
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
