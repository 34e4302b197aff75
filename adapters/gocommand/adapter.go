// Package gocommand wires the relay commands into a go-command registry and
// dispatcher.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	relaycommand "github.com/goliatone/go-auth-relay/command"
	"github.com/goliatone/go-auth-relay/core"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

// Dispatch validates msg and sends it to the subscribed command.
func Dispatch[T any](ctx context.Context, msg T) error {
	if err := ValidateMessageContract(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// RegisterRelayCommands subscribes the created, updated and deleted relay
// commands backed by handler. On error every subscription made so far is
// removed.
func RegisterRelayCommands(
	adapter *RegistryAdapter,
	handler core.Handler,
	runnerOpts ...runner.Option,
) ([]commanddispatcher.Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("gocommand: relay handler is required")
	}
	subscriptions := make([]commanddispatcher.Subscription, 0, 3)
	rollback := func() {
		for _, sub := range subscriptions {
			if sub != nil {
				sub.Unsubscribe()
			}
		}
	}

	created, err := RegisterAndSubscribe[relaycommand.RelayCreatedMessage](adapter, relaycommand.NewRelayCreatedCommand(handler), runnerOpts...)
	if err != nil {
		return nil, err
	}
	subscriptions = append(subscriptions, created)

	updated, err := RegisterAndSubscribe[relaycommand.RelayUpdatedMessage](adapter, relaycommand.NewRelayUpdatedCommand(handler), runnerOpts...)
	if err != nil {
		rollback()
		return nil, err
	}
	subscriptions = append(subscriptions, updated)

	deleted, err := RegisterAndSubscribe[relaycommand.RelayDeletedMessage](adapter, relaycommand.NewRelayDeletedCommand(handler), runnerOpts...)
	if err != nil {
		rollback()
		return nil, err
	}
	return append(subscriptions, deleted), nil
}
