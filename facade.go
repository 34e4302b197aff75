package relay

import (
	relaycommand "github.com/goliatone/go-auth-relay/command"
	"github.com/goliatone/go-auth-relay/core"
)

type Commands struct {
	Created *relaycommand.RelayCreatedCommand
	Updated *relaycommand.RelayUpdatedCommand
	Deleted *relaycommand.RelayDeletedCommand
}

// Facade groups the command handlers built on top of a single relay handler.
type Facade struct {
	handler  core.Handler
	commands Commands
}

func NewFacade(handler core.Handler) (*Facade, error) {
	if handler == nil {
		return nil, core.ConfigurationError("relay: handler is required")
	}
	return &Facade{
		handler: handler,
		commands: Commands{
			Created: relaycommand.NewRelayCreatedCommand(handler),
			Updated: relaycommand.NewRelayUpdatedCommand(handler),
			Deleted: relaycommand.NewRelayDeletedCommand(handler),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Handler() core.Handler {
	if f == nil {
		return nil
	}
	return f.handler
}
