package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RelayCreatedMessage] = (*RelayCreatedCommand)(nil)
	_ gocmd.Commander[RelayUpdatedMessage] = (*RelayUpdatedCommand)(nil)
	_ gocmd.Commander[RelayDeletedMessage] = (*RelayDeletedCommand)(nil)
)
