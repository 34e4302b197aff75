package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	relay "github.com/goliatone/go-auth-relay"
	"github.com/goliatone/go-auth-relay/source/httpsource"
)

type sendOptions struct {
	kind              string
	uid               string
	email             string
	displayName       string
	beforeEmail       string
	beforeDisplayName string
}

func newSendCmd(root *rootOptions) *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Relay a single lifecycle event and print the result",
		Example: `  authrelay send --kind created --uid u1 --email a@b.com --display-name A
  authrelay send --kind deleted --uid u2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := relay.ParseEventKind(opts.kind)
			if err != nil {
				return err
			}
			rt, err := root.build(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = rt.sync() }()

			result, handleErr := rt.relay.Handle(cmd.Context(), opts.event(cmd, kind))
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(httpsource.NewEventResponse(kind, result, handleErr)); err != nil {
				return fmt.Errorf("authrelay: encode result: %w", err)
			}
			return handleErr
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.kind, "kind", "", "event kind: created, updated or deleted")
	flags.StringVar(&opts.uid, "uid", "", "user id")
	flags.StringVar(&opts.email, "email", "", "email address")
	flags.StringVar(&opts.displayName, "display-name", "", "display name")
	flags.StringVar(&opts.beforeEmail, "before-email", "", "previous email address for updates")
	flags.StringVar(&opts.beforeDisplayName, "before-display-name", "", "previous display name for updates")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func (o *sendOptions) event(cmd *cobra.Command, kind relay.EventKind) relay.RawEvent {
	after := relay.UserRecord{
		UID:         strings.TrimSpace(o.uid),
		Email:       optional(cmd, "email", o.email),
		DisplayName: optional(cmd, "display-name", o.displayName),
	}
	switch kind {
	case relay.EventKindUpdated:
		before := relay.UserRecord{
			UID:         after.UID,
			Email:       optional(cmd, "before-email", o.beforeEmail),
			DisplayName: optional(cmd, "before-display-name", o.beforeDisplayName),
		}
		return relay.UpdatedEvent(before, after)
	case relay.EventKindDeleted:
		return relay.DeletedEvent(after)
	default:
		return relay.CreatedEvent(after)
	}
}

// optional distinguishes an absent flag from one explicitly set to "".
func optional(cmd *cobra.Command, name, value string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}
