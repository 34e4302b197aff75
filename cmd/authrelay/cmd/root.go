// Package cmd holds the authrelay command tree.
package cmd

import (
	"context"
	"fmt"
	"os"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/spf13/cobra"

	relay "github.com/goliatone/go-auth-relay"
	"github.com/goliatone/go-auth-relay/adapters/gologger"
	"github.com/goliatone/go-auth-relay/adapters/zaplogger"
	"github.com/goliatone/go-auth-relay/config"
)

var version = "dev"

type rootOptions struct {
	envFiles []string
	debug    bool
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "authrelay",
		Short: "Relay identity lifecycle events to a downstream webhook",
		Long: `authrelay turns user created, updated and deleted notifications into
signed JSON POSTs against a downstream API.

Configuration comes from AUTH_RELAY_* environment variables, optionally
seeded from one or more .env files.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv file(s) to load before reading the environment")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable development logging")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newSendCmd(opts))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the authrelay version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "authrelay %s\n", version)
		},
	})
	return root
}

// runtime bundles what every subcommand needs: a relay wired to the loaded
// configuration and the logger it reports through.
type runtime struct {
	relay  *relay.Relay
	logger glog.Logger
	sync   func() error
}

func (o *rootOptions) build(ctx context.Context) (*runtime, error) {
	base, err := zaplogger.NewProduction(o.debug)
	if err != nil {
		return nil, fmt.Errorf("authrelay: build logger: %w", err)
	}
	provider, logger := gologger.Resolve("authrelay", zaplogger.NewProvider(base), nil)

	cfg, err := config.Load(ctx, relay.Config{}, o.envFiles...)
	if err != nil {
		_ = base.Sync()
		return nil, err
	}
	r, err := relay.New(cfg,
		relay.WithLoggerProvider(provider),
		relay.WithLogger(gologger.Named(provider, cfg.ServiceName)),
	)
	if err != nil {
		_ = base.Sync()
		return nil, err
	}
	return &runtime{relay: r, logger: logger, sync: base.Sync}, nil
}
