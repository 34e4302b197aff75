package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-auth-relay/source/httpsource"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr      string
		bodyLimit string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept lifecycle events over HTTP and relay them downstream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := root.build(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = rt.sync() }()

			server := httpsource.NewServer(
				httpsource.WithLogger(rt.logger),
				httpsource.WithBodyLimit(bodyLimit),
			)
			if err := rt.relay.Attach(server); err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			rt.logger.Info("shutting down event source")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&bodyLimit, "body-limit", "1M", "maximum accepted request body")
	return cmd
}
