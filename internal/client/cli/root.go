package cli

import (
	"context"
	"io"

	"github.com/dmitrijs2005/amoclient/internal/client/archive"
	"github.com/dmitrijs2005/amoclient/internal/client/config"
	"github.com/spf13/cobra"
)

// Option customises the command tree, mainly for tests.
type Option func(*rootOptions)

type rootOptions struct {
	archiveOpts []archive.Option
}

// WithArchiveOptions passes extra options to the S3 archive store.
func WithArchiveOptions(opts ...archive.Option) Option {
	return func(o *rootOptions) { o.archiveOpts = append(o.archiveOpts, opts...) }
}

// NewRootCommand creates the root command for amocli.
func NewRootCommand(opts ...Option) *cobra.Command {
	o := &rootOptions{}
	for _, opt := range opts {
		opt(o)
	}

	cmd := &cobra.Command{
		Use:           "amocli",
		Short:         "amocli - batch client for the amoCRM v2 API",
		Long:          "List, add and update amoCRM entities in batches, with optional local mirror and S3 export.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newListCommand(o))
	cmd.AddCommand(newFindCommand(o))
	cmd.AddCommand(newAddCommand(o))
	cmd.AddCommand(newUpdateCommand(o))
	cmd.AddCommand(newExportCommand(o))

	return cmd
}

// withApp loads configuration for cmd, builds an App, runs fn and closes
// the App.
func withApp(cmd *cobra.Command, o *rootOptions, fn func(ctx context.Context, a *App, out io.Writer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return commandError("cannot load configuration", err)
	}

	a, err := NewApp(ctx, cfg, cmd.ErrOrStderr(), o.archiveOpts...)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	return fn(ctx, a, cmd.OutOrStdout())
}
