package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/amoclient/internal/client/models"
	"github.com/spf13/cobra"
)

func newExportCommand(o *rootOptions) *cobra.Command {
	var (
		lo         listOptions
		fromMirror bool
	)
	cmd := &cobra.Command{
		Use:   "export <entity>",
		Short: "Upload entity records to the S3 archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, o, func(ctx context.Context, a *App, out io.Writer) error {
				if a.archive == nil {
					return commandError("export", ErrArchiveDisabled)
				}
				account := a.client.Account().Key()

				var rows []models.Record
				if fromMirror {
					if a.mirror == nil {
						return commandError("export", fmt.Errorf("--from-mirror needs a mirror driver"))
					}
					var err error
					if rows, err = a.mirror.List(ctx, account, args[0]); err != nil {
						return err
					}
				} else {
					res, err := a.fetch(ctx, args[0], lo)
					if err != nil {
						return err
					}
					rows = raws(res)
				}

				key, err := a.archive.Export(ctx, account, args[0], rows)
				if err != nil {
					return err
				}
				a.log.Info(ctx, "export uploaded", "key", key, "rows", len(rows))
				_, err = fmt.Fprintln(out, key)
				return err
			})
		},
	}
	lo.bind(cmd)
	cmd.Flags().BoolVar(&fromMirror, "from-mirror", false, "export the local mirror instead of the API")
	return cmd
}
