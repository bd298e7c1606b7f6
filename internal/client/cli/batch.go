package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/amoclient/internal/client/models"
	"github.com/dmitrijs2005/amoclient/internal/client/services"
	"github.com/spf13/cobra"
)

// toModels builds models from input rows. For update every row needs an id,
// only the row's own fields are sent and rows without updated_at are
// stamped with now.
func toModels(svc *services.Service, rows []models.Record, update bool, now time.Time) ([]*models.ApiModel, error) {
	out := make([]*models.ApiModel, 0, len(rows))
	for i, r := range rows {
		var m *models.ApiModel
		if update {
			id, ok := r.Int64(models.FieldID)
			if !ok || id <= 0 {
				return nil, fmt.Errorf("row %d: update needs a numeric id", i+1)
			}
			m = models.NewApiModel(svc.Definition().Entity, nil)
			m.SetID(id)
		} else {
			m = svc.Create()
		}
		for k, v := range r {
			m.Set(k, v)
		}
		if update {
			if _, ok := r[models.FieldUpdatedAt]; !ok {
				m.Set(models.FieldUpdatedAt, now.Unix())
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// report prints the reconciled models and maps unreconciled rows to
// ExitPartial.
func report(out, errOut io.Writer, res services.BatchResult) error {
	saved := make([]models.Record, 0, len(res.Models))
	for _, m := range res.Models {
		if m.Saved() {
			saved = append(saved, m.Raw())
		}
	}
	if err := writeRecords(out, saved); err != nil {
		return err
	}
	fmt.Fprintf(errOut, "saved %d of %d\n", len(saved), len(res.Models))
	if !res.Saved {
		return &ExitError{Code: ExitPartial, Message: fmt.Sprintf("%d rows were not reconciled", len(res.Missed))}
	}
	return nil
}

func newBatchCommand(o *rootOptions, use, short string, update bool) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   use + " <entity>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readRecords(file, cmd.InOrStdin())
			if err != nil {
				return commandError("cannot read input", err)
			}

			return withApp(cmd, o, func(ctx context.Context, a *App, out io.Writer) error {
				svc, err := a.Service(args[0])
				if err != nil {
					return err
				}
				ms, err := toModels(svc, rows, update, time.Now())
				if err != nil {
					return commandError("invalid input", err)
				}

				var res services.BatchResult
				if update {
					res, err = svc.Update(ctx, ms)
				} else {
					res, err = svc.Add(ctx, ms)
				}
				if err != nil {
					return err
				}
				return report(out, cmd.ErrOrStderr(), res)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON lines input, - for stdin")
	return cmd
}

func newAddCommand(o *rootOptions) *cobra.Command {
	return newBatchCommand(o, "add", "Create records from JSON lines", false)
}

func newUpdateCommand(o *rootOptions) *cobra.Command {
	return newBatchCommand(o, "update", "Update records from JSON lines; each row needs an id", true)
}
