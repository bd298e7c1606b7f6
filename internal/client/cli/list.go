package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/dmitrijs2005/amoclient/internal/client/models"
	"github.com/spf13/cobra"
)

type listOptions struct {
	where   []string
	all     bool
	limit   int
	maxRows int
}

func (lo *listOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&lo.where, "where", "w", nil, "filter as key=value (repeatable)")
	cmd.Flags().BoolVar(&lo.all, "all", false, "follow pages until an empty page")
	cmd.Flags().IntVar(&lo.limit, "limit", 0, "page size sent as limit_rows")
	cmd.Flags().IntVar(&lo.maxRows, "max", 0, "stop after this many rows (with --all)")
}

// fetch runs a filtered list call against entity.
func (a *App) fetch(ctx context.Context, entity string, lo listOptions) (*models.Collection[*models.ApiModel], error) {
	filters, err := parseWhere(lo.where)
	if err != nil {
		return nil, commandError("bad filter", err)
	}
	svc, err := a.Service(entity)
	if err != nil {
		return nil, err
	}
	if lo.limit > 0 {
		svc.LimitRows(lo.limit)
	}
	if lo.maxRows > 0 {
		svc.MaxRows(lo.maxRows)
	}

	m := svc.ListMethod()
	for k, v := range filters {
		m.Where(k, v)
	}
	if lo.all {
		return m.RecursiveCall(ctx)
	}
	return m.Call(ctx)
}

func raws(c *models.Collection[*models.ApiModel]) []models.Record {
	items := c.Items()
	out := make([]models.Record, 0, len(items))
	for _, m := range items {
		out = append(out, m.Raw())
	}
	return out
}

func newListCommand(o *rootOptions) *cobra.Command {
	var lo listOptions
	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "List entity records as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, o, func(ctx context.Context, a *App, out io.Writer) error {
				res, err := a.fetch(ctx, args[0], lo)
				if err != nil {
					return err
				}
				return writeRecords(out, raws(res))
			})
		},
	}
	lo.bind(cmd)
	return cmd
}

func newFindCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find <entity> <id>...",
		Short: "Fetch records by id",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args)-1)
			for _, s := range args[1:] {
				id, err := strconv.ParseInt(s, 10, 64)
				if err != nil || id <= 0 {
					return commandError(fmt.Sprintf("invalid id %q", s), err)
				}
				ids = append(ids, id)
			}

			return withApp(cmd, o, func(ctx context.Context, a *App, out io.Writer) error {
				svc, err := a.Service(args[0])
				if err != nil {
					return err
				}
				if len(ids) == 1 {
					m, err := svc.Find(ctx, ids[0])
					if err != nil {
						return err
					}
					return writeRecords(out, []models.Record{m.Raw()})
				}
				res, err := svc.FindMany(ctx, ids)
				if err != nil {
					return err
				}
				return writeRecords(out, raws(res))
			})
		},
	}
}
