package main

import (
	"fmt"
	"time"

	"github.com/dailyyoga/offline/queue"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending operations in drain order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ops, err := s.load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderOperations(ops, typ))
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "only list operations of this type")
	return cmd
}

func renderOperations(ops []queue.Operation, typ string) string {
	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.AppendHeader(prettytable.Row{"#", "ID", "Type", "Retries", "Enqueued", "Last error"})

	n := 0
	for _, op := range ops {
		if typ != "" && op.Type != typ {
			continue
		}
		n++
		t.AppendRow(prettytable.Row{
			n,
			op.ID,
			op.Type,
			fmt.Sprintf("%d/%d", op.Retries, op.MaxRetries),
			op.EnqueuedAt.Local().Format(time.DateTime),
			op.LastError,
		})
	}
	return t.Render()
}
