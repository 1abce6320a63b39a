package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dailyyoga/offline/queue"
	"github.com/spf13/cobra"
)

var errNotConfirmed = errors.New("refusing to clear without --yes")

func newClearCmd(opts *rootOptions) *cobra.Command {
	var (
		typ string
		yes bool
	)
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop pending operations",
		Long: `Drop pending operations from the snapshot. The owning process must be
stopped, otherwise its next persist overwrites the change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errNotConfirmed
			}
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ops, err := s.load(cmd.Context())
			if err != nil {
				return err
			}
			before := len(ops)
			if typ == "" {
				ops = nil
			} else {
				ops = slices.DeleteFunc(ops, func(op queue.Operation) bool { return op.Type == typ })
			}
			if err := s.save(cmd.Context(), ops); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d of %d pending operations\n", before-len(ops), before)
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "only clear operations of this type")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}
