package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/xhit/go-str2duration/v2"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize pending operations",
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

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Snapshot %s (%s)\n", s.key, opts.path)
			fmt.Fprintf(out, "  Pending:   %d\n", len(ops))
			if len(ops) == 0 {
				return nil
			}

			byType := make(map[string]int)
			retrying := 0
			oldest := ops[0].EnqueuedAt
			for _, op := range ops {
				byType[op.Type]++
				if op.Retries > 0 {
					retrying++
				}
				if op.EnqueuedAt.Before(oldest) {
					oldest = op.EnqueuedAt
				}
			}
			fmt.Fprintf(out, "  Retrying:  %d\n", retrying)
			fmt.Fprintf(out, "  Oldest:    %s ago\n", str2duration.String(time.Since(oldest).Truncate(time.Second)))

			types := make([]string, 0, len(byType))
			for t := range byType {
				types = append(types, t)
			}
			slices.Sort(types)
			fmt.Fprintf(out, "  By type:\n")
			for _, t := range types {
				fmt.Fprintf(out, "    %-24s %d\n", t, byType[t])
			}
			return nil
		},
	}
}
