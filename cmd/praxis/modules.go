package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) modulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the modules the tutor offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := resolveBackend(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()
			modules, err := b.modules.Modules(ctx)
			if err != nil {
				return fmt.Errorf("list modules: %w", err)
			}

			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tDESCRIPTION")
			for _, m := range modules {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Title, m.Description)
			}
			return w.Flush()
		},
	}
}
