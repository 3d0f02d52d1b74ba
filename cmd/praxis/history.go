package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fwojciec/praxis"
	praxisjson "github.com/fwojciec/praxis/json"
	"github.com/spf13/cobra"
)

func (a *app) historyCmd() *cobra.Command {
	var (
		local bool
		file  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history [session]",
		Short: "Print a conversation, or list archived sessions",
		Long: "With a session token, print that conversation from the backend " +
			"(or the local archive with --local). Without one, list the sessions " +
			"kept in the local archive. --file prints an exported transcript.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				t, err := praxisjson.Load(file)
				if err != nil {
					return fmt.Errorf("load transcript: %w", err)
				}
				fmt.Fprintf(a.stdout, "module: %s  session: %s  exported: %s\n\n",
					t.Session.ModuleID, t.Session.Token, t.ExportedAt.Format(time.RFC3339))
				printMessages(a.stdout, t.Messages)
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()
			store, err := a.openArchive()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				if store == nil {
					return errors.New("listing sessions needs --archive")
				}
				sessions, err := store.Sessions(ctx, "", limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "SESSION\tMODULE\tMESSAGES\tUPDATED")
				for _, s := range sessions {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Token, s.ModuleID, s.Messages, s.UpdatedAt.Local().Format(time.DateTime))
				}
				return w.Flush()
			}

			var msgs []praxis.Message
			if local {
				if store == nil {
					return errors.New("--local needs --archive")
				}
				msgs, err = store.History(ctx, args[0])
			} else {
				var b backend
				b, err = resolveBackend(cmd.Context(), a.cfg, a.logger)
				if err != nil {
					return err
				}
				msgs, err = a.history(ctx, b, store, args[0])
			}
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				return fmt.Errorf("session %q has no messages", args[0])
			}
			printMessages(a.stdout, msgs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Read from the local archive instead of the backend")
	cmd.Flags().StringVar(&file, "file", "", "Print an exported JSON transcript")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to list")
	return cmd
}

// printMessages writes messages as plain text, one paragraph each.
func printMessages(w io.Writer, msgs []praxis.Message) {
	l := praxis.NewLog()
	for _, m := range msgs {
		if _, err := l.Append(m); err != nil {
			break
		}
	}
	fmt.Fprintln(w, l.Snapshot().Text())
}
