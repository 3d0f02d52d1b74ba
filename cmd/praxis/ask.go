package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/praxis"
	"github.com/spf13/cobra"
)

func (a *app) askCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "ask <module> <text...>",
		Short: "Send one message and stream the reply to stdout",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := resolveBackend(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			user, modules, err := bootstrap(ctx, b, a.cfg)
			if err != nil {
				return err
			}
			mod, err := findModule(modules, args[0])
			if err != nil {
				return err
			}
			store, err := a.openArchive()
			if err != nil {
				return err
			}

			printer := &replyPrinter{out: a.stdout, notices: a.stderr}
			orch := a.newOrchestrator(b, store, praxis.WithObserver(printer.observe))
			orch.Enter(praxis.SessionContext{UserID: user.ID, ModuleID: mod.ID, Token: session})

			if err := orch.Submit(ctx, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout)
			if sc, ok := orch.Session(); ok {
				fmt.Fprintf(a.stderr, "session: %s\n", sc.Token)
			}
			if err := orch.LastErr(); err != nil {
				return fmt.Errorf("reply failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Continue this session")
	return cmd
}

// replyPrinter streams the tutor's reply as it arrives. It runs as the
// orchestrator observer, so it only writes.
type replyPrinter struct {
	out     io.Writer
	notices io.Writer
	reply   praxis.Ref
	active  bool
}

func (p *replyPrinter) observe(e praxis.Event) {
	switch e := e.(type) {
	case praxis.EventMessageAppended:
		if e.Message.Role == praxis.RoleAssistant {
			p.reply, p.active = e.Ref, true
			io.WriteString(p.out, e.Message.Content)
		}
	case praxis.EventMessageUpdated:
		if p.active && e.Ref == p.reply {
			io.WriteString(p.out, e.Delta)
		}
	case praxis.EventNotice:
		fmt.Fprintf(p.notices, "notice: %v\n", e.Err)
	}
}
