package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fwojciec/praxis"
	bt "github.com/fwojciec/praxis/bubbletea"
	"github.com/fwojciec/praxis/sqlite"
	"github.com/spf13/cobra"
)

func (a *app) chatCmd() *cobra.Command {
	var (
		moduleID   string
		session    string
		exportPath string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive tutor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if session != "" && moduleID == "" {
				return errors.New("--session needs --module")
			}
			ctx := cmd.Context()
			b, err := resolveBackend(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			user, modules, err := bootstrap(ctx, b, a.cfg)
			if err != nil {
				return err
			}
			store, err := a.openArchive()
			if err != nil {
				return err
			}

			bridge := bt.NewBridge()
			orch := a.newOrchestrator(b, store, praxis.WithObserver(bridge.Observe))

			opts := []bt.ModelOption{bt.WithUserID(user.ID), bt.WithModules(modules)}
			if exportPath != "" {
				opts = append(opts, bt.WithExportPath(exportPath))
			}
			if moduleID != "" {
				if _, err := findModule(modules, moduleID); err != nil {
					return err
				}
				var history []praxis.Message
				if session != "" {
					history, err = a.history(ctx, b, store, session)
					if err != nil {
						return err
					}
				}
				opts = append(opts, bt.WithModule(moduleID, session, history))
			}

			m := bt.New(orch, bridge, praxis.DefaultTheme(), opts...)
			if err := bt.Run(ctx, m); err != nil {
				return fmt.Errorf("TUI: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&moduleID, "module", "", "Open this module directly")
	cmd.Flags().StringVar(&session, "session", "", "Resume this session (needs --module)")
	cmd.Flags().StringVar(&exportPath, "export", "", "Path Ctrl+S saves the transcript to")
	return cmd
}

// history fetches a session's messages from the backend, falling back to the
// local archive when the backend cannot provide them.
func (a *app) history(ctx context.Context, b backend, store *sqlite.Store, token string) ([]praxis.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	msgs, err := b.history.History(ctx, token)
	if err == nil && len(msgs) > 0 {
		return msgs, nil
	}
	if store == nil {
		if err != nil {
			return nil, fmt.Errorf("fetch history: %w", err)
		}
		return msgs, nil
	}
	if err != nil {
		a.logger.Warn().Err(err).Str("session", token).Msg("praxis: backend history unavailable, using archive")
	}
	return store.History(ctx, token)
}
