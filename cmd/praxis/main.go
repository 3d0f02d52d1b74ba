// Command praxis is a terminal client for the AI prompting tutor.
//
// Usage:
//
//	praxis chat [--module id [--session token]] [--export path]
//	praxis ask <module> <text...> [--session token]
//	praxis modules
//	praxis history [<session>] [--local] [--file path]
//
// Configuration comes from flags, PRAXIS_* environment variables (for
// example PRAXIS_BASE_URL), a .env file in the working directory and
// ~/.config/praxis/config.yaml, in that order of precedence.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"

	"github.com/fwojciec/praxis"
	"github.com/fwojciec/praxis/sqlite"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "praxis: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	// Handle OS signals for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := newApp(os.Stdout, os.Stderr)
	defer a.close()
	return a.rootCmd().ExecuteContext(ctx)
}

// app holds the state shared by commands once flags are parsed.
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfg     config
	logger  zerolog.Logger
	closers []io.Closer
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, logger: zerolog.Nop()}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "praxis",
		Short:         "Learn prompting with an AI tutor from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	registerFlags(root.PersistentFlags())
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.AddCommand(a.chatCmd(), a.askCmd(), a.modulesCmd(), a.historyCmd())
	return root
}

// init resolves configuration and logging for cmd.
func (a *app) init(cmd *cobra.Command) error {
	v, err := newViper(cmd.Flags())
	if err != nil {
		return err
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	// The TUI owns the terminal, so chat only logs to a file.
	a.logger, err = a.newLogger(cmd.Name() == "chat")
	if err != nil {
		return err
	}
	a.logger.Debug().Str("transport", cfg.Transport).Str("config", v.ConfigFileUsed()).Msg("praxis: configured")
	return nil
}

func (a *app) newLogger(tui bool) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	var w io.Writer
	switch {
	case a.cfg.LogFile != "":
		f, err := os.OpenFile(a.cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, f)
		w = f
	case tui:
		return zerolog.Nop(), nil
	default:
		w = zerolog.ConsoleWriter{Out: a.stderr, NoColor: !isTerminal(a.stderr)}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// openArchive opens the local transcript archive, or returns nil when none
// is configured.
func (a *app) openArchive() (*sqlite.Store, error) {
	if a.cfg.Archive == "" {
		return nil, nil
	}
	dsn, err := sqlite.DSNForFile(a.cfg.Archive)
	if err != nil {
		return nil, err
	}
	store, err := sqlite.Open(dsn)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store)
	return store, nil
}

// newOrchestrator builds an orchestrator over b, recording into store when
// it is set.
func (a *app) newOrchestrator(b backend, store *sqlite.Store, opts ...praxis.Option) *praxis.Orchestrator {
	base := []praxis.Option{
		praxis.WithLogger(a.logger),
		praxis.WithLog(praxis.NewLog(praxis.WithStrict(a.cfg.Strict))),
	}
	if store != nil {
		base = append(base, praxis.WithRecorder(store))
	}
	return praxis.NewOrchestrator(b.transport, append(base, opts...)...)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			fmt.Fprintf(a.stderr, "praxis: close: %v\n", err)
		}
	}
	a.closers = nil
}
