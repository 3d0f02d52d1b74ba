package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fwojciec/praxis"
	"github.com/fwojciec/praxis/gemini"
	praxishttp "github.com/fwojciec/praxis/http"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// localUserID identifies the learner when the backend has no accounts.
const localUserID = "local"

// backend groups the capabilities a transport offers. Auth is nil when the
// backend has no notion of users.
type backend struct {
	name      string
	transport praxis.Transport
	modules   praxis.ModuleLister
	auth      praxis.Authenticator
	history   praxis.HistoryFetcher
}

// resolveBackend selects and constructs the backend named by cfg.Transport.
func resolveBackend(ctx context.Context, cfg config, logger zerolog.Logger) (backend, error) {
	switch cfg.Transport {
	case transportHTTP:
		client := praxishttp.New(
			praxishttp.WithBaseURL(cfg.BaseURL),
			praxishttp.WithLogger(logger),
		)
		return backend{
			name:      transportHTTP,
			transport: client,
			modules:   client,
			auth:      client,
			history:   client,
		}, nil
	case transportGemini:
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:   cfg.GeminiAPIKey,
			Project:  cfg.GCPProject,
			Location: cfg.GCPLocation,
		}, gemini.WithModel(cfg.Model), gemini.WithLogger(logger))
		if err != nil {
			return backend{}, err
		}
		return backend{
			name:      transportGemini,
			transport: client,
			modules:   client,
			history:   client,
		}, nil
	default:
		return backend{}, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// bootstrap logs in and lists modules concurrently. Both must succeed.
func bootstrap(ctx context.Context, b backend, cfg config) (praxis.User, []praxis.Module, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var (
		user    praxis.User
		modules []praxis.Module
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := login(gctx, b.auth, cfg)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	g.Go(func() error {
		m, err := b.modules.Modules(gctx)
		if err != nil {
			return fmt.Errorf("list modules: %w", err)
		}
		modules = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return praxis.User{}, nil, err
	}
	return user, modules, nil
}

func login(ctx context.Context, auth praxis.Authenticator, cfg config) (praxis.User, error) {
	if auth == nil {
		return praxis.User{ID: localUserID, Name: cfg.UserName, Email: cfg.UserEmail}, nil
	}
	if cfg.UserName == "" || cfg.UserEmail == "" {
		return praxis.User{}, errors.New("user-name and user-email are required to log in")
	}
	u, err := auth.Login(ctx, cfg.UserName, cfg.UserEmail)
	if err != nil {
		return praxis.User{}, fmt.Errorf("log in as %s: %w", cfg.UserEmail, err)
	}
	return u, nil
}

// findModule returns the module with the given ID.
func findModule(modules []praxis.Module, id string) (praxis.Module, error) {
	for _, m := range modules {
		if m.ID == id {
			return m, nil
		}
	}
	ids := make([]string, len(modules))
	for i, m := range modules {
		ids[i] = m.ID
	}
	return praxis.Module{}, fmt.Errorf("unknown module %q (available: %v)", id, ids)
}

