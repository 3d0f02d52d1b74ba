package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/praxis"
	"github.com/fwojciec/praxis/mock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = config{
	Transport: transportHTTP,
	BaseURL:   "http://localhost:8000",
	UserName:  "Ada",
	UserEmail: "ada@example.com",
	Timeout:   time.Second,
}

func TestResolveBackend_HTTP(t *testing.T) {
	t.Parallel()

	b, err := resolveBackend(context.Background(), testConfig, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, transportHTTP, b.name)
	assert.NotNil(t, b.transport)
	assert.NotNil(t, b.auth)
	assert.NotNil(t, b.modules)
	assert.NotNil(t, b.history)
	_, ok := b.transport.(praxis.SessionOpener)
	assert.True(t, ok)
}

func TestResolveBackend_Gemini(t *testing.T) {
	t.Parallel()

	cfg := testConfig
	cfg.Transport = transportGemini
	cfg.GeminiAPIKey = "gk-test"
	b, err := resolveBackend(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, transportGemini, b.name)
	assert.Nil(t, b.auth)

	modules, err := b.modules.Modules(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, modules)
}

func TestResolveBackend_Unknown(t *testing.T) {
	t.Parallel()

	cfg := testConfig
	cfg.Transport = "carrier-pigeon"
	_, err := resolveBackend(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestBootstrap(t *testing.T) {
	t.Parallel()

	modules := []praxis.Module{{ID: "fundamentals", Title: "Prompting Fundamentals"}}
	lister := &mock.ModuleLister{ModulesFn: func(ctx context.Context) ([]praxis.Module, error) {
		return modules, nil
	}}

	t.Run("logs in and lists modules", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		auth := &mock.Authenticator{LoginFn: func(ctx context.Context, name, email string) (praxis.User, error) {
			calls.Add(1)
			assert.Equal(t, "Ada", name)
			assert.Equal(t, "ada@example.com", email)
			return praxis.User{ID: "7", Name: name, Email: email}, nil
		}}
		user, got, err := bootstrap(context.Background(), backend{modules: lister, auth: auth}, testConfig)
		require.NoError(t, err)
		assert.Equal(t, "7", user.ID)
		assert.Equal(t, modules, got)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("runs both requests concurrently", func(t *testing.T) {
		t.Parallel()

		loginStarted := make(chan struct{})
		auth := &mock.Authenticator{LoginFn: func(ctx context.Context, name, email string) (praxis.User, error) {
			close(loginStarted)
			return praxis.User{ID: "7"}, nil
		}}
		waiting := &mock.ModuleLister{ModulesFn: func(ctx context.Context) ([]praxis.Module, error) {
			select {
			case <-loginStarted:
				return modules, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}}
		_, _, err := bootstrap(context.Background(), backend{modules: waiting, auth: auth}, testConfig)
		require.NoError(t, err)
	})

	t.Run("no authenticator uses the local user", func(t *testing.T) {
		t.Parallel()

		user, _, err := bootstrap(context.Background(), backend{modules: lister}, testConfig)
		require.NoError(t, err)
		assert.Equal(t, praxis.User{ID: localUserID, Name: "Ada", Email: "ada@example.com"}, user)
	})

	t.Run("missing credentials", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig
		cfg.UserEmail = ""
		auth := &mock.Authenticator{LoginFn: func(ctx context.Context, name, email string) (praxis.User, error) {
			t.Error("login must not be called")
			return praxis.User{}, nil
		}}
		_, _, err := bootstrap(context.Background(), backend{modules: lister, auth: auth}, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "user-name and user-email are required")
	})

	t.Run("module listing failure", func(t *testing.T) {
		t.Parallel()

		failing := &mock.ModuleLister{ModulesFn: func(ctx context.Context) ([]praxis.Module, error) {
			return nil, praxis.ErrConnectionFailed
		}}
		_, _, err := bootstrap(context.Background(), backend{modules: failing}, testConfig)
		require.Error(t, err)
		assert.ErrorIs(t, err, praxis.ErrConnectionFailed)
		assert.Contains(t, err.Error(), "list modules")
	})

	t.Run("login failure", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		auth := &mock.Authenticator{LoginFn: func(ctx context.Context, name, email string) (praxis.User, error) {
			return praxis.User{}, boom
		}}
		_, _, err := bootstrap(context.Background(), backend{modules: lister, auth: auth}, testConfig)
		assert.ErrorIs(t, err, boom)
	})
}

func TestFindModule(t *testing.T) {
	t.Parallel()

	modules := []praxis.Module{{ID: "assessment"}, {ID: "fundamentals"}}
	got, err := findModule(modules, "fundamentals")
	require.NoError(t, err)
	assert.Equal(t, "fundamentals", got.ID)

	_, err = findModule(modules, "cooking")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[assessment fundamentals]")
}
