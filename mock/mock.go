// Package mock provides test doubles for praxis interfaces using function
// fields.
package mock

import (
	"context"

	"github.com/fwojciec/praxis"
)

// Interface compliance checks.
var (
	_ praxis.Transport      = (*Transport)(nil)
	_ praxis.SessionOpener  = (*OpeningTransport)(nil)
	_ praxis.ModuleLister   = (*ModuleLister)(nil)
	_ praxis.Authenticator  = (*Authenticator)(nil)
	_ praxis.HistoryFetcher = (*HistoryFetcher)(nil)
	_ praxis.Recorder       = (*Recorder)(nil)
)

// Transport is a test double for praxis.Transport.
// Set SendFn before calling Send.
type Transport struct {
	SendFn func(ctx context.Context, req praxis.Request) (*praxis.Response, error)
}

// Send delegates to SendFn.
func (t *Transport) Send(ctx context.Context, req praxis.Request) (*praxis.Response, error) {
	return t.SendFn(ctx, req)
}

// OpeningTransport is a Transport that also implements praxis.SessionOpener.
type OpeningTransport struct {
	Transport
	OpenSessionFn func(ctx context.Context, userID, moduleID string) (string, error)
}

// OpenSession delegates to OpenSessionFn.
func (t *OpeningTransport) OpenSession(ctx context.Context, userID, moduleID string) (string, error) {
	return t.OpenSessionFn(ctx, userID, moduleID)
}

// ModuleLister is a test double for praxis.ModuleLister.
type ModuleLister struct {
	ModulesFn func(ctx context.Context) ([]praxis.Module, error)
}

// Modules delegates to ModulesFn.
func (m *ModuleLister) Modules(ctx context.Context) ([]praxis.Module, error) {
	return m.ModulesFn(ctx)
}

// Authenticator is a test double for praxis.Authenticator.
type Authenticator struct {
	LoginFn func(ctx context.Context, name, email string) (praxis.User, error)
}

// Login delegates to LoginFn.
func (a *Authenticator) Login(ctx context.Context, name, email string) (praxis.User, error) {
	return a.LoginFn(ctx, name, email)
}

// HistoryFetcher is a test double for praxis.HistoryFetcher.
type HistoryFetcher struct {
	HistoryFn func(ctx context.Context, token string) ([]praxis.Message, error)
}

// History delegates to HistoryFn.
func (h *HistoryFetcher) History(ctx context.Context, token string) ([]praxis.Message, error) {
	return h.HistoryFn(ctx, token)
}

// Recorder is a test double for praxis.Recorder.
type Recorder struct {
	RecordFn func(ctx context.Context, sc praxis.SessionContext, msg praxis.Message) error
}

// Record delegates to RecordFn.
func (r *Recorder) Record(ctx context.Context, sc praxis.SessionContext, msg praxis.Message) error {
	return r.RecordFn(ctx, sc, msg)
}
