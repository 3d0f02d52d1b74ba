package praxis

import (
	"context"
	"io"
)

// Request is one user turn sent to the backend.
type Request struct {
	SessionToken string // empty = start a new backend conversation
	ModuleID     string
	UserID       string
	Message      string
}

// Response is a reply whose body is delivered progressively. The body carries
// only reply text; the session token travels beside it.
type Response struct {
	// SessionToken is the conversation the backend filed this turn under.
	// Empty when the backend did not report one.
	SessionToken string
	// Charset of Body. Empty means UTF-8.
	Charset string
	Body    io.ReadCloser
}

// Transport sends a turn to the backend. Send returns once the response has
// been established; an error means no response was obtained and wraps
// ErrConnectionFailed. Read errors on Body are mid-stream failures.
// Cancellation flows through ctx and must unblock reads on Body.
type Transport interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// SessionOpener is implemented by transports that can create a backend
// conversation up front, before the first message is sent.
type SessionOpener interface {
	OpenSession(ctx context.Context, userID, moduleID string) (string, error)
}

// ModuleLister returns the modules offered by the backend, in server order.
type ModuleLister interface {
	Modules(ctx context.Context) ([]Module, error)
}

// Authenticator resolves the user on whose behalf turns are sent.
type Authenticator interface {
	Login(ctx context.Context, name, email string) (User, error)
}

// HistoryFetcher returns the persisted messages of a conversation.
type HistoryFetcher interface {
	History(ctx context.Context, token string) ([]Message, error)
}

// Recorder receives every message once it reaches a terminal status.
type Recorder interface {
	Record(ctx context.Context, sc SessionContext, msg Message) error
}
