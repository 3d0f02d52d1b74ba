package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/fwojciec/praxis"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Interface compliance checks.
var (
	_ praxis.Transport      = (*Client)(nil)
	_ praxis.SessionOpener  = (*Client)(nil)
	_ praxis.ModuleLister   = (*Client)(nil)
	_ praxis.Authenticator  = (*Client)(nil)
	_ praxis.HistoryFetcher = (*Client)(nil)
)

// Client talks to the tutor backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithBaseURL sets the backend base URL. Useful for testing with httptest.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger. Default: zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new [Client].
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send posts a user message and returns the streamed reply. The session
// token is read from the X-Session-Id response header and the body charset
// from Content-Type.
func (c *Client) Send(ctx context.Context, req praxis.Request) (*praxis.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}

	apiReq := apiMessageRequest{
		UserID:   id(req.UserID),
		ModuleID: req.ModuleID,
		Message:  req.Message,
	}
	if req.SessionToken != "" {
		token := id(req.SessionToken)
		apiReq.SessionID = &token
	}

	resp, err := c.do(ctx, http.MethodPost, messagePath, apiReq)
	if err != nil {
		return nil, err
	}

	charset := ""
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if _, params, err := mime.ParseMediaType(ct); err == nil {
			charset = params["charset"]
		}
	}
	return &praxis.Response{
		SessionToken: strings.TrimSpace(resp.Header.Get(sessionHeader)),
		Charset:      charset,
		Body:         resp.Body,
	}, nil
}

// OpenSession creates a backend conversation before the first message.
func (c *Client) OpenSession(ctx context.Context, userID, moduleID string) (string, error) {
	var out apiSessionResponse
	if err := c.roundTrip(ctx, http.MethodPost, sessionPath, apiSessionRequest{UserID: id(userID), ModuleID: moduleID}, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("http: open session: %w", praxis.ErrSessionLost)
	}
	return string(out.SessionID), nil
}

// Modules returns the modules offered by the backend, in server order.
func (c *Client) Modules(ctx context.Context) ([]praxis.Module, error) {
	var out []apiModule
	if err := c.roundTrip(ctx, http.MethodGet, modulesPath, nil, &out); err != nil {
		return nil, err
	}
	modules := make([]praxis.Module, len(out))
	for i, m := range out {
		modules[i] = praxis.Module{ID: m.ID, Title: m.Title, Description: m.Description}
	}
	return modules, nil
}

// Login returns the user with the given email, creating it if needed.
func (c *Client) Login(ctx context.Context, name, email string) (praxis.User, error) {
	var out apiUser
	if err := c.roundTrip(ctx, http.MethodPost, loginPath, apiLoginRequest{Name: name, Email: email}, &out); err != nil {
		return praxis.User{}, err
	}
	if out.ID == "" {
		return praxis.User{}, fmt.Errorf("http: login: %w: no user id in response", praxis.ErrValidation)
	}
	return praxis.User{ID: string(out.ID), Name: out.Name, Email: out.Email}, nil
}

// History returns the persisted messages of a conversation. Messages with a
// role the client does not know are skipped.
func (c *Client) History(ctx context.Context, token string) ([]praxis.Message, error) {
	if token == "" {
		return nil, fmt.Errorf("http: history: %w: empty session token", praxis.ErrValidation)
	}
	var out []apiHistoryMessage
	if err := c.roundTrip(ctx, http.MethodGet, historyPath+url.PathEscape(token), nil, &out); err != nil {
		return nil, err
	}
	msgs := make([]praxis.Message, 0, len(out))
	for _, m := range out {
		role, ok := praxis.ParseRole(m.Role)
		if !ok {
			c.logger.Warn().Str("role", m.Role).Str("session", token).Msg("http: skipping history message")
			continue
		}
		msgs = append(msgs, praxis.Message{
			Role:      role,
			Content:   m.Content,
			Status:    praxis.StatusComplete,
			Timestamp: m.Timestamp.Time,
		})
	}
	return msgs, nil
}

// roundTrip performs a request and decodes a JSON response into out.
func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("http: %s %s: decode response: %w", method, path, err)
	}
	return nil
}

// do sends a request and returns the response if its status is 2xx. The
// caller closes the body.
func (c *Client) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("http: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("http: %w: %w", praxis.ErrConnectionFailed, err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	reqID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("http: request id: %w", err)
	}
	httpReq.Header.Set(requestIDHeader, reqID)

	log := c.logger.With().Str("request_id", reqID).Str("method", method).Str("path", path).Logger()
	log.Debug().Msg("http: request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Warn().Err(err).Msg("http: request failed")
		return nil, fmt.Errorf("http: %w: %w", praxis.ErrConnectionFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		err := parseHTTPError(resp)
		log.Warn().Err(err).Int("status", resp.StatusCode).Msg("http: request rejected")
		return nil, err
	}
	log.Debug().Int("status", resp.StatusCode).Msg("http: response")
	return resp, nil
}

func parseHTTPError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("http: %w: HTTP %d (failed to read body: %w)", praxis.ErrConnectionFailed, resp.StatusCode, err)
	}
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil || len(apiErr.Detail) == 0 {
		text := strings.TrimSpace(string(body))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("http: %w: HTTP %d: %s", praxis.ErrConnectionFailed, resp.StatusCode, text)
	}
	var detail string
	if err := json.Unmarshal(apiErr.Detail, &detail); err != nil {
		detail = string(apiErr.Detail)
	}
	return fmt.Errorf("http: %w: HTTP %d: %s", praxis.ErrConnectionFailed, resp.StatusCode, detail)
}
