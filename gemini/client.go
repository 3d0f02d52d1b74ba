package gemini

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/fwojciec/praxis"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Interface compliance checks.
var (
	_ praxis.Transport      = (*Client)(nil)
	_ praxis.SessionOpener  = (*Client)(nil)
	_ praxis.ModuleLister   = (*Client)(nil)
	_ praxis.HistoryFetcher = (*Client)(nil)
)

// StreamFunc produces a streaming generation. It matches
// genai.Models.GenerateContentStream.
type StreamFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

// Config selects the Gemini backend. Set APIKey for the Gemini API, or
// Project (and optionally Location) for Vertex AI.
type Config struct {
	APIKey   string
	Project  string
	Location string
}

// conversation is one session's state.
type conversation struct {
	moduleID string
	contents []*genai.Content
	messages []praxis.Message
}

// Client implements praxis transports on top of Gemini.
type Client struct {
	stream StreamFunc
	model  string
	logger zerolog.Logger
	now    func() time.Time

	mu            sync.Mutex
	conversations map[string]*conversation
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the model ID. Default is gemini-2.5-flash.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the logger. Default: zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithStreamFunc replaces the SDK call. Useful for testing.
func WithStreamFunc(fn StreamFunc) Option {
	return func(c *Client) { c.stream = fn }
}

// New creates a new Gemini [Client].
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.APIKey == "" && cfg.Project != "" {
		location := cfg.Location
		if location == "" {
			location = "us-central1"
		}
		cc = &genai.ClientConfig{
			Project:  cfg.Project,
			Location: location,
			Backend:  genai.BackendVertexAI,
		}
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	c := &Client{
		stream:        gc.Models.GenerateContentStream,
		model:         defaultModel,
		logger:        zerolog.Nop(),
		now:           time.Now,
		conversations: make(map[string]*conversation),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// OpenSession starts a conversation and returns its token.
func (c *Client) OpenSession(_ context.Context, _, moduleID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked(moduleID), nil
}

func (c *Client) openLocked(moduleID string) string {
	token := uuid.NewString()
	c.conversations[token] = &conversation{moduleID: moduleID}
	c.logger.Debug().Str("session", token).Str("module_id", moduleID).Msg("gemini: session opened")
	return token
}

// Send starts generating a reply to req. A request without a session token
// starts a new conversation; the token is reported in the response. An
// unknown token fails with ErrConnectionFailed, as the backend does.
func (c *Client) Send(ctx context.Context, req praxis.Request) (*praxis.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	c.mu.Lock()
	token := req.SessionToken
	if token == "" {
		token = c.openLocked(req.ModuleID)
	}
	conv, ok := c.conversations[token]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("gemini: %w: session %q not found", praxis.ErrConnectionFailed, token)
	}
	history := slices.Clone(conv.contents)
	moduleID := conv.moduleID
	c.mu.Unlock()

	user := genai.NewContentFromText(req.Message, genai.RoleUser)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt(moduleID), genai.RoleUser),
	}
	sent := c.now()

	c.logger.Debug().Str("session", token).Str("model", c.model).Int("history", len(history)).Msg("gemini: generate")
	seq := c.stream(ctx, c.model, append(history, user), config)

	body := newBody(ctx, seq, func(reply string) {
		c.commit(token, req.Message, sent, reply)
	})
	return &praxis.Response{SessionToken: token, Body: body}, nil
}

// commit appends a completed exchange to the conversation history.
func (c *Client) commit(token, text string, sent time.Time, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.conversations[token]
	if !ok {
		return
	}
	conv.contents = append(conv.contents,
		genai.NewContentFromText(text, genai.RoleUser),
		genai.NewContentFromText(reply, genai.RoleModel),
	)
	conv.messages = append(conv.messages,
		praxis.Message{Role: praxis.RoleUser, Content: text, Status: praxis.StatusComplete, Timestamp: sent},
		praxis.Message{Role: praxis.RoleAssistant, Content: reply, Status: praxis.StatusComplete, Timestamp: c.now()},
	)
}

// Modules returns the standalone module catalogue.
func (c *Client) Modules(context.Context) ([]praxis.Module, error) {
	return slices.Clone(modules), nil
}

// History returns the completed exchanges of a conversation.
func (c *Client) History(_ context.Context, token string) ([]praxis.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.conversations[token]
	if !ok {
		return nil, fmt.Errorf("gemini: %w: session %q not found", praxis.ErrValidation, token)
	}
	return slices.Clone(conv.messages), nil
}
