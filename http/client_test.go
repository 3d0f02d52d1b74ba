package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fwojciec/praxis"
	praxishttp "github.com/fwojciec/praxis/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendRequestFormat(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/message", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Session-Id", "42")
		_, _ = io.WriteString(w, "hello")
	}))
	defer srv.Close()

	client := praxishttp.New(praxishttp.WithBaseURL(srv.URL))
	resp, err := client.Send(context.Background(), praxis.Request{
		SessionToken: "42",
		ModuleID:     "fundamentals",
		UserID:       "7",
		Message:      "What is a variable?",
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, float64(7), body["user_id"])
	assert.Equal(t, "fundamentals", body["module_id"])
	assert.Equal(t, "What is a variable?", body["message"])
	assert.Equal(t, float64(42), body["session_id"])

	assert.Equal(t, "42", resp.SessionToken)
	assert.Equal(t, "utf-8", resp.Charset)
	text, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(text))
}

func TestClient_SendNewConversation(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "hi")
	}))
	defer srv.Close()

	client := praxishttp.New(praxishttp.WithBaseURL(srv.URL))
	resp, err := client.Send(context.Background(), praxis.Request{
		ModuleID: "fundamentals",
		UserID:   "u-abc",
		Message:  "hi",
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Contains(t, body, "session_id")
	assert.Nil(t, body["session_id"])
	assert.Equal(t, "u-abc", body["user_id"])
	assert.Empty(t, resp.SessionToken)
	assert.Empty(t, resp.Charset)
}

func TestClient_SendCharset(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=ISO-8859-1")
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xe9})
	}))
	defer srv.Close()

	client := praxishttp.New(praxishttp.WithBaseURL(srv.URL))
	resp, err := client.Send(context.Background(), praxis.Request{ModuleID: "m", UserID: "1", Message: "x"})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "ISO-8859-1", resp.Charset)

	dec, err := praxis.NewDecoder(resp.Body, praxis.WithCharset(resp.Charset))
	require.NoError(t, err)
	var got string
	for delta, err := range dec.Deltas() {
		require.NoError(t, err)
		got += delta
	}
	assert.Equal(t, "café", got)
}

func TestClient_SendValidation(t *testing.T) {
	t.Parallel()

	client := praxishttp.New(praxishttp.WithBaseURL("http://127.0.0.1:0"))
	_, err := client.Send(context.Background(), praxis.Request{ModuleID: "m", UserID: "1", Message: "  "})
	assert.ErrorIs(t, err, praxis.ErrValidation)
}

func TestClient_SendHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "detail string",
			status:  http.StatusNotFound,
			body:    `{"detail":"Session not found"}`,
			wantMsg: "HTTP 404: Session not found",
		},
		{
			name:    "detail list",
			status:  http.StatusUnprocessableEntity,
			body:    `{"detail":[{"loc":["body","user_id"],"msg":"field required"}]}`,
			wantMsg: "field required",
		},
		{
			name:    "plain body",
			status:  http.StatusBadGateway,
			body:    "upstream down",
			wantMsg: "HTTP 502: upstream down",
		},
		{
			name:    "empty body",
			status:  http.StatusInternalServerError,
			wantMsg: "HTTP 500: Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			client := praxishttp.New(praxishttp.WithBaseURL(srv.URL))
			_, err := client.Send(context.Background(), praxis.Request{ModuleID: "m", UserID: "1", Message: "x"})
			require.Error(t, err)
			assert.ErrorIs(t, err, praxis.ErrConnectionFailed)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestClient_SendConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client := praxishttp.New(praxishttp.WithBaseURL(addr))
	_, err := client.Send(context.Background(), praxis.Request{ModuleID: "m", UserID: "1", Message: "x"})
	assert.ErrorIs(t, err, praxis.ErrConnectionFailed)
}

func TestClient_SendStreamsProgressively(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Session-Id", "9")
		_, _ = io.WriteString(w, "first ")
		w.(http.Flusher).Flush()
		<-release
		_, _ = io.WriteString(w, "second")
	}))
	defer srv.Close()

	client := praxishttp.New(praxishttp.WithBaseURL(srv.URL))
	resp, err := client.Send(context.Background(), praxis.Request{ModuleID: "m", UserID: "1", Message: "x"})
	require.NoError(t, err)
	defer resp.Body.Close()

	dec, err := praxis.NewDecoder(resp.Body)
	require.NoError(t, err)

	delta, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "first ", delta)

	close(release)
	var rest string
	for delta, err := range dec.Deltas() {
		require.NoError(t, err)
		rest += delta
	}
	assert.Equal(t, "second", rest)
}

func TestClient_SendCancelUnblocksBody(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "partial")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-done:
		}
	}))
	defer srv.Close()
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	client := praxishttp.New(praxishttp.WithBaseURL(srv.URL))
	resp, err := client.Send(ctx, praxis.Request{ModuleID: "m", UserID: "1", Message: "x"})
	require.NoError(t, err)
	defer resp.Body.Close()

	dec, err := praxis.NewDecoder(resp.Body)
	require.NoError(t, err)
	delta, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "partial", delta)

	cancel()
	_, err = dec.Next()
	assert.ErrorIs(t, err, praxis.ErrStreamInterrupted)
}

func TestClient_OpenSession(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/session", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(7), body["user_id"])
		assert.Equal(t, "advanced", body["module_id"])
		_, _ = io.WriteString(w, `{"session_id": 101}`)
	}))
	defer srv.Close()

	client := praxishttp.New(praxishttp.WithBaseURL(srv.URL))
	token, err := client.OpenSession(context.Background(), "7", "advanced")
	require.NoError(t, err)
	assert.Equal(t, "101", token)
}

func TestClient_OpenSessionUnsupported(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"Not Found"}`)
	}))
	defer srv.Close()

	client := praxishttp.New(praxishttp.WithBaseURL(srv.URL))
	_, err := client.OpenSession(context.Background(), "7", "advanced")
	assert.ErrorIs(t, err, praxis.ErrConnectionFailed)
}

func TestClient_Modules(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/modules/", r.URL.Path)
		_, _ = io.WriteString(w, `[
			{"id":"practice","title":"Practice Prompting","description":"Hands-on exercises to refine your skills."},
			{"id":"assessment","title":"Assessment","description":"Gauge your current knowledge level."}
		]`)
	}))
	defer srv.Close()

	client := praxishttp.New(praxishttp.WithBaseURL(srv.URL + "/"))
	modules, err := client.Modules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []praxis.Module{
		{ID: "practice", Title: "Practice Prompting", Description: "Hands-on exercises to refine your skills."},
		{ID: "assessment", Title: "Assessment", Description: "Gauge your current knowledge level."},
	}, modules)
}

func TestClient_ModulesMalformed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"not":"a list"}`)
	}))
	defer srv.Close()

	client := praxishttp.New(praxishttp.WithBaseURL(srv.URL))
	_, err := client.Modules(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_Login(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"name": "Ada", "email": "ada@example.com"}, body)
		_, _ = io.WriteString(w, `{"id": 7, "name": "Ada", "email": "ada@example.com"}`)
	}))
	defer srv.Close()

	client := praxishttp.New(praxishttp.WithBaseURL(srv.URL))
	user, err := client.Login(context.Background(), "Ada", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, praxis.User{ID: "7", Name: "Ada", Email: "ada@example.com"}, user)
}

func TestClient_LoginMissingID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"name": "Ada", "email": "ada@example.com"}`)
	}))
	defer srv.Close()

	client := praxishttp.New(praxishttp.WithBaseURL(srv.URL))
	_, err := client.Login(context.Background(), "Ada", "ada@example.com")
	assert.ErrorIs(t, err, praxis.ErrValidation)
}

func TestClient_History(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/chat/history/42", r.URL.Path)
		_, _ = io.WriteString(w, `[
			{"id":1,"session_id":42,"role":"user","content":"What is a variable?","timestamp":"2025-01-02T10:00:00.123456"},
			{"id":2,"session_id":42,"role":"ai","content":"A named value.","timestamp":"2025-01-02T10:00:03Z"},
			{"id":3,"session_id":42,"role":"system","content":"hidden","timestamp":null}
		]`)
	}))
	defer srv.Close()

	client := praxishttp.New(praxishttp.WithBaseURL(srv.URL))
	msgs, err := client.History(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, praxis.RoleUser, msgs[0].Role)
	assert.Equal(t, "What is a variable?", msgs[0].Content)
	assert.Equal(t, praxis.StatusComplete, msgs[0].Status)
	assert.Equal(t, time.Date(2025, 1, 2, 10, 0, 0, 123456000, time.UTC), msgs[0].Timestamp)

	assert.Equal(t, praxis.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "A named value.", msgs[1].Content)
	assert.Equal(t, time.Date(2025, 1, 2, 10, 0, 3, 0, time.UTC), msgs[1].Timestamp.UTC())
}

func TestClient_HistoryEmptyToken(t *testing.T) {
	t.Parallel()

	client := praxishttp.New()
	_, err := client.History(context.Background(), "")
	assert.ErrorIs(t, err, praxis.ErrValidation)
}

func TestClient_RequestIDsAreUnique(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids[r.Header.Get("X-Request-Id")] = true
		mu.Unlock()
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	client := praxishttp.New(praxishttp.WithBaseURL(srv.URL))
	for range 5 {
		_, err := client.Modules(context.Background())
		require.NoError(t, err)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, ids, 5)
	assert.NotContains(t, ids, "")
}

func TestClient_WithHTTPClient(t *testing.T) {
	t.Parallel()

	var called bool
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`[]`)),
			Request:    r,
		}, nil
	})}

	client := praxishttp.New(praxishttp.WithBaseURL("http://tutor.invalid"), praxishttp.WithHTTPClient(hc))
	modules, err := client.Modules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, modules)
	assert.True(t, called)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
