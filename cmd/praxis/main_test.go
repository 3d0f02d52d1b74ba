package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// backendServer fakes the tutor HTTP API.
type backendServer struct {
	*httptest.Server

	mu       sync.Mutex
	messages []map[string]any
}

func newBackendServer(t *testing.T) *backendServer {
	t.Helper()
	s := &backendServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": 7, "name": "Ada", "email": "ada@example.com"})
	})
	mux.HandleFunc("GET /modules/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]string{
			{"id": "assessment", "title": "Initial Assessment", "description": "Test your current knowledge"},
			{"id": "fundamentals", "title": "Prompting Fundamentals", "description": "Core techniques"},
		})
	})
	mux.HandleFunc("POST /chat/session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"session_id": 42})
	})
	mux.HandleFunc("POST /chat/message", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.mu.Lock()
		s.messages = append(s.messages, body)
		s.mu.Unlock()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Session-Id", "42")
		_, _ = w.Write([]byte("A named "))
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("value."))
	})
	mux.HandleFunc("GET /chat/history/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "42" {
			writeJSON(w, []any{})
			return
		}
		writeJSON(w, []map[string]string{
			{"role": "user", "content": "What is a variable?", "timestamp": "2025-03-01T12:00:00"},
			{"role": "ai", "content": "A named value.", "timestamp": "2025-03-01T12:00:01"},
		})
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *backendServer) sent() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.messages...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// execute runs the root command with args and a hermetic config file.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log-level: warn\n"), 0o600))

	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	defer a.close()
	cmd := a.rootCmd()
	cmd.SetArgs(append(args, "--config", cfgPath))
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}
