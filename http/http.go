// Package http implements praxis transports against the tutor backend's
// HTTP API.
package http

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://localhost:8000"

	messagePath = "/chat/message"
	sessionPath = "/chat/session"
	historyPath = "/chat/history/"
	modulesPath = "/modules/"
	loginPath   = "/auth/login"

	sessionHeader   = "X-Session-Id"
	requestIDHeader = "X-Request-Id"
)

// id is an identifier the backend may type as a number or a string. It
// marshals as a JSON number when it is all digits.
type id string

func (v id) MarshalJSON() ([]byte, error) {
	s := string(v)
	if s != "" && strings.Trim(s, "0123456789") == "" {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func (v *id) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = id(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = id(n.String())
	return nil
}

type apiMessageRequest struct {
	UserID    id     `json:"user_id"`
	ModuleID  string `json:"module_id"`
	Message   string `json:"message"`
	SessionID *id    `json:"session_id"`
}

type apiSessionRequest struct {
	UserID   id     `json:"user_id"`
	ModuleID string `json:"module_id"`
}

type apiSessionResponse struct {
	SessionID id `json:"session_id"`
}

type apiModule struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type apiLoginRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type apiUser struct {
	ID    id     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type apiHistoryMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp timestamp `json:"timestamp"`
}

// apiError is the error body the backend returns for non-2xx responses.
// Detail is a string for HTTP errors and a list of objects for validation
// errors.
type apiError struct {
	Detail json.RawMessage `json:"detail"`
}

// timestamp accepts RFC 3339 with or without a zone, and Unix seconds.
// Naive times are taken as UTC.
type timestamp struct{ time.Time }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] != '"' {
		secs, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return err
		}
		t.Time = time.UnixMilli(int64(secs * 1000)).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}
