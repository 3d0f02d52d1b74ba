// Package json exports and imports conversation transcripts as JSON files.
package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/praxis"
)

// Transcript is a conversation view captured for export.
type Transcript struct {
	Session    praxis.SessionContext
	ExportedAt time.Time
	Messages   []praxis.Message
}

// envelope is the v1 wire format for an exported transcript.
type envelope struct {
	Version    int          `json:"version"`
	UserID     string       `json:"user_id"`
	ModuleID   string       `json:"module_id"`
	Session    string       `json:"session_id,omitempty"`
	ExportedAt time.Time    `json:"exported_at"`
	Messages   []messageDTO `json:"messages"`
}

// messageDTO is the JSON representation of a Message.
type messageDTO struct {
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// MarshalTranscript serializes a snapshot of a view in v1 envelope format.
func MarshalTranscript(sc praxis.SessionContext, snap praxis.Snapshot) ([]byte, error) {
	return marshal(Transcript{
		Session:    sc,
		ExportedAt: time.Now().UTC(),
		Messages:   snap.Messages(),
	})
}

func marshal(t Transcript) ([]byte, error) {
	env := envelope{
		Version:    1,
		UserID:     t.Session.UserID,
		ModuleID:   t.Session.ModuleID,
		Session:    t.Session.Token,
		ExportedAt: t.ExportedAt,
		Messages:   make([]messageDTO, len(t.Messages)),
	}
	for i, m := range t.Messages {
		env.Messages[i] = messageDTO{
			Role:      string(m.Role),
			Status:    string(m.Status),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
	}
	return json.MarshalIndent(env, "", "  ")
}

// UnmarshalTranscript deserializes a transcript in v1 envelope format.
func UnmarshalTranscript(data []byte) (Transcript, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Transcript{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return Transcript{}, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	msgs := make([]praxis.Message, len(env.Messages))
	for i, dto := range env.Messages {
		role, ok := praxis.ParseRole(dto.Role)
		if !ok {
			return Transcript{}, fmt.Errorf("message %d: unknown role: %q", i, dto.Role)
		}
		status := praxis.Status(dto.Status)
		switch status {
		case praxis.StatusPending, praxis.StatusStreaming, praxis.StatusComplete, praxis.StatusFailed:
		default:
			return Transcript{}, fmt.Errorf("message %d: unknown status: %q", i, dto.Status)
		}
		msgs[i] = praxis.Message{
			Role:      role,
			Status:    status,
			Content:   dto.Content,
			Timestamp: dto.Timestamp,
		}
	}
	return Transcript{
		Session: praxis.SessionContext{
			UserID:   env.UserID,
			ModuleID: env.ModuleID,
			Token:    env.Session,
		},
		ExportedAt: env.ExportedAt,
		Messages:   msgs,
	}, nil
}

// Save writes a snapshot of a view to a JSON file, creating parent
// directories as needed. The file is replaced atomically.
func Save(path string, sc praxis.SessionContext, snap praxis.Snapshot) error {
	data, err := MarshalTranscript(sc, snap)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a transcript from a JSON file.
func Load(path string) (Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Transcript{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalTranscript(data)
}
