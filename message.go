package praxis

import "time"

// Status is the lifecycle state of a Message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a final outcome.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Message is one entry in the conversation log. Messages are values; the Log
// hands out copies so readers never share memory with the writer.
type Message struct {
	Role      Role
	Content   string
	Status    Status
	Timestamp time.Time
}

// Module is a conversation topic offered by the backend.
type Module struct {
	ID          string
	Title       string
	Description string
}

// User identifies the person on whose behalf turns are sent.
type User struct {
	ID    string
	Name  string
	Email string
}
