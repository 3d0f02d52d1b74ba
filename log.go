package praxis

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"
)

// Ref addresses a message in a Log. It is the message's index and stays
// valid until the log is reset.
type Ref int

// Log is the ordered, append-only message log. It has one writer at a time
// (the Orchestrator) and any number of concurrent readers, which observe it
// through Snapshot.
//
// Only the tail message may change after it is appended, and only while its
// status is StatusStreaming. Everything before the tail is immutable.
type Log struct {
	mu     sync.RWMutex
	msgs   []Message
	strict bool
	now    func() time.Time
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithStrict makes contract violations panic instead of returning
// ErrInvalidReference.
func WithStrict(strict bool) LogOption {
	return func(l *Log) { l.strict = strict }
}

// WithClock sets the time source used to stamp appended messages.
func WithClock(now func() time.Time) LogOption {
	return func(l *Log) { l.now = now }
}

// NewLog creates an empty Log.
func NewLog(opts ...LogOption) *Log {
	l := &Log{now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Append adds msg at the tail and returns its reference. A zero Timestamp is
// filled in. Appending while the tail is still streaming is refused, which
// keeps at most one streaming message in the log.
func (l *Log) Append(msg Message) (Ref, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.msgs); n > 0 && l.msgs[n-1].Status == StatusStreaming {
		return -1, l.violation("append while message %d is streaming", n-1)
	}
	if msg.Status == "" {
		msg.Status = StatusComplete
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = l.now()
	}
	l.msgs = append(l.msgs, msg)
	return Ref(len(l.msgs) - 1), nil
}

// Update concatenates delta onto the content of the message at ref. The
// message must be the tail and must be streaming.
func (l *Log) Update(ref Ref, delta string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkTail(ref); err != nil {
		return err
	}
	l.msgs[ref].Content += delta
	return nil
}

// Finalize moves the streaming message at ref to a terminal status.
func (l *Log) Finalize(ref Ref, outcome Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !outcome.Terminal() {
		return l.violation("finalize with non-terminal status %q", outcome)
	}
	if err := l.checkTail(ref); err != nil {
		return err
	}
	l.msgs[ref].Status = outcome
	return nil
}

// Streaming reports whether a message is currently streaming.
func (l *Log) Streaming() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.msgs)
	return n > 0 && l.msgs[n-1].Status == StatusStreaming
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

// Reset removes every message. It is the only way messages are destroyed.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = nil
}

// Snapshot returns an immutable copy of the log.
func (l *Log) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{msgs: slices.Clone(l.msgs)}
}

// checkTail must be called with mu held.
func (l *Log) checkTail(ref Ref) error {
	n := len(l.msgs)
	switch {
	case ref < 0 || int(ref) >= n:
		return l.violation("ref %d out of range [0,%d)", ref, n)
	case int(ref) != n-1:
		return l.violation("ref %d is not the tail (%d)", ref, n-1)
	case l.msgs[ref].Status != StatusStreaming:
		return l.violation("message %d is %s, not streaming", ref, l.msgs[ref].Status)
	}
	return nil
}

func (l *Log) violation(format string, args ...any) error {
	err := fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidReference)
	if l.strict {
		panic(err)
	}
	return err
}

// Snapshot is a point-in-time, read-only view of a Log.
type Snapshot struct {
	msgs []Message
}

// Len returns the number of messages in the snapshot.
func (s Snapshot) Len() int { return len(s.msgs) }

// At returns the message at index i.
func (s Snapshot) At(i int) Message { return s.msgs[i] }

// All iterates over the messages in display order.
func (s Snapshot) All() iter.Seq2[int, Message] {
	return func(yield func(int, Message) bool) {
		for i, m := range s.msgs {
			if !yield(i, m) {
				return
			}
		}
	}
}

// Messages returns a copy of the messages.
func (s Snapshot) Messages() []Message {
	return slices.Clone(s.msgs)
}

// Text renders the snapshot as plain text, one message per paragraph. It is
// used by non-interactive front-ends and in tests.
func (s Snapshot) Text() string {
	var b strings.Builder
	for i, m := range s.msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s: %s", m.Role, m.Content)
	}
	return b.String()
}
