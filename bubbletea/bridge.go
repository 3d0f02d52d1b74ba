package bubbletea

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/praxis"
)

// Bridge carries orchestrator events into the Bubble Tea loop. Observe never
// blocks, so it is safe to install as the orchestrator's observer, which runs
// under the orchestrator's lock.
type Bridge struct {
	mu     sync.Mutex
	queue  []praxis.Event
	gen    uint64
	signal chan struct{}
}

// NewBridge creates an empty Bridge.
func NewBridge() *Bridge {
	return &Bridge{signal: make(chan struct{}, 1)}
}

// Observe queues e for delivery.
func (b *Bridge) Observe(e praxis.Event) {
	b.mu.Lock()
	b.queue = append(b.queue, e)
	b.mu.Unlock()
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Reset drops queued events and starts a new generation. Deliveries tagged
// with an older generation are stale.
func (b *Bridge) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = nil
	b.gen++
}

// Gen returns the current generation.
func (b *Bridge) Gen() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen
}

func (b *Bridge) drain() (uint64, []praxis.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.queue
	b.queue = nil
	return b.gen, events
}

// Wait returns a command that blocks until events are queued and delivers
// them as a single EventsMsg.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		for {
			if gen, events := b.drain(); len(events) > 0 {
				return EventsMsg{Gen: gen, Events: events}
			}
			<-b.signal
		}
	}
}
