package praxis

// Event is a sealed interface for changes published by the Orchestrator.
// Renderers use events as a prompt to take a fresh Log snapshot; the events
// carry enough detail for incremental rendering as well.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventMessageAppended signals a new message at the tail of the log.
type EventMessageAppended struct {
	Ref     Ref
	Message Message
}

func (EventMessageAppended) event() {}

// EventMessageUpdated signals a delta applied to the streaming tail.
type EventMessageUpdated struct {
	Ref   Ref
	Delta string
}

func (EventMessageUpdated) event() {}

// EventMessageFinalized signals that a message reached a terminal status.
type EventMessageFinalized struct {
	Ref     Ref
	Message Message
}

func (EventMessageFinalized) event() {}

// EventStateChanged signals an Orchestrator state transition.
type EventStateChanged struct {
	From State
	To   State
}

func (EventStateChanged) event() {}

// EventSessionBound signals that the view learned its session token.
type EventSessionBound struct {
	Token string
}

func (EventSessionBound) event() {}

// EventNotice carries a condition the user should see that does not fail the
// turn, such as ErrSessionLost.
type EventNotice struct {
	Err error
}

func (EventNotice) event() {}

// Interface compliance checks.
var (
	_ Event = EventMessageAppended{}
	_ Event = EventMessageUpdated{}
	_ Event = EventMessageFinalized{}
	_ Event = EventStateChanged{}
	_ Event = EventSessionBound{}
	_ Event = EventNotice{}
)
