package praxis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// State is the position of the Orchestrator in the turn lifecycle.
type State int32

const (
	StateIdle State = iota
	StateSubmitting
	StateStreaming
	StateFinalizing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Orchestrator runs conversation turns: it appends the user message, sends it
// through the Transport, streams the reply into the Log and finalizes it.
// One turn runs at a time; a submission while a turn is in flight is refused,
// not queued.
//
// Transport and mid-stream failures never escape Submit. They end the turn in
// StateFailed, leave whatever was streamed in place and append a visible error
// marker to the reply.
type Orchestrator struct {
	transport Transport
	log       *Log
	resolver  *Resolver
	logger    zerolog.Logger
	observe   func(Event)
	recorder  Recorder
	marker    func(error) string

	state atomic.Int32

	// mu guards the fields below and serializes log mutation with view
	// changes, so an abandoned turn can never write into a new view.
	mu      sync.Mutex
	view    uint64
	cancel  context.CancelFunc
	lastErr error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLog sets the message log. Default: a new non-strict Log.
func WithLog(l *Log) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithResolver sets the session identity resolver. Default: NewResolver().
func WithResolver(r *Resolver) Option {
	return func(o *Orchestrator) { o.resolver = r }
}

// WithLogger sets the logger. Default: zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithObserver sets a callback that receives every Event. It is called
// synchronously while internal locks are held, so it must not call Submit,
// Enter, Leave or Cancel. Reading State, Log and Session is safe.
func WithObserver(fn func(Event)) Option {
	return func(o *Orchestrator) { o.observe = fn }
}

// WithRecorder sets a Recorder that receives the user message and the reply
// once a turn ends.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithErrorMarker overrides the text appended to a failed reply.
func WithErrorMarker(fn func(error) string) Option {
	return func(o *Orchestrator) { o.marker = fn }
}

// NewOrchestrator creates an Orchestrator sending turns through t.
func NewOrchestrator(t Transport, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transport: t,
		logger:    zerolog.Nop(),
		marker:    ErrorMarker,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = NewLog()
	}
	if o.resolver == nil {
		o.resolver = NewResolver()
	}
	return o
}

// ErrorMarker is the default text shown in place of, or after, a reply that
// failed.
func ErrorMarker(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "[cancelled]"
	case errors.Is(err, ErrConnectionFailed):
		return "[error: could not connect to the tutor]"
	case errors.Is(err, ErrStreamInterrupted):
		return "[error: reply interrupted]"
	default:
		return fmt.Sprintf("[error: %v]", err)
	}
}

// State returns the current state.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

// Log returns the message log.
func (o *Orchestrator) Log() *Log { return o.log }

// Session returns the current session context and whether a token is bound.
func (o *Orchestrator) Session() (SessionContext, bool) { return o.resolver.Current() }

// LastErr returns the failure of the most recent turn, or nil if it
// completed.
func (o *Orchestrator) LastErr() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Enter starts a conversation view. Any in-flight turn is abandoned, the log
// is reset and the previous session binding is discarded.
func (o *Orchestrator) Enter(sc SessionContext) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.abandonLocked()
	o.log.Reset()
	o.lastErr = nil
	o.resolver.Enter(sc)
	o.logger.Debug().Str("module_id", sc.ModuleID).Str("user_id", sc.UserID).Msg("praxis: enter view")
	if sc.Token != "" {
		o.emit(EventSessionBound{Token: sc.Token})
	}
}

// Leave ends the current view. Any in-flight turn is abandoned and the
// session binding is cleared. A reply that was streaming is finalized as
// failed with the cancellation marker. The log is kept for display until the
// next Enter.
func (o *Orchestrator) Leave() {
	o.mu.Lock()
	sc, _ := o.resolver.Current()
	abandoned := o.failTailLocked(context.Canceled)
	o.abandonLocked()
	o.resolver.Leave()
	o.mu.Unlock()

	o.logger.Debug().Msg("praxis: leave view")
	o.record(context.Background(), sc, abandoned...)
}

// Cancel stops the in-flight turn, if any. The reply keeps what was streamed
// and is finalized as failed.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// abandonLocked detaches the in-flight turn from the view. Later deltas from
// that turn are discarded. Must be called with mu held.
func (o *Orchestrator) abandonLocked() {
	o.view++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.setStateLocked(StateIdle)
}

// failTailLocked finalizes a streaming tail as failed with the marker for
// cause. It returns the exchange to record: the user message before the
// reply, then the reply. Must be called with mu held.
func (o *Orchestrator) failTailLocked(cause error) []Message {
	if !o.log.Streaming() {
		return nil
	}
	ref := Ref(o.log.Len() - 1)
	if err := o.markLocked(ref, cause); err != nil {
		o.logger.Error().Err(err).Msg("praxis: log contract violation")
		return nil
	}
	if err := o.log.Finalize(ref, StatusFailed); err != nil {
		o.logger.Error().Err(err).Msg("praxis: log contract violation")
		return nil
	}
	snap := o.log.Snapshot()
	reply := snap.At(int(ref))
	o.emit(EventMessageFinalized{Ref: ref, Message: reply})
	o.lastErr = fmt.Errorf("%w: %w", ErrStreamInterrupted, cause)

	var msgs []Message
	if ref > 0 && snap.At(int(ref)-1).Role == RoleUser {
		msgs = append(msgs, snap.At(int(ref)-1))
	}
	return append(msgs, reply)
}

// markLocked appends the failure marker for err to the reply at ref,
// separated from any partial content. Must be called with mu held.
func (o *Orchestrator) markLocked(ref Ref, err error) error {
	marker := o.marker(err)
	if o.log.Snapshot().At(int(ref)).Content != "" {
		marker = "\n\n" + marker
	}
	if err := o.log.Update(ref, marker); err != nil {
		return err
	}
	o.emit(EventMessageUpdated{Ref: ref, Delta: marker})
	return nil
}

// record hands finalized messages to the recorder, if any. Recorder failures
// are logged and stop the remaining messages.
func (o *Orchestrator) record(ctx context.Context, sc SessionContext, msgs ...Message) {
	if o.recorder == nil {
		return
	}
	for _, m := range msgs {
		if err := o.recorder.Record(ctx, sc, m); err != nil {
			o.logger.Error().Err(err).Str("session", sc.Token).Msg("praxis: record message")
			return
		}
	}
}

// Submit runs one turn for text and returns when it has ended. It returns
// ErrEmptyInput, ErrNoView or ErrBusy, leaving the log untouched, when the
// submission is refused. A turn that fails in transport returns nil; see
// LastErr.
func (o *Orchestrator) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	t, err := o.begin(ctx, text)
	if err != nil {
		return err
	}
	defer t.cancel()
	t.run()
	return nil
}

func (o *Orchestrator) begin(ctx context.Context, text string) (*turn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.resolver.Active() {
		return nil, ErrNoView
	}
	if o.State() != StateIdle || o.log.Streaming() {
		return nil, ErrBusy
	}

	user := Message{Role: RoleUser, Content: text, Status: StatusComplete}
	ref, err := o.log.Append(user)
	if err != nil {
		return nil, err
	}
	user = o.log.Snapshot().At(int(ref))

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.lastErr = nil
	o.setStateLocked(StateSubmitting)
	o.emit(EventMessageAppended{Ref: ref, Message: user})

	sc, _ := o.resolver.Current()
	o.logger.Debug().Str("module_id", sc.ModuleID).Str("session", sc.Token).Msg("praxis: submit")

	return &turn{
		o:      o,
		ctx:    ctx,
		cancel: cancel,
		view:   o.view,
		text:   text,
		user:   user,
		reply:  -1,
	}, nil
}

// setStateLocked must be called with mu held.
func (o *Orchestrator) setStateLocked(s State) {
	from := State(o.state.Swap(int32(s)))
	if from != s {
		o.emit(EventStateChanged{From: from, To: s})
	}
}

func (o *Orchestrator) emit(e Event) {
	if o.observe != nil {
		o.observe(e)
	}
}

// turn is one in-flight exchange. Every log mutation goes through apply,
// which drops it if the view has changed since the turn began.
type turn struct {
	o      *Orchestrator
	ctx    context.Context
	cancel context.CancelFunc
	view   uint64
	text   string
	user   Message
	reply  Ref
}

func (t *turn) run() {
	o := t.o
	sc, bound := o.resolver.Current()
	if !bound {
		sc = t.handshake(sc)
	}

	resp, err := o.transport.Send(t.ctx, Request{
		SessionToken: sc.Token,
		ModuleID:     sc.ModuleID,
		UserID:       sc.UserID,
		Message:      t.text,
	})
	if err != nil {
		if !errors.Is(err, ErrConnectionFailed) {
			err = fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
		t.fail(err)
		return
	}
	defer resp.Body.Close()

	t.learn(sc, resp.SessionToken)

	dec, err := NewDecoder(resp.Body, WithCharset(resp.Charset))
	if err != nil {
		t.fail(fmt.Errorf("%w: %w", ErrStreamInterrupted, err))
		return
	}

	ok := t.apply(func() error {
		ref, err := o.log.Append(Message{Role: RoleAssistant, Status: StatusStreaming})
		if err != nil {
			return err
		}
		t.reply = ref
		o.setStateLocked(StateStreaming)
		o.emit(EventMessageAppended{Ref: ref, Message: o.log.Snapshot().At(int(ref))})
		return nil
	})
	if !ok {
		return
	}

	for {
		delta, err := dec.Next()
		// A body that ignores ctx can keep producing after Cancel; nothing
		// read past that point reaches the log.
		if cerr := t.ctx.Err(); cerr != nil {
			t.fail(fmt.Errorf("%w: %w", ErrStreamInterrupted, cerr))
			return
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.fail(err)
			return
		}
		ok := t.apply(func() error {
			if err := o.log.Update(t.reply, delta); err != nil {
				return err
			}
			o.emit(EventMessageUpdated{Ref: t.reply, Delta: delta})
			return nil
		})
		if !ok {
			return
		}
	}

	t.finish(StatusComplete, nil)
}

// handshake asks the transport for a session before the first message, when
// it supports that. Failure is not fatal: the token may still arrive with
// the response.
func (t *turn) handshake(sc SessionContext) SessionContext {
	opener, ok := t.o.transport.(SessionOpener)
	if !ok {
		return sc
	}
	token, err := opener.OpenSession(t.ctx, sc.UserID, sc.ModuleID)
	if err != nil || token == "" {
		t.o.logger.Warn().Err(err).Str("module_id", sc.ModuleID).Msg("praxis: session handshake failed")
		return sc
	}
	if t.bind(token) {
		sc.Token = token
	}
	return sc
}

// learn binds the token reported with the response. A view that ends the
// exchange without any token has lost its session.
func (t *turn) learn(sc SessionContext, token string) {
	if token != "" {
		t.bind(token)
		return
	}
	if sc.Token != "" {
		return
	}
	err := fmt.Errorf("module %q: no session token in response: %w", sc.ModuleID, ErrSessionLost)
	t.o.logger.Warn().Err(err).Msg("praxis: session lost")
	t.apply(func() error {
		t.o.emit(EventNotice{Err: err})
		return nil
	})
}

func (t *turn) bind(token string) bool {
	o := t.o
	var bound bool
	t.apply(func() error {
		_, had := o.resolver.Current()
		if err := o.resolver.Bind(token); err != nil {
			o.logger.Warn().Err(err).Msg("praxis: session token ignored")
			o.emit(EventNotice{Err: err})
			return nil
		}
		bound = true
		if !had {
			o.logger.Debug().Str("session", token).Msg("praxis: session bound")
			o.emit(EventSessionBound{Token: token})
		}
		return nil
	})
	return bound
}

// fail ends the turn in StateFailed. Partial content stays; the marker is
// appended after it. A turn that never got a reply gets a reply made of the
// marker alone so the failure shows inline.
func (t *turn) fail(err error) {
	o := t.o
	ok := t.apply(func() error {
		o.setStateLocked(StateFailed)
		if t.reply < 0 {
			ref, err := o.log.Append(Message{Role: RoleAssistant, Status: StatusStreaming})
			if err != nil {
				return err
			}
			t.reply = ref
			o.emit(EventMessageAppended{Ref: ref, Message: o.log.Snapshot().At(int(ref))})
		}
		return o.markLocked(t.reply, err)
	})
	if !ok {
		return
	}
	o.logger.Warn().Err(err).Msg("praxis: turn failed")
	t.finish(StatusFailed, err)
}

func (t *turn) finish(outcome Status, cause error) {
	o := t.o
	var (
		reply Message
		sc    SessionContext
	)
	ok := t.apply(func() error {
		if outcome == StatusComplete {
			o.setStateLocked(StateFinalizing)
		}
		if err := o.log.Finalize(t.reply, outcome); err != nil {
			return err
		}
		reply = o.log.Snapshot().At(int(t.reply))
		sc, _ = o.resolver.Current()
		o.emit(EventMessageFinalized{Ref: t.reply, Message: reply})
		o.lastErr = cause
		o.cancel = nil
		o.setStateLocked(StateIdle)
		return nil
	})
	if !ok {
		return
	}
	o.record(context.WithoutCancel(t.ctx), sc, t.user, reply)
}


// apply runs fn under the orchestrator lock if the turn's view is still
// current. It reports false when the turn was abandoned or fn failed; a
// failure of fn is a contract violation and is logged loudly.
func (t *turn) apply(fn func() error) bool {
	o := t.o
	o.mu.Lock()
	defer o.mu.Unlock()
	if t.view != o.view {
		return false
	}
	if err := fn(); err != nil {
		o.logger.Error().Err(err).Msg("praxis: log contract violation")
		o.lastErr = err
		if o.cancel != nil {
			o.cancel()
			o.cancel = nil
		}
		// Leave no streaming tail behind, or every later Submit is refused.
		if o.log.Streaming() {
			ref := Ref(o.log.Len() - 1)
			if ferr := o.log.Finalize(ref, StatusFailed); ferr == nil {
				o.emit(EventMessageFinalized{Ref: ref, Message: o.log.Snapshot().At(int(ref))})
			}
		}
		o.setStateLocked(StateIdle)
		return false
	}
	return true
}
