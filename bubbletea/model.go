package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/praxis"
	"github.com/fwojciec/praxis/json"
)

var _ tea.Model = Model{}

type screen int

const (
	screenSelector screen = iota
	screenChat
)

// Model is the Bubble Tea model for the praxis TUI. It renders the
// orchestrator's log and drives turns through it. The orchestrator must be
// created with praxis.WithObserver(bridge.Observe) for the same bridge.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model

	orch   *praxis.Orchestrator
	bridge *Bridge
	theme  praxis.Theme
	styles Styles

	userID         string
	selector       Selector
	screen         screen
	module         praxis.Module
	exportPath     string
	writeClipboard func(string) error

	blocks []MessageBlock
	state  praxis.State
	token  string
	notice error
	flash  string

	running bool
	err     error
	ready   bool
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithUserID sets the learner identifier sent with every turn.
func WithUserID(id string) ModelOption {
	return func(m *Model) { m.userID = id }
}

// WithModules sets the modules offered by the selector.
func WithModules(modules []praxis.Module) ModelOption {
	return func(m *Model) { m.selector = NewSelector(modules, m.styles) }
}

// WithExportPath enables Ctrl+S, which saves the current conversation as a
// JSON transcript at path.
func WithExportPath(path string) ModelOption {
	return func(m *Model) { m.exportPath = path }
}

// WithClipboard replaces the system clipboard Ctrl+Y writes the last reply
// to.
func WithClipboard(write func(string) error) ModelOption {
	return func(m *Model) { m.writeClipboard = write }
}

// WithModule skips the selector and opens a conversation in the module with
// the given ID. A non-empty token resumes that session; history is shown
// above the first new turn. It must follow WithUserID and WithModules.
func WithModule(id, token string, history []praxis.Message) ModelOption {
	return func(m *Model) {
		mod, ok := m.selector.Find(id)
		if !ok {
			mod = praxis.Module{ID: id, Title: id}
		}
		*m = m.enter(mod, token, history)
	}
}

// New creates a new TUI Model driving orch. Events reach the model through
// bridge.
func New(orch *praxis.Orchestrator, bridge *Bridge, theme praxis.Theme, opts ...ModelOption) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask your tutor..."
	ti.Prompt = ""
	ti.CharLimit = 0

	styles := NewStyles(theme)
	m := Model{
		Input:          ti,
		orch:           orch,
		bridge:         bridge,
		theme:          theme,
		styles:         styles,
		selector:       NewSelector(nil, styles),
		writeClipboard: clipboard.WriteAll,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Running returns whether a turn is in flight.
func (m Model) Running() bool { return m.running }

// Err returns the last refused submission, if any.
func (m Model) Err() error { return m.err }

// Module returns the module of the open conversation and whether one is open.
func (m Model) Module() (praxis.Module, bool) {
	return m.module, m.screen == screenChat
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.bridge.Wait())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.handleWindowSize(msg)
		return m, nil

	case tea.KeyMsg:
		if m.screen == screenSelector {
			return m.handleSelectorKey(msg)
		}
		return m.handleKey(msg)

	case EventsMsg:
		if msg.Gen == m.bridge.Gen() {
			for _, e := range msg.Events {
				m = m.processEvent(e)
			}
			m = m.refresh()
		}
		return m, m.bridge.Wait()

	case TurnDoneMsg:
		m.running = false
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.err = msg.Err
		}
		m.state = m.orch.State()
		cmd := m.Input.Focus()
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	if !m.running && m.screen == screenChat {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	if m.screen == screenSelector {
		b.WriteString(m.selector.View(m.Viewport.Width))
		b.WriteString("\n\n")
		b.WriteString(m.styles.Muted.Render("↑/↓ to move, Enter to choose, Ctrl+C to quit"))
		return b.String()
	}

	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	inputH := 1
	statusHeight := 1
	borderHeight := 2 // newlines between sections
	vpHeight := msg.Height - inputH - statusHeight - borderHeight

	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m = m.refresh()

	m.Input.Width = msg.Width
	return m
}

func (m Model) handleSelectorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyUp, tea.KeyShiftTab:
		m.selector = m.selector.Up()
	case tea.KeyDown, tea.KeyTab:
		m.selector = m.selector.Down()
	case tea.KeyEnter:
		mod, ok := m.selector.Selected()
		if !ok {
			return m, nil
		}
		m = m.enter(mod, "", nil)
		return m, textinput.Blink
	case tea.KeyRunes:
		switch string(msg.Runes) {
		case "k":
			m.selector = m.selector.Up()
		case "j":
			m.selector = m.selector.Down()
		case "q":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.running {
			m.orch.Cancel()
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyTab:
		m.orch.Leave()
		m.bridge.Reset()
		m.screen = screenSelector
		m.Input.Blur()
		return m, nil

	case tea.KeyCtrlS:
		m.flash = ""
		if m.exportPath != "" {
			m = m.export()
		}
		return m, nil

	case tea.KeyCtrlY:
		m.flash = ""
		return m.copyReply(), nil

	case tea.KeyEnter:
		if m.running {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submitInput(text)
	}

	// When idle, pass keys to both the input (for typing) and viewport
	// (for scrolling). Only forward non-character keys to viewport to avoid
	// conflicts (e.g. 'j'/'k' are viewport scroll AND text characters).
	if !m.running {
		var cmd tea.Cmd
		var cmds []tea.Cmd

		if msg.Type != tea.KeyRunes {
			m.Viewport, cmd = m.Viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)

		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m Model) submitInput(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.err = nil
	m.flash = ""
	m.running = true
	m.Input.Blur()
	return m, submit(m.orch, text)
}

// enter opens a conversation view for mod. History, if any, is placed in the
// log before the first turn.
func (m Model) enter(mod praxis.Module, token string, history []praxis.Message) Model {
	m.orch.Enter(praxis.SessionContext{UserID: m.userID, ModuleID: mod.ID, Token: token})
	for _, msg := range history {
		if _, err := m.orch.Log().Append(msg); err != nil {
			break
		}
	}
	m.bridge.Reset()

	m.screen = screenChat
	m.module = mod
	m.token = token
	m.notice = nil
	m.flash = ""
	m.err = nil
	m.state = m.orch.State()
	m.Input.Focus()
	m = m.rebuild()
	return m.refresh()
}

func (m Model) export() Model {
	sc, _ := m.orch.Session()
	if err := json.Save(m.exportPath, sc, m.orch.Log().Snapshot()); err != nil {
		m.err = fmt.Errorf("export transcript: %w", err)
		return m
	}
	m.flash = "Saved transcript to " + m.exportPath
	return m
}

// copyReply puts the latest assistant reply that has content on the
// clipboard.
func (m Model) copyReply() Model {
	snap := m.orch.Log().Snapshot()
	for i := snap.Len() - 1; i >= 0; i-- {
		msg := snap.At(i)
		if msg.Role != praxis.RoleAssistant || msg.Content == "" {
			continue
		}
		if err := m.writeClipboard(msg.Content); err != nil {
			m.err = fmt.Errorf("copy reply: %w", err)
			return m
		}
		m.flash = "Copied reply to clipboard"
		return m
	}
	m.flash = "Nothing to copy yet"
	return m
}

// rebuild recreates all blocks from a fresh log snapshot.
func (m Model) rebuild() Model {
	snap := m.orch.Log().Snapshot()
	m.blocks = make([]MessageBlock, 0, snap.Len())
	for _, msg := range snap.All() {
		m.blocks = append(m.blocks, m.newBlock(msg))
	}
	return m
}

func (m Model) newBlock(msg praxis.Message) MessageBlock {
	if msg.Role == praxis.RoleUser {
		return NewUserMessageBlock(msg.Content, m.styles)
	}
	b := NewAssistantTextBlock(m.theme, m.styles)
	if msg.Content != "" {
		b.Append(msg.Content)
	}
	if msg.Status.Terminal() {
		b.Finalize(msg.Status)
	}
	return b
}

// processEvent applies one orchestrator event to the blocks. Events that do
// not line up with the blocks trigger a rebuild from the log.
func (m Model) processEvent(evt praxis.Event) Model {
	switch e := evt.(type) {
	case praxis.EventMessageAppended:
		if int(e.Ref) != len(m.blocks) {
			return m.rebuild()
		}
		m.blocks = append(m.blocks, m.newBlock(e.Message))
	case praxis.EventMessageUpdated:
		b, ok := m.assistantBlock(e.Ref)
		if !ok {
			return m.rebuild()
		}
		b.Append(e.Delta)
	case praxis.EventMessageFinalized:
		b, ok := m.assistantBlock(e.Ref)
		if !ok {
			return m.rebuild()
		}
		b.Finalize(e.Message.Status)
	case praxis.EventStateChanged:
		m.state = e.To
	case praxis.EventSessionBound:
		m.token = e.Token
	case praxis.EventNotice:
		m.notice = e.Err
	}
	return m
}

func (m Model) assistantBlock(ref praxis.Ref) (*AssistantTextBlock, bool) {
	if int(ref) < 0 || int(ref) >= len(m.blocks) {
		return nil, false
	}
	b, ok := m.blocks[ref].(*AssistantTextBlock)
	return b, ok
}

// refresh re-renders the blocks into the viewport and scrolls to the bottom.
func (m Model) refresh() Model {
	if !m.ready {
		return m
	}
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()
	return m
}

func (m Model) renderContent() string {
	if len(m.blocks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, block := range m.blocks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block.View(m.Viewport.Width))
	}
	return b.String()
}

func (m Model) statusLine() string {
	switch {
	case m.err != nil:
		return m.styles.Error.Render(fmt.Sprintf("Error: %v", m.err))
	case m.flash != "":
		return m.styles.Muted.Render(m.flash)
	case m.notice != nil:
		return m.styles.Notice.Render(fmt.Sprintf("Notice: %v", m.notice))
	case m.running:
		return m.styles.Muted.Render(stateLabel(m.state))
	}
	return m.styles.Muted.Render(m.module.Title + " | Enter to send, Tab for modules, Ctrl+C to quit")
}

func stateLabel(s praxis.State) string {
	switch s {
	case praxis.StateSubmitting:
		return "Sending..."
	case praxis.StateStreaming:
		return "Tutor is replying... (Ctrl+C to stop)"
	case praxis.StateFinalizing:
		return "Finishing..."
	default:
		return "Working..."
	}
}

// submit runs one turn through the orchestrator and signals completion.
func submit(orch *praxis.Orchestrator, text string) tea.Cmd {
	return func() tea.Msg {
		return TurnDoneMsg{Err: orch.Submit(context.Background(), text)}
	}
}
