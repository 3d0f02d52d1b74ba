// Package bubbletea provides a Bubble Tea TUI for the praxis tutor.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/praxis"
)

// Run creates and runs the Bubble Tea TUI program. It blocks until the program
// exits. The context is used for graceful shutdown: when cancelled, the
// program quits.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// EventsMsg delivers orchestrator events queued since the last delivery.
type EventsMsg struct {
	Gen    uint64
	Events []praxis.Event
}

// TurnDoneMsg signals that a submitted turn has ended. Err is set only when
// the submission was refused; transport failures are reported by the
// orchestrator's LastErr.
type TurnDoneMsg struct {
	Err error
}
