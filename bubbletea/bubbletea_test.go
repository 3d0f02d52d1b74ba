package bubbletea_test

import (
	"context"
	"regexp"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/praxis"
	bt "github.com/fwojciec/praxis/bubbletea"
	"github.com/fwojciec/praxis/mock"
	"github.com/stretchr/testify/require"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansi.ReplaceAllString(s, "")
}

var modules = []praxis.Module{
	{ID: "assessment", Title: "Initial Assessment", Description: "Test your current knowledge"},
	{ID: "fundamentals", Title: "Prompting Fundamentals", Description: "Zero-shot, few-shot and chain of thought"},
	{ID: "advanced", Title: "Advanced Techniques", Description: "Self-consistency and tree of thoughts"},
}

// reply returns a transport that streams chunks and binds token.
func reply(token string, chunks ...string) *mock.Transport {
	return &mock.Transport{SendFn: func(ctx context.Context, req praxis.Request) (*praxis.Response, error) {
		return &praxis.Response{SessionToken: token, Body: mock.NewBody(chunks...)}, nil
	}}
}

// harness wires a model to an orchestrator through a bridge.
type harness struct {
	orch   *praxis.Orchestrator
	bridge *bt.Bridge
}

func newModel(t *testing.T, tr praxis.Transport, opts ...bt.ModelOption) (bt.Model, harness) {
	t.Helper()
	bridge := bt.NewBridge()
	orch := praxis.NewOrchestrator(tr, praxis.WithObserver(bridge.Observe))
	opts = append([]bt.ModelOption{bt.WithUserID("7"), bt.WithModules(modules)}, opts...)
	return bt.New(orch, bridge, praxis.DefaultTheme(), opts...), harness{orch: orch, bridge: bridge}
}

// initModel creates a model and sends a WindowSizeMsg to initialize the viewport.
func initModel(t *testing.T, tr praxis.Transport, opts ...bt.ModelOption) (bt.Model, harness) {
	t.Helper()
	m, h := newModel(t, tr, opts...)
	return update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24}), h
}

func update(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// deliver hands queued orchestrator events to the model. Events must already
// be queued, otherwise the bridge blocks.
func deliver(t *testing.T, m bt.Model, h harness) bt.Model {
	t.Helper()
	return update(t, m, h.bridge.Wait()())
}
