package bubbletea

import (
	"strings"

	"github.com/fwojciec/praxis"
	"github.com/fwojciec/praxis/markdown"
)

// Selector is the module picker shown before a conversation starts.
type Selector struct {
	modules []praxis.Module
	cursor  int
	styles  Styles
}

// NewSelector creates a Selector over modules in display order.
func NewSelector(modules []praxis.Module, styles Styles) Selector {
	return Selector{modules: modules, styles: styles}
}

// Len returns the number of modules.
func (s Selector) Len() int { return len(s.modules) }

// Up moves the cursor to the previous module, wrapping around.
func (s Selector) Up() Selector {
	if len(s.modules) > 0 {
		s.cursor = (s.cursor - 1 + len(s.modules)) % len(s.modules)
	}
	return s
}

// Down moves the cursor to the next module, wrapping around.
func (s Selector) Down() Selector {
	if len(s.modules) > 0 {
		s.cursor = (s.cursor + 1) % len(s.modules)
	}
	return s
}

// Selected returns the module under the cursor.
func (s Selector) Selected() (praxis.Module, bool) {
	if len(s.modules) == 0 {
		return praxis.Module{}, false
	}
	return s.modules[s.cursor], true
}

// Find returns the module with the given ID.
func (s Selector) Find(id string) (praxis.Module, bool) {
	for _, m := range s.modules {
		if m.ID == id {
			return m, true
		}
	}
	return praxis.Module{}, false
}

// View renders the module list. Titles and descriptions are cut to width.
func (s Selector) View(width int) string {
	if width <= 0 {
		width = 80
	}
	var b strings.Builder
	b.WriteString(s.styles.Accent.Render(markdown.Truncate("Choose a module", width)))
	b.WriteString("\n\n")
	if len(s.modules) == 0 {
		b.WriteString(s.styles.Muted.Render("No modules available."))
		return b.String()
	}
	for i, m := range s.modules {
		title := markdown.Truncate(m.Title, width-2)
		if i == s.cursor {
			b.WriteString(s.styles.Selected.Render("› " + title))
		} else {
			b.WriteString("  " + title)
		}
		b.WriteString("\n")
		if m.Description != "" {
			b.WriteString("  " + s.styles.Muted.Render(markdown.Truncate(m.Description, width-2)))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
