package bubbletea

// RenderContent exports renderContent for testing.
func RenderContent(m Model) string {
	return m.renderContent()
}

// StatusLine exports statusLine for testing.
func StatusLine(m Model) string {
	return m.statusLine()
}

// BlockCount returns the number of rendered conversation blocks.
func BlockCount(m Model) int {
	return len(m.blocks)
}
