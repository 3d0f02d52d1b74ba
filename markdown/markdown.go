// Package markdown renders tutor replies, which are markdown, to ANSI-styled
// terminal output using goldmark for parsing and lipgloss for styling.
package markdown

import "github.com/fwojciec/praxis"

const defaultWidth = 80

// Render parses markdown source and returns ANSI-styled terminal output.
// Paragraphs, quotes and list items are word-wrapped to width. Code blocks
// are rendered at full width without reflow. A width of zero or less means
// 80 columns.
func Render(source string, width int, theme praxis.Theme) string {
	return New(theme).Render(source, width)
}
