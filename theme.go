package praxis

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values. A negative
// index means "no color".
type Theme struct {
	UserMsg  int // User message prefix
	Error    int // Failed replies, error status
	Notice   int // Non-fatal notices such as a lost session
	Muted    int // Status bar, placeholders, descriptions
	CodeBg   int // Code block background
	Accent   int // Headings, selected module
	Selected int // Selector cursor
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		UserMsg:  4,
		Error:    1,
		Notice:   3,
		Muted:    8,
		CodeBg:   0,
		Accent:   5,
		Selected: 6,
	}
}
