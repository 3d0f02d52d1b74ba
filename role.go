package praxis

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole maps a wire value to a Role. The backend persists assistant
// replies as "ai"; "model" is what Gemini calls them.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "user":
		return RoleUser, true
	case "assistant", "ai", "model":
		return RoleAssistant, true
	default:
		return "", false
	}
}
