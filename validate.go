package praxis

import (
	"fmt"
	"strings"
)

// Validate checks that a Request carries everything the backend requires.
func (r Request) Validate() error {
	if strings.TrimSpace(r.ModuleID) == "" {
		return fmt.Errorf("module id is required: %w", ErrValidation)
	}
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("user id is required: %w", ErrValidation)
	}
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("message is required: %w", ErrValidation)
	}
	return nil
}
