package app

import (
	"fmt"
	"strings"

	"github.com/shihongDev/simple-todo-note/internal/storage"
)

func normalizeTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}
	return trimmed, nil
}

// normalizeRecurrenceTag maps anything outside the canonical set to none.
func normalizeRecurrenceTag(value *string) string {
	if value == nil {
		return storage.RecurrenceNone
	}
	switch tag := strings.TrimSpace(*value); tag {
	case storage.RecurrenceDaily, storage.RecurrenceBiWeekly:
		return tag
	default:
		return storage.RecurrenceNone
	}
}

func normalizeDueDate(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
