package notification

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Notification types
const (
	TypeGeneral    = "general"
	TypeMessage    = "message"
	TypeResource   = "resource"
	TypeStudyGroup = "study_group"
	TypeReminder   = "reminder"
)

const maxMessageLen = 500

var Types = []string{TypeGeneral, TypeMessage, TypeResource, TypeStudyGroup, TypeReminder}

type (
	Notification struct {
		ID        int       `json:"id"`
		UserID    int       `json:"user_id"`
		Message   string    `json:"message"`
		Type      string    `json:"type"`
		Read      bool      `json:"read"`
		CreatedAt time.Time `json:"created_at"`
	}

	MarkRead struct {
		IDs []int `json:"ids" validate:"required,min=1"`
	}
)

func (mr MarkRead) Validate(validate *validator.Validate) error { return validate.Struct(mr) }

func isValidType(t string) bool {
	for _, typ := range Types {
		if t == typ {
			return true
		}
	}
	return false
}

func truncate(msg string) string {
	r := []rune(msg)
	if len(r) <= maxMessageLen {
		return msg
	}
	return string(r[:maxMessageLen])
}
