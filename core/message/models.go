package message

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campusmate/core"
)

// Message types
const (
	TypeMessage           = "message"
	TypeConnectionRequest = "connection_request"
)

// Message statuses
const (
	StatusUnread   = "unread"
	StatusRead     = "read"
	StatusAccepted = "accepted"
)

const maxUnreadCount = 99

type (
	Message struct {
		ID          int       `json:"id"`
		SenderID    int       `json:"sender_id"`
		RecipientID int       `json:"recipient_id"`
		Content     string    `json:"content"`
		Timestamp   time.Time `json:"timestamp"`
		Type        string    `json:"message_type"`
		Status      string    `json:"status"`
	}

	Peer struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}

	// Conversation is the inbox entry of a friend.
	Conversation struct {
		Peer        Peer     `json:"peer"`
		LastMessage *Message `json:"last_message"`
		UnreadCount int      `json:"unread_count"`
	}

	NewMessage struct {
		RecipientID int    `json:"recipient_id" validate:"required"`
		Content     string `json:"content" validate:"required,max=5000"`
	}
)

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Content = core.CleanString(nm.Content)
	return validate.Struct(nm)
}

func capCount(n int) int {
	if n > maxUnreadCount {
		return maxUnreadCount
	}
	return n
}
