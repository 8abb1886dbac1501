package core

// Realtime event types pushed to connected clients.
const (
	EventNewMessage      = "new_message"
	EventUpdateUnread    = "update_unread"
	EventNotification    = "notification"
	EventMessageAccepted = "connection_accepted"
	EventError           = "error"
)

// RealtimeEvent is a single frame pushed to a user's connections.
type RealtimeEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Publisher is any service that can push events to a user's live connections.
type Publisher interface {
	Publish(userID int, evt RealtimeEvent)
}
