package relay

import (
	"context"
	"encoding/json"
	"time"
)

type EventType string

const (
	EventMessage          EventType = "message"
	EventMessageSent      EventType = "message-sent"
	EventMessageDelivered EventType = "message-delivered"
	EventMessageRead      EventType = "message-read"
	EventTyping           EventType = "typing"
	EventUserOnline       EventType = "user-online"
	EventUserOffline      EventType = "user-offline"
)

// Event is a fire-and-forget notification. An empty To broadcasts to every
// online user except the sender. Delivery is at most once; receipts carried by
// events are hints, the store holds the durable state.
type Event struct {
	Type      EventType       `json:"type"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	MessageID string          `json:"message_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	At        time.Time       `json:"at"`
}

// MessagePayload accompanies EventMessage. It only carries ciphertext.
type MessagePayload struct {
	EncryptedContent          string  `json:"encrypted_content"`
	EncryptedContentForSender *string `json:"encrypted_content_for_sender,omitempty"`
}

// TypingPayload accompanies EventTyping
type TypingPayload struct {
	IsTyping bool `json:"is_typing"`
}

// NewEvent builds an event with a JSON payload. A nil payload is omitted.
func NewEvent(eventType EventType, from, to string, payload any) (Event, error) {
	event := Event{Type: eventType, From: from, To: to, At: time.Now().UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		event.Payload = raw
	}
	return event, nil
}

type Handler func(Event)

// Broadcast reports whether the event is addressed to everyone
func (e Event) Broadcast() bool {
	return e.To == ""
}

type Publisher interface {
	// Publish delivers to the event's recipients that are online and drops it otherwise
	Publish(ctx context.Context, event Event) error
}

type Subscriber interface {
	// Subscribe registers handler for events addressed to userID and for broadcasts by other users
	Subscribe(userID string, handler Handler) (unsubscribe func(), err error)
}

type Relay interface {
	Publisher
	Subscriber
	Close()
}
