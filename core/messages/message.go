package messages

import "time"

// Message is a stored message. Content is only ever persisted encrypted.
type Message struct {
	ID                        string
	SenderID                  string
	ReceiverID                string
	EncryptedContent          string  // under the receiver's public key
	EncryptedContentForSender *string // under the sender's public key; nil for messages from before dual encryption
	Delivered                 bool
	Read                      bool
	Timestamp                 time.Time
}

// DecryptedMessage is a message as shown to one of its parties
type DecryptedMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Delivered  bool      `json:"delivered"`
	Read       bool      `json:"read"`
	Timestamp  time.Time `json:"timestamp"`
	Readable   bool      `json:"readable"` // false if Content is a placeholder
}
