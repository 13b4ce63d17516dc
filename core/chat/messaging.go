package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/yeti47/cryochat/core/encryption"
	"github.com/yeti47/cryochat/core/messages"
	"github.com/yeti47/cryochat/core/relay"
	"github.com/yeti47/cryochat/core/security"
	"github.com/yeti47/cryochat/core/users"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrRecipientNoKey = errors.New("recipient has no public key")
	ErrMessageToSelf  = errors.New("cannot message yourself")
	ErrNotRecipient   = errors.New("message is not addressed to you")
)

// Send encrypts plaintext for receiverID and for the sender, stores the
// message and pushes it to the receiver if they are online.
func (s *Session) Send(ctx context.Context, receiverID, plaintext string) (*messages.Message, error) {
	senderID, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if receiverID == senderID {
		return nil, ErrMessageToSelf
	}

	content := security.SanitizeInput(plaintext)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	pair, ok := s.vault.CurrentKeyPair()
	if !ok {
		return nil, encryption.ErrKeyUnavailable
	}
	senderKey, err := pair.PublicKeyB64()
	if err != nil {
		return nil, err
	}

	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, users.ErrUserNotFound
	}
	if receiver.PublicKey == "" {
		return nil, ErrRecipientNoKey
	}

	dual, err := s.cipher.EncryptDual(ctx, content, receiver.PublicKey, senderKey)
	if err != nil {
		return nil, err
	}

	msg := &messages.Message{
		ID:                        uuid.NewString(),
		SenderID:                  senderID,
		ReceiverID:                receiverID,
		EncryptedContent:          dual.ForRecipient,
		EncryptedContentForSender: &dual.ForSender,
		Timestamp:                 s.now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		s.logger.Error("Failed to store message", "error", err)
		return nil, err
	}

	s.publish(ctx, relay.EventMessage, senderID, receiverID, msg.ID, relay.MessagePayload{
		EncryptedContent:          msg.EncryptedContent,
		EncryptedContentForSender: msg.EncryptedContentForSender,
	})
	s.publish(ctx, relay.EventMessageSent, senderID, senderID, msg.ID, nil)

	return msg, nil
}

// History returns the conversation with peerID, oldest first
func (s *Session) History(ctx context.Context, peerID string) ([]*messages.DecryptedMessage, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	return s.history.Load(ctx, userID, peerID)
}

// MarkDelivered records delivery of a received message and tells the sender
func (s *Session) MarkDelivered(ctx context.Context, messageID string) error {
	return s.acknowledge(ctx, messageID, false)
}

// MarkRead records that a received message was read and tells the sender
func (s *Session) MarkRead(ctx context.Context, messageID string) error {
	return s.acknowledge(ctx, messageID, true)
}

func (s *Session) acknowledge(ctx context.Context, messageID string, read bool) error {
	userID, err := s.requireUser()
	if err != nil {
		return err
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return messages.ErrMessageNotFound
	}
	if msg.ReceiverID != userID {
		return ErrNotRecipient
	}

	eventType := relay.EventMessageDelivered
	if read {
		err = s.messages.MarkRead(ctx, messageID, userID)
		eventType = relay.EventMessageRead
	} else {
		err = s.messages.MarkDelivered(ctx, messageID, userID)
	}
	if err != nil {
		return err
	}

	s.publish(ctx, eventType, userID, msg.SenderID, messageID, nil)
	return nil
}

// Typing tells peerID whether the user is typing
func (s *Session) Typing(ctx context.Context, peerID string, isTyping bool) error {
	userID, err := s.requireUser()
	if err != nil {
		return err
	}
	s.publish(ctx, relay.EventTyping, userID, peerID, "", relay.TypingPayload{IsTyping: isTyping})
	return nil
}

// SearchUsers finds other users by username or display name
func (s *Session) SearchUsers(ctx context.Context, term string) ([]users.Profile, error) {
	userID, err := s.requireUser()
	if err != nil {
		return nil, err
	}

	found, err := s.users.Search(ctx, security.SanitizeInput(term), userID)
	if err != nil {
		return nil, err
	}

	profiles := make([]users.Profile, 0, len(found))
	for _, u := range found {
		profiles = append(profiles, u.Profile())
	}
	return profiles, nil
}
