package messages

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeti47/cryochat/core/ccc/logging"
	"github.com/yeti47/cryochat/core/encryption"
)

const (
	// UpgradePlaceholder replaces own messages stored without a sender copy
	UpgradePlaceholder = "[Sent before encryption upgrade - content unavailable]"
	// UndecryptablePlaceholder replaces messages that fail to decrypt
	UndecryptablePlaceholder = "[Message could not be decrypted]"
)

// Decrypter decrypts with the current user's private key
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// HistoryLoader loads and decrypts a conversation for one of its parties
type HistoryLoader struct {
	repo      MessageRepository
	decrypter Decrypter
	logger    logging.Logger
}

func NewHistoryLoader(repo MessageRepository, decrypter Decrypter, logger logging.Logger) *HistoryLoader {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &HistoryLoader{repo: repo, decrypter: decrypter, logger: logger}
}

// Load returns the conversation between currentUserID and peerID, oldest first.
// Messages that cannot be decrypted get a placeholder instead of failing the load.
// encryption.ErrKeyUnavailable is returned since nothing could be decrypted.
func (h *HistoryLoader) Load(ctx context.Context, currentUserID, peerID string) ([]*DecryptedMessage, error) {
	stored, err := h.repo.GetConversation(ctx, currentUserID, peerID)
	if err != nil {
		h.logger.Error("Failed to load conversation", "user", currentUserID, "peer", peerID, "error", err)
		return nil, err
	}

	result := make([]*DecryptedMessage, 0, len(stored))
	undecryptable := 0

	for _, msg := range stored {
		content, err := h.DecryptFor(msg, currentUserID)
		if err != nil {
			if errors.Is(err, encryption.ErrKeyUnavailable) {
				return nil, err
			}
			undecryptable++
			content = UndecryptablePlaceholder
		}

		result = append(result, &DecryptedMessage{
			ID:         msg.ID,
			SenderID:   msg.SenderID,
			ReceiverID: msg.ReceiverID,
			Content:    content,
			Delivered:  msg.Delivered,
			Read:       msg.Read,
			Timestamp:  msg.Timestamp,
			Readable:   err == nil && content != UpgradePlaceholder,
		})
	}

	if undecryptable > 0 {
		h.logger.Warn("Some messages could not be decrypted", "user", currentUserID, "peer", peerID, "count", undecryptable)
	}

	return result, nil
}

// DecryptFor picks the ciphertext copy that belongs to userID and decrypts it.
// The sender of a message stored before dual encryption gets UpgradePlaceholder.
func (h *HistoryLoader) DecryptFor(msg *Message, userID string) (string, error) {
	var ciphertext string

	switch userID {
	case msg.ReceiverID:
		ciphertext = msg.EncryptedContent
	case msg.SenderID:
		if msg.EncryptedContentForSender == nil {
			return UpgradePlaceholder, nil
		}
		ciphertext = *msg.EncryptedContentForSender
	default:
		return "", fmt.Errorf("user %s is not a party of message %s", userID, msg.ID)
	}

	return h.decrypter.Decrypt(ciphertext)
}
