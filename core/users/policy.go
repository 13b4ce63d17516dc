package users

import (
	"context"
	"fmt"

	"github.com/yeti47/cryochat/core/encryption"
)

type actorKey struct{}

// WithActor returns a context carrying the authenticated user id
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// ActorFromContext returns the authenticated user id, if any
func ActorFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(actorKey{}).(string)
	return userID, ok && userID != ""
}

// ErrPolicyViolation wraps encryption.ErrPolicyRejected so the vault classifies it
var ErrPolicyViolation = fmt.Errorf("only the owner may write their keys: %w", encryption.ErrPolicyRejected)

// OwnerPolicyStore only lets a user write their own key record.
// Reads are unrestricted since public keys are needed by peers.
type OwnerPolicyStore struct {
	inner encryption.KeyRecordStore
}

func NewOwnerPolicyStore(inner encryption.KeyRecordStore) *OwnerPolicyStore {
	return &OwnerPolicyStore{inner: inner}
}

func (s *OwnerPolicyStore) GetKeyRecord(ctx context.Context, userID string) (*encryption.EncryptedKeyRecord, error) {
	return s.inner.GetKeyRecord(ctx, userID)
}

func (s *OwnerPolicyStore) SaveKeyRecord(ctx context.Context, userID string, record *encryption.EncryptedKeyRecord) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor != userID {
		return ErrPolicyViolation
	}
	return s.inner.SaveKeyRecord(ctx, userID, record)
}
