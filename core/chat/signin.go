package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeti47/cryochat/core/ccc/auth"
	"github.com/yeti47/cryochat/core/encryption"
	"github.com/yeti47/cryochat/core/security"
	"github.com/yeti47/cryochat/core/users"
)

// SignUp creates the profile of a new user, generates their key pair and
// stores it encrypted under password. The user is signed in afterwards.
func (s *Session) SignUp(ctx context.Context, id Identity, password, username, displayName string) error {
	if err := security.ValidatePasswordStrength(password); err != nil {
		return err
	}
	if err := security.ValidateUsername(username); err != nil {
		return err
	}
	if !security.ValidateEmail(id.Email) {
		return &security.ValidationError{Field: "email", Problems: []string{"is not a valid address"}}
	}
	if id.UserID == "" {
		return &security.ValidationError{Field: "user_id", Problems: []string{"is required"}}
	}
	displayName = security.SanitizeInput(displayName)
	if displayName == "" {
		displayName = username
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return users.ErrUsernameTaken
	}

	s.prepareVault(ctx, id.UserID)

	pair, err := s.vault.GenerateKeyPair(ctx)
	if err != nil {
		return err
	}

	// the public key is published by the key write, never ahead of it
	now := s.now().UTC()
	user := &users.User{
		ID:          id.UserID,
		Username:    username,
		DisplayName: displayName,
		Email:       id.Email,
		CreatedAt:   now,
		LastSeen:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.vault.ClearKeys()
		return err
	}

	if err := s.vault.StoreEncryptedKeyPair(users.WithActor(ctx, id.UserID), pair, password, id.UserID); err != nil {
		s.vault.ClearKeys()
		if derr := s.users.Delete(context.WithoutCancel(ctx), id.UserID); derr != nil {
			s.logger.Error("Failed to roll back profile", "user", id.UserID, "error", derr)
		}
		return err
	}

	s.logger.Info("User signed up", "user", id.UserID, "username", username)
	return s.start(ctx, id.UserID, password)
}

// SignIn unlocks the stored key pair of id with password.
//
// The unlock is bounded by the sign-in timeout; running out of time counts as
// a failed unlock. After a failed unlock new keys are generated only if the
// user has none stored. Otherwise ErrStoredKeysLocked is returned. Rate limit
// errors are returned unchanged.
func (s *Session) SignIn(ctx context.Context, id Identity, password string) error {
	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUnknownUser
	}

	s.prepareVault(ctx, id.UserID)

	ok, err := s.unlock(ctx, password, id.UserID)
	if err != nil {
		return err
	}

	if !ok {
		hasKeys, err := s.vault.HasStoredKeys(ctx, id.UserID)
		if err != nil {
			return err
		}
		if hasKeys {
			s.auditor.RecordSecurityEvent(ctx, id.UserID, encryption.EventLoginFailure, nil)
			return ErrStoredKeysLocked
		}

		s.logger.Info("No stored keys, generating a new pair", "user", id.UserID)
		if err := s.generateAndStore(ctx, password, id.UserID); err != nil {
			return err
		}
	}

	return s.start(ctx, id.UserID, password)
}

// unlock races the key load against the sign-in timeout
func (s *Session) unlock(ctx context.Context, password, userID string) (bool, error) {
	loadCtx, cancel := context.WithTimeout(ctx, s.settings.SignInTimeout)
	defer cancel()

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := s.vault.InitializeWithPassword(loadCtx, password, userID)
		done <- result{ok, err}
	}()

	select {
	case r := <-done:
		return r.ok, r.err
	case <-loadCtx.Done():
		// a load finishing later cannot install its pair once loadCtx is done
		s.vault.ClearKeys()
		if err := ctx.Err(); err != nil {
			return false, err
		}
		s.logger.Warn("Key unlock timed out", "user", userID, "timeout", s.settings.SignInTimeout)
		return false, nil
	}
}

func (s *Session) generateAndStore(ctx context.Context, password, userID string) error {
	pair, err := s.vault.GenerateKeyPair(ctx)
	if err != nil {
		return err
	}
	if err := s.vault.StoreEncryptedKeyPair(users.WithActor(ctx, userID), pair, password, userID); err != nil {
		s.vault.ClearKeys()
		return err
	}
	return nil
}

// prepareVault signs out a different user and drops any loaded pair, so
// every sign-in proves the password again
func (s *Session) prepareVault(ctx context.Context, userID string) {
	if current, ok := s.CurrentUser(); ok && current != userID {
		s.SignOut(ctx)
	}
	s.vault.ClearKeys()
}

// ChangePassword re-encrypts the stored private key under newPassword
func (s *Session) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	userID, err := s.requireUser()
	if err != nil {
		return err
	}
	if err := security.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}
	if oldPassword == newPassword {
		return &security.ValidationError{Field: "password", Problems: []string{"must differ from the current password"}}
	}

	if err := s.vault.ChangePassword(users.WithActor(ctx, userID), oldPassword, newPassword, userID); err != nil {
		if errors.Is(err, encryption.ErrNoStoredKeys) {
			return fmt.Errorf("cannot change password of %s: %w", userID, err)
		}
		return err
	}

	s.passwords.Set(newPassword, s.settings.PasswordExpiration)
	return nil
}

// IsRateLimited reports whether err is a sign-in lockout
func IsRateLimited(err error) bool {
	return auth.IsRateLimitedError(err)
}
