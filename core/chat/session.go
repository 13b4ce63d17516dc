package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yeti47/cryochat/core/ccc/auth"
	"github.com/yeti47/cryochat/core/ccc/logging"
	"github.com/yeti47/cryochat/core/config"
	"github.com/yeti47/cryochat/core/encryption"
	"github.com/yeti47/cryochat/core/messages"
	"github.com/yeti47/cryochat/core/relay"
	"github.com/yeti47/cryochat/core/users"
)

var (
	// ErrStoredKeysLocked means stored keys exist but did not unlock. The
	// password has to be entered again; keys are never regenerated over them.
	ErrStoredKeysLocked = errors.New("stored keys could not be unlocked")
	ErrNotSignedIn      = errors.New("not signed in")
	ErrUnknownUser      = errors.New("unknown user")
)

const maxPendingEvents = 256

// Identity is what the identity provider asserts about the user
type Identity struct {
	UserID string
	Email  string
}

type Settings struct {
	PasswordExpiration time.Duration
	SignInTimeout      time.Duration
	SweepInterval      time.Duration
}

func SettingsFromConfig(s config.SecuritySettings) Settings {
	return Settings{
		PasswordExpiration: s.PasswordExpiration(),
		SignInTimeout:      s.SignInTimeout(),
		SweepInterval:      s.PasswordSweepInterval(),
	}
}

type Options struct {
	Logger    logging.Logger
	Users     users.UserRepository
	Messages  messages.MessageRepository
	Relay     relay.Relay
	Vault     *encryption.KeyVault
	Cipher    *encryption.MessageCipher
	Passwords *auth.SessionPasswordStore
	Auditor   encryption.Auditor
	Settings  Settings
}

// Session is the signed-in state of one local user: the unlocked key pair,
// the session password and the relay subscription.
type Session struct {
	logger    logging.Logger
	users     users.UserRepository
	messages  messages.MessageRepository
	relay     relay.Relay
	vault     *encryption.KeyVault
	cipher    *encryption.MessageCipher
	passwords *auth.SessionPasswordStore
	auditor   encryption.Auditor
	history   *messages.HistoryLoader
	settings  Settings
	now       func() time.Time

	userID      string
	unsubscribe func()
	mu          sync.Mutex

	pending   []relay.Event
	pendingMu sync.Mutex
}

func NewSession(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger
	}
	if opts.Auditor == nil {
		opts.Auditor = encryption.NopAuditor
	}
	if opts.Passwords == nil {
		opts.Passwords = auth.NewSessionPasswordStore(nil)
	}
	if opts.Cipher == nil {
		opts.Cipher = encryption.NewMessageCipher(opts.Vault, nil, opts.Logger)
	}
	defaults := SettingsFromConfig(config.DefaultSecuritySettings())
	if opts.Settings.PasswordExpiration <= 0 {
		opts.Settings.PasswordExpiration = defaults.PasswordExpiration
	}
	if opts.Settings.SignInTimeout <= 0 {
		opts.Settings.SignInTimeout = defaults.SignInTimeout
	}
	if opts.Settings.SweepInterval <= 0 {
		opts.Settings.SweepInterval = defaults.SweepInterval
	}

	return &Session{
		logger:    opts.Logger,
		users:     opts.Users,
		messages:  opts.Messages,
		relay:     opts.Relay,
		vault:     opts.Vault,
		cipher:    opts.Cipher,
		passwords: opts.Passwords,
		auditor:   opts.Auditor,
		history:   messages.NewHistoryLoader(opts.Messages, opts.Cipher, opts.Logger),
		settings:  opts.Settings,
		now:       time.Now,
	}
}

// CurrentUser returns the signed-in user id
func (s *Session) CurrentUser() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.userID, s.userID != ""
}

// Active reports whether userID is signed in with a live session password.
// An expired password also drops the key pair.
func (s *Session) Active(userID string) bool {
	current, ok := s.CurrentUser()
	if !ok || current != userID {
		return false
	}
	if _, ok := s.passwords.Get(); !ok {
		s.vault.ClearKeys()
		return false
	}
	_, ok = s.vault.CurrentKeyPair()
	return ok
}

func (s *Session) requireUser() (string, error) {
	userID, ok := s.CurrentUser()
	if !ok {
		return "", ErrNotSignedIn
	}
	return userID, nil
}

// start makes userID the session user. Callers hold no locks.
func (s *Session) start(ctx context.Context, userID, password string) error {
	s.passwords.Set(password, s.settings.PasswordExpiration)

	unsubscribe, err := s.relay.Subscribe(userID, s.handleEvent)
	if err != nil {
		s.passwords.Clear()
		s.vault.ClearKeys()
		return err
	}

	s.mu.Lock()
	previous := s.unsubscribe
	s.userID = userID
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	if previous != nil {
		previous()
	}

	if err := s.users.UpdateLastSeen(ctx, userID); err != nil {
		s.logger.Warn("Failed to update last seen", "user", userID, "error", err)
	}
	s.publish(ctx, relay.EventUserOnline, userID, "", "", nil)

	s.logger.Info("Session started", "user", userID)
	return nil
}

// SignOut drops the key pair and the session password and goes offline
func (s *Session) SignOut(ctx context.Context) {
	s.passwords.Clear()
	s.vault.ClearKeys()

	s.mu.Lock()
	userID := s.userID
	unsubscribe := s.unsubscribe
	s.userID = ""
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.pendingMu.Lock()
	s.pending = nil
	s.pendingMu.Unlock()

	if userID != "" {
		s.publish(ctx, relay.EventUserOffline, userID, "", "", nil)
		s.logger.Info("Signed out", "user", userID)
	}
}

// Unload is SignOut for process shutdown
func (s *Session) Unload() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s.SignOut(ctx)
}

// RunMaintenance sweeps the session password until ctx is done. An expired
// password takes the key pair with it.
func (s *Session) RunMaintenance(ctx context.Context) {
	auth.RunExpirationSweeper(ctx, s.passwords, s.settings.SweepInterval, func() {
		s.vault.ClearKeys()
		userID, _ := s.CurrentUser()
		s.logger.Info("Session password expired, keys cleared", "user", userID)
	})
}

// Events drains relay events received since the last call
func (s *Session) Events() []relay.Event {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	events := s.pending
	s.pending = nil
	return events
}

func (s *Session) handleEvent(event relay.Event) {
	if event.Type == relay.EventMessage && event.MessageID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.acknowledge(ctx, event.MessageID, false); err != nil {
			s.logger.Warn("Failed to acknowledge delivery", "message", event.MessageID, "error", err)
		}
		cancel()
	}

	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if len(s.pending) >= maxPendingEvents {
		s.pending = s.pending[1:]
	}
	s.pending = append(s.pending, event)
}

func (s *Session) publish(ctx context.Context, eventType relay.EventType, from, to, messageID string, payload any) {
	event, err := relay.NewEvent(eventType, from, to, payload)
	if err != nil {
		s.logger.Error("Failed to build event", "type", eventType, "error", err)
		return
	}
	event.MessageID = messageID

	if err := s.relay.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event", "type", eventType, "error", err)
	}
}
