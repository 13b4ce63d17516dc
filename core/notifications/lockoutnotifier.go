package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yeti47/cryochat/core/ccc/logging"
)

// EmailLookup resolves the address lockout notices for userID are sent to.
// An empty address with a nil error means the user has none on file.
type EmailLookup func(ctx context.Context, userID string) (string, error)

type LockoutNotificationSettings struct {
	MinInterval time.Duration
	// Copy, if set, receives a copy of every notice
	Copy string
}

// EmailLockoutNotifier mails a user when repeated sign-in failures lock them out
type EmailLockoutNotifier struct {
	settings          LockoutNotificationSettings
	sender            EmailSender
	lookup            EmailLookup
	logger            logging.Logger
	now               func() time.Time
	lastNotification  map[string]time.Time
	notificationMutex sync.Mutex
}

func NewEmailLockoutNotifier(settings LockoutNotificationSettings, sender EmailSender, lookup EmailLookup, logger logging.Logger) *EmailLockoutNotifier {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &EmailLockoutNotifier{
		settings:         settings,
		sender:           sender,
		lookup:           lookup,
		logger:           logger,
		now:              time.Now,
		lastNotification: make(map[string]time.Time),
	}
}

func (n *EmailLockoutNotifier) NotifyLockout(ctx context.Context, userID string, failureCount int) error {
	n.notificationMutex.Lock()
	defer n.notificationMutex.Unlock()

	now := n.now()
	if last, ok := n.lastNotification[userID]; ok && now.Sub(last) < n.settings.MinInterval {
		n.logger.Info("Skipping lockout notification due to rate limiting.", "user", userID)
		return nil
	}

	to, err := n.lookup(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve email for user %s: %w", userID, err)
	}

	recipients := make([]string, 0, 2)
	if to != "" {
		recipients = append(recipients, to)
	}
	if n.settings.Copy != "" && n.settings.Copy != to {
		recipients = append(recipients, n.settings.Copy)
	}
	if len(recipients) == 0 {
		n.logger.Debug("No recipient for lockout notification.", "user", userID)
		return nil
	}

	subject := "CryoChat sign-in locked"
	body := fmt.Sprintf("Your CryoChat account was locked after %d failed attempts to unlock your encryption keys.\n\nTime: %s\n\nIf this was not you, someone may be trying to guess your password. Consider changing it once the lock expires.",
		failureCount,
		now.UTC().Format("2006-01-02 15:04:05 UTC"))

	for _, recipient := range recipients {
		n.logger.Info("Sending lockout notification.", "user", userID, "failureCount", failureCount)
		if err := n.sender.SendEmail(recipient, subject, body); err != nil {
			n.logger.Error("Failed to send lockout notification.", "error", err, "user", userID)
			return err
		}
	}

	n.lastNotification[userID] = now
	return nil
}
