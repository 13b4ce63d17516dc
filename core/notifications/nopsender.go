package notifications

import "github.com/yeti47/cryochat/core/ccc/logging"

type nopSender struct{}

var NopSender EmailSender = &nopSender{}

// SendEmail does nothing and returns nil.
func (n *nopSender) SendEmail(to, subject, body string) error {
	return nil
}

// LogSender writes notices to the log instead of mailing them, for setups without SMTP
type LogSender struct {
	Logger logging.Logger
}

func (s *LogSender) SendEmail(to, subject, body string) error {
	s.Logger.Info("Email not sent, SMTP is not configured.", "subject", subject)
	return nil
}
