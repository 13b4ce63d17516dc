package notifications

type EmailSender interface {
	// SendEmail sends a plain-text email to a single recipient.
	SendEmail(to, subject, body string) error
}
