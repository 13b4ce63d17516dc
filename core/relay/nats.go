package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yeti47/cryochat/core/ccc/logging"
)

type NATSSettings struct {
	URL             string
	CredentialsFile string
	SubjectPrefix   string // defaults to "cryochat"
	ReconnectWait   time.Duration
	MaxReconnects   int
}

// NATSRelay publishes events on core NATS subjects <prefix>.user.<id>.
// Core NATS is at-most-once, which matches the relay contract.
type NATSRelay struct {
	conn   *nats.Conn
	prefix string
	logger logging.Logger
}

func NewNATSRelay(settings NATSSettings, logger logging.Logger) (*NATSRelay, error) {
	if logger == nil {
		logger = logging.NopLogger
	}
	if settings.SubjectPrefix == "" {
		settings.SubjectPrefix = "cryochat"
	}
	if settings.ReconnectWait <= 0 {
		settings.ReconnectWait = 2 * time.Second
	}
	if settings.MaxReconnects == 0 {
		settings.MaxReconnects = -1
	}

	opts := []nats.Option{
		nats.Name("cryochat"),
		nats.ReconnectWait(settings.ReconnectWait),
		nats.MaxReconnects(settings.MaxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	if settings.CredentialsFile != "" {
		if _, err := os.Stat(settings.CredentialsFile); err != nil {
			return nil, fmt.Errorf("NATS credentials file: %w", err)
		}
		opts = append(opts, nats.UserCredentials(settings.CredentialsFile))
	}

	conn, err := nats.Connect(settings.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSRelay{conn: conn, prefix: settings.SubjectPrefix, logger: logger}, nil
}

// UserSubject is the subject events for userID are published on
func UserSubject(prefix, userID string) string {
	return prefix + ".user." + userID
}

// BroadcastSubject carries events without a recipient
func BroadcastSubject(prefix string) string {
	return prefix + ".broadcast"
}

func (r *NATSRelay) subject(event Event) string {
	if event.Broadcast() {
		return BroadcastSubject(r.prefix)
	}
	return UserSubject(r.prefix, event.To)
}

func (r *NATSRelay) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return r.conn.Publish(r.subject(event), data)
}

func (r *NATSRelay) Subscribe(userID string, handler Handler) (func(), error) {
	callback := func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			r.logger.Warn("Dropping malformed event", "subject", msg.Subject, "error", err)
			return
		}
		if event.Broadcast() && event.From == userID {
			return
		}
		handler(event)
	}

	var subs []*nats.Subscription
	unsubscribe := func() {
		for _, sub := range subs {
			if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
				r.logger.Warn("Failed to unsubscribe", "subject", sub.Subject, "error", err)
			}
		}
	}

	for _, subject := range []string{UserSubject(r.prefix, userID), BroadcastSubject(r.prefix)} {
		sub, err := r.conn.Subscribe(subject, callback)
		if err != nil {
			unsubscribe()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		r.logger.Debug("Subscribed to NATS", "subject", subject)
		subs = append(subs, sub)
	}

	var once sync.Once
	return func() { once.Do(unsubscribe) }, nil
}

// Status returns the connection status
func (r *NATSRelay) Status() string {
	switch r.conn.Status() {
	case nats.CONNECTED:
		return "connected"
	case nats.CONNECTING:
		return "connecting"
	case nats.RECONNECTING:
		return "reconnecting"
	case nats.DISCONNECTED:
		return "disconnected"
	case nats.CLOSED:
		return "closed"
	default:
		return "unknown"
	}
}

func (r *NATSRelay) Close() {
	r.conn.Close()
}
