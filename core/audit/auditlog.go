package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/yeti47/cryochat/core/ccc/db"
	"github.com/yeti47/cryochat/core/ccc/logging"
)

// Security event types
const (
	LoginSuccess      = "LOGIN_SUCCESS"
	LoginFailure      = "LOGIN_FAILURE"
	PasswordChange    = "PASSWORD_CHANGE"
	KeyGeneration     = "KEY_GENERATION"
	DecryptionFailure = "DECRYPTION_FAILURE"
	RateLimitHit      = "RATE_LIMIT_HIT"
)

type Event struct {
	ID        string
	UserID    *string // nil for events without an identified user
	EventType string
	EventData map[string]any
	CreatedAt time.Time
}

type AuditLog interface {
	Record(ctx context.Context, event *Event) error
	// List returns the newest events of a user first
	List(ctx context.Context, userID string, limit int) ([]*Event, error)
}

// SQLiteAuditLog stores events in the security_audit_log table
type SQLiteAuditLog struct {
	db     *sql.DB
	logger logging.Logger
}

func NewSQLiteAuditLog(db *sql.DB, logger logging.Logger) (*SQLiteAuditLog, error) {
	if logger == nil {
		logger = logging.NopLogger
	}

	log := &SQLiteAuditLog{db: db, logger: logger}
	if err := log.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return log, nil
}

func (l *SQLiteAuditLog) createTables() error {
	createAuditTable := `
	CREATE TABLE IF NOT EXISTS security_audit_log (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		event_type TEXT NOT NULL,
		event_data TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_security_audit_log_user ON security_audit_log(user_id, created_at);`

	_, err := l.db.Exec(createAuditTable)
	return err
}

func (l *SQLiteAuditLog) Record(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	data := event.EventData
	if data == nil {
		data = map[string]any{}
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}

	query := `
	INSERT INTO security_audit_log (id, user_id, event_type, event_data, created_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err = l.db.ExecContext(ctx, query,
		event.ID, db.StringPtrToNull(event.UserID), event.EventType, string(encoded), db.TimeToString(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

func (l *SQLiteAuditLog) List(ctx context.Context, userID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT id, user_id, event_type, event_data, created_at
	FROM security_audit_log
	WHERE user_id = ?
	ORDER BY created_at DESC
	LIMIT ?`

	rows, err := l.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		var userIDNull sql.NullString
		var dataStr, createdAtStr string
		if err := rows.Scan(&event.ID, &userIDNull, &event.EventType, &dataStr, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}

		event.UserID = db.NullToStringPtr(userIDNull)
		if err := json.Unmarshal([]byte(dataStr), &event.EventData); err != nil {
			return nil, fmt.Errorf("failed to decode event data: %w", err)
		}
		event.CreatedAt, err = db.StringToTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
		}

		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit events: %w", err)
	}

	return events, nil
}

// RecordSecurityEvent implements encryption.Auditor. Failures are logged, never returned.
func (l *SQLiteAuditLog) RecordSecurityEvent(ctx context.Context, userID string, eventType string, data map[string]any) {
	event := &Event{EventType: eventType, EventData: data}
	if userID != "" {
		event.UserID = &userID
	}

	if err := l.Record(ctx, event); err != nil {
		l.logger.Error("Failed to write audit event", "eventType", eventType, "user", userID, "error", err)
	}
}
