package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yeti47/cryochat/core/ccc/db"
)

var ErrMessageNotFound = errors.New("message not found")

type MessageRepository interface {
	Create(ctx context.Context, msg *Message) error
	// GetByID returns nil if the message does not exist (this is not an error)
	GetByID(ctx context.Context, id string) (*Message, error)
	// GetConversation returns all messages between a and b, oldest first
	GetConversation(ctx context.Context, a, b string) ([]*Message, error)
	// MarkDelivered is only applied for the receiver
	MarkDelivered(ctx context.Context, id, receiverID string) error
	// MarkRead also marks the message delivered
	MarkRead(ctx context.Context, id, receiverID string) error
}

// SQLiteMessageRepository implements MessageRepository using SQLite
type SQLiteMessageRepository struct {
	db *sql.DB
}

// NewSQLiteMessageRepository creates a new SQLite-based MessageRepository
func NewSQLiteMessageRepository(db *sql.DB) (*SQLiteMessageRepository, error) {
	repo := &SQLiteMessageRepository{db: db}
	if err := repo.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return repo, nil
}

// createTables ensures that the required tables exist
func (r *SQLiteMessageRepository) createTables() error {
	createMessagesTable := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		encrypted_content TEXT NOT NULL,
		encrypted_content_for_sender TEXT,
		delivered INTEGER NOT NULL DEFAULT 0,
		read INTEGER NOT NULL DEFAULT 0,
		timestamp TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, timestamp);`

	_, err := r.db.Exec(createMessagesTable)
	return err
}

const messageColumns = `id, sender_id, receiver_id, encrypted_content, encrypted_content_for_sender, delivered, read, timestamp`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	msg := &Message{}
	var forSender sql.NullString
	var delivered, read int
	var timestampStr string

	err := row.Scan(
		&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.EncryptedContent, &forSender,
		&delivered, &read, &timestampStr,
	)
	if err != nil {
		return nil, err
	}

	msg.EncryptedContentForSender = db.NullToStringPtr(forSender)
	msg.Delivered = db.IntToBool(delivered)
	msg.Read = db.IntToBool(read)
	msg.Timestamp, err = db.StringToTime(timestampStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	return msg, nil
}

func (r *SQLiteMessageRepository) Create(ctx context.Context, msg *Message) error {
	query := `
	INSERT INTO messages (` + messageColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.EncryptedContent, db.StringPtrToNull(msg.EncryptedContentForSender),
		db.BoolToInt(msg.Delivered), db.BoolToInt(msg.Read), db.TimeToString(msg.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

func (r *SQLiteMessageRepository) GetByID(ctx context.Context, id string) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`

	msg, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message by ID: %w", err)
	}
	return msg, nil
}

func (r *SQLiteMessageRepository) GetConversation(ctx context.Context, a, b string) ([]*Message, error) {
	query := `
	SELECT ` + messageColumns + `
	FROM messages
	WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
	ORDER BY timestamp ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, a, b, b, a)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	defer rows.Close()

	var result []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		result = append(result, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return result, nil
}

func (r *SQLiteMessageRepository) MarkDelivered(ctx context.Context, id, receiverID string) error {
	return r.update(ctx, `UPDATE messages SET delivered = 1 WHERE id = ? AND receiver_id = ?`, id, receiverID)
}

func (r *SQLiteMessageRepository) MarkRead(ctx context.Context, id, receiverID string) error {
	return r.update(ctx, `UPDATE messages SET delivered = 1, read = 1 WHERE id = ? AND receiver_id = ?`, id, receiverID)
}

func (r *SQLiteMessageRepository) update(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}
