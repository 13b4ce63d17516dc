package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yeti47/cryochat/core/ccc/db"
	"github.com/yeti47/cryochat/core/encryption"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrInvalidSearchTerm = errors.New("search term too short")
)

const maxSearchResults = 10

type UserRepository interface {
	encryption.KeyRecordStore

	// Create adds a new profile. Key columns may be empty.
	Create(ctx context.Context, user *User) error
	// GetByID returns nil if the user does not exist (this is not an error)
	GetByID(ctx context.Context, id string) (*User, error)
	// GetByUsername returns nil if the user does not exist
	GetByUsername(ctx context.Context, username string) (*User, error)
	// Search finds users whose username or display name contains term
	Search(ctx context.Context, term string, excludeID string) ([]*User, error)
	UpdateLastSeen(ctx context.Context, id string) error
	// Delete removes a profile. Deleting a missing profile is not an error.
	Delete(ctx context.Context, id string) error
}

// SQLiteUserRepository implements UserRepository using SQLite
type SQLiteUserRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteUserRepository creates a new SQLite-based UserRepository
func NewSQLiteUserRepository(db *sql.DB) (*SQLiteUserRepository, error) {
	repo := &SQLiteUserRepository{db: db, now: time.Now}
	if err := repo.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return repo, nil
}

// createTables ensures that the required tables exist
func (r *SQLiteUserRepository) createTables() error {
	createUsersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		email TEXT NOT NULL,
		public_key TEXT NOT NULL DEFAULT '',
		encrypted_private_key TEXT NOT NULL DEFAULT '',
		key_salt TEXT NOT NULL DEFAULT '',
		key_iv TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		last_seen TEXT NOT NULL
	);`

	_, err := r.db.Exec(createUsersTable)
	return err
}

const userColumns = `id, username, display_name, email, public_key, encrypted_private_key, key_salt, key_iv, created_at, last_seen`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	user := &User{}
	var createdAtStr, lastSeenStr string
	err := row.Scan(
		&user.ID, &user.Username, &user.DisplayName, &user.Email,
		&user.PublicKey, &user.EncryptedPrivateKey, &user.KeySalt, &user.KeyIV,
		&createdAtStr, &lastSeenStr,
	)
	if err != nil {
		return nil, err
	}

	// Convert string timestamps back to time.Time
	user.CreatedAt, err = db.StringToTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
	}
	user.LastSeen, err = db.StringToTime(lastSeenStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_seen timestamp: %w", err)
	}

	return user, nil
}

func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	existing, err := r.GetByUsername(ctx, user.Username)
	if err != nil {
		return fmt.Errorf("failed to check for existing username: %w", err)
	}
	if existing != nil {
		return ErrUsernameTaken
	}

	now := r.now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.LastSeen.IsZero() {
		user.LastSeen = now
	}

	query := `
	INSERT INTO users (` + userColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.DisplayName, user.Email,
		user.PublicKey, user.EncryptedPrivateKey, user.KeySalt, user.KeyIV,
		db.TimeToString(user.CreatedAt), db.TimeToString(user.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

// Search requires at least two characters and returns up to ten users
func (r *SQLiteUserRepository) Search(ctx context.Context, term string, excludeID string) ([]*User, error) {
	term = strings.TrimSpace(term)
	if len(term) < 2 {
		return nil, ErrInvalidSearchTerm
	}

	// escape LIKE wildcards in user input
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
	pattern := "%" + escaped + "%"

	query := `
	SELECT ` + userColumns + `
	FROM users
	WHERE (username LIKE ? ESCAPE '\' OR display_name LIKE ? ESCAPE '\') AND id != ?
	ORDER BY username
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, pattern, pattern, excludeID, maxSearchResults)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var result []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return result, nil
}

func (r *SQLiteUserRepository) UpdateLastSeen(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET last_seen = ? WHERE id = ?`, db.TimeToString(r.now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *SQLiteUserRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// GetKeyRecord implements encryption.KeyRecordStore
func (r *SQLiteUserRepository) GetKeyRecord(ctx context.Context, userID string) (*encryption.EncryptedKeyRecord, error) {
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return user.KeyRecord(), nil
}

// SaveKeyRecord implements encryption.KeyRecordStore. The profile must exist.
func (r *SQLiteUserRepository) SaveKeyRecord(ctx context.Context, userID string, record *encryption.EncryptedKeyRecord) error {
	query := `
	UPDATE users
	SET public_key = ?, encrypted_private_key = ?, key_salt = ?, key_iv = ?
	WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		record.PublicKey, record.EncryptedPrivateKey, record.Salt, record.IV,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to save key record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("failed to save key record for %s: %w", userID, ErrUserNotFound)
	}

	return nil
}
