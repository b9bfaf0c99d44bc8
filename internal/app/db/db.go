/*
Package db is the persistence layer for users, presence and messages.

It exposes the Store interface and two implementations selected by the DSN scheme:
PostgreSQL through a pgx connection pool and SQLite through the pure-Go modernc driver.
Both run their schema migrations with goose on open.
*/
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"inboxchat/internal/app/user"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("db: not found")

	// ErrUserExists is returned by CreateUser when the user ID is taken.
	ErrUserExists = errors.New("db: user already exists")
)

// MaxMessageLength is the maximum text length, in bytes, of a stored message.
const MaxMessageLength = 255

// Message is a persisted chat message.
type Message struct {
	ID        int64     `json:"message_id"`
	FromUser  string    `json:"from_user"`
	Inbox     string    `json:"inbox"`
	CreatedAt time.Time `json:"created_at"`

	// Marker is CreatedAt in Unix seconds; clients pass it back to fetch newer messages.
	Marker int64  `json:"marker"`
	Text   string `json:"text"`
}

// Store is the persistence collaborator used by the HTTP layer, the stream sessions and dispatch.
type Store interface {
	FindUserByID(ctx context.Context, userID string) (user.User, error)
	CreateUser(ctx context.Context, userID, username string) (user.User, error)
	FindUsers(ctx context.Context) ([]user.User, error)

	// UpdateUserStatus records presence; it returns false for unknown users.
	UpdateUserStatus(ctx context.Context, userID string, status user.Status) (bool, error)

	// FindMessages returns the messages of inbox in ascending creation order.
	// A non-nil marker restricts the result to messages created strictly after it.
	FindMessages(ctx context.Context, inbox string, marker *int64) ([]Message, error)

	// CreateMessage stores a message, assigning its ID and second-precision creation time.
	CreateMessage(ctx context.Context, fromUser, inbox, text string) (Message, error)

	Close()
}

// Open connects to the database named by dsn and applies pending migrations.
// Supported forms are "postgres://..." / "postgresql://..." and "sqlite://<path>".
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		pool, err := NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return newPostgresStore(pool), nil

	case strings.HasPrefix(dsn, "sqlite://"):
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))

	default:
		return nil, fmt.Errorf("unsupported database DSN scheme: %q", dsn)
	}
}

// runMigrations applies all pending migrations of one dialect from the embedded file system.
func runMigrations(db *sql.DB, dialect, dir string) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

func newMessage(id int64, fromUser, inbox string, createdAt int64, text string) Message {
	return Message{
		ID:        id,
		FromUser:  fromUser,
		Inbox:     inbox,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
		Marker:    createdAt,
		Text:      text,
	}
}

// rowScanner is satisfied by pgx rows and database/sql rows alike.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (user.User, error) {
	var id, username, status string
	if err := row.Scan(&id, &username, &status); err != nil {
		return user.User{}, err
	}

	return user.User{ID: id, Username: username, Status: user.Status(status)}, nil
}
