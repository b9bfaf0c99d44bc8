package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"inboxchat/internal/app/user"
	"inboxchat/internal/pkg/logx"
)

const memoryPath = ":memory:"

// sqliteStore implements Store on a single SQLite connection.
type sqliteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the SQLite database at path and migrates it.
// The path ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (Store, error) {
	dsn := path
	if path != memoryPath {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// One connection: writes are serialized by SQLite anyway and an in-memory
	// database only exists on the connection that created it.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(sqlDB, "sqlite3", "migrations/sqlite"); err != nil {
		sqlDB.Close()
		return nil, err
	}

	logx.Info("Database migrations applied successfully.", "dialect", "sqlite", "path", path)

	return &sqliteStore{db: sqlDB, now: time.Now}, nil
}

func (s *sqliteStore) FindUserByID(ctx context.Context, userID string) (user.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT user_id, username, status FROM users WHERE user_id = ?`,
		userID,
	))

	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("find user %s: %w", userID, err)
	}

	return u, nil
}

func (s *sqliteStore) CreateUser(ctx context.Context, userID, username string) (user.User, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, username, status, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, username, string(user.StatusOffline), s.now().Unix(),
	)
	if err != nil {
		return user.User{}, fmt.Errorf("create user %s: %w", userID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, ErrUserExists
	}

	return user.User{ID: userID, Username: username, Status: user.StatusOffline}, nil
}

func (s *sqliteStore) FindUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, username, status FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan users: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (s *sqliteStore) UpdateUserStatus(ctx context.Context, userID string, status user.Status) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET status = ?, updated_at = ? WHERE user_id = ?`,
		string(status), s.now().Unix(), userID,
	)
	if err != nil {
		return false, fmt.Errorf("update status of %s: %w", userID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update status of %s: %w", userID, err)
	}

	return n == 1, nil
}

func (s *sqliteStore) FindMessages(ctx context.Context, inbox string, marker *int64) ([]Message, error) {
	query := `SELECT message_id, from_user, inbox, created_at, text FROM messages WHERE inbox = ?`
	args := []any{inbox}

	if marker != nil {
		query += ` AND created_at > ?`
		args = append(args, *marker)
	}
	query += ` ORDER BY created_at, message_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find messages of %s: %w", inbox, err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var (
			id        int64
			from, ibx string
			createdAt int64
			text      string
		)
		if err := rows.Scan(&id, &from, &ibx, &createdAt, &text); err != nil {
			return nil, fmt.Errorf("scan messages: %w", err)
		}
		messages = append(messages, newMessage(id, from, ibx, createdAt, text))
	}

	return messages, rows.Err()
}

func (s *sqliteStore) CreateMessage(ctx context.Context, fromUser, inbox, text string) (Message, error) {
	createdAt := s.now().Unix()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (from_user, inbox, created_at, text) VALUES (?, ?, ?, ?)`,
		fromUser, inbox, createdAt, text,
	)
	if err != nil {
		return Message{}, fmt.Errorf("create message in %s: %w", inbox, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Message{}, fmt.Errorf("create message in %s: %w", inbox, err)
	}

	return newMessage(id, fromUser, inbox, createdAt, text), nil
}

func (s *sqliteStore) Close() {
	if err := s.db.Close(); err != nil {
		logx.Error(err, "Failed to close sqlite database")
	}
}
