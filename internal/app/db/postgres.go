package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"inboxchat/internal/app/user"
	"inboxchat/internal/pkg/logx"
)

// NewPool initializes a new PostgreSQL connection pool and executes database migrations.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(sqlDB, "postgres", "migrations/postgres"); err != nil {
		pool.Close()
		return nil, err
	}

	logx.Info("Database migrations applied successfully.", "dialect", "postgres")

	return pool, nil
}

// IsUniqueViolation checks if the error is a PostgreSQL unique constraint violation (code 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// postgresStore implements Store on top of a pgx pool.
type postgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func newPostgresStore(pool *pgxpool.Pool) *postgresStore {
	return &postgresStore{pool: pool, now: time.Now}
}

func (s *postgresStore) FindUserByID(ctx context.Context, userID string) (user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT user_id, username, status FROM users WHERE user_id = $1`,
		userID,
	))

	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("find user %s: %w", userID, err)
	}

	return u, nil
}

func (s *postgresStore) CreateUser(ctx context.Context, userID, username string) (user.User, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (user_id, username, status, updated_at) VALUES ($1, $2, $3, $4)`,
		userID, username, string(user.StatusOffline), s.now().Unix(),
	)

	if IsUniqueViolation(err) {
		return user.User{}, ErrUserExists
	}
	if err != nil {
		return user.User{}, fmt.Errorf("create user %s: %w", userID, err)
	}

	return user.User{ID: userID, Username: username, Status: user.StatusOffline}, nil
}

func (s *postgresStore) FindUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, username, status FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (user.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}

	return users, nil
}

func (s *postgresStore) UpdateUserStatus(ctx context.Context, userID string, status user.Status) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET status = $1, updated_at = $2 WHERE user_id = $3`,
		string(status), s.now().Unix(), userID,
	)
	if err != nil {
		return false, fmt.Errorf("update status of %s: %w", userID, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *postgresStore) FindMessages(ctx context.Context, inbox string, marker *int64) ([]Message, error) {
	query := `SELECT message_id, from_user, inbox, created_at, text FROM messages WHERE inbox = $1`
	args := []any{inbox}

	if marker != nil {
		query += ` AND created_at > $2`
		args = append(args, *marker)
	}
	query += ` ORDER BY created_at, message_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find messages of %s: %w", inbox, err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var (
			id        int64
			from, ibx string
			createdAt int64
			text      string
		)
		if err := row.Scan(&id, &from, &ibx, &createdAt, &text); err != nil {
			return Message{}, err
		}
		return newMessage(id, from, ibx, createdAt, text), nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}

	return messages, nil
}

func (s *postgresStore) CreateMessage(ctx context.Context, fromUser, inbox, text string) (Message, error) {
	createdAt := s.now().Unix()

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (from_user, inbox, created_at, text) VALUES ($1, $2, $3, $4) RETURNING message_id`,
		fromUser, inbox, createdAt, text,
	).Scan(&id)
	if err != nil {
		return Message{}, fmt.Errorf("create message in %s: %w", inbox, err)
	}

	return newMessage(id, fromUser, inbox, createdAt, text), nil
}

func (s *postgresStore) Close() {
	s.pool.Close()
}
