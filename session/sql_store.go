package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // embedded SQLite driver
)

// SQL dialects understood by SQLStore.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const hintKey = "role_hint"

// SQLStore keeps credentials in two tables: session_credentials (one row per
// role) and session_meta (role hint). Shared between processes that point at
// the same database.
type SQLStore struct {
	Broadcaster

	db      *sql.DB
	dialect string
	logger  *zap.Logger
}

// SQLConfig configures OpenSQLStore.
type SQLConfig struct {
	Driver          string // postgres | sqlite
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenSQLStore opens the database, verifies the connection and creates the
// schema if needed.
func OpenSQLStore(ctx context.Context, cfg SQLConfig, logger *zap.Logger) (*SQLStore, error) {
	if cfg.Driver != DialectPostgres && cfg.Driver != DialectSQLite {
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewSQLStore(db, cfg.Driver, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	store.logger.Info("session database ready", zap.String("driver", cfg.Driver))
	return store, nil
}

// NewSQLStore wraps an already open database.
func NewSQLStore(db *sql.DB, dialect string, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{db: db, dialect: dialect, logger: logger}
}

// EnsureSchema creates the tables if they do not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session_credentials (
			role TEXT PRIMARY KEY,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL DEFAULT '',
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create session schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, role Role) (*Credential, error) {
	query := "SELECT access_token, refresh_token, updated_at FROM session_credentials WHERE role = " + s.arg(1)

	var (
		cred    = Credential{Role: role}
		updated int64
	)
	err := s.db.QueryRowContext(ctx, query, string(role)).Scan(&cred.AccessToken, &cred.RefreshToken, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select credential: %w", err)
	}
	cred.UpdatedAt = time.UnixMilli(updated).UTC()
	return &cred, nil
}

func (s *SQLStore) Put(ctx context.Context, cred *Credential) error {
	if cred == nil || !cred.Role.Valid() {
		return fmt.Errorf("put credential: invalid role")
	}
	updated := cred.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	query := "INSERT INTO session_credentials (role, access_token, refresh_token, updated_at) VALUES (" +
		s.arg(1) + ", " + s.arg(2) + ", " + s.arg(3) + ", " + s.arg(4) + ") " +
		"ON CONFLICT (role) DO UPDATE SET access_token = excluded.access_token, " +
		"refresh_token = excluded.refresh_token, updated_at = excluded.updated_at"

	if _, err := s.db.ExecContext(ctx, query, string(cred.Role), cred.AccessToken, cred.RefreshToken, updated.UnixMilli()); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	s.Publish(Event{Kind: EventPut, Role: cred.Role, Reason: ReasonFrom(ctx)})
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, role Role) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM session_credentials WHERE role = "+s.arg(1), string(role))
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.Publish(Event{Kind: EventDelete, Role: role})
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM session_credentials"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear credentials: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM session_meta"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear session meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	s.Publish(Event{Kind: EventClear, Role: RoleNone})
	return nil
}

func (s *SQLStore) RoleHint(ctx context.Context) (Role, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM session_meta WHERE key = "+s.arg(1), hintKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return RoleNone, nil
	}
	if err != nil {
		return RoleNone, fmt.Errorf("select role hint: %w", err)
	}
	return Role(value), nil
}

func (s *SQLStore) SetRoleHint(ctx context.Context, role Role) error {
	query := "INSERT INTO session_meta (key, value) VALUES (" + s.arg(1) + ", " + s.arg(2) + ") " +
		"ON CONFLICT (key) DO UPDATE SET value = excluded.value"
	if _, err := s.db.ExecContext(ctx, query, hintKey, string(role)); err != nil {
		return fmt.Errorf("upsert role hint: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// arg returns the n-th bind placeholder for the dialect.
func (s *SQLStore) arg(n int) string {
	if s.dialect == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
