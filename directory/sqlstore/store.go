package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/modernwms/wmsauth/directory"
	"github.com/modernwms/wmsauth/directory/sqlstore/migrations"
)

const userColumns = `user_id, user_num, user_name, password, user_role, userrole_id, tenant_id,
	email, phone, avatar, is_active, is_deleted, create_time, last_update_time`

// Store is a principal directory over the users table.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	now     func() time.Time
}

// New wraps an open connection. The caller keeps ownership of db.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      sqlx.NewDb(db, dialect.driverName()),
		dialect: dialect,
		now:     time.Now,
	}
}

// Open connects with dsn, verifies the connection and applies migrations.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if dialect == SQLite {
		// A shared in-memory database disappears with its last connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := New(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(s.dialect.gooseDialect()); err != nil {
		return err
	}
	return gooseUpContext(ctx, s.db.DB, s.dialect.migrationDir())
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindByIdentifier matches the login name first, then the user number.
func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (directory.Principal, error) {
	if identifier == "" {
		return directory.Principal{}, directory.ErrNotFound
	}
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users
		WHERE user_name = ? OR user_num = ?
		ORDER BY CASE WHEN user_name = ? THEN 0 ELSE 1 END
		LIMIT 1`)

	var row userRow
	if err := s.db.GetContext(ctx, &row, query, identifier, identifier, identifier); err != nil {
		return directory.Principal{}, mapErr(err)
	}
	return row.principal(), nil
}

// FindByID looks a principal up by its numeric id.
func (s *Store) FindByID(ctx context.Context, id string) (directory.Principal, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return directory.Principal{}, directory.ErrNotFound
	}
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE user_id = ?`)

	var row userRow
	if err := s.db.GetContext(ctx, &row, query, n); err != nil {
		return directory.Principal{}, mapErr(err)
	}
	return row.principal(), nil
}

// UpdatePasswordHash stores a new hash for id.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return directory.ErrNotFound
	}
	query := s.db.Rebind(`UPDATE users SET password = ?, last_update_time = ? WHERE user_id = ?`)

	res, err := s.db.ExecContext(ctx, query, hash, s.now().UTC(), n)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return directory.ErrNotFound
	}
	return nil
}

// Create inserts p and returns it with the assigned id.
func (s *Store) Create(ctx context.Context, p directory.Principal) (directory.Principal, error) {
	now := s.now().UTC()
	query := s.db.Rebind(`INSERT INTO users
		(user_num, user_name, password, user_role, userrole_id, tenant_id, email, phone, avatar,
		 is_active, is_deleted, create_time, last_update_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING user_id`)

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		p.Number, p.Name, p.PasswordHash, p.Role, p.RoleID, p.TenantID,
		nullString(p.Email), nullString(p.Phone), nullString(p.Avatar),
		p.Active, p.Deleted, now, now,
	).Scan(&id)
	if err != nil {
		return directory.Principal{}, fmt.Errorf("db error: %w", err)
	}

	p.ID = strconv.FormatInt(id, 10)
	p.CreatedAt, p.UpdatedAt = now, now
	return p, nil
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return directory.ErrNotFound
	}
	return fmt.Errorf("db error: %w", err)
}
