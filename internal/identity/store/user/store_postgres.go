package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"keyward/internal/identity/models"
	"keyward/pkg/platform/sentinel"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// PostgresStore persists credential records in Postgres. Envelopes are
// stored as the opaque base64 strings fieldcrypt produces; the database
// never sees plaintext identifiers or PII.
//
// Expected schema:
//
//	CREATE TABLE users (
//	    id               UUID PRIMARY KEY,
//	    email_hash       TEXT NOT NULL UNIQUE,
//	    username_hash    TEXT NOT NULL UNIQUE,
//	    password_hash    TEXT NOT NULL,
//	    encrypted_fields JSONB NOT NULL,
//	    created_at       TIMESTAMPTZ NOT NULL,
//	    updated_at       TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Insert adds a new record, translating unique violations to
// sentinel.ErrConflict.
func (s *PostgresStore) Insert(ctx context.Context, u *models.User) error {
	fields, err := json.Marshal(u.EncryptedFields)
	if err != nil {
		return fmt.Errorf("encode encrypted fields: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, email_hash, username_hash, password_hash, encrypted_fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.EmailHash, u.UsernameHash, u.PasswordHash, fields, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID returns the record for id or sentinel.ErrNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.findBy(ctx, "id", id)
}

// FindByEmailHash returns the record whose email lookup hash matches.
func (s *PostgresStore) FindByEmailHash(ctx context.Context, hash string) (*models.User, error) {
	return s.findBy(ctx, "email_hash", hash)
}

// FindByUsernameHash returns the record whose username lookup hash matches.
func (s *PostgresStore) FindByUsernameHash(ctx context.Context, hash string) (*models.User, error) {
	return s.findBy(ctx, "username_hash", hash)
}

func (s *PostgresStore) findBy(ctx context.Context, column, value string) (*models.User, error) {
	// column is one of three compile-time constants, never user input.
	query := fmt.Sprintf(`
		SELECT id, email_hash, username_hash, password_hash, encrypted_fields, created_at, updated_at
		FROM users WHERE %s = $1
	`, column)

	var u models.User
	var fields []byte
	err := s.pool.QueryRow(ctx, query, value).Scan(
		&u.ID, &u.EmailHash, &u.UsernameHash, &u.PasswordHash, &fields, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user by %s: %w", column, err)
	}
	if err := json.Unmarshal(fields, &u.EncryptedFields); err != nil {
		return nil, fmt.Errorf("decode encrypted fields: %w", err)
	}
	return &u, nil
}

// Update rewrites an existing record in full. sentinel.ErrNotFound for
// unknown IDs, sentinel.ErrConflict when a changed lookup hash collides.
func (s *PostgresStore) Update(ctx context.Context, u *models.User) error {
	fields, err := json.Marshal(u.EncryptedFields)
	if err != nil {
		return fmt.Errorf("encode encrypted fields: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET email_hash = $2, username_hash = $3, password_hash = $4, encrypted_fields = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.EmailHash, u.UsernameHash, u.PasswordHash, fields, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
