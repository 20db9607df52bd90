package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"dashboard-backend/internal/models"
)

// ErrNoAdmin is returned when no admin matches the lookup.
var ErrNoAdmin = errors.New("admin not found")

// Admins reads and seeds the admins table.
type Admins struct {
	db DBTX
}

// NewAdmins returns the admin repository backed by db.
func NewAdmins(db DBTX) *Admins {
	return &Admins{db: db}
}

const adminColumns = `id::text, username, password_hash, name, role, created_at::text`

func scanAdmin(row pgx.Row) (models.Admin, error) {
	var a models.Admin
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Name, &a.Role, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, ErrNoAdmin
	}
	return a, err
}

// FindByUsername returns the admin with the given username, hash included.
func (s *Admins) FindByUsername(ctx context.Context, username string) (models.Admin, error) {
	return scanAdmin(s.db.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE username = $1`, username))
}

// FindByID returns the admin with the given id. An id that is not a
// number matches no admin.
func (s *Admins) FindByID(ctx context.Context, id string) (models.Admin, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return models.Admin{}, ErrNoAdmin
	}
	return scanAdmin(s.db.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1`, n))
}

// Ensure creates the admin when the username is free. An existing admin is
// left untouched so a restart never resets a changed password.
func (s *Admins) Ensure(ctx context.Context, username, passwordHash, name, role string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO admins (username, password_hash, name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO NOTHING
	`, username, passwordHash, name, role)
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
