package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines admin account data access
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Admin, error)
	GetByEmail(ctx context.Context, email string) (*Admin, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, ip string) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates admin account repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const adminColumns = `id, email, password_hash, role, name, is_active, last_login_at, last_login_ip, created_at, updated_at`

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Admin, error) {
	return r.get(ctx, `SELECT `+adminColumns+` FROM admin_users WHERE id = $1`, id)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*Admin, error) {
	return r.get(ctx, `SELECT `+adminColumns+` FROM admin_users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *repository) get(ctx context.Context, query string, arg any) (*Admin, error) {
	var admin Admin
	if err := r.db.GetContext(ctx, &admin, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &admin, nil
}

func (r *repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, ip string) error {
	query := `UPDATE admin_users SET last_login_at = NOW(), last_login_ip = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, ip)
	return err
}
