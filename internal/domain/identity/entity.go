package identity

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mwork/admin-console/internal/domain/rbac"
)

// Admin represents a console operator account
type Admin struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Role         rbac.Role      `db:"role" json:"role"`
	Name         string         `db:"name" json:"name"`
	IsActive     bool           `db:"is_active" json:"is_active"`
	LastLoginAt  sql.NullTime   `db:"last_login_at" json:"-"`
	LastLoginIP  sql.NullString `db:"last_login_ip" json:"-"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// EffectiveRole returns the stored role normalized into the known role set
func (a *Admin) EffectiveRole() rbac.Role {
	if a == nil {
		return rbac.RoleNone
	}
	return rbac.NormalizeRole(string(a.Role))
}
