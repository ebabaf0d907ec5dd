package admin

import (
	"time"

	"github.com/google/uuid"

	"github.com/mwork/admin-console/internal/domain/identity"
	"github.com/mwork/admin-console/internal/domain/operations"
	"github.com/mwork/admin-console/internal/domain/rbac"
)

// LoginRequest for POST /admin/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginResponse after successful login
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	ExpiresAt   time.Time      `json:"expires_at"`
	Admin       *AdminResponse `json:"admin"`
}

// AdminResponse represents admin in API
type AdminResponse struct {
	ID          uuid.UUID         `json:"id"`
	Email       string            `json:"email"`
	Role        rbac.Role         `json:"role"`
	Name        string            `json:"name"`
	Permissions []rbac.Permission `json:"permissions"`
	LastLoginAt *string           `json:"last_login_at,omitempty"`
	CreatedAt   string            `json:"created_at"`
}

// AdminResponseFromEntity converts entity to response
func AdminResponseFromEntity(a *identity.Admin, policy *rbac.Policy) *AdminResponse {
	role := a.EffectiveRole()
	resp := &AdminResponse{
		ID:          a.ID,
		Email:       a.Email,
		Role:        role,
		Name:        a.Name,
		Permissions: policy.PermissionsFor(role),
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
	if resp.Permissions == nil {
		resp.Permissions = []rbac.Permission{}
	}
	if a.LastLoginAt.Valid {
		s := a.LastLoginAt.Time.Format(time.RFC3339)
		resp.LastLoginAt = &s
	}
	return resp
}

// StartActionRequest for POST /admin/actions
type StartActionRequest struct {
	Permission string `json:"permission" validate:"required,permission"`
	TargetID   string `json:"target_id" validate:"required,uuid"`
	Amount     int64  `json:"amount,omitempty" validate:"gte=0"`
	Category   string `json:"category,omitempty" validate:"max=100"`
}

// ConfirmActionRequest for POST /admin/actions/{id}/confirm
type ConfirmActionRequest struct {
	Reason     string `json:"reason" validate:"max=1000"`
	Credential string `json:"credential" validate:"max=256"`
}

// OperationResponse describes a catalog entry for the viewer
type OperationResponse struct {
	operations.Definition
	Risk      rbac.RiskTier `json:"risk"`
	Critical  bool          `json:"critical"`
	Allowed   bool          `json:"allowed"`
	MaxAmount *float64      `json:"max_amount,omitempty"`
}

// ExportResponse is returned when an export was uploaded
type ExportResponse struct {
	Key     string `json:"key"`
	URL     string `json:"url"`
	Entries int    `json:"entries"`
}
