package admin

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mwork/admin-console/internal/domain/action"
	"github.com/mwork/admin-console/internal/domain/audit"
	"github.com/mwork/admin-console/internal/domain/identity"
	"github.com/mwork/admin-console/internal/domain/masking"
	"github.com/mwork/admin-console/internal/domain/notify"
	"github.com/mwork/admin-console/internal/domain/operations"
	"github.com/mwork/admin-console/internal/domain/rbac"
	"github.com/mwork/admin-console/internal/middleware"
	"github.com/mwork/admin-console/internal/pkg/jwt"
	"github.com/mwork/admin-console/internal/pkg/logger"
	"github.com/mwork/admin-console/internal/pkg/response"
	"github.com/mwork/admin-console/internal/pkg/storage"
	"github.com/mwork/admin-console/internal/pkg/validator"
)

// Handler handles admin console HTTP requests
type Handler struct {
	policy   *rbac.Policy
	identity *identity.Service
	jwtSvc   *jwt.Service
	actions  *action.Service
	catalog  *operations.Catalog
	trail    *audit.Trail
	exports  storage.Storage
	ws       *notify.Handler
	login    *middleware.IPRateLimiter
	now      func() time.Time
}

// Deps bundles handler collaborators. Exports and WS are optional.
type Deps struct {
	Policy   *rbac.Policy
	Identity *identity.Service
	JWT      *jwt.Service
	Actions  *action.Service
	Catalog  *operations.Catalog
	Trail    *audit.Trail
	Exports  storage.Storage
	WS       *notify.Handler
}

// NewHandler creates admin handler
func NewHandler(d Deps) *Handler {
	return &Handler{
		policy:   d.Policy,
		identity: d.Identity,
		jwtSvc:   d.JWT,
		actions:  d.Actions,
		catalog:  d.Catalog,
		trail:    d.Trail,
		exports:  d.Exports,
		ws:       d.WS,
		login:    middleware.NewIPRateLimiter(6*time.Second, 10),
		now:      time.Now,
	}
}

// --- Authentication ---

// Login handles POST /admin/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	admin, err := h.identity.Login(r.Context(), req.Email, req.Password, middleware.ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			response.Unauthorized(w, "Invalid email or password")
		case errors.Is(err, identity.ErrAdminInactive):
			response.Forbidden(w, "Account is inactive")
		default:
			response.InternalError(w)
		}
		return
	}

	role := admin.EffectiveRole()
	if !rbac.IsAdminRole(role) {
		response.Forbidden(w, "Console access requires an administrative role")
		return
	}

	token, expiresAt, err := h.jwtSvc.GenerateAccessToken(admin.ID, string(role), admin.Email)
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("Failed to sign access token")
		response.InternalError(w)
		return
	}

	response.OK(w, &LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		Admin:       AdminResponseFromEntity(admin, h.policy),
	})
}

// Me handles GET /admin/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	admin, err := h.identity.GetByID(r.Context(), middleware.GetAdminID(r.Context()))
	if err != nil {
		response.NotFound(w, "Admin not found")
		return
	}
	if !admin.IsActive {
		response.Forbidden(w, "Account is inactive")
		return
	}

	response.OK(w, AdminResponseFromEntity(admin, h.policy))
}

// --- Operations ---

// ListOperations handles GET /admin/operations
func (h *Handler) ListOperations(w http.ResponseWriter, r *http.Request) {
	role := middleware.GetRole(r.Context())
	defs := h.catalog.Definitions()

	items := make([]OperationResponse, 0, len(defs))
	for _, def := range defs {
		item := OperationResponse{
			Definition: def,
			Risk:       h.policy.RiskLevelOf(def.Permission),
			Critical:   h.policy.IsCriticalAction(def.Permission),
			Allowed:    h.policy.HasPermission(role, def.Permission),
		}
		// Unlimited roles get no max_amount; +Inf does not encode as JSON
		if def.Threshold != "" && item.Allowed {
			if limit := h.policy.MaxThresholdFor(role, def.Threshold); !math.IsInf(limit, 1) {
				item.MaxAmount = &limit
			}
		}
		items = append(items, item)
	}

	response.OK(w, items)
}

// --- Actions ---

// StartAction handles POST /admin/actions
func (h *Handler) StartAction(w http.ResponseWriter, r *http.Request) {
	var req StartActionRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	actor := operations.Actor{
		AdminID: middleware.GetAdminID(r.Context()),
		Role:    middleware.GetRole(r.Context()),
	}
	built, err := h.catalog.Build(actor, rbac.Permission(req.Permission), operations.Params{
		TargetID: uuid.MustParse(req.TargetID),
		Amount:   req.Amount,
		Category: req.Category,
	})
	if err != nil {
		writeActionError(w, err)
		return
	}

	ticket, err := h.actions.Start(r.Context(), built)
	if err != nil {
		writeActionError(w, err)
		return
	}

	response.Created(w, ticket)
}

// GetAction handles GET /admin/actions/{id}
func (h *Handler) GetAction(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketID(w, r)
	if !ok {
		return
	}

	ticket, err := h.actions.Get(id, middleware.GetAdminID(r.Context()).String())
	if err != nil {
		writeActionError(w, err)
		return
	}

	response.OK(w, ticket)
}

// ConfirmAction handles POST /admin/actions/{id}/confirm
func (h *Handler) ConfirmAction(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketID(w, r)
	if !ok {
		return
	}

	var req ConfirmActionRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	ticket, err := h.actions.Confirm(r.Context(), id, middleware.GetAdminID(r.Context()).String(), action.Confirmation{
		Reason:     req.Reason,
		Credential: req.Credential,
	})
	if err != nil {
		writeActionError(w, err)
		return
	}

	response.OK(w, ticket)
}

// CancelAction handles POST /admin/actions/{id}/cancel
func (h *Handler) CancelAction(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketID(w, r)
	if !ok {
		return
	}

	ticket, err := h.actions.Cancel(id, middleware.GetAdminID(r.Context()).String())
	if err != nil {
		writeActionError(w, err)
		return
	}

	response.OK(w, ticket)
}

func ticketID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid action ID")
		return uuid.Nil, false
	}
	return id, true
}

// --- Users ---

// GetUser handles GET /admin/users/{id}. Sensitive fields are masked for the viewer's role.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	record, err := h.catalog.UserRecord(r.Context(), userID)
	if err != nil {
		if errors.Is(err, operations.ErrNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		logger.FromContext(r.Context()).Error().Err(err).Str("user_id", userID.String()).Msg("Failed to load user record")
		response.InternalError(w)
		return
	}

	masked := masking.Apply(record, middleware.GetRole(r.Context()))
	if state, ok := h.actions.RecordState(operations.TargetUser, userID.String()); ok {
		masked["pending_state"] = state
	}

	response.OK(w, masked)
}

// --- Audit ---

// AuditLogs handles GET /admin/audit/logs
func (h *Handler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", queryInt(r, "limit", audit.DefaultPageSize))

	result, err := h.trail.Query(r.Context(), filter, page, pageSize)
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("Failed to query audit trail")
		response.InternalError(w)
		return
	}

	meta := response.NewMeta(result.Total, result.Page, result.PageSize)
	meta.Source = result.Source
	response.WithMeta(w, result.Entries, meta)
}

// WS handles GET /admin/ws
func (h *Handler) WS(w http.ResponseWriter, r *http.Request) {
	if h.ws == nil {
		response.ServiceUnavailable(w, "Live updates are not enabled")
		return
	}
	h.ws.Serve(w, r, middleware.GetAdminID(r.Context()))
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
