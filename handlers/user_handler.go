package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/middleware"
	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/services"
	"github.com/rtauto/dealer-admin/services/audit"
	"github.com/rtauto/dealer-admin/utils"
)

// ProfileStore reads staff profiles and changes their roles.
type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	ListByDealership(ctx context.Context, dealershipID uuid.UUID) ([]*models.Profile, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role auth.Role) error
}

// RoleAuditor records role changes.
type RoleAuditor interface {
	LogRoleChange(actor audit.Actor, profileID uuid.UUID, from, to auth.Role) error
}

// UpdateRoleRequest is the body of PUT /users/{id}/role
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

// UserHandler handles staff management HTTP requests
type UserHandler struct {
	profiles ProfileStore
	audit    RoleAuditor
	logger   *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(profiles ProfileStore, audit RoleAuditor, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		profiles: profiles,
		audit:    audit,
		logger:   logger,
	}
}

// HandleList handles GET /users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	dealershipID, ok := callerDealership(w, r)
	if !ok {
		return
	}

	profiles, err := h.profiles.ListByDealership(r.Context(), dealershipID)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to list users", err), h.logger)
		return
	}
	if profiles == nil {
		profiles = []*models.Profile{}
	}
	_ = utils.WriteOK(w, profiles)
}

// HandleUpdateRole handles PUT /users/{id}/role. Callers may not change
// their own role, touch someone ranked above them, or grant a role above
// their own.
func (h *UserHandler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.ProfileFromContext(ctx)
	if caller == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	role, _ := auth.ParseRole(req.Role)

	if id == caller.ID {
		HandleServiceError(w, services.NewDomainError(services.ErrorTypeForbidden, "you cannot change your own role", nil), h.logger)
		return
	}

	target, err := h.profiles.GetByID(ctx, id)
	if err != nil {
		HandleServiceError(w, services.FromRepository(err, services.ErrProfileNotFound, "failed to get user"), h.logger)
		return
	}

	if caller.Role != auth.RoleOwner && !sameDealership(caller, target) {
		HandleServiceError(w, services.ErrDealershipScope, h.logger)
		return
	}
	if !auth.MeetsMinimum(caller.Role, target.Role) {
		HandleServiceError(w, services.ErrForbidden, h.logger)
		return
	}
	if !auth.MeetsMinimum(caller.Role, role) {
		HandleServiceError(w, services.NewDomainError(services.ErrorTypeForbidden, services.ErrRoleAboveOwnLevel.Message, nil).
			WithDetail("role", role), h.logger)
		return
	}

	previous := target.Role
	if previous != role {
		if err := h.profiles.UpdateRole(ctx, id, role); err != nil {
			HandleServiceError(w, services.FromRepository(err, services.ErrProfileNotFound, "failed to update role"), h.logger)
			return
		}
		target.Role = role
		_ = h.audit.LogRoleChange(middleware.ActorFromRequest(r), id, previous, role)
	}

	_ = utils.WriteOK(w, target)
}

func sameDealership(a, b *models.Profile) bool {
	return a.DealershipID != nil && b.DealershipID != nil && *a.DealershipID == *b.DealershipID
}
