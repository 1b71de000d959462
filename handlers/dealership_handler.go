package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/middleware"
	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/services"
	"github.com/rtauto/dealer-admin/services/audit"
	"github.com/rtauto/dealer-admin/utils"
)

// DealershipStore reads and writes dealership rows.
type DealershipStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dealership, error)
	Update(ctx context.Context, dealership *models.Dealership) error
}

// DealershipAuditor records dealership edits.
type DealershipAuditor interface {
	LogDealershipUpdated(actor audit.Actor, dealershipID uuid.UUID, changes map[string]interface{}) error
}

// UpdateDealershipRequest is the body of PUT /dealerships/{dealershipID}
type UpdateDealershipRequest struct {
	Name    string `json:"name" validate:"required,max=128"`
	Phone   string `json:"phone" validate:"max=32"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"max=256"`
	City    string `json:"city" validate:"max=64"`
	State   string `json:"state" validate:"omitempty,len=2"`
	Zip     string `json:"zip" validate:"max=10"`
}

// DealershipHandler handles dealership HTTP requests
type DealershipHandler struct {
	dealerships DealershipStore
	audit       DealershipAuditor
	logger      *zap.Logger
	now         func() time.Time
}

// NewDealershipHandler creates a new DealershipHandler
func NewDealershipHandler(dealerships DealershipStore, audit DealershipAuditor, logger *zap.Logger) *DealershipHandler {
	return &DealershipHandler{
		dealerships: dealerships,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
	}
}

// HandleGet handles GET /dealerships/{dealershipID}
func (h *DealershipHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, middleware.DealershipParam)
	if !ok {
		return
	}

	dealership, err := h.dealerships.GetByID(r.Context(), id)
	if err != nil {
		HandleServiceError(w, services.FromRepository(err, services.ErrDealershipNotFound, "failed to get dealership"), h.logger)
		return
	}
	_ = utils.WriteOK(w, dealership)
}

// HandleUpdate handles PUT /dealerships/{dealershipID}
func (h *DealershipHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := urlUUID(w, r, middleware.DealershipParam)
	if !ok {
		return
	}

	var req UpdateDealershipRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	dealership, err := h.dealerships.GetByID(ctx, id)
	if err != nil {
		HandleServiceError(w, services.FromRepository(err, services.ErrDealershipNotFound, "failed to get dealership"), h.logger)
		return
	}

	changes := make(map[string]interface{})
	set := func(field string, dst *string, v string) {
		v = strings.TrimSpace(v)
		if *dst != v {
			changes[field] = v
			*dst = v
		}
	}
	set("name", &dealership.Name, req.Name)
	set("phone", &dealership.Phone, req.Phone)
	set("email", &dealership.Email, req.Email)
	set("address", &dealership.Address, req.Address)
	set("city", &dealership.City, req.City)
	set("state", &dealership.State, strings.ToUpper(req.State))
	set("zip", &dealership.Zip, req.Zip)

	if len(changes) == 0 {
		_ = utils.WriteOK(w, dealership)
		return
	}

	dealership.UpdatedAt = h.now()
	if err := h.dealerships.Update(ctx, dealership); err != nil {
		HandleServiceError(w, services.FromRepository(err, services.ErrDealershipNotFound, "failed to update dealership"), h.logger)
		return
	}

	_ = h.audit.LogDealershipUpdated(middleware.ActorFromRequest(r), dealership.ID, changes)
	_ = utils.WriteOK(w, dealership)
}
