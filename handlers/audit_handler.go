package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/services"
	"github.com/rtauto/dealer-admin/services/audit"
	"github.com/rtauto/dealer-admin/utils"
)

// AuditLister reads a dealership's audit trail.
type AuditLister interface {
	List(ctx context.Context, dealershipID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
}

// AuditHandler serves GET /audit
type AuditHandler struct {
	audit  AuditLister
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit AuditLister, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger}
}

// HandleList handles GET /audit?limit=&offset=
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	dealershipID, ok := callerDealership(w, r)
	if !ok {
		return
	}

	limit := utils.QueryInt(r, "limit", audit.DefaultListLimit)
	offset := utils.QueryInt(r, "offset", 0)

	logs, err := h.audit.List(r.Context(), dealershipID, limit, offset)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to list audit logs", err), h.logger)
		return
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}
	_ = utils.WriteOK(w, logs)
}
