package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/services/dashboard"
	"github.com/rtauto/dealer-admin/utils"
)

// DashboardService builds the landing page summary.
type DashboardService interface {
	Summary(ctx context.Context, dealershipID uuid.UUID) (*dashboard.Summary, error)
}

// DashboardHandler serves GET /dashboard
type DashboardHandler struct {
	service DashboardService
	logger  *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(service DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{service: service, logger: logger}
}

// HandleSummary handles GET /dashboard
func (h *DashboardHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	dealershipID, ok := callerDealership(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Summary(r.Context(), dealershipID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, summary)
}
