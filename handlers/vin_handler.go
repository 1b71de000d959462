package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/services/vin"
	"github.com/rtauto/dealer-admin/utils"
)

// VINDecoder looks up vehicle details by VIN.
type VINDecoder interface {
	Decode(ctx context.Context, vin string) (*vin.Result, error)
}

// VINHandler serves GET /vin/{vin}
type VINHandler struct {
	decoder VINDecoder
	logger  *zap.Logger
}

// NewVINHandler creates a new VINHandler
func NewVINHandler(decoder VINDecoder, logger *zap.Logger) *VINHandler {
	return &VINHandler{decoder: decoder, logger: logger}
}

// HandleDecode handles GET /vin/{vin}
func (h *VINHandler) HandleDecode(w http.ResponseWriter, r *http.Request) {
	result, err := h.decoder.Decode(r.Context(), chi.URLParam(r, "vin"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, result)
}
