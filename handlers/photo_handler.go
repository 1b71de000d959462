package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/middleware"
	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/services/audit"
	"github.com/rtauto/dealer-admin/services/photos"
	"github.com/rtauto/dealer-admin/utils"
)

// PhotoFormField is the multipart field carrying the image.
const PhotoFormField = "photo"

// multipartOverhead leaves room for headers and boundaries around the file.
const multipartOverhead = 1 << 20

// PhotoService stores and orders vehicle photos.
type PhotoService interface {
	List(ctx context.Context, dealershipID, vehicleID uuid.UUID) ([]models.VehiclePhoto, error)
	Upload(ctx context.Context, dealershipID, vehicleID uuid.UUID, u photos.Upload) (*models.VehiclePhoto, error)
	Delete(ctx context.Context, dealershipID, vehicleID, photoID uuid.UUID) (*models.VehiclePhoto, error)
	SetPrimary(ctx context.Context, dealershipID, vehicleID, photoID uuid.UUID) error
}

// PhotoAuditor records photo changes.
type PhotoAuditor interface {
	LogPhotoChange(actor audit.Actor, action models.AuditAction, photo *models.VehiclePhoto) error
}

// PhotoHandler handles vehicle photo HTTP requests
type PhotoHandler struct {
	photos   PhotoService
	audit    PhotoAuditor
	maxBytes int64
	logger   *zap.Logger
}

// NewPhotoHandler creates a new PhotoHandler. maxBytes bounds a single upload.
func NewPhotoHandler(photos PhotoService, audit PhotoAuditor, maxBytes int64, logger *zap.Logger) *PhotoHandler {
	return &PhotoHandler{
		photos:   photos,
		audit:    audit,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// HandleList handles GET /vehicles/{id}/photos
func (h *PhotoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	dealershipID, ok := callerDealership(w, r)
	if !ok {
		return
	}
	vehicleID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	list, err := h.photos.List(r.Context(), dealershipID, vehicleID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, list)
}

// HandleUpload handles POST /vehicles/{id}/photos as multipart/form-data
func (h *PhotoHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	dealershipID, ok := callerDealership(w, r)
	if !ok {
		return
	}
	vehicleID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = utils.WriteJSON(w, http.StatusRequestEntityTooLarge, utils.ErrorResponse{
				Error:   "payload_too_large",
				Message: "Photo is too large",
			})
			return
		}
		_ = utils.WriteBadRequest(w, "Expected a multipart form", nil)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(PhotoFormField)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Missing photo file", map[string]interface{}{"field": PhotoFormField})
		return
	}
	defer file.Close()

	photo, err := h.photos.Upload(r.Context(), dealershipID, vehicleID, photos.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = h.audit.LogPhotoChange(middleware.ActorFromRequest(r), models.AuditActionPhotoUploaded, photo)
	_ = utils.WriteCreated(w, photo)
}

// HandleDelete handles DELETE /vehicles/{id}/photos/{photoID}
func (h *PhotoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	dealershipID, vehicleID, photoID, ok := h.photoParams(w, r)
	if !ok {
		return
	}

	photo, err := h.photos.Delete(r.Context(), dealershipID, vehicleID, photoID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = h.audit.LogPhotoChange(middleware.ActorFromRequest(r), models.AuditActionPhotoDeleted, photo)
	utils.WriteNoContent(w)
}

// HandleSetPrimary handles PUT /vehicles/{id}/photos/{photoID}/primary
func (h *PhotoHandler) HandleSetPrimary(w http.ResponseWriter, r *http.Request) {
	dealershipID, vehicleID, photoID, ok := h.photoParams(w, r)
	if !ok {
		return
	}

	if err := h.photos.SetPrimary(r.Context(), dealershipID, vehicleID, photoID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

func (h *PhotoHandler) photoParams(w http.ResponseWriter, r *http.Request) (dealershipID, vehicleID, photoID uuid.UUID, ok bool) {
	if dealershipID, ok = callerDealership(w, r); !ok {
		return
	}
	if vehicleID, ok = urlUUID(w, r, "id"); !ok {
		return
	}
	photoID, ok = urlUUID(w, r, "photoID")
	return
}
