package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rtauto/dealer-admin/middleware"
	"github.com/rtauto/dealer-admin/utils"
)

// callerDealership returns the caller's dealership, writing 403 when the
// profile has no affiliation.
func callerDealership(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id := middleware.GetDealershipIDFromContext(r.Context())
	if id == uuid.Nil {
		_ = utils.WriteForbidden(w, "Your profile is not linked to a dealership")
		return uuid.Nil, false
	}
	return id, true
}

// urlUUID parses a chi URL parameter, writing 400 when it is not a UUID.
func urlUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(chi.URLParam(r, param), param)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return uuid.Nil, false
	}
	return id, true
}
