package handlers

import (
	"net/http"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/internal/navigation"
	"github.com/rtauto/dealer-admin/middleware"
	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/utils"
)

// MeResponse is the signed-in user's view of themselves.
type MeResponse struct {
	Profile    *models.Profile   `json:"profile"`
	Dealership *auth.Dealership  `json:"dealership"`
	Role       auth.Role         `json:"role"`
	RoleLabel  string            `json:"role_label"`
	Initials   string            `json:"initials"`
	Menu       []navigation.Item `json:"menu"`
}

// MeHandler serves GET /me
type MeHandler struct {
	menu *navigation.Menu
}

// NewMeHandler creates a new MeHandler
func NewMeHandler(menu *navigation.Menu) *MeHandler {
	return &MeHandler{menu: menu}
}

// HandleMe handles GET /me
func (h *MeHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap := middleware.SnapshotFromContext(ctx)
	profile := middleware.ProfileFromContext(ctx)
	if profile == nil || snap.State() != auth.StateAuthenticated {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	resp := MeResponse{
		Profile:   profile,
		Role:      profile.Role,
		RoleLabel: profile.Role.Label(),
		Initials:  profile.Initials(),
		Menu:      h.menu.For(auth.NewAccessGate(snap)),
	}
	if d, ok := snap.Dealership(); ok {
		resp.Dealership = &d
	}
	_ = utils.WriteOK(w, resp)
}
