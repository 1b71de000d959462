package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/internal/navigation"
)

// Me is the body of GET /me.
type Me struct {
	Profile struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		DealershipID string    `json:"dealership_id"`
		Role         auth.Role `json:"role"`
		FirstName    string    `json:"first_name"`
		LastName     string    `json:"last_name"`
	} `json:"profile"`
	Dealership *auth.Dealership  `json:"dealership"`
	Role       auth.Role         `json:"role"`
	RoleLabel  string            `json:"role_label"`
	Initials   string            `json:"initials"`
	Menu       []navigation.Item `json:"menu"`
}

// Identity converts the profile part of the response.
func (m *Me) Identity() auth.Identity {
	return auth.Identity{
		ID:           m.Profile.ID,
		Email:        m.Profile.Email,
		Role:         m.Profile.Role,
		DealershipID: m.Profile.DealershipID,
		FirstName:    m.Profile.FirstName,
		LastName:     m.Profile.LastName,
	}
}

// Me fetches the signed-in user's profile, dealership and menu.
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.do(ctx, http.MethodGet, "/me", c.token(), nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// Profiles adapts the client to auth.ProfileStore.
func (c *Client) Profiles() auth.ProfileStore {
	return profileStore{c}
}

// Dealerships adapts the client to auth.DealershipStore.
func (c *Client) Dealerships() auth.DealershipStore {
	return dealershipStore{c}
}

type profileStore struct{ c *Client }

// GetProfile reads /me. The API only serves the caller's own profile, so a
// mismatched user id is an error.
func (s profileStore) GetProfile(ctx context.Context, userID string) (*auth.Identity, error) {
	me, err := s.c.Me(ctx)
	if err != nil {
		if StatusCode(err) == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, err
	}
	if me.Profile.ID != userID {
		return nil, fmt.Errorf("profile %s returned for user %s", me.Profile.ID, userID)
	}
	id := me.Identity()
	return &id, nil
}

type dealershipStore struct{ c *Client }

func (s dealershipStore) GetDealership(ctx context.Context, dealershipID string) (*auth.Dealership, error) {
	var d auth.Dealership
	err := s.c.do(ctx, http.MethodGet, "/dealerships/"+url.PathEscape(dealershipID), s.c.token(), nil, &d)
	if err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}
