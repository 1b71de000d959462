package auth

import (
	"strings"
	"time"
)

// Session is what the authentication service reports for a signed-in user.
type Session struct {
	ID          string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Identity is the signed-in actor as last fetched from the profile store.
type Identity struct {
	ID           string `json:"id"`
	Email        string `json:"email,omitempty"`
	Role         Role   `json:"role"`
	DealershipID string `json:"dealership_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
}

// Initials returns the upper-cased first letters of the first and last name, or "??".
func (i Identity) Initials() string {
	var b strings.Builder
	for _, part := range []string{i.FirstName, i.LastName} {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		for _, r := range part {
			b.WriteRune(r)
			break
		}
	}
	if b.Len() == 0 {
		return "??"
	}
	return strings.ToUpper(b.String())
}

// Dealership is the affiliation record referenced by an identity.
type Dealership struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}
