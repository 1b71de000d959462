package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rtauto/dealer-admin/internal/auth"
)

// Profile is a staff member of a dealership. Its role is the only source of
// authorization; tokens never carry it.
type Profile struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	DealershipID *uuid.UUID `json:"dealership_id,omitempty" db:"dealership_id"`
	Role         auth.Role  `json:"role" db:"role"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Profile model
func (Profile) TableName() string {
	return "user_profiles"
}

// NewProfile creates a new Profile instance
func NewProfile(email, passwordHash string, dealershipID uuid.UUID, role auth.Role) *Profile {
	now := time.Now()
	return &Profile{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		DealershipID: &dealershipID,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Identity converts the stored profile into the authorization identity.
func (p *Profile) Identity() auth.Identity {
	id := auth.Identity{
		ID:        p.ID.String(),
		Email:     p.Email,
		Role:      p.Role,
		FirstName: p.FirstName,
		LastName:  p.LastName,
	}
	if p.DealershipID != nil {
		id.DealershipID = p.DealershipID.String()
	}
	return id
}

// Initials returns two upper-case letters for the avatar, or "??".
func (p *Profile) Initials() string {
	return p.Identity().Initials()
}
