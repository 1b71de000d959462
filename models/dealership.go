package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rtauto/dealer-admin/internal/auth"
)

// Dealership is the tenant every vehicle and staff member belongs to.
type Dealership struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	Phone     string    `json:"phone" db:"phone"`
	Email     string    `json:"email" db:"email"`
	Address   string    `json:"address" db:"address"`
	City      string    `json:"city" db:"city"`
	State     string    `json:"state" db:"state"`
	Zip       string    `json:"zip" db:"zip"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Dealership model
func (Dealership) TableName() string {
	return "dealerships"
}

// NewDealership creates a new Dealership instance
func NewDealership(name, slug string) *Dealership {
	now := time.Now()
	return &Dealership{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Summary returns the affiliation view used by the session.
func (d *Dealership) Summary() *auth.Dealership {
	return &auth.Dealership{ID: d.ID.String(), Name: d.Name, Slug: d.Slug}
}
