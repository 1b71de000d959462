package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/models"
)

// ErrNotFound is wrapped by every repository lookup that matches no row.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes fn with the transaction stored in ctx.
	// Repositories called with that ctx join the transaction.
	// Commits if fn succeeds, rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// ProfileRepository handles staff profile data
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	ListByDealership(ctx context.Context, dealershipID uuid.UUID) ([]*models.Profile, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role auth.Role) error
}

// DealershipRepository handles dealership data
type DealershipRepository interface {
	Create(ctx context.Context, dealership *models.Dealership) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dealership, error)
	List(ctx context.Context, limit, offset int) ([]*models.Dealership, error)
	Update(ctx context.Context, dealership *models.Dealership) error
}

// Inventory page size bounds.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// VehicleQuery selects one page of a dealership's inventory.
type VehicleQuery struct {
	DealershipID uuid.UUID
	Status       string // "all" or "" for every status
	SortBy       string // must be one of VehicleSortColumns
	Ascending    bool
	Page         int // zero based
	PageSize     int
}

// VehicleSortColumns whitelists sortable columns.
var VehicleSortColumns = map[string]bool{
	"created_at":   true,
	"year":         true,
	"make":         true,
	"model":        true,
	"asking_price": true,
	"mileage":      true,
	"stock_number": true,
	"in_date":      true,
	"status":       true,
}

// VehicleRepository handles inventory data. Every call is scoped to a dealership.
type VehicleRepository interface {
	List(ctx context.Context, q VehicleQuery) ([]*models.Vehicle, int, error)
	Count(ctx context.Context, dealershipID uuid.UUID, status models.VehicleStatus) (int, error)
	GetByID(ctx context.Context, dealershipID, id uuid.UUID) (*models.Vehicle, error)
	Create(ctx context.Context, vehicle *models.Vehicle) error
	Update(ctx context.Context, vehicle *models.Vehicle) error
	Delete(ctx context.Context, dealershipID, id uuid.UUID) error
}

// PhotoRepository handles vehicle photo rows
type PhotoRepository interface {
	ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]models.VehiclePhoto, error)
	ListByVehicles(ctx context.Context, vehicleIDs []uuid.UUID) (map[uuid.UUID][]models.VehiclePhoto, error)
	Create(ctx context.Context, photo *models.VehiclePhoto) error
	Delete(ctx context.Context, vehicleID, id uuid.UUID) (*models.VehiclePhoto, error)
	DeleteByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]models.VehiclePhoto, error)
	SetPrimary(ctx context.Context, vehicleID, id uuid.UUID) error
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	Insert(ctx context.Context, log *models.AuditLog) error
	ListByDealership(ctx context.Context, dealershipID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Profiles    ProfileRepository
	Dealerships DealershipRepository
	Vehicles    VehicleRepository
	Photos      PhotoRepository
	AuditLogs   AuditRepository
}
