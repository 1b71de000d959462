// Package mocks provides testify mocks of the repository interfaces.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/repositories"
)

// ProfileRepository mocks repositories.ProfileRepository.
type ProfileRepository struct{ mock.Mock }

func (m *ProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	return m.Called(ctx, p).Error(0)
}

func (m *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *ProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	args := m.Called(ctx, email)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *ProfileRepository) ListByDealership(ctx context.Context, dealershipID uuid.UUID) ([]*models.Profile, error) {
	args := m.Called(ctx, dealershipID)
	p, _ := args.Get(0).([]*models.Profile)
	return p, args.Error(1)
}

func (m *ProfileRepository) UpdateRole(ctx context.Context, id uuid.UUID, role auth.Role) error {
	return m.Called(ctx, id, role).Error(0)
}

// DealershipRepository mocks repositories.DealershipRepository.
type DealershipRepository struct{ mock.Mock }

func (m *DealershipRepository) Create(ctx context.Context, d *models.Dealership) error {
	return m.Called(ctx, d).Error(0)
}

func (m *DealershipRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dealership, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*models.Dealership)
	return d, args.Error(1)
}

func (m *DealershipRepository) List(ctx context.Context, limit, offset int) ([]*models.Dealership, error) {
	args := m.Called(ctx, limit, offset)
	d, _ := args.Get(0).([]*models.Dealership)
	return d, args.Error(1)
}

func (m *DealershipRepository) Update(ctx context.Context, d *models.Dealership) error {
	return m.Called(ctx, d).Error(0)
}

// VehicleRepository mocks repositories.VehicleRepository.
type VehicleRepository struct{ mock.Mock }

func (m *VehicleRepository) List(ctx context.Context, q repositories.VehicleQuery) ([]*models.Vehicle, int, error) {
	args := m.Called(ctx, q)
	v, _ := args.Get(0).([]*models.Vehicle)
	return v, args.Int(1), args.Error(2)
}

func (m *VehicleRepository) Count(ctx context.Context, dealershipID uuid.UUID, status models.VehicleStatus) (int, error) {
	args := m.Called(ctx, dealershipID, status)
	return args.Int(0), args.Error(1)
}

func (m *VehicleRepository) GetByID(ctx context.Context, dealershipID, id uuid.UUID) (*models.Vehicle, error) {
	args := m.Called(ctx, dealershipID, id)
	v, _ := args.Get(0).(*models.Vehicle)
	return v, args.Error(1)
}

func (m *VehicleRepository) Create(ctx context.Context, v *models.Vehicle) error {
	return m.Called(ctx, v).Error(0)
}

func (m *VehicleRepository) Update(ctx context.Context, v *models.Vehicle) error {
	return m.Called(ctx, v).Error(0)
}

func (m *VehicleRepository) Delete(ctx context.Context, dealershipID, id uuid.UUID) error {
	return m.Called(ctx, dealershipID, id).Error(0)
}

// PhotoRepository mocks repositories.PhotoRepository.
type PhotoRepository struct{ mock.Mock }

func (m *PhotoRepository) ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]models.VehiclePhoto, error) {
	args := m.Called(ctx, vehicleID)
	p, _ := args.Get(0).([]models.VehiclePhoto)
	return p, args.Error(1)
}

func (m *PhotoRepository) ListByVehicles(ctx context.Context, vehicleIDs []uuid.UUID) (map[uuid.UUID][]models.VehiclePhoto, error) {
	args := m.Called(ctx, vehicleIDs)
	p, _ := args.Get(0).(map[uuid.UUID][]models.VehiclePhoto)
	return p, args.Error(1)
}

func (m *PhotoRepository) Create(ctx context.Context, p *models.VehiclePhoto) error {
	return m.Called(ctx, p).Error(0)
}

func (m *PhotoRepository) Delete(ctx context.Context, vehicleID, id uuid.UUID) (*models.VehiclePhoto, error) {
	args := m.Called(ctx, vehicleID, id)
	p, _ := args.Get(0).(*models.VehiclePhoto)
	return p, args.Error(1)
}

func (m *PhotoRepository) DeleteByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]models.VehiclePhoto, error) {
	args := m.Called(ctx, vehicleID)
	p, _ := args.Get(0).([]models.VehiclePhoto)
	return p, args.Error(1)
}

func (m *PhotoRepository) SetPrimary(ctx context.Context, vehicleID, id uuid.UUID) error {
	return m.Called(ctx, vehicleID, id).Error(0)
}

// AuditRepository mocks repositories.AuditRepository.
type AuditRepository struct{ mock.Mock }

func (m *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *AuditRepository) ListByDealership(ctx context.Context, dealershipID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, dealershipID, limit, offset)
	l, _ := args.Get(0).([]*models.AuditLog)
	return l, args.Error(1)
}

// TransactionManager runs fn inline. Commits counts successful calls and
// Rollbacks counts failed ones.
type TransactionManager struct {
	Commits   int
	Rollbacks int
}

func (m *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return &transaction{ctx: ctx}, nil
}

func (m *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	if err := fn(ctx, &transaction{ctx: ctx}); err != nil {
		m.Rollbacks++
		return err
	}
	m.Commits++
	return nil
}

type transaction struct {
	ctx context.Context
}

func (t *transaction) Commit() error            { return nil }
func (t *transaction) Rollback() error          { return nil }
func (t *transaction) Context() context.Context { return t.ctx }
