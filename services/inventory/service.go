// Package inventory is the vehicle inventory service. Every operation is
// scoped to a single dealership.
package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/repositories"
	"github.com/rtauto/dealer-admin/services"
)

// ObjectRemover deletes the stored files behind photo rows.
type ObjectRemover interface {
	RemoveObjects(ctx context.Context, photos []models.VehiclePhoto)
}

// ListParams are the inventory table controls.
type ListParams struct {
	Status    string
	SortBy    string
	Ascending bool
	Page      int
	PageSize  int
	Query     string
}

// Page is one page of inventory.
type Page struct {
	Vehicles   []*models.Vehicle `json:"vehicles"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
}

// Service manages dealership inventory.
type Service struct {
	vehicles repositories.VehicleRepository
	photos   repositories.PhotoRepository
	tx       repositories.TransactionManager
	objects  ObjectRemover
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates an inventory service
func NewService(
	vehicles repositories.VehicleRepository,
	photos repositories.PhotoRepository,
	tx repositories.TransactionManager,
	objects ObjectRemover,
	logger *zap.Logger,
) *Service {
	return &Service{
		vehicles: vehicles,
		photos:   photos,
		tx:       tx,
		objects:  objects,
		logger:   logger,
		now:      time.Now,
	}
}

func pageSize(n int) int {
	if n <= 0 {
		return repositories.DefaultPageSize
	}
	if n > repositories.MaxPageSize {
		return repositories.MaxPageSize
	}
	return n
}

// List returns one page of inventory with photos attached. Query narrows the
// fetched page in memory; totals describe the unfiltered status selection.
func (s *Service) List(ctx context.Context, dealershipID uuid.UUID, p ListParams) (*Page, error) {
	if p.Status != "" && p.Status != "all" && !models.VehicleStatus(p.Status).IsValid() {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "unknown vehicle status", nil).
			WithDetail("status", p.Status)
	}
	if p.SortBy != "" && !repositories.VehicleSortColumns[p.SortBy] {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "unsupported sort column", nil).
			WithDetail("sort", p.SortBy)
	}
	if p.Page < 0 {
		p.Page = 0
	}
	size := pageSize(p.PageSize)

	vehicles, total, err := s.vehicles.List(ctx, repositories.VehicleQuery{
		DealershipID: dealershipID,
		Status:       p.Status,
		SortBy:       p.SortBy,
		Ascending:    p.Ascending,
		Page:         p.Page,
		PageSize:     size,
	})
	if err != nil {
		return nil, services.WrapInternal("failed to list vehicles", err)
	}

	if err := s.attachPhotos(ctx, vehicles); err != nil {
		return nil, err
	}

	if p.Query != "" {
		matched := vehicles[:0]
		for _, v := range vehicles {
			if v.Matches(p.Query) {
				matched = append(matched, v)
			}
		}
		vehicles = matched
	}
	if vehicles == nil {
		vehicles = []*models.Vehicle{}
	}

	return &Page{
		Vehicles:   vehicles,
		Page:       p.Page,
		PageSize:   size,
		Total:      total,
		TotalPages: (total + size - 1) / size,
	}, nil
}

func (s *Service) attachPhotos(ctx context.Context, vehicles []*models.Vehicle) error {
	if len(vehicles) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(vehicles))
	for i, v := range vehicles {
		ids[i] = v.ID
	}
	byVehicle, err := s.photos.ListByVehicles(ctx, ids)
	if err != nil {
		return services.WrapInternal("failed to load photos", err)
	}
	for _, v := range vehicles {
		v.Photos = byVehicle[v.ID]
		if v.Photos == nil {
			v.Photos = []models.VehiclePhoto{}
		}
		v.SortPhotos()
	}
	return nil
}

// Recent returns the newest vehicles of a dealership.
func (s *Service) Recent(ctx context.Context, dealershipID uuid.UUID, limit int) ([]*models.Vehicle, error) {
	page, err := s.List(ctx, dealershipID, ListParams{SortBy: "created_at", PageSize: limit})
	if err != nil {
		return nil, err
	}
	return page.Vehicles, nil
}

// Count returns the number of vehicles in status, or all vehicles when empty.
func (s *Service) Count(ctx context.Context, dealershipID uuid.UUID, status models.VehicleStatus) (int, error) {
	n, err := s.vehicles.Count(ctx, dealershipID, status)
	if err != nil {
		return 0, services.WrapInternal("failed to count vehicles", err)
	}
	return n, nil
}

// Get returns a vehicle with its photos.
func (s *Service) Get(ctx context.Context, dealershipID, id uuid.UUID) (*models.Vehicle, error) {
	v, err := s.vehicles.GetByID(ctx, dealershipID, id)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrVehicleNotFound, "failed to get vehicle")
	}
	if err := s.attachPhotos(ctx, []*models.Vehicle{v}); err != nil {
		return nil, err
	}
	return v, nil
}

// Create adds a vehicle to the dealership's inventory.
func (s *Service) Create(ctx context.Context, dealershipID uuid.UUID, v *models.Vehicle) (*models.Vehicle, error) {
	now := s.now()
	v.ID = uuid.New()
	v.DealershipID = dealershipID
	v.CreatedAt = now
	v.UpdatedAt = now
	if v.InDate == nil {
		inDate := now
		v.InDate = &inDate
	}
	v.Normalize()
	if err := validate(v, now); err != nil {
		return nil, err
	}

	if err := s.vehicles.Create(ctx, v); err != nil {
		return nil, translateWriteError(err, v)
	}
	v.Photos = []models.VehiclePhoto{}

	s.logger.Info("vehicle created",
		zap.String("dealership_id", dealershipID.String()),
		zap.String("vehicle_id", v.ID.String()),
		zap.String("vin", v.VIN))
	return v, nil
}

// Update replaces the editable fields of an existing vehicle.
func (s *Service) Update(ctx context.Context, dealershipID, id uuid.UUID, v *models.Vehicle) (*models.Vehicle, error) {
	existing, err := s.vehicles.GetByID(ctx, dealershipID, id)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrVehicleNotFound, "failed to get vehicle")
	}

	now := s.now()
	v.ID = existing.ID
	v.DealershipID = dealershipID
	v.CreatedAt = existing.CreatedAt
	v.UpdatedAt = now
	if v.InDate == nil {
		v.InDate = existing.InDate
	}
	v.Normalize()
	if err := validate(v, now); err != nil {
		return nil, err
	}

	if err := s.vehicles.Update(ctx, v); err != nil {
		if repositories.IsNotFound(err) {
			return nil, services.FromRepository(err, services.ErrVehicleNotFound, "")
		}
		return nil, translateWriteError(err, v)
	}
	if err := s.attachPhotos(ctx, []*models.Vehicle{v}); err != nil {
		return nil, err
	}
	return v, nil
}

// Delete removes a vehicle and its photo rows in one transaction, then
// removes the stored photo files.
func (s *Service) Delete(ctx context.Context, dealershipID, id uuid.UUID) (*models.Vehicle, error) {
	var (
		vehicle *models.Vehicle
		removed []models.VehiclePhoto
	)
	err := s.tx.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		var err error
		vehicle, err = s.vehicles.GetByID(ctx, dealershipID, id)
		if err != nil {
			return services.FromRepository(err, services.ErrVehicleNotFound, "failed to get vehicle")
		}
		removed, err = s.photos.DeleteByVehicle(ctx, id)
		if err != nil {
			return services.WrapInternal("failed to delete photos", err)
		}
		if err := s.vehicles.Delete(ctx, dealershipID, id); err != nil {
			return services.FromRepository(err, services.ErrVehicleNotFound, "failed to delete vehicle")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.objects != nil && len(removed) > 0 {
		s.objects.RemoveObjects(ctx, removed)
	}

	s.logger.Info("vehicle deleted",
		zap.String("dealership_id", dealershipID.String()),
		zap.String("vehicle_id", id.String()),
		zap.Int("photos_removed", len(removed)))
	return vehicle, nil
}

func validate(v *models.Vehicle, now time.Time) error {
	maxYear := now.Year() + 1
	switch {
	case len(v.VIN) != 17:
		return services.ErrInvalidVIN
	case v.Year < 1900 || v.Year > maxYear:
		return services.NewDomainError(services.ErrorTypeValidation, "year is out of range", nil).
			WithDetail("min", 1900).WithDetail("max", maxYear)
	case v.Make == "" || v.Model == "":
		return services.NewDomainError(services.ErrorTypeValidation, "make and model are required", nil)
	case !v.Status.IsValid():
		return services.NewDomainError(services.ErrorTypeValidation, "unknown vehicle status", nil).
			WithDetail("status", v.Status)
	case v.Mileage < 0 || v.AskingPrice < 0:
		return services.NewDomainError(services.ErrorTypeValidation, "mileage and price cannot be negative", nil)
	}
	return nil
}

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

func translateWriteError(err error, v *models.Vehicle) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return services.NewDomainError(services.ErrorTypeConflict, services.ErrDuplicateVIN.Message, err).
			WithDetail("vin", v.VIN)
	}
	return services.WrapInternal("failed to save vehicle", err)
}
