// Package dashboard builds the landing page summary for a dealership.
package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rtauto/dealer-admin/models"
)

// RecentLimit is how many of the newest vehicles the summary carries.
const RecentLimit = 5

const summaryTimeout = 5 * time.Second

// Inventory is the slice of the inventory service the dashboard reads.
type Inventory interface {
	Count(ctx context.Context, dealershipID uuid.UUID, status models.VehicleStatus) (int, error)
	Recent(ctx context.Context, dealershipID uuid.UUID, limit int) ([]*models.Vehicle, error)
}

// RecentVehicle is one row of the recently added list.
type RecentVehicle struct {
	ID              uuid.UUID            `json:"id"`
	Title           string               `json:"title"`
	StockNumber     string               `json:"stock_number"`
	Status          models.VehicleStatus `json:"status"`
	StatusLabel     string               `json:"status_label"`
	AskingPrice     float64              `json:"asking_price"`
	PrimaryPhotoURL string               `json:"primary_photo_url,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// Summary holds the dashboard stat cards and recent inventory.
type Summary struct {
	TotalVehicles  int             `json:"total_vehicles"`
	ActiveVehicles int             `json:"active_vehicles"`
	SoldVehicles   int             `json:"sold_vehicles"`
	Recent         []RecentVehicle `json:"recent"`
}

// Service computes dashboard summaries.
type Service struct {
	inventory Inventory
	logger    *zap.Logger
}

// NewService creates a dashboard service
func NewService(inventory Inventory, logger *zap.Logger) *Service {
	return &Service{inventory: inventory, logger: logger}
}

// Summary runs the three counts and the recent list concurrently. The first
// failure cancels the rest and is returned as is.
func (s *Service) Summary(ctx context.Context, dealershipID uuid.UUID) (*Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()

	var (
		summary Summary
		recent  []*models.Vehicle
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.inventory.Count(ctx, dealershipID, "")
		if err != nil {
			return err
		}
		summary.TotalVehicles = n
		return nil
	})

	g.Go(func() error {
		n, err := s.inventory.Count(ctx, dealershipID, models.VehicleStatusActive)
		if err != nil {
			return err
		}
		summary.ActiveVehicles = n
		return nil
	})

	g.Go(func() error {
		n, err := s.inventory.Count(ctx, dealershipID, models.VehicleStatusSold)
		if err != nil {
			return err
		}
		summary.SoldVehicles = n
		return nil
	})

	g.Go(func() error {
		vehicles, err := s.inventory.Recent(ctx, dealershipID, RecentLimit)
		if err != nil {
			return err
		}
		recent = vehicles
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Warn("dashboard summary failed",
			zap.String("dealership_id", dealershipID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	summary.Recent = make([]RecentVehicle, 0, len(recent))
	for _, v := range recent {
		summary.Recent = append(summary.Recent, RecentVehicle{
			ID:              v.ID,
			Title:           v.Title(),
			StockNumber:     v.StockNumber,
			Status:          v.Status,
			StatusLabel:     v.Status.Label(),
			AskingPrice:     v.AskingPrice,
			PrimaryPhotoURL: v.PrimaryPhotoURL(),
			CreatedAt:       v.CreatedAt,
		})
	}
	return &summary, nil
}
