package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/repositories"
)

const photoColumns = `id, vehicle_id, url, storage_key, is_primary, sort_order, created_at`

// PhotoRepository implements repositories.PhotoRepository
type PhotoRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(db *DB, logger *zap.Logger) repositories.PhotoRepository {
	return &PhotoRepository{db: db, logger: logger}
}

// ListByVehicle returns a vehicle's photos by sort order
func (r *PhotoRepository) ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]models.VehiclePhoto, error) {
	query := `SELECT ` + photoColumns + ` FROM vehicle_photos WHERE vehicle_id = $1 ORDER BY sort_order, created_at`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []models.VehiclePhoto
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// ListByVehicles batches photo lookup for a page of vehicles
func (r *PhotoRepository) ListByVehicles(ctx context.Context, vehicleIDs []uuid.UUID) (map[uuid.UUID][]models.VehiclePhoto, error) {
	out := make(map[uuid.UUID][]models.VehiclePhoto, len(vehicleIDs))
	if len(vehicleIDs) == 0 {
		return out, nil
	}

	ids := make([]string, len(vehicleIDs))
	for i, id := range vehicleIDs {
		ids[i] = id.String()
	}

	query := `SELECT ` + photoColumns + ` FROM vehicle_photos WHERE vehicle_id = ANY($1::uuid[]) ORDER BY vehicle_id, sort_order`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		out[p.VehicleID] = append(out[p.VehicleID], p)
	}
	return out, rows.Err()
}

// Create inserts a photo row
func (r *PhotoRepository) Create(ctx context.Context, p *models.VehiclePhoto) error {
	query := `INSERT INTO vehicle_photos (` + photoColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		p.ID, p.VehicleID, p.URL, p.StorageKey, p.IsPrimary, p.SortOrder, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}
	return nil
}

// Delete removes one photo and returns it so the object can be removed too
func (r *PhotoRepository) Delete(ctx context.Context, vehicleID, id uuid.UUID) (*models.VehiclePhoto, error) {
	query := `DELETE FROM vehicle_photos WHERE id = $1 AND vehicle_id = $2 RETURNING ` + photoColumns

	p, err := scanPhoto(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id, vehicleID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("photo %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to delete photo: %w", err)
	}
	return &p, nil
}

// DeleteByVehicle removes every photo of a vehicle and returns them
func (r *PhotoRepository) DeleteByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]models.VehiclePhoto, error) {
	query := `DELETE FROM vehicle_photos WHERE vehicle_id = $1 RETURNING ` + photoColumns

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete photos: %w", err)
	}
	defer rows.Close()

	var photos []models.VehiclePhoto
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// SetPrimary marks one photo primary and clears the flag on the others.
// Callers should run it inside a transaction.
func (r *PhotoRepository) SetPrimary(ctx context.Context, vehicleID, id uuid.UUID) error {
	executor := GetExecutor(ctx, r.db)

	if _, err := executor.ExecContext(ctx,
		`UPDATE vehicle_photos SET is_primary = false WHERE vehicle_id = $1 AND id <> $2`, vehicleID, id); err != nil {
		return fmt.Errorf("failed to clear primary photo: %w", err)
	}

	result, err := executor.ExecContext(ctx,
		`UPDATE vehicle_photos SET is_primary = true WHERE vehicle_id = $1 AND id = $2`, vehicleID, id)
	if err != nil {
		return fmt.Errorf("failed to set primary photo: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("photo %s: %w", id, repositories.ErrNotFound)
	}
	return nil
}

func scanPhoto(row rowScanner) (models.VehiclePhoto, error) {
	var p models.VehiclePhoto
	err := row.Scan(&p.ID, &p.VehicleID, &p.URL, &p.StorageKey, &p.IsPrimary, &p.SortOrder, &p.CreatedAt)
	return p, err
}
