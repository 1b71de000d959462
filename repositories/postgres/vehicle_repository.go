package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/repositories"
)

const vehicleColumns = `id, dealership_id, vin, stock_number, year, make, model, trim, body_type, engine,
	transmission, drivetrain, fuel_type, exterior_color, interior_color, mileage, miles_exempt,
	door_count, seating_capacity, asking_price, internet_price, cost, status, is_featured,
	description, tagline, decode_string, slug, in_date, created_at, updated_at`

// VehicleRepository implements repositories.VehicleRepository
type VehicleRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(db *DB, logger *zap.Logger) repositories.VehicleRepository {
	return &VehicleRepository{db: db, logger: logger}
}

// List returns one page of a dealership's vehicles and the exact total for the filter.
func (r *VehicleRepository) List(ctx context.Context, q repositories.VehicleQuery) ([]*models.Vehicle, int, error) {
	where := `WHERE dealership_id = $1`
	args := []interface{}{q.DealershipID}
	if q.Status != "" && q.Status != "all" {
		where += ` AND status = $2`
		args = append(args, q.Status)
	}

	executor := GetExecutor(ctx, r.db)

	var total int
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count vehicles: %w", err)
	}

	sortBy := q.SortBy
	if !repositories.VehicleSortColumns[sortBy] {
		sortBy = "created_at"
	}
	direction := "DESC"
	if q.Ascending {
		direction = "ASC"
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = repositories.DefaultPageSize
	}
	if pageSize > repositories.MaxPageSize {
		pageSize = repositories.MaxPageSize
	}
	page := q.Page
	if page < 0 {
		page = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM vehicles %s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		vehicleColumns, where, sortBy, direction, len(args)+1, len(args)+2)
	args = append(args, pageSize, page*pageSize)

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []*models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return vehicles, total, nil
}

// Count returns the number of vehicles with status, or all vehicles when status is empty.
func (r *VehicleRepository) Count(ctx context.Context, dealershipID uuid.UUID, status models.VehicleStatus) (int, error) {
	query := `SELECT COUNT(*) FROM vehicles WHERE dealership_id = $1`
	args := []interface{}{dealershipID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}

	var n int
	if err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vehicles: %w", err)
	}
	return n, nil
}

// GetByID retrieves a vehicle within a dealership
func (r *VehicleRepository) GetByID(ctx context.Context, dealershipID, id uuid.UUID) (*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1 AND dealership_id = $2`

	v, err := scanVehicle(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id, dealershipID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vehicle %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	return v, nil
}

// Create inserts a vehicle
func (r *VehicleRepository) Create(ctx context.Context, v *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (` + vehicleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
		        $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		v.ID, v.DealershipID, v.VIN, v.StockNumber, v.Year, v.Make, v.Model, v.Trim, v.BodyType, v.Engine,
		v.Transmission, v.Drivetrain, v.FuelType, v.ExteriorColor, v.InteriorColor, v.Mileage, v.MilesExempt,
		v.DoorCount, v.SeatingCapacity, v.AskingPrice, v.InternetPrice, v.Cost, v.Status, v.IsFeatured,
		v.Description, v.Tagline, v.DecodeString, v.Slug, v.InDate, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create vehicle: %w", err)
	}

	r.logger.Debug("vehicle created", zap.String("id", v.ID.String()), zap.String("vin", v.VIN))
	return nil
}

// Update overwrites a vehicle's editable fields within its dealership
func (r *VehicleRepository) Update(ctx context.Context, v *models.Vehicle) error {
	query := `
		UPDATE vehicles SET
			vin = $1, stock_number = $2, year = $3, make = $4, model = $5, trim = $6, body_type = $7,
			engine = $8, transmission = $9, drivetrain = $10, fuel_type = $11, exterior_color = $12,
			interior_color = $13, mileage = $14, miles_exempt = $15, door_count = $16,
			seating_capacity = $17, asking_price = $18, internet_price = $19, cost = $20, status = $21,
			is_featured = $22, description = $23, tagline = $24, decode_string = $25, slug = $26,
			in_date = $27, updated_at = $28
		WHERE id = $29 AND dealership_id = $30
	`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		v.VIN, v.StockNumber, v.Year, v.Make, v.Model, v.Trim, v.BodyType,
		v.Engine, v.Transmission, v.Drivetrain, v.FuelType, v.ExteriorColor,
		v.InteriorColor, v.Mileage, v.MilesExempt, v.DoorCount,
		v.SeatingCapacity, v.AskingPrice, v.InternetPrice, v.Cost, v.Status,
		v.IsFeatured, v.Description, v.Tagline, v.DecodeString, v.Slug,
		v.InDate, v.UpdatedAt,
		v.ID, v.DealershipID,
	)
	if err != nil {
		return fmt.Errorf("failed to update vehicle: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("vehicle %s: %w", v.ID, repositories.ErrNotFound)
	}
	return nil
}

// Delete removes a vehicle within its dealership
func (r *VehicleRepository) Delete(ctx context.Context, dealershipID, id uuid.UUID) error {
	result, err := GetExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM vehicles WHERE id = $1 AND dealership_id = $2`, id, dealershipID)
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("vehicle %s: %w", id, repositories.ErrNotFound)
	}

	r.logger.Debug("vehicle deleted", zap.String("id", id.String()))
	return nil
}

func scanVehicle(row rowScanner) (*models.Vehicle, error) {
	v := &models.Vehicle{}
	err := row.Scan(
		&v.ID, &v.DealershipID, &v.VIN, &v.StockNumber, &v.Year, &v.Make, &v.Model, &v.Trim, &v.BodyType, &v.Engine,
		&v.Transmission, &v.Drivetrain, &v.FuelType, &v.ExteriorColor, &v.InteriorColor, &v.Mileage, &v.MilesExempt,
		&v.DoorCount, &v.SeatingCapacity, &v.AskingPrice, &v.InternetPrice, &v.Cost, &v.Status, &v.IsFeatured,
		&v.Description, &v.Tagline, &v.DecodeString, &v.Slug, &v.InDate, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return v, nil
}
