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

const dealershipColumns = `id, name, slug, phone, email, address, city, state, zip, created_at, updated_at`

// DealershipRepository implements repositories.DealershipRepository
type DealershipRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDealershipRepository creates a new dealership repository
func NewDealershipRepository(db *DB, logger *zap.Logger) repositories.DealershipRepository {
	return &DealershipRepository{db: db, logger: logger}
}

// Create creates a new dealership
func (r *DealershipRepository) Create(ctx context.Context, d *models.Dealership) error {
	query := `
		INSERT INTO dealerships (` + dealershipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		d.ID, d.Name, d.Slug, d.Phone, d.Email, d.Address, d.City, d.State, d.Zip, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dealership: %w", err)
	}

	r.logger.Debug("dealership created", zap.String("id", d.ID.String()), zap.String("slug", d.Slug))
	return nil
}

// GetByID retrieves a dealership by ID
func (r *DealershipRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dealership, error) {
	query := `SELECT ` + dealershipColumns + ` FROM dealerships WHERE id = $1`

	d, err := scanDealership(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("dealership %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get dealership: %w", err)
	}
	return d, nil
}

// List retrieves dealerships ordered by name
func (r *DealershipRepository) List(ctx context.Context, limit, offset int) ([]*models.Dealership, error) {
	query := `SELECT ` + dealershipColumns + ` FROM dealerships ORDER BY name LIMIT $1 OFFSET $2`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list dealerships: %w", err)
	}
	defer rows.Close()

	var out []*models.Dealership
	for rows.Next() {
		d, err := scanDealership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dealership: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Update updates a dealership's contact details
func (r *DealershipRepository) Update(ctx context.Context, d *models.Dealership) error {
	query := `
		UPDATE dealerships
		SET name = $1, phone = $2, email = $3, address = $4, city = $5, state = $6, zip = $7, updated_at = $8
		WHERE id = $9
	`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		d.Name, d.Phone, d.Email, d.Address, d.City, d.State, d.Zip, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update dealership: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("dealership %s: %w", d.ID, repositories.ErrNotFound)
	}
	return nil
}

func scanDealership(row rowScanner) (*models.Dealership, error) {
	d := &models.Dealership{}
	err := row.Scan(&d.ID, &d.Name, &d.Slug, &d.Phone, &d.Email, &d.Address, &d.City, &d.State, &d.Zip, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}
