package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/repositories"
)

const profileColumns = `id, email, password_hash, dealership_id, role, first_name, last_name, created_at, updated_at`

// ProfileRepository implements repositories.ProfileRepository
type ProfileRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB, logger *zap.Logger) repositories.ProfileRepository {
	return &ProfileRepository{db: db, logger: logger}
}

// Create creates a new profile
func (r *ProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO user_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		p.ID,
		strings.ToLower(p.Email),
		p.PasswordHash,
		p.DealershipID,
		p.Role,
		p.FirstName,
		p.LastName,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	r.logger.Debug("profile created", zap.String("id", p.ID.String()), zap.String("role", p.Role.String()))
	return nil
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE id = $1`

	p, err := scanProfile(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// GetByEmail retrieves a profile by email, case-insensitively
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE email = $1`

	p, err := scanProfile(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile for email: %w", repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// ListByDealership returns the staff of a dealership ordered by last name
func (r *ProfileRepository) ListByDealership(ctx context.Context, dealershipID uuid.UUID) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE dealership_id = $1 ORDER BY last_name, first_name`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, dealershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// UpdateRole changes a profile's role
func (r *ProfileRepository) UpdateRole(ctx context.Context, id uuid.UUID, role auth.Role) error {
	query := `UPDATE user_profiles SET role = $1, updated_at = $2 WHERE id = $3`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, role, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("profile %s: %w", id, repositories.ErrNotFound)
	}

	r.logger.Info("profile role updated", zap.String("id", id.String()), zap.String("role", role.String()))
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	p := &models.Profile{}
	var dealershipID uuid.NullUUID
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&dealershipID,
		&p.Role,
		&p.FirstName,
		&p.LastName,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if dealershipID.Valid {
		p.DealershipID = &dealershipID.UUID
	}
	return p, nil
}
