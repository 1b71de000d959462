package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/config"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{DB: db, logger: logger}, nil
}

// Wrap adapts an existing pool, e.g. one opened by sqlmock.
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck pings the database and runs a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// InitSchema creates the tables and indexes if they do not exist.
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	db.logger.Info("database schema initialized successfully")
	return nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS dealerships (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(100) NOT NULL UNIQUE,
		phone VARCHAR(50) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		address VARCHAR(255) NOT NULL DEFAULT '',
		city VARCHAR(100) NOT NULL DEFAULT '',
		state VARCHAR(50) NOT NULL DEFAULT '',
		zip VARCHAR(20) NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS user_profiles (
		id UUID PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		dealership_id UUID REFERENCES dealerships(id) ON DELETE SET NULL,
		role VARCHAR(50) NOT NULL CHECK (role IN ('owner','admin','manager','finance','bdc','salesperson','viewer')),
		first_name VARCHAR(100) NOT NULL DEFAULT '',
		last_name VARCHAR(100) NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS vehicles (
		id UUID PRIMARY KEY,
		dealership_id UUID NOT NULL REFERENCES dealerships(id) ON DELETE CASCADE,
		vin VARCHAR(17) NOT NULL,
		stock_number VARCHAR(50) NOT NULL DEFAULT '',
		year INTEGER NOT NULL,
		make VARCHAR(100) NOT NULL,
		model VARCHAR(100) NOT NULL,
		trim VARCHAR(100) NOT NULL DEFAULT '',
		body_type VARCHAR(50) NOT NULL DEFAULT '',
		engine VARCHAR(255) NOT NULL DEFAULT '',
		transmission VARCHAR(100) NOT NULL DEFAULT '',
		drivetrain VARCHAR(100) NOT NULL DEFAULT '',
		fuel_type VARCHAR(50) NOT NULL DEFAULT '',
		exterior_color VARCHAR(100) NOT NULL DEFAULT '',
		interior_color VARCHAR(100) NOT NULL DEFAULT '',
		mileage INTEGER NOT NULL DEFAULT 0,
		miles_exempt BOOLEAN NOT NULL DEFAULT false,
		door_count INTEGER,
		seating_capacity INTEGER,
		asking_price NUMERIC(12, 2) NOT NULL DEFAULT 0,
		internet_price NUMERIC(12, 2),
		cost NUMERIC(12, 2),
		status VARCHAR(50) NOT NULL DEFAULT 'active',
		is_featured BOOLEAN NOT NULL DEFAULT false,
		description TEXT NOT NULL DEFAULT '',
		tagline VARCHAR(255) NOT NULL DEFAULT '',
		decode_string TEXT NOT NULL DEFAULT '',
		slug VARCHAR(255) NOT NULL,
		in_date DATE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(dealership_id, vin)
	);

	CREATE TABLE IF NOT EXISTS vehicle_photos (
		id UUID PRIMARY KEY,
		vehicle_id UUID NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		storage_key TEXT NOT NULL DEFAULT '',
		is_primary BOOLEAN NOT NULL DEFAULT false,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		dealership_id UUID,
		user_id UUID,
		action VARCHAR(100) NOT NULL,
		resource_type VARCHAR(100) NOT NULL,
		resource_id UUID,
		details JSONB,
		ip_address VARCHAR(45),
		user_agent TEXT,
		request_id VARCHAR(255),
		timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_user_profiles_dealership_id ON user_profiles(dealership_id);
	CREATE INDEX IF NOT EXISTS idx_vehicles_dealership_status ON vehicles(dealership_id, status);
	CREATE INDEX IF NOT EXISTS idx_vehicles_created_at ON vehicles(created_at);
	CREATE INDEX IF NOT EXISTS idx_vehicle_photos_vehicle_id ON vehicle_photos(vehicle_id, sort_order);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_dealership_id ON audit_logs(dealership_id, timestamp);
`
