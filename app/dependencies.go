package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/config"
	"github.com/rtauto/dealer-admin/handlers"
	"github.com/rtauto/dealer-admin/internal/navigation"
	"github.com/rtauto/dealer-admin/middleware"
	"github.com/rtauto/dealer-admin/repositories"
	"github.com/rtauto/dealer-admin/repositories/postgres"
	"github.com/rtauto/dealer-admin/services/audit"
	"github.com/rtauto/dealer-admin/services/authn"
	"github.com/rtauto/dealer-admin/services/dashboard"
	"github.com/rtauto/dealer-admin/services/dealerships"
	"github.com/rtauto/dealer-admin/services/inventory"
	"github.com/rtauto/dealer-admin/services/photos"
	"github.com/rtauto/dealer-admin/services/vin"
	"github.com/rtauto/dealer-admin/storage/s3"
	"github.com/rtauto/dealer-admin/tokens"
)

const (
	auditStopTimeout = 5 * time.Second
	sessionCacheTTL  = 5 * time.Second
)

// Infrastructure is the set of external connections the application runs on.
// Photos is nil when no bucket is configured.
type Infrastructure struct {
	DB     *postgres.DB
	Redis  redis.UniversalClient
	Photos *s3.Client
}

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	Infra  Infrastructure

	// Repositories
	Repos     *repositories.Repositories
	TxManager repositories.TransactionManager

	// Services
	Authn     *authn.Service
	Audit     *audit.AuditService
	Dealers   *dealerships.CachedRepository
	Inventory *inventory.Service
	Photos    *photos.Service
	VIN       *vin.Decoder
	Dashboard *dashboard.Service
	Menu      *navigation.Menu

	// Middleware
	AuthMiddleware  *middleware.AuthMiddleware
	ScopeMiddleware *middleware.ScopeMiddleware

	// Background
	stopRevocations context.CancelFunc
	revocationsDone chan struct{}

	// Handlers
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	Me           *handlers.MeHandler
	DashboardAPI *handlers.DashboardHandler
	Vehicles     *handlers.VehicleHandler
	PhotosAPI    *handlers.PhotoHandler
	VINAPI       *handlers.VINHandler
	Dealerships  *handlers.DealershipHandler
	Users        *handlers.UserHandler
	AuditLog     *handlers.AuditHandler
}

// NewDependencies opens the database, Redis and (when configured) the photo
// bucket, then wires every service and handler on top of them.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	infra := Infrastructure{DB: factory.GetDB()}

	if cfg.Database.InitSchema {
		if err := infra.DB.InitSchema(ctx); err != nil {
			_ = factory.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	infra.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := infra.Redis.Ping(ctx).Err(); err != nil {
		_ = infra.Redis.Close()
		_ = factory.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("redis connection established", zap.String("addr", cfg.Redis.Addr))

	if cfg.Storage.Enabled() {
		client, err := s3.NewClient(cfg.Storage)
		if err != nil {
			_ = infra.Redis.Close()
			_ = factory.Close()
			return nil, fmt.Errorf("failed to initialize photo storage: %w", err)
		}
		infra.Photos = client
		logger.Info("photo storage configured", zap.String("bucket", cfg.Storage.Bucket))
	} else {
		logger.Warn("photo bucket not configured, uploads disabled")
	}

	deps, err := Build(cfg, infra, logger)
	if err != nil {
		_ = infra.Redis.Close()
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// Build wires services, middleware and handlers over already-open
// infrastructure and starts the audit workers.
func Build(cfg *config.Config, infra Infrastructure, logger *zap.Logger) (*Dependencies, error) {
	d := &Dependencies{
		Config: cfg,
		Logger: logger,
		Infra:  infra,
	}

	factory := postgres.NewRepositoryFactoryFromDB(infra.DB, logger)
	d.Repos = factory.NewRepositories()
	d.TxManager = factory.GetTransactionManager()

	if err := d.initServices(); err != nil {
		if d.stopRevocations != nil {
			d.stopRevocations()
		}
		return nil, err
	}
	d.initHTTP()

	logger.Info("all dependencies initialized successfully")
	return d, nil
}

func (d *Dependencies) initServices() error {
	cfg := d.Config

	tm, err := tokens.NewManager(tokens.Config{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.SessionTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token manager: %w", err)
	}
	sessions := authn.NewSessionStore(d.Infra.Redis, authn.WithLocalCache(sessionCacheTTL))
	d.Authn = authn.NewService(d.Repos.Profiles, tm, sessions, d.Logger)
	d.watchRevocations(sessions)

	d.Audit = audit.NewAuditService(d.Repos.AuditLogs, d.Logger, audit.DefaultConfig())
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	d.Dealers = dealerships.NewCachedRepository(d.Repos.Dealerships,
		dealerships.NewCache(dealerships.DefaultCacheSize, dealerships.DefaultCacheTTL))

	// A nil *s3.Client must not reach the service as a non-nil interface.
	var store photos.ObjectStore
	if d.Infra.Photos != nil {
		store = d.Infra.Photos
	}
	d.Photos = photos.NewService(d.Repos.Vehicles, d.Repos.Photos, d.TxManager, store, cfg.Storage.MaxUploadBytes, d.Logger)
	d.Inventory = inventory.NewService(d.Repos.Vehicles, d.Repos.Photos, d.TxManager, d.Photos, d.Logger)
	d.VIN = vin.NewDecoder(cfg.VINDecoder.BaseURL, cfg.VINDecoder.Timeout, d.Logger)
	d.Dashboard = dashboard.NewService(d.Inventory, d.Logger)
	d.Menu = navigation.Default()
	return nil
}

// watchRevocations keeps the local session cache in step with sign-outs on
// every instance.
func (d *Dependencies) watchRevocations(sessions *authn.SessionStore) {
	ctx, cancel := context.WithCancel(context.Background())
	d.stopRevocations = cancel
	d.revocationsDone = make(chan struct{})

	go func() {
		defer close(d.revocationsDone)
		if err := sessions.WatchRevocations(ctx, d.Logger); err != nil {
			d.Logger.Warn("revocation watcher stopped, session cache disabled", zap.Error(err))
		}
	}()
}

func (d *Dependencies) initHTTP() {
	logger := d.Logger

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Authn, d.Repos.Profiles, d.Dealers, logger)
	d.ScopeMiddleware = middleware.NewScopeMiddleware(logger)

	d.Health = handlers.NewHealthHandler(d.Infra.DB.DB, logger).WithCheck("redis", d.Authn.Ping)
	if d.Infra.Photos != nil {
		d.Health.WithCheck("photo_storage", d.Infra.Photos.HeadBucket)
	}

	d.Auth = handlers.NewAuthHandler(d.Authn, d.Audit, d.Config.Auth.CookieSecure, logger)
	d.Me = handlers.NewMeHandler(d.Menu)
	d.DashboardAPI = handlers.NewDashboardHandler(d.Dashboard, logger)
	d.Vehicles = handlers.NewVehicleHandler(d.Inventory, d.Audit, logger)
	d.PhotosAPI = handlers.NewPhotoHandler(d.Photos, d.Audit, d.Config.Storage.MaxUploadBytes, logger)
	d.VINAPI = handlers.NewVINHandler(d.VIN, logger)
	d.Dealerships = handlers.NewDealershipHandler(d.Dealers, d.Audit, logger)
	d.Users = handlers.NewUserHandler(d.Repos.Profiles, d.Audit, logger)
	d.AuditLog = handlers.NewAuditHandler(d.Audit, logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain queued audit entries before the pool goes away.
	if d.Audit != nil {
		timeout := auditStopTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.stopRevocations != nil {
		d.stopRevocations()
		select {
		case <-d.revocationsDone:
		case <-ctx.Done():
		}
	}

	if d.Infra.Redis != nil {
		if err := d.Infra.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if d.Infra.DB != nil {
		if err := d.Infra.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}
