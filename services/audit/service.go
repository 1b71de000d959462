package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/repositories"
)

const (
	// DefaultListLimit is used when List is called without a limit.
	DefaultListLimit = 50
	// MaxListLimit caps a single page of audit entries.
	MaxListLimit = 200
)

// Actor is the staff member and request behind an audited action.
type Actor struct {
	UserID       uuid.UUID
	DealershipID uuid.UUID
	RequestID    string
	IPAddress    string
	UserAgent    string
}

func (a Actor) apply(log *models.AuditLog) *models.AuditLog {
	if a.UserID != uuid.Nil {
		log.WithUser(a.UserID)
	}
	if a.DealershipID != uuid.Nil {
		log.WithDealership(a.DealershipID)
	}
	return log.WithRequest(a.RequestID, a.IPAddress, a.UserAgent)
}

// AuditService writes audit logs through a pool of background workers.
type AuditService struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	eventChan   chan *models.AuditLog
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &AuditService{
		auditRepo:   auditRepo,
		logger:      logger,
		eventChan:   make(chan *models.AuditLog, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop closes the queue and waits up to timeout for pending entries to be written.
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.started = false
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record queues log without blocking. A full buffer drops the entry.
func (s *AuditService) Record(log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return fmt.Errorf("audit service not started")
	}

	select {
	case s.eventChan <- log:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(log.Action)),
			zap.String("resource_type", log.ResourceType))
		return fmt.Errorf("audit event buffer full")
	}
}

func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	for log := range s.eventChan {
		if err := s.write(log); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(log.Action)))
		}
	}
}

func (s *AuditService) write(log *models.AuditLog) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// List returns a page of a dealership's audit trail, newest first.
func (s *AuditService) List(ctx context.Context, dealershipID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.auditRepo.ListByDealership(ctx, dealershipID, limit, offset)
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started,
	}
}

// LogSignIn records a successful password sign-in.
func (s *AuditService) LogSignIn(actor Actor, sessionID uuid.UUID) error {
	log := actor.apply(models.NewAuditLog(models.AuditActionSignIn, "session")).WithResource(sessionID)
	return s.Record(log)
}

// LogSignInFailed records a rejected sign-in. Only the attempted email is kept.
func (s *AuditService) LogSignInFailed(actor Actor, email string) error {
	log := actor.apply(models.NewAuditLog(models.AuditActionSignInFailed, "session")).
		WithDetails(map[string]string{"email": email})
	return s.Record(log)
}

// LogSignOut records a sign-out.
func (s *AuditService) LogSignOut(actor Actor, sessionID uuid.UUID) error {
	log := actor.apply(models.NewAuditLog(models.AuditActionSignOut, "session")).WithResource(sessionID)
	return s.Record(log)
}

// LogVehicleChange records a create, update or delete of a vehicle.
func (s *AuditService) LogVehicleChange(actor Actor, action models.AuditAction, v *models.Vehicle) error {
	log := actor.apply(models.NewAuditLog(action, "vehicle")).
		WithResource(v.ID).
		WithDetails(map[string]interface{}{
			"vin":          v.VIN,
			"stock_number": v.StockNumber,
			"title":        v.Title(),
			"status":       v.Status,
		})
	return s.Record(log)
}

// LogPhotoChange records a photo upload or delete.
func (s *AuditService) LogPhotoChange(actor Actor, action models.AuditAction, photo *models.VehiclePhoto) error {
	log := actor.apply(models.NewAuditLog(action, "photo")).
		WithResource(photo.ID).
		WithDetails(map[string]string{"vehicle_id": photo.VehicleID.String()})
	return s.Record(log)
}

// LogRoleChange records a staff role change.
func (s *AuditService) LogRoleChange(actor Actor, profileID uuid.UUID, from, to auth.Role) error {
	log := actor.apply(models.NewAuditLog(models.AuditActionRoleChanged, "profile")).
		WithResource(profileID).
		WithDetails(map[string]auth.Role{"from": from, "to": to})
	return s.Record(log)
}

// LogDealershipUpdated records an edit of dealership details.
func (s *AuditService) LogDealershipUpdated(actor Actor, dealershipID uuid.UUID, changes map[string]interface{}) error {
	log := actor.apply(models.NewAuditLog(models.AuditActionDealershipEdit, "dealership")).
		WithResource(dealershipID).
		WithDetails(map[string]interface{}{"changes": changes})
	return s.Record(log)
}
