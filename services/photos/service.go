// Package photos manages the images attached to inventory vehicles.
package photos

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/repositories"
	"github.com/rtauto/dealer-admin/services"
)

// ObjectStore is the subset of the S3 client used for photos.
type ObjectStore interface {
	Upload(ctx context.Context, objectKey string, src io.ReadSeeker, contentType string) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
	DeleteObjects(ctx context.Context, keys []string) ([]string, error)
}

// allowedTypes maps accepted content types to the stored extension.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Upload describes one incoming photo.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// Service uploads, orders and removes vehicle photos.
type Service struct {
	vehicles repositories.VehicleRepository
	photos   repositories.PhotoRepository
	tx       repositories.TransactionManager
	store    ObjectStore
	maxBytes int64
	logger   *zap.Logger
}

// NewService creates a photo service. store may be nil when storage is not
// configured; uploads then fail with services.ErrStorageUnavailable.
func NewService(
	vehicles repositories.VehicleRepository,
	photos repositories.PhotoRepository,
	tx repositories.TransactionManager,
	store ObjectStore,
	maxBytes int64,
	logger *zap.Logger,
) *Service {
	return &Service{
		vehicles: vehicles,
		photos:   photos,
		tx:       tx,
		store:    store,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// ObjectKey returns the storage key for a new photo of vehicleID.
func ObjectKey(vehicleID, photoID uuid.UUID, ext string) string {
	return fmt.Sprintf("vehicles/%s/%s%s", vehicleID, photoID, ext)
}

func extensionFor(u Upload) (string, error) {
	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(u.ContentType, ";", 2)[0]))
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", services.NewDomainError(services.ErrorTypeValidation, "photo must be a JPEG, PNG or WebP image", nil).
			WithDetail("content_type", u.ContentType)
	}
	// keep .jpeg and friends when the client named the file that way
	if fileExt := strings.ToLower(path.Ext(u.Filename)); fileExt == ".jpeg" && ext == ".jpg" {
		ext = fileExt
	}
	return ext, nil
}

func (s *Service) vehicle(ctx context.Context, dealershipID, vehicleID uuid.UUID) (*models.Vehicle, error) {
	v, err := s.vehicles.GetByID(ctx, dealershipID, vehicleID)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrVehicleNotFound, "failed to load vehicle")
	}
	return v, nil
}

// List returns a vehicle's photos in display order.
func (s *Service) List(ctx context.Context, dealershipID, vehicleID uuid.UUID) ([]models.VehiclePhoto, error) {
	if _, err := s.vehicle(ctx, dealershipID, vehicleID); err != nil {
		return nil, err
	}
	photos, err := s.photos.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, services.WrapInternal("failed to list photos", err)
	}
	return photos, nil
}

// Upload stores a photo and appends it to the vehicle's gallery. The first
// photo of a vehicle becomes its primary photo.
func (s *Service) Upload(ctx context.Context, dealershipID, vehicleID uuid.UUID, u Upload) (*models.VehiclePhoto, error) {
	if s.store == nil {
		return nil, services.ErrStorageUnavailable
	}
	if s.maxBytes > 0 && u.Size > s.maxBytes {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "photo is too large", nil).
			WithDetail("max_bytes", s.maxBytes)
	}
	ext, err := extensionFor(u)
	if err != nil {
		return nil, err
	}
	if _, err := s.vehicle(ctx, dealershipID, vehicleID); err != nil {
		return nil, err
	}

	existing, err := s.photos.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, services.WrapInternal("failed to list photos", err)
	}

	photo := &models.VehiclePhoto{
		ID:        uuid.New(),
		VehicleID: vehicleID,
		IsPrimary: len(existing) == 0,
		SortOrder: len(existing),
		CreatedAt: time.Now(),
	}
	photo.StorageKey = ObjectKey(vehicleID, photo.ID, ext)

	url, err := s.store.Upload(ctx, photo.StorageKey, u.Body, u.ContentType)
	if err != nil {
		return nil, services.WrapExternal("failed to store photo", err)
	}
	photo.URL = url

	if err := s.photos.Create(ctx, photo); err != nil {
		s.removeObjects(ctx, photo.StorageKey)
		return nil, services.WrapInternal("failed to save photo", err)
	}

	s.logger.Info("photo uploaded",
		zap.String("vehicle_id", vehicleID.String()),
		zap.String("photo_id", photo.ID.String()),
		zap.Bool("primary", photo.IsPrimary))
	return photo, nil
}

// Delete removes a photo. When the primary photo goes, the next photo in
// sort order is promoted.
func (s *Service) Delete(ctx context.Context, dealershipID, vehicleID, photoID uuid.UUID) (*models.VehiclePhoto, error) {
	if _, err := s.vehicle(ctx, dealershipID, vehicleID); err != nil {
		return nil, err
	}

	var deleted *models.VehiclePhoto
	err := s.tx.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		var err error
		deleted, err = s.photos.Delete(ctx, vehicleID, photoID)
		if err != nil {
			return services.FromRepository(err, services.ErrPhotoNotFound, "failed to delete photo")
		}
		if !deleted.IsPrimary {
			return nil
		}

		remaining, err := s.photos.ListByVehicle(ctx, vehicleID)
		if err != nil {
			return services.WrapInternal("failed to list photos", err)
		}
		if len(remaining) == 0 {
			return nil
		}
		next := remaining[0]
		for _, p := range remaining[1:] {
			if p.SortOrder < next.SortOrder {
				next = p
			}
		}
		if err := s.photos.SetPrimary(ctx, vehicleID, next.ID); err != nil {
			return services.WrapInternal("failed to promote photo", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.removeObjects(ctx, deleted.StorageKey)
	return deleted, nil
}

// SetPrimary marks photoID as the vehicle's primary photo.
func (s *Service) SetPrimary(ctx context.Context, dealershipID, vehicleID, photoID uuid.UUID) error {
	if _, err := s.vehicle(ctx, dealershipID, vehicleID); err != nil {
		return err
	}
	return s.tx.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		if err := s.photos.SetPrimary(ctx, vehicleID, photoID); err != nil {
			return services.FromRepository(err, services.ErrPhotoNotFound, "failed to set primary photo")
		}
		return nil
	})
}

// RemoveObjects deletes the stored objects behind photos. Failures are
// logged, not returned.
func (s *Service) RemoveObjects(ctx context.Context, photos []models.VehiclePhoto) {
	keys := make([]string, 0, len(photos))
	for _, p := range photos {
		keys = append(keys, p.StorageKey)
	}
	s.removeObjects(ctx, keys...)
}

func (s *Service) removeObjects(ctx context.Context, keys ...string) {
	if s.store == nil {
		return
	}
	live := keys[:0:0]
	for _, key := range keys {
		if key != "" {
			live = append(live, key)
		}
	}

	switch len(live) {
	case 0:
		return
	case 1:
		if err := s.store.DeleteObject(ctx, live[0]); err != nil {
			s.logger.Warn("failed to delete photo object", zap.String("key", live[0]), zap.Error(err))
		}
	default:
		failed, err := s.store.DeleteObjects(ctx, live)
		if err != nil || len(failed) > 0 {
			s.logger.Warn("failed to delete photo objects", zap.Strings("keys", failed), zap.Error(err))
		}
	}
}
