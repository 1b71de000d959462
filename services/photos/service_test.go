package photos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/repositories"
	"github.com/rtauto/dealer-admin/repositories/mocks"
	"github.com/rtauto/dealer-admin/services"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Upload(ctx context.Context, key string, src io.ReadSeeker, contentType string) (string, error) {
	args := m.Called(ctx, key, src, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockStore) DeleteObject(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockStore) DeleteObjects(ctx context.Context, keys []string) ([]string, error) {
	args := m.Called(ctx, keys)
	failed, _ := args.Get(0).([]string)
	return failed, args.Error(1)
}

type fixture struct {
	vehicles     *mocks.VehicleRepository
	photos       *mocks.PhotoRepository
	tx           *mocks.TransactionManager
	store        *mockStore
	service      *Service
	dealershipID uuid.UUID
	vehicle      *models.Vehicle
}

func newFixture() *fixture {
	f := &fixture{
		vehicles:     &mocks.VehicleRepository{},
		photos:       &mocks.PhotoRepository{},
		tx:           &mocks.TransactionManager{},
		store:        &mockStore{},
		dealershipID: uuid.New(),
	}
	f.vehicle = &models.Vehicle{ID: uuid.New(), DealershipID: f.dealershipID}
	f.service = NewService(f.vehicles, f.photos, f.tx, f.store, 5<<20, zap.NewNop())
	return f
}

func jpeg(body string) Upload {
	return Upload{Filename: "front.jpg", ContentType: "image/jpeg", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestUpload_FirstPhotoIsPrimary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.vehicles.On("GetByID", ctx, f.dealershipID, f.vehicle.ID).Return(f.vehicle, nil)
	f.photos.On("ListByVehicle", ctx, f.vehicle.ID).Return([]models.VehiclePhoto{}, nil)
	f.store.On("Upload", ctx, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "vehicles/"+f.vehicle.ID.String()+"/") && strings.HasSuffix(key, ".jpg")
	}), mock.Anything, "image/jpeg").Return("https://cdn.rtauto.test/x.jpg", nil)
	f.photos.On("Create", ctx, mock.AnythingOfType("*models.VehiclePhoto")).Return(nil)

	photo, err := f.service.Upload(ctx, f.dealershipID, f.vehicle.ID, jpeg("img"))
	require.NoError(t, err)

	assert.True(t, photo.IsPrimary)
	assert.Equal(t, 0, photo.SortOrder)
	assert.Equal(t, "https://cdn.rtauto.test/x.jpg", photo.URL)
	assert.Equal(t, ObjectKey(f.vehicle.ID, photo.ID, ".jpg"), photo.StorageKey)
}

func TestUpload_AppendsAfterExisting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	existing := []models.VehiclePhoto{{ID: uuid.New(), IsPrimary: true}, {ID: uuid.New(), SortOrder: 1}}
	f.vehicles.On("GetByID", ctx, f.dealershipID, f.vehicle.ID).Return(f.vehicle, nil)
	f.photos.On("ListByVehicle", ctx, f.vehicle.ID).Return(existing, nil)
	f.store.On("Upload", ctx, mock.Anything, mock.Anything, "image/png").Return("https://cdn.rtauto.test/y.png", nil)
	f.photos.On("Create", ctx, mock.Anything).Return(nil)

	photo, err := f.service.Upload(ctx, f.dealershipID, f.vehicle.ID,
		Upload{Filename: "rear.png", ContentType: "image/png", Body: strings.NewReader("png")})
	require.NoError(t, err)

	assert.False(t, photo.IsPrimary)
	assert.Equal(t, 2, photo.SortOrder)
	assert.True(t, strings.HasSuffix(photo.StorageKey, ".png"))
}

func TestUpload_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("storage disabled", func(t *testing.T) {
		f := newFixture()
		svc := NewService(f.vehicles, f.photos, f.tx, nil, 0, zap.NewNop())
		_, err := svc.Upload(ctx, f.dealershipID, f.vehicle.ID, jpeg("x"))
		assert.True(t, services.IsUnavailableError(err))
	})

	t.Run("too large", func(t *testing.T) {
		f := newFixture()
		u := jpeg("x")
		u.Size = 6 << 20
		_, err := f.service.Upload(ctx, f.dealershipID, f.vehicle.ID, u)
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("not an image", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.Upload(ctx, f.dealershipID, f.vehicle.ID,
			Upload{Filename: "notes.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF")})
		assert.True(t, services.IsValidationError(err))
		assert.Equal(t, "application/pdf", services.GetErrorDetails(err)["content_type"])
	})

	t.Run("vehicle of another dealership", func(t *testing.T) {
		f := newFixture()
		f.vehicles.On("GetByID", ctx, f.dealershipID, f.vehicle.ID).
			Return(nil, fmt.Errorf("vehicle: %w", repositories.ErrNotFound))
		_, err := f.service.Upload(ctx, f.dealershipID, f.vehicle.ID, jpeg("x"))
		assert.True(t, services.IsNotFoundError(err))
		f.store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUpload_RowFailureRemovesObject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.vehicles.On("GetByID", ctx, f.dealershipID, f.vehicle.ID).Return(f.vehicle, nil)
	f.photos.On("ListByVehicle", ctx, f.vehicle.ID).Return([]models.VehiclePhoto{}, nil)
	f.store.On("Upload", ctx, mock.Anything, mock.Anything, mock.Anything).Return("https://cdn.rtauto.test/z.jpg", nil)
	f.photos.On("Create", ctx, mock.Anything).Return(errors.New("insert failed"))
	f.store.On("DeleteObject", ctx, mock.Anything).Return(nil).Once()

	_, err := f.service.Upload(ctx, f.dealershipID, f.vehicle.ID, jpeg("x"))
	assert.True(t, services.IsInternalError(err))
	f.store.AssertExpectations(t)
}

func TestDelete_PromotesNextPhoto(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	primary := &models.VehiclePhoto{ID: uuid.New(), VehicleID: f.vehicle.ID, IsPrimary: true, StorageKey: "vehicles/v/a.jpg"}
	remaining := []models.VehiclePhoto{
		{ID: uuid.New(), SortOrder: 4},
		{ID: uuid.New(), SortOrder: 2},
	}

	f.vehicles.On("GetByID", ctx, f.dealershipID, f.vehicle.ID).Return(f.vehicle, nil)
	f.photos.On("Delete", ctx, f.vehicle.ID, primary.ID).Return(primary, nil)
	f.photos.On("ListByVehicle", ctx, f.vehicle.ID).Return(remaining, nil)
	f.photos.On("SetPrimary", ctx, f.vehicle.ID, remaining[1].ID).Return(nil)
	f.store.On("DeleteObject", ctx, "vehicles/v/a.jpg").Return(nil)

	deleted, err := f.service.Delete(ctx, f.dealershipID, f.vehicle.ID, primary.ID)
	require.NoError(t, err)
	assert.Equal(t, primary.ID, deleted.ID)
	assert.Equal(t, 1, f.tx.Commits)

	f.photos.AssertExpectations(t)
	f.store.AssertExpectations(t)
}

func TestDelete_MissingPhoto(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	photoID := uuid.New()

	f.vehicles.On("GetByID", ctx, f.dealershipID, f.vehicle.ID).Return(f.vehicle, nil)
	f.photos.On("Delete", ctx, f.vehicle.ID, photoID).Return(nil, fmt.Errorf("photo: %w", repositories.ErrNotFound))

	_, err := f.service.Delete(ctx, f.dealershipID, f.vehicle.ID, photoID)
	assert.True(t, services.IsNotFoundError(err))
	assert.Equal(t, 1, f.tx.Rollbacks)
	f.store.AssertNotCalled(t, "DeleteObject", mock.Anything, mock.Anything)
}

func TestSetPrimary(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	photoID := uuid.New()

	f.vehicles.On("GetByID", ctx, f.dealershipID, f.vehicle.ID).Return(f.vehicle, nil)
	f.photos.On("SetPrimary", ctx, f.vehicle.ID, photoID).Return(nil).Once()
	require.NoError(t, f.service.SetPrimary(ctx, f.dealershipID, f.vehicle.ID, photoID))

	f.photos.On("SetPrimary", ctx, f.vehicle.ID, photoID).Return(fmt.Errorf("x: %w", repositories.ErrNotFound)).Once()
	err := f.service.SetPrimary(ctx, f.dealershipID, f.vehicle.ID, photoID)
	assert.True(t, services.IsNotFoundError(err))
}

func TestRemoveObjects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.On("DeleteObjects", ctx, []string{"a", "b"}).Return([]string{"b"}, nil).Once()
	f.service.RemoveObjects(ctx, []models.VehiclePhoto{{StorageKey: "a"}, {StorageKey: ""}, {StorageKey: "b"}})

	f.service.RemoveObjects(ctx, nil)
	f.store.AssertExpectations(t)
}
