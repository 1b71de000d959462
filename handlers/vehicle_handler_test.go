package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/services"
	"github.com/rtauto/dealer-admin/services/inventory"
)

// MockInventoryService is a mock implementation of InventoryService
type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) List(ctx context.Context, dealershipID uuid.UUID, p inventory.ListParams) (*inventory.Page, error) {
	args := m.Called(ctx, dealershipID, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Page), args.Error(1)
}

func (m *MockInventoryService) Get(ctx context.Context, dealershipID, id uuid.UUID) (*models.Vehicle, error) {
	args := m.Called(ctx, dealershipID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockInventoryService) Create(ctx context.Context, dealershipID uuid.UUID, v *models.Vehicle) (*models.Vehicle, error) {
	args := m.Called(ctx, dealershipID, v)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockInventoryService) Update(ctx context.Context, dealershipID, id uuid.UUID, v *models.Vehicle) (*models.Vehicle, error) {
	args := m.Called(ctx, dealershipID, id, v)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockInventoryService) Delete(ctx context.Context, dealershipID, id uuid.UUID) (*models.Vehicle, error) {
	args := m.Called(ctx, dealershipID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

const civicJSON = `{
	"vin": "2HGFC2F59JH512345",
	"stock_number": "R2041",
	"year": 2018,
	"make": "Honda",
	"model": "Civic",
	"trim": "LX",
	"body_type": "sedan",
	"fuel_type": "Gasoline",
	"mileage": 41200,
	"asking_price": 18995,
	"status": "active"
}`

func TestVehicleHandler_List(t *testing.T) {
	svc := &MockInventoryService{}
	profile, dealership := newCaller(auth.RoleViewer)

	svc.On("List", mock.Anything, dealership.ID, inventory.ListParams{
		Status:    "sold",
		SortBy:    "asking_price",
		Ascending: true,
		Page:      2,
		PageSize:  25,
		Query:     "civic",
	}).Return(&inventory.Page{
		Vehicles:   []*models.Vehicle{{ID: uuid.New(), Make: "Honda", Model: "Civic"}},
		Page:       2,
		PageSize:   25,
		Total:      51,
		TotalPages: 3,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles?status=sold&sort=asking_price&asc=true&page=2&q=civic", nil)
	w := httptest.NewRecorder()
	NewVehicleHandler(svc, &recordingAuditor{}, zap.NewNop()).HandleList(w, asCaller(req, profile, dealership))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(51), body["total"])
	assert.Equal(t, float64(3), body["total_pages"])
	assert.Len(t, body["data"].([]interface{}), 1)
	svc.AssertExpectations(t)
}

func TestVehicleHandler_Create(t *testing.T) {
	profile, dealership := newCaller(auth.RoleManager)

	t.Run("creates and audits", func(t *testing.T) {
		svc := &MockInventoryService{}
		auditor := &recordingAuditor{}
		svc.On("Create", mock.Anything, dealership.ID, mock.MatchedBy(func(v *models.Vehicle) bool {
			return v.VIN == "2HGFC2F59JH512345" && v.Make == "Honda" && v.Status == models.VehicleStatusActive
		})).Return(&models.Vehicle{ID: uuid.New(), VIN: "2HGFC2F59JH512345"}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/vehicles", strings.NewReader(civicJSON))
		w := httptest.NewRecorder()
		NewVehicleHandler(svc, auditor, zap.NewNop()).HandleCreate(w, asCaller(req, profile, dealership))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, []string{"vehicle_created"}, auditor.Actions())
	})

	t.Run("rejects a malformed VIN with field details", func(t *testing.T) {
		svc := &MockInventoryService{}
		body := strings.Replace(civicJSON, "2HGFC2F59JH512345", "2HGFC2F59JH5123", 1)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/vehicles", strings.NewReader(body))
		w := httptest.NewRecorder()
		NewVehicleHandler(svc, &recordingAuditor{}, zap.NewNop()).HandleCreate(w, asCaller(req, profile, dealership))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		details := decodeBody(t, w)["details"].(map[string]interface{})
		assert.Contains(t, details, "vin")
		svc.AssertNotCalled(t, "Create")
	})

	t.Run("duplicate VIN is a conflict", func(t *testing.T) {
		svc := &MockInventoryService{}
		svc.On("Create", mock.Anything, dealership.ID, mock.Anything).Return(nil, services.ErrDuplicateVIN)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/vehicles", strings.NewReader(civicJSON))
		w := httptest.NewRecorder()
		NewVehicleHandler(svc, &recordingAuditor{}, zap.NewNop()).HandleCreate(w, asCaller(req, profile, dealership))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("profile without dealership", func(t *testing.T) {
		svc := &MockInventoryService{}
		orphan := &models.Profile{ID: uuid.New(), Role: auth.RoleOwner}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/vehicles", strings.NewReader(civicJSON))
		w := httptest.NewRecorder()
		NewVehicleHandler(svc, &recordingAuditor{}, zap.NewNop()).HandleCreate(w, asCaller(req, orphan, nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestVehicleHandler_GetUpdateDelete(t *testing.T) {
	profile, dealership := newCaller(auth.RoleManager)
	id := uuid.New()

	t.Run("get missing vehicle", func(t *testing.T) {
		svc := &MockInventoryService{}
		svc.On("Get", mock.Anything, dealership.ID, id).Return(nil, services.ErrVehicleNotFound)

		req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/"+id.String(), nil), map[string]string{"id": id.String()})
		w := httptest.NewRecorder()
		NewVehicleHandler(svc, &recordingAuditor{}, zap.NewNop()).HandleGet(w, asCaller(req, profile, dealership))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("get with malformed id", func(t *testing.T) {
		svc := &MockInventoryService{}
		req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/abc", nil), map[string]string{"id": "abc"})
		w := httptest.NewRecorder()
		NewVehicleHandler(svc, &recordingAuditor{}, zap.NewNop()).HandleGet(w, asCaller(req, profile, dealership))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("update", func(t *testing.T) {
		svc := &MockInventoryService{}
		auditor := &recordingAuditor{}
		svc.On("Update", mock.Anything, dealership.ID, id, mock.Anything).Return(&models.Vehicle{ID: id}, nil)

		req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/v1/vehicles/"+id.String(), strings.NewReader(civicJSON)),
			map[string]string{"id": id.String()})
		w := httptest.NewRecorder()
		NewVehicleHandler(svc, auditor, zap.NewNop()).HandleUpdate(w, asCaller(req, profile, dealership))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"vehicle_updated"}, auditor.Actions())
	})

	t.Run("delete", func(t *testing.T) {
		svc := &MockInventoryService{}
		auditor := &recordingAuditor{}
		svc.On("Delete", mock.Anything, dealership.ID, id).Return(&models.Vehicle{ID: id}, nil)

		req := withURLParams(httptest.NewRequest(http.MethodDelete, "/api/v1/vehicles/"+id.String(), nil), map[string]string{"id": id.String()})
		w := httptest.NewRecorder()
		NewVehicleHandler(svc, auditor, zap.NewNop()).HandleDelete(w, asCaller(req, profile, dealership))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, []string{"vehicle_deleted"}, auditor.Actions())
		assert.Equal(t, profile.ID, auditor.actors[0].UserID)
	})
}
