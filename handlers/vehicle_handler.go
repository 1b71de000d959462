package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/middleware"
	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/repositories"
	"github.com/rtauto/dealer-admin/services/audit"
	"github.com/rtauto/dealer-admin/services/inventory"
	"github.com/rtauto/dealer-admin/utils"
)

// InventoryService manages a dealership's vehicles.
type InventoryService interface {
	List(ctx context.Context, dealershipID uuid.UUID, p inventory.ListParams) (*inventory.Page, error)
	Get(ctx context.Context, dealershipID, id uuid.UUID) (*models.Vehicle, error)
	Create(ctx context.Context, dealershipID uuid.UUID, v *models.Vehicle) (*models.Vehicle, error)
	Update(ctx context.Context, dealershipID, id uuid.UUID, v *models.Vehicle) (*models.Vehicle, error)
	Delete(ctx context.Context, dealershipID, id uuid.UUID) (*models.Vehicle, error)
}

// VehicleAuditor records inventory changes.
type VehicleAuditor interface {
	LogVehicleChange(actor audit.Actor, action models.AuditAction, v *models.Vehicle) error
}

// VehicleRequest is the body of POST /vehicles and PUT /vehicles/{id}
type VehicleRequest struct {
	VIN             string     `json:"vin" validate:"required,vin"`
	StockNumber     string     `json:"stock_number" validate:"max=32"`
	Year            int        `json:"year" validate:"required,gte=1900"`
	Make            string     `json:"make" validate:"required,max=64"`
	Model           string     `json:"model" validate:"required,max=64"`
	Trim            string     `json:"trim" validate:"max=64"`
	BodyType        string     `json:"body_type" validate:"body_type"`
	Engine          string     `json:"engine" validate:"max=128"`
	Transmission    string     `json:"transmission" validate:"max=64"`
	Drivetrain      string     `json:"drivetrain" validate:"max=64"`
	FuelType        string     `json:"fuel_type" validate:"fuel_type"`
	ExteriorColor   string     `json:"exterior_color" validate:"max=64"`
	InteriorColor   string     `json:"interior_color" validate:"max=64"`
	Mileage         int        `json:"mileage" validate:"gte=0"`
	MilesExempt     bool       `json:"miles_exempt"`
	DoorCount       *int       `json:"door_count" validate:"omitempty,gte=1,lte=6"`
	SeatingCapacity *int       `json:"seating_capacity" validate:"omitempty,gte=1,lte=15"`
	AskingPrice     float64    `json:"asking_price" validate:"gte=0"`
	InternetPrice   *float64   `json:"internet_price" validate:"omitempty,gte=0"`
	Cost            *float64   `json:"cost" validate:"omitempty,gte=0"`
	Status          string     `json:"status" validate:"omitempty,vehicle_status"`
	IsFeatured      bool       `json:"is_featured"`
	Description     string     `json:"description" validate:"max=5000"`
	Tagline         string     `json:"tagline" validate:"max=160"`
	DecodeString    string     `json:"decode_string" validate:"max=256"`
	InDate          *time.Time `json:"in_date"`
}

func (req *VehicleRequest) toModel() *models.Vehicle {
	return &models.Vehicle{
		VIN:             req.VIN,
		StockNumber:     req.StockNumber,
		Year:            req.Year,
		Make:            strings.TrimSpace(req.Make),
		Model:           strings.TrimSpace(req.Model),
		Trim:            strings.TrimSpace(req.Trim),
		BodyType:        req.BodyType,
		Engine:          req.Engine,
		Transmission:    req.Transmission,
		Drivetrain:      req.Drivetrain,
		FuelType:        req.FuelType,
		ExteriorColor:   req.ExteriorColor,
		InteriorColor:   req.InteriorColor,
		Mileage:         req.Mileage,
		MilesExempt:     req.MilesExempt,
		DoorCount:       req.DoorCount,
		SeatingCapacity: req.SeatingCapacity,
		AskingPrice:     req.AskingPrice,
		InternetPrice:   req.InternetPrice,
		Cost:            req.Cost,
		Status:          models.VehicleStatus(req.Status),
		IsFeatured:      req.IsFeatured,
		Description:     req.Description,
		Tagline:         req.Tagline,
		DecodeString:    req.DecodeString,
		InDate:          req.InDate,
	}
}

// VehicleHandler handles inventory HTTP requests
type VehicleHandler struct {
	inventory InventoryService
	audit     VehicleAuditor
	logger    *zap.Logger
}

// NewVehicleHandler creates a new VehicleHandler
func NewVehicleHandler(inventory InventoryService, audit VehicleAuditor, logger *zap.Logger) *VehicleHandler {
	return &VehicleHandler{
		inventory: inventory,
		audit:     audit,
		logger:    logger,
	}
}

// HandleList handles GET /vehicles?status=&sort=&asc=&page=&page_size=&q=
func (h *VehicleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	dealershipID, ok := callerDealership(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, err := h.inventory.List(r.Context(), dealershipID, inventory.ListParams{
		Status:    q.Get("status"),
		SortBy:    q.Get("sort"),
		Ascending: utils.QueryBool(r, "asc"),
		Page:      utils.QueryInt(r, "page", 0),
		PageSize:  utils.QueryInt(r, "page_size", repositories.DefaultPageSize),
		Query:     q.Get("q"),
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WritePage(w, page.Vehicles, page.Page, page.PageSize, page.Total, page.TotalPages)
}

// HandleGet handles GET /vehicles/{id}
func (h *VehicleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	dealershipID, ok := callerDealership(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	vehicle, err := h.inventory.Get(r.Context(), dealershipID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, vehicle)
}

// HandleCreate handles POST /vehicles
func (h *VehicleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	dealershipID, ok := callerDealership(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	vehicle, err := h.inventory.Create(r.Context(), dealershipID, req.toModel())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = h.audit.LogVehicleChange(middleware.ActorFromRequest(r), models.AuditActionVehicleCreated, vehicle)
	_ = utils.WriteCreated(w, vehicle)
}

// HandleUpdate handles PUT /vehicles/{id}
func (h *VehicleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	dealershipID, ok := callerDealership(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	vehicle, err := h.inventory.Update(r.Context(), dealershipID, id, req.toModel())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = h.audit.LogVehicleChange(middleware.ActorFromRequest(r), models.AuditActionVehicleUpdated, vehicle)
	_ = utils.WriteOK(w, vehicle)
}

// HandleDelete handles DELETE /vehicles/{id}
func (h *VehicleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	dealershipID, ok := callerDealership(w, r)
	if !ok {
		return
	}
	id, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	vehicle, err := h.inventory.Delete(r.Context(), dealershipID, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = h.audit.LogVehicleChange(middleware.ActorFromRequest(r), models.AuditActionVehicleDeleted, vehicle)
	utils.WriteNoContent(w)
}

func (h *VehicleHandler) decode(w http.ResponseWriter, r *http.Request) (*VehicleRequest, bool) {
	var req VehicleRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return nil, false
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return nil, false
	}
	return &req, true
}
