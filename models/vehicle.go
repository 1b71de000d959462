package models

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// VehicleStatus is the sales lifecycle state of a unit.
type VehicleStatus string

const (
	VehicleStatusActive      VehicleStatus = "active"
	VehicleStatusInactive    VehicleStatus = "inactive"
	VehicleStatusSold        VehicleStatus = "sold"
	VehicleStatusPendingSale VehicleStatus = "pending_sale"
	VehicleStatusInTransit   VehicleStatus = "in_transit"
	VehicleStatusWholesale   VehicleStatus = "wholesale"
)

// VehicleStatuses lists every status in display order.
var VehicleStatuses = []VehicleStatus{
	VehicleStatusActive,
	VehicleStatusInactive,
	VehicleStatusSold,
	VehicleStatusPendingSale,
	VehicleStatusInTransit,
	VehicleStatusWholesale,
}

var titleCaser = cases.Title(language.English)

// Label renders the status for display, e.g. "Pending Sale".
func (s VehicleStatus) Label() string {
	return titleCaser.String(strings.ReplaceAll(string(s), "_", " "))
}

func (s VehicleStatus) IsValid() bool {
	for _, v := range VehicleStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// BodyTypes is the closed set of body styles.
var BodyTypes = []string{"sedan", "suv", "truck", "coupe", "convertible", "wagon", "van", "hatchback", "crossover", "other"}

// FuelTypes is the closed set of fuel labels.
var FuelTypes = []string{"Gasoline", "Diesel", "Electric", "Hybrid", "Plug-in Hybrid", "Flex Fuel"}

// Vehicle is one unit of dealership inventory.
type Vehicle struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	DealershipID    uuid.UUID      `json:"dealership_id" db:"dealership_id"`
	VIN             string         `json:"vin" db:"vin"`
	StockNumber     string         `json:"stock_number" db:"stock_number"`
	Year            int            `json:"year" db:"year"`
	Make            string         `json:"make" db:"make"`
	Model           string         `json:"model" db:"model"`
	Trim            string         `json:"trim" db:"trim"`
	BodyType        string         `json:"body_type" db:"body_type"`
	Engine          string         `json:"engine" db:"engine"`
	Transmission    string         `json:"transmission" db:"transmission"`
	Drivetrain      string         `json:"drivetrain" db:"drivetrain"`
	FuelType        string         `json:"fuel_type" db:"fuel_type"`
	ExteriorColor   string         `json:"exterior_color" db:"exterior_color"`
	InteriorColor   string         `json:"interior_color" db:"interior_color"`
	Mileage         int            `json:"mileage" db:"mileage"`
	MilesExempt     bool           `json:"miles_exempt" db:"miles_exempt"`
	DoorCount       *int           `json:"door_count,omitempty" db:"door_count"`
	SeatingCapacity *int           `json:"seating_capacity,omitempty" db:"seating_capacity"`
	AskingPrice     float64        `json:"asking_price" db:"asking_price"`
	InternetPrice   *float64       `json:"internet_price,omitempty" db:"internet_price"`
	Cost            *float64       `json:"cost,omitempty" db:"cost"`
	Status          VehicleStatus  `json:"status" db:"status"`
	IsFeatured      bool           `json:"is_featured" db:"is_featured"`
	Description     string         `json:"description" db:"description"`
	Tagline         string         `json:"tagline" db:"tagline"`
	DecodeString    string         `json:"decode_string" db:"decode_string"`
	Slug            string         `json:"slug" db:"slug"`
	InDate          *time.Time     `json:"in_date,omitempty" db:"in_date"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
	Photos          []VehiclePhoto `json:"photos" db:"-"`
}

// TableName returns the table name for the Vehicle model
func (Vehicle) TableName() string {
	return "vehicles"
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// BuildSlug returns "{year}-{make}-{model}-{last 8 of vin}", lower-cased with
// whitespace runs collapsed to "-".
func BuildSlug(year int, vehicleMake, model, vin string) string {
	tail := vin
	if len(tail) > 8 {
		tail = tail[len(tail)-8:]
	}
	s := fmt.Sprintf("%d-%s-%s-%s", year, vehicleMake, model, tail)
	return whitespaceRun.ReplaceAllString(strings.ToLower(s), "-")
}

// Normalize upper-cases the VIN and recomputes the slug.
func (v *Vehicle) Normalize() {
	v.VIN = strings.ToUpper(strings.TrimSpace(v.VIN))
	v.StockNumber = strings.TrimSpace(v.StockNumber)
	v.Slug = BuildSlug(v.Year, v.Make, v.Model, v.VIN)
	if v.Status == "" {
		v.Status = VehicleStatusActive
	}
}

// Title is the "year make model trim" heading.
func (v *Vehicle) Title() string {
	return strings.TrimSpace(fmt.Sprintf("%d %s %s %s", v.Year, v.Make, v.Model, v.Trim))
}

// SearchText is the lower-cased haystack for inventory search.
func (v *Vehicle) SearchText() string {
	return strings.ToLower(fmt.Sprintf("%d %s %s %s %s %s", v.Year, v.Make, v.Model, v.Trim, v.StockNumber, v.VIN))
}

// Matches reports whether the vehicle contains query, case-insensitively.
// An empty query matches everything.
func (v *Vehicle) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return q == "" || strings.Contains(v.SearchText(), q)
}

// PrimaryPhotoURL returns the primary photo, else the lowest sort order, else "".
func (v *Vehicle) PrimaryPhotoURL() string {
	if len(v.Photos) == 0 {
		return ""
	}
	for _, p := range v.Photos {
		if p.IsPrimary {
			return p.URL
		}
	}
	best := v.Photos[0]
	for _, p := range v.Photos[1:] {
		if p.SortOrder < best.SortOrder {
			best = p
		}
	}
	return best.URL
}

// SortPhotos orders photos by sort order.
func (v *Vehicle) SortPhotos() {
	sort.SliceStable(v.Photos, func(i, j int) bool {
		return v.Photos[i].SortOrder < v.Photos[j].SortOrder
	})
}

// VehiclePhoto is an image stored in object storage.
type VehiclePhoto struct {
	ID         uuid.UUID `json:"id" db:"id"`
	VehicleID  uuid.UUID `json:"vehicle_id" db:"vehicle_id"`
	URL        string    `json:"url" db:"url"`
	StorageKey string    `json:"-" db:"storage_key"`
	IsPrimary  bool      `json:"is_primary" db:"is_primary"`
	SortOrder  int       `json:"sort_order" db:"sort_order"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the VehiclePhoto model
func (VehiclePhoto) TableName() string {
	return "vehicle_photos"
}
