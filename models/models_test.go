package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtauto/dealer-admin/internal/auth"
)

func TestNewDealership(t *testing.T) {
	d := NewDealership("RT Auto Sales", "rt-auto")

	assert.NotEqual(t, uuid.Nil, d.ID)
	assert.Equal(t, "RT Auto Sales", d.Name)
	assert.Equal(t, d.CreatedAt, d.UpdatedAt)
	assert.Equal(t, "dealerships", d.TableName())

	summary := d.Summary()
	assert.Equal(t, d.ID.String(), summary.ID)
	assert.Equal(t, "RT Auto Sales", summary.Name)
}

func TestProfile_Identity(t *testing.T) {
	dealershipID := uuid.New()
	p := NewProfile("sam@rtauto.test", "hash", dealershipID, auth.RoleManager)
	p.FirstName = "sam"
	p.LastName = "rivera"

	id := p.Identity()
	assert.Equal(t, p.ID.String(), id.ID)
	assert.Equal(t, auth.RoleManager, id.Role)
	assert.Equal(t, dealershipID.String(), id.DealershipID)
	assert.Equal(t, "SR", p.Initials())

	p.DealershipID = nil
	assert.Empty(t, p.Identity().DealershipID)
}

func TestProfile_PasswordHashNotSerialized(t *testing.T) {
	p := NewProfile("sam@rtauto.test", "$2a$10$secret", uuid.New(), auth.RoleViewer)
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "password")
}

func TestBuildSlug(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		make  string
		model string
		vin   string
		want  string
	}{
		{"basic", 2021, "Toyota", "Camry", "4T1BF1FK5MU123456", "2021-toyota-camry-mu123456"},
		{"whitespace collapses", 2019, "Land Rover", "Range  Rover Sport", "SALWR2RV0KA812345", "2019-land-rover-range-rover-sport-ka812345"},
		{"short vin", 2020, "Ford", "F-150", "ABC", "2020-ford-f-150-abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildSlug(tt.year, tt.make, tt.model, tt.vin))
		})
	}
}

func TestVehicle_Normalize(t *testing.T) {
	v := &Vehicle{VIN: " 4t1bf1fk5mu123456 ", Year: 2021, Make: "Toyota", Model: "Camry", StockNumber: " A100 "}
	v.Normalize()

	assert.Equal(t, "4T1BF1FK5MU123456", v.VIN)
	assert.Equal(t, "A100", v.StockNumber)
	assert.Equal(t, "2021-toyota-camry-mu123456", v.Slug)
	assert.Equal(t, VehicleStatusActive, v.Status)
}

func TestVehicle_Matches(t *testing.T) {
	v := &Vehicle{Year: 2018, Make: "Honda", Model: "Civic", Trim: "EX", StockNumber: "R2041", VIN: "2HGFC2F59JH512345"}

	assert.True(t, v.Matches(""))
	assert.True(t, v.Matches("civic"))
	assert.True(t, v.Matches("2018 honda"))
	assert.True(t, v.Matches("r2041"))
	assert.True(t, v.Matches("jh512"))
	assert.False(t, v.Matches("accord"))
	assert.Equal(t, "2018 Honda Civic EX", v.Title())
}

func TestVehicle_PrimaryPhotoURL(t *testing.T) {
	v := &Vehicle{}
	assert.Empty(t, v.PrimaryPhotoURL())

	v.Photos = []VehiclePhoto{
		{URL: "c.jpg", SortOrder: 2},
		{URL: "a.jpg", SortOrder: 0},
		{URL: "b.jpg", SortOrder: 1},
	}
	assert.Equal(t, "a.jpg", v.PrimaryPhotoURL())

	v.Photos[2].IsPrimary = true
	assert.Equal(t, "b.jpg", v.PrimaryPhotoURL())

	v.SortPhotos()
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, []string{v.Photos[0].URL, v.Photos[1].URL, v.Photos[2].URL})
}

func TestVehicleStatus(t *testing.T) {
	assert.Equal(t, "Pending Sale", VehicleStatusPendingSale.Label())
	assert.Equal(t, "Active", VehicleStatusActive.Label())
	assert.Equal(t, "In Transit", VehicleStatusInTransit.Label())
	assert.True(t, VehicleStatusWholesale.IsValid())
	assert.False(t, VehicleStatus("scrapped").IsValid())
}

func TestAuditLog_Builder(t *testing.T) {
	dealershipID := uuid.New()
	userID := uuid.New()
	vehicleID := uuid.New()

	log := NewAuditLog(AuditActionVehicleDeleted, "vehicle").
		WithDealership(dealershipID).
		WithUser(userID).
		WithResource(vehicleID).
		WithDetails(map[string]string{"vin": "4T1BF1FK5MU123456"}).
		WithRequest("req-1", "10.0.0.1", "curl/8.0")

	assert.NotEqual(t, uuid.Nil, log.ID)
	assert.Equal(t, dealershipID, *log.DealershipID)
	assert.Equal(t, userID, *log.UserID)
	assert.Equal(t, vehicleID, *log.ResourceID)
	assert.JSONEq(t, `{"vin":"4T1BF1FK5MU123456"}`, string(log.Details))
	assert.Equal(t, "req-1", log.RequestID)
	assert.Equal(t, "audit_logs", log.TableName())
}
