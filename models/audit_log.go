package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionSignIn         AuditAction = "sign_in"
	AuditActionSignInFailed   AuditAction = "sign_in_failed"
	AuditActionSignOut        AuditAction = "sign_out"
	AuditActionVehicleCreated AuditAction = "vehicle_created"
	AuditActionVehicleUpdated AuditAction = "vehicle_updated"
	AuditActionVehicleDeleted AuditAction = "vehicle_deleted"
	AuditActionPhotoUploaded  AuditAction = "photo_uploaded"
	AuditActionPhotoDeleted   AuditAction = "photo_deleted"
	AuditActionRoleChanged    AuditAction = "role_changed"
	AuditActionDealershipEdit AuditAction = "dealership_updated"
)

// AuditLog represents an audit trail entry
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	DealershipID *uuid.UUID      `json:"dealership_id,omitempty" db:"dealership_id"`
	UserID       *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"` // vehicle, photo, profile, session
	ResourceID   *uuid.UUID      `json:"resource_id,omitempty" db:"resource_id"`
	Details      json.RawMessage `json:"details" db:"details"`
	IPAddress    string          `json:"ip_address" db:"ip_address"`
	UserAgent    string          `json:"user_agent" db:"user_agent"`
	RequestID    string          `json:"request_id" db:"request_id"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction, resourceType string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: resourceType,
		Timestamp:    time.Now(),
	}
}

func (a *AuditLog) WithDealership(dealershipID uuid.UUID) *AuditLog {
	a.DealershipID = &dealershipID
	return a
}

func (a *AuditLog) WithUser(userID uuid.UUID) *AuditLog {
	a.UserID = &userID
	return a
}

func (a *AuditLog) WithResource(resourceID uuid.UUID) *AuditLog {
	a.ResourceID = &resourceID
	return a
}

// WithDetails marshals details into the JSONB column. Unmarshalable values are dropped.
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}
