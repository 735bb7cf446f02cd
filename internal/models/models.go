package models

import (
	"encoding/json"
	"time"
)

// DeviceRequest status lifecycle: pending -> paired | expired. Rows are never
// deleted.
const (
	RequestPending = "pending"
	RequestPaired  = "paired"
	RequestExpired = "expired"
)

// Pairing schemes. SchemeCode is the canonical code-exchange flow;
// SchemeUserLink is the permissive direct per-user variant.
const (
	SchemeCode     = "code"
	SchemeUserLink = "userlink"
)

// Mission status lifecycle: pending -> delivered.
const (
	MissionPending   = "pending"
	MissionDelivered = "delivered"
)

// User represents a registered account
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// DeviceRequest represents one pairing attempt between a user and a device
type DeviceRequest struct {
	ID             string     `json:"request_id"`
	RequestedBy    string     `json:"requested_by"`
	PairCode       string     `json:"pair_code"`
	Status         string     `json:"status"`
	Scheme         string     `json:"scheme"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	PairedDeviceID *string    `json:"device_id,omitempty"`
	RequestedAt    time.Time  `json:"requested_at"`
}

// Mission represents one queued task payload for a paired device
type Mission struct {
	ID          string          `json:"mission_id"`
	RequestID   string          `json:"request_id"`
	RequestedBy string          `json:"requested_by"`
	DeviceID    string          `json:"device_id"`
	Payload     json.RawMessage `json:"mission"`
	PayloadPath string          `json:"-"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
}

// Image represents an image uploaded by a paired device
type Image struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"request_id"`
	RequestedBy      string    `json:"requested_by"`
	StoragePath      string    `json:"image_path"`
	OriginalFilename string    `json:"filename"`
	ContentType      string    `json:"content_type"`
	UploadedAt       time.Time `json:"uploaded_at"`
}
