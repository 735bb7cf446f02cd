package services

import (
	"context"
	"time"

	"github.com/InverseCodex/agrivision-website-v2/internal/models"
)

// The services depend on narrow store contracts rather than the concrete
// pgx repositories so the pairing and mission logic can be tested against
// in-memory implementations.

// RequestStore persists device-request rows.
type RequestStore interface {
	Create(ctx context.Context, req *models.DeviceRequest) error
	GetByID(ctx context.Context, id string) (*models.DeviceRequest, error)
	GetByPairCode(ctx context.Context, pairCode string) (*models.DeviceRequest, error)
	LatestPaired(ctx context.Context, userID string) (*models.DeviceRequest, error)
	// Pair and Expire are conditional pending-only transitions; they report
	// whether the caller won the status change.
	Pair(ctx context.Context, id, deviceID string) (bool, error)
	Expire(ctx context.Context, id string) (bool, error)
}

// MissionStore persists mission rows.
type MissionStore interface {
	Create(ctx context.Context, m *models.Mission) error
	GetByID(ctx context.Context, id string) (*models.Mission, error)
	NextPending(ctx context.Context, userID string, oldestFirst bool) (*models.Mission, error)
	MarkDelivered(ctx context.Context, id, userID string, at time.Time) (bool, error)
}

// ImageStore persists uploaded-image records.
type ImageStore interface {
	Create(ctx context.Context, img *models.Image) error
	GetByID(ctx context.Context, id string) (*models.Image, error)
	ListByOwner(ctx context.Context, userID string) ([]*models.Image, error)
}

// UserStore persists user accounts.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Exists(ctx context.Context, id string) (bool, error)
}
