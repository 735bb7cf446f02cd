package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/InverseCodex/agrivision-website-v2/internal/apperr"
	"github.com/InverseCodex/agrivision-website-v2/internal/models"
)

// RequestRepository handles database operations for device requests
type RequestRepository struct {
	db *pgxpool.Pool
}

// NewRequestRepository creates a new device-request repository
func NewRequestRepository(db *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, requested_by, pair_code, status, scheme, expires_at, paired_device_id, requested_at`

func scanRequest(row pgx.Row) (*models.DeviceRequest, error) {
	var req models.DeviceRequest
	err := row.Scan(
		&req.ID, &req.RequestedBy, &req.PairCode, &req.Status, &req.Scheme,
		&req.ExpiresAt, &req.PairedDeviceID, &req.RequestedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Wrap(apperr.CodeNotFound, err, "device request not found")
		}
		return nil, fmt.Errorf("failed to scan device request: %w", err)
	}
	return &req, nil
}

// Create inserts a new device request row
func (r *RequestRepository) Create(ctx context.Context, req *models.DeviceRequest) error {
	query := `
		INSERT INTO device_requests (id, requested_by, pair_code, status, scheme, expires_at, paired_device_id, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		req.ID, req.RequestedBy, req.PairCode, req.Status, req.Scheme,
		req.ExpiresAt, req.PairedDeviceID, req.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create device request: %w", err)
	}
	return nil
}

// GetByID retrieves a device request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.DeviceRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM device_requests WHERE id = $1`, requestColumns)
	return scanRequest(r.db.QueryRow(ctx, query, id))
}

// GetByPairCode retrieves the most recent device request for a pair code.
// Codes are only unique among pending rows, so the newest row wins.
func (r *RequestRepository) GetByPairCode(ctx context.Context, pairCode string) (*models.DeviceRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM device_requests
		WHERE pair_code = $1
		ORDER BY requested_at DESC
		LIMIT 1
	`, requestColumns)
	return scanRequest(r.db.QueryRow(ctx, query, pairCode))
}

// LatestPaired retrieves the owner's most recently created paired request.
func (r *RequestRepository) LatestPaired(ctx context.Context, userID string) (*models.DeviceRequest, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM device_requests
		WHERE requested_by = $1 AND status = $2
		ORDER BY requested_at DESC
		LIMIT 1
	`, requestColumns)
	return scanRequest(r.db.QueryRow(ctx, query, userID, models.RequestPaired))
}

// Pair transitions a request from pending to paired, binding the device id.
// The update is conditioned on the row still being pending so concurrent
// connects cannot both succeed; the return value reports whether this caller
// won the transition.
func (r *RequestRepository) Pair(ctx context.Context, id, deviceID string) (bool, error) {
	query := `
		UPDATE device_requests
		SET status = $1, paired_device_id = $2
		WHERE id = $3 AND status = $4
	`
	tag, err := r.db.Exec(ctx, query, models.RequestPaired, deviceID, id, models.RequestPending)
	if err != nil {
		return false, fmt.Errorf("failed to pair device request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Expire transitions a request from pending to expired. Conditional for the
// same reason as Pair: the flip must happen exactly once.
func (r *RequestRepository) Expire(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE device_requests
		SET status = $1
		WHERE id = $2 AND status = $3
	`
	tag, err := r.db.Exec(ctx, query, models.RequestExpired, id, models.RequestPending)
	if err != nil {
		return false, fmt.Errorf("failed to expire device request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
