package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/InverseCodex/agrivision-website-v2/internal/apperr"
	"github.com/InverseCodex/agrivision-website-v2/internal/models"
)

// MissionRepository handles database operations for missions
type MissionRepository struct {
	db *pgxpool.Pool
}

// NewMissionRepository creates a new mission repository
func NewMissionRepository(db *pgxpool.Pool) *MissionRepository {
	return &MissionRepository{db: db}
}

const missionColumns = `id, request_id, requested_by, device_id, payload, payload_path, status, created_at, delivered_at`

func scanMission(row pgx.Row) (*models.Mission, error) {
	var m models.Mission
	err := row.Scan(
		&m.ID, &m.RequestID, &m.RequestedBy, &m.DeviceID, &m.Payload,
		&m.PayloadPath, &m.Status, &m.CreatedAt, &m.DeliveredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Wrap(apperr.CodeNotFound, err, "mission not found")
		}
		return nil, fmt.Errorf("failed to scan mission: %w", err)
	}
	return &m, nil
}

// Create inserts a new mission row
func (r *MissionRepository) Create(ctx context.Context, m *models.Mission) error {
	query := `
		INSERT INTO missions (id, request_id, requested_by, device_id, payload, payload_path, status, created_at, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		m.ID, m.RequestID, m.RequestedBy, m.DeviceID, m.Payload,
		m.PayloadPath, m.Status, m.CreatedAt, m.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create mission: %w", err)
	}
	return nil
}

// GetByID retrieves a mission by ID
func (r *MissionRepository) GetByID(ctx context.Context, id string) (*models.Mission, error) {
	query := fmt.Sprintf(`SELECT %s FROM missions WHERE id = $1`, missionColumns)
	return scanMission(r.db.QueryRow(ctx, query, id))
}

// NextPending retrieves the single pending mission surfaced to a polling
// device. oldestFirst selects fifo ordering; otherwise the newest pending
// row wins. Returns (nil, nil) when the mailbox is empty.
func (r *MissionRepository) NextPending(ctx context.Context, userID string, oldestFirst bool) (*models.Mission, error) {
	order := "DESC"
	if oldestFirst {
		order = "ASC"
	}
	query := fmt.Sprintf(`
		SELECT %s FROM missions
		WHERE requested_by = $1 AND status = $2
		ORDER BY created_at %s
		LIMIT 1
	`, missionColumns, order)

	m, err := scanMission(r.db.QueryRow(ctx, query, userID, models.MissionPending))
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// MarkDelivered transitions a mission from pending to delivered. The filter
// is the compound (id AND owner AND status) so the update can neither touch
// another owner's row nor re-set delivered_at on a delivered one. Returns
// whether a row transitioned.
func (r *MissionRepository) MarkDelivered(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	query := `
		UPDATE missions
		SET status = $1, delivered_at = $2
		WHERE id = $3 AND requested_by = $4 AND status = $5
	`
	tag, err := r.db.Exec(ctx, query, models.MissionDelivered, at, id, userID, models.MissionPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark mission delivered: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
