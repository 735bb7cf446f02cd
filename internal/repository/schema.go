package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS device_requests (
	id               UUID PRIMARY KEY,
	requested_by     UUID NOT NULL REFERENCES users(id),
	pair_code        TEXT NOT NULL,
	status           TEXT NOT NULL,
	scheme           TEXT NOT NULL,
	expires_at       TIMESTAMPTZ,
	paired_device_id UUID,
	requested_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_device_requests_pair_code
	ON device_requests (pair_code);
CREATE INDEX IF NOT EXISTS idx_device_requests_owner
	ON device_requests (requested_by, requested_at DESC);

CREATE TABLE IF NOT EXISTS missions (
	id           UUID PRIMARY KEY,
	request_id   UUID NOT NULL REFERENCES device_requests(id),
	requested_by UUID NOT NULL REFERENCES users(id),
	device_id    UUID NOT NULL,
	payload      JSONB NOT NULL,
	payload_path TEXT NOT NULL,
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	delivered_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_missions_owner_status
	ON missions (requested_by, status, created_at DESC);

CREATE TABLE IF NOT EXISTS request_images (
	id                UUID PRIMARY KEY,
	request_id        UUID NOT NULL REFERENCES device_requests(id),
	requested_by      UUID NOT NULL REFERENCES users(id),
	storage_path      TEXT NOT NULL,
	original_filename TEXT NOT NULL,
	content_type      TEXT NOT NULL,
	uploaded_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_request_images_owner
	ON request_images (requested_by, uploaded_at DESC);
`

// Migrate applies the schema. Statements are idempotent so this runs on
// every startup.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
