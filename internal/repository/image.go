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

// ImageRepository handles database operations for uploaded images
type ImageRepository struct {
	db *pgxpool.Pool
}

// NewImageRepository creates a new image repository
func NewImageRepository(db *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{db: db}
}

const imageColumns = `id, request_id, requested_by, storage_path, original_filename, content_type, uploaded_at`

// Create inserts a new image record
func (r *ImageRepository) Create(ctx context.Context, img *models.Image) error {
	query := `
		INSERT INTO request_images (id, request_id, requested_by, storage_path, original_filename, content_type, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		img.ID, img.RequestID, img.RequestedBy, img.StoragePath,
		img.OriginalFilename, img.ContentType, img.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create image record: %w", err)
	}
	return nil
}

// GetByID retrieves an image record by ID
func (r *ImageRepository) GetByID(ctx context.Context, id string) (*models.Image, error) {
	query := fmt.Sprintf(`SELECT %s FROM request_images WHERE id = $1`, imageColumns)
	var img models.Image
	err := r.db.QueryRow(ctx, query, id).Scan(
		&img.ID, &img.RequestID, &img.RequestedBy, &img.StoragePath,
		&img.OriginalFilename, &img.ContentType, &img.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Wrap(apperr.CodeNotFound, err, "image not found")
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &img, nil
}

// ListByOwner retrieves all image records for an owner, newest first.
func (r *ImageRepository) ListByOwner(ctx context.Context, userID string) ([]*models.Image, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM request_images
		WHERE requested_by = $1
		ORDER BY uploaded_at DESC
	`, imageColumns)
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []*models.Image
	for rows.Next() {
		var img models.Image
		err := rows.Scan(
			&img.ID, &img.RequestID, &img.RequestedBy, &img.StoragePath,
			&img.OriginalFilename, &img.ContentType, &img.UploadedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, &img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return images, nil
}
