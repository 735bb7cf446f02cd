package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/InverseCodex/agrivision-website-v2/internal/apperr"
	"github.com/InverseCodex/agrivision-website-v2/internal/inference"
	"github.com/InverseCodex/agrivision-website-v2/internal/models"
	"github.com/InverseCodex/agrivision-website-v2/internal/storage"
)

// ImageService sequences the device -> user image path: upload from a paired
// device, history listing for the owner, and the synchronous analysis
// call-out to the model runner.
type ImageService struct {
	images   ImageStore
	requests RequestStore
	blobs    storage.BlobStore
	runner   inference.Runner
}

// NewImageService creates a new image service
func NewImageService(images ImageStore, requests RequestStore, blobs storage.BlobStore, runner inference.Runner) *ImageService {
	return &ImageService{
		images:   images,
		requests: requests,
		blobs:    blobs,
		runner:   runner,
	}
}

// Upload stores an image sent by a paired device and records its metadata
// under the request's owner.
func (s *ImageService) Upload(ctx context.Context, requestID, deviceID, filename, contentType string, data []byte) (*models.Image, error) {
	if requestID == "" || len(data) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "request_id and image file required")
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestPaired {
		return nil, apperr.New(apperr.CodeState, "request not paired (status=%s)", req.Status)
	}
	if deviceID != "" && req.PairedDeviceID != nil && deviceID != *req.PairedDeviceID {
		return nil, apperr.New(apperr.CodeForbidden, "device_id does not match paired device")
	}

	if filename == "" {
		filename = "image"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ext := strings.ToLower(filepath.Ext(filename))
	storagePath := fmt.Sprintf("%s/%s/%s%s", requestID, req.RequestedBy, uuid.New().String(), ext)

	if _, err := s.blobs.Put(ctx, storagePath, data, contentType); err != nil {
		return nil, err
	}

	img := &models.Image{
		ID:               uuid.New().String(),
		RequestID:        requestID,
		RequestedBy:      req.RequestedBy,
		StoragePath:      storagePath,
		OriginalFilename: filename,
		ContentType:      contentType,
		UploadedAt:       time.Now().UTC(),
	}

	if err := s.images.Create(ctx, img); err != nil {
		return nil, fmt.Errorf("failed to record image: %w", err)
	}

	return img, nil
}

// ImageView is an image record decorated with its public URL.
type ImageView struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	ImagePath  string    `json:"image_path"`
	RequestID  string    `json:"request_id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// History lists the owner's uploaded images, newest first.
func (s *ImageService) History(ctx context.Context, userID string) ([]ImageView, error) {
	if userID == "" {
		return nil, apperr.New(apperr.CodeValidation, "user_id is required")
	}

	images, err := s.images.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]ImageView, 0, len(images))
	for _, img := range images {
		views = append(views, ImageView{
			ID:         img.ID,
			URL:        s.blobs.PublicURL(img.StoragePath),
			ImagePath:  img.StoragePath,
			RequestID:  img.RequestID,
			Filename:   img.OriginalFilename,
			UploadedAt: img.UploadedAt,
		})
	}
	return views, nil
}

// AnalysisResult is the outcome of one inference run.
type AnalysisResult struct {
	OriginalURL string            `json:"original_url"`
	ResultURL   string            `json:"result_url"`
	Metrics     inference.Metrics `json:"metrics"`
}

// Analyze fetches the original image, runs the model on it and stores the
// annotated result. Only the image's owner may run analysis.
func (s *ImageService) Analyze(ctx context.Context, userID, imageID string) (*AnalysisResult, error) {
	if imageID == "" {
		return nil, apperr.New(apperr.CodeValidation, "image_id is required")
	}

	img, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if img.RequestedBy != userID {
		return nil, apperr.New(apperr.CodeForbidden, "image belongs to another user")
	}

	data, err := s.blobs.Get(ctx, img.StoragePath)
	if err != nil {
		return nil, err
	}

	result, metrics, err := s.runner.Infer(ctx, data)
	if err != nil {
		return nil, err
	}

	resultPath := fmt.Sprintf("results/%s/%s/%s.png", img.RequestID, img.RequestedBy, uuid.New().String())
	resultURL, err := s.blobs.Put(ctx, resultPath, result, "image/png")
	if err != nil {
		return nil, err
	}

	return &AnalysisResult{
		OriginalURL: s.blobs.PublicURL(img.StoragePath),
		ResultURL:   resultURL,
		Metrics:     metrics,
	}, nil
}
