package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/InverseCodex/agrivision-website-v2/internal/middleware"
	"github.com/InverseCodex/agrivision-website-v2/internal/services"
)

const maxUploadBytes = 32 << 20

// ImageHandler handles image upload, history and analysis requests
type ImageHandler struct {
	imageService *services.ImageService
}

// NewImageHandler creates a new image handler
func NewImageHandler(imageService *services.ImageService) *ImageHandler {
	return &ImageHandler{imageService: imageService}
}

// Upload handles POST /api/v1/images (multipart: request_id, device_id?, image)
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	requestID := r.FormValue("request_id")
	deviceID := r.FormValue("device_id")

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, "request_id and image file required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, "Failed to read image file", http.StatusBadRequest)
		return
	}

	img, err := h.imageService.Upload(ctx, requestID, deviceID,
		header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	log.Info().
		Str("request_id", requestID).
		Str("image_id", img.ID).
		Str("image_path", img.StoragePath).
		Msg("Image uploaded")

	respondJSON(w, http.StatusOK, map[string]any{
		"message":    "uploaded",
		"request_id": img.RequestID,
		"image_path": img.StoragePath,
	})
}

// History handles GET /api/v1/images/history
func (h *ImageHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	images, err := h.imageService.History(ctx, userID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"images": images})
}

// AnalyzeRequest is the request body for analysis runs
type AnalyzeRequest struct {
	ImageID string `json:"image_id"`
}

// Analyze handles POST /api/v1/analysis/run
func (h *ImageHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.imageService.Analyze(ctx, userID, req.ImageID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("image_id", req.ImageID).
		Int("health_score", result.Metrics.HealthScore).
		Msg("Analysis completed")

	respondJSON(w, http.StatusOK, result)
}
