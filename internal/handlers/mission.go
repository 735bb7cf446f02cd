package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/InverseCodex/agrivision-website-v2/internal/middleware"
	"github.com/InverseCodex/agrivision-website-v2/internal/services"
)

// MissionHandler handles mission mailbox HTTP requests
type MissionHandler struct {
	missionService *services.MissionService
	hub            *services.Hub
}

// NewMissionHandler creates a new mission handler
func NewMissionHandler(missionService *services.MissionService, hub *services.Hub) *MissionHandler {
	return &MissionHandler{
		missionService: missionService,
		hub:            hub,
	}
}

// Create handles POST /api/v1/missions. The body is the mission document,
// optionally wrapped in a {"mission": ...} envelope.
func (h *MissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	payload := body
	var envelope struct {
		Mission json.RawMessage `json:"mission"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Mission) > 0 {
		payload = envelope.Mission
	}

	m, err := h.missionService.Enqueue(ctx, userID, payload)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("mission_id", m.ID).
		Str("device_id", m.DeviceID).
		Msg("Mission queued")

	// Best effort: a connected device polls immediately instead of waiting
	// out its poll interval.
	if h.hub.IsOnline(userID) {
		if err := h.hub.NotifyMissionQueued(userID, m.ID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to nudge device")
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":      "mission queued",
		"mission_id":   m.ID,
		"request_id":   m.RequestID,
		"device_id":    m.DeviceID,
		"requested_by": m.RequestedBy,
	})
}

// Latest handles GET /api/v1/missions/latest?user_id=...
func (h *MissionHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.URL.Query().Get("user_id")

	m, err := h.missionService.PollLatest(ctx, userID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	if m == nil {
		respondJSON(w, http.StatusOK, map[string]any{"mission": nil})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"mission_id": m.ID,
		"mission":    m.Payload,
		"status":     m.Status,
		"created_at": m.CreatedAt,
	})
}

// Download handles GET /api/v1/missions/download?requested_by=...&requested_at=...
// and streams the raw payload bytes.
func (h *MissionHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.URL.Query().Get("requested_by")
	requestedAtRaw := r.URL.Query().Get("requested_at")

	requestedAt, err := time.Parse(time.RFC3339Nano, requestedAtRaw)
	if err != nil {
		respondError(w, "requested_at must be an RFC 3339 timestamp", http.StatusBadRequest)
		return
	}

	data, err := h.missionService.Download(ctx, userID, requestedAt)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="mission.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// AckRequest is the request body for mission acknowledgement
type AckRequest struct {
	MissionID string `json:"mission_id"`
	UserID    string `json:"user_id"`
}

// Ack handles POST /api/v1/missions/ack
func (h *MissionHandler) Ack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.missionService.Ack(ctx, req.UserID, req.MissionID); err != nil {
		respondAppError(w, r, err)
		return
	}

	log.Info().
		Str("user_id", req.UserID).
		Str("mission_id", req.MissionID).
		Msg("Mission acked")

	respondJSON(w, http.StatusOK, map[string]any{
		"message":    "acked",
		"mission_id": req.MissionID,
	})
}
