package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/InverseCodex/agrivision-website-v2/internal/middleware"
	"github.com/InverseCodex/agrivision-website-v2/internal/services"
)

// PairingHandler handles pairing-related HTTP requests
type PairingHandler struct {
	pairingService *services.PairingService
}

// NewPairingHandler creates a new pairing handler
func NewPairingHandler(pairingService *services.PairingService) *PairingHandler {
	return &PairingHandler{pairingService: pairingService}
}

// CreateRequest handles POST /api/v1/pairing/create
func (h *PairingHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	req, err := h.pairingService.CreateRequest(ctx, userID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("request_id", req.ID).
		Msg("Pairing request created")

	respondJSON(w, http.StatusOK, map[string]any{
		"request_id": req.ID,
		"pair_code":  req.PairCode,
		"expires_at": req.ExpiresAt,
		"status":     req.Status,
	})
}

// ConnectRequest is the request body for device connect
type ConnectRequest struct {
	PairCode string `json:"pair_code"`
}

// Connect handles POST /api/v1/pairing/connect
func (h *PairingHandler) Connect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dr, err := h.pairingService.Connect(ctx, req.PairCode)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	log.Info().
		Str("request_id", dr.ID).
		Str("device_id", *dr.PairedDeviceID).
		Msg("Device paired")

	respondJSON(w, http.StatusOK, map[string]any{
		"message":      "paired",
		"request_id":   dr.ID,
		"device_id":    dr.PairedDeviceID,
		"requested_by": dr.RequestedBy,
		"requested_at": dr.RequestedAt,
	})
}

// ConnectDirectRequest is the request body for direct user-link pairing
type ConnectDirectRequest struct {
	UserID string `json:"user_id"`
}

// ConnectDirect handles POST /api/v1/pairing/connect_direct
func (h *PairingHandler) ConnectDirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ConnectDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dr, err := h.pairingService.ConnectDirect(ctx, req.UserID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	log.Info().
		Str("user_id", req.UserID).
		Str("request_id", dr.ID).
		Msg("Device linked directly")

	respondJSON(w, http.StatusOK, map[string]any{
		"message":    "paired",
		"request_id": dr.ID,
		"device_id":  dr.PairedDeviceID,
	})
}
