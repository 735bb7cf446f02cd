package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// HubMessage is the frame pushed to a connected device.
type HubMessage struct {
	Type      string `json:"type"`
	MissionID string `json:"mission_id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Hub tracks one WebSocket connection per owner. It exists only to nudge a
// connected device into polling as soon as a mission is queued; delivery is
// best-effort and polling remains the source of truth.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*websocket.Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{connections: make(map[string]*websocket.Conn)}
}

// Register registers a device connection for an owner, replacing any
// previous one.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.connections[userID]; ok {
		existing.Close()
	}
	h.connections[userID] = conn

	log.Info().Str("user_id", userID).Msg("Device connection registered")
}

// Unregister removes the owner's connection if it is still the given one.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.connections[userID]; ok && current == conn {
		current.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("Device connection unregistered")
	}
}

// IsOnline checks whether the owner has a connected device.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.connections[userID]
	return ok
}

// NotifyMissionQueued pushes a mission-queued nudge to the owner's device.
func (h *Hub) NotifyMissionQueued(userID, missionID string) error {
	return h.send(userID, HubMessage{
		Type:      "mission_queued",
		MissionID: missionID,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (h *Hub) send(userID string, msg HubMessage) error {
	h.mu.RLock()
	conn, ok := h.connections[userID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no device connected for user %s", userID)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal hub message: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.Unregister(userID, conn)
		return fmt.Errorf("failed to send hub message: %w", err)
	}

	return nil
}
