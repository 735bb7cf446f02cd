package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/InverseCodex/agrivision-website-v2/internal/apperr"
	"github.com/InverseCodex/agrivision-website-v2/internal/config"
	"github.com/InverseCodex/agrivision-website-v2/internal/models"
	"github.com/InverseCodex/agrivision-website-v2/internal/storage"
)

// Microsecond precision: created_at round-trips through a timestamptz
// column, so the path must never carry digits the row cannot store.
const missionPathTimeFormat = "20060102T150405.000000"

// MissionService owns the mission mailbox: enqueue by the user's session,
// poll/ack by the device. The pending -> delivered transition is driven only
// by Ack; Poll and Download never mutate.
type MissionService struct {
	missions MissionStore
	requests RequestStore
	blobs    storage.BlobStore
	mode     string
}

// NewMissionService creates a new mission service. mode selects the mailbox
// semantics (config.MailboxSingle or config.MailboxFIFO).
func NewMissionService(missions MissionStore, requests RequestStore, blobs storage.BlobStore, mode string) *MissionService {
	return &MissionService{
		missions: missions,
		requests: requests,
		blobs:    blobs,
		mode:     mode,
	}
}

type missionTarget struct {
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
	AltM *float64 `json:"alt_m"`
}

// Enqueue validates the payload, resolves the caller's most recent paired
// device and queues the mission for it. The payload bytes are also written
// to the blob store so the device can download them separately from the
// poll response.
func (s *MissionService) Enqueue(ctx context.Context, userID string, payload json.RawMessage) (*models.Mission, error) {
	if userID == "" {
		return nil, apperr.New(apperr.CodeValidation, "user_id is required")
	}

	var doc struct {
		Target *missionTarget `json:"target"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, err, "mission payload is not valid JSON")
	}
	if doc.Target == nil || doc.Target.Lat == nil || doc.Target.Lng == nil || doc.Target.AltM == nil {
		return nil, apperr.New(apperr.CodeValidation, "target.lat, target.lng, target.alt_m required")
	}

	req, err := s.requests.LatestPaired(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil, apperr.New(apperr.CodeNoDevice, "no paired device found")
		}
		return nil, err
	}
	if req.PairedDeviceID == nil {
		return nil, apperr.New(apperr.CodeState, "paired request has no device id")
	}

	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	path := missionPayloadPath(userID, createdAt)

	// Blob before row: a failed insert leaves an unreferenced object, while
	// the reverse order would surface a mission whose download cannot succeed.
	if _, err := s.blobs.Put(ctx, path, payload, "application/json"); err != nil {
		return nil, err
	}

	m := &models.Mission{
		ID:          uuid.New().String(),
		RequestID:   req.ID,
		RequestedBy: userID,
		DeviceID:    *req.PairedDeviceID,
		Payload:     payload,
		PayloadPath: path,
		Status:      models.MissionPending,
		CreatedAt:   createdAt,
	}

	if err := s.missions.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to queue mission: %w", err)
	}

	return m, nil
}

// PollLatest returns the single pending mission currently surfaced to the
// owner's device, or (nil, nil) when the mailbox is empty. In single-slot
// mode only the newest pending mission is ever visible; in fifo mode
// missions drain oldest-first.
func (s *MissionService) PollLatest(ctx context.Context, userID string) (*models.Mission, error) {
	if userID == "" {
		return nil, apperr.New(apperr.CodeValidation, "user_id is required")
	}
	return s.missions.NextPending(ctx, userID, s.mode == config.MailboxFIFO)
}

// Ack marks a mission delivered. The transition is one conditional update
// scoped by mission id, owner and pending status; a miss is then
// disambiguated so a second ack is reported distinctly and an ack against a
// foreign mission changes nothing.
func (s *MissionService) Ack(ctx context.Context, userID, missionID string) error {
	if userID == "" || missionID == "" {
		return apperr.New(apperr.CodeValidation, "mission_id and user_id are required")
	}

	won, err := s.missions.MarkDelivered(ctx, missionID, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to ack mission: %w", err)
	}
	if won {
		return nil
	}

	m, err := s.missions.GetByID(ctx, missionID)
	if err != nil {
		return err
	}
	if m.RequestedBy != userID {
		return apperr.New(apperr.CodeForbidden, "mission belongs to another user")
	}
	if m.Status == models.MissionDelivered {
		return apperr.New(apperr.CodeAlreadyDelivered, "mission already delivered")
	}
	return apperr.New(apperr.CodeState, "mission not pending (status=%s)", m.Status)
}

// Download returns the stored payload bytes for the mission created by
// userID at requestedAt. The blob path is derived, not looked up, so this
// reads nothing from the ledger and never touches mission status.
func (s *MissionService) Download(ctx context.Context, userID string, requestedAt time.Time) ([]byte, error) {
	if userID == "" {
		return nil, apperr.New(apperr.CodeValidation, "requested_by is required")
	}
	return s.blobs.Get(ctx, missionPayloadPath(userID, requestedAt))
}

// missionPayloadPath is the deterministic blob key for a mission payload.
// Both Enqueue and Download derive it from (owner, creation time), which is
// what makes download possible without a row read.
func missionPayloadPath(userID string, createdAt time.Time) string {
	return fmt.Sprintf("missions/%s/%s/mission.json", userID,
		createdAt.UTC().Truncate(time.Microsecond).Format(missionPathTimeFormat))
}
