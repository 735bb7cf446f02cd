package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/InverseCodex/agrivision-website-v2/internal/apperr"
	"github.com/InverseCodex/agrivision-website-v2/internal/models"
)

// Pair codes exclude 0/O/1/I so they survive being read off a screen and
// typed on a device keypad.
const (
	pairCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	pairCodeDigits   = "0123456789"
	pairCodeLetters  = 4
	pairCodeNumbers  = 4
)

// PairingService owns the device-request lifecycle: pending -> paired or
// pending -> expired.
type PairingService struct {
	requests RequestStore
	users    UserStore
	codeTTL  time.Duration
}

// NewPairingService creates a new pairing service
func NewPairingService(requests RequestStore, users UserStore, codeTTL time.Duration) *PairingService {
	return &PairingService{
		requests: requests,
		users:    users,
		codeTTL:  codeTTL,
	}
}

// CreateRequest opens a new pending pairing request for the user and returns
// it with a freshly generated pair code.
func (s *PairingService) CreateRequest(ctx context.Context, userID string) (*models.DeviceRequest, error) {
	if userID == "" {
		return nil, apperr.New(apperr.CodeValidation, "user_id is required")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.codeTTL)

	req := &models.DeviceRequest{
		ID:          uuid.New().String(),
		RequestedBy: userID,
		PairCode:    generatePairCode(),
		Status:      models.RequestPending,
		Scheme:      models.SchemeCode,
		ExpiresAt:   &expiresAt,
		RequestedAt: now,
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create pairing request: %w", err)
	}

	return req, nil
}

// Connect binds a device to the pending request identified by pairCode. The
// pending -> paired transition is a conditional update, so of two devices
// racing on the same code exactly one wins; the loser sees a state error.
func (s *PairingService) Connect(ctx context.Context, pairCode string) (*models.DeviceRequest, error) {
	if pairCode == "" {
		return nil, apperr.New(apperr.CodeValidation, "pair_code is required")
	}

	req, err := s.requests.GetByPairCode(ctx, pairCode)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case models.RequestPending:
		// fall through to the expiry check
	case models.RequestExpired:
		return nil, apperr.New(apperr.CodeExpired, "pair_code expired")
	default:
		return nil, apperr.New(apperr.CodeState, "request not pending (status=%s)", req.Status)
	}

	// Nothing sweeps expired rows, so every read that branches on status
	// performs the lazy expiry check itself.
	if req.ExpiresAt != nil && time.Now().UTC().After(*req.ExpiresAt) {
		if _, err := s.requests.Expire(ctx, req.ID); err != nil {
			return nil, fmt.Errorf("failed to expire pairing request: %w", err)
		}
		return nil, apperr.New(apperr.CodeExpired, "pair_code expired")
	}

	deviceID := uuid.New().String()
	won, err := s.requests.Pair(ctx, req.ID, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to pair device: %w", err)
	}
	if !won {
		return nil, apperr.New(apperr.CodeState, "request no longer pending")
	}

	req.Status = models.RequestPaired
	req.PairedDeviceID = &deviceID
	return req, nil
}

// ConnectDirect creates an already-paired request for the user, skipping the
// code exchange. This path proves nothing beyond knowledge of the user id,
// so it is only exposed to callers already authenticated as that user.
func (s *PairingService) ConnectDirect(ctx context.Context, userID string) (*models.DeviceRequest, error) {
	if userID == "" {
		return nil, apperr.New(apperr.CodeValidation, "user_id is required")
	}

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return nil, apperr.New(apperr.CodeNotFound, "user not found")
	}

	deviceID := uuid.New().String()
	req := &models.DeviceRequest{
		ID:             uuid.New().String(),
		RequestedBy:    userID,
		PairCode:       "USERLINK-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:6],
		Status:         models.RequestPaired,
		Scheme:         models.SchemeUserLink,
		PairedDeviceID: &deviceID,
		RequestedAt:    time.Now().UTC(),
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create userlink request: %w", err)
	}

	return req, nil
}

// generatePairCode produces a code like "KM3X-7204".
func generatePairCode() string {
	var b strings.Builder
	for i := 0; i < pairCodeLetters; i++ {
		b.WriteByte(pairCodeAlphabet[randIndex(len(pairCodeAlphabet))])
	}
	b.WriteByte('-')
	for i := 0; i < pairCodeNumbers; i++ {
		b.WriteByte(pairCodeDigits[randIndex(len(pairCodeDigits))])
	}
	return b.String()
}

func randIndex(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}
