// Package testutil provides in-memory store implementations used by service
// and handler tests in place of the pgx repositories.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/InverseCodex/agrivision-website-v2/internal/apperr"
	"github.com/InverseCodex/agrivision-website-v2/internal/models"
)

// MemRequests is an in-memory RequestStore.
type MemRequests struct {
	mu   sync.Mutex
	rows map[string]*models.DeviceRequest
}

func NewMemRequests() *MemRequests {
	return &MemRequests{rows: make(map[string]*models.DeviceRequest)}
}

func cloneRequest(r *models.DeviceRequest) *models.DeviceRequest {
	cp := *r
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		cp.ExpiresAt = &t
	}
	if r.PairedDeviceID != nil {
		s := *r.PairedDeviceID
		cp.PairedDeviceID = &s
	}
	return &cp
}

func (s *MemRequests) Create(_ context.Context, req *models.DeviceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[req.ID] = cloneRequest(req)
	return nil
}

func (s *MemRequests) GetByID(_ context.Context, id string) (*models.DeviceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[id]; ok {
		return cloneRequest(r), nil
	}
	return nil, apperr.New(apperr.CodeNotFound, "device request not found")
}

func (s *MemRequests) GetByPairCode(_ context.Context, pairCode string) (*models.DeviceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *models.DeviceRequest
	for _, r := range s.rows {
		if r.PairCode != pairCode {
			continue
		}
		if newest == nil || r.RequestedAt.After(newest.RequestedAt) {
			newest = r
		}
	}
	if newest == nil {
		return nil, apperr.New(apperr.CodeNotFound, "device request not found")
	}
	return cloneRequest(newest), nil
}

func (s *MemRequests) LatestPaired(_ context.Context, userID string) (*models.DeviceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *models.DeviceRequest
	for _, r := range s.rows {
		if r.RequestedBy != userID || r.Status != models.RequestPaired {
			continue
		}
		if newest == nil || r.RequestedAt.After(newest.RequestedAt) {
			newest = r
		}
	}
	if newest == nil {
		return nil, apperr.New(apperr.CodeNotFound, "device request not found")
	}
	return cloneRequest(newest), nil
}

func (s *MemRequests) Pair(_ context.Context, id, deviceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.Status != models.RequestPending {
		return false, nil
	}
	r.Status = models.RequestPaired
	r.PairedDeviceID = &deviceID
	return true, nil
}

func (s *MemRequests) Expire(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok || r.Status != models.RequestPending {
		return false, nil
	}
	r.Status = models.RequestExpired
	return true, nil
}

// SetExpiresAt rewrites a stored row's expiry, letting tests age a request
// without a clock.
func (s *MemRequests) SetExpiresAt(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[id]; ok {
		r.ExpiresAt = &at
	}
}

// MemMissions is an in-memory MissionStore.
type MemMissions struct {
	mu   sync.Mutex
	rows map[string]*models.Mission
}

func NewMemMissions() *MemMissions {
	return &MemMissions{rows: make(map[string]*models.Mission)}
}

func cloneMission(m *models.Mission) *models.Mission {
	cp := *m
	if m.DeliveredAt != nil {
		t := *m.DeliveredAt
		cp.DeliveredAt = &t
	}
	cp.Payload = append([]byte(nil), m.Payload...)
	return &cp
}

func (s *MemMissions) Create(_ context.Context, m *models.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := cloneMission(m)
	// timestamptz keeps microseconds; mirror that so timestamps read back
	// from this store behave like rows read back from the real ledger.
	row.CreatedAt = row.CreatedAt.Truncate(time.Microsecond)
	s.rows[m.ID] = row
	return nil
}

func (s *MemMissions) GetByID(_ context.Context, id string) (*models.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.rows[id]; ok {
		return cloneMission(m), nil
	}
	return nil, apperr.New(apperr.CodeNotFound, "mission not found")
}

func (s *MemMissions) NextPending(_ context.Context, userID string, oldestFirst bool) (*models.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []*models.Mission
	for _, m := range s.rows {
		if m.RequestedBy == userID && m.Status == models.MissionPending {
			pending = append(pending, m)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}
	sort.Slice(pending, func(i, j int) bool {
		if oldestFirst {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].CreatedAt.After(pending[j].CreatedAt)
	})
	return cloneMission(pending[0]), nil
}

func (s *MemMissions) MarkDelivered(_ context.Context, id, userID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok || m.RequestedBy != userID || m.Status != models.MissionPending {
		return false, nil
	}
	m.Status = models.MissionDelivered
	m.DeliveredAt = &at
	return true, nil
}

// Get returns the stored row, for assertions on persisted state.
func (s *MemMissions) Get(id string) *models.Mission {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.rows[id]; ok {
		return cloneMission(m)
	}
	return nil
}

// MemImages is an in-memory ImageStore.
type MemImages struct {
	mu   sync.Mutex
	rows map[string]*models.Image
}

func NewMemImages() *MemImages {
	return &MemImages{rows: make(map[string]*models.Image)}
}

func (s *MemImages) Create(_ context.Context, img *models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *img
	s.rows[img.ID] = &cp
	return nil
}

func (s *MemImages) GetByID(_ context.Context, id string) (*models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if img, ok := s.rows[id]; ok {
		cp := *img
		return &cp, nil
	}
	return nil, apperr.New(apperr.CodeNotFound, "image not found")
}

func (s *MemImages) ListByOwner(_ context.Context, userID string) ([]*models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Image
	for _, img := range s.rows {
		if img.RequestedBy == userID {
			cp := *img
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

// MemUsers is an in-memory UserStore.
type MemUsers struct {
	mu   sync.Mutex
	rows map[string]*models.User
}

func NewMemUsers() *MemUsers {
	return &MemUsers{rows: make(map[string]*models.User)}
}

func (s *MemUsers) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.rows[user.ID] = &cp
	return nil
}

func (s *MemUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.rows[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperr.New(apperr.CodeNotFound, "user not found")
}

func (s *MemUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.rows {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.CodeNotFound, "user not found")
}

func (s *MemUsers) EmailExists(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.rows {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemUsers) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[id]
	return ok, nil
}
