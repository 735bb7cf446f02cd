package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InverseCodex/agrivision-website-v2/internal/apperr"
	"github.com/InverseCodex/agrivision-website-v2/internal/config"
	"github.com/InverseCodex/agrivision-website-v2/internal/models"
	"github.com/InverseCodex/agrivision-website-v2/internal/storage"
	"github.com/InverseCodex/agrivision-website-v2/internal/testutil"
)

var validPayload = json.RawMessage(`{"target":{"lat":14.6,"lng":121.0,"alt_m":50}}`)

type missionEnv struct {
	svc      *MissionService
	missions *testutil.MemMissions
	requests *testutil.MemRequests
	blobs    *storage.Memory
}

func newMissionEnv(t *testing.T, mode string) *missionEnv {
	t.Helper()
	env := &missionEnv{
		missions: testutil.NewMemMissions(),
		requests: testutil.NewMemRequests(),
		blobs:    storage.NewMemory(),
	}
	env.svc = NewMissionService(env.missions, env.requests, env.blobs, mode)
	return env
}

func (e *missionEnv) pairDevice(t *testing.T, userID string) *models.DeviceRequest {
	t.Helper()
	deviceID := "device-" + userID
	req := &models.DeviceRequest{
		ID:             "req-" + userID,
		RequestedBy:    userID,
		PairCode:       "KM3X-7204",
		Status:         models.RequestPaired,
		Scheme:         models.SchemeCode,
		PairedDeviceID: &deviceID,
		RequestedAt:    time.Now().UTC(),
	}
	require.NoError(t, e.requests.Create(context.Background(), req))
	return req
}

func TestEnqueueValidatesTarget(t *testing.T) {
	env := newMissionEnv(t, config.MailboxSingle)
	env.pairDevice(t, testUserID)

	cases := []struct {
		name    string
		payload string
	}{
		{"missing target", `{"name":"survey"}`},
		{"missing alt_m", `{"target":{"lat":14.6,"lng":121.0}}`},
		{"missing lat", `{"target":{"lng":121.0,"alt_m":50}}`},
		{"not json", `not json`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Enqueue(context.Background(), testUserID, json.RawMessage(tc.payload))
			require.Error(t, err)
			assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
		})
	}

	// A rejected payload leaves no trace in either store.
	m, err := env.svc.PollLatest(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, 0, env.blobs.Len())
}

func TestEnqueueWithoutPairedDevice(t *testing.T) {
	env := newMissionEnv(t, config.MailboxSingle)

	_, err := env.svc.Enqueue(context.Background(), testUserID, validPayload)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNoDevice, apperr.CodeOf(err))
}

func TestEnqueuePersistsPayload(t *testing.T) {
	env := newMissionEnv(t, config.MailboxSingle)
	req := env.pairDevice(t, testUserID)

	m, err := env.svc.Enqueue(context.Background(), testUserID, validPayload)
	require.NoError(t, err)

	assert.Equal(t, models.MissionPending, m.Status)
	assert.Equal(t, req.ID, m.RequestID)
	assert.Equal(t, *req.PairedDeviceID, m.DeviceID)
	assert.Nil(t, m.DeliveredAt)

	data, err := env.blobs.Get(context.Background(), m.PayloadPath)
	require.NoError(t, err)
	assert.JSONEq(t, string(validPayload), string(data))
}

func TestPollAckLifecycle(t *testing.T) {
	env := newMissionEnv(t, config.MailboxSingle)
	env.pairDevice(t, testUserID)

	queued, err := env.svc.Enqueue(context.Background(), testUserID, validPayload)
	require.NoError(t, err)

	polled, err := env.svc.PollLatest(context.Background(), testUserID)
	require.NoError(t, err)
	require.NotNil(t, polled)
	assert.Equal(t, queued.ID, polled.ID)
	assert.Equal(t, models.MissionPending, polled.Status)

	require.NoError(t, env.svc.Ack(context.Background(), testUserID, polled.ID))

	stored := env.missions.Get(queued.ID)
	require.NotNil(t, stored)
	assert.Equal(t, models.MissionDelivered, stored.Status)
	require.NotNil(t, stored.DeliveredAt)
	firstDeliveredAt := *stored.DeliveredAt

	// Second ack reports the idempotency guard and never re-sets
	// delivered_at.
	err = env.svc.Ack(context.Background(), testUserID, polled.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeAlreadyDelivered, apperr.CodeOf(err))
	assert.Equal(t, firstDeliveredAt, *env.missions.Get(queued.ID).DeliveredAt)

	// Delivered missions leave the mailbox.
	polled, err = env.svc.PollLatest(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Nil(t, polled)
}

func TestAckForeignMission(t *testing.T) {
	env := newMissionEnv(t, config.MailboxSingle)
	env.pairDevice(t, testUserID)

	queued, err := env.svc.Enqueue(context.Background(), testUserID, validPayload)
	require.NoError(t, err)

	err = env.svc.Ack(context.Background(), "intruder", queued.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	// No state change for the real owner.
	stored := env.missions.Get(queued.ID)
	assert.Equal(t, models.MissionPending, stored.Status)
	assert.Nil(t, stored.DeliveredAt)
}

func TestAckUnknownMission(t *testing.T) {
	env := newMissionEnv(t, config.MailboxSingle)

	err := env.svc.Ack(context.Background(), testUserID, "no-such-mission")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestDownloadNeverMutates(t *testing.T) {
	env := newMissionEnv(t, config.MailboxSingle)
	env.pairDevice(t, testUserID)

	queued, err := env.svc.Enqueue(context.Background(), testUserID, validPayload)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		data, err := env.svc.Download(context.Background(), testUserID, queued.CreatedAt)
		require.NoError(t, err)
		assert.JSONEq(t, string(validPayload), string(data))
	}

	assert.Equal(t, models.MissionPending, env.missions.Get(queued.ID).Status)
}

func TestDownloadSurvivesTimestampRoundTrip(t *testing.T) {
	env := newMissionEnv(t, config.MailboxSingle)
	env.pairDevice(t, testUserID)

	queued, err := env.svc.Enqueue(context.Background(), testUserID, validPayload)
	require.NoError(t, err)

	// Devices derive the download key from the created_at they polled, which
	// has been through the microsecond-precision ledger column.
	stored := env.missions.Get(queued.ID)
	assert.Equal(t, stored.CreatedAt, queued.CreatedAt)

	data, err := env.svc.Download(context.Background(), testUserID, stored.CreatedAt)
	require.NoError(t, err)
	assert.JSONEq(t, string(validPayload), string(data))

	// Sub-microsecond digits on the caller's side must not change the key.
	data, err = env.svc.Download(context.Background(), testUserID, stored.CreatedAt.Add(300*time.Nanosecond))
	require.NoError(t, err)
	assert.JSONEq(t, string(validPayload), string(data))
}

func TestSingleSlotSurfacesNewest(t *testing.T) {
	env := newMissionEnv(t, config.MailboxSingle)
	env.pairDevice(t, testUserID)

	first, err := env.svc.Enqueue(context.Background(), testUserID, validPayload)
	require.NoError(t, err)
	second, err := env.svc.Enqueue(context.Background(), testUserID, validPayload)
	require.NoError(t, err)
	require.True(t, second.CreatedAt.After(first.CreatedAt))

	polled, err := env.svc.PollLatest(context.Background(), testUserID)
	require.NoError(t, err)
	require.NotNil(t, polled)
	assert.Equal(t, second.ID, polled.ID)

	// The older mission stays pending but is never surfaced: single-slot
	// semantics orphan it deliberately.
	require.NoError(t, env.svc.Ack(context.Background(), testUserID, second.ID))
	polled, err = env.svc.PollLatest(context.Background(), testUserID)
	require.NoError(t, err)
	require.NotNil(t, polled)
	assert.Equal(t, first.ID, polled.ID)
}

func TestFIFODrainsOldestFirst(t *testing.T) {
	env := newMissionEnv(t, config.MailboxFIFO)
	env.pairDevice(t, testUserID)

	first, err := env.svc.Enqueue(context.Background(), testUserID, validPayload)
	require.NoError(t, err)
	second, err := env.svc.Enqueue(context.Background(), testUserID, validPayload)
	require.NoError(t, err)

	polled, err := env.svc.PollLatest(context.Background(), testUserID)
	require.NoError(t, err)
	require.NotNil(t, polled)
	assert.Equal(t, first.ID, polled.ID)

	require.NoError(t, env.svc.Ack(context.Background(), testUserID, first.ID))

	polled, err = env.svc.PollLatest(context.Background(), testUserID)
	require.NoError(t, err)
	require.NotNil(t, polled)
	assert.Equal(t, second.ID, polled.ID)
}

// Full happy path across pairing and the mailbox: create request, connect
// the device, queue a mission, poll, ack, poll empty.
func TestPairThenDeliverScenario(t *testing.T) {
	requests := testutil.NewMemRequests()
	users := testutil.NewMemUsers()
	missions := testutil.NewMemMissions()
	blobs := storage.NewMemory()

	require.NoError(t, users.Create(context.Background(), &models.User{ID: testUserID, Username: "field-op"}))
	pairing := NewPairingService(requests, users, 10*time.Minute)
	mailbox := NewMissionService(missions, requests, blobs, config.MailboxSingle)

	created, err := pairing.CreateRequest(context.Background(), testUserID)
	require.NoError(t, err)

	paired, err := pairing.Connect(context.Background(), created.PairCode)
	require.NoError(t, err)

	queued, err := mailbox.Enqueue(context.Background(), testUserID, validPayload)
	require.NoError(t, err)
	assert.Equal(t, *paired.PairedDeviceID, queued.DeviceID)

	polled, err := mailbox.PollLatest(context.Background(), testUserID)
	require.NoError(t, err)
	require.NotNil(t, polled)
	assert.Equal(t, queued.ID, polled.ID)
	assert.Equal(t, models.MissionPending, polled.Status)

	require.NoError(t, mailbox.Ack(context.Background(), testUserID, polled.ID))

	polled, err = mailbox.PollLatest(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Nil(t, polled)
}
