package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InverseCodex/agrivision-website-v2/internal/apperr"
	"github.com/InverseCodex/agrivision-website-v2/internal/inference"
	"github.com/InverseCodex/agrivision-website-v2/internal/models"
	"github.com/InverseCodex/agrivision-website-v2/internal/storage"
	"github.com/InverseCodex/agrivision-website-v2/internal/testutil"
)

type stubRunner struct {
	result  []byte
	metrics inference.Metrics
	err     error
	calls   int
}

func (r *stubRunner) Infer(_ context.Context, _ []byte) ([]byte, inference.Metrics, error) {
	r.calls++
	return r.result, r.metrics, r.err
}

type imageEnv struct {
	svc      *ImageService
	images   *testutil.MemImages
	requests *testutil.MemRequests
	blobs    *storage.Memory
	runner   *stubRunner
}

func newImageEnv(t *testing.T) *imageEnv {
	t.Helper()
	env := &imageEnv{
		images:   testutil.NewMemImages(),
		requests: testutil.NewMemRequests(),
		blobs:    storage.NewMemory(),
		runner:   &stubRunner{result: []byte("annotated-png"), metrics: inference.Metrics{HealthScore: 87}},
	}
	env.svc = NewImageService(env.images, env.requests, env.blobs, env.runner)
	return env
}

func (e *imageEnv) pairedRequest(t *testing.T, userID string) *models.DeviceRequest {
	t.Helper()
	deviceID := "device-" + userID
	req := &models.DeviceRequest{
		ID:             "req-" + userID,
		RequestedBy:    userID,
		PairCode:       "WXYZ-2345",
		Status:         models.RequestPaired,
		Scheme:         models.SchemeCode,
		PairedDeviceID: &deviceID,
		RequestedAt:    time.Now().UTC(),
	}
	require.NoError(t, e.requests.Create(context.Background(), req))
	return req
}

func TestUploadFromPairedDevice(t *testing.T) {
	env := newImageEnv(t)
	req := env.pairedRequest(t, testUserID)

	img, err := env.svc.Upload(context.Background(), req.ID, *req.PairedDeviceID,
		"field_07.JPG", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)

	assert.Equal(t, testUserID, img.RequestedBy)
	assert.True(t, strings.HasPrefix(img.StoragePath, req.ID+"/"+testUserID+"/"))
	assert.True(t, strings.HasSuffix(img.StoragePath, ".jpg"))

	data, err := env.blobs.Get(context.Background(), img.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestUploadRequiresPairedRequest(t *testing.T) {
	env := newImageEnv(t)
	req := &models.DeviceRequest{
		ID:          "req-pending",
		RequestedBy: testUserID,
		PairCode:    "ABCD-0000",
		Status:      models.RequestPending,
		Scheme:      models.SchemeCode,
		RequestedAt: time.Now().UTC(),
	}
	require.NoError(t, env.requests.Create(context.Background(), req))

	_, err := env.svc.Upload(context.Background(), req.ID, "", "a.jpg", "image/jpeg", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeState, apperr.CodeOf(err))
}

func TestUploadDeviceMismatch(t *testing.T) {
	env := newImageEnv(t)
	req := env.pairedRequest(t, testUserID)

	_, err := env.svc.Upload(context.Background(), req.ID, "some-other-device", "a.jpg", "image/jpeg", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
}

func TestHistoryListsOwnImagesOnly(t *testing.T) {
	env := newImageEnv(t)
	req := env.pairedRequest(t, testUserID)
	other := env.pairedRequest(t, "other-user")

	_, err := env.svc.Upload(context.Background(), req.ID, "", "mine.jpg", "image/jpeg", []byte("a"))
	require.NoError(t, err)
	_, err = env.svc.Upload(context.Background(), other.ID, "", "theirs.jpg", "image/jpeg", []byte("b"))
	require.NoError(t, err)

	views, err := env.svc.History(context.Background(), testUserID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "mine.jpg", views[0].Filename)
	assert.Equal(t, env.blobs.PublicURL(views[0].ImagePath), views[0].URL)
}

func TestAnalyze(t *testing.T) {
	env := newImageEnv(t)
	req := env.pairedRequest(t, testUserID)

	img, err := env.svc.Upload(context.Background(), req.ID, "", "crop.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)

	result, err := env.svc.Analyze(context.Background(), testUserID, img.ID)
	require.NoError(t, err)

	assert.Equal(t, 87, result.Metrics.HealthScore)
	assert.Equal(t, env.blobs.PublicURL(img.StoragePath), result.OriginalURL)
	assert.Contains(t, result.ResultURL, "results/"+req.ID+"/"+testUserID+"/")
	assert.Equal(t, 1, env.runner.calls)

	// The annotated artifact is persisted.
	path := strings.TrimPrefix(result.ResultURL, "mem://")
	data, err := env.blobs.Get(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []byte("annotated-png"), data)
}

func TestAnalyzeForeignImage(t *testing.T) {
	env := newImageEnv(t)
	req := env.pairedRequest(t, testUserID)

	img, err := env.svc.Upload(context.Background(), req.ID, "", "crop.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)

	_, err = env.svc.Analyze(context.Background(), "intruder", img.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
	assert.Equal(t, 0, env.runner.calls)
}

func TestAnalyzeRunnerFailure(t *testing.T) {
	env := newImageEnv(t)
	req := env.pairedRequest(t, testUserID)
	env.runner.err = apperr.New(apperr.CodeInference, "model run failed: boom")

	img, err := env.svc.Upload(context.Background(), req.ID, "", "crop.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)

	_, err = env.svc.Analyze(context.Background(), testUserID, img.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInference, apperr.CodeOf(err))
}
