package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Agent is the device-side poll loop: one request at a time, a fixed sleep
// between polls, cancelled only by the surrounding context.
type Agent struct {
	BaseURL  string
	UserID   string
	OutPath  string
	Interval time.Duration
	Client   *http.Client
}

// New creates an agent with sane defaults applied.
func New(baseURL, userID, outPath string, interval time.Duration) *Agent {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if outPath == "" {
		outPath = "mission.json"
	}
	return &Agent{
		BaseURL:  baseURL,
		UserID:   userID,
		OutPath:  outPath,
		Interval: interval,
		Client:   &http.Client{Timeout: 20 * time.Second},
	}
}

// Connect redeems a pair code and returns the request and device ids.
func (a *Agent) Connect(ctx context.Context, pairCode string) (requestID, deviceID string, err error) {
	body, _ := json.Marshal(map[string]string{"pair_code": pairCode})

	var resp struct {
		RequestID string `json:"request_id"`
		DeviceID  string `json:"device_id"`
	}
	if err := a.postJSON(ctx, "/api/v1/pairing/connect", body, &resp); err != nil {
		return "", "", err
	}

	log.Info().
		Str("request_id", resp.RequestID).
		Str("device_id", resp.DeviceID).
		Msg("Paired with server")
	return resp.RequestID, resp.DeviceID, nil
}

type latestResponse struct {
	MissionID string          `json:"mission_id"`
	Mission   json.RawMessage `json:"mission"`
	CreatedAt time.Time       `json:"created_at"`
}

// Run polls until a mission is received, saved and acked, or the context is
// cancelled. Network errors are logged and retried on the next tick.
func (a *Agent) Run(ctx context.Context) error {
	log.Info().Str("user_id", a.UserID).Msg("Waiting for mission")

	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	for {
		m, err := a.pollOnce(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Poll failed")
		} else if m != nil {
			return a.receive(ctx, m)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *Agent) pollOnce(ctx context.Context) (*latestResponse, error) {
	u := fmt.Sprintf("%s/api/v1/missions/latest?%s", a.BaseURL,
		url.Values{"user_id": {a.UserID}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll returned status %d", resp.StatusCode)
	}

	var latest latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&latest); err != nil {
		return nil, err
	}
	if latest.MissionID == "" {
		return nil, nil
	}
	return &latest, nil
}

// receive downloads the payload, persists it, then acks. Download happens
// before ack on purpose: a crash between the two re-delivers the mission on
// the next run instead of losing it.
func (a *Agent) receive(ctx context.Context, m *latestResponse) error {
	log.Info().Str("mission_id", m.MissionID).Msg("Mission received")

	payload, err := a.download(ctx, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to download mission payload: %w", err)
	}

	if err := os.WriteFile(a.OutPath, payload, 0o644); err != nil {
		return fmt.Errorf("failed to save mission payload: %w", err)
	}
	log.Info().Str("path", a.OutPath).Msg("Mission saved")

	body, _ := json.Marshal(map[string]string{
		"mission_id": m.MissionID,
		"user_id":    a.UserID,
	})
	if err := a.postJSON(ctx, "/api/v1/missions/ack", body, nil); err != nil {
		return fmt.Errorf("failed to ack mission: %w", err)
	}
	log.Info().Str("mission_id", m.MissionID).Msg("Mission acked")

	return nil
}

func (a *Agent) download(ctx context.Context, createdAt time.Time) ([]byte, error) {
	u := fmt.Sprintf("%s/api/v1/missions/download?%s", a.BaseURL, url.Values{
		"requested_by": {a.UserID},
		"requested_at": {createdAt.UTC().Format(time.RFC3339Nano)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (a *Agent) postJSON(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, bytes.TrimSpace(data))
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
