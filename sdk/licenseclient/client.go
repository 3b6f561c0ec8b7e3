package licenseclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// verdict is the server's answer to one verification.
type verdict struct {
	Valid     bool
	Tier      string
	Email     string
	ExpiresAt time.Time
	Receipt   string
}

// verifyOnline posts the credentials to the server. Transport failures,
// timeouts, 5xx and 429 are reported as ErrServerUnreachable.
func (m *Manager) verifyOnline(ctx context.Context, email, key string) (*verdict, error) {
	dev := currentDevice(m.deviceID())
	body, err := json.Marshal(verifyRequest{
		Email:                 email,
		LicenseKey:            key,
		DeviceID:              dev.ID,
		DeviceFingerprintHash: dev.FingerprintHash,
		DeviceName:            dev.Name,
		Platform:              dev.Platform,
		AppVersion:            m.cfg.AppVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(m.cfg.ServerURL, "/") + verifyPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrServerUnreachable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status=%d", ErrServerUnreachable, resp.StatusCode)
	}

	var vr verifyResponse
	if err := json.Unmarshal(respBody, &vr); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrServerUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK || !vr.Valid {
		return &verdict{Valid: false}, nil
	}

	expiresAt, err := time.Parse(time.RFC3339, vr.Expires)
	if err != nil {
		return nil, fmt.Errorf("%w: bad expiry %q", ErrServerUnreachable, vr.Expires)
	}
	return &verdict{
		Valid:     true,
		Tier:      vr.Tier,
		Email:     vr.Email,
		ExpiresAt: expiresAt.UTC(),
		Receipt:   vr.Receipt,
	}, nil
}
