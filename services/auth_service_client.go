package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidSession means the auth service refused the token/device pair.
var ErrInvalidSession = errors.New("invalid session")

// StreamIdentity is who a realtime connection belongs to.
type StreamIdentity struct {
	UserID   string   `json:"user_id"`
	DeviceID string   `json:"device_id"`
	Roles    []string `json:"roles"`
}

func (id *StreamIdentity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthServiceClient validates player session tokens for /ws, where the
// gateway cannot inject X-User-ID.
type AuthServiceClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

func NewAuthServiceClient(baseURL, serviceToken string, logger *zap.Logger) *AuthServiceClient {
	return &AuthServiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   serviceToken,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// ValidateToken resolves accessToken on deviceID. A refused token yields
// ErrInvalidSession; transport and 5xx problems are returned wrapped.
func (c *AuthServiceClient) ValidateToken(ctx context.Context, accessToken, deviceID string) (*StreamIdentity, error) {
	payload, err := json.Marshal(map[string]string{
		"access_token": accessToken,
		"device_id":    deviceID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/validate", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidSession
	case resp.StatusCode != http.StatusOK:
		c.logger.Warn("auth service error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, fmt.Errorf("auth service returned %d", resp.StatusCode)
	}

	var id StreamIdentity
	if err := json.Unmarshal(body, &id); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	if id.UserID == "" {
		return nil, ErrInvalidSession
	}
	if id.DeviceID == "" {
		id.DeviceID = deviceID
	}
	return &id, nil
}
