package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSigner asks a local wallet bridge to sign and submit the mint.
type HTTPSigner struct {
	BridgeURL string
	Client    *http.Client
}

func NewHTTPSigner(bridgeURL string) *HTTPSigner {
	return &HTTPSigner{
		BridgeURL: bridgeURL,
		// Signing waits on the user approving in their wallet.
		Client: &http.Client{Timeout: 2 * time.Minute},
	}
}

type signResponse struct {
	ObjectID string `json:"objectId"`
	Error    string `json:"error"`
}

func (s *HTTPSigner) SignAndSubmit(ctx context.Context, action MintAction) (string, error) {
	body, err := json.Marshal(action)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BridgeURL+"/sign", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("wallet bridge unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var out signResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("wallet bridge returned %d: %s", resp.StatusCode, raw)
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		if out.Error == "" {
			out.Error = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("wallet bridge: %s", out.Error)
	}
	return out.ObjectID, nil
}
