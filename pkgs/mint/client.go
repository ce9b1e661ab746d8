// Package mint talks to the ecash mint that issues wagered reward tokens.
package mint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Client is a thin HTTP client for the mint's reward endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	validator  string
}

// rewardRequest is the mint's token issuance payload.
type rewardRequest struct {
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	MatchID   string `json:"match_id"`
	Validator string `json:"validator"`
}

// rewardResponse carries the issued token reference.
type rewardResponse struct {
	TokenID string `json:"token_id"`
	Error   string `json:"error,omitempty"`
}

// NewClient creates a mint client for the given base URL.
func NewClient(baseURL, validatorID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		validator:  validatorID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// IssueReward asks the mint to issue amount units to the recipient for a
// validated match. Returns the mint's token reference.
func (c *Client) IssueReward(ctx context.Context, recipient string, amount uint64, matchID string) (string, error) {
	payload, err := json.Marshal(rewardRequest{
		Recipient: recipient,
		Amount:    amount,
		MatchID:   matchID,
		Validator: c.validator,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal reward request: %w", err)
	}

	url := c.baseURL + "/v1/rewards"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build reward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach mint at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read mint response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("mint returned status %d: %s", resp.StatusCode, string(body))
	}

	var reward rewardResponse
	if err := json.Unmarshal(body, &reward); err != nil {
		return "", fmt.Errorf("failed to decode mint response: %w", err)
	}
	if reward.Error != "" {
		return "", fmt.Errorf("mint rejected reward: %s", reward.Error)
	}
	if reward.TokenID == "" {
		return "", fmt.Errorf("mint response missing token id")
	}

	log.WithFields(log.Fields{
		"match_id":  matchID,
		"recipient": recipient,
		"amount":    amount,
		"token_id":  reward.TokenID,
	}).Info("Mint issued reward")

	return reward.TokenID, nil
}

// Health checks the mint's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mint unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mint health returned status %d", resp.StatusCode)
	}
	return nil
}
