package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/coursepay/internal/models"
)

// HTTPChecker calls the payment status endpoint of a running API server.
type HTTPChecker struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPChecker(baseURL, token string) *HTTPChecker {
	return &HTTPChecker{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type statusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Payment struct {
		Status models.PaymentStatus `json:"status"`
	} `json:"payment"`
}

func (c *HTTPChecker) Check(ctx context.Context, paymentID uuid.UUID) (models.PaymentStatus, error) {
	payload, err := json.Marshal(map[string]string{"paymentId": paymentID.String()})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/payments/status", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var decoded statusResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("status response: status %d, body: %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK || !decoded.Success {
		return "", fmt.Errorf("status request failed: status %d: %s", resp.StatusCode, decoded.Error)
	}

	return decoded.Payment.Status, nil
}
