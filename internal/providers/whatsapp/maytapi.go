package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAPIURL = "https://api.maytapi.com/api"

// Maytapi sends WhatsApp messages through the Maytapi REST gateway.
type Maytapi struct {
	baseURL   string
	productID string
	phoneID   string
	token     string
	client    *http.Client
}

func NewMaytapi(baseURL, productID, phoneID, token string) *Maytapi {
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	return &Maytapi{
		baseURL:   baseURL,
		productID: productID,
		phoneID:   phoneID,
		token:     token,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type sendRequest struct {
	ToNumber string `json:"to_number"`
	Type     string `json:"type"` // text|media
	Message  string `json:"message"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (m *Maytapi) SendText(ctx context.Context, to, text string) error {
	return m.send(ctx, sendRequest{ToNumber: to, Type: "text", Message: text})
}

// SendMedia sends a single media message; the gateway fetches the URL
// and delivers it as an attachment.
func (m *Maytapi) SendMedia(ctx context.Context, to, mediaURL string) error {
	return m.send(ctx, sendRequest{ToNumber: to, Type: "media", Message: mediaURL})
}

func (m *Maytapi) send(ctx context.Context, payload sendRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/sendMessage", m.baseURL, m.productID, m.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-maytapi-key", m.token)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway error %d: %s", resp.StatusCode, string(respBody))
	}

	var sr sendResponse
	if err := json.Unmarshal(respBody, &sr); err == nil && !sr.Success && sr.Message != "" {
		return fmt.Errorf("gateway rejected send: %s", sr.Message)
	}
	return nil
}
