package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const graphAPIBase = "https://graph.facebook.com/v21.0"

// WhatsAppGateway sends outbound text via the WhatsApp Business Cloud API.
type WhatsAppGateway struct {
	accessToken   string
	phoneNumberID string
	apiBase       string
	client        *http.Client
}

func NewWhatsAppGateway(accessToken, phoneNumberID string) *WhatsAppGateway {
	return &WhatsAppGateway{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		apiBase:       graphAPIBase,
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

type waSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send delivers a text message and returns the provider's message id.
func (w *WhatsAppGateway) Send(ctx context.Context, to, text string) (string, error) {
	url := fmt.Sprintf("%s/%s/messages", w.apiBase, w.phoneNumberID)
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("whatsapp API %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed waSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Messages) == 0 {
		return "", fmt.Errorf("whatsapp API returned no message id")
	}
	return parsed.Messages[0].ID, nil
}
