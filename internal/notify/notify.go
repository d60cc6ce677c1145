// Package notify delivers best-effort push messages to users. Failures are
// logged by callers, never fatal.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notifier delivers a push message with a deep link back into the app.
type Notifier interface {
	Notify(ctx context.Context, fid int64, title, body, deepLink string) error
}

// PushClient talks to the push-notification provider's HTTP API.
type PushClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewPushClient(baseURL, apiKey string) *PushClient {
	return &PushClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type pushRequest struct {
	TargetFID int64  `json:"target_fid"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	TargetURL string `json:"target_url"`
}

func (c *PushClient) Notify(ctx context.Context, fid int64, title, body, deepLink string) error {
	if c.baseURL == "" {
		return fmt.Errorf("notifier not configured")
	}
	payload, err := json.Marshal(pushRequest{
		TargetFID: fid,
		Title:     title,
		Body:      body,
		TargetURL: deepLink,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notifications", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send notification: status %d: %s", resp.StatusCode, msg)
	}
	return nil
}
