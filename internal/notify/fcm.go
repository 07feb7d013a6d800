package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

const fcmEndpoint = "https://fcm.googleapis.com/fcm/send"

// FCMPusher sends push notifications through FCM's legacy HTTP API.
type FCMPusher struct {
	serverKey  string
	endpoint   string
	httpClient *http.Client
}

// NewFCMPusher returns nil when no server key is configured.
func NewFCMPusher(serverKey string) *FCMPusher {
	if serverKey == "" {
		return nil
	}
	return &FCMPusher{
		serverKey: serverKey,
		endpoint:  fcmEndpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send delivers one notification. Best effort: failures are logged and
// swallowed.
func (p *FCMPusher) Send(ctx context.Context, token, title, body string) {
	payload, err := json.Marshal(map[string]any{
		"to": token,
		"notification": map[string]string{
			"title": title,
			"body":  body,
		},
	})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+p.serverKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		slog.Debug("Push send failed", "error", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Debug("Push send rejected", "status", resp.StatusCode)
	}
}
