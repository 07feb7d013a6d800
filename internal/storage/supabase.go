// Package storage publishes image assets to Supabase object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/withme/withme/internal/config"
)

// SupabasePublisher downloads a provider asset and re-uploads it to a
// public bucket, returning the durable public URL.
type SupabasePublisher struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

// NewSupabasePublisher creates a publisher from config. Returns nil when
// storage is not configured; callers treat a nil publisher as
// publish-unavailable and keep the raw provider URL.
func NewSupabasePublisher(cfg config.StorageConfig) *SupabasePublisher {
	if cfg.SupabaseURL == "" || cfg.ServiceKey == "" {
		return nil
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "agent-avatars"
	}
	return &SupabasePublisher{
		baseURL:    strings.TrimSuffix(cfg.SupabaseURL, "/"),
		serviceKey: cfg.ServiceKey,
		bucket:     bucket,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (p *SupabasePublisher) headers(req *http.Request, contentType string) {
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)
	req.Header.Set("apikey", p.serviceKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
}

// EnsureBucket creates the public bucket if it does not already exist.
// Best effort; upload proceeds regardless.
func (p *SupabasePublisher) EnsureBucket(ctx context.Context) error {
	listReq, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/storage/v1/bucket", nil)
	if err != nil {
		return err
	}
	p.headers(listReq, "")
	if resp, err := p.httpClient.Do(listReq); err == nil {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			var buckets []struct {
				Name string `json:"name"`
			}
			if json.Unmarshal(body, &buckets) == nil {
				for _, b := range buckets {
					if b.Name == p.bucket {
						return nil
					}
				}
			}
		}
	}

	payload, _ := json.Marshal(map[string]any{"name": p.bucket, "public": true})
	createReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/storage/v1/bucket", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	p.headers(createReq, "application/json")
	resp, err := p.httpClient.Do(createReq)
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("create bucket rejected (status %d)", resp.StatusCode)
	}
	return nil
}

// Publish downloads the asset at sourceURL and uploads it to the public
// bucket, returning the public URL.
func (p *SupabasePublisher) Publish(ctx context.Context, sourceURL string) (string, error) {
	if err := p.EnsureBucket(ctx); err != nil {
		// The bucket may already exist under a race or a narrower key;
		// the upload below is authoritative.
		slog.Debug("Storage ensure bucket failed", "bucket", p.bucket, "error", err)
	}

	getReq, err := http.NewRequestWithContext(ctx, "GET", sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}
	resp, err := p.httpClient.Do(getReq)
	if err != nil {
		return "", fmt.Errorf("download asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("download asset rejected (status %d)", resp.StatusCode)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read asset: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	objectPath := uuid.NewString() + ".jpg"
	upReq, err := http.NewRequestWithContext(ctx, "POST",
		fmt.Sprintf("%s/storage/v1/object/%s/%s", p.baseURL, p.bucket, objectPath),
		bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	p.headers(upReq, contentType)
	upReq.Header.Set("x-upsert", "true")

	upResp, err := p.httpClient.Do(upReq)
	if err != nil {
		return "", fmt.Errorf("upload asset: %w", err)
	}
	defer upResp.Body.Close()
	if upResp.StatusCode < 200 || upResp.StatusCode > 299 {
		return "", fmt.Errorf("upload rejected (status %d)", upResp.StatusCode)
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", p.baseURL, p.bucket, objectPath), nil
}
