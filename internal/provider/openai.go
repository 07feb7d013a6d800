package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/withme/withme/internal/config"
)

// OpenAIProvider implements Completer against an OpenAI-compatible
// chat-completions API.
type OpenAIProvider struct {
	apiKey      string
	apiBase     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewOpenAIProvider creates a provider from config. Returns a provider
// even without an API key; Complete then reports ErrUnavailable so the
// caller's fallback path engages.
func NewOpenAIProvider(cfg config.OpenAIConfig, model config.ModelConfig) *OpenAIProvider {
	base := cfg.APIBase
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	name := model.Name
	if name == "" {
		name = "gpt-4o-mini"
	}
	return &OpenAIProvider{
		apiKey:      cfg.APIKey,
		apiBase:     strings.TrimSuffix(base, "/"),
		model:       name,
		maxTokens:   model.MaxTokens,
		temperature: model.Temperature,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends a chat-completion request and returns the first choice.
func (p *OpenAIProvider) Complete(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	if p.apiKey == "" {
		return "", ErrUnavailable
	}

	payload := []Message{{Role: "system", Content: systemPrompt}}
	payload = append(payload, messages...)
	body := map[string]any{
		"model":       p.model,
		"messages":    payload,
		"temperature": p.temperature,
	}
	if p.maxTokens > 0 {
		body["max_tokens"] = p.maxTokens
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}
