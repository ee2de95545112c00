package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"llm_relay/internal/config"
)

// GenericForwarder posts {prompt, model} as-is to a configured URL with a
// bearer credential and returns the raw JSON reply without extraction.
type GenericForwarder struct {
	url    string
	apiKey string
	client *http.Client
}

// NewGenericForwarder creates the generic forward path.
func NewGenericForwarder(cfg config.ForwardConfig, timeout time.Duration) *GenericForwarder {
	return &GenericForwarder{
		url:    strings.TrimSpace(cfg.URL),
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (f *GenericForwarder) Name() string {
	return "forward"
}

// Forward posts the prompt and hands the upstream payload back unmodified.
func (f *GenericForwarder) Forward(ctx context.Context, prompt, model string) (*Reply, error) {
	payload := map[string]string{"prompt": prompt}
	if model != "" {
		payload["model"] = model
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &UpstreamError{Provider: f.Name(), Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return nil, &UpstreamError{Provider: f.Name(), Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Provider: f.Name(), Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Provider: f.Name(), Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{
			Provider: f.Name(),
			Err:      fmt.Errorf("forward endpoint returned status %d: %s", resp.StatusCode, truncate(respBody, 256)),
		}
	}

	return &Reply{
		Kind:  ReplyRaw,
		Model: model,
		Raw:   json.RawMessage(respBody),
	}, nil
}
