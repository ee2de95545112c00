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

// OpenAIForwarder implements the named provider path: it builds a
// chat-completion payload, calls the completions endpoint with a bearer
// credential and extracts a best-effort text field from the reply.
type OpenAIForwarder struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

// NewOpenAIForwarder creates the named OpenAI forwarding path.
func NewOpenAIForwarder(cfg config.OpenAIConfig, timeout time.Duration) *OpenAIForwarder {
	return &OpenAIForwarder{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel: cfg.DefaultModel,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (f *OpenAIForwarder) Name() string {
	return "openai"
}

// Forward sends a chat completion request and normalizes the reply.
func (f *OpenAIForwarder) Forward(ctx context.Context, prompt, model string) (*Reply, error) {
	if model == "" {
		model = f.defaultModel
	}

	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &UpstreamError{Provider: f.Name(), Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	url := f.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &UpstreamError{Provider: f.Name(), Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Provider: f.Name(), Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Provider: f.Name(), Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{
			Provider: f.Name(),
			Err:      fmt.Errorf("completion endpoint returned status %d: %s", resp.StatusCode, truncate(respBody, 256)),
		}
	}

	reply, err := normalizeReply(respBody)
	if err != nil {
		return nil, &UpstreamError{Provider: f.Name(), Err: err}
	}
	reply.Model = model
	return reply, nil
}

// normalizeReply adapts the nested completion reply into a Reply with an
// explicit kind rather than silently serializing unknown shapes.
func normalizeReply(body []byte) (*Reply, error) {
	var parsed struct {
		Choices []json.RawMessage `json:"choices"`
		Usage   json.RawMessage   `json:"usage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse completion reply: %w", err)
	}

	reply := &Reply{
		Kind:  ReplyUnparsed,
		Raw:   json.RawMessage(body),
		Usage: parsed.Usage,
	}
	if len(parsed.Choices) == 0 {
		return reply, nil
	}

	first := parsed.Choices[0]
	var choice struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	}
	// A malformed choice falls through to the unparsed variant below.
	_ = json.Unmarshal(first, &choice)

	switch {
	case choice.Message.Content != "":
		reply.Kind = ReplyMessage
		reply.Text = choice.Message.Content
	case choice.Text != "":
		reply.Kind = ReplyText
		reply.Text = choice.Text
	default:
		reply.Text = string(first)
	}
	return reply, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
