package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"llm_relay/internal/config"
)

// ReplyKind discriminates how the upstream reply was normalized.
type ReplyKind string

const (
	// ReplyMessage means the text came from choices[0].message.content.
	ReplyMessage ReplyKind = "message"
	// ReplyText means the text came from choices[0].text.
	ReplyText ReplyKind = "text"
	// ReplyUnparsed means the reply had no recognized text field; Text holds
	// the serialized first choice, or is empty when there were no choices.
	ReplyUnparsed ReplyKind = "unparsed"
	// ReplyRaw is used by the generic forward path, which performs no
	// extraction at all.
	ReplyRaw ReplyKind = "raw"
)

// Reply is a normalized upstream response.
type Reply struct {
	Kind  ReplyKind
	Text  string          // best-effort extracted text, empty for ReplyRaw
	Model string          // model the request was actually sent with
	Raw   json.RawMessage // upstream payload, unmodified
	Usage json.RawMessage // upstream usage metadata, nil if absent
}

// ErrNotConfigured is returned when neither forwarding path has been set
// up. It is a server-configuration error, distinct from an upstream call
// failing.
var ErrNotConfigured = errors.New("no upstream provider configured")

// UpstreamError wraps a network or protocol failure talking to a provider.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Forwarder sends a permitted prompt to exactly one upstream target.
type Forwarder interface {
	// Name returns the forwarding path name ("openai", "forward", "none").
	Name() string

	// Forward sends the prompt and normalizes the reply. It fails with
	// ErrNotConfigured when no path is set up, or *UpstreamError when the
	// call itself fails.
	Forward(ctx context.Context, prompt, model string) (*Reply, error)
}

// FromConfig selects the forwarding path once at startup. The named path
// requires both the selector and a credential; otherwise the generic URL is
// used if present. Request content never influences the selection.
func FromConfig(cfg *config.Config) Forwarder {
	if cfg.Provider == "openai" && cfg.OpenAI.APIKey != "" {
		return NewOpenAIForwarder(cfg.OpenAI, cfg.RequestTimeout)
	}
	if cfg.Forward.URL != "" {
		return NewGenericForwarder(cfg.Forward, cfg.RequestTimeout)
	}
	return Unconfigured{}
}

// Unconfigured is the forwarder used when no upstream path is set up.
type Unconfigured struct{}

func (Unconfigured) Name() string {
	return "none"
}

func (Unconfigured) Forward(ctx context.Context, prompt, model string) (*Reply, error) {
	return nil, ErrNotConfigured
}
