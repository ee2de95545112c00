package moderation

import (
	"context"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"llm_relay/internal/config"
)

// Result is an allow/block decision for a piece of input text.
type Result struct {
	Allowed bool     `json:"allowed"`
	Details *Details `json:"details,omitempty"`
}

// Details carries the structured reason for a block.
type Details struct {
	Reason     string   `json:"reason"`               // "blocklist" or "moderation_api"
	Term       string   `json:"term,omitempty"`       // matched blocklist term
	Categories []string `json:"categories,omitempty"` // flagged moderation categories
}

// denylist is the fixed fallback filter, matched case-insensitively as
// substrings.
var denylist = []string{
	"rm -rf",
	"mkfs",
	"format c:",
	"drop table",
	"del /f /s /q",
	"dd if=/dev/zero",
	":(){ :|:& };:",
	"shutdown -h now",
}

// Checker screens input text before it is forwarded upstream.
//
// Policy: when the upstream moderation service errors, the checker fails
// open and falls through to the blocklist instead of blocking outright.
// This is deliberate; do not tighten or loosen it silently.
type Checker struct {
	enabled bool
	client  *openai.Client // nil when no moderation service is configured
	log     *zap.Logger
}

// NewChecker builds a Checker. The moderation service is used only when
// the config enables it and a credential is present; baseURL overrides the
// service endpoint, which the tests point at a stub server.
func NewChecker(cfg config.ModerationConfig, apiKey, baseURL string, log *zap.Logger) *Checker {
	var client *openai.Client
	if cfg.Enabled && cfg.UseAPI && apiKey != "" {
		clientCfg := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			clientCfg.BaseURL = baseURL
		}
		client = openai.NewClientWithConfig(clientCfg)
	}
	return &Checker{
		enabled: cfg.Enabled,
		client:  client,
		log:     log,
	}
}

// Check returns an allow/block decision for text. A reachable moderation
// service decides alone; the blocklist is consulted only when the service
// is disabled, unconfigured or unreachable.
func (c *Checker) Check(ctx context.Context, text string) Result {
	if !c.enabled {
		return Result{Allowed: true}
	}

	if c.client != nil {
		resp, err := c.client.Moderations(ctx, openai.ModerationRequest{Input: text})
		if err != nil {
			c.log.Warn("moderation service call failed, falling back to blocklist", zap.Error(err))
		} else if len(resp.Results) > 0 {
			verdict := resp.Results[0]
			if verdict.Flagged {
				return Result{
					Allowed: false,
					Details: &Details{
						Reason:     "moderation_api",
						Categories: flaggedCategories(verdict.Categories),
					},
				}
			}
			return Result{Allowed: true}
		}
	}

	lowered := strings.ToLower(text)
	for _, term := range denylist {
		if strings.Contains(lowered, term) {
			return Result{
				Allowed: false,
				Details: &Details{Reason: "blocklist", Term: term},
			}
		}
	}
	return Result{Allowed: true}
}

func flaggedCategories(cat openai.ResultCategories) []string {
	var out []string
	for name, hit := range map[string]bool{
		"hate":                   cat.Hate,
		"hate/threatening":       cat.HateThreatening,
		"harassment":             cat.Harassment,
		"harassment/threatening": cat.HarassmentThreatening,
		"self-harm":              cat.SelfHarm,
		"self-harm/intent":       cat.SelfHarmIntent,
		"self-harm/instructions": cat.SelfHarmInstructions,
		"sexual":                 cat.Sexual,
		"sexual/minors":          cat.SexualMinors,
		"violence":               cat.Violence,
		"violence/graphic":       cat.ViolenceGraphic,
	} {
		if hit {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
