package moderation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"llm_relay/internal/config"
)

func TestCheckDisabledAllowsEverything(t *testing.T) {
	c := NewChecker(config.ModerationConfig{Enabled: false}, "", "", zap.NewNop())

	res := c.Check(context.Background(), "please rm -rf / right now")
	assert.True(t, res.Allowed)
	assert.Nil(t, res.Details)
}

func TestBlocklistMatchesCaseInsensitively(t *testing.T) {
	c := NewChecker(config.ModerationConfig{Enabled: true}, "", "", zap.NewNop())

	res := c.Check(context.Background(), "Please RM -RF / my home dir")
	require.False(t, res.Allowed)
	require.NotNil(t, res.Details)
	assert.Equal(t, "blocklist", res.Details.Reason)
	assert.Equal(t, "rm -rf", res.Details.Term)
}

func TestBlocklistAllowsCleanText(t *testing.T) {
	c := NewChecker(config.ModerationConfig{Enabled: true}, "", "", zap.NewNop())

	res := c.Check(context.Background(), "write me a haiku about rivers")
	assert.True(t, res.Allowed)
}

func moderationStub(t *testing.T, body string, status int, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/moderations", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestModerationServiceFlaggedBlocks(t *testing.T) {
	var calls atomic.Int64
	srv := moderationStub(t,
		`{"id":"modr-1","model":"text-moderation-007","results":[{"flagged":true,"categories":{"hate":true,"violence":true},"category_scores":{"hate":0.98,"violence":0.91}}]}`,
		http.StatusOK, &calls)

	c := NewChecker(config.ModerationConfig{Enabled: true, UseAPI: true}, "test-key", srv.URL, zap.NewNop())

	res := c.Check(context.Background(), "some hateful text")
	require.False(t, res.Allowed)
	require.NotNil(t, res.Details)
	assert.Equal(t, "moderation_api", res.Details.Reason)
	assert.Equal(t, []string{"hate", "violence"}, res.Details.Categories)
	assert.Equal(t, int64(1), calls.Load())
}

func TestModerationServiceVerdictOverridesBlocklist(t *testing.T) {
	// A reachable, unflagged verdict allows the text even when it contains
	// a denylisted term; the blocklist is only the fallback.
	var calls atomic.Int64
	srv := moderationStub(t,
		`{"id":"modr-2","model":"text-moderation-007","results":[{"flagged":false,"categories":{},"category_scores":{}}]}`,
		http.StatusOK, &calls)

	c := NewChecker(config.ModerationConfig{Enabled: true, UseAPI: true}, "test-key", srv.URL, zap.NewNop())

	res := c.Check(context.Background(), "explain what rm -rf does")
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), calls.Load())
}

func TestModerationServiceErrorFailsOpenToBlocklist(t *testing.T) {
	var calls atomic.Int64
	srv := moderationStub(t, `{"error":{"message":"boom"}}`, http.StatusInternalServerError, &calls)

	c := NewChecker(config.ModerationConfig{Enabled: true, UseAPI: true}, "test-key", srv.URL, zap.NewNop())

	res := c.Check(context.Background(), "please rm -rf /")
	require.False(t, res.Allowed)
	assert.Equal(t, "blocklist", res.Details.Reason)

	res = c.Check(context.Background(), "a harmless question")
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(2), calls.Load())
}

func TestModerationServiceUnreachableFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewChecker(config.ModerationConfig{Enabled: true, UseAPI: true}, "test-key", srv.URL, zap.NewNop())

	res := c.Check(context.Background(), "please rm -rf /")
	require.False(t, res.Allowed)
	assert.Equal(t, "blocklist", res.Details.Reason)
}

func TestCheckerWithoutCredentialUsesBlocklist(t *testing.T) {
	// UseAPI set but no credential: the service path is never constructed.
	c := NewChecker(config.ModerationConfig{Enabled: true, UseAPI: true}, "", "", zap.NewNop())

	res := c.Check(context.Background(), "drop table users;")
	require.False(t, res.Allowed)
	assert.Equal(t, "blocklist", res.Details.Reason)
	assert.Equal(t, "drop table", res.Details.Term)
}
