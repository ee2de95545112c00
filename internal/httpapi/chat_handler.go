package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"llm_relay/internal/logging"
	"llm_relay/internal/metrics"
	"llm_relay/internal/providers"
)

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// ChatResponse is the normalized success reply.
type ChatResponse struct {
	Text string          `json:"text"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

// handleChat relays one chat request.
//
// Flow:
//  1. Decode and validate the body (prompt required)
//  2. Moderation check
//  3. Forward to the configured upstream path
//  4. Best-effort usage record
//  5. Return the normalized reply
//
// Validation and moderation rejections happen before any forwarding call
// is made.
func (d *Dependencies) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := reqIDFromContext(ctx)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		d.Metrics.RecordOutcome(metrics.OutcomeBadRequest)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		d.Metrics.RecordOutcome(metrics.OutcomeBadRequest)
		respondError(w, http.StatusBadRequest, "Missing prompt")
		return
	}

	if res := d.Checker.Check(ctx, req.Prompt); !res.Allowed {
		d.Metrics.RecordOutcome(metrics.OutcomeBlocked)
		respondJSON(w, http.StatusForbidden, ErrorResponse{
			Error:   "Content blocked by moderation",
			Details: res.Details,
		})
		return
	}

	start := time.Now()
	reply, err := d.Forwarder.Forward(ctx, req.Prompt, req.Model)
	d.Metrics.ObserveUpstreamLatency(time.Since(start))

	if err != nil {
		if errors.Is(err, providers.ErrNotConfigured) {
			d.Metrics.RecordOutcome(metrics.OutcomeUnconfigured)
			respondError(w, http.StatusInternalServerError, "LLM backend not configured")
			return
		}
		d.Log.Error("upstream call failed",
			zap.String("request_id", reqID),
			zap.String("provider", d.Forwarder.Name()),
			zap.Error(err),
		)
		d.Metrics.RecordOutcome(metrics.OutcomeUpstreamError)
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Upstream request failed",
			Message: err.Error(),
		})
		return
	}

	d.Usage.Record(&logging.UsageRecord{
		RequestID: reqID,
		Provider:  d.Forwarder.Name(),
		Model:     reply.Model,
		Usage:     reply.Usage,
	})

	d.Metrics.RecordOutcome(metrics.OutcomeOK)
	respondJSON(w, http.StatusOK, ChatResponse{
		Text: reply.Text,
		Raw:  reply.Raw,
	})
}
