package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"llm_relay/internal/config"
	"llm_relay/internal/logging"
	"llm_relay/internal/metrics"
	"llm_relay/internal/moderation"
	"llm_relay/internal/providers"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Config    *config.Config
	Checker   *moderation.Checker
	Forwarder providers.Forwarder
	Usage     logging.Sink
	Metrics   metrics.Metrics
	Log       *zap.Logger
}

type ctxKey int

const requestIDKey ctxKey = 0

// NewRouter wires up the HTTP surface: health, metrics and the chat relay
// endpoint behind request-ID, access-log, panic-recovery and body-cap
// middleware.
func NewRouter(deps *Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(accessLog(deps.Log))
	r.Use(recoverer(deps.Log, deps.Metrics))
	r.Use(chimw.RequestSize(deps.Config.MaxBodyBytes))

	r.Get("/health", deps.handleHealth)
	r.Handle("/metrics", deps.Metrics.HTTPHandler())
	r.Post("/chat", deps.handleChat)

	return r
}

func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"provider": d.Forwarder.Name(),
	})
}

// requestID assigns a UUID to each request for tracing and usage records.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// reqIDFromContext returns the request ID set by the requestID middleware.
func reqIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// accessLog logs one line per handled request.
func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("request_id", reqIDFromContext(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// recoverer turns any panic in the pipeline into a generic internal-error
// response; the process must never crash from a single request's failure.
func recoverer(log *zap.Logger, m metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					log.Error("panic recovered",
						zap.String("request_id", reqIDFromContext(r.Context())),
						zap.Any("panic", rvr),
					)
					m.RecordOutcome(metrics.OutcomeInternalError)
					respondJSON(w, http.StatusInternalServerError, ErrorResponse{
						Error:   "Internal server error",
						Message: fmt.Sprint(rvr),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
