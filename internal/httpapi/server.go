package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"storyd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Root() types.RootResponse
	Health() types.HealthResponse
	GenerateStory(ctx context.Context, req types.GenerateRequest) types.GenerateResponse
	ReloadModel(ctx context.Context) types.ReloadResponse
	ModelStatus() types.ModelStatusResponse
	Ready() bool
}

// NewMux builds the router for svc.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: orDefault(corsAllowedOrigins, []string{"*"}),
			AllowedMethods: orDefault(corsAllowedMethods, []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: orDefault(corsAllowedHeaders, []string{"Content-Type", "X-Log-Level", "X-Request-Id"}),
			MaxAge:         300,
		}))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Root())
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Health())
	})

	r.Get("/model-status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.ModelStatus())
	})

	r.Post("/generate-story", func(w http.ResponseWriter, r *http.Request) {
		// Content-Type check
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// Oversized bodies also land here; report 400 without size details.
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		start := time.Now()
		lvl := requestLogLevel(r)
		reqEvent(r, lvl, LevelInfo).Int("prompt_len", len(req.Prompt)).Msg("generate start")
		reqEvent(r, lvl, LevelDebug).Str("prompt", preview(req.Prompt, 50)).Msg("generate prompt")

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		resp := svc.GenerateStory(ctx, req)
		if r.Context().Err() != nil {
			// client went away; nothing to write
			return
		}
		writeJSON(w, http.StatusOK, resp)
		logEnd(r, lvl, start, func(ev *zerolog.Event) {
			ev.Str("status", resp.Status).Bool("model_used", resp.ModelUsed).Int("story_len", len(resp.Story))
			if resp.Note != "" {
				ev.Str("note", resp.Note)
			}
			if resp.Error != "" {
				ev.Str("error", resp.Error)
			}
		})
	})

	r.Post("/reload-model", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lvl := requestLogLevel(r)
		// Reloads are not tied to the client connection; a disconnect must
		// not leave the model half-loaded.
		ctx := serverBaseCtx
		if reloadTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, reloadTimeout)
			defer cancel()
		}
		resp := svc.ReloadModel(ctx)
		writeJSON(w, http.StatusOK, resp)
		logEnd(r, lvl, start, func(ev *zerolog.Event) {
			ev.Str("status", resp.Status).Bool("model_loaded", resp.ModelLoaded)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(svc.ModelStatus().State))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
