// Package api serves the remote draft store and the stateless computation
// endpoints over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/filing-assistant/internal/aggregate"
	"github.com/sells-group/filing-assistant/internal/audit"
	"github.com/sells-group/filing-assistant/internal/formrule"
	"github.com/sells-group/filing-assistant/internal/model"
	"github.com/sells-group/filing-assistant/internal/store"
	"github.com/sells-group/filing-assistant/internal/taxcalc"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	Store      store.Store
	Engine     *aggregate.Engine
	Calculator *taxcalc.Calculator
	Determiner *formrule.Determiner
	Audit      audit.Sink

	// RateLimit is requests per second per client for the computation
	// endpoints. Zero disables limiting.
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
}

type server struct {
	Deps
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	s := &server{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(d.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/drafts", func(r chi.Router) {
			r.Get("/", s.listDrafts)
			r.Post("/", s.createDraft)
			r.Get("/{id}", s.getDraft)
			r.Put("/{id}", s.updateDraft)
		})

		r.Group(func(r chi.Router) {
			if d.RateLimit > 0 {
				r.Use(newIPLimiter(d.RateLimit, d.RateBurst).middleware)
			}
			r.Post("/positions", s.aggregate)
			r.Post("/forms/recommend", s.recommendForm)
			r.Post("/tax/compare", s.compareRegimes)
		})
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *server) logEvent(r *http.Request, kind string, payload map[string]any) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.LogEvent(r.Context(), kind, payload); err != nil {
		zap.L().Warn("api: audit event dropped", zap.String("kind", kind), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeFailure maps domain errors to status codes.
func writeFailure(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: verr.Reason, Field: verr.Field})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "draft not found")
	case errors.Is(err, store.ErrSubmitted):
		writeError(w, http.StatusConflict, "draft is submitted")
	default:
		zap.L().Error("api: request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
