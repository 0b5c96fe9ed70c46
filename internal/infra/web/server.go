package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"adept/internal/infra/logging"
	"adept/internal/infra/storage"
	"adept/internal/usecase"
)

type Server struct {
	jobUC usecase.JobUseCase
	store *storage.Local
	auth  *AuthManager
	log   *zerolog.Logger
}

func NewServer(jobUC usecase.JobUseCase, store *storage.Local, auth *AuthManager, logger *zerolog.Logger) *Server {
	return &Server{jobUC: jobUC, store: store, auth: auth, log: logger}
}

// Router builds the full HTTP surface: the job API, upload endpoints and
// the operational endpoints.
func (s *Server) Router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.trace)
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Identify)

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/extract", s.extractHandler)
			r.Post("/{jobID}/update", s.updateHandler)
			r.Post("/{jobID}/finalize", s.finalizeHandler)
			r.Get("/{jobID}", s.getJobHandler)
		})
		r.Post("/uploads", s.uploadsHandler)
	})

	r.Put("/storage/{token}", s.storagePutHandler)
	r.Get("/files/{name}", s.filesHandler)

	return r
}

// trace attaches a per-request trace ID and logs the request outcome.
func (s *Server) trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithTraceID(r.Context(), uuid.NewString())

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.With(ctx, s.log).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
