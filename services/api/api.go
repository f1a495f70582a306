package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"omniversal/pkg/telemetry"
	"omniversal/services/archive"
	"omniversal/services/kernel"
)

const (
	defaultRateLimit = 100
	defaultTTL       = 5 * time.Minute
	maxTTL           = time.Hour
)

// RunArchive lists archived kernel runs. *archive.Archive satisfies it.
type RunArchive interface {
	ListRuns(ctx context.Context, limit int) ([]archive.Run, error)
	ListSnapshots(ctx context.Context, runID uuid.UUID, limit int) ([]archive.Snapshot, error)
	Ping(ctx context.Context) error
}

// Renderer draws a state document as text. *dashboard.Renderer satisfies it.
type Renderer interface {
	Render(st kernel.State) (string, error)
}

// Presigner issues time limited download URLs. *s3.Client satisfies it.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Config controls runtime behaviour for the API handlers.
type Config struct {
	AllowedOrigins []string
	// RateLimit is the number of requests allowed per client IP each minute.
	RateLimit int
	// Middleware wraps every route, typically the telemetry middleware.
	Middleware func(http.Handler) http.Handler
}

// API serves the status of a running kernel.
type API struct {
	kernel    *kernel.Kernel
	archive   RunArchive
	presigner Presigner
	renderer  Renderer
	config    Config
	logger    zerolog.Logger
}

// Option configures optional API dependencies.
type Option func(*API)

// WithArchive enables the /v1/runs endpoints.
func WithArchive(a RunArchive) Option {
	return func(api *API) { api.archive = a }
}

// WithPresigner enables /v1/presign.
func WithPresigner(p Presigner) Option {
	return func(api *API) { api.presigner = p }
}

// WithRenderer enables the text form of /v1/dashboard.
func WithRenderer(r Renderer) Option {
	return func(api *API) { api.renderer = r }
}

// WithLogger sets the handler logger.
func WithLogger(l zerolog.Logger) Option {
	return func(api *API) { api.logger = l }
}

// New builds the API for k.
func New(k *kernel.Kernel, cfg Config, opts ...Option) (*API, error) {
	if k == nil {
		return nil, errors.New("kernel is required")
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	a := &API{kernel: k, config: cfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}
	telemetry.RegisterMetrics()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if a.config.Middleware != nil {
		r.Use(a.config.Middleware)
	}

	r.Get("/healthz", a.handleHealth)
	r.Get("/readyz", a.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(a.config.RateLimit, time.Minute))
		r.Get("/status", a.handleStatus)
		r.Get("/dashboard", a.handleDashboard)
		r.Get("/layers", a.handleLayers)
		r.Get("/layers/{kind}", a.handleLayer)
		r.Get("/snapshots", a.handleSnapshots)
		r.Get("/runs", a.handleRuns)
		r.Get("/runs/{id}/snapshots", a.handleRunSnapshots)
		r.Get("/presign", a.handlePresign)
	})

	return r, nil
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	phase := a.kernel.Phase()
	if phase == kernel.PhaseFailed {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "failed", "phase": string(phase)})
		return
	}
	if a.archive != nil {
		ctx, cancel := withTimeout(r.Context())
		defer cancel()
		if err := a.archive.Ping(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("archive not ready")
			respondError(w, http.StatusServiceUnavailable, errors.New("archive unavailable"))
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready", "phase": string(phase)})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.kernel.Status())
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.URL.Query().Get("format"), "text") {
		respondJSON(w, http.StatusOK, a.kernel.Dashboard().View())
		return
	}
	if a.renderer == nil {
		respondError(w, http.StatusNotImplemented, errors.New("text rendering not configured"))
		return
	}
	out, err := a.renderer.Render(a.kernel.Status())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}
