package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/jaym/shelf/catalog"
	"github.com/jaym/shelf/cdn"
	"github.com/jaym/shelf/metrics"
	"github.com/jaym/shelf/objstore"
	"github.com/jaym/shelf/persist"
	processor "github.com/jaym/shelf/processors"
	"github.com/jaym/shelf/tmdb"
)

// AutoFiller produces drafts for the admin forms.
type AutoFiller interface {
	LookupIMDB(ctx context.Context, imdbID string) (tmdb.Draft, error)
	Episode(ctx context.Context, imdbID string, season, episode int) (tmdb.EpisodeDraft, error)
}

// MediaProber inspects a media URL.
type MediaProber interface {
	Probe(ctx context.Context, target string) (*processor.ProbeResult, error)
}

// Options carries everything the handlers depend on. Store and Persist are
// required; the rest are optional and their endpoints answer 503 when unset.
type Options struct {
	Store    *catalog.Store
	Persist  persist.Adapter
	Rewriter *cdn.Rewriter
	Manifest ManifestConfig

	AutoFill AutoFiller
	Prober   MediaProber

	GitHub               objstore.GitHubConfig
	CloudflareConfigured bool
}

type ApiHandler struct {
	store    *catalog.Store
	persist  persist.Adapter
	rewriter *cdn.Rewriter
	manifest Manifest
	autofill AutoFiller
	prober   MediaProber

	github               objstore.GitHubConfig
	cloudflareConfigured bool

	// writeMu makes each mutation and its save (or rollback) one step.
	writeMu sync.Mutex
	now     func() time.Time
}

func NewApiHandler(opts Options) http.Handler {
	h := newApiHandler(opts)
	return h.routes()
}

func newApiHandler(opts Options) *ApiHandler {
	return &ApiHandler{
		store:                opts.Store,
		persist:              opts.Persist,
		rewriter:             opts.Rewriter,
		manifest:             opts.Manifest.build(),
		autofill:             opts.AutoFill,
		prober:               opts.Prober,
		github:               opts.GitHub,
		cloudflareConfigured: opts.CloudflareConfigured,
		now:                  time.Now,
	}
}

func (h *ApiHandler) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(allowCORS)

	r.Get("/manifest.json", h.manifestHandler)
	r.Get("/catalog/{type}/{id}", h.catalogHandler)
	r.Get("/catalog/{type}/{id}/{extra}", h.catalogHandler)
	r.Get("/meta/{type}/{id}", h.metaHandler)
	r.Get("/stream/{type}/{id}", h.streamHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/add-movie", h.addMovieHandler)
		r.Post("/add-series", h.addSeriesHandler)
		r.Post("/add-episode", h.addEpisodeHandler)
		r.Delete("/delete/{type}/{id}", h.deleteHandler)
		r.Get("/content", h.contentHandler)
		r.Get("/debug/series/{id}/episodes", h.debugEpisodesHandler)

		r.Get("/storage/stats", h.storageStatsHandler)
		r.Post("/storage/backup", h.backupHandler)
		r.Post("/reload-data", h.reloadHandler)
		r.Get("/github-status", h.githubStatusHandler)
		r.Get("/cdn/stats", h.cdnStatsHandler)
		r.Post("/cdn/clear-cache", h.cdnClearHandler)

		r.Get("/tmdb/lookup/{imdbId}", h.tmdbLookupHandler)
		r.Get("/tmdb/episode/{imdbId}/{season}/{episode}", h.tmdbEpisodeHandler)
		r.Get("/probe", h.probeHandler)
	})

	r.Get("/health", h.healthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

func allowCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor extends catalog.HTTPStatus with the errors of the outer layers.
func statusFor(err error) int {
	var upstream *tmdb.UpstreamError
	var probeErr *processor.ProbeError
	switch {
	case errors.As(err, &upstream), errors.As(err, &probeErr):
		return http.StatusBadGateway
	case errors.Is(err, persist.ErrBackupUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return catalog.HTTPStatus(err)
}

var errUnavailable = errors.New("feature not configured")

func writeUnavailable(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: what + ": " + errUnavailable.Error()})
}
