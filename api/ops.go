package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/jaym/shelf/catalog"
	"github.com/jaym/shelf/cdn"
	"github.com/jaym/shelf/metrics"
	"github.com/jaym/shelf/persist"
)

type storageStats struct {
	Backend persist.Kind   `json:"backend"`
	Counts  catalog.Counts `json:"counts"`
	Storage persist.Status `json:"storage"`
}

func (h *ApiHandler) storageStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, storageStats{
		Backend: h.persist.Kind(),
		Counts:  h.store.Counts(),
		Storage: h.persist.Status(r.Context()),
	})
}

func (h *ApiHandler) backupHandler(w http.ResponseWriter, r *http.Request) {
	paths, err := h.persist.Backup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if paths == nil {
		paths = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("%d files backed up", len(paths)),
		"files":   paths,
	})
}

func (h *ApiHandler) reloadHandler(w http.ResponseWriter, r *http.Request) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	snap, err := h.persist.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	h.store.Replace(snap)
	c := h.store.Counts()
	metrics.SetCatalogCounts(c.Movies, c.Series, c.Episodes)

	zerolog.Ctx(r.Context()).Info().Int("movies", c.Movies).Int("series", c.Series).Int("episodes", c.Episodes).Msg("data reloaded")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Reloaded from %s storage", h.persist.Kind()),
		"counts":  c,
	})
}

type githubStatus struct {
	Configured    bool         `json:"configured"`
	Active        bool         `json:"active"`
	Owner         string       `json:"owner"`
	Repo          string       `json:"repo"`
	Branch        string       `json:"branch"`
	Files         []string     `json:"files"`
	Backend       persist.Kind `json:"backend"`
	CDNConfigured bool         `json:"cdnConfigured"`
	CDNDomain     string       `json:"cdnDomain"`
}

func (h *ApiHandler) githubStatusHandler(w http.ResponseWriter, r *http.Request) {
	branch := h.github.Branch
	if branch == "" {
		branch = "main"
	}
	files := make([]string, 0, len(catalog.Sections))
	for _, sec := range catalog.Sections {
		files = append(files, "data/"+string(sec)+".json")
	}
	writeJSON(w, http.StatusOK, githubStatus{
		Configured:    h.github.Configured(),
		Active:        h.persist.Kind() == persist.KindRemoteVersioned,
		Owner:         h.github.Owner,
		Repo:          h.github.Repo,
		Branch:        branch,
		Files:         files,
		Backend:       h.persist.Kind(),
		CDNConfigured: h.cloudflareConfigured,
		CDNDomain:     h.rewriter.Domain(),
	})
}

type cdnStats struct {
	Enabled              bool        `json:"enabled"`
	CDNDomain            string      `json:"cdnDomain"`
	CachedURLs           int         `json:"cachedUrls"`
	CloudflareConfigured bool        `json:"cloudflareConfigured"`
	CacheEntries         []cdn.Entry `json:"cacheEntries"`
}

func (h *ApiHandler) cdnStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cdnStats{
		Enabled:              h.rewriter.Enabled(),
		CDNDomain:            h.rewriter.Domain(),
		CachedURLs:           h.rewriter.Len(),
		CloudflareConfigured: h.cloudflareConfigured,
		CacheEntries:         h.rewriter.Entries(),
	})
}

func (h *ApiHandler) cdnClearHandler(w http.ResponseWriter, r *http.Request) {
	cleared := h.rewriter.Len()
	h.rewriter.Clear()
	zerolog.Ctx(r.Context()).Info().Int("entries", cleared).Msg("cdn cache cleared")
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: fmt.Sprintf("CDN cache cleared (%d entries)", cleared)})
}

func (h *ApiHandler) tmdbLookupHandler(w http.ResponseWriter, r *http.Request) {
	if h.autofill == nil {
		writeUnavailable(w, "tmdb")
		return
	}
	draft, err := h.autofill.LookupIMDB(r.Context(), chi.URLParam(r, "imdbId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *ApiHandler) tmdbEpisodeHandler(w http.ResponseWriter, r *http.Request) {
	if h.autofill == nil {
		writeUnavailable(w, "tmdb")
		return
	}
	season, err := strconv.Atoi(chi.URLParam(r, "season"))
	if err != nil {
		writeError(w, &catalog.ValidationError{Msg: "invalid season"})
		return
	}
	episode, err := strconv.Atoi(chi.URLParam(r, "episode"))
	if err != nil {
		writeError(w, &catalog.ValidationError{Msg: "invalid episode"})
		return
	}
	draft, err := h.autofill.Episode(r.Context(), chi.URLParam(r, "imdbId"), season, episode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *ApiHandler) probeHandler(w http.ResponseWriter, r *http.Request) {
	if h.prober == nil {
		writeUnavailable(w, "probe")
		return
	}
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, &catalog.ValidationError{Fields: []string{"url"}})
		return
	}
	result, err := h.prober.Probe(r.Context(), target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ApiHandler) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"backend": h.persist.Kind(),
		"counts":  h.store.Counts(),
	})
}
