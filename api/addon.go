package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jaym/shelf/catalog"
)

const (
	defaultQuality  = "HD"
	defaultLanguage = "Español"
	releasedFormat  = "2006-01-02T15:04:05.000Z07:00"
)

// MetaPreview is the catalog projection of a movie or series.
type MetaPreview struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Poster      string   `json:"poster,omitempty"`
	Background  string   `json:"background,omitempty"`
	Logo        string   `json:"logo,omitempty"`
	Description string   `json:"description,omitempty"`
	Year        int      `json:"year,omitempty"`
	IMDbRating  string   `json:"imdbRating,omitempty"`
	Genre       []string `json:"genre"`
	Director    []string `json:"director"`
	Cast        []string `json:"cast"`
}

type Video struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Season    int    `json:"season"`
	Episode   int    `json:"episode"`
	Overview  string `json:"overview"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Released  string `json:"released"`
	Runtime   string `json:"runtime,omitempty"`
}

// SeriesMeta is a series record with its episodes as videos.
type SeriesMeta struct {
	catalog.Series
	Videos []Video `json:"videos"`
}

type Stream struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Quality string `json:"quality"`
}

// resourceID reads an {id} path value and drops the .json suffix.
func resourceID(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return strings.TrimSuffix(raw, ".json")
}

func (h *ApiHandler) manifestHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manifest)
}

func (h *ApiHandler) catalogHandler(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	id := resourceID(r, "id")

	metas := []MetaPreview{}
	switch {
	case typ == catalog.TypeMovie && id == movieCatalogID:
		for _, m := range h.store.Movies() {
			metas = append(metas, preview(m.Details))
		}
	case typ == catalog.TypeSeries && id == seriesCatalogID:
		for _, s := range h.store.Series() {
			metas = append(metas, preview(s.Details))
		}
	}
	writeJSON(w, http.StatusOK, map[string][]MetaPreview{"metas": metas})
}

func preview(d catalog.Details) MetaPreview {
	return MetaPreview{
		ID:          d.ID,
		Type:        d.Type,
		Name:        d.Name,
		Poster:      d.Poster,
		Background:  d.Background,
		Logo:        d.Logo,
		Description: d.Description,
		Year:        int(d.Year),
		IMDbRating:  string(d.IMDbRating),
		Genre:       nonNil(d.Genre),
		Director:    nonNil(d.Director),
		Cast:        nonNil(d.Cast),
	}
}

func (h *ApiHandler) metaHandler(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	id := resourceID(r, "id")

	switch typ {
	case catalog.TypeMovie:
		if m, ok := h.store.FindMovie(id); ok {
			writeJSON(w, http.StatusOK, map[string]any{"meta": m})
			return
		}
	case catalog.TypeSeries:
		if s, ok := h.store.FindSeries(id); ok {
			writeJSON(w, http.StatusOK, map[string]any{"meta": h.seriesMeta(s)})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "Content not found"})
}

func (h *ApiHandler) seriesMeta(s catalog.Series) SeriesMeta {
	episodes := h.store.ListEpisodes(s.ID)
	videos := make([]Video, 0, len(episodes))
	for _, ep := range episodes {
		v := Video{
			ID:        catalog.EpisodeID(s.ID, ep.Season, ep.Episode),
			Title:     fmt.Sprintf("S%02dE%02d - %s", ep.Season, ep.Episode, ep.Name),
			Season:    ep.Season,
			Episode:   ep.Episode,
			Overview:  ep.Description,
			Thumbnail: ep.Poster,
			Runtime:   string(ep.Runtime),
		}
		if v.Thumbnail == "" {
			v.Thumbnail = s.Poster
		}
		if v.Runtime == "" {
			v.Runtime = string(s.Runtime)
		}
		released := h.now()
		if ep.Year > 0 {
			released = time.Date(int(ep.Year), time.January, 1, 0, 0, 0, 0, time.UTC)
		}
		v.Released = released.UTC().Format(releasedFormat)
		videos = append(videos, v)
	}
	return SeriesMeta{Series: s, Videos: videos}
}

func (h *ApiHandler) streamHandler(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	id := resourceID(r, "id")

	streams := []Stream{}
	switch typ {
	case catalog.TypeMovie:
		if m, ok := h.store.FindMovie(id); ok && m.URL != "" {
			streams = append(streams, h.stream(m.URL, m.Quality, m.Language))
		}
	case catalog.TypeSeries:
		// Malformed ids are not an error, they just have no streams.
		seriesID, season, episode, ok := catalog.ParseEpisodeID(id)
		if !ok {
			break
		}
		if ep, found := h.store.FindEpisode(seriesID, season, episode); found && ep.URL != "" {
			streams = append(streams, h.stream(ep.URL, ep.Quality, ep.Language))
		}
	}
	writeJSON(w, http.StatusOK, map[string][]Stream{"streams": streams})
}

func (h *ApiHandler) stream(rawURL, quality, language string) Stream {
	if quality == "" {
		quality = defaultQuality
	}
	if language == "" {
		language = defaultLanguage
	}
	return Stream{
		URL:     h.rewriter.Rewrite(rawURL),
		Title:   quality + " - " + language,
		Quality: quality,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
