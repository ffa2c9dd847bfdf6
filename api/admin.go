package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/jaym/shelf/catalog"
	"github.com/jaym/shelf/metrics"
)

// save persists the named sections of the current store contents.
func (h *ApiHandler) save(ctx context.Context, sections ...catalog.Section) error {
	if err := h.persist.Save(ctx, h.store.Snapshot(), sections...); err != nil {
		return err
	}
	c := h.store.Counts()
	metrics.SetCatalogCounts(c.Movies, c.Series, c.Episodes)
	return nil
}

func (h *ApiHandler) addMovieHandler(w http.ResponseWriter, r *http.Request) {
	var p moviePayload
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, err)
		return
	}
	if err := p.validate(); err != nil {
		writeError(w, err)
		return
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	m, err := h.store.InsertMovie(p.movie())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.save(r.Context(), catalog.SectionMovies); err != nil {
		h.store.DeleteMovie(m.ID)
		writeError(w, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("id", m.ID).Str("name", m.Name).Msg("movie added")
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: fmt.Sprintf("Movie %q added", m.Name)})
}

func (h *ApiHandler) addSeriesHandler(w http.ResponseWriter, r *http.Request) {
	var p seriesPayload
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, err)
		return
	}
	if err := p.validate(); err != nil {
		writeError(w, err)
		return
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	s, err := h.store.InsertSeries(p.series())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.save(r.Context(), catalog.SectionSeries); err != nil {
		h.store.DeleteSeries(s.ID)
		writeError(w, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("id", s.ID).Str("name", s.Name).Msg("series added")
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: fmt.Sprintf("Series %q added", s.Name)})
}

func (h *ApiHandler) addEpisodeHandler(w http.ResponseWriter, r *http.Request) {
	var p episodePayload
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, err)
		return
	}
	if err := p.validate(); err != nil {
		writeError(w, err)
		return
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	ep, err := h.store.InsertEpisode(p.episode())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.save(r.Context(), catalog.SectionEpisodes); err != nil {
		h.store.DeleteEpisode(ep.SeriesID, ep.Season, ep.Episode)
		writeError(w, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("id", ep.ID).Str("name", ep.Name).Msg("episode added")
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: fmt.Sprintf("Episode %q added", ep.Name)})
}

func (h *ApiHandler) deleteHandler(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	id := resourceID(r, "id")

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	var msg string
	switch typ {
	case catalog.TypeMovie:
		m, err := h.store.DeleteMovie(id)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := h.save(r.Context(), catalog.SectionMovies); err != nil {
			h.store.RestoreMovie(m)
			writeError(w, err)
			return
		}
		msg = fmt.Sprintf("Movie %q deleted", m.Name)
	case catalog.TypeSeries:
		s, episodes, err := h.store.DeleteSeries(id)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := h.save(r.Context(), catalog.SectionSeries, catalog.SectionEpisodes); err != nil {
			h.store.RestoreSeries(s, episodes)
			// The series section may already hold the deletion.
			if rerr := h.save(r.Context(), catalog.SectionSeries); rerr != nil {
				zerolog.Ctx(r.Context()).Error().Err(rerr).Str("id", s.ID).Msg("failed to re-save series after rollback")
			}
			writeError(w, err)
			return
		}
		msg = fmt.Sprintf("Series %q and %d episodes deleted", s.Name, len(episodes))
	case "episode":
		seriesID, season, episode, ok := catalog.ParseEpisodeID(id)
		if !ok {
			writeError(w, &catalog.ValidationError{Msg: fmt.Sprintf("invalid episode id %q, want seriesId:season:episode", id)})
			return
		}
		ep, err := h.store.DeleteEpisode(seriesID, season, episode)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := h.save(r.Context(), catalog.SectionEpisodes); err != nil {
			h.store.RestoreEpisode(ep)
			writeError(w, err)
			return
		}
		msg = fmt.Sprintf("Episode %q deleted", ep.ID)
	default:
		writeError(w, &catalog.ValidationError{Msg: fmt.Sprintf("invalid type %q", typ)})
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("type", typ).Str("id", id).Msg("deleted")
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: msg})
}

func (h *ApiHandler) contentHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	snap.Normalize()
	writeJSON(w, http.StatusOK, snap)
}

type seriesEpisodes struct {
	SeriesID string            `json:"seriesId"`
	Count    int               `json:"count"`
	Episodes []catalog.Episode `json:"episodes"`
}

func (h *ApiHandler) debugEpisodesHandler(w http.ResponseWriter, r *http.Request) {
	id := resourceID(r, "id")
	episodes := h.store.ListEpisodes(id)
	writeJSON(w, http.StatusOK, seriesEpisodes{SeriesID: id, Count: len(episodes), Episodes: episodes})
}
