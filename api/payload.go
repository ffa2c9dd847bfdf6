package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/jaym/shelf/catalog"
)

const maxBodyBytes = 1 << 20

type detailsPayload struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Genre       catalog.StringList `json:"genre"`
	Year        catalog.FlexInt    `json:"year"`
	Director    catalog.StringList `json:"director"`
	Cast        catalog.StringList `json:"cast"`
	Description string             `json:"description"`
	Poster      string             `json:"poster"`
	Background  string             `json:"background"`
	Logo        string             `json:"logo"`
	Runtime     catalog.FlexString `json:"runtime"`
	IMDbRating  catalog.FlexString `json:"imdbRating"`
}

func (p detailsPayload) details(typ string) catalog.Details {
	return catalog.Details{
		ID:          strings.TrimSpace(p.ID),
		Type:        typ,
		Name:        strings.TrimSpace(p.Name),
		Genre:       nonNil(p.Genre),
		Year:        p.Year,
		Director:    nonNil(p.Director),
		Cast:        nonNil(p.Cast),
		Description: p.Description,
		Poster:      p.Poster,
		Background:  p.Background,
		Logo:        p.Logo,
		Runtime:     p.Runtime,
		IMDbRating:  p.IMDbRating,
	}
}

type moviePayload struct {
	detailsPayload
	URL      string `json:"url"`
	Quality  string `json:"quality"`
	Language string `json:"language"`
}

func (p moviePayload) validate() error {
	return requireFields(field{"id", p.ID}, field{"name", p.Name}, field{"url", p.URL})
}

func (p moviePayload) movie() catalog.Movie {
	return catalog.Movie{
		Details:  p.details(catalog.TypeMovie),
		URL:      strings.TrimSpace(p.URL),
		Quality:  p.Quality,
		Language: p.Language,
	}
}

type seriesPayload struct {
	detailsPayload
}

func (p seriesPayload) validate() error {
	return requireFields(field{"id", p.ID}, field{"name", p.Name})
}

func (p seriesPayload) series() catalog.Series {
	return catalog.Series{Details: p.details(catalog.TypeSeries)}
}

type episodePayload struct {
	SeriesID    string             `json:"seriesId"`
	Name        string             `json:"name"`
	Season      catalog.FlexInt    `json:"season"`
	Episode     catalog.FlexInt    `json:"episode"`
	Description string             `json:"description"`
	Poster      string             `json:"poster"`
	Year        catalog.FlexInt    `json:"year"`
	Runtime     catalog.FlexString `json:"runtime"`
	URL         string             `json:"url"`
	Quality     string             `json:"quality"`
	Language    string             `json:"language"`
}

func (p episodePayload) validate() error {
	var missing []string
	for _, f := range []field{{"seriesId", p.SeriesID}, {"name", p.Name}} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if p.Season == 0 {
		missing = append(missing, "season")
	}
	if p.Episode == 0 {
		missing = append(missing, "episode")
	}
	if strings.TrimSpace(p.URL) == "" {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		return &catalog.ValidationError{Fields: missing}
	}
	if p.Season < 0 || p.Episode < 0 {
		return &catalog.ValidationError{Msg: "season and episode must be positive numbers"}
	}
	return nil
}

func (p episodePayload) episode() catalog.Episode {
	return catalog.Episode{
		SeriesID:    strings.TrimSpace(p.SeriesID),
		Name:        strings.TrimSpace(p.Name),
		Season:      int(p.Season),
		Episode:     int(p.Episode),
		Description: p.Description,
		Poster:      p.Poster,
		Year:        p.Year,
		Runtime:     p.Runtime,
		URL:         strings.TrimSpace(p.URL),
		Quality:     p.Quality,
		Language:    p.Language,
	}
}

type field struct {
	name  string
	value string
}

func requireFields(fields ...field) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &catalog.ValidationError{Fields: missing}
	}
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if err == io.EOF {
			return &catalog.ValidationError{Msg: "request body is empty"}
		}
		return &catalog.ValidationError{Msg: "invalid request body: " + err.Error()}
	}
	return nil
}
