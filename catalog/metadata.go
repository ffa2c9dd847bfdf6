package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	TypeMovie  = "movie"
	TypeSeries = "series"
)

// Details holds the descriptive fields shared by movies and series.
type Details struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	Genre       []string   `json:"genre"`
	Year        FlexInt    `json:"year,omitempty"`
	Director    []string   `json:"director"`
	Cast        []string   `json:"cast"`
	Description string     `json:"description,omitempty"`
	Poster      string     `json:"poster,omitempty"`
	Background  string     `json:"background,omitempty"`
	Logo        string     `json:"logo,omitempty"`
	Runtime     FlexString `json:"runtime,omitempty"`
	IMDbRating  FlexString `json:"imdbRating,omitempty"`
	DateAdded   time.Time  `json:"dateAdded"`
}

type Movie struct {
	Details
	// URL is the playable source of the movie.
	URL      string `json:"url"`
	Quality  string `json:"quality,omitempty"`
	Language string `json:"language,omitempty"`
}

type Series struct {
	Details
}

// Episode belongs to a series and is identified by (SeriesID, Season, Episode).
type Episode struct {
	// ID is always EpisodeID(SeriesID, Season, Episode).
	ID          string     `json:"id"`
	SeriesID    string     `json:"seriesId"`
	Name        string     `json:"name"`
	Season      int        `json:"season"`
	Episode     int        `json:"episode"`
	Description string     `json:"description,omitempty"`
	Poster      string     `json:"poster,omitempty"`
	Year        FlexInt    `json:"year,omitempty"`
	Runtime     FlexString `json:"runtime,omitempty"`
	URL         string     `json:"url"`
	Quality     string     `json:"quality,omitempty"`
	Language    string     `json:"language,omitempty"`
	DateAdded   time.Time  `json:"dateAdded"`
}

// EpisodeID builds the composite "{seriesId}:{season}:{episode}" id.
func EpisodeID(seriesID string, season, episode int) string {
	return fmt.Sprintf("%s:%d:%d", seriesID, season, episode)
}

// ParseEpisodeID splits a composite episode id. It reports false unless the
// id has exactly three colon separated parts with integer season and episode.
func ParseEpisodeID(id string) (seriesID string, season, episode int, ok bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] == "" {
		return "", 0, 0, false
	}
	season, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, false
	}
	episode, err = strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, 0, false
	}
	return parts[0], season, episode, true
}

// SplitList turns a comma separated value into a trimmed list, dropping
// empty entries. It never returns nil.
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
