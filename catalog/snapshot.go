package catalog

import (
	"encoding/json"
	"fmt"
)

// Section names one independently persisted collection of the store.
type Section string

const (
	SectionMovies   Section = "movies"
	SectionSeries   Section = "series"
	SectionEpisodes Section = "episodes"
)

// Sections lists every section in load order.
var Sections = []Section{SectionMovies, SectionSeries, SectionEpisodes}

// Snapshot is a point-in-time copy of the store contents.
type Snapshot struct {
	Movies   []Movie   `json:"movies"`
	Series   []Series  `json:"series"`
	Episodes []Episode `json:"episodes"`
}

// Normalize replaces nil collections with empty ones so they encode as [].
func (s *Snapshot) Normalize() {
	if s.Movies == nil {
		s.Movies = []Movie{}
	}
	if s.Series == nil {
		s.Series = []Series{}
	}
	if s.Episodes == nil {
		s.Episodes = []Episode{}
	}
}

// MarshalSection encodes one section as a JSON array.
func (s Snapshot) MarshalSection(sec Section) ([]byte, error) {
	s.Normalize()
	switch sec {
	case SectionMovies:
		return json.Marshal(s.Movies)
	case SectionSeries:
		return json.Marshal(s.Series)
	case SectionEpisodes:
		return json.Marshal(s.Episodes)
	default:
		return nil, fmt.Errorf("unknown section %q", sec)
	}
}

// UnmarshalSection decodes a JSON array into one section, replacing it.
func (s *Snapshot) UnmarshalSection(sec Section, data []byte) error {
	var err error
	switch sec {
	case SectionMovies:
		var movies []Movie
		err = json.Unmarshal(data, &movies)
		s.Movies = movies
	case SectionSeries:
		var series []Series
		err = json.Unmarshal(data, &series)
		s.Series = series
	case SectionEpisodes:
		var episodes []Episode
		err = json.Unmarshal(data, &episodes)
		s.Episodes = episodes
	default:
		return fmt.Errorf("unknown section %q", sec)
	}
	if err != nil {
		return fmt.Errorf("decoding %s: %w", sec, err)
	}
	s.Normalize()
	return nil
}
