package catalog

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// Store keeps movies, series and episodes in memory. It is safe for
// concurrent use. Records handed out are copies; slices inside them are
// shared and must be treated as read-only.
type Store struct {
	mu       sync.RWMutex
	movies   []Movie
	series   []Series
	episodes []Episode
	now      func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Counts holds the number of records per section.
type Counts struct {
	Movies   int `json:"movies"`
	Series   int `json:"series"`
	Episodes int `json:"episodes"`
}

func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{Movies: len(s.movies), Series: len(s.series), Episodes: len(s.episodes)}
}

func (s *Store) FindMovie(id string) (Movie, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.movieIndex(id)
	if i < 0 {
		return Movie{}, false
	}
	return s.movies[i], true
}

func (s *Store) FindSeries(id string) (Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.seriesIndex(id)
	if i < 0 {
		return Series{}, false
	}
	return s.series[i], true
}

func (s *Store) FindEpisode(seriesID string, season, episode int) (Episode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.episodeIndex(seriesID, season, episode)
	if i < 0 {
		return Episode{}, false
	}
	return s.episodes[i], true
}

// ListEpisodes returns the episodes of a series ordered by season, then
// episode number. The parent series is not required to exist.
func (s *Store) ListEpisodes(seriesID string) []Episode {
	s.mu.RLock()
	out := []Episode{}
	for _, ep := range s.episodes {
		if ep.SeriesID == seriesID {
			out = append(out, ep)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Season != out[j].Season {
			return out[i].Season < out[j].Season
		}
		return out[i].Episode < out[j].Episode
	})
	return out
}

func (s *Store) Movies() []Movie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Movie{}, s.movies...)
}

func (s *Store) Series() []Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Series{}, s.series...)
}

func (s *Store) Episodes() []Episode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Episode{}, s.episodes...)
}

// InsertMovie adds a movie, stamping its type and, when unset, its
// DateAdded. It fails with a ConflictError if the id is taken.
func (s *Store) InsertMovie(m Movie) (Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.movieIndex(m.ID) >= 0 {
		return Movie{}, &ConflictError{Kind: TypeMovie, ID: m.ID}
	}
	m.Type = TypeMovie
	s.stamp(&m.DateAdded)
	s.movies = append(s.movies, m)
	return m, nil
}

func (s *Store) InsertSeries(sr Series) (Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seriesIndex(sr.ID) >= 0 {
		return Series{}, &ConflictError{Kind: TypeSeries, ID: sr.ID}
	}
	sr.Type = TypeSeries
	s.stamp(&sr.DateAdded)
	s.series = append(s.series, sr)
	return sr, nil
}

// InsertEpisode adds an episode to an existing series. The composite id is
// derived from the identity fields.
func (s *Store) InsertEpisode(ep Episode) (Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seriesIndex(ep.SeriesID) < 0 {
		return Episode{}, &NotFoundError{Kind: TypeSeries, ID: ep.SeriesID}
	}
	ep.ID = EpisodeID(ep.SeriesID, ep.Season, ep.Episode)
	if s.episodeIndex(ep.SeriesID, ep.Season, ep.Episode) >= 0 {
		return Episode{}, &ConflictError{Kind: "episode", ID: ep.ID}
	}
	s.stamp(&ep.DateAdded)
	s.episodes = append(s.episodes, ep)
	return ep, nil
}

// DeleteMovie removes a movie and returns it.
func (s *Store) DeleteMovie(id string) (Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.movieIndex(id)
	if i < 0 {
		return Movie{}, &NotFoundError{Kind: TypeMovie, ID: id}
	}
	m := s.movies[i]
	s.movies = slices.Delete(s.movies, i, i+1)
	return m, nil
}

// DeleteSeries removes a series together with all of its episodes and
// returns what was removed.
func (s *Store) DeleteSeries(id string) (Series, []Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.seriesIndex(id)
	if i < 0 {
		return Series{}, nil, &NotFoundError{Kind: TypeSeries, ID: id}
	}
	sr := s.series[i]
	s.series = slices.Delete(s.series, i, i+1)

	removed := []Episode{}
	kept := s.episodes[:0]
	for _, ep := range s.episodes {
		if ep.SeriesID == id {
			removed = append(removed, ep)
			continue
		}
		kept = append(kept, ep)
	}
	s.episodes = kept
	return sr, removed, nil
}

// DeleteEpisode removes one episode and returns it.
func (s *Store) DeleteEpisode(seriesID string, season, episode int) (Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.episodeIndex(seriesID, season, episode)
	if i < 0 {
		return Episode{}, &NotFoundError{Kind: "episode", ID: EpisodeID(seriesID, season, episode)}
	}
	ep := s.episodes[i]
	s.episodes = slices.Delete(s.episodes, i, i+1)
	return ep, nil
}

// RestoreMovie puts back a movie removed by DeleteMovie.
func (s *Store) RestoreMovie(m Movie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.movieIndex(m.ID) < 0 {
		s.movies = append(s.movies, m)
	}
}

// RestoreSeries puts back a series and the episodes removed with it.
func (s *Store) RestoreSeries(sr Series, episodes []Episode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seriesIndex(sr.ID) < 0 {
		s.series = append(s.series, sr)
	}
	for _, ep := range episodes {
		if s.episodeIndex(ep.SeriesID, ep.Season, ep.Episode) < 0 {
			s.episodes = append(s.episodes, ep)
		}
	}
}

// RestoreEpisode puts back an episode removed by DeleteEpisode.
func (s *Store) RestoreEpisode(ep Episode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.episodeIndex(ep.SeriesID, ep.Season, ep.Episode) < 0 {
		s.episodes = append(s.episodes, ep)
	}
}

// Snapshot copies the current contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Movies:   append([]Movie{}, s.movies...),
		Series:   append([]Series{}, s.series...),
		Episodes: append([]Episode{}, s.episodes...),
	}
}

// Replace swaps the whole contents for the given snapshot.
func (s *Store) Replace(snap Snapshot) {
	snap.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies = append([]Movie{}, snap.Movies...)
	s.series = append([]Series{}, snap.Series...)
	s.episodes = append([]Episode{}, snap.Episodes...)
}

func (s *Store) stamp(t *time.Time) {
	if t.IsZero() {
		*t = s.now().UTC()
	}
}

func (s *Store) movieIndex(id string) int {
	return slices.IndexFunc(s.movies, func(m Movie) bool { return m.ID == id })
}

func (s *Store) seriesIndex(id string) int {
	return slices.IndexFunc(s.series, func(sr Series) bool { return sr.ID == id })
}

func (s *Store) episodeIndex(seriesID string, season, episode int) int {
	return slices.IndexFunc(s.episodes, func(ep Episode) bool {
		return ep.SeriesID == seriesID && ep.Season == season && ep.Episode == episode
	})
}
