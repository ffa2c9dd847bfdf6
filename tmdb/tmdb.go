// Package tmdb fills catalog drafts from The Movie Database, keyed by IMDb id.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	tmdb "github.com/ryanbradynd05/go-tmdb"

	"github.com/jaym/shelf/catalog"
)

const (
	defaultLanguage = "es-MX"
	defaultCacheTTL = 24 * time.Hour
	posterBase      = "https://image.tmdb.org/t/p/w500"
	backdropBase    = "https://image.tmdb.org/t/p/w1280"
	topCast         = 5
)

// ErrNotConfigured is returned by New without an API key.
var ErrNotConfigured = errors.New("tmdb: api key not configured")

// Client is the part of *tmdb.TMDb used here.
type Client interface {
	GetMovieInfo(id int, options map[string]string) (*tmdb.Movie, error)
	GetTvInfo(id int, options map[string]string) (*tmdb.TV, error)
	GetTvEpisodeInfo(showID, seasonNum, episodeNum int, options map[string]string) (*tmdb.TvEpisode, error)
}

type Config struct {
	APIKey   string        `mapstructure:"api_key"`
	Language string        `mapstructure:"language"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// BaseURL overrides the API root of the find endpoint, mostly for tests.
	BaseURL string `mapstructure:"base_url"`
}

// UpstreamError is a failed or malformed TMDB response.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("tmdb %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Draft is the auto-filled form of a movie or series.
type Draft struct {
	Type        string   `json:"type"`
	TMDBID      int      `json:"tmdbId"`
	Name        string   `json:"name"`
	Year        int      `json:"year,omitempty"`
	Runtime     string   `json:"runtime,omitempty"`
	Genre       []string `json:"genre"`
	Director    []string `json:"director"`
	Cast        []string `json:"cast"`
	IMDbRating  string   `json:"imdbRating,omitempty"`
	Poster      string   `json:"poster,omitempty"`
	Background  string   `json:"background,omitempty"`
	Description string   `json:"description,omitempty"`
}

// EpisodeDraft is the auto-filled form of one episode.
type EpisodeDraft struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Runtime     string `json:"runtime,omitempty"`
	Poster      string `json:"poster,omitempty"`
	Year        int    `json:"year,omitempty"`
}

type Service struct {
	client   Client
	finder   Finder
	language string
	cache    *cache.Cache
}

// New builds a Service backed by the live TMDB API.
func New(cfg Config) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	client := tmdb.Init(tmdb.Config{
		APIKey:   cfg.APIKey,
		Proxies:  nil,
		UseProxy: false,
	})
	finder := NewHTTPFinder(cfg.APIKey, cfg.BaseURL, &http.Client{Timeout: 15 * time.Second})
	return NewService(client, finder, cfg), nil
}

// NewService wires explicit clients; New is the usual entry point.
func NewService(client Client, finder Finder, cfg Config) *Service {
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &Service{
		client:   client,
		finder:   finder,
		language: cfg.Language,
		cache:    cache.New(cfg.CacheTTL, 10*time.Minute),
	}
}

func validateIMDB(imdbID string) error {
	if !strings.HasPrefix(imdbID, "tt") || len(imdbID) < 3 {
		return &catalog.ValidationError{Msg: fmt.Sprintf("%q is not an IMDb id (expected tt...)", imdbID)}
	}
	return nil
}

// LookupIMDB resolves an IMDb id to a movie or series draft.
func (s *Service) LookupIMDB(ctx context.Context, imdbID string) (Draft, error) {
	if err := validateIMDB(imdbID); err != nil {
		return Draft{}, err
	}
	cacheKey := "title:" + s.language + ":" + imdbID
	if cached, found := s.cache.Get(cacheKey); found {
		if d, ok := cached.(Draft); ok {
			return d, nil
		}
	}

	found, err := s.find(ctx, imdbID)
	if err != nil {
		return Draft{}, err
	}

	var d Draft
	switch {
	case len(found.MovieResults) > 0:
		d, err = s.movie(found.MovieResults[0].ID)
	case len(found.TVResults) > 0:
		d, err = s.series(found.TVResults[0].ID)
	default:
		return Draft{}, &catalog.NotFoundError{Kind: "tmdb title", ID: imdbID}
	}
	if err != nil {
		return Draft{}, err
	}

	s.cache.Set(cacheKey, d, cache.DefaultExpiration)
	return d, nil
}

// Episode resolves a series IMDb id plus season and episode numbers.
func (s *Service) Episode(ctx context.Context, imdbID string, season, episode int) (EpisodeDraft, error) {
	if err := validateIMDB(imdbID); err != nil {
		return EpisodeDraft{}, err
	}
	if season < 0 || episode <= 0 {
		return EpisodeDraft{}, &catalog.ValidationError{Msg: "season and episode must be positive numbers"}
	}
	cacheKey := fmt.Sprintf("episode:%s:%s:%d:%d", s.language, imdbID, season, episode)
	if cached, found := s.cache.Get(cacheKey); found {
		if d, ok := cached.(EpisodeDraft); ok {
			return d, nil
		}
	}

	found, err := s.find(ctx, imdbID)
	if err != nil {
		return EpisodeDraft{}, err
	}
	if len(found.TVResults) == 0 {
		return EpisodeDraft{}, &catalog.NotFoundError{Kind: "tmdb series", ID: imdbID}
	}
	showID := found.TVResults[0].ID

	ep, err := s.client.GetTvEpisodeInfo(showID, season, episode, s.options())
	if err != nil {
		return EpisodeDraft{}, &UpstreamError{Op: "episode", Err: err}
	}
	if ep == nil {
		return EpisodeDraft{}, &catalog.NotFoundError{Kind: "tmdb episode", ID: catalog.EpisodeID(imdbID, season, episode)}
	}

	d := EpisodeDraft{
		Name:        ep.Name,
		Description: ep.Overview,
		Poster:      imageURL(posterBase, ep.StillPath),
		Year:        yearOf(ep.AirDate),
	}
	// Episode payloads carry no runtime; use the show's typical one.
	if show, err := s.client.GetTvInfo(showID, s.options()); err == nil && show != nil && len(show.EpisodeRunTime) > 0 {
		d.Runtime = fmt.Sprint(show.EpisodeRunTime[0])
	}

	s.cache.Set(cacheKey, d, cache.DefaultExpiration)
	return d, nil
}

func (s *Service) find(ctx context.Context, imdbID string) (FindResult, error) {
	found, err := s.finder.Find(ctx, imdbID, s.language)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			return FindResult{}, err
		}
		return FindResult{}, &UpstreamError{Op: "find", Err: err}
	}
	return found, nil
}

func (s *Service) options() map[string]string {
	return map[string]string{"language": s.language}
}

func (s *Service) movie(id int) (Draft, error) {
	opts := s.options()
	opts["append_to_response"] = "credits"
	m, err := s.client.GetMovieInfo(id, opts)
	if err != nil {
		return Draft{}, &UpstreamError{Op: "movie", Err: err}
	}
	if m == nil {
		return Draft{}, &UpstreamError{Op: "movie", Err: errors.New("empty response")}
	}

	d := Draft{
		Type:        catalog.TypeMovie,
		TMDBID:      m.ID,
		Name:        m.Title,
		Year:        yearOf(m.ReleaseDate),
		Genre:       []string{},
		Director:    []string{},
		Cast:        []string{},
		IMDbRating:  rating(m.VoteAverage),
		Poster:      imageURL(posterBase, m.PosterPath),
		Background:  imageURL(backdropBase, m.BackdropPath),
		Description: m.Overview,
	}
	if m.Runtime > 0 {
		d.Runtime = fmt.Sprint(m.Runtime)
	}
	for _, g := range m.Genres {
		d.Genre = append(d.Genre, g.Name)
	}
	if m.Credits != nil {
		for _, c := range m.Credits.Crew {
			if c.Job == "Director" {
				d.Director = append(d.Director, c.Name)
			}
		}
		for i, c := range m.Credits.Cast {
			if i == topCast {
				break
			}
			d.Cast = append(d.Cast, c.Name)
		}
	}
	return d, nil
}

func (s *Service) series(id int) (Draft, error) {
	opts := s.options()
	opts["append_to_response"] = "credits"
	tv, err := s.client.GetTvInfo(id, opts)
	if err != nil {
		return Draft{}, &UpstreamError{Op: "tv", Err: err}
	}
	if tv == nil {
		return Draft{}, &UpstreamError{Op: "tv", Err: errors.New("empty response")}
	}

	d := Draft{
		Type:        catalog.TypeSeries,
		TMDBID:      tv.ID,
		Name:        tv.Name,
		Year:        yearOf(tv.FirstAirDate),
		Genre:       []string{},
		Director:    []string{},
		Cast:        []string{},
		IMDbRating:  rating(tv.VoteAverage),
		Poster:      imageURL(posterBase, tv.PosterPath),
		Background:  imageURL(backdropBase, tv.BackdropPath),
		Description: tv.Overview,
	}
	if len(tv.EpisodeRunTime) > 0 {
		d.Runtime = fmt.Sprint(tv.EpisodeRunTime[0])
	}
	for _, g := range tv.Genres {
		d.Genre = append(d.Genre, g.Name)
	}
	// Series have no director; creators take that slot.
	for _, c := range tv.CreatedBy {
		d.Director = append(d.Director, c.Name)
	}
	if tv.Credits != nil {
		for i, c := range tv.Credits.Cast {
			if i == topCast {
				break
			}
			d.Cast = append(d.Cast, c.Name)
		}
	}
	return d, nil
}

func imageURL(base, path string) string {
	if path == "" {
		return ""
	}
	return base + path
}

// yearOf reads the year of a TMDB "YYYY-MM-DD" date, 0 if absent.
func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

func rating(v float32) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(float64(v), 'f', 1, 32)
}
