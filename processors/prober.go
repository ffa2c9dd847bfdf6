package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	ffmpeg_go "github.com/u2takey/ffmpeg-go"
)

const DefaultProbeTimeout = 20 * time.Second

type ProberConfig struct {
	// Timeout bounds network reads while probing a remote URL.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Prober runs ffprobe against a media URL or path.
type Prober struct {
	timeout time.Duration
	probe   func(fileName string, kwargs ...ffmpeg_go.KwArgs) (string, error)
}

func NewProber(cfg ProberConfig) *Prober {
	timeout := DefaultProbeTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	return &Prober{timeout: timeout, probe: ffmpeg_go.Probe}
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		Index     int    `json:"index"`
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Tags      struct {
			Language string `json:"language"`
		}
	} `json:"streams"`
}

// ProbeResult is what auto-fill can use from a media file.
type ProbeResult struct {
	DurationSeconds float64 `json:"durationSeconds"`
	// Runtime is the duration in whole minutes, rounded up.
	Runtime        string   `json:"runtime,omitempty"`
	Width          int      `json:"width,omitempty"`
	Height         int      `json:"height,omitempty"`
	Quality        string   `json:"quality,omitempty"`
	AudioLanguages []string `json:"audioLanguages"`
	// Season and Episode are parsed from an SxxEyy marker in the file name.
	Season  int `json:"season,omitempty"`
	Episode int `json:"episode,omitempty"`
}

type ProbeError struct {
	Msg           string
	ffprobeOutput string
}

func (e *ProbeError) Error() string {
	return e.Msg
}

func (e *ProbeError) VerboseError() string {
	return fmt.Sprintf("FFProbe Output:\n%s\n\n%s", e.Msg, e.ffprobeOutput)
}

// Probe inspects target. ffprobe is not cancellable, so ctx only bounds
// how long the caller waits for it.
func (p *Prober) Probe(ctx context.Context, target string) (*ProbeResult, error) {
	type probed struct {
		out string
		err error
	}
	done := make(chan probed, 1)
	go func() {
		kwargs := ffmpeg_go.KwArgs{}
		if strings.Contains(target, "://") {
			kwargs["rw_timeout"] = strconv.FormatInt(p.timeout.Microseconds(), 10)
		}
		out, err := p.probe(target, kwargs)
		done <- probed{out: out, err: err}
	}()

	var res probed
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		log.Warn().Err(res.err).Str("target", target).Msg("ffprobe failed")
		return nil, &ProbeError{Msg: fmt.Sprintf("ffprobe failed on %s: %v", target, res.err), ffprobeOutput: res.out}
	}
	return parseProbe(target, res.out)
}

func parseProbe(target, probeStr string) (*ProbeResult, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal([]byte(probeStr), &probe); err != nil {
		return nil, &ProbeError{
			Msg:           fmt.Sprintf("error unmarshalling ffprobe output: %v", err),
			ffprobeOutput: probeStr,
		}
	}

	result := &ProbeResult{AudioLanguages: []string{}}
	if probe.Format.Duration != "" {
		d, err := strconv.ParseFloat(probe.Format.Duration, 64)
		if err != nil {
			return nil, &ProbeError{
				Msg:           fmt.Sprintf("invalid duration %q", probe.Format.Duration),
				ffprobeOutput: probeStr,
			}
		}
		result.DurationSeconds = d
		if d > 0 {
			result.Runtime = strconv.Itoa(int(math.Ceil(d / 60)))
		}
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if stream.Height > result.Height {
				result.Width = stream.Width
				result.Height = stream.Height
			}
		case "audio":
			if lang := stream.Tags.Language; lang != "" && lang != "und" {
				result.AudioLanguages = append(result.AudioLanguages, lang)
			}
		}
	}
	result.Quality = qualityLabel(result.Height)

	if season, episode, err := extractSeasonAndEpisode(fileName(target)); err == nil {
		result.Season = season
		result.Episode = episode
	}
	return result, nil
}

func qualityLabel(height int) string {
	switch {
	case height >= 2160:
		return "4K"
	case height >= 1080:
		return "1080p"
	case height >= 720:
		return "720p"
	case height > 0:
		return "SD"
	}
	return ""
}

// fileName returns the last path element of a URL or file path.
func fileName(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	return path.Base(target)
}

var episodeRegex = regexp.MustCompile(`(?i)S(\d+)E(\d+)`)

func extractSeasonAndEpisode(name string) (int, int, error) {
	matches := episodeRegex.FindStringSubmatch(name)
	if len(matches) != 3 {
		return 0, 0, fmt.Errorf("could not extract season and episode number from file name")
	}

	season, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, 0, fmt.Errorf("error converting season number to integer: %v", err)
	}

	episode, err := strconv.Atoi(matches[2])
	if err != nil {
		return 0, 0, fmt.Errorf("error converting episode number to integer: %v", err)
	}

	return season, episode, nil
}
