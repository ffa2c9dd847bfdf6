package shelf

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jaym/shelf/tmdb"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup imdb_id [season episode]",
	Short: "Print the TMDB draft for an IMDb id",
	Args:  lookupArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := LoadConfig()
		if err != nil {
			return err
		}
		language, _ := cmd.Flags().GetString("language")
		if language != "" {
			config.TMDB.Language = language
		}

		svc, err := tmdb.New(config.TMDB)
		if err != nil {
			return err
		}

		var draft any
		if len(args) == 3 {
			season, episode, err := parseEpisodeArgs(args[1], args[2])
			if err != nil {
				return err
			}
			draft, err = svc.Episode(context.Background(), args[0], season, episode)
			if err != nil {
				return err
			}
		} else {
			draft, err = svc.LookupIMDB(context.Background(), args[0])
			if err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(draft)
	},
}

// lookupArgs accepts an id alone or an id with season and episode.
func lookupArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 1 && len(args) != 3 {
		return fmt.Errorf("accepts 1 or 3 arg(s), received %d", len(args))
	}
	return nil
}

func parseEpisodeArgs(season, episode string) (int, int, error) {
	s, err := strconv.Atoi(season)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid season %q", season)
	}
	e, err := strconv.Atoi(episode)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid episode %q", episode)
	}
	return s, e, nil
}

func init() {
	lookupCmd.Flags().String("language", "", "TMDB language, e.g. es-MX")
	rootCmd.AddCommand(lookupCmd)
}
