package shelf

import (
	"errors"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "shelf",
	Short:         "Personal movie and series catalog served as a Stremio addon",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := readConfig(); err != nil {
			return err
		}
		setupLogging(viper.GetString("log.level"), viper.GetString("log.format"))
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./shelf.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "", "storage backend: none, local-file, sharded-file, remote-versioned, sqlite")
	rootCmd.PersistentFlags().String("data-dir", "", "directory for file and sqlite storage")
	cobra.CheckErr(viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")))
	cobra.CheckErr(viper.BindPFlag("storage.backend", rootCmd.PersistentFlags().Lookup("backend")))
	cobra.CheckErr(viper.BindPFlag("storage.data_dir", rootCmd.PersistentFlags().Lookup("data-dir")))

	setDefaults()
	bindEnv()
}

// envAliases are the plain variable names accepted next to SHELF_*.
var envAliases = map[string]string{
	"storage.github.token":     "GITHUB_TOKEN",
	"storage.github.owner":     "GITHUB_OWNER",
	"storage.github.repo":      "GITHUB_REPO",
	"storage.github.branch":    "GITHUB_BRANCH",
	"cdn.domain":               "CDN_DOMAIN",
	"cdn.cloudflare.zone_id":   "CLOUDFLARE_ZONE_ID",
	"cdn.cloudflare.api_token": "CLOUDFLARE_API_TOKEN",
	"tmdb.api_key":             "TMDB_API_KEY",
	"server.port":              "PORT",
}

func setDefaults() {
	viper.SetDefault("server.listen", "")
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.shutdown_timeout", "15s")

	viper.SetDefault("storage.backend", "")
	viper.SetDefault("storage.data_dir", "data")
	viper.SetDefault("storage.backup_dir", "")
	viper.SetDefault("storage.backup_keep", 10)
	viper.SetDefault("storage.backup_interval", "1h")
	viper.SetDefault("storage.sqlite_path", "")
	viper.SetDefault("storage.github.token", "")
	viper.SetDefault("storage.github.owner", "")
	viper.SetDefault("storage.github.repo", "")
	viper.SetDefault("storage.github.branch", "main")
	viper.SetDefault("storage.github.base_url", "")

	viper.SetDefault("cdn.domain", "")
	viper.SetDefault("cdn.cloudflare.zone_id", "")
	viper.SetDefault("cdn.cloudflare.api_token", "")
	viper.SetDefault("cdn.cloudflare.base_url", "")

	viper.SetDefault("tmdb.api_key", "")
	viper.SetDefault("tmdb.language", "es-MX")
	viper.SetDefault("tmdb.cache_ttl", "24h")
	viper.SetDefault("tmdb.base_url", "")

	viper.SetDefault("manifest.id", "com.shelf.addon")
	viper.SetDefault("manifest.version", "1.0.0")
	viper.SetDefault("manifest.name", "Shelf")
	viper.SetDefault("manifest.description", "Personal movie and series catalog")
	viper.SetDefault("manifest.logo", "")
	viper.SetDefault("manifest.background", "")
	viper.SetDefault("manifest.catalog_name", "Recomendación")

	viper.SetDefault("probe.enabled", true)
	viper.SetDefault("probe.timeout", "20s")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "")
}

func bindEnv() {
	viper.SetEnvPrefix("SHELF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for key, alias := range envAliases {
		prefixed := "SHELF_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		cobra.CheckErr(viper.BindEnv(key, prefixed, alias))
	}
}

func readConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("shelf")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		// The default config file is optional.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	log.Debug().Str("file", viper.ConfigFileUsed()).Msg("using config file")
	return nil
}

// setupLogging writes JSON unless stderr is a terminal or format is "console".
func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	console := format == "console" || (format == "" && isatty.IsTerminal(os.Stderr.Fd()))
	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
