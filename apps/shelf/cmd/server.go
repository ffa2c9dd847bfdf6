package shelf

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jaym/shelf/api"
	"github.com/jaym/shelf/catalog"
	"github.com/jaym/shelf/cdn"
	"github.com/jaym/shelf/metrics"
	"github.com/jaym/shelf/persist"
	processor "github.com/jaym/shelf/processors"
	"github.com/jaym/shelf/tmdb"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the addon and admin API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := LoadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, config)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "address to listen on (overrides the port)")
	cobra.CheckErr(viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("addr")))
}

// loadCatalog opens the configured storage and fills a fresh store from it.
func loadCatalog(ctx context.Context, config *Config) (persist.Adapter, *catalog.Store, error) {
	adapter, err := persist.Open(config.Storage)
	if err != nil {
		return nil, nil, err
	}
	snap, err := adapter.Load(ctx)
	if err != nil {
		adapter.Close()
		return nil, nil, err
	}

	store := catalog.NewStore()
	store.Replace(snap)
	c := store.Counts()
	metrics.SetCatalogCounts(c.Movies, c.Series, c.Episodes)
	log.Info().
		Str("backend", string(adapter.Kind())).
		Int("movies", c.Movies).
		Int("series", c.Series).
		Int("episodes", c.Episodes).
		Msg("Catalog loaded")
	return adapter, store, nil
}

func serve(ctx context.Context, config *Config) error {
	adapter, store, err := loadCatalog(ctx, config)
	if err != nil {
		return err
	}
	defer adapter.Close()

	rewriter := cdn.NewRewriter(config.CDN.Domain)
	opts := api.Options{
		Store:                store,
		Persist:              adapter,
		Rewriter:             rewriter,
		Manifest:             config.Manifest,
		GitHub:               config.Storage.GitHub,
		CloudflareConfigured: config.CDN.Cloudflare.Configured(),
	}

	autofill, err := tmdb.New(config.TMDB)
	switch {
	case errors.Is(err, tmdb.ErrNotConfigured):
		log.Warn().Msg("TMDB api key not set, auto-fill disabled")
	case err != nil:
		return err
	default:
		opts.AutoFill = autofill
	}
	if config.Probe.Enabled {
		opts.Prober = processor.NewProber(config.Probe.prober())
	}

	if rewriter.Enabled() && config.CDN.Cloudflare.Configured() {
		go cdn.EnsureVideoRule(ctx, cdn.NewCloudflare(config.CDN.Cloudflare, nil), rewriter)
	}
	go persist.RunBackups(ctx, adapter, config.Storage.BackupInterval)

	srv := &http.Server{
		Addr:              config.Server.Addr(),
		Handler:           api.NewApiHandler(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", config.Server.ShutdownTimeout).Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}
