package shelf

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jaym/shelf/persist"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the current storage files into the backup directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := LoadConfig()
		if err != nil {
			return err
		}
		return runBackup(cmd.Context(), config.Storage, cmd.OutOrStdout())
	},
}

// runBackup backs up the configured storage and prints one path per line.
func runBackup(ctx context.Context, cfg persist.Config, out io.Writer) error {
	adapter, err := persist.Open(cfg)
	if err != nil {
		return err
	}
	defer adapter.Close()

	paths, err := adapter.Backup(ctx)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(out, p)
	}
	log.Info().Str("backend", string(adapter.Kind())).Int("files", len(paths)).Msg("Backup complete")
	return nil
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
