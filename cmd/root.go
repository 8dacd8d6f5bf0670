package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/trackscout/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "trackscout",
	Short: "Music-rights lead scoring from track identifiers",
	Long:  "Resolves ISRCs across MusicBrainz, Spotify, YouTube and Last.fm, merges the answers, and scores artists for independence, opportunity and geography.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
