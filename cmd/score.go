package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/trackscout/internal/model"
)

var scoreCmd = &cobra.Command{
	Use:   "score <ISRC>",
	Short: "Score a single track identifier",
	Long: `Resolve one ISRC across the configured providers, merge the answers, and
print the score breakdown.

Examples:
  # Human-readable breakdown
  trackscout score USRC17607839

  # JSON for piping
  trackscout score USRC17607839 --format json

  # Persist the result
  trackscout score USRC17607839 --save`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("format", "table", "output format: table or json")
	f.Bool("save", false, "save the result to the store")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	format, _ := cmd.Flags().GetString("format")
	save, _ := cmd.Flags().GetBool("save")
	if format != "table" && format != "json" {
		return eris.Errorf("score: --format must be table or json (got %q)", format)
	}

	isrc, err := model.ParseISRC(args[0])
	if err != nil {
		return err
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}

	rec, err := a.pipeline.Run(ctx, isrc)
	if err != nil {
		return err
	}

	b, err := a.engine.Score(rec, time.Now().UTC())
	if err != nil {
		return err
	}

	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(b); err != nil {
			return eris.Wrap(err, "score: encode breakdown")
		}
	case "table":
		printBreakdown(b)
	}

	if save {
		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		runID := uuid.NewString()
		if err := s.SaveResult(ctx, runID, b); err != nil {
			return err
		}
		zap.L().Info("result saved", zap.String("run_id", runID), zap.String("isrc", b.ISRC))
	}

	return nil
}

func printBreakdown(b *model.ScoreBreakdown) {
	fmt.Printf("ISRC:          %s\n", b.ISRC)
	fmt.Printf("Artist:        %s\n", b.ArtistName)
	fmt.Printf("Total:         %.1f / 100  (Tier %s)\n", b.TotalScore, b.Tier)
	fmt.Println()
	fmt.Printf("  Independence  %6.1f  (%s)\n", b.IndependenceScore, b.IndependenceClass)
	fmt.Printf("  Opportunity   %6.1f\n", b.OpportunityScore)
	fmt.Printf("  Geographic    %6.1f\n", b.GeographicScore)
	fmt.Println()
	fmt.Printf("YouTube:       %s\n", b.YouTubeClass)
	fmt.Printf("Confidence:    %.0f\n", b.Confidence)
	fmt.Printf("Sources:       %s\n", strings.Join(b.DataSourcesUsed, ", "))
}
