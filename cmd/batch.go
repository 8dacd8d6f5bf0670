package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/trackscout/internal/export"
	"github.com/sells-group/trackscout/internal/model"
)

var batchCmd = &cobra.Command{
	Use:   "batch [ISRC...]",
	Short: "Score a batch of track identifiers",
	Long: `Aggregate and score many ISRCs with bounded concurrency. Identifiers come
from arguments, a file (one per line, # comments allowed), or both.

Examples:
  trackscout batch USRC17607839 GBAYE0601498

  # From a file, exported to a spreadsheet
  trackscout batch --file isrcs.txt --output scores.xlsx

  # Persist under a run ID
  trackscout batch --file isrcs.txt --save`,
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.String("file", "", "file of ISRCs, one per line")
	f.Int("concurrency", 0, "max identifiers in flight (default from config)")
	f.String("output", "", "export path: .csv, .xlsx or .json")
	f.Bool("save", false, "save results to the store")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	filePath, _ := cmd.Flags().GetString("file")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	outputPath, _ := cmd.Flags().GetString("output")
	save, _ := cmd.Flags().GetBool("save")

	ids := append([]string{}, args...)
	if filePath != "" {
		fromFile, err := readISRCFile(filePath)
		if err != nil {
			return err
		}
		ids = append(ids, fromFile...)
	}
	if len(ids) == 0 {
		return eris.New("batch: no identifiers given (arguments or --file)")
	}

	if concurrency <= 0 {
		concurrency = cfg.Batch.Concurrency
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "batch"))
	log.Info("starting batch", zap.Int("identifiers", len(ids)), zap.Int("concurrency", concurrency))

	out := a.pipeline.RunBatch(ctx, ids, concurrency)

	// Score whatever aggregated; scoring failures join the failure list.
	now := time.Now().UTC()
	var results []*model.ScoreBreakdown
	failures := out.Failures
	for _, rec := range out.Records {
		if rec == nil {
			continue
		}
		b, err := a.engine.Score(rec, now)
		if err != nil {
			log.Warn("scoring failed", zap.String("isrc", rec.ISRC.String()), zap.Error(err))
			failures = append(failures, model.FailureReport{
				ISRC: rec.ISRC.String(), Reason: "scoring_error",
			})
			continue
		}
		results = append(results, b)
	}

	log.Info("batch scored",
		zap.String("run_id", out.RunID),
		zap.Int("scored", len(results)),
		zap.Int("failed", len(failures)),
	)

	if outputPath != "" {
		if err := export.Write(results, failures, outputPath); err != nil {
			return err
		}
		fmt.Printf("Exported %d results to %s\n", len(results), outputPath)
	}

	if save {
		s, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		for _, b := range results {
			if err := s.SaveResult(ctx, out.RunID, b); err != nil {
				return err
			}
		}
		for _, f := range failures {
			if err := s.SaveFailure(ctx, out.RunID, f); err != nil {
				return err
			}
		}
		fmt.Printf("Saved run %s (%d results, %d failures)\n", out.RunID, len(results), len(failures))
	}

	printBatchSummary(results, failures)
	return nil
}

// readISRCFile reads identifiers one per line; blank lines and # comments
// are skipped.
func readISRCFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: open %s", path)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, eris.Wrapf(sc.Err(), "batch: read %s", path)
}

func printBatchSummary(results []*model.ScoreBreakdown, failures []model.FailureReport) {
	tiers := map[model.Tier]int{}
	for _, b := range results {
		tiers[b.Tier]++
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Scored:   %d\n", len(results))
	fmt.Printf("Failed:   %d\n", len(failures))
	for _, tier := range []model.Tier{model.TierA, model.TierB, model.TierC, model.TierD} {
		if n := tiers[tier]; n > 0 {
			fmt.Printf("Tier %s:   %d\n", tier, n)
		}
	}
}
