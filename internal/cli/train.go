package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	extractor "github.com/ppasupat/web-entity-extractor-ACL2014"
)

func (c *CLI) newTrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train <model-dir>",
		Short: "Train a model on labeled datasets",
		Args:  cobra.ExactArgs(1),
		Example: `  extractor train models/maxent --dataset web.dev
  extractor train models/beam --dataset web.dev --learner beam --iterations 5 -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			f, closeCache, err := newFetcher(cfg)
			if err != nil {
				return err
			}
			defer closeCache()

			tc := cfg.TrainConfig()
			tc.Model.RunID = c.runID
			tc.Source = f
			tc.SavePath = args[0]
			slog.Info("Training", "learner", tc.Model.Learner, "datasets", tc.Datasets, "output", tc.SavePath)
			start := time.Now()
			_, report, err := extractor.Train(cmd.Context(), tc)
			if err != nil {
				return err
			}
			slog.Debug("Training completed", "duration", time.Since(start))
			if err := report.Folds[0].Tester.WriteSummary(os.Stdout); err != nil {
				return err
			}
			return printReport(os.Stdout, report)
		},
	}
	addDataFlags(cmd.Flags())
	addModelFlags(cmd.Flags())
	addFetchFlags(cmd.Flags())
	return cmd
}
