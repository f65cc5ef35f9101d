package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	extractor "github.com/ppasupat/web-entity-extractor-ACL2014"
	"github.com/ppasupat/web-entity-extractor-ACL2014/eval"
)

func (c *CLI) newEvaluateCommand() *cobra.Command {
	var savePath, loadPath string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Train and test over several folds and report accuracy",
		Example: `  extractor evaluate --dataset web.dev --folds 5
  extractor evaluate --dataset web.dev --folds 10 --domain-folds
  extractor evaluate --dataset web.test --load models/maxent`,
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
			tc.SavePath = savePath
			tc.LoadPath = loadPath
			slog.Info("Evaluating", "folds", tc.Folds, "datasets", tc.Datasets)
			start := time.Now()
			report, err := extractor.Evaluate(cmd.Context(), tc)
			if err != nil {
				return err
			}
			slog.Debug("Evaluation completed", "duration", time.Since(start))
			return printReport(os.Stdout, report)
		},
	}

	addDataFlags(cmd.Flags())
	addModelFlags(cmd.Flags())
	addFetchFlags(cmd.Flags())
	cmd.Flags().Int("folds", 1, "Number of folds")
	cmd.Flags().Bool("domain-folds", false, "Split folds by web domain instead of reshuffling")
	cmd.Flags().StringVar(&savePath, "save", "", "Save the trained model to this directory (single fold only)")
	cmd.Flags().StringVar(&loadPath, "load", "", "Evaluate a saved model instead of training (single fold only)")
	return cmd
}

func printReport(w io.Writer, r *extractor.Report) error {
	if _, err := fmt.Fprintf(w, "\n%6s | %7s %7s %7s | %7s %7s %7s\n",
		"fold", "tracc", "trora", "traf1", "tsacc", "tsora", "tsaf1"); err != nil {
		return err
	}
	for _, f := range r.Folds {
		if _, err := fmt.Fprintf(w, "%6d | %7.2f %7.2f %7.2f | %7.2f %7.2f %7.2f\n", f.Fold,
			100*f.Train.Accuracy, 100*f.Train.Oracle, 100*f.Train.AvgF1OnBest,
			100*f.Test.Accuracy, 100*f.Test.Oracle, 100*f.Test.AvgF1OnBest); err != nil {
			return err
		}
	}
	for _, s := range []eval.Summary{r.Train, r.Test} {
		if _, err := fmt.Fprintf(w, "\n%s (%d folds)\n  accuracy  %s\n  oracle    %s\n  found     %s\n  avg F1    %s\n  acc@k    ",
			s.Name, s.Folds, s.Accuracy, s.Oracle, s.AccuracyFound, s.AvgF1OnBest); err != nil {
			return err
		}
		for k := 1; k < len(s.AccuracyAtK); k++ {
			if _, err := fmt.Fprintf(w, " %.2f", 100*s.AccuracyAtK[k].Mean); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
