package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	extractor "github.com/ppasupat/web-entity-extractor-ACL2014"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/config"
)

func (c *CLI) newRunCommand() *cobra.Command {
	var modelPath, phrase string
	var top int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run [url-or-file]",
		Short: "Extract the entity list for a query from a URL, HTML file, or stdin",
		Args:  cobra.MaximumNArgs(1),
		Example: `  # Extract from a URL
  extractor run https://en.wikipedia.org/wiki/Member_state_of_the_European_Union \
    --model models/maxent --phrase "eu member states"

  # Extract from a local HTML file
  extractor run page.html --model models/maxent -p "european countries"

  # Pipe HTML content
  curl -s https://example.org/list | extractor run --model models/maxent -p "products"

  # Render JavaScript first and print JSON
  extractor run https://example.org/spa --model models/maxent -p "products" --render --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelPath == "" {
				return errors.New("--model is required")
			}
			target := "-"
			if len(args) == 1 {
				target = args[0]
			} else if isStdinTerminal() {
				return cmd.Help()
			}

			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			f, closeCache, err := newFetcher(cfg)
			if err != nil {
				return err
			}
			defer closeCache()

			start := time.Now()
			model, err := extractor.LoadModel(modelPath)
			if err != nil {
				return err
			}
			slog.Debug("Model loaded", "path", modelPath, "learner", model.Config.Learner, "duration", time.Since(start))

			slog.Debug("Fetching HTML", "target", target)
			html, err := f.Load(cmd.Context(), target)
			if err != nil {
				return err
			}
			if target == "-" {
				if u := strings.TrimSpace(string(html)); isURL(u) {
					slog.Debug("Stdin contains URL", "url", u)
					if html, err = f.Load(cmd.Context(), u); err != nil {
						return err
					}
				}
			}
			slog.Debug("HTML fetched", "target", target, "bytes", len(html))

			start = time.Now()
			preds, err := model.Extract(phrase, html)
			if err != nil {
				return err
			}
			slog.Debug("Extraction completed", "lists", len(preds), "duration", time.Since(start))
			if top > 0 && len(preds) > top {
				preds = preds[:top]
			}
			return printPredictions(os.Stdout, preds, asJSON)
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "Model directory written by train")
	cmd.Flags().StringVarP(&phrase, "phrase", "p", "", "Query describing the entities")
	cmd.Flags().IntVar(&top, "top", 5, "Number of lists to print (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	addFetchFlags(cmd.Flags())
	cmd.Flags().String("data-dir", config.Default().DataDir, "Storage folder whose frozen page cache is checked first")
	return cmd
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isStdinTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func printPredictions(w io.Writer, preds []extractor.Prediction, asJSON bool) error {
	if asJSON {
		output, err := json.MarshalIndent(preds, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(output))
		return err
	}
	if len(preds) == 0 {
		_, err := fmt.Fprintln(w, "No lists found.")
		return err
	}
	for _, p := range preds {
		if _, err := fmt.Fprintf(w, "%d\t%.4f\t%s\n\t%s\n", p.Rank, p.Score, p.Path, strings.Join(p.Entities, " | ")); err != nil {
			return err
		}
	}
	return nil
}
