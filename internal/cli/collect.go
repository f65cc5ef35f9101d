package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/config"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/storage"
)

// seedEntry is one line of a seed file (JSONL).
type seedEntry struct {
	URL      string   `json:"url"`
	Query    string   `json:"query"`
	Entities []string `json:"entities,omitempty"`
}

func (c *CLI) newCollectCommand() *cobra.Command {
	var seedFile, target string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Fetch the pages of a seed file, freeze them, and add them to a dataset",
		Example: `  extractor data collect --seed seeds.jsonl --into web.new
  extractor data collect --seed seeds.jsonl --into web.new --render`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			return dataCollect(cmd.Context(), cfg, seedFile, target)
		},
	}
	cmd.Flags().StringVar(&seedFile, "seed", "", "Seed file, one {\"url\", \"query\", \"entities\"} object per line")
	cmd.Flags().StringVar(&target, "into", "", "Dataset family.name to create or extend")
	cmd.Flags().String("data-dir", config.Default().DataDir, "Storage folder with datasets/ and the frozen page cache")
	addFetchFlags(cmd.Flags())
	_ = cmd.MarkFlagRequired("seed")
	_ = cmd.MarkFlagRequired("into")
	return cmd
}

func loadSeeds(path string) ([]seedEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var seeds []seedEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var s seedEntry
		if err := json.Unmarshal([]byte(line), &s); err != nil || s.URL == "" || s.Query == "" {
			slog.Warn("Skipping invalid seed line", "line", line, "error", err)
			continue
		}
		seeds = append(seeds, s)
	}
	return seeds, scanner.Err()
}

func dataCollect(ctx context.Context, cfg *config.Config, seedFile, target string) error {
	family, name, ok := strings.Cut(target, ".")
	if !ok || family == "" || name == "" {
		return fmt.Errorf("--into must be family.name, got %q", target)
	}
	seeds, err := loadSeeds(seedFile)
	if err != nil {
		return fmt.Errorf("load seeds: %w", err)
	}
	slog.Info("Loaded seeds", "count", len(seeds))

	store := storage.NewStorage(cfg.DataDir)
	file, err := store.ReadDataset(family, name)
	if errors.Is(err, fs.ErrNotExist) {
		file = &storage.DatasetFile{Options: storage.FileOptions{UseHashcode: true}}
	} else if err != nil {
		return err
	}
	if !file.Options.UseHashcode {
		return fmt.Errorf("dataset %s does not use the frozen cache", target)
	}
	known := make(map[string]bool, len(file.Data))
	for _, d := range file.Data {
		known[d.Hashcode+"\x00"+d.Query] = true
	}

	cfg.Freeze = true
	f, closeCache, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	collected := 0
	for _, seed := range seeds {
		ref := storage.PageRef{URL: seed.URL, CacheDirectory: file.Options.CacheDirectory}
		hash := storage.Hashcode(seed.URL)
		if known[hash+"\x00"+seed.Query] {
			continue
		}
		if _, err := f.Page(ctx, ref); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("Failed to fetch", "url", seed.URL, "error", err)
			continue
		}
		if !store.HasPage(ref) {
			slog.Warn("Page was not frozen", "url", seed.URL)
			continue
		}
		known[hash+"\x00"+seed.Query] = true
		file.Data = append(file.Data, storage.Datum{
			Hashcode: hash,
			Query:    seed.Query,
			URL:      seed.URL,
			Entities: seed.Entities,
		})
		collected++
		slog.Debug("Collected", "url", seed.URL, "query", seed.Query, "total", collected)
	}

	if err := store.WriteDataset(family, name, file); err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	slog.Info("Collection complete", "collected", collected, "data", len(file.Data))
	return nil
}
