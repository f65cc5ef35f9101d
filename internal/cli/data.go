package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppasupat/web-entity-extractor-ACL2014/dataset"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/config"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/fetch"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/storage"
)

// prefetchBatch is the number of pages fetched between two cache syncs.
const prefetchBatch = 100

func (c *CLI) newDataCommand() *cobra.Command {
	dataCmd := &cobra.Command{
		Use:   "data",
		Short: "Inspect datasets and fetch their pages",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	prefetchCmd := &cobra.Command{
		Use:   "prefetch",
		Short: "Download the pages of datasets into the page cache",
		Example: `  extractor data prefetch --dataset web.dev
  extractor data prefetch --dataset web.dev --freeze --render`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			return dataPrefetch(cmd.Context(), cfg)
		},
	}
	addDataFlags(prefetchCmd.Flags())
	addFetchFlags(prefetchCmd.Flags())

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print statistics of every dataset in the data folder",
		Example: `  extractor data stats --data-dir data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			return dataStats(os.Stdout, cfg)
		},
	}
	statsCmd.Flags().String("data-dir", config.Default().DataDir, "Storage folder with datasets/ and the frozen page cache")
	statsCmd.Flags().String("cache-dir", config.Default().CacheDir, "Page cache directory (empty skips it)")

	dataCmd.AddCommand(prefetchCmd, statsCmd, c.newCollectCommand())
	return dataCmd
}

func dataPrefetch(ctx context.Context, cfg *config.Config) error {
	if len(cfg.Datasets) == 0 {
		return fmt.Errorf("no dataset given")
	}
	f, closeCache, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	reader := dataset.NewReader(storage.NewStorage(cfg.DataDir), dataset.DefaultReaderOptions())
	var refs []storage.PageRef
	seen := make(map[storage.PageRef]bool)
	for _, name := range cfg.Datasets {
		d, err := reader.Read(name)
		if err != nil {
			return err
		}
		for _, ex := range d.All() {
			if !seen[ex.Page] {
				seen[ex.Page] = true
				refs = append(refs, ex.Page)
			}
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	slog.Info("Prefetching pages", "pages", len(refs), "threads", threads)
	start := time.Now()
	var ok, failed atomic.Int32
	for i := 0; i < len(refs); i += prefetchBatch {
		batch := refs[i:min(i+prefetchBatch, len(refs))]
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(threads)
		for _, ref := range batch {
			g.Go(func() error {
				if _, err := f.Page(gctx, ref); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					slog.Warn("Failed to fetch page", "url", ref.URL, "hashcode", ref.Hashcode, "error", err)
					failed.Add(1)
					return nil
				}
				ok.Add(1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if err := f.Sync(); err != nil {
			slog.Warn("Failed to sync page cache", "error", err)
		}
		slog.Info("Prefetch progress", "done", min(i+prefetchBatch, len(refs)), "total", len(refs))
	}
	slog.Info("Prefetch complete", "ok", ok.Load(), "failed", failed.Load(), "elapsed", time.Since(start))
	return nil
}

func dataStats(w io.Writer, cfg *config.Config) error {
	store := storage.NewStorage(cfg.DataDir)
	families, err := store.Families()
	if err != nil {
		return err
	}
	var cache *fetch.PageCache
	if cfg.CacheDir != "" {
		if _, err := os.Stat(cfg.CacheDir); err == nil {
			if cache, err = fetch.OpenCache(fetch.DefaultCacheConfig(cfg.CacheDir)); err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()
		}
	}

	if _, err := fmt.Fprintf(w, "%-30s %8s %8s %8s %8s %8s\n", "dataset", "data", "domains", "frozen", "cached", "entities"); err != nil {
		return err
	}
	for _, family := range families {
		names, err := store.Datasets(family)
		if err != nil {
			return err
		}
		for _, name := range names {
			f, err := store.ReadDataset(family, name)
			if err != nil {
				return err
			}
			domains := make(map[string]bool)
			frozen, cached, entities := 0, 0, 0
			for _, d := range f.Data {
				if d.URL != "" {
					domains[storage.GetDomain(d.URL)] = true
				}
				ref := storage.PageRef{URL: d.URL, CacheDirectory: f.Options.CacheDirectory}
				if f.Options.UseHashcode {
					ref.Hashcode = d.Hashcode
				}
				if store.HasPage(ref) {
					frozen++
				}
				if cache != nil && d.URL != "" {
					if _, hit, err := cache.Get(d.URL); err == nil && hit {
						cached++
					}
				}
				entities += len(d.Entities)
			}
			mean := 0.0
			if len(f.Data) > 0 {
				mean = float64(entities) / float64(len(f.Data))
			}
			if _, err := fmt.Fprintf(w, "%-30s %8d %8d %8d %8d %8.1f\n",
				family+"."+name, len(f.Data), len(domains), frozen, cached, mean); err != nil {
				return err
			}
		}
	}
	if cache != nil {
		n, err := cache.Len()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "\npage cache: %d pages in %s\n", n, cfg.CacheDir); err != nil {
			return err
		}
	}
	return nil
}
