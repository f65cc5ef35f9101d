package dataset

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppasupat/web-entity-extractor-ACL2014/candidate"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/metrics"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/storage"
	"github.com/ppasupat/web-entity-extractor-ACL2014/tree"
)

// PageSource loads the HTML of a page.
type PageSource interface {
	Page(ctx context.Context, ref storage.PageRef) ([]byte, error)
}

// FrozenSource reads pages from the frozen cache only.
type FrozenSource struct {
	Store *storage.Storage
}

func (s FrozenSource) Page(_ context.Context, ref storage.PageRef) ([]byte, error) {
	return s.Store.ReadPage(ref)
}

// Extractor builds the trees and candidates of examples.
type Extractor struct {
	Source     PageSource
	Tree       tree.Options
	Candidates candidate.Options
	// Populator fills features; nil leaves them unset.
	Populator candidate.Populator
	// Number of pages processed at once. Zero means GOMAXPROCS.
	Threads int
}

// ExtractExample loads the page of ex and generates its candidates.
func (x *Extractor) ExtractExample(ctx context.Context, ex *Example) error {
	html, err := x.Source.Page(ctx, ex.Page)
	if err != nil {
		return fmt.Errorf("load page of %s: %w", ex, err)
	}
	return x.ExtractHTML(ex, html)
}

// ExtractHTML generates the candidates of ex from the given page.
func (x *Extractor) ExtractHTML(ex *Example, html []byte) error {
	trees, err := tree.BuildReader(bytes.NewReader(html), x.Tree)
	if err != nil {
		metrics.PagesExtracted.WithLabelValues(metrics.Error).Inc()
		return fmt.Errorf("build tree of %s: %w", ex, err)
	}
	ex.Trees = trees
	return x.generate(ex)
}

// Extract extracts the examples that have no candidates yet on a bounded
// worker pool. Examples whose page cannot be loaded or parsed are dropped
// with a warning; the surviving examples are returned in order. Candidate
// generation errors abort the batch.
func (x *Extractor) Extract(ctx context.Context, examples []*Example) ([]*Example, error) {
	var todo []*Example
	for _, ex := range examples {
		if !ex.Extracted() {
			todo = append(todo, ex)
		}
	}
	if len(todo) == 0 {
		return examples, nil
	}
	threads := x.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	start := time.Now()
	slog.Info("Extracting examples", "examples", len(todo), "threads", threads)

	var mu sync.Mutex
	dropped := make(map[*Example]bool)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for _, ex := range todo {
		g.Go(func() error {
			html, err := x.Source.Page(ctx, ex.Page)
			if err == nil {
				var trees []*tree.Tree
				trees, err = tree.BuildReader(bytes.NewReader(html), x.Tree)
				if err == nil {
					ex.Trees = trees
				}
			}
			if err != nil {
				slog.Warn("Dropping example", "example", ex.ID, "error", err)
				metrics.PagesExtracted.WithLabelValues(metrics.Error).Inc()
				mu.Lock()
				dropped[ex] = true
				mu.Unlock()
				return nil
			}
			return x.generate(ex)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Example, 0, len(examples))
	for _, ex := range examples {
		if !dropped[ex] {
			out = append(out, ex)
		}
	}
	slog.Info("Extracted examples", "examples", len(todo), "dropped", len(dropped), "elapsed", time.Since(start))
	return out, nil
}

func (x *Extractor) generate(ex *Example) error {
	start := time.Now()
	set, err := candidate.Generate(ex.Trees, ex.Answer, x.Populator, x.Candidates)
	if err != nil {
		metrics.PagesExtracted.WithLabelValues(metrics.Error).Inc()
		return fmt.Errorf("generate candidates of %s: %w", ex, err)
	}
	ex.Set = set
	metrics.PagesExtracted.WithLabelValues(metrics.OK).Inc()
	metrics.CandidatesPerPage.Observe(float64(len(set.Candidates)))
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	slog.Debug("Extracted example", "example", ex.ID, "phrase", ex.Phrase,
		"candidates", len(set.Candidates), "groups", len(set.Groups), "elapsed", time.Since(start))
	return nil
}

// ExtractDataset extracts every example of d and drops the failed ones from
// both lists.
func (x *Extractor) ExtractDataset(ctx context.Context, d *Dataset) error {
	kept, err := x.Extract(ctx, d.All())
	if err != nil {
		return err
	}
	ok := make(map[*Example]bool, len(kept))
	for _, ex := range kept {
		ok[ex] = true
	}
	d.Keep(func(ex *Example) bool { return ok[ex] })
	return nil
}
