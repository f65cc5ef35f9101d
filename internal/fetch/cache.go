package fetch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/storage"
)

// CacheConfig configures the page cache.
type CacheConfig struct {
	// Directory of the database. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// Sync every write to disk.
	SyncWrites bool
	// Logger receives badger's own messages; nil silences them.
	Logger *slog.Logger
}

// DefaultCacheConfig returns a persistent cache at path.
func DefaultCacheConfig(path string) CacheConfig {
	return CacheConfig{Path: path}
}

// badgerLogger adapts slog to badger's logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// PageCache stores fetched pages by URL. It is safe for concurrent use.
type PageCache struct {
	db *badger.DB
}

// OpenCache opens or creates the cache.
func OpenCache(cfg CacheConfig) (*PageCache, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("fetch: cache path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("fetch: create cache directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("fetch: open cache: %w", err)
	}
	return &PageCache{db: db}, nil
}

func cacheKey(url string) []byte {
	return []byte("page/" + storage.Hashcode(url))
}

// Get returns the cached page of url. ok is false on a miss.
func (c *PageCache) Get(url string) (html []byte, ok bool, err error) {
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(url))
		if err != nil {
			return err
		}
		html, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch: read cache: %w", err)
	}
	return html, true, nil
}

// Put stores the page of url.
func (c *PageCache) Put(url string, html []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(url), html)
	})
	if err != nil {
		return fmt.Errorf("fetch: write cache: %w", err)
	}
	return nil
}

// Len counts the cached pages.
func (c *PageCache) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte("page/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Sync flushes pending writes to disk.
func (c *PageCache) Sync() error {
	if c.db.Opts().InMemory {
		return nil
	}
	return c.db.Sync()
}

func (c *PageCache) Close() error {
	return c.db.Close()
}
