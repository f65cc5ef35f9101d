package storage

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// DefaultCacheDirectory is the frozen page cache used when a dataset file
// does not name one.
const DefaultCacheDirectory = "web.cache"

// ErrPageNotFound is returned when the frozen cache has no page for a hashcode.
var ErrPageNotFound = errors.New("storage: page not in frozen cache")

// Storage wraps the data folder.
type Storage struct {
	Folder string
}

// NewStorage creates a Storage for the given data folder.
func NewStorage(folder string) *Storage {
	return &Storage{Folder: folder}
}

// DatasetPath returns the file of dataset family.name.
func (s *Storage) DatasetPath(family, name string) string {
	return filepath.Join(s.Folder, "datasets", family, name+".json")
}

// ReadDataset reads dataset family.name.
func (s *Storage) ReadDataset(family, name string) (*DatasetFile, error) {
	path := s.DatasetPath(family, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f DatasetFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i, d := range f.Data {
		if d.Query == "" {
			return nil, fmt.Errorf("%s: datum %d has no query", path, i)
		}
		if f.Options.Detailed && d.Criteria == nil {
			return nil, fmt.Errorf("%s: datum %d has no criteria in a detailed dataset", path, i)
		}
	}
	slog.Debug("Read dataset", "path", path, "data", len(f.Data),
		"use_hashcode", f.Options.UseHashcode, "detailed", f.Options.Detailed)
	return &f, nil
}

// WriteDataset writes dataset family.name, creating its directory.
func (s *Storage) WriteDataset(family, name string, f *DatasetFile) error {
	path := s.DatasetPath(family, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Datasets lists the dataset names of a family, sorted.
func (s *Storage) Datasets(family string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Folder, "datasets", family, "*.json"))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = strings.TrimSuffix(filepath.Base(m), ".json")
	}
	sort.Strings(names)
	return names, nil
}

// Families lists the dataset families, sorted.
func (s *Storage) Families() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.Folder, "datasets"))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func (s *Storage) pagePath(ref PageRef) string {
	dir := ref.CacheDirectory
	if dir == "" {
		dir = DefaultCacheDirectory
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(s.Folder, dir)
	}
	hashcode := ref.Hashcode
	if hashcode == "" {
		hashcode = Hashcode(ref.URL)
	}
	return filepath.Join(dir, hashcode)
}

// ReadPage reads a page from the frozen cache. Refs without a hashcode are
// looked up by the hashcode of their URL.
func (s *Storage) ReadPage(ref PageRef) ([]byte, error) {
	data, err := os.ReadFile(s.pagePath(ref))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, filepath.Base(s.pagePath(ref)))
	}
	return data, err
}

// HasPage reports whether the frozen cache holds the page.
func (s *Storage) HasPage(ref PageRef) bool {
	_, err := os.Stat(s.pagePath(ref))
	return err == nil
}

// WritePage freezes a page in the cache.
func (s *Storage) WritePage(ref PageRef, data []byte) error {
	path := s.pagePath(ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Hashcode is the frozen cache key of a URL: the hex SHA-1 of the URL.
func Hashcode(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// GetDomain extracts the domain name from a URL (for grouped splits).
func GetDomain(rawURL string) string {
	host := rawURL
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	if idx := strings.Index(host, "/"); idx >= 0 {
		host = host[:idx]
	}
	if idx := strings.Index(host, ":"); idx >= 0 {
		host = host[:idx]
	}

	// eTLD+1 like "example.co.uk"; keep just "example"
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	if idx := strings.Index(domain, "."); idx >= 0 {
		return domain[:idx]
	}
	return domain
}
