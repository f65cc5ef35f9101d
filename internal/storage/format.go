// Package storage reads and writes the on-disk data of the extractor: JSON
// dataset files under datasets/<family>/<name>.json and the frozen page cache.
package storage

// DatasetFile is the JSON layout of one dataset file.
type DatasetFile struct {
	Options FileOptions `json:"options"`
	Data    []Datum     `json:"data"`
}

// FileOptions applies to every datum of a file.
type FileOptions struct {
	// Frozen page cache directory, relative to the storage folder.
	CacheDirectory string `json:"cacheDirectory,omitempty"`
	// Load pages from the frozen cache by hashcode instead of the web.
	UseHashcode bool `json:"useHashcode"`
	// Data carry first/second/last criteria.
	Detailed bool `json:"detailed"`
}

// Datum is one query with its page and answer key.
type Datum struct {
	Hashcode string    `json:"hashcode,omitempty"`
	Query    string    `json:"query"`
	URL      string    `json:"url,omitempty"`
	Entities []string  `json:"entities"`
	Criteria *Criteria `json:"criteria,omitempty"`
}

// Criteria names the first, second and last entities of the intended list.
type Criteria struct {
	First  string `json:"first"`
	Second string `json:"second"`
	Last   string `json:"last"`
}

// PageRef locates the page of a datum.
type PageRef struct {
	URL            string
	Hashcode       string
	CacheDirectory string
}

// Frozen reports whether the page should come from the frozen cache.
func (r PageRef) Frozen() bool { return r.Hashcode != "" }
