// Package wordvec loads word embeddings and averages them over phrases.
package wordvec

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/textutil"
)

// Table maps words to dense vectors. It is read-only after loading and safe
// for concurrent use.
type Table struct {
	index   map[string]int
	vectors [][]float64
	dim     int
	// Row returned for unknown words; -1 returns nil instead.
	UnknownIndex int
}

// Load reads a table from a text file: a "numWords dim" header line, then
// one "word v1 ... vdim" line per word.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wordvec: %w", err)
	}
	defer f.Close()
	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("wordvec: %s: %w", path, err)
	}
	slog.Info("Loaded word vectors", "path", path, "words", len(t.vectors), "dim", t.dim)
	return t, nil
}

// Read parses a table from r.
func Read(r io.Reader) (*Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	if !sc.Scan() {
		return nil, fmt.Errorf("missing header: %w", scanErr(sc))
	}
	header := strings.Fields(sc.Text())
	if len(header) != 2 {
		return nil, fmt.Errorf("bad header %q", sc.Text())
	}
	numWords, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, fmt.Errorf("bad word count: %w", err)
	}
	dim, err := strconv.Atoi(header[1])
	if err != nil {
		return nil, fmt.Errorf("bad dimension: %w", err)
	}

	t := &Table{index: make(map[string]int, numWords), vectors: make([][]float64, 0, numWords), dim: dim}
	for i := 0; i < numWords; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("expected %d words, got %d: %w", numWords, i, scanErr(sc))
		}
		fields := strings.Fields(sc.Text())
		if len(fields) != dim+1 {
			return nil, fmt.Errorf("line %d: expected %d values, got %d", i+2, dim, len(fields)-1)
		}
		vec := make([]float64, dim)
		for j := range vec {
			if vec[j], err = strconv.ParseFloat(fields[j+1], 64); err != nil {
				return nil, fmt.Errorf("line %d: %w", i+2, err)
			}
		}
		t.index[fields[0]] = i
		t.vectors = append(t.vectors, vec)
	}
	return t, nil
}

func scanErr(sc *bufio.Scanner) error {
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// New builds a table from an in-memory map. Words are indexed in the order given by words.
func New(words []string, vectors [][]float64) *Table {
	t := &Table{index: make(map[string]int, len(words))}
	for i, w := range words {
		t.index[w] = i
	}
	t.vectors = vectors
	if len(vectors) > 0 {
		t.dim = len(vectors[0])
	}
	return t
}

// Dim returns the vector dimension.
func (t *Table) Dim() int { return t.dim }

// Len returns the number of words.
func (t *Table) Len() int { return len(t.vectors) }

// Vector returns the vector of word, the unknown-word vector, or nil.
func (t *Table) Vector(word string) []float64 {
	i, ok := t.index[word]
	if !ok {
		i = t.UnknownIndex
		if i < 0 || i >= len(t.vectors) {
			return nil
		}
	}
	return t.vectors[i]
}

// Average returns the mean vector of the alphanumeric tokens of phrases, or
// nil when no token has a vector.
func (t *Table) Average(phrases []string) []float64 {
	sum := make([]float64, t.dim)
	n := 0
	for _, phrase := range phrases {
		for _, tok := range textutil.AlphaOrNumericTokens(phrase) {
			vec := t.Vector(tok)
			if vec == nil {
				continue
			}
			for i, x := range vec {
				sum[i] += x
			}
			n++
		}
	}
	if n == 0 {
		return nil
	}
	for i := range sum {
		sum[i] /= float64(n)
	}
	return sum
}
