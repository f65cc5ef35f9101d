package tree

import (
	"errors"
	"io"
	"log/slog"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/htmlutil"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/textutil"
)

// ErrNoRoot is returned when a document has no <html> element.
var ErrNoRoot = errors.New("tree: document has no html element")

// Options controls how a page is turned into trees.
type Options struct {
	// Texts longer than this many runes are not kept as node values.
	MaxFullTextLength int
	// Normalization level applied to node texts (see textutil levels).
	EarlyNormalizeEntities int
	IgnoreTextNodes        bool
	// Also build a tree where <br> separated segments become <p> elements.
	AlsoNormalizeBR bool
	// Build only the <br> normalized tree.
	OnlyNormalizeBR bool
}

// DefaultOptions returns the default tree building options.
func DefaultOptions() Options {
	return Options{
		MaxFullTextLength:      140,
		EarlyNormalizeEntities: textutil.LevelWhitespace,
		AlsoNormalizeBR:        true,
	}
}

// BuildReader parses HTML from r and builds its trees.
func BuildReader(r io.Reader, opts Options) ([]*Tree, error) {
	doc, err := htmlutil.LoadHTML(r)
	if err != nil {
		return nil, err
	}
	return Build(doc, opts)
}

// BuildString parses an HTML string and builds its trees.
func BuildString(s string, opts Options) ([]*Tree, error) {
	doc, err := htmlutil.LoadHTMLString(s)
	if err != nil {
		return nil, err
	}
	return Build(doc, opts)
}

// Build fixes tables in doc and converts it into one tree, plus a second
// tree with <br> segments wrapped when the page contains <br>. doc is
// modified in place.
func Build(doc *goquery.Document, opts Options) ([]*Tree, error) {
	if htmlutil.Root(doc) == nil {
		return nil, ErrNoRoot
	}
	htmlutil.FixTables(doc)

	var trees []*Tree
	if !opts.OnlyNormalizeBR {
		trees = append(trees, FromHTML(htmlutil.Root(doc), opts))
	}
	if (opts.AlsoNormalizeBR || opts.OnlyNormalizeBR) && htmlutil.HasBreaks(doc) {
		htmlutil.FixBreaks(doc)
		trees = append(trees, FromHTML(htmlutil.Root(doc), opts))
	}
	if len(trees) == 0 {
		// Only the BR tree was requested but the page has no <br>.
		trees = append(trees, FromHTML(htmlutil.Root(doc), opts))
	}
	slog.Debug("Built page trees", "trees", len(trees), "nodes", trees[0].Len())
	return trees, nil
}

type builder struct {
	t    *Tree
	opts Options
}

// FromHTML converts an element and its descendants into a tree rooted at that element.
func FromHTML(root *html.Node, opts Options) *Tree {
	b := &builder{t: &Tree{}, opts: opts}
	b.convert(root, -1)
	for i := range b.t.nodes {
		b.t.nodes[i].tree = b.t
	}
	b.t.stamp()
	return b.t
}

func (b *builder) add(parent int, kind Kind, tag, text string) int {
	id := len(b.t.nodes)
	n := Node{ID: id, Kind: kind, Tag: tag, parent: parent}
	if parent >= 0 {
		n.Depth = b.t.nodes[parent].Depth + 1
	}
	if utf8.RuneCountInString(text) <= b.opts.MaxFullTextLength {
		n.fullText, n.hasFullText = text, true
	}
	b.t.nodes = append(b.t.nodes, n)
	if parent >= 0 {
		b.t.nodes[parent].children = append(b.t.nodes[parent].children, id)
	}
	return id
}

func (b *builder) convert(elt *html.Node, parent int) {
	text := textutil.Normalize(htmlutil.Text(elt), b.opts.EarlyNormalizeEntities)
	id := b.add(parent, KindTag, elt.Data, text)

	for c := elt.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			b.convert(c, id)
		case html.TextNode:
			if b.opts.IgnoreTextNodes || htmlutil.IsRawText(elt.Data) {
				continue
			}
			if t := textutil.Normalize(c.Data, b.opts.EarlyNormalizeEntities); t != "" {
				b.add(id, KindText, TextTag, t)
			}
		}
	}

	attrs := make([]Attr, 0, len(elt.Attr))
	for _, a := range elt.Attr {
		attrs = append(attrs, Attr{Name: a.Key, Value: a.Val})
	}
	b.t.nodes[id].attrs = attrs
}

func (t *Tree) stamp() {
	if len(t.nodes) == 0 {
		return
	}
	var visit func(id, ts, tsc int) (int, int)
	visit = func(id, ts, tsc int) (int, int) {
		n := &t.nodes[id]
		n.In = ts
		n.InCollapsed = tsc
		ts++
		tsc++
		for _, c := range n.children {
			ts, tsc = visit(c, ts, tsc)
		}
		t.nodes[id].Out = ts
		return ts + 1, tsc
	}
	visit(0, 1, 1)
}
