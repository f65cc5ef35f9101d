// Package htmlutil provides HTML loading and in-place document fixes applied
// before a page is turned into a node tree.
package htmlutil

import (
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// LoadHTML parses HTML bytes into a goquery Document.
func LoadHTML(r io.Reader) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(r)
}

// LoadHTMLString parses HTML string into a goquery Document.
func LoadHTMLString(htmlStr string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
}

// Root returns the <html> element of the document, or nil.
func Root(doc *goquery.Document) *html.Node {
	sel := doc.Find("html").First()
	if sel.Length() == 0 {
		return nil
	}
	return sel.Get(0)
}

// HasBreaks reports whether the document contains any <br> element.
func HasBreaks(doc *goquery.Document) bool {
	return doc.Find("br").Length() > 0
}

func newElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

func parseSpan(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok || v == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

// FixTables expands colspan and rowspan inside every <tbody> into duplicated
// empty cells so that every row has one cell per column.
func FixTables(doc *goquery.Document) {
	doc.Find("tbody").Each(func(_ int, tbody *goquery.Selection) {
		fixTable(tbody)
	})
}

func fixTable(tbody *goquery.Selection) {
	numColumns := 0
	tbody.Children().Each(func(_ int, tr *goquery.Selection) {
		tr.Children().Each(func(_ int, cell *goquery.Selection) {
			colspan, rowspan := parseSpan(cell, "colspan"), parseSpan(cell, "rowspan")
			if colspan <= 1 {
				return
			}
			old, _ := cell.Attr("colspan")
			cell.SetAttr("old-colspan", old)
			cell.RemoveAttr("colspan")
			tag := goquery.NodeName(cell)
			for i := 2; i <= colspan; i++ {
				var attrs []html.Attribute
				if rowspan > 1 {
					attrs = append(attrs, html.Attribute{Key: "rowspan", Val: strconv.Itoa(rowspan)})
				}
				cell.AfterNodes(newElement(tag, attrs...))
			}
		})
		numColumns = max(numColumns, tr.Children().Length())
	})

	// pending[i] counts rows that still need a filler cell in column i.
	pending := make([]int, numColumns)
	tags := make([]string, numColumns)
	tbody.Children().Each(func(_ int, tr *goquery.Selection) {
		var cells []*goquery.Selection
		tr.Children().Each(func(_ int, c *goquery.Selection) {
			cells = append(cells, c)
		})
		var last *html.Node
		for i, k := 0, 0; i < numColumns; i++ {
			if pending[i] > 0 {
				filler := newElement(tags[i])
				if last == nil {
					tr.PrependNodes(filler)
				} else {
					last.Parent.InsertBefore(filler, last.NextSibling)
				}
				last = filler
				pending[i]--
				continue
			}
			if k >= len(cells) {
				continue
			}
			cell := cells[k]
			k++
			last = cell.Get(0)
			rowspan := parseSpan(cell, "rowspan")
			if rowspan <= 1 {
				continue
			}
			pending[i] = rowspan - 1
			tags[i] = goquery.NodeName(cell)
			old, _ := cell.Attr("rowspan")
			cell.SetAttr("old-rowspan", old)
			cell.RemoveAttr("rowspan")
		}
	})
}

// FixBreaks replaces <br> separated content with one <p> element per segment.
func FixBreaks(doc *goquery.Document) {
	for {
		br := doc.Find("br").First()
		if br.Length() == 0 {
			return
		}
		parent := br.Get(0).Parent
		if parent == nil {
			br.Remove()
			continue
		}
		wrapSegments(parent)
	}
}

func wrapSegments(parent *html.Node) {
	var children []*html.Node
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	for _, c := range children {
		parent.RemoveChild(c)
	}
	current := newElement("p")
	for _, c := range children {
		if c.Type == html.ElementNode && c.Data == "br" {
			parent.AppendChild(current)
			current = newElement("p")
			continue
		}
		current.AppendChild(c)
	}
	parent.AppendChild(current)
}
