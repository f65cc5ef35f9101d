package htmlutil

import (
	"strings"

	"golang.org/x/net/html"
)

var blockTags = map[string]bool{
	"html": true, "head": true, "body": true, "frameset": true, "script": true, "noscript": true,
	"style": true, "meta": true, "link": true, "title": true, "frame": true, "noframes": true,
	"section": true, "nav": true, "aside": true, "hgroup": true, "header": true, "footer": true,
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "pre": true, "div": true, "blockquote": true, "hr": true,
	"address": true, "figure": true, "figcaption": true, "form": true, "fieldset": true,
	"ins": true, "del": true, "dl": true, "dt": true, "dd": true, "li": true, "table": true,
	"caption": true, "thead": true, "tfoot": true, "tbody": true, "colgroup": true, "col": true,
	"tr": true, "th": true, "td": true, "video": true, "audio": true, "canvas": true,
	"details": true, "menu": true, "plaintext": true, "template": true, "article": true,
	"main": true, "svg": true, "math": true, "br": true,
}

// IsBlock reports whether tag starts a new line of rendered text.
func IsBlock(tag string) bool {
	return blockTags[tag]
}

// IsRawText reports whether the text inside tag is script or style data rather than page text.
func IsRawText(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "template":
		return true
	}
	return false
}

// Text returns the visible text of n. Text of block elements is separated by
// a space; inline elements are concatenated as rendered.
func Text(n *html.Node) string {
	var sb strings.Builder
	var visit func(n *html.Node)
	space := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), " ") {
			sb.WriteByte(' ')
		}
	}
	visit = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if IsRawText(n.Data) {
				return
			}
			if IsBlock(n.Data) {
				space()
			}
		case html.CommentNode, html.DoctypeNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
		if n.Type == html.ElementNode && IsBlock(n.Data) {
			space()
		}
	}
	visit(n)
	return sb.String()
}
