package crawler

import (
	"io"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"buildprice/priceworker/helpers"
)

// Document adapts a goquery selection to DocumentQuery
type Document struct {
	sel *goquery.Selection
}

// NewDocument parses an HTML document from a reader
func NewDocument(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &Document{sel: doc.Selection}, nil
}

// FindAll returns every descendant matching selector. Invalid selectors match nothing.
func (d *Document) FindAll(selector string) []DocumentQuery {
	if strings.TrimSpace(selector) == "" {
		return nil
	}
	var out []DocumentQuery
	d.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Document{sel: s})
	})
	return out
}

// Text returns the whitespace-collapsed text content
func (d *Document) Text() string {
	return helpers.CollapseWhitespace(d.sel.Text())
}

// Attr returns an attribute of the first node in the selection
func (d *Document) Attr(name string) (string, bool) {
	return d.sel.Attr(name)
}

// Lines returns the visible text split the way a browser lays it out
func (d *Document) Lines() []string {
	var b strings.Builder
	for _, n := range d.sel.Nodes {
		writeVisible(&b, n, false)
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = helpers.CollapseWhitespace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

var hiddenElements = map[string]bool{
	"head": true, "script": true, "style": true, "noscript": true,
	"template": true, "svg": true, "iframe": true,
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "option": true, "p": true, "pre": true, "section": true,
	"table": true, "tbody": true, "thead": true, "tfoot": true, "tr": true,
	"ul": true, "body": true, "html": true,
}

// writeVisible appends the rendered text of n. Block elements and <br> end a
// line; text inside <pre> keeps its own line breaks.
func writeVisible(b *strings.Builder, n *html.Node, pre bool) {
	switch n.Type {
	case html.TextNode:
		if pre {
			b.WriteString(n.Data)
		} else {
			b.WriteString(collapseRuns(n.Data))
		}
		return
	case html.ElementNode:
		if hiddenElements[n.Data] {
			return
		}
		switch {
		case n.Data == "br":
			b.WriteByte('\n')
			return
		case n.Data == "td" || n.Data == "th":
			b.WriteByte(' ')
		case blockElements[n.Data]:
			b.WriteByte('\n')
		}
		if n.Data == "pre" {
			pre = true
		}
	case html.CommentNode:
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeVisible(b, c, pre)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		b.WriteByte('\n')
	}
}

// collapseRuns replaces each whitespace run with a single space, keeping
// the boundary spaces that separate inline elements.
func collapseRuns(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
