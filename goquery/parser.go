// Package goquery implements the harvest document capabilities on top of
// PuerkitoBio/goquery.
package goquery

import (
	"io"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/fwojciec/harvest"
)

var (
	_ harvest.DocumentParser = (*Parser)(nil)
	_ harvest.Document       = (*Document)(nil)
	_ harvest.Element        = Element{}
)

// Parser parses HTML into goquery documents.
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads HTML from r. The HTML parser is lenient, so only read
// failures are reported.
func (p *Parser) Parse(r io.Reader) (harvest.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, harvest.Errorf(harvest.EINVALID, "failed to parse HTML: %v", err)
	}
	return &Document{doc: doc}, nil
}

// Document wraps a parsed goquery document.
type Document struct {
	doc *goquery.Document
}

// Select returns the elements matching selector in document order.
// An invalid selector matches nothing.
func (d *Document) Select(selector string) []harvest.Element {
	sel := d.doc.Find(selector)
	elements := make([]harvest.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, Element{sel: s})
	})
	return elements
}

// Element is a single matched node.
type Element struct {
	sel *goquery.Selection
}

// Attr returns the named attribute of the element.
func (e Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// ValidateSelector reports whether selector is a valid CSS selector group.
// goquery silently matches nothing for invalid selectors, so callers
// validate user input up front.
func ValidateSelector(selector string) error {
	if _, err := cascadia.ParseGroup(selector); err != nil {
		return harvest.Errorf(harvest.EINVALID, "invalid selector %q: %v", selector, err)
	}
	return nil
}
