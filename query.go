package harvest

import "io"

// DocumentParser parses markup into a queryable document.
type DocumentParser interface {
	Parse(r io.Reader) (Document, error)
}

// Document is a parsed page.
type Document interface {
	// Select returns the elements matching a CSS selector in document order.
	Select(selector string) []Element
}

// Element is a node of a parsed document.
type Element interface {
	// Attr returns the named attribute and whether it is present.
	Attr(name string) (string, bool)
}
