package mock

import (
	"io"

	"github.com/fwojciec/harvest"
)

var (
	_ harvest.DocumentParser = (*DocumentParser)(nil)
	_ harvest.Document       = (*Document)(nil)
	_ harvest.Element        = (*Element)(nil)
)

// DocumentParser is a mock implementation of harvest.DocumentParser.
type DocumentParser struct {
	ParseFn func(r io.Reader) (harvest.Document, error)
}

func (p *DocumentParser) Parse(r io.Reader) (harvest.Document, error) {
	return p.ParseFn(r)
}

// Document is a mock implementation of harvest.Document.
type Document struct {
	SelectFn func(selector string) []harvest.Element
}

func (d *Document) Select(selector string) []harvest.Element {
	return d.SelectFn(selector)
}

// Element is a mock implementation of harvest.Element backed by a map.
type Element struct {
	Attrs map[string]string
}

func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}
