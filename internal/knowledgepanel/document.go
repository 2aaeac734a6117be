package knowledgepanel

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// AttrID is the attribute Google uses to tag knowledge panel fields.
const AttrID = "data-attrid"

// Document is a parsed page that can look nodes up by attribute value.
type Document interface {
	// Find returns the first node whose attribute attr equals value.
	Find(attr, value string) (Node, bool)
}

// Node is a single element of a Document.
type Node interface {
	Text() string
	Attr(name string) (string, bool)
	// HTML returns the node's outer HTML.
	HTML() (string, error)
	// First returns the first descendant matching a CSS selector.
	First(selector string) (Node, bool)
	// Links returns every descendant anchor that carries an href.
	Links() []Link
}

// Link is an anchor's href and visible text.
type Link struct {
	Href string
	Text string
}

// NewDocument parses HTML from r into a goquery-backed Document.
func NewDocument(r io.Reader) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return FromGoquery(doc), nil
}

// ParseHTML is NewDocument over a string.
func ParseHTML(html string) (Document, error) {
	return NewDocument(strings.NewReader(html))
}

// FromGoquery wraps an already parsed goquery document.
func FromGoquery(doc *goquery.Document) Document {
	return gqDocument{doc: doc}
}

type gqDocument struct {
	doc *goquery.Document
}

// Find filters on the attribute value directly rather than building a CSS
// selector, since panel attribute values carry colons, slashes and spaces.
func (d gqDocument) Find(attr, value string) (Node, bool) {
	sel := d.doc.Find("[" + attr + "]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr(attr)
		return v == value
	}).First()
	if sel.Length() == 0 {
		return nil, false
	}
	return gqNode{sel: sel}, true
}

type gqNode struct {
	sel *goquery.Selection
}

func (n gqNode) Text() string {
	return n.sel.Text()
}

func (n gqNode) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n gqNode) HTML() (string, error) {
	return goquery.OuterHtml(n.sel)
}

func (n gqNode) First(selector string) (Node, bool) {
	sel := n.sel.Find(selector).First()
	if sel.Length() == 0 {
		return nil, false
	}
	return gqNode{sel: sel}, true
}

func (n gqNode) Links() []Link {
	var links []Link
	n.sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		links = append(links, Link{Href: href, Text: a.Text()})
	})
	return links
}
