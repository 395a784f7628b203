// Package dom is a read-only view over a parsed HTML document. Callers select
// regions with CSS patterns, read attributes and serialize fragments without
// depending on the parser underneath.
package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Element is a single node of a parsed document.
type Element interface {
	// Tag returns the lower-cased tag name.
	Tag() string

	// Attr returns the attribute value and whether it was present.
	Attr(name string) (string, bool)

	// Text returns the concatenated text of all descendants, untrimmed.
	Text() string

	// VisibleText returns the trimmed text nodes outside script, style,
	// noscript and template, joined with single spaces.
	VisibleText() string

	// VisibleTextLen returns the character count of the trimmed visible text
	// nodes concatenated without separators.
	VisibleTextLen() int

	// OuterHTML serializes the element and its subtree.
	OuterHTML() string

	// Find returns every descendant matching pattern in document order.
	Find(pattern string) []Element

	// First returns the first descendant matching pattern, or nil.
	First(pattern string) Element

	// Same reports whether other wraps the same underlying node.
	Same(other Element) bool
}

// Document is a parsed page.
type Document struct {
	doc *goquery.Document
}

// Parse builds a Document from raw HTML. Malformed markup is repaired by the
// HTML5 parsing algorithm, so an error only surfaces for reader failures.
func Parse(rawHTML string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc}, nil
}

// FromGoquery wraps an already parsed goquery document.
func FromGoquery(doc *goquery.Document) *Document {
	return &Document{doc: doc}
}

// Root returns the <html> element.
func (d *Document) Root() Element {
	return wrap(d.doc.Find("html").First())
}

// Find returns every element matching pattern in document order.
func (d *Document) Find(pattern string) []Element {
	return findAll(d.doc.Selection, pattern)
}

// First returns the first element matching pattern, or nil.
func (d *Document) First(pattern string) Element {
	return findFirst(d.doc.Selection, pattern)
}

// Body returns the <body> element. The HTML5 parser always synthesizes a
// body, so a body without any child nodes is reported as absent; this is
// what a blank or head-only document looks like after parsing.
func (d *Document) Body() (Element, bool) {
	sel := d.doc.Find("body").First()
	if sel.Length() == 0 {
		return nil, false
	}
	if n := sel.Get(0); n.FirstChild == nil {
		return nil, false
	}
	return wrap(sel), true
}

// node is the goquery-backed Element.
type node struct {
	sel *goquery.Selection
}

func wrap(sel *goquery.Selection) Element {
	if sel == nil || sel.Length() == 0 {
		return nil
	}
	return &node{sel: sel.First()}
}

func (n *node) Tag() string {
	return strings.ToLower(goquery.NodeName(n.sel))
}

func (n *node) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n *node) Text() string {
	return n.sel.Text()
}

func (n *node) VisibleText() string {
	return visibleText(n.sel.Get(0))
}

func (n *node) VisibleTextLen() int {
	return visibleTextLen(n.sel.Get(0))
}

func (n *node) OuterHTML() string {
	out, err := goquery.OuterHtml(n.sel)
	if err != nil {
		return ""
	}
	return out
}

func (n *node) Find(pattern string) []Element {
	return findAll(n.sel, pattern)
}

func (n *node) First(pattern string) Element {
	return findFirst(n.sel, pattern)
}

func (n *node) Same(other Element) bool {
	o, ok := other.(*node)
	if !ok || o == nil {
		return false
	}
	return n.sel.Get(0) == o.sel.Get(0)
}

// HTMLNode exposes the underlying parser node for renderers that need it.
func HTMLNode(el Element) *html.Node {
	if n, ok := el.(*node); ok {
		return n.sel.Get(0)
	}
	return nil
}

func findAll(sel *goquery.Selection, pattern string) []Element {
	m := matcher(pattern)
	if m == nil {
		return nil
	}
	found := sel.FindMatcher(m)
	out := make([]Element, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &node{sel: s})
	})
	return out
}

func findFirst(sel *goquery.Selection, pattern string) Element {
	m := matcher(pattern)
	if m == nil {
		return nil
	}
	return wrap(sel.FindMatcher(m).First())
}
