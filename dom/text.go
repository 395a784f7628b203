package dom

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// eachVisibleText walks the subtree and calls fn with every trimmed,
// non-empty text node, skipping elements whose content is never rendered.
func eachVisibleText(root *html.Node, fn func(text string)) {
	if root == nil {
		return
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if text := strings.TrimSpace(n.Data); text != "" {
				fn(text)
			}
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
}

// visibleText joins the visible text nodes with single spaces.
func visibleText(root *html.Node) string {
	var buf strings.Builder
	eachVisibleText(root, func(text string) {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(text)
	})
	return buf.String()
}

// visibleTextLen counts the characters of the visible text nodes with no
// separator between them.
func visibleTextLen(root *html.Node) int {
	n := 0
	eachVisibleText(root, func(text string) {
		n += utf8.RuneCountInString(text)
	})
	return n
}
