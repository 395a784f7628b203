package sections

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/sieve/dom"
	"github.com/use-agent/sieve/models"
)

const (
	// minFragmentLength is the trimmed length a text candidate must exceed.
	// Shorter fragments are mostly button labels and other UI chrome.
	minFragmentLength = 10

	// maxTextFragments caps how many qualifying fragments make up Text.
	maxTextFragments = 50
)

const (
	headingPattern = "h1, h2, h3, h4, h5, h6"
	textPattern    = "p, span, div, li, td, th"
	linkPattern    = "a[href]"
	imagePattern   = "img[src]"
	listPattern    = "ul, ol"
	tablePattern   = "table"
)

// ExtractContent pulls headings, text, links, images, lists and tables out of
// el. Relative URLs are resolved against base; a nil base leaves them as-is.
// The function has no side effects and returns the same content for the same
// element.
func ExtractContent(el dom.Element, base *url.URL) models.SectionContent {
	content := models.EmptySectionContent()
	if el == nil {
		return content
	}

	for _, h := range el.Find(headingPattern) {
		if text := Normalize(h.Text()); text != "" {
			content.Headings = append(content.Headings, text)
		}
	}

	content.Text = extractText(el)

	for _, a := range el.Find(linkPattern) {
		href, _ := a.Attr("href")
		if skipHref(href) {
			continue
		}
		text := Normalize(a.Text())
		if text == "" {
			text = href
		}
		content.Links = append(content.Links, models.Link{
			Text: text,
			Href: resolve(base, href),
		})
	}

	for _, img := range el.Find(imagePattern) {
		src, _ := img.Attr("src")
		if strings.TrimSpace(src) == "" {
			continue
		}
		alt, _ := img.Attr("alt")
		content.Images = append(content.Images, models.Image{
			Src: resolve(base, src),
			Alt: alt,
		})
	}

	for _, list := range el.Find(listPattern) {
		var items []string
		for _, li := range list.Find("li") {
			if text := Normalize(li.Text()); text != "" {
				items = append(items, text)
			}
		}
		if len(items) > 0 {
			content.Lists = append(content.Lists, items)
		}
	}

	for _, table := range el.Find(tablePattern) {
		var rows [][]string
		for _, tr := range table.Find("tr") {
			cells := tr.Find("td, th")
			if len(cells) == 0 {
				continue
			}
			row := make([]string, 0, len(cells))
			for _, cell := range cells {
				row = append(row, Normalize(cell.Text()))
			}
			rows = append(rows, row)
		}
		if len(rows) > 0 {
			content.Tables = append(content.Tables, rows)
		}
	}

	return content
}

// extractText joins the first maxTextFragments qualifying fragments.
func extractText(el dom.Element) string {
	parts := make([]string, 0, maxTextFragments)
	for _, n := range el.Find(textPattern) {
		text := strings.TrimSpace(n.Text())
		if utf8.RuneCountInString(text) <= minFragmentLength {
			continue
		}
		parts = append(parts, Normalize(text))
		if len(parts) == maxTextFragments {
			break
		}
	}
	return strings.Join(parts, " ")
}

// skipHref reports hrefs that never lead to another document.
func skipHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	return strings.HasPrefix(strings.ToLower(href), "javascript:")
}

// resolve turns ref into an absolute URL against base. Unparseable
// references are returned unchanged.
func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if base == nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
