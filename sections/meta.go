package sections

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/use-agent/sieve/dom"
	"github.com/use-agent/sieve/models"
)

// ExtractMeta derives page metadata from doc.
//
//   - title: <title>, then og:title, then the readability article title
//   - description: meta[name=description], then og:description
//   - language: <html lang>, default "en"
//   - canonical: link[rel=canonical], resolved against sourceURL
func (x *Extractor) ExtractMeta(doc *dom.Document, sourceURL string) models.PageMeta {
	meta := models.DefaultPageMeta()
	base, err := url.Parse(sourceURL)
	if err != nil {
		base = nil
	}

	if t := doc.First("title"); t != nil {
		meta.Title = strings.TrimSpace(t.Text())
	}
	if meta.Title == "" {
		meta.Title = metaContent(doc, `meta[property="og:title"]`)
	}
	if meta.Title == "" {
		meta.Title = x.readabilityTitle(doc, base)
	}

	meta.Description = metaContent(doc, `meta[name="description"]`)
	if meta.Description == "" {
		meta.Description = metaContent(doc, `meta[property="og:description"]`)
	}

	if root := doc.Root(); root != nil {
		if lang, ok := root.Attr("lang"); ok && strings.TrimSpace(lang) != "" {
			meta.Language = strings.TrimSpace(lang)
		}
	}

	if link := doc.First(`link[rel="canonical"]`); link != nil {
		if href, ok := link.Attr("href"); ok && strings.TrimSpace(href) != "" {
			canonical := resolve(base, href)
			meta.Canonical = &canonical
		}
	}

	return meta
}

func metaContent(doc *dom.Document, pattern string) string {
	el := doc.First(pattern)
	if el == nil {
		return ""
	}
	content, _ := el.Attr("content")
	return content
}

// readabilityTitle runs the readability parser on a serialized copy of the
// document, since it rewrites the tree it is given.
func (x *Extractor) readabilityTitle(doc *dom.Document, base *url.URL) string {
	root := doc.Root()
	if root == nil || base == nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(root.OuterHTML()), base)
	if err != nil {
		x.logger.Debug("readability: title fallback failed", "phase", models.PhaseParse, "url", base.String(), "error", err)
		return ""
	}
	return strings.TrimSpace(article.Title)
}
