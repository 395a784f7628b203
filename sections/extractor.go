// Package sections turns a parsed page into typed, labeled sections with
// normalized content and a bounded raw HTML snapshot.
package sections

import (
	"fmt"
	"log/slog"
	"net/url"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/use-agent/sieve/dom"
	"github.com/use-agent/sieve/models"
)

// MaxRawHTML is the number of characters of serialized markup a section keeps.
const MaxRawHTML = 5000

// truncationMarker is appended to rawHtml when it was cut.
const truncationMarker = "..."

// containerRule describes one step of the page scan. Rules run in order.
type containerRule struct {
	name        string
	pattern     string
	defaultType models.SectionType
	every       bool   // take every match instead of the first
	distinctOf  string // skip the match when it is the element matched by this rule
}

var containerRules = []containerRule{
	{name: "main", pattern: `main, [role="main"], #main, .main`, defaultType: models.SectionMain},
	{name: "header", pattern: `header, [role="banner"]`, defaultType: models.SectionNav},
	{name: "nav", pattern: `nav, [role="navigation"]`, defaultType: models.SectionNav, distinctOf: "header"},
	{name: "region", pattern: `section, article, [role="region"]`, defaultType: models.SectionSection, every: true},
	{name: "footer", pattern: `footer, [role="contentinfo"]`, defaultType: models.SectionFooter},
}

// Options tunes section extraction for a single page.
type Options struct {
	// IncludeMarkdown renders each section fragment to Markdown.
	IncludeMarkdown bool
}

// Extractor assembles sections for whole documents. The Markdown converter
// is created once and reused across pages; Extractor is safe for concurrent use.
type Extractor struct {
	mdConverter *converter.Converter
	logger      *slog.Logger
}

// NewExtractor initialises the Extractor with a pre-configured Markdown
// converter. A nil logger falls back to slog.Default().
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{mdConverter: newMarkdownConverter(), logger: logger}
}

// ExtractSections scans doc in a fixed order (main, header, nav, every
// section/article/region, footer), falls back to the body, and finally to a
// single placeholder. The result is never empty.
func (x *Extractor) ExtractSections(doc *dom.Document, sourceURL string, opts Options) []models.Section {
	base, err := url.Parse(sourceURL)
	if err != nil {
		base = nil
	}

	var out []models.Section
	ids := make(idAllocator)
	matched := make(map[string]dom.Element, len(containerRules))

	for _, rule := range containerRules {
		var found []dom.Element
		if rule.every {
			found = doc.Find(rule.pattern)
		} else if el := doc.First(rule.pattern); el != nil {
			found = []dom.Element{el}
		}
		if len(found) > 0 {
			matched[rule.name] = found[0]
		}
		for _, el := range found {
			if prev, ok := matched[rule.distinctOf]; ok && rule.distinctOf != "" && prev.Same(el) {
				continue
			}
			out = append(out, x.buildSection(el, rule.defaultType, sourceURL, base, ids, opts))
		}
	}

	if len(out) == 0 {
		if body, ok := doc.Body(); ok {
			out = append(out, x.buildSection(body, models.SectionUnknown, sourceURL, base, ids, opts))
		}
	}

	if len(out) == 0 {
		out = append(out, placeholderSection(sourceURL))
	}
	return out
}

func (x *Extractor) buildSection(el dom.Element, defaultType models.SectionType, sourceURL string, base *url.URL, ids idAllocator, opts Options) models.Section {
	sectionType := Classify(el, defaultType)
	content := ExtractContent(el, base)
	outer := el.OuterHTML()
	raw, truncated := TruncateHTML(outer)

	s := models.Section{
		ID:        ids.next(sectionType),
		Type:      sectionType,
		Label:     GenerateLabel(el, content),
		SourceURL: sourceURL,
		Content:   content,
		RawHTML:   raw,
		Truncated: truncated,
	}
	if opts.IncludeMarkdown {
		md, err := x.toMarkdown(outer, sourceURL)
		if err != nil {
			x.logger.Debug("sections: markdown conversion failed", "phase", models.PhaseParse, "id", s.ID, "error", err)
		}
		s.Markdown = md
	}
	return s
}

// TruncateHTML caps markup at MaxRawHTML characters, appending a marker when
// anything was cut.
func TruncateHTML(s string) (string, bool) {
	if utf8.RuneCountInString(s) <= MaxRawHTML {
		return s, false
	}
	return string([]rune(s)[:MaxRawHTML]) + truncationMarker, true
}

func placeholderSection(sourceURL string) models.Section {
	return models.Section{
		ID:        "default-0",
		Type:      models.SectionUnknown,
		Label:     "Default Section",
		SourceURL: sourceURL,
		Content:   models.EmptySectionContent(),
	}
}

// idAllocator hands out "{type}-{n}" identifiers, counting per type across
// the whole page so identifiers are unique within one result.
type idAllocator map[models.SectionType]int

func (a idAllocator) next(t models.SectionType) string {
	n := a[t]
	a[t] = n + 1
	return fmt.Sprintf("%s-%d", t, n)
}
